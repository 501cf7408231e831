package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/staykit/staykit/internal/staykit"
)

const maxLedgerRecords = 5000

// MemoryLedger stores execution records in memory with FIFO eviction
// and tracks occurrence claims under the same lock, which makes
// TryClaim atomic with respect to concurrent callers.
type MemoryLedger struct {
	mu      sync.RWMutex
	records map[string]*staykit.ExecutionRecord
	order   []string // insertion order for FIFO eviction
	claims  map[string]struct{}
	latest  map[string]staykit.ChainStatus // occurrence key -> newest attempt status
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		records: make(map[string]*staykit.ExecutionRecord),
		claims:  make(map[string]struct{}),
		latest:  make(map[string]staykit.ChainStatus),
	}
}

func (l *MemoryLedger) TryClaim(_ context.Context, occ staykit.TriggerOccurrence) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := occ.Key()
	if _, claimed := l.claims[key]; claimed {
		return false, nil
	}
	l.claims[key] = struct{}{}
	return true, nil
}

func (l *MemoryLedger) ReleaseIfFailed(_ context.Context, occ staykit.TriggerOccurrence) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := occ.Key()
	if l.latest[key] == staykit.ChainFailed {
		delete(l.claims, key)
	}
	return nil
}

func (l *MemoryLedger) Append(_ context.Context, record *staykit.ExecutionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// FIFO eviction when at capacity.
	if len(l.order) >= maxLedgerRecords {
		oldest := l.order[0]
		l.order = l.order[1:]
		delete(l.records, oldest)
	}

	l.records[record.ID] = record
	l.order = append(l.order, record.ID)

	occ := staykit.TriggerOccurrence{RuleID: record.RuleID, SubjectID: record.SubjectID, Bucket: record.Bucket}
	l.latest[occ.Key()] = record.Status
	return nil
}

func (l *MemoryLedger) Get(_ context.Context, id string) (*staykit.ExecutionRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (l *MemoryLedger) ListByRule(_ context.Context, ruleID string, limit, offset int) ([]*staykit.ExecutionRecord, int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var filtered []*staykit.ExecutionRecord
	for _, rec := range l.records {
		if rec.RuleID == ruleID {
			filtered = append(filtered, rec)
		}
	}
	return paginate(filtered, limit, offset)
}

func (l *MemoryLedger) ListAll(_ context.Context, limit, offset int, status string) ([]*staykit.ExecutionRecord, int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	all := make([]*staykit.ExecutionRecord, 0, len(l.records))
	for _, rec := range l.records {
		if status == "" || string(rec.Status) == status {
			all = append(all, rec)
		}
	}
	return paginate(all, limit, offset)
}

// paginate sorts newest first and applies limit/offset.
func paginate(records []*staykit.ExecutionRecord, limit, offset int) ([]*staykit.ExecutionRecord, int, error) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	total := len(records)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return records[offset:end], total, nil
}
