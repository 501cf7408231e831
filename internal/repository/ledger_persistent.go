package repository

import (
	"context"
	"log/slog"

	"github.com/staykit/staykit/internal/db"
	"github.com/staykit/staykit/internal/staykit"
)

// PersistentLedger stores execution records in both memory and
// PostgreSQL. The idempotency claims live in the database alone: the
// claim must be atomic in a single store, and the unique key on
// rule_claims is what survives a restart.
type PersistentLedger struct {
	mem *MemoryLedger
	db  *db.DB
}

// NewPersistentLedger creates a ledger backed by both memory and
// PostgreSQL.
func NewPersistentLedger(mem *MemoryLedger, database *db.DB) *PersistentLedger {
	return &PersistentLedger{mem: mem, db: database}
}

func (l *PersistentLedger) TryClaim(ctx context.Context, occ staykit.TriggerOccurrence) (bool, error) {
	return l.db.TryClaimOccurrence(ctx, occ.Key())
}

func (l *PersistentLedger) ReleaseIfFailed(ctx context.Context, occ staykit.TriggerOccurrence) error {
	return l.db.ReleaseClaimIfFailed(ctx, occ.Key(), occ)
}

func (l *PersistentLedger) Append(ctx context.Context, record *staykit.ExecutionRecord) error {
	_ = l.mem.Append(ctx, record)
	if err := l.db.CreateExecution(ctx, record); err != nil {
		slog.Warn("db append execution failed, in-memory only", "err", err)
	}
	return nil
}

func (l *PersistentLedger) Get(ctx context.Context, id string) (*staykit.ExecutionRecord, error) {
	rec, err := l.mem.Get(ctx, id)
	if err == nil {
		return rec, nil
	}
	rec, dbErr := l.db.GetExecution(ctx, id)
	if dbErr != nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (l *PersistentLedger) ListByRule(ctx context.Context, ruleID string, limit, offset int) ([]*staykit.ExecutionRecord, int, error) {
	records, total, err := l.db.ListExecutionsByRule(ctx, ruleID, limit, offset)
	if err != nil {
		slog.Warn("db list executions failed, serving memory", "err", err)
		return l.mem.ListByRule(ctx, ruleID, limit, offset)
	}
	return records, total, nil
}

func (l *PersistentLedger) ListAll(ctx context.Context, limit, offset int, status string) ([]*staykit.ExecutionRecord, int, error) {
	records, total, err := l.db.ListExecutions(ctx, limit, offset, status)
	if err != nil {
		slog.Warn("db list executions failed, serving memory", "err", err)
		return l.mem.ListAll(ctx, limit, offset, status)
	}
	return records, total, nil
}
