package services

import (
	"context"

	"github.com/staykit/staykit/internal/repository"
	"github.com/staykit/staykit/internal/staykit"
)

const defaultHistoryLimit = 50

// HistoryService serves execution record listings for the CRUD surface.
type HistoryService struct {
	ledger repository.Ledger
}

func NewHistoryService(ledger repository.Ledger) *HistoryService {
	return &HistoryService{ledger: ledger}
}

func (s *HistoryService) Get(ctx context.Context, id string) (*staykit.ExecutionRecord, error) {
	return s.ledger.Get(ctx, id)
}

// ListByRule returns a rule's executions, newest first.
func (s *HistoryService) ListByRule(ctx context.Context, ruleID string, limit, offset int) ([]*staykit.ExecutionRecord, int, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.ledger.ListByRule(ctx, ruleID, limit, offset)
}

// ListAll returns executions across rules. status filters by chain
// status when non-empty.
func (s *HistoryService) ListAll(ctx context.Context, limit, offset int, status string) ([]*staykit.ExecutionRecord, int, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.ledger.ListAll(ctx, limit, offset, status)
}
