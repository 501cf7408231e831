package repository

import (
	"context"

	"github.com/staykit/staykit/internal/staykit"
)

// Ledger persists execution records and enforces at-most-once execution
// per trigger occurrence. TryClaim is the idempotency gate: the first
// caller to claim an occurrence key wins, every later caller is refused
// until the claim is released.
type Ledger interface {
	// TryClaim atomically claims the occurrence. It returns false when
	// the occurrence is already claimed.
	TryClaim(ctx context.Context, occ staykit.TriggerOccurrence) (bool, error)
	// ReleaseIfFailed releases the claim only when the latest recorded
	// attempt for the occurrence ended in failure, so a retry can
	// re-claim it.
	ReleaseIfFailed(ctx context.Context, occ staykit.TriggerOccurrence) error
	Append(ctx context.Context, record *staykit.ExecutionRecord) error
	Get(ctx context.Context, id string) (*staykit.ExecutionRecord, error)
	ListByRule(ctx context.Context, ruleID string, limit, offset int) ([]*staykit.ExecutionRecord, int, error)
	// ListAll returns all records. status filters by chain status when
	// non-empty ("" = all).
	ListAll(ctx context.Context, limit, offset int, status string) ([]*staykit.ExecutionRecord, int, error)
}
