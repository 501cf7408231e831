// Package repository defines storage interfaces for domain entities.
package repository

import (
	"context"
	"errors"

	"github.com/staykit/staykit/internal/staykit"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// RuleRepository abstracts rule persistence so callers don't need to
// know whether storage is in-memory, PostgreSQL, or a mix.
type RuleRepository interface {
	Create(ctx context.Context, rule *staykit.AutomationRule) error
	Get(ctx context.Context, id string) (*staykit.AutomationRule, error)
	Update(ctx context.Context, rule *staykit.AutomationRule) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*staykit.AutomationRule, error)
	// ListEnabled returns enabled rules. kind filters by trigger kind
	// when non-empty ("" = all kinds).
	ListEnabled(ctx context.Context, kind staykit.TriggerKind) ([]*staykit.AutomationRule, error)
}
