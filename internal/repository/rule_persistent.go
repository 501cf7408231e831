package repository

import (
	"context"
	"log/slog"

	"github.com/staykit/staykit/internal/db"
	"github.com/staykit/staykit/internal/staykit"
)

// PersistentRuleRepository wraps a MemoryRuleRepository with a PostgreSQL
// backend. Writes go to both stores (DB failure is logged but non-fatal).
// Reads try memory first, falling back to the database.
type PersistentRuleRepository struct {
	mem *MemoryRuleRepository
	db  *db.DB
}

// NewPersistentRuleRepository creates a repository backed by both memory
// and PostgreSQL.
func NewPersistentRuleRepository(mem *MemoryRuleRepository, database *db.DB) *PersistentRuleRepository {
	return &PersistentRuleRepository{mem: mem, db: database}
}

// WarmCache loads all rules from the database into the memory store.
// Called once at startup.
func (r *PersistentRuleRepository) WarmCache(ctx context.Context) error {
	rules, err := r.db.ListRules(ctx)
	if err != nil {
		return err
	}
	for _, rule := range rules {
		_ = r.mem.Create(ctx, rule)
	}
	slog.Info("rule cache warmed", "count", len(rules))
	return nil
}

func (r *PersistentRuleRepository) Create(ctx context.Context, rule *staykit.AutomationRule) error {
	_ = r.mem.Create(ctx, rule)
	if err := r.db.CreateRule(ctx, rule); err != nil {
		slog.Warn("db create rule failed, in-memory only", "err", err)
	}
	return nil
}

func (r *PersistentRuleRepository) Get(ctx context.Context, id string) (*staykit.AutomationRule, error) {
	rule, err := r.mem.Get(ctx, id)
	if err == nil {
		return rule, nil
	}
	rule, dbErr := r.db.GetRule(ctx, id)
	if dbErr != nil {
		return nil, ErrNotFound
	}
	_ = r.mem.Create(ctx, rule)
	return rule, nil
}

func (r *PersistentRuleRepository) Update(ctx context.Context, rule *staykit.AutomationRule) error {
	if err := r.mem.Update(ctx, rule); err != nil {
		_ = r.mem.Create(ctx, rule)
	}
	if err := r.db.UpdateRule(ctx, rule); err != nil {
		slog.Warn("db update rule failed, in-memory only", "err", err)
	}
	return nil
}

func (r *PersistentRuleRepository) Delete(ctx context.Context, id string) error {
	err := r.mem.Delete(ctx, id)
	if dbErr := r.db.DeleteRule(ctx, id); dbErr != nil {
		slog.Warn("db delete rule failed", "err", dbErr)
	}
	return err
}

func (r *PersistentRuleRepository) List(ctx context.Context) ([]*staykit.AutomationRule, error) {
	return r.mem.List(ctx)
}

func (r *PersistentRuleRepository) ListEnabled(ctx context.Context, kind staykit.TriggerKind) ([]*staykit.AutomationRule, error) {
	return r.mem.ListEnabled(ctx, kind)
}
