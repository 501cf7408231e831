package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/staykit/staykit/internal/staykit"
)

// MemoryRuleRepository is a thread-safe in-memory RuleRepository.
type MemoryRuleRepository struct {
	mu    sync.RWMutex
	rules map[string]*staykit.AutomationRule
}

// NewMemoryRuleRepository creates an empty in-memory repository.
func NewMemoryRuleRepository() *MemoryRuleRepository {
	return &MemoryRuleRepository{
		rules: make(map[string]*staykit.AutomationRule),
	}
}

func (r *MemoryRuleRepository) Create(_ context.Context, rule *staykit.AutomationRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rule.ID] = rule
	return nil
}

func (r *MemoryRuleRepository) Get(_ context.Context, id string) (*staykit.AutomationRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, ok := r.rules[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rule, nil
}

func (r *MemoryRuleRepository) Update(_ context.Context, rule *staykit.AutomationRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rules[rule.ID]; !ok {
		return ErrNotFound
	}
	r.rules[rule.ID] = rule
	return nil
}

func (r *MemoryRuleRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rules[id]; !ok {
		return ErrNotFound
	}
	delete(r.rules, id)
	return nil
}

func (r *MemoryRuleRepository) List(_ context.Context) ([]*staykit.AutomationRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*staykit.AutomationRule, 0, len(r.rules))
	for _, rule := range r.rules {
		all = append(all, rule)
	}
	sortRules(all)
	return all, nil
}

func (r *MemoryRuleRepository) ListEnabled(_ context.Context, kind staykit.TriggerKind) ([]*staykit.AutomationRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*staykit.AutomationRule
	for _, rule := range r.rules {
		if !rule.Enabled {
			continue
		}
		if kind != "" && rule.Trigger.Kind != kind {
			continue
		}
		matched = append(matched, rule)
	}
	sortRules(matched)
	return matched, nil
}

// sortRules orders by creation time, oldest first, with the ID as a
// stable tiebreak.
func sortRules(rules []*staykit.AutomationRule) {
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].ID < rules[j].ID
		}
		return rules[i].CreatedAt.Before(rules[j].CreatedAt)
	})
}
