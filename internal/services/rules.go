package services

import (
	"context"
	"time"

	"github.com/staykit/staykit/internal/engine"
	"github.com/staykit/staykit/internal/repository"
	"github.com/staykit/staykit/internal/staykit"
	"github.com/staykit/staykit/internal/staykit/ports"
)

// RuleService fronts the CRUD surface for automation rules: validation
// at the boundary, retry cancellation on disable/delete, and the
// side-effect-free dry-run used by both the "test rule" operation and
// generated-draft review.
type RuleService struct {
	repo      repository.RuleRepository
	templates ports.TemplateRegistry
	retries   *RetryController
}

func NewRuleService(repo repository.RuleRepository, templates ports.TemplateRegistry, retries *RetryController) *RuleService {
	return &RuleService{repo: repo, templates: templates, retries: retries}
}

// Create validates and persists a new rule.
func (s *RuleService) Create(ctx context.Context, rule *staykit.AutomationRule) error {
	if err := staykit.Validate(rule, s.templates); err != nil {
		return err
	}

	now := time.Now()
	if rule.ID == "" {
		rule.ID = staykit.GenerateID("rule")
	}
	rule.RunCount = 0
	rule.LastRunAt = nil
	rule.LastError = nil
	rule.CreatedAt = now
	rule.UpdatedAt = now

	return s.repo.Create(ctx, rule)
}

// Update validates and persists rule edits, preserving the engine-owned
// summary fields. Disabling a rule cancels its pending retries.
func (s *RuleService) Update(ctx context.Context, rule *staykit.AutomationRule) error {
	if err := staykit.Validate(rule, s.templates); err != nil {
		return err
	}

	existing, err := s.repo.Get(ctx, rule.ID)
	if err != nil {
		return err
	}

	rule.RunCount = existing.RunCount
	rule.LastRunAt = existing.LastRunAt
	rule.LastError = existing.LastError
	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, rule); err != nil {
		return err
	}
	if !rule.Enabled {
		s.retries.CancelRule(rule.ID)
	}
	return nil
}

// Delete removes a rule and drops its pending retries.
func (s *RuleService) Delete(ctx context.Context, id string) error {
	s.retries.CancelRule(id)
	return s.repo.Delete(ctx, id)
}

// SetEnabled flips a rule's enabled flag. Disabling cancels pending
// retries; a stale retry timer that fires anyway re-checks the flag.
func (s *RuleService) SetEnabled(ctx context.Context, id string, enabled bool) (*staykit.AutomationRule, error) {
	rule, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	rule.Enabled = enabled
	rule.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, rule); err != nil {
		return nil, err
	}
	if !enabled {
		s.retries.CancelRule(id)
	}
	return rule, nil
}

func (s *RuleService) Get(ctx context.Context, id string) (*staykit.AutomationRule, error) {
	return s.repo.Get(ctx, id)
}

func (s *RuleService) List(ctx context.Context) ([]*staykit.AutomationRule, error) {
	return s.repo.List(ctx)
}

// StepPreview is one step's dry-run rendering.
type StepPreview struct {
	StepID   string         `json:"step_id"`
	Type     string         `json:"type"`
	Config   map[string]any `json:"config"`
	Warnings []string       `json:"warnings,omitempty"`
}

// DryRunResult reports a rule's validation outcome and, when valid, the
// rendered form of every step against a sample context. Nothing is
// dispatched.
type DryRunResult struct {
	Valid  bool          `json:"valid"`
	Errors []string      `json:"errors,omitempty"`
	Steps  []StepPreview `json:"steps,omitempty"`
}

// DryRun validates the rule and renders its steps against a sample
// guest context without invoking any sender.
func (s *RuleService) DryRun(rule *staykit.AutomationRule) DryRunResult {
	if err := staykit.Validate(rule, s.templates); err != nil {
		cfgErr, ok := err.(*staykit.ConfigurationError)
		if ok {
			return DryRunResult{Valid: false, Errors: cfgErr.Fields}
		}
		return DryRunResult{Valid: false, Errors: []string{err.Error()}}
	}

	sample := sampleContext()
	result := DryRunResult{Valid: true}
	for _, step := range rule.Actions {
		rendered, unresolved := engine.RenderConfig(step.Config, sample)
		preview := StepPreview{
			StepID: step.ID,
			Type:   string(step.Type),
			Config: rendered,
		}
		for _, token := range unresolved {
			preview.Warnings = append(preview.Warnings, "unresolved placeholder {{"+token+"}}")
		}
		result.Steps = append(result.Steps, preview)
	}
	return result
}

func sampleContext() map[string]any {
	now := time.Now()
	return map[string]any{
		"subjectId":     "res-sample",
		"firstName":     "Alex",
		"lastName":      "Rivera",
		"roomNumber":    "204",
		"arrivalDate":   now.Format(time.DateOnly),
		"departureDate": now.AddDate(0, 0, 3).Format(time.DateOnly),
	}
}
