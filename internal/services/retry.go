package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/staykit/staykit/internal/repository"
	"github.com/staykit/staykit/internal/staykit"
)

// RetryController schedules single-shot, timer-based re-attempts of
// failed chains. Timers are tracked per rule so disabling or deleting a
// rule cancels its pending retries; a timer that slips through anyway
// re-checks the rule and drops out without producing a record.
type RetryController struct {
	rules  repository.RuleRepository
	ledger repository.Ledger
	runner *Runner

	mu     sync.Mutex
	timers map[string]map[string]*time.Timer // rule ID → occurrence key → timer
}

func NewRetryController(rules repository.RuleRepository, ledger repository.Ledger, runner *Runner) *RetryController {
	return &RetryController{
		rules:  rules,
		ledger: ledger,
		runner: runner,
		timers: make(map[string]map[string]*time.Timer),
	}
}

// Schedule arms a retry for the occurrence after the policy's backoff
// delay. failedAttempt is the 1-based number of the attempt that just
// failed.
func (c *RetryController) Schedule(rule *staykit.AutomationRule, occ staykit.TriggerOccurrence, payload map[string]any, failedAttempt int) {
	policy := rule.RetryPolicy
	if policy == nil || !policy.Enabled {
		return
	}

	delay := policy.Delay(failedAttempt)
	next := failedAttempt + 1
	key := occ.Key()

	c.mu.Lock()
	defer c.mu.Unlock()

	if byOcc, ok := c.timers[rule.ID]; ok {
		if old, dup := byOcc[key]; dup {
			old.Stop()
		}
	} else {
		c.timers[rule.ID] = make(map[string]*time.Timer)
	}

	slog.Info("retry: scheduled", "rule", rule.ID, "occurrence", key,
		"attempt", next, "delay", delay)

	c.timers[rule.ID][key] = time.AfterFunc(delay, func() {
		c.fire(rule.ID, occ, payload, next)
	})
}

// CancelRule stops every pending retry for a rule. Called when a rule is
// disabled or deleted.
func (c *RetryController) CancelRule(ruleID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byOcc, ok := c.timers[ruleID]
	if !ok {
		return
	}
	for _, timer := range byOcc {
		timer.Stop()
	}
	delete(c.timers, ruleID)
	slog.Info("retry: cancelled pending retries", "rule", ruleID, "count", len(byOcc))
}

// PendingCount reports the number of armed retry timers for a rule.
func (c *RetryController) PendingCount(ruleID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers[ruleID])
}

func (c *RetryController) fire(ruleID string, occ staykit.TriggerOccurrence, payload map[string]any, attempt int) {
	c.mu.Lock()
	if byOcc, ok := c.timers[ruleID]; ok {
		delete(byOcc, occ.Key())
		if len(byOcc) == 0 {
			delete(c.timers, ruleID)
		}
	}
	c.mu.Unlock()

	ctx := context.Background()

	// A stale timer (rule deleted or disabled after scheduling) is a
	// no-op: no record, no claim change.
	rule, err := c.rules.Get(ctx, ruleID)
	if err != nil {
		slog.Info("retry: rule gone, dropping retry", "rule", ruleID)
		return
	}
	if !rule.Enabled {
		slog.Info("retry: rule disabled, dropping retry", "rule", ruleID)
		return
	}

	// Release the previous attempt's claim and take a fresh one for this
	// attempt. Losing the race means another path already owns the
	// occurrence; drop out.
	if err := c.ledger.ReleaseIfFailed(ctx, occ); err != nil {
		slog.Warn("retry: release claim failed", "occurrence", occ.Key(), "err", err)
		return
	}
	claimed, err := c.ledger.TryClaim(ctx, occ)
	if err != nil || !claimed {
		slog.Info("retry: lost claim, dropping retry", "occurrence", occ.Key())
		return
	}

	slog.Info("retry: attempting", "rule", ruleID, "occurrence", occ.Key(), "attempt", attempt)
	c.runner.Fire(ctx, rule, occ, nil, payload, attempt)
}
