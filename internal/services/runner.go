package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/staykit/staykit/internal/engine"
	"github.com/staykit/staykit/internal/repository"
	"github.com/staykit/staykit/internal/staykit"
	"github.com/staykit/staykit/internal/staykit/ports"
)

// Runner owns the post-claim execution path shared by the time
// evaluator, the event service, and the retry controller: execute the
// chain, append the record, update the rule's summary counters on
// terminal outcomes, and hand failed attempts to the retry controller.
type Runner struct {
	rules        repository.RuleRepository
	ledger       repository.Ledger
	executor     *engine.ChainExecutor
	reservations ports.ReservationSource
	retries      *RetryController
}

func NewRunner(rules repository.RuleRepository, ledger repository.Ledger, executor *engine.ChainExecutor, reservations ports.ReservationSource) *Runner {
	return &Runner{
		rules:        rules,
		ledger:       ledger,
		executor:     executor,
		reservations: reservations,
	}
}

// SetRetryController wires the retry controller. Runner and controller
// reference each other, so one side is set after construction.
func (r *Runner) SetRetryController(retries *RetryController) {
	r.retries = retries
}

// Fire executes one claimed occurrence. res may be nil; the subject is
// then resolved from the reservation source so retries see current
// guest state rather than a replayed snapshot.
func (r *Runner) Fire(ctx context.Context, rule *staykit.AutomationRule, occ staykit.TriggerOccurrence, res *staykit.Reservation, payload map[string]any, attempt int) *staykit.ExecutionRecord {
	if res == nil {
		res = r.lookupSubject(ctx, occ.SubjectID)
	}

	record := r.executor.Execute(ctx, rule, occ, res, payload, attempt)
	if err := r.ledger.Append(ctx, record); err != nil {
		slog.Warn("runner: failed to append execution record",
			"rule", rule.ID, "err", err)
	}

	policy := rule.RetryPolicy
	retryable := record.Status == staykit.ChainFailed && policy != nil && policy.Enabled
	if retryable && attempt < policy.MaxAttempts {
		r.retries.Schedule(rule, occ, payload, attempt)
		slog.Info("runner: chain failed, retry scheduled",
			"rule", rule.ID, "occurrence", occ.Key(), "attempt", attempt)
		return record
	}

	r.recordOutcome(ctx, rule.ID, record, retryable)
	return record
}

// recordOutcome updates the rule's summary counters after a terminal
// attempt. The rule is re-read so concurrent edits are not clobbered.
func (r *Runner) recordOutcome(ctx context.Context, ruleID string, record *staykit.ExecutionRecord, exhausted bool) {
	rule, err := r.rules.Get(ctx, ruleID)
	if err != nil {
		// Rule deleted mid-flight; the record stands on its own.
		slog.Info("runner: rule gone before outcome update", "rule", ruleID)
		return
	}

	now := time.Now()
	rule.RunCount++
	rule.LastRunAt = &now

	switch {
	case record.Status == staykit.ChainFailed && exhausted:
		msg := ""
		if record.ErrorMessage != nil {
			msg = *record.ErrorMessage
		}
		errMsg := (&staykit.RetryExhaustedError{
			RuleID: ruleID, Attempts: record.Attempt, LastErr: msg,
		}).Error()
		rule.LastError = &errMsg
	case record.Status == staykit.ChainFailed:
		rule.LastError = record.ErrorMessage
	default:
		rule.LastError = nil
	}

	if err := r.rules.Update(ctx, rule); err != nil {
		slog.Warn("runner: failed to update rule counters", "rule", ruleID, "err", err)
	}
}

// lookupSubject resolves a reservation by subject id from current state.
// A missing reservation (checked out, cancelled) yields nil; event
// payload variables still flow into the context.
func (r *Runner) lookupSubject(ctx context.Context, subjectID string) *staykit.Reservation {
	if r.reservations == nil || subjectID == "" {
		return nil
	}
	reservations, err := r.reservations.OpenReservations(ctx, time.Now())
	if err != nil {
		slog.Warn("runner: reservation lookup failed", "subject", subjectID, "err", err)
		return nil
	}
	for i := range reservations {
		if reservations[i].SubjectID == subjectID {
			return &reservations[i]
		}
	}
	return nil
}
