package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/staykit/staykit/internal/staykit"
)

func fastRetryPolicy(maxAttempts int) *staykit.RetryPolicy {
	return &staykit.RetryPolicy{
		Enabled:      true,
		MaxAttempts:  maxAttempts,
		Backoff:      staykit.BackoffFixed,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     time.Second,
	}
}

func fireOnce(t *testing.T, h *harness, rule *staykit.AutomationRule, res staykit.Reservation) staykit.TriggerOccurrence {
	t.Helper()
	ctx := context.Background()
	if err := h.rules.Create(ctx, rule); err != nil {
		t.Fatalf("Create returned unexpected error: %v", err)
	}
	occ := staykit.TriggerOccurrence{RuleID: rule.ID, SubjectID: res.SubjectID, Bucket: "2024-06-07"}
	claimed, err := h.ledger.TryClaim(ctx, occ)
	if err != nil || !claimed {
		t.Fatalf("TryClaim = %v, %v", claimed, err)
	}
	h.runner.Fire(ctx, rule, occ, &res, nil, 1)
	return occ
}

func TestRetryExhaustsAfterMaxAttempts(t *testing.T) {
	arrival := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	res := stayReservation("res-1", arrival, 4)
	h := newHarness(-1, res) // every dispatch fails
	ctx := context.Background()

	rule := messageRule("rule-1", fastRetryPolicy(3))
	fireOnce(t, h, rule, res)

	ok := waitFor(2*time.Second, func() bool {
		_, total, _ := h.ledger.ListByRule(ctx, "rule-1", 10, 0)
		return total == 3 && h.retries.PendingCount("rule-1") == 0
	})
	if !ok {
		_, total, _ := h.ledger.ListByRule(ctx, "rule-1", 10, 0)
		t.Fatalf("executions = %d pending = %d, want 3/0", total, h.retries.PendingCount("rule-1"))
	}

	records, _, _ := h.ledger.ListByRule(ctx, "rule-1", 10, 0)
	attempts := map[int]bool{}
	for _, rec := range records {
		if rec.Status != staykit.ChainFailed {
			t.Errorf("attempt %d status = %q, want failed", rec.Attempt, rec.Status)
		}
		attempts[rec.Attempt] = true
	}
	for n := 1; n <= 3; n++ {
		if !attempts[n] {
			t.Errorf("missing record for attempt %d", n)
		}
	}

	// No fourth attempt arrives later.
	time.Sleep(50 * time.Millisecond)
	if _, total, _ := h.ledger.ListByRule(ctx, "rule-1", 10, 0); total != 3 {
		t.Errorf("executions = %d, want exactly 3", total)
	}

	updated, _ := h.rules.Get(ctx, "rule-1")
	if updated.RunCount != 1 {
		t.Errorf("RunCount = %d, want 1 per occurrence", updated.RunCount)
	}
	if updated.LastError == nil || !strings.Contains(*updated.LastError, "retries exhausted after 3 attempts") {
		t.Errorf("LastError = %v, want retries exhausted message", updated.LastError)
	}
	if !updated.Enabled {
		t.Error("rule disabled after exhaustion, want still enabled")
	}
}

func TestRetrySucceedsOnSecondAttempt(t *testing.T) {
	arrival := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	res := stayReservation("res-1", arrival, 4)
	h := newHarness(1, res) // first dispatch fails, then succeeds
	ctx := context.Background()

	rule := messageRule("rule-1", fastRetryPolicy(3))
	fireOnce(t, h, rule, res)

	ok := waitFor(2*time.Second, func() bool {
		_, total, _ := h.ledger.ListByRule(ctx, "rule-1", 10, 0)
		return total == 2
	})
	if !ok {
		t.Fatal("second attempt never recorded")
	}

	records, _, _ := h.ledger.ListByRule(ctx, "rule-1", 10, 0)
	// Newest first.
	if records[0].Attempt != 2 || records[0].Status != staykit.ChainSuccess {
		t.Errorf("attempt 2 = %s, want success", records[0].Status)
	}
	if records[1].Attempt != 1 || records[1].Status != staykit.ChainFailed {
		t.Errorf("attempt 1 = %s, want failed", records[1].Status)
	}

	if !waitFor(time.Second, func() bool {
		updated, _ := h.rules.Get(ctx, "rule-1")
		return updated.RunCount == 1 && updated.LastError == nil
	}) {
		updated, _ := h.rules.Get(ctx, "rule-1")
		t.Errorf("rule after success = count %d err %v, want 1/nil", updated.RunCount, updated.LastError)
	}
}

func TestRetryWithoutPolicyIsTerminal(t *testing.T) {
	arrival := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	res := stayReservation("res-1", arrival, 4)
	h := newHarness(-1, res)
	ctx := context.Background()

	rule := messageRule("rule-1", nil)
	fireOnce(t, h, rule, res)

	if pending := h.retries.PendingCount("rule-1"); pending != 0 {
		t.Errorf("pending retries = %d, want 0 without a policy", pending)
	}
	updated, _ := h.rules.Get(ctx, "rule-1")
	if updated.RunCount != 1 || updated.LastError == nil {
		t.Errorf("rule = count %d err %v, want terminal failure recorded", updated.RunCount, updated.LastError)
	}
}

func TestRetryDroppedWhenRuleDisabled(t *testing.T) {
	arrival := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	res := stayReservation("res-1", arrival, 4)
	h := newHarness(-1, res)
	ctx := context.Background()

	rule := messageRule("rule-1", &staykit.RetryPolicy{
		Enabled:      true,
		MaxAttempts:  3,
		Backoff:      staykit.BackoffFixed,
		InitialDelay: 30 * time.Millisecond,
		MaxDelay:     time.Second,
	})
	fireOnce(t, h, rule, res)

	if h.retries.PendingCount("rule-1") != 1 {
		t.Fatalf("pending = %d, want 1 armed retry", h.retries.PendingCount("rule-1"))
	}

	// Disable before the timer fires; the stale timer drops out without a
	// record.
	rule.Enabled = false
	if err := h.rules.Update(ctx, rule); err != nil {
		t.Fatalf("Update returned unexpected error: %v", err)
	}

	if !waitFor(time.Second, func() bool { return h.retries.PendingCount("rule-1") == 0 }) {
		t.Fatal("retry timer never fired")
	}
	time.Sleep(20 * time.Millisecond)
	if _, total, _ := h.ledger.ListByRule(ctx, "rule-1", 10, 0); total != 1 {
		t.Errorf("executions = %d, want only the original attempt", total)
	}
}

func TestCancelRuleStopsPendingRetries(t *testing.T) {
	arrival := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	res := stayReservation("res-1", arrival, 4)
	h := newHarness(-1, res)
	ctx := context.Background()

	rule := messageRule("rule-1", &staykit.RetryPolicy{
		Enabled:      true,
		MaxAttempts:  3,
		Backoff:      staykit.BackoffFixed,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
	})
	fireOnce(t, h, rule, res)

	h.retries.CancelRule("rule-1")
	if pending := h.retries.PendingCount("rule-1"); pending != 0 {
		t.Fatalf("pending = %d after cancel, want 0", pending)
	}

	time.Sleep(100 * time.Millisecond)
	if _, total, _ := h.ledger.ListByRule(ctx, "rule-1", 10, 0); total != 1 {
		t.Errorf("executions = %d, want cancelled retry not to run", total)
	}
}

func TestRetryUsesCurrentGuestState(t *testing.T) {
	arrival := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	res := stayReservation("res-1", arrival, 4)
	h := newHarness(1, res)
	ctx := context.Background()

	rule := messageRule("rule-1", fastRetryPolicy(2))
	fireOnce(t, h, rule, res)

	// Guest data corrected between attempts.
	updatedRes := res
	updatedRes.GuestVariables = map[string]any{"firstName": "Anastasia"}
	h.source.Set([]staykit.Reservation{updatedRes})

	if !waitFor(2*time.Second, func() bool {
		_, total, _ := h.ledger.ListByRule(ctx, "rule-1", 10, 0)
		return total == 2
	}) {
		t.Fatal("retry never recorded")
	}
	if got := h.sender.callCount(); got != 2 {
		t.Errorf("sender calls = %d, want 2", got)
	}
}
