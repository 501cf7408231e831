package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/staykit/staykit/internal/dispatch"
	"github.com/staykit/staykit/internal/engine"
	"github.com/staykit/staykit/internal/repository"
	"github.com/staykit/staykit/internal/reservation"
	"github.com/staykit/staykit/internal/staykit"
)

// scriptedSender fails its first failUntil dispatches, then succeeds.
// failUntil < 0 means fail forever.
type scriptedSender struct {
	mu        sync.Mutex
	failUntil int
	calls     int
}

func (s *scriptedSender) Type() staykit.ActionType { return staykit.ActionSendMessage }

func (s *scriptedSender) Dispatch(_ context.Context, _ map[string]any) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failUntil < 0 || s.calls <= s.failUntil {
		return nil, errors.New("gateway unavailable")
	}
	return map[string]any{"messageId": "msg-1"}, nil
}

func (s *scriptedSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// harness wires the execution path against memory stores and a scripted
// sender.
type harness struct {
	rules   *repository.MemoryRuleRepository
	ledger  *repository.MemoryLedger
	source  *reservation.MemorySource
	sender  *scriptedSender
	runner  *Runner
	retries *RetryController
}

func newHarness(failUntil int, reservations ...staykit.Reservation) *harness {
	sender := &scriptedSender{failUntil: failUntil}
	registry := dispatch.NewRegistry()
	registry.Register(sender)

	rules := repository.NewMemoryRuleRepository()
	ledger := repository.NewMemoryLedger()
	source := reservation.NewMemorySource(reservations...)
	executor := engine.NewChainExecutor(registry, engine.NewTemplateStore(nil), time.Second)

	runner := NewRunner(rules, ledger, executor, source)
	retries := NewRetryController(rules, ledger, runner)
	runner.SetRetryController(retries)

	return &harness{
		rules:   rules,
		ledger:  ledger,
		source:  source,
		sender:  sender,
		runner:  runner,
		retries: retries,
	}
}

func messageRule(id string, retry *staykit.RetryPolicy) *staykit.AutomationRule {
	return &staykit.AutomationRule{
		ID:      id,
		Name:    "rule " + id,
		Enabled: true,
		Trigger: staykit.TriggerSpec{
			Kind: staykit.TriggerTimeBased,
			Time: &staykit.TimeTrigger{Anchor: staykit.AnchorBeforeArrival, OffsetDays: 3, TimeOfDay: "09:00"},
		},
		Actions: []staykit.ActionStep{
			{ID: "step-1", Order: 1, Type: staykit.ActionSendMessage, Condition: staykit.CondAlways,
				Config: map[string]any{"channel": "email", "text": "Hi {{firstName}}"}},
		},
		RetryPolicy: retry,
		CreatedAt:   time.Now(),
	}
}

func eventRule(id, eventType, filter string) *staykit.AutomationRule {
	return &staykit.AutomationRule{
		ID:      id,
		Name:    "rule " + id,
		Enabled: true,
		Trigger: staykit.TriggerSpec{
			Kind:  staykit.TriggerEventBased,
			Event: &staykit.EventTrigger{EventType: eventType, Filter: filter},
		},
		Actions: []staykit.ActionStep{
			{ID: "step-1", Order: 1, Type: staykit.ActionSendMessage, Condition: staykit.CondAlways,
				Config: map[string]any{"channel": "sms", "text": "noted"}},
		},
		CreatedAt: time.Now(),
	}
}

func stayReservation(subjectID string, arrival time.Time, nights int) staykit.Reservation {
	return staykit.Reservation{
		SubjectID:     subjectID,
		ArrivalDate:   arrival,
		DepartureDate: arrival.AddDate(0, 0, nights),
		GuestVariables: map[string]any{
			"firstName":  "Ana",
			"roomNumber": "204",
		},
	}
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
