package services

import (
	"context"
	"log/slog"

	"github.com/expr-lang/expr"

	"github.com/staykit/staykit/internal/engine"
	"github.com/staykit/staykit/internal/repository"
	"github.com/staykit/staykit/internal/staykit"
)

// EventService subscribes to the event bus and fires every enabled
// event-based rule whose event type matches. The event's own id is the
// occurrence bucket, so redelivered events dedup naturally at the
// ledger.
type EventService struct {
	rules  repository.RuleRepository
	ledger repository.Ledger
	runner *Runner
}

func NewEventService(rules repository.RuleRepository, ledger repository.Ledger, runner *Runner) *EventService {
	return &EventService{rules: rules, ledger: ledger, runner: runner}
}

// Start subscribes to the bus. Handlers run on the publisher's
// goroutine; chain execution within a handler is sequential per event
// but independent events may be handled concurrently.
func (s *EventService) Start(bus *engine.Bus) {
	bus.Subscribe(func(ev staykit.Event) {
		s.HandleEvent(context.Background(), ev)
	})
	slog.Info("events: subscribed")
}

// HandleEvent resolves and fires all rules matching the event.
func (s *EventService) HandleEvent(ctx context.Context, ev staykit.Event) {
	rules, err := s.rules.ListEnabled(ctx, staykit.TriggerEventBased)
	if err != nil {
		slog.Error("events: list rules failed", "err", err)
		return
	}

	for _, rule := range rules {
		trigger := rule.Trigger.Event
		if trigger == nil || trigger.EventType != ev.Type {
			continue
		}
		if !matchFilter(trigger.Filter, ev.Payload) {
			continue
		}

		occ := staykit.TriggerOccurrence{
			RuleID:    rule.ID,
			SubjectID: ev.EntityID,
			Bucket:    ev.ID,
		}

		claimed, err := s.ledger.TryClaim(ctx, occ)
		if err != nil {
			slog.Warn("events: claim failed", "occurrence", occ.Key(), "err", err)
			continue
		}
		if !claimed {
			// Duplicate delivery; drop silently.
			slog.Debug("events: duplicate occurrence", "occurrence", occ.Key())
			continue
		}

		slog.Info("events: rule fired", "rule", rule.ID, "event", ev.ID, "type", ev.Type)
		s.runner.Fire(ctx, rule, occ, nil, ev.Payload, 1)
	}
}

// matchFilter evaluates an expr filter against the event payload. An
// empty filter matches; any compile or runtime error counts as false.
func matchFilter(filter string, payload map[string]any) bool {
	if filter == "" {
		return true
	}

	env := make(map[string]any, len(payload))
	for k, v := range payload {
		env[k] = v
	}

	program, err := expr.Compile(filter, expr.Env(env))
	if err != nil {
		slog.Warn("events: filter compile failed", "filter", filter, "err", err)
		return false
	}
	result, err := expr.Run(program, env)
	if err != nil {
		slog.Warn("events: filter evaluation failed", "filter", filter, "err", err)
		return false
	}

	b, ok := result.(bool)
	return ok && b
}
