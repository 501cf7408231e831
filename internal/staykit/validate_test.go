package staykit

import (
	"strings"
	"testing"
	"time"
)

func validTimeRule() *AutomationRule {
	return &AutomationRule{
		Name:    "pre-arrival welcome",
		Enabled: true,
		Trigger: TriggerSpec{
			Kind: TriggerTimeBased,
			Time: &TimeTrigger{Anchor: AnchorBeforeArrival, OffsetDays: 3, TimeOfDay: "09:00"},
		},
		Actions: []ActionStep{
			{ID: "step-1", Order: 1, Type: ActionSendMessage, Config: map[string]any{
				"channel": "email", "text": "Welcome {{firstName}}",
			}},
		},
	}
}

func TestValidateAcceptsWellFormedRule(t *testing.T) {
	if err := Validate(validTimeRule(), nil); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsMalformedRules(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AutomationRule)
		wantMsg string
	}{
		{
			name: "webhook without url",
			mutate: func(r *AutomationRule) {
				r.Actions = []ActionStep{
					{ID: "step-1", Order: 1, Type: ActionWebhook, Config: map[string]any{"method": "POST"}},
				}
			},
			wantMsg: "config.url",
		},
		{
			name:    "missing name",
			mutate:  func(r *AutomationRule) { r.Name = "" },
			wantMsg: "name: required",
		},
		{
			name: "time trigger without spec",
			mutate: func(r *AutomationRule) {
				r.Trigger.Time = nil
			},
			wantMsg: "trigger.time",
		},
		{
			name: "bad time of day",
			mutate: func(r *AutomationRule) {
				r.Trigger.Time.TimeOfDay = "25:99"
			},
			wantMsg: "time_of_day",
		},
		{
			name: "unknown anchor",
			mutate: func(r *AutomationRule) {
				r.Trigger.Time.Anchor = "during_breakfast"
			},
			wantMsg: "anchor",
		},
		{
			name: "event trigger without type",
			mutate: func(r *AutomationRule) {
				r.Trigger = TriggerSpec{Kind: TriggerEventBased, Event: &EventTrigger{}}
			},
			wantMsg: "event_type",
		},
		{
			name:    "no actions",
			mutate:  func(r *AutomationRule) { r.Actions = nil },
			wantMsg: "at least one step",
		},
		{
			name: "duplicate step ids",
			mutate: func(r *AutomationRule) {
				r.Actions = append(r.Actions, ActionStep{
					ID: "step-1", Order: 2, Type: ActionWebhook, Config: map[string]any{"url": "https://x"},
				})
			},
			wantMsg: "duplicate step id",
		},
		{
			name: "non-increasing order",
			mutate: func(r *AutomationRule) {
				r.Actions = append(r.Actions, ActionStep{
					ID: "step-2", Order: 1, Type: ActionWebhook, Config: map[string]any{"url": "https://x"},
				})
			},
			wantMsg: "strictly increasing",
		},
		{
			name: "send_message without content",
			mutate: func(r *AutomationRule) {
				r.Actions[0].Config = map[string]any{"channel": "email"}
			},
			wantMsg: "template_id or text",
		},
		{
			name: "retry policy zero attempts",
			mutate: func(r *AutomationRule) {
				r.RetryPolicy = &RetryPolicy{Enabled: true, MaxAttempts: 0, Backoff: BackoffFixed, InitialDelay: time.Second, MaxDelay: time.Minute}
			},
			wantMsg: "max_attempts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := validTimeRule()
			tt.mutate(rule)

			err := Validate(rule, nil)
			if err == nil {
				t.Fatal("Validate() = nil, want ConfigurationError")
			}
			cfgErr, ok := err.(*ConfigurationError)
			if !ok {
				t.Fatalf("Validate() returned %T, want *ConfigurationError", err)
			}
			if !strings.Contains(cfgErr.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", cfgErr.Error(), tt.wantMsg)
			}
		})
	}
}

type fakeTemplates map[string]bool

func (f fakeTemplates) Has(id string) bool { return f[id] }

func TestValidateChecksTemplateRegistry(t *testing.T) {
	rule := validTimeRule()
	rule.Actions[0].Config = map[string]any{"channel": "email", "template_id": "welcome"}

	if err := Validate(rule, fakeTemplates{"welcome": true}); err != nil {
		t.Fatalf("known template: Validate() = %v, want nil", err)
	}

	err := Validate(rule, fakeTemplates{})
	if err == nil || !strings.Contains(err.Error(), "unknown template") {
		t.Fatalf("unknown template: Validate() = %v, want unknown template error", err)
	}
}

func TestRepairDraft(t *testing.T) {
	rule := &AutomationRule{
		Name: "draft",
		Trigger: TriggerSpec{
			Time: &TimeTrigger{Anchor: AnchorAfterArrival, OffsetDays: 0, TimeOfDay: "12:00"},
		},
		Actions: []ActionStep{
			{Order: 10, Type: ActionWebhook, Config: map[string]any{"url": "https://x"}},
			{Order: 5, Type: ActionCreateTask},
		},
	}

	RepairDraft(rule)

	if rule.Trigger.Kind != TriggerTimeBased {
		t.Errorf("kind = %q, want inferred %q", rule.Trigger.Kind, TriggerTimeBased)
	}
	// Steps keep relative order, renumbered from 1.
	if rule.Actions[0].Type != ActionCreateTask || rule.Actions[0].Order != 1 {
		t.Errorf("first step = %+v, want create_task at order 1", rule.Actions[0])
	}
	for i, step := range rule.Actions {
		if step.ID == "" {
			t.Errorf("step %d id not assigned", i)
		}
		if step.Condition != CondAlways {
			t.Errorf("step %d condition = %q, want %q", i, step.Condition, CondAlways)
		}
		if step.Config == nil {
			t.Errorf("step %d config not initialized", i)
		}
	}
}
