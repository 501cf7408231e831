package staykit

import (
	"fmt"
	"regexp"
	"sort"
)

var timeOfDayPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// TemplateChecker reports whether a named message template exists in the
// external template registry. A nil checker skips registry checks.
type TemplateChecker interface {
	Has(templateID string) bool
}

// Validate checks a rule for structural well-formedness without any side
// effects. It returns a *ConfigurationError naming every offending field,
// or nil when the rule is valid.
func Validate(rule *AutomationRule, templates TemplateChecker) error {
	var fields []string
	addf := func(format string, args ...any) {
		fields = append(fields, fmt.Sprintf(format, args...))
	}

	if rule.Name == "" {
		addf("name: required")
	}

	switch rule.Trigger.Kind {
	case TriggerTimeBased:
		t := rule.Trigger.Time
		if t == nil {
			addf("trigger.time: required for kind %q", TriggerTimeBased)
			break
		}
		switch t.Anchor {
		case AnchorBeforeArrival, AnchorAfterArrival, AnchorBeforeDeparture, AnchorAfterDeparture:
		default:
			addf("trigger.time.anchor: unknown anchor %q", t.Anchor)
		}
		if t.OffsetDays < 0 {
			addf("trigger.time.offset_days: must be >= 0")
		}
		if !timeOfDayPattern.MatchString(t.TimeOfDay) {
			addf("trigger.time.time_of_day: must be HH:MM, got %q", t.TimeOfDay)
		}
	case TriggerEventBased:
		e := rule.Trigger.Event
		if e == nil {
			addf("trigger.event: required for kind %q", TriggerEventBased)
			break
		}
		if e.EventType == "" {
			addf("trigger.event.event_type: required")
		}
	default:
		addf("trigger.kind: unknown kind %q", rule.Trigger.Kind)
	}

	if len(rule.Actions) == 0 {
		addf("actions: at least one step is required")
	}
	seen := make(map[string]bool, len(rule.Actions))
	lastOrder := -1 << 31
	for i, step := range rule.Actions {
		if step.ID == "" {
			addf("actions[%d].id: required", i)
		} else if seen[step.ID] {
			addf("actions[%d].id: duplicate step id %q", i, step.ID)
		}
		seen[step.ID] = true

		if step.Order <= lastOrder {
			addf("actions[%d].order: must be strictly increasing", i)
		}
		lastOrder = step.Order

		switch step.Condition {
		case "", CondAlways, CondPreviousSuccess, CondPreviousFailed:
		default:
			addf("actions[%d].condition: unknown condition %q", i, step.Condition)
		}

		validateStepConfig(i, step, templates, addf)
	}

	if p := rule.RetryPolicy; p != nil && p.Enabled {
		if p.MaxAttempts < 1 {
			addf("retry_policy.max_attempts: must be >= 1")
		}
		switch p.Backoff {
		case BackoffFixed, BackoffExponential:
		default:
			addf("retry_policy.backoff: unknown strategy %q", p.Backoff)
		}
		if p.InitialDelay <= 0 {
			addf("retry_policy.initial_delay: must be positive")
		}
		if p.MaxDelay < p.InitialDelay {
			addf("retry_policy.max_delay: must be >= initial_delay")
		}
	}

	if len(fields) > 0 {
		return &ConfigurationError{Fields: fields}
	}
	return nil
}

func validateStepConfig(i int, step ActionStep, templates TemplateChecker, addf func(string, ...any)) {
	has := func(key string) bool {
		v, ok := step.Config[key]
		if !ok {
			return false
		}
		s, isStr := v.(string)
		return !isStr || s != ""
	}

	switch step.Type {
	case ActionWebhook:
		if !has("url") {
			addf("actions[%d].config.url: required for webhook", i)
		}
	case ActionSendMessage:
		if !has("channel") {
			addf("actions[%d].config.channel: required for send_message", i)
		}
		switch {
		case has("template_id"):
			if templates != nil {
				if id, _ := step.Config["template_id"].(string); id != "" && !templates.Has(id) {
					addf("actions[%d].config.template_id: unknown template %q", i, id)
				}
			}
		case has("text"):
		default:
			addf("actions[%d].config: send_message needs template_id or text", i)
		}
	case ActionCreateTask:
		if !has("description") {
			addf("actions[%d].config.description: required for create_task", i)
		}
		if !has("department") {
			addf("actions[%d].config.department: required for create_task", i)
		}
	case ActionNotifyStaff:
		if !has("message") {
			addf("actions[%d].config.message: required for notify_staff", i)
		}
		if !has("role") {
			addf("actions[%d].config.role: required for notify_staff", i)
		}
	default:
		addf("actions[%d].type: unknown action type %q", i, step.Type)
	}
}

// RepairDraft normalizes a machine-generated rule draft in place: missing
// step ids are assigned, order values are renumbered into a strictly
// increasing sequence, and empty conditions default to always. It does
// not attempt semantic fixes; run Validate afterwards.
func RepairDraft(rule *AutomationRule) {
	sort.SliceStable(rule.Actions, func(i, j int) bool {
		return rule.Actions[i].Order < rule.Actions[j].Order
	})
	for i := range rule.Actions {
		step := &rule.Actions[i]
		if step.ID == "" {
			step.ID = fmt.Sprintf("step-%d", i+1)
		}
		step.Order = i + 1
		if step.Condition == "" {
			step.Condition = CondAlways
		}
		if step.Config == nil {
			step.Config = map[string]any{}
		}
	}
	if rule.Trigger.Kind == "" {
		switch {
		case rule.Trigger.Time != nil:
			rule.Trigger.Kind = TriggerTimeBased
		case rule.Trigger.Event != nil:
			rule.Trigger.Kind = TriggerEventBased
		}
	}
}
