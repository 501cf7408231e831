package staykit

import "time"

// TriggerKind discriminates the trigger union.
type TriggerKind string

const (
	TriggerTimeBased  TriggerKind = "time_based"
	TriggerEventBased TriggerKind = "event_based"
)

// Anchor names the reservation date a time-based trigger offsets from.
type Anchor string

const (
	AnchorBeforeArrival   Anchor = "before_arrival"
	AnchorAfterArrival    Anchor = "after_arrival"
	AnchorBeforeDeparture Anchor = "before_departure"
	AnchorAfterDeparture  Anchor = "after_departure"
)

// TimeTrigger fires at a fixed offset from a reservation's arrival or
// departure date, at a given time of day in the property timezone.
type TimeTrigger struct {
	Anchor     Anchor `json:"anchor" yaml:"anchor"`
	OffsetDays int    `json:"offset_days" yaml:"offset_days"`
	TimeOfDay  string `json:"time_of_day" yaml:"time_of_day"` // "HH:MM"
}

// EventTrigger fires when a matching domain event arrives on the bus.
// Filter is an optional expr-lang expression evaluated against the event
// payload; an empty filter matches every event of the type.
type EventTrigger struct {
	EventType string `json:"event_type" yaml:"event_type"`
	Filter    string `json:"filter,omitempty" yaml:"filter,omitempty"`
}

// TriggerSpec is a tagged union: exactly one of Time or Event is set,
// matching Kind. Validate enforces the invariant at the boundary.
type TriggerSpec struct {
	Kind  TriggerKind   `json:"kind" yaml:"kind"`
	Time  *TimeTrigger  `json:"time,omitempty" yaml:"time,omitempty"`
	Event *EventTrigger `json:"event,omitempty" yaml:"event,omitempty"`
}

// ActionType identifies which external sender handles a step.
type ActionType string

const (
	ActionSendMessage ActionType = "send_message"
	ActionCreateTask  ActionType = "create_task"
	ActionNotifyStaff ActionType = "notify_staff"
	ActionWebhook     ActionType = "webhook"
)

// StepCondition gates a step on the outcome of the last executed step.
type StepCondition string

const (
	CondAlways          StepCondition = "always"
	CondPreviousSuccess StepCondition = "previous_success"
	CondPreviousFailed  StepCondition = "previous_failed"
)

// ActionStep is one link of a rule's action chain. Config values may
// contain {{placeholder}} tokens substituted from the execution context.
type ActionStep struct {
	ID              string         `json:"id" yaml:"id"`
	Order           int            `json:"order" yaml:"order"`
	Type            ActionType     `json:"type" yaml:"type"`
	Config          map[string]any `json:"config" yaml:"config"`
	Condition       StepCondition  `json:"condition,omitempty" yaml:"condition,omitempty"`
	ContinueOnError bool           `json:"continue_on_error,omitempty" yaml:"continue_on_error,omitempty"`
}

// AutomationRule is the persisted unit of automation. The engine mutates
// only RunCount, LastRunAt and LastError; everything else belongs to the
// CRUD surface.
type AutomationRule struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Enabled     bool         `json:"enabled"`
	Trigger     TriggerSpec  `json:"trigger"`
	Actions     []ActionStep `json:"actions"`
	RetryPolicy *RetryPolicy `json:"retry_policy,omitempty"`
	RunCount    int          `json:"run_count"`
	LastRunAt   *time.Time   `json:"last_run_at,omitempty"`
	LastError   *string      `json:"last_error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
