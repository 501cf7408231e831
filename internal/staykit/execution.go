package staykit

import "time"

// ChainStatus is the terminal status of one chain attempt.
type ChainStatus string

const (
	ChainSuccess ChainStatus = "success"
	ChainFailed  ChainStatus = "failed"
	ChainPartial ChainStatus = "partial"
)

// StepStatus is the per-step outcome within a chain attempt.
type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// StepResult records one action step's outcome within an attempt.
type StepResult struct {
	StepID     string         `json:"step_id"`
	Status     StepStatus     `json:"status"`
	Output     map[string]any `json:"output,omitempty"`
	Error      *string        `json:"error,omitempty"`
	SkipReason string         `json:"skip_reason,omitempty"`
	Warnings   []string       `json:"warnings,omitempty"`
}

// ExecutionRecord captures a single chain attempt with full provenance.
// Records are append-only and never mutated after write.
type ExecutionRecord struct {
	ID           string       `json:"id"`
	RuleID       string       `json:"rule_id"`
	SubjectID    string       `json:"subject_id"`
	Bucket       string       `json:"bucket"`
	Attempt      int          `json:"attempt"` // 1-based, counting the initial execution
	TriggerKind  TriggerKind  `json:"trigger_kind"`
	Status       ChainStatus  `json:"status"`
	StepResults  []StepResult `json:"step_results"`
	ErrorMessage *string      `json:"error_message,omitempty"`
	DurationMs   int64        `json:"duration_ms"`
	CreatedAt    time.Time    `json:"created_at"`
}

// TriggerOccurrence identifies one logical firing of a rule for a subject
// within a time bucket. It is the unit of idempotency: the ledger admits
// at most one claim per occurrence key at a time.
type TriggerOccurrence struct {
	RuleID    string
	SubjectID string
	Bucket    string
}

// Key returns the ledger claim key for the occurrence.
func (o TriggerOccurrence) Key() string {
	return o.RuleID + "|" + o.SubjectID + "|" + o.Bucket
}

// Event is a domain event delivered by the property's event bus.
// IDs are assumed unique and stable, giving event-based rules natural
// deduplication.
type Event struct {
	Type     string         `json:"type"`
	EntityID string         `json:"entity_id"`
	ID       string         `json:"id"`
	Payload  map[string]any `json:"payload,omitempty"`
}

// Reservation is the engine's view of an open stay, supplied by the
// property management system.
type Reservation struct {
	SubjectID      string         `json:"subject_id"`
	ArrivalDate    time.Time      `json:"arrival_date"`
	DepartureDate  time.Time      `json:"departure_date"`
	GuestVariables map[string]any `json:"guest_variables,omitempty"`
}
