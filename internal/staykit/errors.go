package staykit

import (
	"fmt"
	"strings"
)

// ConfigurationError reports a rule that failed structural validation.
// It is surfaced synchronously to the caller and never reaches the
// executor.
type ConfigurationError struct {
	Fields []string // "trigger.time.anchor: required", ...
}

func (e *ConfigurationError) Error() string {
	return "invalid rule: " + strings.Join(e.Fields, "; ")
}

// DispatchError wraps a sender failure or timeout for a single step.
type DispatchError struct {
	StepID string
	Type   ActionType
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s step %q: %v", e.Type, e.StepID, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// RetryExhaustedError is the terminal state after a rule's retry policy
// runs out of attempts. It is surfaced via the rule's LastError; the rule
// is not disabled automatically.
type RetryExhaustedError struct {
	RuleID   string
	Attempts int
	LastErr  string
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %s", e.Attempts, e.LastErr)
}
