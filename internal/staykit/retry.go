package staykit

import "time"

// BackoffKind selects the delay strategy between retry attempts.
type BackoffKind string

const (
	BackoffFixed       BackoffKind = "fixed"
	BackoffExponential BackoffKind = "exponential"
)

// RetryPolicy defines how failed chains are retried.
type RetryPolicy struct {
	Enabled      bool          `json:"enabled" yaml:"enabled"`
	MaxAttempts  int           `json:"max_attempts" yaml:"max_attempts"`
	Backoff      BackoffKind   `json:"backoff" yaml:"backoff"`
	InitialDelay time.Duration `json:"initial_delay" yaml:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay" yaml:"max_delay"`
}

// DefaultRetryPolicy returns a sensible default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Enabled:      true,
		MaxAttempts:  3,
		Backoff:      BackoffExponential,
		InitialDelay: time.Minute,
		MaxDelay:     time.Hour,
	}
}

// Delay returns the wait before attempt+1, given the 1-based number of
// the attempt that just failed. Fixed backoff always waits InitialDelay;
// exponential doubles per attempt, capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if p.Backoff != BackoffExponential {
		return p.InitialDelay
	}
	delay := p.InitialDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}
