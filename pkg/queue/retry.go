package queue

import (
	"fmt"
	"time"
)

// RetryPolicy decides, after a failed execution, whether the job gets
// another attempt and how long it must wait before becoming eligible again.
// The policy is stateless; attempts is the job's post-increment failure
// count.
type RetryPolicy struct {
	// MaxAttempts is the number of failed executions after which the job is
	// terminally failed.
	MaxAttempts int

	// BaseDelay is the backoff unit: the delay after the nth failure is
	// BaseDelay * 2^n.
	BaseDelay time.Duration

	// MaxDelay caps the computed backoff.
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns the policy shared by all Reverie queues:
// three attempts with exponential backoff capped at one minute.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    60 * time.Second,
	}
}

// Validate checks the policy is usable.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("MaxAttempts must be >= 1, got %d", p.MaxAttempts)
	}
	if p.BaseDelay <= 0 {
		return fmt.Errorf("BaseDelay must be > 0, got %v", p.BaseDelay)
	}
	if p.MaxDelay < p.BaseDelay {
		return fmt.Errorf("MaxDelay (%v) must be >= BaseDelay (%v)", p.MaxDelay, p.BaseDelay)
	}
	return nil
}

// Decide returns the backoff delay before the next attempt and true, or
// zero and false when attempts have been exhausted.
//
// delay(n) = min(BaseDelay * 2^n, MaxDelay), non-decreasing in n.
func (p RetryPolicy) Decide(attempts int) (time.Duration, bool) {
	if attempts >= p.MaxAttempts {
		return 0, false
	}
	delay := p.BaseDelay
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay, true
		}
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay, true
}
