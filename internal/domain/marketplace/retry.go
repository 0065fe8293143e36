package marketplace

import (
	"errors"
	"time"
)

// RetryPolicy decides whether a failed page fetch is retried and how long to wait.
// Attempts are counted from 1; MaxAttempts includes the first try.
type RetryPolicy struct {
	MaxAttempts          int
	RetryableStatusCodes []int
	RetryAllServerErrors bool
	Delays               []time.Duration
}

// DefaultRetryPolicy retries 5xx and transport failures up to three attempts
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:          3,
		RetryableStatusCodes: []int{429},
		RetryAllServerErrors: true,
		Delays:               []time.Duration{time.Second, 2 * time.Second, 4 * time.Second},
	}
}

// IsRetryable returns true if err is a transient client failure under this policy
func (p RetryPolicy) IsRetryable(err error) bool {
	var ce *ClientError
	if !errors.As(err, &ce) {
		return false
	}
	if ce.StatusCode == 0 {
		return true
	}
	if p.RetryAllServerErrors && ce.StatusCode >= 500 {
		return true
	}
	for _, code := range p.RetryableStatusCodes {
		if ce.StatusCode == code {
			return true
		}
	}
	return false
}

// ShouldRetry returns true if a failed attempt may be followed by another one
func (p RetryPolicy) ShouldRetry(err error, attempt int) bool {
	return attempt < p.MaxAttempts && p.IsRetryable(err)
}

// Delay returns the wait before the attempt following attempt.
// The last delay repeats once the schedule is exhausted.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if len(p.Delays) == 0 || attempt < 1 {
		return 0
	}
	if attempt > len(p.Delays) {
		return p.Delays[len(p.Delays)-1]
	}
	return p.Delays[attempt-1]
}
