package marketplace

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_IsRetryable(t *testing.T) {
	p := DefaultRetryPolicy()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"server error", &ClientError{StatusCode: 503}, true},
		{"wrapped server error", fmt.Errorf("page 2: %w", &ClientError{StatusCode: 500}), true},
		{"transport failure", &ClientError{StatusCode: 0, Message: "connection refused"}, true},
		{"rate limited", &ClientError{StatusCode: 429}, true},
		{"bad request", &ClientError{StatusCode: 400}, false},
		{"unauthorized", &ClientError{StatusCode: 401}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.IsRetryable(tt.err))
		})
	}
}

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 2, RetryAllServerErrors: true}
	err := &ClientError{StatusCode: 502}

	assert.True(t, p.ShouldRetry(err, 1))
	assert.False(t, p.ShouldRetry(err, 2))
	assert.False(t, p.ShouldRetry(&ClientError{StatusCode: 404}, 1))
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{Delays: []time.Duration{time.Second, 3 * time.Second}}

	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 3*time.Second, p.Delay(2))
	assert.Equal(t, 3*time.Second, p.Delay(5))
	assert.Equal(t, time.Duration(0), RetryPolicy{}.Delay(1))
}

func TestClientError(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := &ClientError{Account: AccountFBE, Message: "request failed", Err: cause}

	assert.True(t, err.Transient())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "marketplace FBE: request failed", err.Error())

	err = &ClientError{Account: AccountMain, StatusCode: 401, Message: "invalid credentials"}
	assert.False(t, err.Transient())
	assert.Equal(t, "marketplace MAIN: HTTP 401: invalid credentials", err.Error())
}
