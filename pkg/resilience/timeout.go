package resilience

import (
	"context"
	"time"
)

// TimeoutConfig defines timeout values for the application's timeout hierarchy
//
// Timeout Hierarchy (from outermost to innermost):
//
//	Scheduled run (30m, configured on the scheduler)
//	  ↓
//	Gateway submission attempt (10s per attempt, retried with backoff)
//	Broker notification (5s per message)
//
// Each inner layer completes before its parent times out, preventing
// cascading timeout failures.
type TimeoutConfig struct {
	// GatewayAttempt bounds a single payout submission attempt. Retries get
	// a fresh window each.
	GatewayAttempt time.Duration

	// Notification bounds a single broker publish.
	Notification time.Duration
}

// DefaultTimeoutConfig returns production timeout values
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		GatewayAttempt: 10 * time.Second,
		Notification:   5 * time.Second,
	}
}

// TestTimeoutConfig returns shorter timeouts for testing
func TestTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		GatewayAttempt: time.Second,
		Notification:   time.Second,
	}
}

// GatewayAttemptContext creates a context for a single gateway submission
// attempt
func (tc *TimeoutConfig) GatewayAttemptContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.GatewayAttempt)
}

// NotificationContext creates a context for a single broker publish
func (tc *TimeoutConfig) NotificationContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Notification)
}
