package engine

import (
	"time"

	"github.com/wehubfusion/Daedalus/pkg/payload"
	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

// RetryPolicy bounds how transient executor failures are retried. Only
// failures the executor marks transient are retried; everything else is
// terminal on the first attempt.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first
	MaxAttempts int
	// BackoffBase is the delay before the first retry
	BackoffBase time.Duration
	// BackoffMax caps the exponentially growing delay
	BackoffMax time.Duration
}

// DefaultRetryPolicy retries transient failures twice with exponential
// backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BackoffBase: 500 * time.Millisecond,
		BackoffMax:  10 * time.Second,
	}
}

// Backoff returns the delay before the given retry. attempt is 1-based: the
// delay after the first failed attempt is BackoffBase, doubling per attempt
// up to BackoffMax.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.BackoffMax {
			return p.BackoffMax
		}
	}
	if p.BackoffMax > 0 && d > p.BackoffMax {
		return p.BackoffMax
	}
	return d
}

// retryPolicyForNode applies the node's "retry" configuration block over the
// engine default: {"max_attempts", "backoff_base_ms", "backoff_max_ms"}.
func retryPolicyForNode(node workflow.Node, def RetryPolicy) RetryPolicy {
	raw, ok := node.Configurations["retry"].(map[string]interface{})
	if !ok {
		return def
	}
	policy := def
	if f, ok := payload.ToFloat64(raw["max_attempts"]); ok && f >= 1 {
		policy.MaxAttempts = int(f)
	}
	if f, ok := payload.ToFloat64(raw["backoff_base_ms"]); ok && f >= 0 {
		policy.BackoffBase = time.Duration(f) * time.Millisecond
	}
	if f, ok := payload.ToFloat64(raw["backoff_max_ms"]); ok && f >= 0 {
		policy.BackoffMax = time.Duration(f) * time.Millisecond
	}
	return policy
}
