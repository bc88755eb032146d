package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

func TestBackoffDoublesAndCaps(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, BackoffBase: 100 * time.Millisecond, BackoffMax: 500 * time.Millisecond}

	assert.Equal(t, 100*time.Millisecond, policy.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, policy.Backoff(2))
	assert.Equal(t, 400*time.Millisecond, policy.Backoff(3))
	assert.Equal(t, 500*time.Millisecond, policy.Backoff(4), "capped at max")
	assert.Equal(t, 500*time.Millisecond, policy.Backoff(10))
}

func TestRetryPolicyForNodeOverrides(t *testing.T) {
	node := workflow.Node{
		ID: "n", Type: workflow.NodeTypeAction,
		Configurations: map[string]interface{}{
			"retry": map[string]interface{}{
				"max_attempts":    float64(7),
				"backoff_base_ms": float64(50),
				"backoff_max_ms":  float64(200),
			},
		},
	}
	policy := retryPolicyForNode(node, DefaultRetryPolicy())
	assert.Equal(t, 7, policy.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, policy.BackoffBase)
	assert.Equal(t, 200*time.Millisecond, policy.BackoffMax)
}

func TestRetryPolicyForNodeFallsBack(t *testing.T) {
	def := DefaultRetryPolicy()
	policy := retryPolicyForNode(workflow.Node{ID: "n"}, def)
	assert.Equal(t, def, policy)

	partial := workflow.Node{
		ID: "n",
		Configurations: map[string]interface{}{
			"retry": map[string]interface{}{"max_attempts": float64(2)},
		},
	}
	policy = retryPolicyForNode(partial, def)
	assert.Equal(t, 2, policy.MaxAttempts)
	assert.Equal(t, def.BackoffBase, policy.BackoffBase)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(NewTransientError("n", "timeout", nil)))
	assert.False(t, IsTransient(NewPermanentError("n", "bad input", nil)))
	assert.False(t, IsTransient(errors.New("plain")))

	wrapped := errors.Join(errors.New("outer"), NewTransientError("n", "inner", nil))
	assert.True(t, IsTransient(wrapped))
}

func TestNodeExecutionErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp refused")
	err := NewTransientError("n1", "connect failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "n1")
	assert.Contains(t, err.Error(), "connect failed")
}
