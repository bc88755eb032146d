package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConfigValidateFillsDefaults(t *testing.T) {
	cfg := Config{}
	require.NoError(t, cfg.Validate())
	assert.NotNil(t, cfg.Logger)
	assert.NotNil(t, cfg.Sink)
	assert.Equal(t, 1, cfg.Retry.MaxAttempts)
	assert.Equal(t, 1024, cfg.SummaryBytes)
}

func TestConfigValidateRejectsNegatives(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RunTimeout = -time.Second
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Retry.BackoffBase = -time.Millisecond
	assert.Error(t, cfg.Validate())
}

func TestConfigBuilders(t *testing.T) {
	logger := zap.NewNop()
	sink := &capturingSink{}
	cfg := DefaultConfig().
		WithLogger(logger).
		WithSink(sink).
		WithRunTimeout(5 * time.Second).
		WithRetry(RetryPolicy{MaxAttempts: 2, BackoffBase: time.Millisecond, BackoffMax: time.Second})

	assert.Same(t, logger, cfg.Logger)
	assert.Equal(t, 5*time.Second, cfg.RunTimeout)
	assert.Equal(t, 2, cfg.Retry.MaxAttempts)

	// builders copy; the original default is untouched
	base := DefaultConfig()
	_ = base.WithRunTimeout(time.Minute)
	assert.Equal(t, time.Duration(0), base.RunTimeout)
}
