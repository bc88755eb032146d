package engine

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/archive"
	"github.com/wehubfusion/Daedalus/pkg/events"
)

// Config controls engine behavior. Zero values are filled in by Validate.
type Config struct {
	// Logger receives engine diagnostics. Nil means no logging.
	Logger *zap.Logger
	// Sink receives per-transition events. Nil means events are discarded.
	Sink events.Sink
	// Archiver receives terminal run snapshots. Nil disables archival.
	Archiver archive.Archiver
	// Retry is the default retry policy for transient executor failures;
	// nodes override it through their "retry" configuration block.
	Retry RetryPolicy
	// RunTimeout bounds the whole run; zero means no timeout. Expiry behaves
	// like an explicit cancel.
	RunTimeout time.Duration
	// SummaryBytes caps input/output summaries attached to events.
	SummaryBytes int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Retry:        DefaultRetryPolicy(),
		SummaryBytes: 1024,
	}
}

// Validate normalizes the configuration in place.
func (c *Config) Validate() error {
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Sink == nil {
		c.Sink = events.NopSink{}
	}
	if c.Retry.MaxAttempts < 1 {
		c.Retry.MaxAttempts = 1
	}
	if c.Retry.BackoffBase < 0 || c.Retry.BackoffMax < 0 {
		return fmt.Errorf("retry backoff durations cannot be negative")
	}
	if c.RunTimeout < 0 {
		return fmt.Errorf("run timeout cannot be negative")
	}
	if c.SummaryBytes <= 0 {
		c.SummaryBytes = 1024
	}
	return nil
}

// WithLogger sets the logger.
func (c Config) WithLogger(logger *zap.Logger) Config {
	c.Logger = logger
	return c
}

// WithSink sets the event sink.
func (c Config) WithSink(sink events.Sink) Config {
	c.Sink = sink
	return c
}

// WithArchiver sets the terminal-run archiver.
func (c Config) WithArchiver(a archive.Archiver) Config {
	c.Archiver = a
	return c
}

// WithRetry sets the default retry policy.
func (c Config) WithRetry(p RetryPolicy) Config {
	c.Retry = p
	return c
}

// WithRunTimeout bounds the whole run.
func (c Config) WithRunTimeout(d time.Duration) Config {
	c.RunTimeout = d
	return c
}
