package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// JetStreamPublisher is the slice of the JetStream context the sink needs;
// nats.JetStreamContext satisfies it, and tests substitute fakes.
type JetStreamPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATSSinkConfig configures the JetStream event sink.
type NATSSinkConfig struct {
	// Subject is the JetStream subject events are published to
	Subject string
	// MaxRetries is how many times a failed publish is retried
	MaxRetries int
	// RetryDelay is the wait between publish retries
	RetryDelay time.Duration
}

// DefaultNATSSinkConfig returns the default sink configuration.
func DefaultNATSSinkConfig() NATSSinkConfig {
	return NATSSinkConfig{
		Subject:    "workflow.events",
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

// NATSSink publishes events to a JetStream subject as JSON messages.
type NATSSink struct {
	js     JetStreamPublisher
	config NATSSinkConfig
	logger *zap.Logger
}

// NewNATSSink creates a sink over an established JetStream context.
func NewNATSSink(js JetStreamPublisher, config NATSSinkConfig, logger *zap.Logger) (*NATSSink, error) {
	if js == nil {
		return nil, fmt.Errorf("jetstream context cannot be nil")
	}
	if config.Subject == "" {
		config.Subject = DefaultNATSSinkConfig().Subject
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSSink{js: js, config: config, logger: logger}, nil
}

// Publish encodes the event and publishes it, retrying failed attempts up to
// the configured count.
func (s *NATSSink) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", event.ID, err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.config.RetryDelay):
			}
			s.logger.Warn("retrying event publish",
				zap.String("event_id", event.ID),
				zap.String("subject", s.config.Subject),
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr))
		}
		if _, lastErr = s.js.Publish(s.config.Subject, data, nats.Context(ctx)); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("publishing event %s to %s: %w", event.ID, s.config.Subject, lastErr)
}
