// Package nats manages the NATS connection and JetStream stream used for
// workflow event publishing. Hosts connect here and hand the JetStream
// context to an events.NATSSink.
package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// ConnectionConfig holds NATS connection and event stream settings.
type ConnectionConfig struct {
	// URL is the NATS server URL (e.g., "nats://localhost:4222")
	URL string

	// Name identifies this client on the server
	Name string

	// MaxReconnects bounds reconnection attempts; -1 means unlimited
	MaxReconnects int

	// ReconnectWait is the delay between reconnection attempts
	ReconnectWait time.Duration

	// Timeout is the initial connection timeout
	Timeout time.Duration

	// Token is an optional authentication token
	Token string

	// Username and Password are optional credentials
	Username string
	Password string

	// EventStream is the JetStream stream that retains workflow events.
	// Environment-specific names (EVENTS_UAT, EVENTS_PROD) are expected.
	EventStream string

	// EventSubjects are the subjects bound to the event stream. The engine
	// publishes on a single subject; wildcards allow per-workflow fan-out
	// later.
	EventSubjects []string

	// EventRetention bounds how long the stream keeps events; zero keeps
	// the server default.
	EventRetention time.Duration
}

// DefaultConnectionConfig returns a configuration with engine defaults.
func DefaultConnectionConfig(url string) *ConnectionConfig {
	return &ConnectionConfig{
		URL:           url,
		Name:          "daedalus-engine",
		MaxReconnects: 10,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
		EventStream:   "WORKFLOW_EVENTS",
		EventSubjects: []string{"workflow.events"},
	}
}

// Connect establishes the NATS connection. The context bounds the initial
// dial; reconnection afterwards is handled by the client per the config.
func Connect(ctx context.Context, config *ConnectionConfig, logger *zap.Logger) (*nats.Conn, error) {
	if config == nil {
		return nil, fmt.Errorf("connection config cannot be nil")
	}
	if config.URL == "" {
		return nil, fmt.Errorf("NATS URL cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []nats.Option{
		nats.Name(config.Name),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.Timeout(config.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	if config.Token != "" {
		opts = append(opts, nats.Token(config.Token))
	} else if config.Username != "" && config.Password != "" {
		opts = append(opts, nats.UserInfo(config.Username, config.Password))
	}

	type result struct {
		conn *nats.Conn
		err  error
	}
	resultCh := make(chan result, 1)
	go func() {
		conn, err := nats.Connect(config.URL, opts...)
		resultCh <- result{conn: conn, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("connection cancelled: %w", ctx.Err())
	case res := <-resultCh:
		if res.err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", res.err)
		}
		return res.conn, nil
	}
}

// EnsureEventStream creates or updates the JetStream stream that retains
// workflow events, and returns the JetStream context for publishing.
func EnsureEventStream(conn *nats.Conn, config *ConnectionConfig) (nats.JetStreamContext, error) {
	if conn == nil {
		return nil, fmt.Errorf("connection is required")
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	streamConfig := &nats.StreamConfig{
		Name:     config.EventStream,
		Subjects: config.EventSubjects,
		Storage:  nats.FileStorage,
		MaxAge:   config.EventRetention,
	}
	if _, err := js.StreamInfo(config.EventStream); err != nil {
		if _, err := js.AddStream(streamConfig); err != nil {
			return nil, fmt.Errorf("create event stream %s: %w", config.EventStream, err)
		}
	} else if _, err := js.UpdateStream(streamConfig); err != nil {
		return nil, fmt.Errorf("update event stream %s: %w", config.EventStream, err)
	}
	return js, nil
}

// Close drains the connection so in-flight event publishes complete.
func Close(conn *nats.Conn) error {
	if conn == nil {
		return nil
	}
	if err := conn.Drain(); err != nil {
		conn.Close()
		return fmt.Errorf("error draining connection: %w", err)
	}
	return nil
}

// IsConnected reports whether the connection is active.
func IsConnected(conn *nats.Conn) bool {
	return conn != nil && conn.IsConnected()
}
