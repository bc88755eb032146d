package events

import (
	"context"

	"go.uber.org/zap"
)

// LogSink writes events to a zap logger as structured entries.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink over the given logger. A nil logger is replaced
// with a no-op logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Publish logs the event. Failed phases log at warn, everything else at info.
func (s *LogSink) Publish(_ context.Context, event Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("execution_id", event.ExecutionID),
		zap.String("workflow_id", event.WorkflowID),
		zap.Time("timestamp", event.Timestamp),
	}
	if event.NodeID != "" {
		fields = append(fields, zap.String("node_id", event.NodeID))
	}
	if event.InputSummary != "" {
		fields = append(fields, zap.String("input_summary", event.InputSummary))
	}
	if event.OutputSummary != "" {
		fields = append(fields, zap.String("output_summary", event.OutputSummary))
	}
	if event.Attempt > 0 {
		fields = append(fields, zap.Int("attempt", event.Attempt))
	}

	switch event.Phase {
	case PhaseNodeFailed:
		fields = append(fields, zap.String("error", event.Error))
		s.logger.Warn(string(event.Phase), fields...)
	case PhaseWorkflowFinished:
		if event.Error != "" {
			fields = append(fields, zap.String("error", event.Error))
		}
		s.logger.Info(string(event.Phase), fields...)
	default:
		s.logger.Info(string(event.Phase), fields...)
	}
	return nil
}
