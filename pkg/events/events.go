// Package events defines the structured per-transition events the engine
// emits for persistence and observability, and the sinks that carry them.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Phase identifies what happened to a run or a node.
type Phase string

const (
	PhaseWorkflowStarted  Phase = "workflow.started"
	PhaseWorkflowFinished Phase = "workflow.finished"
	PhaseNodeStarted      Phase = "node.started"
	PhaseNodeSucceeded    Phase = "node.succeeded"
	PhaseNodeFailed       Phase = "node.failed"
	PhaseNodeSkipped      Phase = "node.skipped"
	PhaseNodeRetrying     Phase = "node.retrying"
)

// Event is one engine transition. NodeID is empty for workflow-level phases.
type Event struct {
	// ID uniquely identifies the event
	ID string `json:"id"`
	// ExecutionID identifies the run
	ExecutionID string `json:"execution_id"`
	// WorkflowID identifies the workflow definition
	WorkflowID string `json:"workflow_id"`
	// NodeID identifies the node, when the phase is node-scoped
	NodeID string `json:"node_id,omitempty"`
	// Phase is the transition that occurred
	Phase Phase `json:"phase"`
	// Timestamp is when the transition occurred
	Timestamp time.Time `json:"timestamp"`
	// InputSummary is a compact rendering of the node's input, when available
	InputSummary string `json:"input_summary,omitempty"`
	// OutputSummary is a compact rendering of the node's output, when available
	OutputSummary string `json:"output_summary,omitempty"`
	// Error carries the failure message for failed phases
	Error string `json:"error,omitempty"`
	// Attempt is the 1-based execution attempt, set on retrying phases
	Attempt int `json:"attempt,omitempty"`
}

// New creates an event with a fresh id and the current timestamp.
func New(executionID, workflowID, nodeID string, phase Phase) Event {
	return Event{
		ID:          uuid.NewString(),
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		NodeID:      nodeID,
		Phase:       phase,
		Timestamp:   time.Now().UTC(),
	}
}

// Sink receives engine events. Implementations must be safe for concurrent
// use; the engine treats sink failures as non-fatal.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Publish(context.Context, Event) error { return nil }

// MultiSink fans events out to several sinks; the first error is returned
// after all sinks have been attempted.
type MultiSink []Sink

func (m MultiSink) Publish(ctx context.Context, event Event) error {
	var first error
	for _, s := range m {
		if err := s.Publish(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
