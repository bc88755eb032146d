package engine

import (
	"time"

	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

// NodeState is the per-run lifecycle state of one node.
type NodeState string

const (
	NodeStatePending NodeState = "PENDING"
	NodeStateRunning NodeState = "RUNNING"
	NodeStateSuccess NodeState = "SUCCESS"
	NodeStateError   NodeState = "ERROR"
	NodeStateSkipped NodeState = "SKIPPED"
)

// Terminal reports whether the state is final.
func (s NodeState) Terminal() bool {
	return s == NodeStateSuccess || s == NodeStateError || s == NodeStateSkipped
}

// RunStatus is the workflow-level status of a run.
type RunStatus string

const (
	RunStatusRunning    RunStatus = "RUNNING"
	RunStatusCancelling RunStatus = "CANCELLING"
	RunStatusSuccess    RunStatus = "SUCCESS"
	RunStatusFailed     RunStatus = "FAILED"
	RunStatusCancelled  RunStatus = "CANCELLED"
)

// RunResult is what Execute returns: the terminal status plus the full
// per-node state so callers can see exactly how far execution progressed.
type RunResult struct {
	// ExecutionID uniquely identifies the run
	ExecutionID string `json:"execution_id"`
	// WorkflowID identifies the workflow definition
	WorkflowID string `json:"workflow_id"`
	// Status is the terminal workflow status
	Status RunStatus `json:"status"`
	// NodeStates maps every node id to its final state
	NodeStates map[string]NodeState `json:"node_states"`
	// NodeResults holds the result of every node that executed
	NodeResults map[string]workflow.NodeExecutionResult `json:"node_results"`
	// FailedNodeID is the first fatal node for FAILED runs
	FailedNodeID string `json:"failed_node_id,omitempty"`
	// Error is the first fatal node's error message for FAILED runs
	Error string `json:"error,omitempty"`
	// StartedAt is when the run began
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when the run reached its terminal status
	FinishedAt time.Time `json:"finished_at"`
}

// Duration returns the wall-clock run time.
func (r *RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
