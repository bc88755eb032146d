package engine

import (
	"errors"
	"fmt"
)

// ErrNoExecutor is returned when no executor is registered for a node's
// (type, subtype) pair.
var ErrNoExecutor = errors.New("no executor registered")

// NodeExecutionError wraps a failure reported by an external node executor.
// Transient marks network/timeout-class failures the engine may retry.
type NodeExecutionError struct {
	NodeID    string
	Message   string
	Transient bool
	Err       error
}

func (e *NodeExecutionError) Error() string {
	msg := fmt.Sprintf("node %s: %s", e.NodeID, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NodeExecutionError) Unwrap() error { return e.Err }

// NewTransientError marks an executor failure as retryable.
func NewTransientError(nodeID, message string, err error) *NodeExecutionError {
	return &NodeExecutionError{NodeID: nodeID, Message: message, Transient: true, Err: err}
}

// NewPermanentError marks an executor failure as terminal.
func NewPermanentError(nodeID, message string, err error) *NodeExecutionError {
	return &NodeExecutionError{NodeID: nodeID, Message: message, Err: err}
}

// IsTransient reports whether err is a retryable executor failure.
func IsTransient(err error) bool {
	var nee *NodeExecutionError
	return errors.As(err, &nee) && nee.Transient
}

// ConnectionMappingError wraps a mapping failure on a specific connection.
// It is a failure of the target node's inbound data, not of the transform
// library itself.
type ConnectionMappingError struct {
	ConnectionID string
	FromNode     string
	ToNode       string
	Err          error
}

func (e *ConnectionMappingError) Error() string {
	return fmt.Sprintf("connection %s (%s -> %s): %s", e.ConnectionID, e.FromNode, e.ToNode, e.Err)
}

func (e *ConnectionMappingError) Unwrap() error { return e.Err }

// JoinPolicyError reports a MERGE fail-fast: a required predecessor ended in
// ERROR, so the join refuses to combine.
type JoinPolicyError struct {
	NodeID       string
	FailedNodeID string
}

func (e *JoinPolicyError) Error() string {
	return fmt.Sprintf("merge node %s: required predecessor %s failed", e.NodeID, e.FailedNodeID)
}
