package flow

import "fmt"

// DecisionError reports that a FLOW node's decision could not be computed,
// typically because its configuration is malformed or its condition failed to
// evaluate against the resolved input.
type DecisionError struct {
	NodeID string
	Reason string
	Err    error
}

func (e *DecisionError) Error() string {
	msg := fmt.Sprintf("flow node %s: %s", e.NodeID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecisionError) Unwrap() error { return e.Err }
