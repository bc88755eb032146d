// Package flow implements the flow-control engine: the decision logic for the
// four FLOW node kinds (IF, SWITCH, SPLIT, MERGE) and the per-instance phase
// machine the orchestrator drives through a run.
package flow

import "fmt"

// Phase is the lifecycle position of a FLOW node instance within a run.
type Phase string

const (
	// PhaseEvaluating means the node's inputs are resolved and its decision
	// is being computed.
	PhaseEvaluating Phase = "EVALUATING"
	// PhaseDecided means the output keys to fire have been selected.
	PhaseDecided Phase = "DECIDED"
	// PhaseJoining means a MERGE node is waiting at its barrier.
	PhaseJoining Phase = "JOINING"
	// PhaseDone is terminal.
	PhaseDone Phase = "DONE"
)

// PhaseError reports an illegal phase transition.
type PhaseError struct {
	NodeID string
	From   Phase
	To     Phase
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("flow node %s: illegal phase transition %s -> %s", e.NodeID, e.From, e.To)
}

// Instance tracks the phase of one FLOW node within one run. Instances are
// owned by the orchestrator's control loop and are not safe for concurrent
// use.
type Instance struct {
	nodeID string
	phase  Phase
}

// NewInstance creates an instance in PhaseEvaluating.
func NewInstance(nodeID string) *Instance {
	return &Instance{nodeID: nodeID, phase: PhaseEvaluating}
}

// Phase returns the current phase.
func (i *Instance) Phase() Phase { return i.phase }

// Advance moves the instance to the given phase, enforcing the legal order
// EVALUATING -> DECIDED -> [JOINING ->] DONE.
func (i *Instance) Advance(to Phase) error {
	legal := false
	switch i.phase {
	case PhaseEvaluating:
		legal = to == PhaseDecided
	case PhaseDecided:
		legal = to == PhaseJoining || to == PhaseDone
	case PhaseJoining:
		legal = to == PhaseDone
	}
	if !legal {
		return &PhaseError{NodeID: i.nodeID, From: i.phase, To: to}
	}
	i.phase = to
	return nil
}
