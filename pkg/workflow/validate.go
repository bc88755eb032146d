package workflow

import (
	"errors"
	"fmt"
)

// ErrInvalidWorkflow is the base error for validation failures.
var ErrInvalidWorkflow = errors.New("invalid workflow")

// Validate checks the structural invariants the engine assumes: unique node
// ids, connections referencing existing nodes, at least one trigger, every
// non-trigger node reachable from a trigger, and an acyclic graph. Hosts are
// expected to call this before handing a workflow to the engine; the engine
// itself does not re-validate.
func Validate(w *Workflow) error {
	if w == nil {
		return fmt.Errorf("%w: nil workflow", ErrInvalidWorkflow)
	}
	if len(w.Nodes) == 0 {
		return fmt.Errorf("%w: workflow %q has no nodes", ErrInvalidWorkflow, w.ID)
	}

	ids := make(map[string]bool, len(w.Nodes))
	for _, n := range w.Nodes {
		if n.ID == "" {
			return fmt.Errorf("%w: node with empty id", ErrInvalidWorkflow)
		}
		if ids[n.ID] {
			return fmt.Errorf("%w: duplicate node id %q", ErrInvalidWorkflow, n.ID)
		}
		ids[n.ID] = true
	}

	for _, c := range w.Connections {
		if !ids[c.FromNode] {
			return fmt.Errorf("%w: connection %q references unknown from_node %q", ErrInvalidWorkflow, c.ID, c.FromNode)
		}
		if !ids[c.ToNode] {
			return fmt.Errorf("%w: connection %q references unknown to_node %q", ErrInvalidWorkflow, c.ID, c.ToNode)
		}
		if c.FromNode == c.ToNode {
			return fmt.Errorf("%w: connection %q is a self-edge on node %q", ErrInvalidWorkflow, c.ID, c.FromNode)
		}
	}

	triggers := make(map[string]bool, len(w.TriggerNodes))
	for _, id := range w.TriggerNodes {
		n, ok := w.NodeByID(id)
		if !ok {
			return fmt.Errorf("%w: trigger node %q does not exist", ErrInvalidWorkflow, id)
		}
		if !n.IsTrigger() {
			return fmt.Errorf("%w: node %q is listed as a trigger but has type %s", ErrInvalidWorkflow, id, n.Type)
		}
		triggers[id] = true
	}
	if len(triggers) == 0 {
		return fmt.Errorf("%w: workflow %q has no trigger nodes", ErrInvalidWorkflow, w.ID)
	}

	if err := checkReachability(w, triggers); err != nil {
		return err
	}
	return checkAcyclic(w)
}

// checkReachability verifies every non-trigger node is reachable from at
// least one trigger.
func checkReachability(w *Workflow, triggers map[string]bool) error {
	adj := make(map[string][]string)
	for _, c := range w.Connections {
		adj[c.FromNode] = append(adj[c.FromNode], c.ToNode)
	}

	seen := make(map[string]bool, len(w.Nodes))
	queue := make([]string, 0, len(triggers))
	for id := range triggers {
		seen[id] = true
		queue = append(queue, id)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}

	for _, n := range w.Nodes {
		if !seen[n.ID] {
			return fmt.Errorf("%w: node %q is not reachable from any trigger", ErrInvalidWorkflow, n.ID)
		}
	}
	return nil
}

// checkAcyclic rejects back-edges via Kahn's algorithm. The engine's barrier
// and readiness bookkeeping assumes a DAG; bounded loops are a host concern.
func checkAcyclic(w *Workflow) error {
	indeg := make(map[string]int, len(w.Nodes))
	adj := make(map[string][]string)
	for _, n := range w.Nodes {
		indeg[n.ID] = 0
	}
	for _, c := range w.Connections {
		adj[c.FromNode] = append(adj[c.FromNode], c.ToNode)
		indeg[c.ToNode]++
	}

	queue := make([]string, 0, len(w.Nodes))
	for id, d := range indeg {
		if d == 0 {
			queue = append(queue, id)
		}
	}
	visited := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range adj[cur] {
			indeg[next]--
			if indeg[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if visited != len(w.Nodes) {
		return fmt.Errorf("%w: workflow %q contains a cycle", ErrInvalidWorkflow, w.ID)
	}
	return nil
}
