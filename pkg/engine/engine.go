// Package engine implements the execution orchestrator: it walks a validated
// workflow graph, dispatches node executors, moves data across connections
// through the mapping layer, applies flow-control semantics at FLOW nodes,
// and enforces retry, failure and concurrency policy.
//
// All mutable run state is owned by a single control loop; node executions
// run as concurrent tasks and deliver their results back to that loop over a
// channel, never by direct mutation.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/archive"
	"github.com/wehubfusion/Daedalus/pkg/concurrency"
	"github.com/wehubfusion/Daedalus/pkg/events"
	"github.com/wehubfusion/Daedalus/pkg/flow"
	"github.com/wehubfusion/Daedalus/pkg/payload"
	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

const tracerName = "github.com/wehubfusion/Daedalus/pkg/engine"

// Engine executes workflow runs. Engines are safe for concurrent use; each
// run keeps its own state.
type Engine struct {
	executors   *ExecutorRegistry
	connections *ConnectionExecutor
	flow        *flow.Engine
	config      Config
	logger      *zap.Logger
	tracer      trace.Tracer
}

// New creates an engine over the given executor registry and connection
// executor. A nil connection executor gets the builtin transform registry.
func New(executors *ExecutorRegistry, connections *ConnectionExecutor, config Config) (*Engine, error) {
	if executors == nil {
		return nil, fmt.Errorf("executor registry is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if connections == nil {
		connections = NewConnectionExecutor(nil)
	}
	return &Engine{
		executors:   executors,
		connections: connections,
		flow:        flow.NewEngine(config.Logger),
		config:      config,
		logger:      config.Logger,
		tracer:      otel.Tracer(tracerName),
	}, nil
}

// taskResult is what a node task delivers back to the control loop.
type taskResult struct {
	nodeID string
	result workflow.NodeExecutionResult
}

// dispatchItem is a node whose input is resolved and which is waiting to run.
type dispatchItem struct {
	node  workflow.Node
	input map[string]interface{}
}

// run holds all mutable state of one execution. It is accessed only from the
// control loop.
type run struct {
	wf      *workflow.Workflow
	execCtx workflow.ExecutionContext

	reachable map[string]bool
	states    map[string]NodeState
	results   map[string]workflow.NodeExecutionResult

	// per-target inbound edge accounting
	totalEdges    map[string]int
	resolvedEdges map[string]int
	inputs        map[string]map[string]map[string]interface{}

	decisions  map[string]flow.Decision
	phases     map[string]*flow.Instance
	mergeFired map[string]bool

	limiters map[string]*concurrency.Limiter
	gate     map[string]string
	pending  map[string][]dispatchItem

	ready   []dispatchItem
	running int

	aborting   bool
	cancelling bool
	failedNode string
	failedMsg  string
}

// Execute runs the workflow from the given trigger node. The returned
// RunResult carries the terminal status and the full per-node state; the
// error return is reserved for invalid invocations.
func (e *Engine) Execute(ctx context.Context, wf *workflow.Workflow, triggerNodeID string, triggerData map[string]interface{}) (*RunResult, error) {
	if wf == nil {
		return nil, fmt.Errorf("workflow is required")
	}
	triggerNode, ok := wf.NodeByID(triggerNodeID)
	if !ok {
		return nil, fmt.Errorf("trigger node %s not found in workflow %s", triggerNodeID, wf.ID)
	}
	if !triggerNode.IsTrigger() {
		return nil, fmt.Errorf("node %s is not a trigger", triggerNodeID)
	}
	normalized, err := payload.Normalize(triggerData)
	if err != nil {
		return nil, fmt.Errorf("trigger data: %w", err)
	}
	triggerInput, _ := normalized.(map[string]interface{})
	if triggerInput == nil {
		triggerInput = map[string]interface{}{}
	}

	if e.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.RunTimeout)
		defer cancel()
	}

	executionID := uuid.NewString()
	startedAt := time.Now().UTC()

	ctx, span := e.tracer.Start(ctx, "workflow.execute",
		trace.WithAttributes(
			attribute.String("workflow.id", wf.ID),
			attribute.String("execution.id", executionID),
		))
	defer span.End()

	r := e.newRun(wf, executionID, startedAt, triggerNodeID)

	e.logger.Info("workflow execution started",
		zap.String("workflow_id", wf.ID),
		zap.String("execution_id", executionID),
		zap.String("trigger_node", triggerNodeID))
	e.emit(ctx, r, events.New(executionID, wf.ID, "", events.PhaseWorkflowStarted))

	resultCh := make(chan taskResult)

	// The trigger does not execute; its result is synthesized from the
	// trigger data.
	e.emitNode(ctx, r, *triggerNode, events.PhaseNodeStarted, "", 0)
	r.states[triggerNodeID] = NodeStateRunning
	e.finishNode(ctx, r, *triggerNode, workflow.NodeExecutionResult{
		NodeID:     triggerNodeID,
		Status:     workflow.NodeStatusSuccess,
		OutputData: triggerInput,
	})
	e.drainReady(ctx, r, resultCh)

	for r.running > 0 {
		if r.cancelling {
			res := <-resultCh
			e.handleResult(ctx, r, res, resultCh)
			continue
		}
		select {
		case res := <-resultCh:
			e.handleResult(ctx, r, res, resultCh)
			e.drainReady(ctx, r, resultCh)
		case <-ctx.Done():
			e.logger.Warn("run cancelling, waiting for running nodes",
				zap.String("execution_id", executionID),
				zap.Int("running", r.running),
				zap.Error(ctx.Err()))
			r.cancelling = true
			r.ready = nil
			r.pending = map[string][]dispatchItem{}
		}
	}
	if !r.cancelling && ctx.Err() != nil {
		r.cancelling = true
	}

	result := e.finalize(ctx, r, span, startedAt)
	return result, nil
}

func (e *Engine) newRun(wf *workflow.Workflow, executionID string, startedAt time.Time, triggerNodeID string) *run {
	r := &run{
		wf: wf,
		execCtx: workflow.ExecutionContext{
			WorkflowID:  wf.ID,
			ExecutionID: executionID,
			CurrentTime: startedAt,
		},
		reachable:     reachableFrom(wf, triggerNodeID),
		states:        make(map[string]NodeState, len(wf.Nodes)),
		results:       make(map[string]workflow.NodeExecutionResult),
		totalEdges:    make(map[string]int),
		resolvedEdges: make(map[string]int),
		inputs:        make(map[string]map[string]map[string]interface{}),
		decisions:     make(map[string]flow.Decision),
		phases:        make(map[string]*flow.Instance),
		mergeFired:    make(map[string]bool),
		limiters:      make(map[string]*concurrency.Limiter),
		gate:          make(map[string]string),
		pending:       make(map[string][]dispatchItem),
	}
	for _, n := range wf.Nodes {
		r.states[n.ID] = NodeStatePending
	}
	// Only edges whose source is reachable from the fired trigger take part
	// in readiness accounting.
	for _, c := range wf.Connections {
		if r.reachable[c.FromNode] && r.reachable[c.ToNode] {
			r.totalEdges[c.ToNode]++
		}
	}
	return r
}

func reachableFrom(wf *workflow.Workflow, start string) map[string]bool {
	seen := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, c := range wf.ConnectionsFrom(id) {
			if !seen[c.ToNode] {
				seen[c.ToNode] = true
				queue = append(queue, c.ToNode)
			}
		}
	}
	return seen
}

// drainReady dispatches every queued ready node. FLOW nodes are evaluated
// inline; everything else runs as a concurrent task.
func (e *Engine) drainReady(ctx context.Context, r *run, resultCh chan taskResult) {
	for len(r.ready) > 0 {
		if r.aborting || r.cancelling {
			r.ready = nil
			return
		}
		item := r.ready[0]
		r.ready = r.ready[1:]
		e.dispatch(ctx, r, item, resultCh)
	}
}

func (e *Engine) dispatch(ctx context.Context, r *run, item dispatchItem, resultCh chan taskResult) {
	nodeID := item.node.ID
	if r.states[nodeID].Terminal() || r.states[nodeID] == NodeStateRunning {
		return
	}

	if splitID, gated := r.gate[nodeID]; gated {
		if !r.limiters[splitID].TryAcquire() {
			r.pending[splitID] = append(r.pending[splitID], item)
			return
		}
	}

	r.states[nodeID] = NodeStateRunning
	e.emitNode(ctx, r, item.node, events.PhaseNodeStarted, summarize(item.input, e.config.SummaryBytes), 0)

	if item.node.IsFlow() {
		result, decision := e.runFlowNode(item.node, item.input)
		r.decisions[nodeID] = decision
		e.releaseGate(r, nodeID, resultCh)
		e.finishNode(ctx, r, item.node, result)
		return
	}

	policy := retryPolicyForNode(item.node, e.config.Retry)
	r.running++
	go e.runNode(ctx, r.execCtx.WithNode(nodeID), item.node, item.input, policy, resultCh)
}

// runFlowNode evaluates IF/SWITCH/SPLIT inline. MERGE nodes arrive here with
// their combined payload already computed at the barrier.
func (e *Engine) runFlowNode(node workflow.Node, input map[string]interface{}) (workflow.NodeExecutionResult, flow.Decision) {
	start := time.Now()
	result := workflow.NodeExecutionResult{NodeID: node.ID, Status: workflow.NodeStatusSuccess, OutputData: input}
	var decision flow.Decision

	switch workflow.FlowSubtype(node.Subtype) {
	case workflow.FlowSubtypeMerge:
		// Combined at the barrier; nothing further to evaluate.
		decision = flow.Decision{NodeID: node.ID, Subtype: workflow.FlowSubtypeMerge, SelectedKey: workflow.OutputKeyResult}
	default:
		inst := flow.NewInstance(node.ID)
		d, err := e.flow.Decide(node, input)
		if err != nil {
			result.Status = workflow.NodeStatusError
			result.ErrorMessage = err.Error()
			break
		}
		_ = inst.Advance(flow.PhaseDecided)
		_ = inst.Advance(flow.PhaseDone)
		decision = d
	}

	result.ExecutionTime = time.Since(start)
	return result, decision
}

// runNode executes one non-FLOW node as a task, retrying transient failures
// per policy, and delivers the final result to the control loop.
func (e *Engine) runNode(ctx context.Context, execCtx workflow.ExecutionContext, node workflow.Node, input map[string]interface{}, policy RetryPolicy, resultCh chan taskResult) {
	ctx, span := e.tracer.Start(ctx, "node.execute",
		trace.WithAttributes(
			attribute.String("node.id", node.ID),
			attribute.String("node.type", string(node.Type)),
			attribute.String("node.subtype", node.Subtype),
		))
	defer span.End()

	start := time.Now()
	final := e.executeWithRetry(ctx, execCtx, node, input, policy, span)
	final.NodeID = node.ID
	if final.ExecutionTime == 0 {
		final.ExecutionTime = time.Since(start)
	}

	if final.Status == workflow.NodeStatusError {
		span.SetStatus(codes.Error, final.ErrorMessage)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	resultCh <- taskResult{nodeID: node.ID, result: final}
}

func (e *Engine) executeWithRetry(ctx context.Context, execCtx workflow.ExecutionContext, node workflow.Node, input map[string]interface{}, policy RetryPolicy, span trace.Span) workflow.NodeExecutionResult {
	executor, err := e.executors.Lookup(node)
	if err != nil {
		return workflow.NodeExecutionResult{Status: workflow.NodeStatusError, ErrorMessage: err.Error()}
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		result, err := executor.Execute(ctx, node, input, execCtx)
		if err == nil {
			result.NodeID = node.ID
			return result
		}
		lastErr = err

		if !IsTransient(err) || attempt == policy.MaxAttempts {
			break
		}

		delay := policy.Backoff(attempt)
		span.AddEvent("retry", trace.WithAttributes(
			attribute.Int("attempt", attempt),
			attribute.String("delay", delay.String()),
		))
		e.logger.Warn("retrying node after transient failure",
			zap.String("execution_id", execCtx.ExecutionID),
			zap.String("node_id", node.ID),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err))
		retrying := events.New(execCtx.ExecutionID, execCtx.WorkflowID, node.ID, events.PhaseNodeRetrying)
		retrying.Attempt = attempt + 1
		retrying.Error = err.Error()
		if sinkErr := e.config.Sink.Publish(ctx, retrying); sinkErr != nil {
			e.logger.Warn("event sink publish failed", zap.Error(sinkErr))
		}

		select {
		case <-ctx.Done():
			return workflow.NodeExecutionResult{Status: workflow.NodeStatusError, ErrorMessage: ctx.Err().Error()}
		case <-time.After(delay):
		}
	}
	return workflow.NodeExecutionResult{Status: workflow.NodeStatusError, ErrorMessage: lastErr.Error()}
}

func (e *Engine) handleResult(ctx context.Context, r *run, res taskResult, resultCh chan taskResult) {
	r.running--
	e.releaseGate(r, res.nodeID, resultCh)
	node, ok := r.wf.NodeByID(res.nodeID)
	if !ok {
		return
	}
	e.finishNode(ctx, r, *node, res.result)
}

// releaseGate frees the node's SPLIT slot, if it held one, and requeues the
// next pending branch of that SPLIT.
func (e *Engine) releaseGate(r *run, nodeID string, resultCh chan taskResult) {
	splitID, gated := r.gate[nodeID]
	if !gated {
		return
	}
	r.limiters[splitID].Release()
	if queue := r.pending[splitID]; len(queue) > 0 && !r.aborting && !r.cancelling {
		next := queue[0]
		r.pending[splitID] = queue[1:]
		r.ready = append(r.ready, next)
	}
}

// finishNode records a terminal node result, emits its event, applies the
// failure policy, and resolves the node's outgoing edges.
func (e *Engine) finishNode(ctx context.Context, r *run, node workflow.Node, result workflow.NodeExecutionResult) {
	r.results[node.ID] = result

	switch result.Status {
	case workflow.NodeStatusSuccess:
		r.states[node.ID] = NodeStateSuccess
		e.emitNode(ctx, r, node, events.PhaseNodeSucceeded, result.MarshalSummary(e.config.SummaryBytes), 0)
		if node.IsFlow() && workflow.FlowSubtype(node.Subtype) == workflow.FlowSubtypeSplit {
			e.prepareSplit(r, node)
		}
		e.resolveOutgoing(ctx, r, node, result)

	case workflow.NodeStatusError:
		r.states[node.ID] = NodeStateError
		e.emitNodeError(ctx, r, node, result.ErrorMessage)
		if onErrorPolicy(node) != "continue" {
			if r.failedNode == "" {
				r.failedNode = node.ID
				r.failedMsg = result.ErrorMessage
			}
			r.aborting = true
			// Other successors stay undispatched, but MERGE joins must
			// still observe the terminal ERROR to fail fast.
			e.resolveMergeEdges(ctx, r, node)
			return
		}
		e.resolveOutgoing(ctx, r, node, result)

	case workflow.NodeStatusSkipped:
		r.states[node.ID] = NodeStateSkipped
		e.emitNode(ctx, r, node, events.PhaseNodeSkipped, "", 0)
		e.resolveOutgoing(ctx, r, node, result)
	}
}

// resolveMergeEdges resolves a fatally-failed node's edges into MERGE targets
// as non-delivering, so their join policy can react to the predecessor's
// ERROR state.
func (e *Engine) resolveMergeEdges(ctx context.Context, r *run, node workflow.Node) {
	for _, conn := range r.wf.ConnectionsFrom(node.ID) {
		if !r.reachable[conn.ToNode] {
			continue
		}
		target, ok := r.wf.NodeByID(conn.ToNode)
		if !ok || !target.IsFlow() || workflow.FlowSubtype(target.Subtype) != workflow.FlowSubtypeMerge {
			continue
		}
		e.edgeResolved(ctx, r, *target, node.ID, nil, false)
	}
}

// prepareSplit creates the SPLIT's limiter and gates its immediate downstream
// branch heads on it. The bound covers the branch-head executions themselves,
// each slot held from head dispatch until the head reaches a terminal state;
// nodes deeper in a branch run ungated.
func (e *Engine) prepareSplit(r *run, node workflow.Node) {
	cfg := flow.SplitConfigFromNode(node)
	r.limiters[node.ID] = concurrency.NewLimiter(cfg.MaxParallel)
	for _, c := range r.wf.ConnectionsFrom(node.ID) {
		if _, gated := r.gate[c.ToNode]; !gated {
			r.gate[c.ToNode] = node.ID
		}
	}
}

// resolveOutgoing walks the node's outgoing connections and resolves each
// edge as delivering or not, per the node's terminal status and decision.
func (e *Engine) resolveOutgoing(ctx context.Context, r *run, node workflow.Node, result workflow.NodeExecutionResult) {
	conns := r.wf.ConnectionsFrom(node.ID)
	for _, conn := range conns {
		if !r.reachable[conn.ToNode] {
			continue
		}
		target, ok := r.wf.NodeByID(conn.ToNode)
		if !ok {
			continue
		}

		switch result.Status {
		case workflow.NodeStatusSkipped:
			e.edgeResolved(ctx, r, *target, node.ID, nil, false)

		case workflow.NodeStatusError:
			// on_error=continue: error payloads flow only to targets that
			// opt in; everyone else sees a non-delivering edge.
			if target.ConfigBool("receive_errors", false) {
				e.edgeResolved(ctx, r, *target, node.ID, errorPayload(node.ID, result.ErrorMessage), true)
			} else {
				e.edgeResolved(ctx, r, *target, node.ID, nil, false)
			}

		case workflow.NodeStatusSuccess:
			if !e.edgeSelected(r, node, conn) {
				e.edgeResolved(ctx, r, *target, node.ID, nil, false)
				continue
			}
			input, err := e.connections.Execute(result, conn, r.execCtx.WithNode(conn.ToNode))
			if err != nil {
				e.failTargetInput(ctx, r, *target, err)
				continue
			}
			e.edgeResolved(ctx, r, *target, node.ID, input, true)
		}
	}
}

// edgeSelected reports whether the connection's output key fires given the
// source node's decision. Plain nodes publish only on "result".
func (e *Engine) edgeSelected(r *run, source workflow.Node, conn workflow.Connection) bool {
	if source.IsFlow() {
		switch workflow.FlowSubtype(source.Subtype) {
		case workflow.FlowSubtypeSplit:
			return true
		case workflow.FlowSubtypeMerge:
			return conn.EffectiveOutputKey() == workflow.OutputKeyResult
		default:
			return r.decisions[source.ID].Selects(conn.EffectiveOutputKey())
		}
	}
	return conn.EffectiveOutputKey() == workflow.OutputKeyResult
}

// failTargetInput marks the target node ERROR because its inbound mapping
// failed. The failure belongs to the target, not the transform library.
func (e *Engine) failTargetInput(ctx context.Context, r *run, target workflow.Node, err error) {
	if r.states[target.ID].Terminal() {
		return
	}
	e.logger.Error("connection mapping failed",
		zap.String("execution_id", r.execCtx.ExecutionID),
		zap.String("node_id", target.ID),
		zap.Error(err))
	e.finishNode(ctx, r, target, workflow.NodeExecutionResult{
		NodeID:       target.ID,
		Status:       workflow.NodeStatusError,
		ErrorMessage: err.Error(),
	})
}

// edgeResolved accounts one resolved inbound edge of target and enqueues the
// target once its readiness condition is met.
func (e *Engine) edgeResolved(ctx context.Context, r *run, target workflow.Node, sourceID string, input map[string]interface{}, delivered bool) {
	if r.states[target.ID].Terminal() || r.states[target.ID] == NodeStateRunning {
		return
	}

	r.resolvedEdges[target.ID]++
	if delivered {
		if r.inputs[target.ID] == nil {
			r.inputs[target.ID] = make(map[string]map[string]interface{})
		}
		r.inputs[target.ID][sourceID] = input
	}

	if target.IsFlow() && workflow.FlowSubtype(target.Subtype) == workflow.FlowSubtypeMerge {
		e.mergeEdgeResolved(ctx, r, target, sourceID, input, delivered)
		return
	}

	if r.resolvedEdges[target.ID] < r.totalEdges[target.ID] {
		return
	}
	inputs := r.inputs[target.ID]
	switch len(inputs) {
	case 0:
		e.finishNode(ctx, r, target, workflow.NodeExecutionResult{NodeID: target.ID, Status: workflow.NodeStatusSkipped})
	case 1:
		// A single delivering producer passes its payload through unkeyed,
		// even when other inbound edges resolved as skipped. Targets that
		// need a stable keyed shape under partial skips should join through
		// an explicit MERGE.
		for _, in := range inputs {
			r.ready = append(r.ready, dispatchItem{node: target, input: in})
		}
	default:
		// Fan-in without an explicit MERGE: concatenate keyed by source id.
		combined := make(map[string]interface{}, len(inputs))
		for src, in := range inputs {
			combined[src] = in
		}
		r.ready = append(r.ready, dispatchItem{node: target, input: combined})
	}
}

// mergeEdgeResolved applies MERGE join policy as the target's inbound edges
// resolve.
func (e *Engine) mergeEdgeResolved(ctx context.Context, r *run, target workflow.Node, sourceID string, input map[string]interface{}, delivered bool) {
	cfg := flow.MergeConfigFromNode(target)

	inst := r.phases[target.ID]
	if inst == nil {
		inst = flow.NewInstance(target.ID)
		_ = inst.Advance(flow.PhaseDecided)
		_ = inst.Advance(flow.PhaseJoining)
		r.phases[target.ID] = inst
	}

	if !cfg.WaitForAll {
		if delivered && !r.mergeFired[target.ID] {
			r.mergeFired[target.ID] = true
			_ = inst.Advance(flow.PhaseDone)
			combined, err := flow.Combine(cfg, map[string]map[string]interface{}{sourceID: input})
			if err != nil {
				e.failTargetInput(ctx, r, target, err)
				return
			}
			r.ready = append(r.ready, dispatchItem{node: target, input: combined})
			return
		}
		if !r.mergeFired[target.ID] && r.resolvedEdges[target.ID] == r.totalEdges[target.ID] {
			_ = inst.Advance(flow.PhaseDone)
			e.finishNode(ctx, r, target, workflow.NodeExecutionResult{NodeID: target.ID, Status: workflow.NodeStatusSkipped})
		}
		return
	}

	// Fail-fast join: a predecessor that ended ERROR without a continue
	// policy poisons the join as soon as it is observed, without waiting
	// for the remaining producers.
	for _, c := range r.wf.ConnectionsTo(target.ID) {
		if !r.reachable[c.FromNode] {
			continue
		}
		if r.states[c.FromNode] != NodeStateError {
			continue
		}
		pred, ok := r.wf.NodeByID(c.FromNode)
		if ok && onErrorPolicy(*pred) != "continue" {
			_ = inst.Advance(flow.PhaseDone)
			jerr := &JoinPolicyError{NodeID: target.ID, FailedNodeID: c.FromNode}
			e.finishNode(ctx, r, target, workflow.NodeExecutionResult{
				NodeID:       target.ID,
				Status:       workflow.NodeStatusError,
				ErrorMessage: jerr.Error(),
			})
			return
		}
	}

	if r.resolvedEdges[target.ID] < r.totalEdges[target.ID] {
		return
	}
	_ = inst.Advance(flow.PhaseDone)

	inputs := r.inputs[target.ID]
	if len(inputs) == 0 {
		e.finishNode(ctx, r, target, workflow.NodeExecutionResult{NodeID: target.ID, Status: workflow.NodeStatusSkipped})
		return
	}
	combined, err := flow.Combine(cfg, inputs)
	if err != nil {
		e.failTargetInput(ctx, r, target, err)
		return
	}
	r.ready = append(r.ready, dispatchItem{node: target, input: combined})
}

// finalize resolves the terminal workflow status, emits the finish event and
// hands the snapshot to the archiver.
func (e *Engine) finalize(ctx context.Context, r *run, span trace.Span, startedAt time.Time) *RunResult {
	finishedAt := time.Now().UTC()

	status := RunStatusSuccess
	switch {
	case r.cancelling:
		status = RunStatusCancelled
	case r.failedNode != "":
		status = RunStatusFailed
	default:
		if stalled := e.stalledNodes(r); len(stalled) > 0 {
			status = RunStatusFailed
			r.failedNode = stalled[0]
			r.failedMsg = fmt.Sprintf("execution stalled; unresolved nodes: %v", stalled)
		}
	}

	result := &RunResult{
		ExecutionID:  r.execCtx.ExecutionID,
		WorkflowID:   r.wf.ID,
		Status:       status,
		NodeStates:   r.states,
		NodeResults:  r.results,
		FailedNodeID: r.failedNode,
		Error:        r.failedMsg,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
	}

	finished := events.New(r.execCtx.ExecutionID, r.wf.ID, "", events.PhaseWorkflowFinished)
	finished.Error = r.failedMsg
	e.emit(ctx, r, finished)

	if status == RunStatusFailed {
		span.SetStatus(codes.Error, r.failedMsg)
	} else {
		span.SetStatus(codes.Ok, string(status))
	}
	span.SetAttributes(attribute.String("workflow.status", string(status)))

	e.logger.Info("workflow execution finished",
		zap.String("workflow_id", r.wf.ID),
		zap.String("execution_id", r.execCtx.ExecutionID),
		zap.String("status", string(status)),
		zap.Duration("duration", result.Duration()))

	if e.config.Archiver != nil {
		e.archiveRun(ctx, r, result)
	}
	return result
}

func (e *Engine) stalledNodes(r *run) []string {
	var stalled []string
	for id, reachable := range r.reachable {
		if reachable && !r.states[id].Terminal() {
			stalled = append(stalled, id)
		}
	}
	sort.Strings(stalled)
	return stalled
}

func (e *Engine) archiveRun(ctx context.Context, r *run, result *RunResult) {
	record := archive.Record{
		ExecutionID:  result.ExecutionID,
		WorkflowID:   result.WorkflowID,
		Status:       string(result.Status),
		StartedAt:    result.StartedAt,
		FinishedAt:   result.FinishedAt,
		NodeStates:   make(map[string]string, len(r.states)),
		NodeOutputs:  make(map[string]map[string]interface{}),
		Error:        result.Error,
		FailedNodeID: result.FailedNodeID,
	}
	for id, state := range r.states {
		record.NodeStates[id] = string(state)
	}
	for id, res := range r.results {
		if res.OutputData != nil {
			record.NodeOutputs[id] = res.OutputData
		}
	}
	if err := e.config.Archiver.Archive(ctx, record); err != nil {
		e.logger.Error("run archival failed",
			zap.String("execution_id", result.ExecutionID),
			zap.Error(err))
	}
}

func (e *Engine) emit(ctx context.Context, r *run, event events.Event) {
	if err := e.config.Sink.Publish(ctx, event); err != nil {
		e.logger.Warn("event sink publish failed",
			zap.String("execution_id", r.execCtx.ExecutionID),
			zap.Error(err))
	}
}

func (e *Engine) emitNode(ctx context.Context, r *run, node workflow.Node, phase events.Phase, summary string, attempt int) {
	event := events.New(r.execCtx.ExecutionID, r.wf.ID, node.ID, phase)
	event.Attempt = attempt
	switch phase {
	case events.PhaseNodeStarted:
		event.InputSummary = summary
	case events.PhaseNodeSucceeded:
		event.OutputSummary = summary
	}
	e.emit(ctx, r, event)
}

func (e *Engine) emitNodeError(ctx context.Context, r *run, node workflow.Node, message string) {
	event := events.New(r.execCtx.ExecutionID, r.wf.ID, node.ID, events.PhaseNodeFailed)
	event.Error = message
	e.emit(ctx, r, event)
}

func onErrorPolicy(node workflow.Node) string {
	if s, ok := node.ConfigString("on_error"); ok && s != "" {
		return s
	}
	return "fail"
}

func errorPayload(nodeID, message string) map[string]interface{} {
	return map[string]interface{}{
		"_error": map[string]interface{}{
			"node_id": nodeID,
			"message": message,
		},
		"status": "error",
	}
}

func summarize(payloadMap map[string]interface{}, maxBytes int) string {
	if payloadMap == nil {
		return ""
	}
	b, err := json.Marshal(payloadMap)
	if err != nil {
		return ""
	}
	if maxBytes > 0 && len(b) > maxBytes {
		return string(b[:maxBytes])
	}
	return string(b)
}
