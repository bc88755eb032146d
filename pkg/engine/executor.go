package engine

import (
	"context"
	"fmt"

	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

// Executor runs one node. Implementations live outside the engine (HTTP
// callers, AI-model clients, human-approval bridges); the engine only sees
// this interface. Executors that retry must be idempotent-safe or must never
// return transient errors.
type Executor interface {
	Execute(ctx context.Context, node workflow.Node, input map[string]interface{}, execCtx workflow.ExecutionContext) (workflow.NodeExecutionResult, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, node workflow.Node, input map[string]interface{}, execCtx workflow.ExecutionContext) (workflow.NodeExecutionResult, error)

func (f ExecutorFunc) Execute(ctx context.Context, node workflow.Node, input map[string]interface{}, execCtx workflow.ExecutionContext) (workflow.NodeExecutionResult, error) {
	return f(ctx, node, input, execCtx)
}

// ExecutorRegistry maps (type, subtype) to executors. Registries are
// constructor-built and injected into the engine; engine instances never
// share registry state implicitly.
type ExecutorRegistry struct {
	executors map[string]Executor
}

// NewExecutorRegistry creates an empty registry.
func NewExecutorRegistry() *ExecutorRegistry {
	return &ExecutorRegistry{executors: make(map[string]Executor)}
}

func executorKey(nodeType workflow.NodeType, subtype string) string {
	return string(nodeType) + "/" + subtype
}

// Register binds an executor to a (type, subtype) pair. An empty subtype
// registers the fallback for the whole type.
func (r *ExecutorRegistry) Register(nodeType workflow.NodeType, subtype string, executor Executor) {
	r.executors[executorKey(nodeType, subtype)] = executor
}

// Lookup resolves the executor for a node, falling back from (type, subtype)
// to (type, "").
func (r *ExecutorRegistry) Lookup(node workflow.Node) (Executor, error) {
	if ex, ok := r.executors[executorKey(node.Type, node.Subtype)]; ok {
		return ex, nil
	}
	if ex, ok := r.executors[executorKey(node.Type, "")]; ok {
		return ex, nil
	}
	return nil, fmt.Errorf("%w for node %s (%s/%s)", ErrNoExecutor, node.ID, node.Type, node.Subtype)
}
