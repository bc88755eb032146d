package engine

import (
	"fmt"

	"github.com/wehubfusion/Daedalus/pkg/mapping"
	"github.com/wehubfusion/Daedalus/pkg/payload"
	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

// ConversionFunc is a registered fallback conversion applied when a
// connection carries no data mapping.
type ConversionFunc func(output map[string]interface{}) (map[string]interface{}, error)

// ConnectionExecutor computes a target node's input from a source node's
// result, applying the connection's data mapping or conversion function.
type ConnectionExecutor struct {
	processor   *mapping.Processor
	conversions map[string]ConversionFunc
}

// NewConnectionExecutor creates a connection executor over the given mapping
// processor. A nil processor gets the builtin transform registry.
func NewConnectionExecutor(processor *mapping.Processor) *ConnectionExecutor {
	if processor == nil {
		processor = mapping.NewProcessor(nil)
	}
	return &ConnectionExecutor{
		processor:   processor,
		conversions: make(map[string]ConversionFunc),
	}
}

// RegisterConversion binds a named conversion function usable as a
// connection's conversion_function.
func (ce *ConnectionExecutor) RegisterConversion(name string, fn ConversionFunc) {
	ce.conversions[name] = fn
}

// Execute computes the target input for one connection. The source result
// must be SUCCESS; error-path delivery is decided by the orchestrator before
// this point. Mapping failures are wrapped into a ConnectionMappingError
// naming the connection.
func (ce *ConnectionExecutor) Execute(
	source workflow.NodeExecutionResult,
	conn workflow.Connection,
	execCtx workflow.ExecutionContext,
) (map[string]interface{}, error) {
	if !source.Succeeded() {
		return nil, &ConnectionMappingError{
			ConnectionID: conn.ID,
			FromNode:     conn.FromNode,
			ToNode:       conn.ToNode,
			Err:          fmt.Errorf("source node ended %s", source.Status),
		}
	}

	if conn.DataMapping != nil {
		out, err := ce.processor.Transform(source.OutputData, conn.DataMapping, execCtx)
		if err != nil {
			return nil, &ConnectionMappingError{
				ConnectionID: conn.ID,
				FromNode:     conn.FromNode,
				ToNode:       conn.ToNode,
				Err:          err,
			}
		}
		return out, nil
	}

	if conn.ConversionFunction != "" {
		fn, ok := ce.conversions[conn.ConversionFunction]
		if !ok {
			return nil, &ConnectionMappingError{
				ConnectionID: conn.ID,
				FromNode:     conn.FromNode,
				ToNode:       conn.ToNode,
				Err:          fmt.Errorf("unknown conversion function %q", conn.ConversionFunction),
			}
		}
		out, err := fn(payload.CloneMap(source.OutputData))
		if err != nil {
			return nil, &ConnectionMappingError{
				ConnectionID: conn.ID,
				FromNode:     conn.FromNode,
				ToNode:       conn.ToNode,
				Err:          err,
			}
		}
		return out, nil
	}

	// Identity passthrough.
	return payload.CloneMap(source.OutputData), nil
}
