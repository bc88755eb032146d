package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

func successResult(nodeID string, output map[string]interface{}) workflow.NodeExecutionResult {
	return workflow.NodeExecutionResult{NodeID: nodeID, Status: workflow.NodeStatusSuccess, OutputData: output}
}

func TestConnectionIdentityPassThrough(t *testing.T) {
	ce := NewConnectionExecutor(nil)
	source := successResult("a", map[string]interface{}{"k": "v", "nested": map[string]interface{}{"x": float64(1)}})
	conn := workflow.Connection{ID: "c1", FromNode: "a", ToNode: "b"}

	out, err := ce.Execute(source, conn, workflow.ExecutionContext{ExecutionID: "e1"})
	require.NoError(t, err)
	assert.Equal(t, "v", out["k"])

	// the target input is a copy, not an alias
	out["nested"].(map[string]interface{})["x"] = float64(99)
	assert.Equal(t, float64(1), source.OutputData["nested"].(map[string]interface{})["x"])
}

func TestConnectionDataMapping(t *testing.T) {
	ce := NewConnectionExecutor(nil)
	source := successResult("a", map[string]interface{}{"name": "ada"})
	conn := workflow.Connection{
		ID: "c1", FromNode: "a", ToNode: "b",
		DataMapping: &workflow.DataMapping{
			Type: workflow.MappingTypeField,
			FieldMappings: []workflow.FieldMapping{
				{
					SourceField: "name",
					TargetField: "user.name",
					Transform: &workflow.FieldTransform{
						Type:           workflow.TransformTypeFunction,
						TransformValue: "string_upper",
					},
				},
			},
		},
	}

	out, err := ce.Execute(source, conn, workflow.ExecutionContext{})
	require.NoError(t, err)
	assert.Equal(t, "ADA", out["user"].(map[string]interface{})["name"])
}

func TestConnectionMappingErrorWrapped(t *testing.T) {
	ce := NewConnectionExecutor(nil)
	source := successResult("a", map[string]interface{}{})
	conn := workflow.Connection{
		ID: "c9", FromNode: "a", ToNode: "b",
		DataMapping: &workflow.DataMapping{
			Type: workflow.MappingTypeField,
			FieldMappings: []workflow.FieldMapping{
				{SourceField: "gone", TargetField: "out", Required: true},
			},
		},
	}

	_, err := ce.Execute(source, conn, workflow.ExecutionContext{})
	require.Error(t, err)
	var mappingErr *ConnectionMappingError
	require.ErrorAs(t, err, &mappingErr)
	assert.Equal(t, "c9", mappingErr.ConnectionID)
	assert.Equal(t, "a", mappingErr.FromNode)
	assert.Equal(t, "b", mappingErr.ToNode)
}

func TestConnectionConversionFunction(t *testing.T) {
	ce := NewConnectionExecutor(nil)
	ce.RegisterConversion("wrap_order", func(data map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"order": data}, nil
	})

	source := successResult("a", map[string]interface{}{"id": "X1"})
	conn := workflow.Connection{ID: "c1", FromNode: "a", ToNode: "b", ConversionFunction: "wrap_order"}

	out, err := ce.Execute(source, conn, workflow.ExecutionContext{})
	require.NoError(t, err)
	assert.Equal(t, "X1", out["order"].(map[string]interface{})["id"])
}

func TestConnectionUnknownConversion(t *testing.T) {
	ce := NewConnectionExecutor(nil)
	source := successResult("a", map[string]interface{}{})
	conn := workflow.Connection{ID: "c1", FromNode: "a", ToNode: "b", ConversionFunction: "nope"}

	_, err := ce.Execute(source, conn, workflow.ExecutionContext{})
	var mappingErr *ConnectionMappingError
	require.ErrorAs(t, err, &mappingErr)
}

func TestConnectionRejectsNonSuccessSource(t *testing.T) {
	ce := NewConnectionExecutor(nil)
	source := workflow.NodeExecutionResult{NodeID: "a", Status: workflow.NodeStatusError, ErrorMessage: "boom"}
	conn := workflow.Connection{ID: "c1", FromNode: "a", ToNode: "b"}

	_, err := ce.Execute(source, conn, workflow.ExecutionContext{})
	assert.Error(t, err)
}

func TestConversionErrorPropagates(t *testing.T) {
	ce := NewConnectionExecutor(nil)
	sentinel := errors.New("conversion blew up")
	ce.RegisterConversion("bad", func(_ map[string]interface{}) (map[string]interface{}, error) {
		return nil, sentinel
	})

	source := successResult("a", map[string]interface{}{})
	conn := workflow.Connection{ID: "c1", FromNode: "a", ToNode: "b", ConversionFunction: "bad"}

	_, err := ce.Execute(source, conn, workflow.ExecutionContext{})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
}
