package mapping

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

func testContext() workflow.ExecutionContext {
	return workflow.ExecutionContext{
		WorkflowID:  "wf-1",
		ExecutionID: "exec-42",
		NodeID:      "node-a",
		CurrentTime: time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
		UserID:      "user-7",
	}
}

func TestTransformNilMappingClonesInput(t *testing.T) {
	p := NewProcessor(nil)
	input := map[string]interface{}{"user": map[string]interface{}{"name": "Ada"}}

	out, err := p.Transform(input, nil, testContext())
	require.NoError(t, err)
	assert.Equal(t, input, out)

	// Mutating the output must not leak into the input.
	out["user"].(map[string]interface{})["name"] = "changed"
	assert.Equal(t, "Ada", input["user"].(map[string]interface{})["name"])
}

func TestFieldMappingBasic(t *testing.T) {
	p := NewProcessor(nil)
	input := map[string]interface{}{
		"user": map[string]interface{}{"firstName": "ada", "lastName": "lovelace"},
	}
	mapping := &workflow.DataMapping{
		Type: workflow.MappingTypeField,
		FieldMappings: []workflow.FieldMapping{
			{SourceField: "user.firstName", TargetField: "profile.first"},
			{SourceField: "user.lastName", TargetField: "profile.last",
				Transform: &workflow.FieldTransform{
					Type:           workflow.TransformTypeFunction,
					TransformValue: "string_upper",
				}},
		},
	}

	out, err := p.Transform(input, mapping, testContext())
	require.NoError(t, err)
	profile := out["profile"].(map[string]interface{})
	assert.Equal(t, "ada", profile["first"])
	assert.Equal(t, "LOVELACE", profile["last"])
}

func TestFieldMappingNestedArraySource(t *testing.T) {
	p := NewProcessor(nil)
	input := map[string]interface{}{
		"order_id": "X1",
		"items": []interface{}{
			map[string]interface{}{"sku": "P1", "quantity": float64(2)},
		},
	}
	mapping := &workflow.DataMapping{
		Type: workflow.MappingTypeField,
		FieldMappings: []workflow.FieldMapping{
			{SourceField: "items[0].sku", TargetField: "priority_item.sku"},
		},
	}

	out, err := p.Transform(input, mapping, testContext())
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"priority_item": map[string]interface{}{"sku": "P1"},
	}, out)
}

func TestTransformIsDeterministic(t *testing.T) {
	p := NewProcessor(nil)
	input := map[string]interface{}{
		"user":  map[string]interface{}{"name": "ada"},
		"score": float64(8.5),
	}
	mapping := &workflow.DataMapping{
		Type: workflow.MappingTypeField,
		FieldMappings: []workflow.FieldMapping{
			{SourceField: "user.name", TargetField: "out.name",
				Transform: &workflow.FieldTransform{
					Type:           workflow.TransformTypeFunction,
					TransformValue: "string_upper",
				}},
			{SourceField: "score", TargetField: "out.level",
				Transform: &workflow.FieldTransform{
					Type:           workflow.TransformTypeCondition,
					TransformValue: "{{value}} > 8 ? 'high' : 'low'",
				}},
		},
		StaticValues: map[string]interface{}{"source": "api"},
	}

	first, err := p.Transform(input, mapping, testContext())
	require.NoError(t, err)
	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := p.Transform(input, mapping, testContext())
		require.NoError(t, err)
		againJSON, err := json.Marshal(again)
		require.NoError(t, err)
		assert.Equal(t, string(firstJSON), string(againJSON))
	}
	assert.Equal(t, "high", first["out"].(map[string]interface{})["level"])
}

func TestFieldMappingRequiredMissing(t *testing.T) {
	p := NewProcessor(nil)
	mapping := &workflow.DataMapping{
		Type: workflow.MappingTypeField,
		FieldMappings: []workflow.FieldMapping{
			{SourceField: "user.email", TargetField: "email", Required: true},
		},
	}

	_, err := p.Transform(map[string]interface{}{}, mapping, testContext())
	require.Error(t, err)
	var missing *MissingRequiredFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "user.email", missing.SourceField)
	assert.Equal(t, "email", missing.TargetField)
}

func TestFieldMappingDefaultValue(t *testing.T) {
	p := NewProcessor(nil)
	mapping := &workflow.DataMapping{
		Type: workflow.MappingTypeField,
		FieldMappings: []workflow.FieldMapping{
			{SourceField: "missing", TargetField: "out", DefaultValue: "fallback"},
			{SourceField: "also.missing", TargetField: "nullable", DefaultValue: nil, HasDefault: true},
		},
	}

	out, err := p.Transform(map[string]interface{}{}, mapping, testContext())
	require.NoError(t, err)
	assert.Equal(t, "fallback", out["out"])
	v, present := out["nullable"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestFieldMappingOptionalMissingSkipped(t *testing.T) {
	p := NewProcessor(nil)
	mapping := &workflow.DataMapping{
		Type: workflow.MappingTypeField,
		FieldMappings: []workflow.FieldMapping{
			{SourceField: "absent", TargetField: "out"},
		},
	}

	out, err := p.Transform(map[string]interface{}{}, mapping, testContext())
	require.NoError(t, err)
	_, present := out["out"]
	assert.False(t, present)
}

func TestFieldMappingPresentNullIsNotMissing(t *testing.T) {
	p := NewProcessor(nil)
	mapping := &workflow.DataMapping{
		Type: workflow.MappingTypeField,
		FieldMappings: []workflow.FieldMapping{
			{SourceField: "maybe", TargetField: "out", DefaultValue: "unused"},
		},
	}

	out, err := p.Transform(map[string]interface{}{"maybe": nil}, mapping, testContext())
	require.NoError(t, err)
	v, present := out["out"]
	assert.True(t, present)
	assert.Nil(t, v, "a stored null must pass through, not trigger the default")
}

func TestStaticValuesWinCollisions(t *testing.T) {
	p := NewProcessor(nil)
	mapping := &workflow.DataMapping{
		Type: workflow.MappingTypeField,
		FieldMappings: []workflow.FieldMapping{
			{SourceField: "source", TargetField: "status"},
		},
		StaticValues: map[string]interface{}{
			"status": "processed",
			"meta.version": float64(2),
		},
	}

	out, err := p.Transform(map[string]interface{}{"source": "raw"}, mapping, testContext())
	require.NoError(t, err)
	assert.Equal(t, "processed", out["status"])
	assert.Equal(t, float64(2), out["meta"].(map[string]interface{})["version"])
}

func TestStaticValueContextInterpolation(t *testing.T) {
	p := NewProcessor(nil)
	mapping := &workflow.DataMapping{
		Type: workflow.MappingTypeField,
		StaticValues: map[string]interface{}{
			"run":   "{{execution_id}}",
			"label": "run {{execution_id}} by {{user_id}}",
		},
	}

	out, err := p.Transform(map[string]interface{}{}, mapping, testContext())
	require.NoError(t, err)
	assert.Equal(t, "exec-42", out["run"])
	assert.Equal(t, "run exec-42 by user-7", out["label"])
}

func TestFieldMappingsApplyInDeclaredOrder(t *testing.T) {
	p := NewProcessor(nil)
	mapping := &workflow.DataMapping{
		Type: workflow.MappingTypeField,
		FieldMappings: []workflow.FieldMapping{
			{SourceField: "a", TargetField: "out"},
			{SourceField: "b", TargetField: "out"},
		},
	}

	out, err := p.Transform(map[string]interface{}{"a": "first", "b": "second"}, mapping, testContext())
	require.NoError(t, err)
	assert.Equal(t, "second", out["out"], "later mappings overwrite earlier ones")
}

func TestConditionTransform(t *testing.T) {
	p := NewProcessor(nil)
	mapping := &workflow.DataMapping{
		Type: workflow.MappingTypeField,
		FieldMappings: []workflow.FieldMapping{
			{SourceField: "amount", TargetField: "tier",
				Transform: &workflow.FieldTransform{
					Type:           workflow.TransformTypeCondition,
					TransformValue: "{{value}} > 100 ? 'premium' : 'standard'",
				}},
		},
	}

	out, err := p.Transform(map[string]interface{}{"amount": float64(250)}, mapping, testContext())
	require.NoError(t, err)
	assert.Equal(t, "premium", out["tier"])

	out, err = p.Transform(map[string]interface{}{"amount": float64(10)}, mapping, testContext())
	require.NoError(t, err)
	assert.Equal(t, "standard", out["tier"])
}

func TestTransformDoesNotMutateInput(t *testing.T) {
	p := NewProcessor(nil)
	input := map[string]interface{}{
		"items": []interface{}{map[string]interface{}{"sku": "a-1"}},
	}
	mapping := &workflow.DataMapping{
		Type: workflow.MappingTypeField,
		FieldMappings: []workflow.FieldMapping{
			{SourceField: "items", TargetField: "copied"},
		},
	}

	out, err := p.Transform(input, mapping, testContext())
	require.NoError(t, err)
	out["copied"].([]interface{})[0].(map[string]interface{})["sku"] = "mutated"
	assert.Equal(t, "a-1", input["items"].([]interface{})[0].(map[string]interface{})["sku"])
}

func TestUnknownMappingType(t *testing.T) {
	p := NewProcessor(nil)
	_, err := p.Transform(map[string]interface{}{}, &workflow.DataMapping{Type: "BOGUS"}, testContext())
	assert.Error(t, err)
}
