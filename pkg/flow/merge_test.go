package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

func TestCombineKeysBySourceNodeID(t *testing.T) {
	cfg := MergeConfig{WaitForAll: true, Strategy: MergeStrategyCombine, OutputField: "merged"}
	outputs := map[string]map[string]interface{}{
		"fetch-a": {"value": float64(1)},
		"fetch-b": {"value": float64(2)},
	}

	out, err := Combine(cfg, outputs)
	require.NoError(t, err)
	merged := out["merged"].(map[string]interface{})
	assert.Equal(t, float64(1), merged["fetch-a"].(map[string]interface{})["value"])
	assert.Equal(t, float64(2), merged["fetch-b"].(map[string]interface{})["value"])
}

func TestCombineNestedOutputField(t *testing.T) {
	cfg := MergeConfig{Strategy: MergeStrategyCombine, OutputField: "results.all"}
	out, err := Combine(cfg, map[string]map[string]interface{}{"n1": {"k": "v"}})
	require.NoError(t, err)
	results := out["results"].(map[string]interface{})
	all := results["all"].(map[string]interface{})
	assert.Contains(t, all, "n1")
}

func TestCombineClonesOutputs(t *testing.T) {
	cfg := MergeConfig{Strategy: MergeStrategyCombine, OutputField: "merged"}
	src := map[string]interface{}{"k": "original"}
	out, err := Combine(cfg, map[string]map[string]interface{}{"n1": src})
	require.NoError(t, err)

	out["merged"].(map[string]interface{})["n1"].(map[string]interface{})["k"] = "mutated"
	assert.Equal(t, "original", src["k"])
}

func TestCombineUnknownStrategy(t *testing.T) {
	_, err := Combine(MergeConfig{Strategy: "zip", OutputField: "merged"}, nil)
	assert.Error(t, err)
}

func TestMergeConfigDefaults(t *testing.T) {
	node := workflow.Node{ID: "m", Type: workflow.NodeTypeFlow, Subtype: string(workflow.FlowSubtypeMerge)}
	cfg := MergeConfigFromNode(node)
	assert.True(t, cfg.WaitForAll)
	assert.Equal(t, MergeStrategyCombine, cfg.Strategy)
	assert.Equal(t, DefaultMergeOutputField, cfg.OutputField)

	node.Configurations = map[string]interface{}{
		"wait_for_all": false,
		"output_field": "collected",
	}
	cfg = MergeConfigFromNode(node)
	assert.False(t, cfg.WaitForAll)
	assert.Equal(t, "collected", cfg.OutputField)
}

func TestSplitConfigFromNode(t *testing.T) {
	node := workflow.Node{
		ID:             "s",
		Type:           workflow.NodeTypeFlow,
		Subtype:        string(workflow.FlowSubtypeSplit),
		Configurations: map[string]interface{}{"max_parallel": float64(2)},
	}
	assert.Equal(t, 2, SplitConfigFromNode(node).MaxParallel)

	node.Configurations = nil
	assert.Equal(t, 0, SplitConfigFromNode(node).MaxParallel)
}

func TestInstancePhases(t *testing.T) {
	inst := NewInstance("m-1")
	assert.Equal(t, PhaseEvaluating, inst.Phase())

	require.NoError(t, inst.Advance(PhaseDecided))
	require.NoError(t, inst.Advance(PhaseJoining))
	require.NoError(t, inst.Advance(PhaseDone))
	assert.Equal(t, PhaseDone, inst.Phase())

	err := inst.Advance(PhaseDecided)
	require.Error(t, err)
	var perr *PhaseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "m-1", perr.NodeID)
}

func TestInstanceSkipsJoiningForNonMerge(t *testing.T) {
	inst := NewInstance("if-1")
	require.NoError(t, inst.Advance(PhaseDecided))
	require.NoError(t, inst.Advance(PhaseDone))
	assert.Error(t, inst.Advance(PhaseJoining))
}
