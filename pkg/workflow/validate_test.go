package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validWorkflow() *Workflow {
	return &Workflow{
		ID: "wf-1",
		Nodes: []Node{
			{ID: "t", Type: NodeTypeTrigger, Subtype: "manual"},
			{ID: "a", Type: NodeTypeAction, Subtype: "http"},
			{ID: "b", Type: NodeTypeAction, Subtype: "http"},
		},
		Connections: []Connection{
			{ID: "c1", FromNode: "t", ToNode: "a"},
			{ID: "c2", FromNode: "a", ToNode: "b"},
		},
		TriggerNodes: []string{"t"},
	}
}

func TestValidateAccepts(t *testing.T) {
	assert.NoError(t, Validate(validWorkflow()))
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Workflow)
	}{
		{"nil nodes", func(w *Workflow) { w.Nodes = nil }},
		{"empty node id", func(w *Workflow) { w.Nodes[1].ID = "" }},
		{"duplicate node id", func(w *Workflow) { w.Nodes[2].ID = "a" }},
		{"unknown from_node", func(w *Workflow) { w.Connections[0].FromNode = "ghost" }},
		{"unknown to_node", func(w *Workflow) { w.Connections[1].ToNode = "ghost" }},
		{"self edge", func(w *Workflow) { w.Connections[0].ToNode = "t" }},
		{"no triggers", func(w *Workflow) { w.TriggerNodes = nil }},
		{"trigger id missing", func(w *Workflow) { w.TriggerNodes = []string{"ghost"} }},
		{"trigger wrong type", func(w *Workflow) { w.TriggerNodes = []string{"a"} }},
		{"unreachable node", func(w *Workflow) { w.Connections = w.Connections[:1] }},
		{"cycle", func(w *Workflow) {
			w.Connections = append(w.Connections, Connection{ID: "c3", FromNode: "b", ToNode: "a"})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := validWorkflow()
			tt.mutate(w)
			err := Validate(w)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidWorkflow)
		})
	}
}

func TestValidateNil(t *testing.T) {
	assert.ErrorIs(t, Validate(nil), ErrInvalidWorkflow)
}

func TestNodeByID(t *testing.T) {
	w := validWorkflow()
	n, ok := w.NodeByID("a")
	require.True(t, ok)
	assert.Equal(t, NodeTypeAction, n.Type)

	_, ok = w.NodeByID("ghost")
	assert.False(t, ok)
}

func TestConnectionLookups(t *testing.T) {
	w := validWorkflow()
	from := w.ConnectionsFrom("t")
	require.Len(t, from, 1)
	assert.Equal(t, "a", from[0].ToNode)

	to := w.ConnectionsTo("b")
	require.Len(t, to, 1)
	assert.Equal(t, "a", to[0].FromNode)

	assert.Empty(t, w.ConnectionsFrom("b"))
}

func TestEffectiveOutputKey(t *testing.T) {
	assert.Equal(t, OutputKeyResult, Connection{}.EffectiveOutputKey())
	assert.Equal(t, "true_path", Connection{OutputKey: "true_path"}.EffectiveOutputKey())
}

func TestConfigHelpers(t *testing.T) {
	n := Node{Configurations: map[string]interface{}{
		"name":    "x",
		"enabled": true,
		"blank":   "",
	}}

	s, ok := n.ConfigString("name")
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	_, ok = n.ConfigString("missing")
	assert.False(t, ok)

	assert.True(t, n.ConfigBool("enabled", false))
	assert.False(t, n.ConfigBool("missing", false))
	assert.True(t, n.ConfigBool("missing", true))
}
