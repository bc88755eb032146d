package flow

import (
	"github.com/wehubfusion/Daedalus/pkg/payload"
	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

// Merge strategies.
const (
	MergeStrategyCombine = "combine"
)

// DefaultMergeOutputField is where combined predecessor outputs land when the
// MERGE node does not configure "output_field".
const DefaultMergeOutputField = "merged"

// SplitConfig is the parsed configuration of a SPLIT node.
type SplitConfig struct {
	// MaxParallel bounds how many downstream branch subgraphs of this SPLIT
	// may run at once. Zero or negative means unbounded.
	MaxParallel int
}

// SplitConfigFromNode reads "max_parallel" from the node's configurations.
func SplitConfigFromNode(node workflow.Node) SplitConfig {
	cfg := SplitConfig{}
	if v, ok := node.Configurations["max_parallel"]; ok {
		if f, ok := payload.ToFloat64(v); ok {
			cfg.MaxParallel = int(f)
		}
	}
	return cfg
}

// MergeConfig is the parsed configuration of a MERGE node.
type MergeConfig struct {
	// WaitForAll makes the node a barrier: it executes only after every
	// non-skipped inbound predecessor reaches a terminal state. When false the
	// node executes on the first predecessor's terminal state and ignores
	// later arrivals.
	WaitForAll bool
	// Strategy is the combination policy; only MergeStrategyCombine is
	// defined.
	Strategy string
	// OutputField is the path in the merged payload under which predecessor
	// outputs are written.
	OutputField string
}

// MergeConfigFromNode reads "wait_for_all", "merge_strategy" and
// "output_field" from the node's configurations, applying defaults.
func MergeConfigFromNode(node workflow.Node) MergeConfig {
	cfg := MergeConfig{
		WaitForAll:  node.ConfigBool("wait_for_all", true),
		Strategy:    MergeStrategyCombine,
		OutputField: DefaultMergeOutputField,
	}
	if s, ok := node.ConfigString("merge_strategy"); ok && s != "" {
		cfg.Strategy = s
	}
	if s, ok := node.ConfigString("output_field"); ok && s != "" {
		cfg.OutputField = s
	}
	return cfg
}
