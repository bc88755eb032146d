package flow

import (
	"fmt"
	"sort"

	"github.com/wehubfusion/Daedalus/pkg/pathutil"
	"github.com/wehubfusion/Daedalus/pkg/payload"
)

// Combine merges predecessor outputs per the MERGE node's policy. Outputs are
// keyed by source node id, which is unique within a workflow, so the result
// is collision-free and independent of arrival order. The combined map is
// written under cfg.OutputField.
func Combine(cfg MergeConfig, outputs map[string]map[string]interface{}) (map[string]interface{}, error) {
	if cfg.Strategy != MergeStrategyCombine {
		return nil, fmt.Errorf("unsupported merge strategy %q", cfg.Strategy)
	}

	combined := make(map[string]interface{}, len(outputs))
	ids := make([]string, 0, len(outputs))
	for id := range outputs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		combined[id] = payload.CloneMap(outputs[id])
	}

	out := make(map[string]interface{})
	if err := pathutil.Set(out, cfg.OutputField, combined); err != nil {
		return nil, fmt.Errorf("writing merge output to %q: %w", cfg.OutputField, err)
	}
	return out, nil
}
