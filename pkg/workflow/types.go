// Package workflow defines the data model for workflow graphs: nodes,
// connections, data mappings and the per-run execution types consumed by the
// execution engine.
package workflow

import (
	"encoding/json"
	"time"
)

// NodeType identifies the broad category of a node. The concrete behavior of a
// node is selected by (Type, Subtype) in the host's executor registry; the
// engine itself only gives special treatment to TRIGGER and FLOW nodes.
type NodeType string

const (
	NodeTypeTrigger        NodeType = "TRIGGER"
	NodeTypeAction         NodeType = "ACTION"
	NodeTypeAIAgent        NodeType = "AI_AGENT"
	NodeTypeTool           NodeType = "TOOL"
	NodeTypeExternalAction NodeType = "EXTERNAL_ACTION"
	NodeTypeFlow           NodeType = "FLOW"
	NodeTypeHumanInTheLoop NodeType = "HUMAN_IN_THE_LOOP"
	NodeTypeMemory         NodeType = "MEMORY"
)

// FlowSubtype identifies the control behavior of a FLOW node.
type FlowSubtype string

const (
	FlowSubtypeIf     FlowSubtype = "IF"
	FlowSubtypeSwitch FlowSubtype = "SWITCH"
	FlowSubtypeSplit  FlowSubtype = "SPLIT"
	FlowSubtypeMerge  FlowSubtype = "MERGE"
)

// Well-known output keys. Plain nodes publish on OutputKeyResult; IF nodes on
// the true/false paths; SWITCH nodes on a case label or OutputKeyDefault.
const (
	OutputKeyResult    = "result"
	OutputKeyTruePath  = "true_path"
	OutputKeyFalsePath = "false_path"
	OutputKeyDefault   = "default"
)

// Metadata carries workflow identification and ownership information.
type Metadata struct {
	// Name is the human-readable workflow name
	Name string `json:"name"`
	// Version is the authoring version of the workflow definition
	Version string `json:"version"`
	// Owner identifies the user or team owning the workflow
	Owner string `json:"owner,omitempty"`
	// CreatedAt is the creation timestamp
	CreatedAt time.Time `json:"created_at,omitempty"`
	// UpdatedAt is the last update timestamp
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Workflow is an immutable directed graph of typed nodes. A workflow must not
// be mutated once an execution has started; authoring flows operate on copies.
type Workflow struct {
	// ID uniquely identifies the workflow
	ID string `json:"id"`
	// Metadata holds name, version and ownership information
	Metadata Metadata `json:"metadata"`
	// Nodes is the ordered set of nodes in the graph
	Nodes []Node `json:"nodes"`
	// Connections is the set of directed data edges between nodes
	Connections []Connection `json:"connections"`
	// TriggerNodes lists the ids of the entry-point trigger nodes
	TriggerNodes []string `json:"trigger_nodes"`
}

// NodeByID returns the node with the given id, if present.
func (w *Workflow) NodeByID(id string) (*Node, bool) {
	for i := range w.Nodes {
		if w.Nodes[i].ID == id {
			return &w.Nodes[i], true
		}
	}
	return nil, false
}

// ConnectionsFrom returns all connections leaving the given node.
func (w *Workflow) ConnectionsFrom(nodeID string) []Connection {
	var out []Connection
	for _, c := range w.Connections {
		if c.FromNode == nodeID {
			out = append(out, c)
		}
	}
	return out
}

// ConnectionsTo returns all connections arriving at the given node.
func (w *Workflow) ConnectionsTo(nodeID string) []Connection {
	var out []Connection
	for _, c := range w.Connections {
		if c.ToNode == nodeID {
			out = append(out, c)
		}
	}
	return out
}

// Node is a unit of work in the workflow graph.
type Node struct {
	// ID uniquely identifies the node within its workflow
	ID string `json:"id"`
	// Type is the broad node category
	Type NodeType `json:"type"`
	// Subtype selects concrete behavior within the type (interpreted by the
	// executor registry, or by the flow-control engine for FLOW nodes)
	Subtype string `json:"subtype"`
	// Configurations holds static configuration resolved at deploy time.
	// Credentials are injected here by the credential provider before the
	// engine ever sees the node.
	Configurations map[string]interface{} `json:"configurations,omitempty"`
	// InputParams holds default runtime input values and schema hints
	InputParams map[string]interface{} `json:"input_params,omitempty"`
	// OutputParams holds default runtime output values and schema hints
	OutputParams map[string]interface{} `json:"output_params,omitempty"`
}

// IsTrigger reports whether the node is a workflow entry point.
func (n Node) IsTrigger() bool { return n.Type == NodeTypeTrigger }

// IsFlow reports whether the node is handled by the flow-control engine.
func (n Node) IsFlow() bool { return n.Type == NodeTypeFlow }

// ConfigString returns a string configuration value, with ok reporting
// whether the key was present and a string.
func (n Node) ConfigString(key string) (string, bool) {
	v, ok := n.Configurations[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// ConfigBool returns a boolean configuration value, defaulting to def when the
// key is absent or not a boolean.
func (n Node) ConfigBool(key string, def bool) bool {
	if v, ok := n.Configurations[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Connection is a directed, possibly-transformed data edge between two nodes.
type Connection struct {
	// ID uniquely identifies the connection
	ID string `json:"id"`
	// FromNode is the id of the source node
	FromNode string `json:"from_node"`
	// ToNode is the id of the target node
	ToNode string `json:"to_node"`
	// OutputKey selects the logical output port of FromNode carried by this
	// edge: "result" for plain nodes, "true_path"/"false_path" for IF, a case
	// label or "default" for SWITCH. Empty means "result".
	OutputKey string `json:"output_key,omitempty"`
	// DataMapping, when present, declares how the source output is transformed
	// into the target input
	DataMapping *DataMapping `json:"data_mapping,omitempty"`
	// ConversionFunction names a registered conversion applied when no data
	// mapping is present. Empty means identity passthrough.
	ConversionFunction string `json:"conversion_function,omitempty"`
}

// EffectiveOutputKey returns the output key with the "result" default applied.
func (c Connection) EffectiveOutputKey() string {
	if c.OutputKey == "" {
		return OutputKeyResult
	}
	return c.OutputKey
}

// MappingType discriminates the two data-mapping flavors.
type MappingType string

const (
	MappingTypeField    MappingType = "FIELD_MAPPING"
	MappingTypeTemplate MappingType = "TEMPLATE"
)

// DataMapping declares how one node's output becomes another node's input.
type DataMapping struct {
	// Type selects field-by-field mapping or whole-payload templating
	Type MappingType `json:"type"`
	// FieldMappings is the ordered list of field rules (FIELD_MAPPING only).
	// Order is significant: later writes win on colliding target paths.
	FieldMappings []FieldMapping `json:"field_mappings,omitempty"`
	// StaticValues are written after all field mappings and may overwrite
	// them; values may contain {{context_var}} placeholders
	StaticValues map[string]interface{} `json:"static_values,omitempty"`
	// TransformScript is a structured-text template rendered and re-parsed as
	// structured data (TEMPLATE only)
	TransformScript string `json:"transform_script,omitempty"`
}

// FieldMapping maps a single source path to a target path.
type FieldMapping struct {
	// SourceField is the path into the source payload
	SourceField string `json:"source_field"`
	// TargetField is the path into the output payload
	TargetField string `json:"target_field"`
	// Required makes a missing source (with no default) a mapping error
	Required bool `json:"required,omitempty"`
	// DefaultValue is used when the source path is not found
	DefaultValue interface{} `json:"default_value,omitempty"`
	// HasDefault distinguishes an explicit null default from no default
	HasDefault bool `json:"has_default,omitempty"`
	// Transform optionally reshapes the resolved value
	Transform *FieldTransform `json:"transform,omitempty"`
}

// TransformType discriminates the two field-transform flavors.
type TransformType string

const (
	TransformTypeFunction  TransformType = "FUNCTION"
	TransformTypeCondition TransformType = "CONDITION"
)

// FieldTransform applies a named function or a conditional expression to a
// resolved field value.
type FieldTransform struct {
	// Type selects a registry function or a conditional expression
	Type TransformType `json:"type"`
	// TransformValue is the function name (FUNCTION) or the conditional
	// expression template with a {{value}} placeholder (CONDITION)
	TransformValue string `json:"transform_value"`
	// Options holds named arguments for FUNCTION transforms
	Options map[string]interface{} `json:"options,omitempty"`
}

// ExecutionContext carries the read-only per-run values interpolatable inside
// mapping expressions via {{context_var}}.
type ExecutionContext struct {
	// WorkflowID is the id of the workflow being executed
	WorkflowID string `json:"workflow_id"`
	// ExecutionID uniquely identifies this run
	ExecutionID string `json:"execution_id"`
	// NodeID is the node currently being processed
	NodeID string `json:"node_id"`
	// CurrentTime is the run clock reading when the context was captured
	CurrentTime time.Time `json:"current_time"`
	// UserID identifies the user on whose behalf the run executes
	UserID string `json:"user_id,omitempty"`
	// SessionID identifies the originating session, if any
	SessionID string `json:"session_id,omitempty"`
}

// Vars returns the context as a flat variable map for template interpolation.
func (c ExecutionContext) Vars() map[string]interface{} {
	return map[string]interface{}{
		"workflow_id":  c.WorkflowID,
		"execution_id": c.ExecutionID,
		"node_id":      c.NodeID,
		"current_time": c.CurrentTime.UTC().Format(time.RFC3339),
		"user_id":      c.UserID,
		"session_id":   c.SessionID,
	}
}

// WithNode returns a copy of the context scoped to the given node.
func (c ExecutionContext) WithNode(nodeID string) ExecutionContext {
	c.NodeID = nodeID
	return c
}

// NodeStatus is the execution status of a single node result.
type NodeStatus string

const (
	NodeStatusSuccess NodeStatus = "SUCCESS"
	NodeStatusError   NodeStatus = "ERROR"
	NodeStatusSkipped NodeStatus = "SKIPPED"
)

// NodeExecutionResult is produced by a node executor and consumed by the
// connection executor and the flow-control engine. Results are never mutated
// after creation; mapping layers copy on transform.
type NodeExecutionResult struct {
	// NodeID is the node that produced this result
	NodeID string `json:"node_id"`
	// Status is SUCCESS, ERROR or SKIPPED
	Status NodeStatus `json:"status"`
	// OutputData is the node's output payload
	OutputData map[string]interface{} `json:"output_data,omitempty"`
	// ExecutionTime is how long the node executor ran
	ExecutionTime time.Duration `json:"execution_time"`
	// ErrorMessage is set when Status is ERROR
	ErrorMessage string `json:"error_message,omitempty"`
}

// Succeeded reports whether the result completed with SUCCESS.
func (r NodeExecutionResult) Succeeded() bool { return r.Status == NodeStatusSuccess }

// MarshalSummary returns a compact JSON summary of the output for event
// emission. Large payloads are summarized by their top-level keys only.
func (r NodeExecutionResult) MarshalSummary(maxBytes int) string {
	if r.OutputData == nil {
		return ""
	}
	b, err := json.Marshal(r.OutputData)
	if err != nil {
		return ""
	}
	if maxBytes <= 0 || len(b) <= maxBytes {
		return string(b)
	}
	keys := make([]string, 0, len(r.OutputData))
	for k := range r.OutputData {
		keys = append(keys, k)
	}
	kb, _ := json.Marshal(map[string]interface{}{"_truncated": true, "keys": keys})
	return string(kb)
}
