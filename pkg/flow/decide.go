package flow

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/expr"
	"github.com/wehubfusion/Daedalus/pkg/pathutil"
	"github.com/wehubfusion/Daedalus/pkg/payload"
	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

// Decision is the outcome of evaluating a FLOW node: which output keys fire.
// For SPLIT nodes AllKeys is set and every outgoing connection fires.
type Decision struct {
	// NodeID is the FLOW node that was evaluated
	NodeID string
	// Subtype is the flow kind that produced the decision
	Subtype workflow.FlowSubtype
	// SelectedKey is the single output key that fires (IF, SWITCH)
	SelectedKey string
	// AllKeys means every outgoing connection fires regardless of key (SPLIT)
	AllKeys bool
}

// Selects reports whether a connection carrying the given output key fires
// under this decision.
func (d Decision) Selects(outputKey string) bool {
	return d.AllKeys || d.SelectedKey == outputKey
}

// Engine computes FLOW node decisions. It holds no per-run state; per-run
// phase tracking lives in Instance.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates a flow-control engine. A nil logger is replaced with a
// no-op logger.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Decide evaluates an IF, SWITCH or SPLIT node against its resolved input.
// MERGE nodes are join points, not decisions; their policy is read with
// MergeConfigFromNode and applied by the orchestrator's barrier handling.
func (e *Engine) Decide(node workflow.Node, input map[string]interface{}) (Decision, error) {
	switch workflow.FlowSubtype(node.Subtype) {
	case workflow.FlowSubtypeIf:
		return e.decideIf(node, input)
	case workflow.FlowSubtypeSwitch:
		return e.decideSwitch(node, input)
	case workflow.FlowSubtypeSplit:
		return Decision{NodeID: node.ID, Subtype: workflow.FlowSubtypeSplit, AllKeys: true}, nil
	default:
		return Decision{}, &DecisionError{NodeID: node.ID, Reason: fmt.Sprintf("unknown flow subtype %q", node.Subtype)}
	}
}

// decideIf evaluates the node's condition. The condition is either a string
// expression over the input payload, or a {field, operator, value} triple.
func (e *Engine) decideIf(node workflow.Node, input map[string]interface{}) (Decision, error) {
	d := Decision{NodeID: node.ID, Subtype: workflow.FlowSubtypeIf}

	raw, ok := node.Configurations["condition"]
	if !ok {
		return Decision{}, &DecisionError{NodeID: node.ID, Reason: "IF node has no condition"}
	}

	var truthy bool
	switch cond := raw.(type) {
	case string:
		v, err := expr.EvalBool(cond, expr.Env(input))
		if err != nil {
			return Decision{}, &DecisionError{NodeID: node.ID, Reason: fmt.Sprintf("evaluating condition %q", cond), Err: err}
		}
		truthy = v
	case map[string]interface{}:
		v, err := evalTriple(cond, input)
		if err != nil {
			return Decision{}, &DecisionError{NodeID: node.ID, Reason: "evaluating condition triple", Err: err}
		}
		truthy = v
	default:
		return Decision{}, &DecisionError{NodeID: node.ID, Reason: "condition must be an expression string or a field/operator/value map"}
	}

	if truthy {
		d.SelectedKey = workflow.OutputKeyTruePath
	} else {
		d.SelectedKey = workflow.OutputKeyFalsePath
	}
	e.logger.Debug("if decided",
		zap.String("node_id", node.ID),
		zap.String("selected", d.SelectedKey))
	return d, nil
}

// decideSwitch matches the value at switch_field against the cases keys. The
// matched key is the selected output key; no match selects "default".
func (e *Engine) decideSwitch(node workflow.Node, input map[string]interface{}) (Decision, error) {
	d := Decision{NodeID: node.ID, Subtype: workflow.FlowSubtypeSwitch, SelectedKey: workflow.OutputKeyDefault}

	field, ok := node.ConfigString("switch_field")
	if !ok || field == "" {
		return Decision{}, &DecisionError{NodeID: node.ID, Reason: "SWITCH node has no switch_field"}
	}
	cases, _ := node.Configurations["cases"].(map[string]interface{})

	value, err := pathutil.Get(input, field)
	if err != nil {
		if _, bad := err.(*pathutil.InvalidPathError); bad {
			return Decision{}, &DecisionError{NodeID: node.ID, Reason: fmt.Sprintf("switch_field %q", field), Err: err}
		}
		// Missing field falls through to default.
		e.logger.Debug("switch field missing, taking default",
			zap.String("node_id", node.ID),
			zap.String("switch_field", field))
		return d, nil
	}

	text, err := payload.Stringify(value)
	if err != nil {
		return Decision{}, &DecisionError{NodeID: node.ID, Reason: "switch value is not representable", Err: err}
	}
	if _, matched := cases[text]; matched {
		d.SelectedKey = text
	}
	e.logger.Debug("switch decided",
		zap.String("node_id", node.ID),
		zap.String("selected", d.SelectedKey))
	return d, nil
}

// Comparison operators accepted in condition triples.
const (
	OpEquals             = "equals"
	OpNotEquals          = "not_equals"
	OpGreaterThan        = "greater_than"
	OpLessThan           = "less_than"
	OpGreaterThanOrEqual = "greater_than_or_equal"
	OpLessThanOrEqual    = "less_than_or_equal"
	OpContains           = "contains"
	OpNotContains        = "not_contains"
	OpStartsWith         = "starts_with"
	OpEndsWith           = "ends_with"
	OpRegex              = "regex"
	OpExists             = "exists"
	OpNotExists          = "not_exists"
)

// symbol forms map onto the named operators.
var operatorAliases = map[string]string{
	"==": OpEquals,
	"!=": OpNotEquals,
	">":  OpGreaterThan,
	"<":  OpLessThan,
	">=": OpGreaterThanOrEqual,
	"<=": OpLessThanOrEqual,
}

// evalTriple evaluates a {field, operator, value} condition against the
// input payload.
func evalTriple(cond map[string]interface{}, input map[string]interface{}) (bool, error) {
	field, _ := cond["field"].(string)
	if field == "" {
		return false, fmt.Errorf("condition triple has no field")
	}
	op, _ := cond["operator"].(string)
	if alias, ok := operatorAliases[op]; ok {
		op = alias
	}
	expected := cond["value"]

	actual, err := pathutil.Get(input, field)
	missing := false
	if err != nil {
		if _, bad := err.(*pathutil.InvalidPathError); bad {
			return false, err
		}
		missing = true
	}

	switch op {
	case OpExists:
		return !missing, nil
	case OpNotExists:
		return missing, nil
	}
	if missing {
		return false, nil
	}

	switch op {
	case OpEquals:
		return looseEquals(actual, expected), nil
	case OpNotEquals:
		return !looseEquals(actual, expected), nil
	case OpGreaterThan, OpLessThan, OpGreaterThanOrEqual, OpLessThanOrEqual:
		a, aok := payload.ToFloat64(actual)
		b, bok := payload.ToFloat64(expected)
		if !aok || !bok {
			return false, fmt.Errorf("operator %q requires numeric operands", op)
		}
		switch op {
		case OpGreaterThan:
			return a > b, nil
		case OpLessThan:
			return a < b, nil
		case OpGreaterThanOrEqual:
			return a >= b, nil
		default:
			return a <= b, nil
		}
	case OpContains, OpNotContains, OpStartsWith, OpEndsWith, OpRegex:
		return evalStringOp(op, actual, expected)
	default:
		return false, fmt.Errorf("unsupported operator %q", op)
	}
}

func looseEquals(a, b interface{}) bool {
	if af, aok := payload.ToFloat64(a); aok {
		if bf, bok := payload.ToFloat64(b); bok {
			return af == bf
		}
	}
	return payload.Equal(a, b)
}

func evalStringOp(op string, actual, expected interface{}) (bool, error) {
	a, err := payload.Stringify(actual)
	if err != nil {
		return false, err
	}
	b, err := payload.Stringify(expected)
	if err != nil {
		return false, err
	}
	switch op {
	case OpContains:
		return strings.Contains(a, b), nil
	case OpNotContains:
		return !strings.Contains(a, b), nil
	case OpStartsWith:
		return strings.HasPrefix(a, b), nil
	case OpEndsWith:
		return strings.HasSuffix(a, b), nil
	default:
		re, err := regexp.Compile(b)
		if err != nil {
			return false, fmt.Errorf("invalid pattern %q: %w", b, err)
		}
		return re.MatchString(a), nil
	}
}
