package expr

import (
	"fmt"

	"github.com/wehubfusion/Daedalus/pkg/pathutil"
	"github.com/wehubfusion/Daedalus/pkg/payload"
)

// EvalError reports an evaluation failure (unknown identifier, bad operand
// types, division by zero).
type EvalError struct {
	// Expression is the expression text when known
	Expression string
	// Reason describes the failure
	Reason string
}

func (e *EvalError) Error() string {
	if e.Expression == "" {
		return "expression evaluation failed: " + e.Reason
	}
	return fmt.Sprintf("evaluating %q: %s", e.Expression, e.Reason)
}

// Env resolves identifiers during evaluation. Identifiers are payload paths
// resolved with the path resolver, so "items[0].sku" works inside conditions.
type Env map[string]interface{}

// Lookup resolves a dotted identifier against the environment.
func (e Env) Lookup(name string) (interface{}, bool) {
	if v, ok := e[name]; ok {
		return v, true
	}
	v, err := pathutil.Get(map[string]interface{}(e), name)
	if err != nil {
		return nil, false
	}
	return v, true
}

// Eval parses and evaluates input against env in one call.
func Eval(input string, env Env) (interface{}, error) {
	node, err := Parse(input)
	if err != nil {
		return nil, err
	}
	v, err := evalNode(node, env)
	if err != nil {
		if ee, ok := err.(*EvalError); ok && ee.Expression == "" {
			ee.Expression = input
		}
		return nil, err
	}
	return v, nil
}

// EvalBool evaluates input and coerces the result to a boolean: false, null,
// zero and the empty string are falsy, everything else truthy.
func EvalBool(input string, env Env) (bool, error) {
	v, err := Eval(input, env)
	if err != nil {
		return false, err
	}
	return Truthy(v), nil
}

// Truthy reports the boolean interpretation of a payload value.
func Truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	default:
		return false
	}
}

func evalNode(node Node, env Env) (interface{}, error) {
	switch n := node.(type) {
	case LiteralNode:
		return n.Value, nil
	case IdentNode:
		v, ok := env.Lookup(n.Name)
		if !ok {
			return nil, &EvalError{Reason: fmt.Sprintf("unknown identifier %q", n.Name)}
		}
		return v, nil
	case UnaryNode:
		operand, err := evalNode(n.Operand, env)
		if err != nil {
			return nil, err
		}
		f, ok := payload.ToFloat64(operand)
		if !ok {
			return nil, &EvalError{Reason: fmt.Sprintf("unary %q needs a number, got %s", n.Op, payload.KindOf(operand))}
		}
		return -f, nil
	case TernaryNode:
		cond, err := evalNode(n.Cond, env)
		if err != nil {
			return nil, err
		}
		if Truthy(cond) {
			return evalNode(n.Then, env)
		}
		return evalNode(n.Else, env)
	case BinaryNode:
		return evalBinary(n, env)
	default:
		return nil, &EvalError{Reason: fmt.Sprintf("unknown node type %T", node)}
	}
}

func evalBinary(n BinaryNode, env Env) (interface{}, error) {
	// Short-circuit logical operators before evaluating the right side.
	if n.Op == "&&" || n.Op == "||" {
		left, err := evalNode(n.Left, env)
		if err != nil {
			return nil, err
		}
		lt := Truthy(left)
		if n.Op == "&&" && !lt {
			return false, nil
		}
		if n.Op == "||" && lt {
			return true, nil
		}
		right, err := evalNode(n.Right, env)
		if err != nil {
			return nil, err
		}
		return Truthy(right), nil
	}

	left, err := evalNode(n.Left, env)
	if err != nil {
		return nil, err
	}
	right, err := evalNode(n.Right, env)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case "==":
		return looseEqual(left, right), nil
	case "!=":
		return !looseEqual(left, right), nil
	case "<", "<=", ">", ">=":
		return compareOrdered(n.Op, left, right)
	case "+", "-", "*", "/", "%":
		return arithmetic(n.Op, left, right)
	default:
		return nil, &EvalError{Reason: fmt.Sprintf("unsupported operator %q", n.Op)}
	}
}

// looseEqual compares with the engine's coercion rule: when both sides coerce
// to numbers the comparison is numeric, otherwise values compare literally.
func looseEqual(a, b interface{}) bool {
	if fa, ok := payload.ToFloat64(a); ok {
		if fb, ok := payload.ToFloat64(b); ok {
			return fa == fb
		}
	}
	return payload.Equal(a, b)
}

// compareOrdered applies <, <=, >, >= with numeric coercion; when either side
// is not numeric both are compared as literal strings.
func compareOrdered(op string, a, b interface{}) (interface{}, error) {
	fa, okA := payload.ToFloat64(a)
	fb, okB := payload.ToFloat64(b)
	if okA && okB {
		switch op {
		case "<":
			return fa < fb, nil
		case "<=":
			return fa <= fb, nil
		case ">":
			return fa > fb, nil
		default:
			return fa >= fb, nil
		}
	}

	sa, okA := a.(string)
	sb, okB := b.(string)
	if !okA || !okB {
		return nil, &EvalError{Reason: fmt.Sprintf("cannot order %s against %s", payload.KindOf(a), payload.KindOf(b))}
	}
	switch op {
	case "<":
		return sa < sb, nil
	case "<=":
		return sa <= sb, nil
	case ">":
		return sa > sb, nil
	default:
		return sa >= sb, nil
	}
}

// arithmetic is float64 throughout. "+" concatenates when both operands are
// strings.
func arithmetic(op string, a, b interface{}) (interface{}, error) {
	if op == "+" {
		if sa, ok := a.(string); ok {
			if sb, ok := b.(string); ok {
				return sa + sb, nil
			}
		}
	}

	fa, okA := payload.ToFloat64(a)
	fb, okB := payload.ToFloat64(b)
	if !okA || !okB {
		return nil, &EvalError{Reason: fmt.Sprintf("arithmetic %q needs numbers, got %s and %s", op, payload.KindOf(a), payload.KindOf(b))}
	}
	switch op {
	case "+":
		return fa + fb, nil
	case "-":
		return fa - fb, nil
	case "*":
		return fa * fb, nil
	case "/":
		if fb == 0 {
			return nil, &EvalError{Reason: "division by zero"}
		}
		return fa / fb, nil
	default: // %
		if fb == 0 {
			return nil, &EvalError{Reason: "modulo by zero"}
		}
		return float64(int64(fa) % int64(fb)), nil
	}
}
