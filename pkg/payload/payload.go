// Package payload provides helpers for the JSON-shaped values that flow
// between nodes. Payloads are restricted to the six JSON kinds (null, bool,
// number, string, sequence, map) so the path resolver and transform library
// can match exhaustively over them.
package payload

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind classifies a payload value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSequence
	KindMap
	KindInvalid
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindMap:
		return "map"
	default:
		return "invalid"
	}
}

// KindOf classifies v. Values outside the six JSON kinds report KindInvalid;
// Normalize converts common Go numerics into the canonical float64 form.
func KindOf(v interface{}) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case float64:
		return KindNumber
	case string:
		return KindString
	case []interface{}:
		return KindSequence
	case map[string]interface{}:
		return KindMap
	default:
		return KindInvalid
	}
}

// Normalize converts v into canonical payload form: integers and float32
// become float64, nested maps and slices are normalized recursively, and any
// value outside the JSON kinds is rejected. The input is not mutated.
func Normalize(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case nil, bool, float64, string:
		return t, nil
	case int:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case float32:
		return float64(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("payload: invalid number %q: %w", t.String(), err)
		}
		return f, nil
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			n, err := Normalize(item)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			n, err := Normalize(item)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("payload: unsupported value type %T", v)
	}
}

// Clone deep-copies a payload value. Results handed between engine layers are
// cloned so a NodeExecutionResult is never mutated after creation.
func Clone(v interface{}) interface{} {
	switch t := v.(type) {
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = Clone(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			out[k] = Clone(item)
		}
		return out
	default:
		// Scalars are immutable.
		return t
	}
}

// CloneMap deep-copies a map payload, returning an empty map for nil input.
func CloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return Clone(m).(map[string]interface{})
}

// Equal reports deep equality of two payload values. Numbers compare by
// float64 value.
func Equal(a, b interface{}) bool {
	switch ta := a.(type) {
	case nil:
		return b == nil
	case bool:
		tb, ok := b.(bool)
		return ok && ta == tb
	case float64:
		tb, ok := b.(float64)
		return ok && ta == tb
	case string:
		tb, ok := b.(string)
		return ok && ta == tb
	case []interface{}:
		tb, ok := b.([]interface{})
		if !ok || len(ta) != len(tb) {
			return false
		}
		for i := range ta {
			if !Equal(ta[i], tb[i]) {
				return false
			}
		}
		return true
	case map[string]interface{}:
		tb, ok := b.(map[string]interface{})
		if !ok || len(ta) != len(tb) {
			return false
		}
		for k, va := range ta {
			vb, ok := tb[k]
			if !ok || !Equal(va, vb) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// ToFloat64 coerces v into a float64 following the engine's comparison rule:
// numbers pass through, numeric strings parse, booleans are 0/1.
func ToFloat64(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// FormatNumber renders a float64 the way payload values print in templates:
// integral values without a trailing ".0", everything else in shortest form.
func FormatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Stringify renders a payload value for interpolation into rendered text.
// Strings are returned as-is; composites render as compact JSON.
func Stringify(v interface{}) (string, error) {
	switch t := v.(type) {
	case nil:
		return "null", nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return FormatNumber(t), nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", fmt.Errorf("payload: cannot stringify %T: %w", v, err)
		}
		return string(b), nil
	}
}
