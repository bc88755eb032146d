package transform

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/wehubfusion/Daedalus/pkg/payload"
)

// registerBuiltins loads the fixed builtin set into a registry. Every builtin
// is pure: no clock reads, no randomness, no mutation of the input.
func registerBuiltins(r *Registry) {
	r.Register("string_upper", stringUpper)
	r.Register("string_lower", stringLower)
	r.Register("string_title", stringTitle)
	r.Register("string_trim", stringTrim)
	r.Register("string_replace", stringReplace, "old", "new")
	r.Register("truncate", truncate, "length", "ellipsis")
	r.Register("math_round", mathRound, "digits")
	r.Register("math_abs", mathAbs)
	r.Register("math_floor", mathFloor)
	r.Register("math_ceil", mathCeil)
	r.Register("array_join", arrayJoin, "separator")
	r.Register("array_length", arrayLength)
	r.Register("array_first", arrayFirst)
	r.Register("array_last", arrayLast)
	r.Register("date_format", dateFormat, "format")
}

func asString(name string, v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", &TransformError{Name: name, Reason: fmt.Sprintf("expected a string, got %s", payload.KindOf(v))}
	}
	return s, nil
}

func asNumber(name string, v interface{}) (float64, error) {
	f, ok := payload.ToFloat64(v)
	if !ok {
		return 0, &TransformError{Name: name, Reason: fmt.Sprintf("expected a number, got %s", payload.KindOf(v))}
	}
	return f, nil
}

func asSequence(name string, v interface{}) ([]interface{}, error) {
	seq, ok := v.([]interface{})
	if !ok {
		return nil, &TransformError{Name: name, Reason: fmt.Sprintf("expected a sequence, got %s", payload.KindOf(v))}
	}
	return seq, nil
}

func optionString(options map[string]interface{}, key, def string) string {
	if v, ok := options[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

func optionInt(options map[string]interface{}, key string, def int) (int, bool) {
	v, ok := options[key]
	if !ok {
		return def, true
	}
	f, ok := payload.ToFloat64(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func stringUpper(v interface{}, _ map[string]interface{}) (interface{}, error) {
	s, err := asString("string_upper", v)
	if err != nil {
		return nil, err
	}
	return strings.ToUpper(s), nil
}

func stringLower(v interface{}, _ map[string]interface{}) (interface{}, error) {
	s, err := asString("string_lower", v)
	if err != nil {
		return nil, err
	}
	return strings.ToLower(s), nil
}

// stringTitle uses Unicode-aware title casing rather than byte-wise casing.
func stringTitle(v interface{}, _ map[string]interface{}) (interface{}, error) {
	s, err := asString("string_title", v)
	if err != nil {
		return nil, err
	}
	return cases.Title(language.Und).String(s), nil
}

func stringTrim(v interface{}, _ map[string]interface{}) (interface{}, error) {
	s, err := asString("string_trim", v)
	if err != nil {
		return nil, err
	}
	return strings.TrimSpace(s), nil
}

func stringReplace(v interface{}, options map[string]interface{}) (interface{}, error) {
	s, err := asString("string_replace", v)
	if err != nil {
		return nil, err
	}
	oldS := optionString(options, "old", "")
	if oldS == "" {
		return nil, &TransformError{Name: "string_replace", Reason: "option \"old\" is required"}
	}
	return strings.ReplaceAll(s, oldS, optionString(options, "new", "")), nil
}

func truncate(v interface{}, options map[string]interface{}) (interface{}, error) {
	s, err := asString("truncate", v)
	if err != nil {
		return nil, err
	}
	length, ok := optionInt(options, "length", -1)
	if !ok || length < 0 {
		return nil, &TransformError{Name: "truncate", Reason: "option \"length\" must be a non-negative number"}
	}
	runes := []rune(s)
	if len(runes) <= length {
		return s, nil
	}
	return string(runes[:length]) + optionString(options, "ellipsis", ""), nil
}

// mathRound rounds half away from zero at the given number of digits.
func mathRound(v interface{}, options map[string]interface{}) (interface{}, error) {
	f, err := asNumber("math_round", v)
	if err != nil {
		return nil, err
	}
	digits, ok := optionInt(options, "digits", 0)
	if !ok || digits < 0 {
		return nil, &TransformError{Name: "math_round", Reason: "option \"digits\" must be a non-negative number"}
	}
	scale := math.Pow(10, float64(digits))
	return math.Round(f*scale) / scale, nil
}

func mathAbs(v interface{}, _ map[string]interface{}) (interface{}, error) {
	f, err := asNumber("math_abs", v)
	if err != nil {
		return nil, err
	}
	return math.Abs(f), nil
}

func mathFloor(v interface{}, _ map[string]interface{}) (interface{}, error) {
	f, err := asNumber("math_floor", v)
	if err != nil {
		return nil, err
	}
	return math.Floor(f), nil
}

func mathCeil(v interface{}, _ map[string]interface{}) (interface{}, error) {
	f, err := asNumber("math_ceil", v)
	if err != nil {
		return nil, err
	}
	return math.Ceil(f), nil
}

func arrayJoin(v interface{}, options map[string]interface{}) (interface{}, error) {
	seq, err := asSequence("array_join", v)
	if err != nil {
		return nil, err
	}
	sep := optionString(options, "separator", ",")
	parts := make([]string, len(seq))
	for i, item := range seq {
		s, err := payload.Stringify(item)
		if err != nil {
			return nil, &TransformError{Name: "array_join", Reason: "item is not renderable", Err: err}
		}
		parts[i] = s
	}
	return strings.Join(parts, sep), nil
}

func arrayLength(v interface{}, _ map[string]interface{}) (interface{}, error) {
	switch t := v.(type) {
	case []interface{}:
		return float64(len(t)), nil
	case string:
		return float64(len([]rune(t))), nil
	default:
		return nil, &TransformError{Name: "array_length", Reason: fmt.Sprintf("expected a sequence or string, got %s", payload.KindOf(v))}
	}
}

func arrayFirst(v interface{}, _ map[string]interface{}) (interface{}, error) {
	seq, err := asSequence("array_first", v)
	if err != nil {
		return nil, err
	}
	if len(seq) == 0 {
		return nil, nil
	}
	return seq[0], nil
}

func arrayLast(v interface{}, _ map[string]interface{}) (interface{}, error) {
	seq, err := asSequence("array_last", v)
	if err != nil {
		return nil, err
	}
	if len(seq) == 0 {
		return nil, nil
	}
	return seq[len(seq)-1], nil
}
