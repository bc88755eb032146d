package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringTransforms(t *testing.T) {
	r := NewRegistry()
	tests := []struct {
		name    string
		value   interface{}
		options map[string]interface{}
		want    interface{}
	}{
		{"string_upper", "hello", nil, "HELLO"},
		{"string_lower", "HeLLo", nil, "hello"},
		{"string_title", "hello world", nil, "Hello World"},
		{"string_trim", "  padded  ", nil, "padded"},
		{"string_replace", "a-b-c", map[string]interface{}{"old": "-", "new": "_"}, "a_b_c"},
		{"truncate", "abcdef", map[string]interface{}{"length": float64(3)}, "abc"},
		{"truncate", "abcdef", map[string]interface{}{"length": float64(4), "ellipsis": "…"}, "abcd…"},
		{"truncate", "ab", map[string]interface{}{"length": float64(5)}, "ab"},
	}
	for _, tt := range tests {
		got, err := r.Apply(tt.name, tt.value, tt.options)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestMathTransforms(t *testing.T) {
	r := NewRegistry()
	tests := []struct {
		name    string
		value   interface{}
		options map[string]interface{}
		want    float64
	}{
		{"math_round", 3.456, map[string]interface{}{"digits": float64(2)}, 3.46},
		{"math_round", 3.5, nil, 4},
		{"math_round", 2.5, nil, 3},
		{"math_abs", -7.5, nil, 7.5},
		{"math_floor", 3.9, nil, 3},
		{"math_ceil", 3.1, nil, 4},
	}
	for _, tt := range tests {
		got, err := r.Apply(tt.name, tt.value, tt.options)
		require.NoError(t, err, tt.name)
		assert.InDelta(t, tt.want, got, 1e-9, tt.name)
	}
}

func TestArrayTransforms(t *testing.T) {
	r := NewRegistry()
	seq := []interface{}{"a", float64(2), "c"}

	got, err := r.Apply("array_join", seq, map[string]interface{}{"separator": "|"})
	require.NoError(t, err)
	assert.Equal(t, "a|2|c", got)

	got, err = r.Apply("array_join", seq, nil)
	require.NoError(t, err)
	assert.Equal(t, "a,2,c", got, "default separator is a comma")

	got, err = r.Apply("array_length", seq, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(3), got)

	got, err = r.Apply("array_length", "héllo", nil)
	require.NoError(t, err)
	assert.Equal(t, float64(5), got, "string length counts runes")

	got, err = r.Apply("array_first", seq, nil)
	require.NoError(t, err)
	assert.Equal(t, "a", got)

	got, err = r.Apply("array_last", seq, nil)
	require.NoError(t, err)
	assert.Equal(t, "c", got)

	got, err = r.Apply("array_first", []interface{}{}, nil)
	require.NoError(t, err)
	assert.Nil(t, got, "empty sequence yields null, not an error")
}

func TestDateFormat(t *testing.T) {
	r := NewRegistry()

	got, err := r.Apply("date_format", "2026-03-15T09:30:00Z", map[string]interface{}{"format": "MMM DD, YYYY"})
	require.NoError(t, err)
	assert.Equal(t, "Mar 15, 2026", got)

	got, err = r.Apply("date_format", "2026-03-15", map[string]interface{}{"format": "DD/MM/YYYY"})
	require.NoError(t, err)
	assert.Equal(t, "15/03/2026", got)

	// Unix seconds
	got, err = r.Apply("date_format", float64(0), map[string]interface{}{"format": "YYYY-MM-DD"})
	require.NoError(t, err)
	assert.Equal(t, "1970-01-01", got)

	_, err = r.Apply("date_format", "not a date", map[string]interface{}{"format": "YYYY"})
	assert.Error(t, err)

	_, err = r.Apply("date_format", "2026-03-15", nil)
	assert.Error(t, err, "format option is required")
}

func TestTypeMismatches(t *testing.T) {
	r := NewRegistry()
	var transformErr *TransformError

	_, err := r.Apply("string_upper", float64(3), nil)
	require.ErrorAs(t, err, &transformErr)

	_, err = r.Apply("math_abs", "NaNish", nil)
	require.Error(t, err)

	_, err = r.Apply("array_join", "not a sequence", nil)
	require.Error(t, err)

	_, err = r.Apply("truncate", "abc", map[string]interface{}{"length": float64(-1)})
	require.Error(t, err)
}

func TestUnknownTransform(t *testing.T) {
	r := NewRegistry()
	_, err := r.Apply("does_not_exist", "x", nil)
	var transformErr *TransformError
	require.ErrorAs(t, err, &transformErr)
	assert.Equal(t, "does_not_exist", transformErr.Name)
}

func TestRegisterCustom(t *testing.T) {
	r := NewRegistry()
	r.Register("reverse", func(v interface{}, _ map[string]interface{}) (interface{}, error) {
		s := v.(string)
		runes := []rune(s)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return string(runes), nil
	})
	assert.True(t, r.Has("reverse"))
	got, err := r.Apply("reverse", "abc", nil)
	require.NoError(t, err)
	assert.Equal(t, "cba", got)
}

func TestApplyPositional(t *testing.T) {
	r := NewRegistry()

	got, err := r.ApplyPositional("truncate", "abcdef", []interface{}{float64(3), "~"})
	require.NoError(t, err)
	assert.Equal(t, "abc~", got)

	got, err = r.ApplyPositional("math_round", 3.456, []interface{}{float64(1)})
	require.NoError(t, err)
	assert.Equal(t, 3.5, got)

	_, err = r.ApplyPositional("math_abs", -1.0, []interface{}{float64(1)})
	assert.Error(t, err, "math_abs takes no arguments")
}

func TestNamesSorted(t *testing.T) {
	r := NewRegistry()
	names := r.Names()
	assert.Contains(t, names, "string_upper")
	assert.Contains(t, names, "date_format")
	for i := 1; i < len(names); i++ {
		assert.LessOrEqual(t, names[i-1], names[i])
	}
}
