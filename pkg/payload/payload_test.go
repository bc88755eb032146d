package payload

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNull, KindOf(nil))
	assert.Equal(t, KindBool, KindOf(true))
	assert.Equal(t, KindNumber, KindOf(float64(3)))
	assert.Equal(t, KindString, KindOf("x"))
	assert.Equal(t, KindSequence, KindOf([]interface{}{}))
	assert.Equal(t, KindMap, KindOf(map[string]interface{}{}))
	assert.Equal(t, KindInvalid, KindOf(int(3)), "raw ints are not canonical")
	assert.Equal(t, KindInvalid, KindOf(struct{}{}))
}

func TestNormalizeNumerics(t *testing.T) {
	v, err := Normalize(map[string]interface{}{
		"i":   int(7),
		"i64": int64(8),
		"f32": float32(1.5),
		"jn":  json.Number("2.25"),
		"seq": []interface{}{int(1), "s"},
	})
	require.NoError(t, err)
	m := v.(map[string]interface{})
	assert.Equal(t, float64(7), m["i"])
	assert.Equal(t, float64(8), m["i64"])
	assert.Equal(t, float64(1.5), m["f32"])
	assert.Equal(t, float64(2.25), m["jn"])
	assert.Equal(t, []interface{}{float64(1), "s"}, m["seq"])
}

func TestNormalizeRejectsUnsupported(t *testing.T) {
	_, err := Normalize(map[string]interface{}{"ch": make(chan int)})
	assert.Error(t, err)

	_, err = Normalize(json.Number("not-a-number"))
	assert.Error(t, err)
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	in := map[string]interface{}{"n": int(5)}
	_, err := Normalize(in)
	require.NoError(t, err)
	assert.Equal(t, int(5), in["n"])
}

func TestCloneIsDeep(t *testing.T) {
	orig := map[string]interface{}{
		"nested": map[string]interface{}{"k": "v"},
		"seq":    []interface{}{float64(1)},
	}
	cp := CloneMap(orig)
	cp["nested"].(map[string]interface{})["k"] = "changed"
	cp["seq"].([]interface{})[0] = float64(9)

	assert.Equal(t, "v", orig["nested"].(map[string]interface{})["k"])
	assert.Equal(t, float64(1), orig["seq"].([]interface{})[0])
}

func TestCloneMapNil(t *testing.T) {
	cp := CloneMap(nil)
	require.NotNil(t, cp)
	assert.Empty(t, cp)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(nil, nil))
	assert.True(t, Equal(float64(2), float64(2)))
	assert.False(t, Equal(float64(2), "2"))
	assert.True(t, Equal(
		map[string]interface{}{"a": []interface{}{float64(1), "x"}},
		map[string]interface{}{"a": []interface{}{float64(1), "x"}},
	))
	assert.False(t, Equal(
		map[string]interface{}{"a": float64(1)},
		map[string]interface{}{"a": float64(1), "b": nil},
	))
	assert.False(t, Equal([]interface{}{float64(1)}, []interface{}{float64(2)}))
}

func TestToFloat64(t *testing.T) {
	f, ok := ToFloat64(float64(3.5))
	assert.True(t, ok)
	assert.Equal(t, 3.5, f)

	f, ok = ToFloat64("42")
	assert.True(t, ok)
	assert.Equal(t, float64(42), f)

	f, ok = ToFloat64(true)
	assert.True(t, ok)
	assert.Equal(t, float64(1), f)

	_, ok = ToFloat64("nope")
	assert.False(t, ok)

	_, ok = ToFloat64(map[string]interface{}{})
	assert.False(t, ok)
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "3", FormatNumber(3))
	assert.Equal(t, "-12", FormatNumber(-12))
	assert.Equal(t, "3.5", FormatNumber(3.5))
	assert.Equal(t, "0.25", FormatNumber(0.25))
}

func TestStringify(t *testing.T) {
	s, err := Stringify("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", s)

	s, err = Stringify(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", s)

	s, err = Stringify(float64(2))
	require.NoError(t, err)
	assert.Equal(t, "2", s)

	s, err = Stringify(map[string]interface{}{"a": float64(1)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, s)
}
