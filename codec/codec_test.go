package codec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/docsource/codec"
)

func TestRoundTripPreservesTypes(t *testing.T) {
	record := map[string]any{
		"title":   "a post",
		"count":   int64(42),
		"ratio":   0.25,
		"whole":   float64(3),
		"draft":   true,
		"deleted": false,
		"parent":  nil,
		"meta": map[string]any{
			"author": "joe",
			"score":  int64(-7),
			"nested": map[string]any{"deep": 1.5},
		},
		"tags": []any{"go", int64(1), nil, true},
	}

	b, err := codec.Encode(record)
	require.NoError(t, err)

	got := codec.Native(codec.Decode(b))
	assert.Equal(t, record, got)
}

func TestDecodeMalformedIsNull(t *testing.T) {
	for _, in := range []string{"", "{", "not json", `{"a":1} {"b":2}`, `[1,2`} {
		t.Run(in, func(t *testing.T) {
			v := codec.Decode([]byte(in))
			assert.True(t, codec.IsNull(v), "got %#v", v)
			_, err := codec.DecodeStrict([]byte(in))
			assert.Error(t, err)
		})
	}
}

func TestDecodeErrorDocument(t *testing.T) {
	v := codec.Decode([]byte(`{"error":"not_found","reason":"deleted"}`))
	doc, ok := codec.AsObject(v)
	require.True(t, ok)

	code, _ := doc.Str("error")
	reason, _ := doc.Str("reason")
	assert.Equal(t, "not_found", code)
	assert.Equal(t, "deleted", reason)
	assert.False(t, doc.Has("_rev"))
	assert.True(t, codec.IsNull(doc.Get("_rev")))
}

func TestDecodeListing(t *testing.T) {
	v := codec.Decode([]byte(`["_users","posts"]`))
	arr, ok := codec.AsArray(v)
	require.True(t, ok)
	names, ok := arr.Strings()
	require.True(t, ok)
	assert.Equal(t, []string{"_users", "posts"}, names)

	mixed := codec.Array{codec.String("a"), codec.Number("1")}
	_, ok = mixed.Strings()
	assert.False(t, ok)
}

func TestNumberLiteralsKeepPrecision(t *testing.T) {
	v := codec.Decode([]byte(`{"big":9007199254740993,"f":1e3}`))
	doc, _ := codec.AsObject(v)

	big, ok := doc.Number("big")
	require.True(t, ok)
	i, err := big.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740993), i)

	f, _ := doc.Number("f")
	assert.False(t, f.IsInteger())
	assert.Equal(t, float64(1000), codec.Native(f))

	out, err := codec.Encode(doc)
	require.NoError(t, err)
	assert.Contains(t, string(out), "9007199254740993")
}

func TestEncodeRejectsUnsupported(t *testing.T) {
	_, err := codec.Encode(map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "object", codec.Object{}.Kind().String())
	assert.Equal(t, "null", codec.Null{}.Kind().String())
}

func TestNativeLargeIntegers(t *testing.T) {
	b, err := codec.Encode(map[string]any{"u": uint64(18446744073709551615)})
	require.NoError(t, err)
	got := codec.Native(codec.Decode(b)).(map[string]any)
	assert.Equal(t, uint64(18446744073709551615), got["u"])

	huge := codec.Native(codec.Number("123456789012345678901234567890"))
	assert.Equal(t, codec.Number("123456789012345678901234567890"), huge)
	out, err := codec.Encode(map[string]any{"n": huge})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":123456789012345678901234567890}`, string(out))
}

func TestCloneIsDeep(t *testing.T) {
	o := codec.Object{"a": codec.Array{codec.Object{"b": codec.Bool(true)}}}
	c := o.Clone()
	inner, _ := codec.AsArray(c["a"])
	inner[0].(codec.Object)["b"] = codec.Bool(false)

	orig, _ := codec.AsArray(o["a"])
	assert.Equal(t, codec.Bool(true), orig[0].(codec.Object)["b"])
}
