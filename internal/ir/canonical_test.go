package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative", -100, "-100"},
		{"zero", 0, "0"},
		{"fraction", 2.5, "2.5"},
		{"large", 1e21, "1e+21"},
		{"bool", true, "true"},
		{"null", nil, "null"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"array", []any{1, "a", false}, `[1,"a",false]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := map[string]any{
		"zebra": 1,
		"alpha": 2,
		"beta":  3,
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":3,"zebra":1}`, string(result))
}

// TestMarshalCanonicalUTF16Order tests that keys outside the BMP sort by
// UTF-16 code units, not UTF-8 bytes.
func TestMarshalCanonicalUTF16Order(t *testing.T) {
	obj := map[string]any{
		"\U0001F600": 1, // surrogate pair D83D DE00
		"\uFFFD":     2, // single unit FFFD
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":1,\"\uFFFD\":2}", string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical("<a & b>")
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" + combining acute accent normalizes to a single code point.
	result, err := MarshalCanonical("e\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(result))
}

func TestMarshalCanonicalLineSeparator(t *testing.T) {
	result, err := MarshalCanonical("a\u2028b")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(result))
}

func TestMarshalCanonicalUsesMarshalers(t *testing.T) {
	b := NewBlock("motion_movesteps")
	b.Inputs["STEPS"] = ShadowLiteral(NumberPrim(10))

	result, err := MarshalCanonical(b)
	require.NoError(t, err)
	assert.Equal(t,
		`{"fields":{},"inputs":{"STEPS":[1,[4,10]]},"next":null,"opcode":"motion_movesteps","parent":null,"shadow":false,"topLevel":false}`,
		string(result))
}
