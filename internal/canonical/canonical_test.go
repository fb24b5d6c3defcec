package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_Basic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"int64", int64(-7), "-7"},
		{"bool", true, "true"},
		{"string list", []string{"6.5", "15.5"}, `["6.5","15.5"]`},
		{"empty list", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"no html escaping", "<a&b>", `"<a&b>"`},
		{"control chars", "a\nb\u0001", `"a\nb\u0001"`},
		{"line separator literal", "a\u2028b", "\"a\u2028b\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestMarshal_SortedNestedKeys(t *testing.T) {
	v := map[string]any{
		"targetView": "Order",
		"filter": map[string]any{
			"values":   []string{"5"},
			"operator": "GT",
			"field":    "amount",
		},
	}

	got, err := Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"filter":{"field":"amount","operator":"GT","values":["5"]},"targetView":"Order"}`, string(got))
}

func TestMarshal_UTF16KeyOrder(t *testing.T) {
	// U+FF61 sorts before U+1F600 in UTF-8 but after it in UTF-16.
	v := map[string]any{"\U0001F600": 1, "｡": 2}

	got, err := Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":1,\"｡\":2}", string(got))
}

func TestMarshal_NFC(t *testing.T) {
	got, err := Marshal("e\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(got))
}

func TestMarshal_Rejects(t *testing.T) {
	_, err := Marshal(nil)
	assert.ErrorContains(t, err, "null is forbidden")

	_, err = Marshal(map[string]any{"x": 1.5})
	assert.ErrorContains(t, err, "floats are forbidden")

	_, err = Marshal(struct{}{})
	assert.ErrorContains(t, err, "unsupported type")
}
