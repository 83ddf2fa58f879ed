package ir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalScalars(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"null", IRNull{}, "null"},
		{"nil", nil, "null"},
		{"string", IRString("Chai"), `"Chai"`},
		{"int", IRInt(-7), "-7"},
		{"bool", IRBool(true), "true"},
		{"decimal", MustDecimal("18.50"), `{"decimal":"18.50"}`},
		{"go string", "x", `"x"`},
		{"go int", 3, "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestMarshalCanonicalTimeIsUTC(t *testing.T) {
	local := time.Date(1996, 7, 4, 10, 0, 0, 0, time.FixedZone("plus2", 2*3600))

	got, err := MarshalCanonical(IRTime(local))
	require.NoError(t, err)
	assert.Equal(t, `{"time":"1996-07-04T08:00:00Z"}`, string(got))
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := IRObject{
		"z": IRObject{"b": IRInt(1), "a": IRInt(2)},
		"a": IRInt(3),
	}

	got, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":3,"z":{"a":2,"b":1}}`, string(got))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+10000 encodes as a surrogate pair starting 0xD800, which sorts
	// before U+E000 in UTF-16 but after it in UTF-8.
	obj := IRObject{
		"\uE000":     IRInt(1),
		"\U00010000": IRInt(2),
	}

	got, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(got))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	got, err := MarshalCanonical(IRString("<a & b>"))
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, string(got))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	composed, err := MarshalCanonical(IRObject{"caf\u00E9": IRString("caf\u00E9")})
	require.NoError(t, err)
	decomposed, err := MarshalCanonical(IRObject{"cafe\u0301": IRString("cafe\u0301")})
	require.NoError(t, err)

	assert.Equal(t, composed, decomposed)
}

func TestMarshalCanonicalRejectsFloats(t *testing.T) {
	_, err := MarshalCanonical(IRArray{IRInt(1)})
	require.NoError(t, err)

	_, err = MarshalCanonical([]any{1.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are forbidden")
}

func TestMarshalCanonicalGoContainers(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{"b": int64(1), "a": []any{"x", true}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":["x",true],"b":1}`, string(got))
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"line separator", "a\u2028b", "\"a\u2028b\""},
		{"paragraph separator", "a\u2029b", "\"a\u2029b\""},
		{"literal escape text", `is \u2028`, `"is \\u2028"`},
		{"mixed", "lit \\u2028 and \u2028", "\"lit \\\\u2028 and \u2028\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(IRString(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestMarshalCanonicalStringEscaping(t *testing.T) {
	got, err := MarshalCanonical(IRString("a\n\"b\"\\"))
	require.NoError(t, err)
	assert.Equal(t, `"a\n\"b\"\\"`, string(got))
}
