package envconfig

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUintDefaultsWhenUnset(t *testing.T) {
	t.Setenv("LLAMUX_TEST_UINT", "")
	require.EqualValues(t, 7, Uint("LLAMUX_TEST_UINT", 7))
}

func TestUintParsesSetValue(t *testing.T) {
	t.Setenv("LLAMUX_TEST_UINT", "42")
	require.EqualValues(t, 42, Uint("LLAMUX_TEST_UINT", 7))
}

func TestUintFallsBackOnParseError(t *testing.T) {
	t.Setenv("LLAMUX_TEST_UINT", "not-a-number")
	require.EqualValues(t, 7, Uint("LLAMUX_TEST_UINT", 7))
}

func TestBoolDefaultsFalse(t *testing.T) {
	t.Setenv("LLAMUX_TEST_BOOL", "")
	require.False(t, Bool("LLAMUX_TEST_BOOL"))
}

func TestBoolParsesTrue(t *testing.T) {
	t.Setenv("LLAMUX_TEST_BOOL", "true")
	require.True(t, Bool("LLAMUX_TEST_BOOL"))
}

func TestFloat32ParsesSetValue(t *testing.T) {
	t.Setenv("LLAMUX_TEST_FLOAT", "0.42")
	require.InDelta(t, 0.42, Float32("LLAMUX_TEST_FLOAT", 0), 1e-6)
}

func TestVarTrimsQuotesAndWhitespace(t *testing.T) {
	t.Setenv("LLAMUX_TEST_VAR", "  \"hello\"  ")
	require.Equal(t, "hello", Var("LLAMUX_TEST_VAR"))
}

func TestAsMapIncludesEveryVariable(t *testing.T) {
	m := AsMap()
	require.Contains(t, m, "LLAMUX_CONTEXT_LENGTH")
	require.Contains(t, m, "LLAMUX_TEMPERATURE")
	require.Len(t, m, 9)
}
