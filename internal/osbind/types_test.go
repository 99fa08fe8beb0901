package osbind_test

import (
	"testing"

	"github.com/gpii/win-service/internal/osbind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironmentBlock_LookupIsCaseInsensitive(t *testing.T) {
	e := osbind.NewEnvironmentBlock([]string{"Path=C:\\Windows", "APPDATA=C:\\Users\\bob\\AppData\\Roaming"})

	v, ok := e.Lookup("appdata")
	require.True(t, ok)
	assert.Equal(t, "C:\\Users\\bob\\AppData\\Roaming", v)

	_, ok = e.Lookup("missing")
	assert.False(t, ok)
}

func TestEnvironmentBlock_MergeOverridesExistingCaseInsensitively(t *testing.T) {
	e := osbind.NewEnvironmentBlock([]string{"Path=C:\\Windows", "TEMP=C:\\Temp"})

	merged := e.Merge(map[string]string{"PATH": "C:\\Custom", "NEWVAR": "1"})

	v, ok := merged.Lookup("path")
	require.True(t, ok)
	assert.Equal(t, "C:\\Custom", v)

	v, ok = merged.Lookup("NEWVAR")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	v, ok = merged.Lookup("temp")
	require.True(t, ok)
	assert.Equal(t, "C:\\Temp", v)
}

func TestEnvironmentBlock_ToBlockEndsWithDoubleNul(t *testing.T) {
	e := osbind.NewEnvironmentBlock([]string{"B=2", "A=1"})

	block, err := e.ToBlock()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(block), 2)

	assert.Equal(t, uint16(0), block[len(block)-2])
	assert.Equal(t, uint16(0), block[len(block)-1])
}

func TestEnvironmentBlock_VarsReturnsIndependentCopy(t *testing.T) {
	e := osbind.NewEnvironmentBlock([]string{"A=1"})
	vars := e.Vars()
	vars[0] = "MUTATED=1"

	v, ok := e.Lookup("A")
	require.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestToken_ZeroValueIsInvalidButClosable(t *testing.T) {
	var tok osbind.Token
	assert.False(t, tok.Valid())
	assert.NoError(t, tok.Close())
}
