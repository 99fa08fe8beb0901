package ipc_test

import (
	"strings"
	"testing"

	"github.com/gpii/win-service/internal/ipc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEndpointName_HasExpectedShape(t *testing.T) {
	name, err := ipc.NewEndpointName("gpii")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(name, ipc.PipeNamePrefix+"gpii-"))
	assert.LessOrEqual(t, len(name), 256)

	body := strings.TrimPrefix(name, ipc.PipeNamePrefix+"gpii-")
	assert.NotEmpty(t, body)
	assert.NotContains(t, body, "/")
	assert.NotContains(t, body, `\`)
}

func TestNewEndpointName_NoCollisionsAcrossSample(t *testing.T) {
	const sampleSize = 300
	seen := make(map[string]bool, sampleSize)

	for i := 0; i < sampleSize; i++ {
		name, err := ipc.NewEndpointName("gpii")
		require.NoError(t, err)
		require.False(t, seen[name], "collision generating endpoint name")
		seen[name] = true
	}
}
