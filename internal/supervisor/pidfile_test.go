package supervisor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadPidFile_MissingFile(t *testing.T) {
	_, ok := readPidFile(filepath.Join(t.TempDir(), "does-not-exist.pid"))
	assert.False(t, ok)
}

func TestReadPidFile_ValidPid(t *testing.T) {
	path := filepath.Join(t.TempDir(), PidFileName)
	require := assert.New(t)
	require.NoError(os.WriteFile(path, []byte("4242\n"), 0o644))

	pid, ok := readPidFile(path)
	require.True(ok)
	require.Equal(int32(4242), pid)
}

func TestReadPidFile_GarbageContentsIsNotOk(t *testing.T) {
	path := filepath.Join(t.TempDir(), PidFileName)
	assert.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0o644))

	_, ok := readPidFile(path)
	assert.False(t, ok)
}
