// Copyright (c) gpii-service contributors. All rights reserved.

package lockfile_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gpii/win-service/internal/lockfile"
)

// Create a new Lockfile, lock it, write some to it, unlock.
// Lock it again and verify the data can be read back.
func TestLockfileWriteRead(t *testing.T) {
	t.Parallel()

	testCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	path := filepath.Join(t.TempDir(), t.Name()+".lockfile")
	defer func() {
		_ = os.Remove(path)
	}()
	lf, err := lockfile.NewLockfile(path)
	require.NoError(t, err)

	lockErr := lf.TryLock(testCtx, lockfile.DefaultLockRetryInterval)
	require.NoError(t, lockErr)

	_, writeErr := io.WriteString(lf, "Hello, World!")
	require.NoError(t, writeErr)

	unlockErr := lf.Unlock()
	require.NoError(t, unlockErr)

	lockErr = lf.TryLock(testCtx, lockfile.DefaultLockRetryInterval)
	require.NoError(t, lockErr)

	_, seekErr := lf.Seek(0, io.SeekStart)
	require.NoError(t, seekErr)

	content, readErr := io.ReadAll(lf)
	require.NoError(t, readErr)

	require.Equal(t, "Hello, World!", string(content))

	closeErr := lf.Close()
	require.NoError(t, closeErr)
}

// Create a new Lockfile, lock it, write some data to it, unlock.
// Lock it again and verify the data can be read back.
// Lock it again, truncate, write different data, unlock.
// Lock it again and verify the new data can be read back.
func TestLockfileWriteReadTruncate(t *testing.T) {
	t.Parallel()

	testCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	path := filepath.Join(t.TempDir(), t.Name()+".lockfile")
	defer func() {
		_ = os.Remove(path)
	}()
	lf, err := lockfile.NewLockfile(path)
	require.NoError(t, err)

	lockErr := lf.TryLock(testCtx, lockfile.DefaultLockRetryInterval)
	require.NoError(t, lockErr)

	_, writeErr := io.WriteString(lf, "Hello, World!")
	require.NoError(t, writeErr)

	unlockErr := lf.Unlock()
	require.NoError(t, unlockErr)

	lockErr = lf.TryLock(testCtx, lockfile.DefaultLockRetryInterval)
	require.NoError(t, lockErr)

	_, seekErr := lf.Seek(0, io.SeekStart)
	require.NoError(t, seekErr)

	content, readErr := io.ReadAll(lf)
	require.NoError(t, readErr)

	require.Equal(t, "Hello, World!", string(content))

	lockErr = lf.TryLock(testCtx, lockfile.DefaultLockRetryInterval)
	require.NoError(t, lockErr)

	truncateErr := lf.Truncate(0)
	require.NoError(t, truncateErr)

	_, seekErr = lf.Seek(0, io.SeekStart)
	require.NoError(t, seekErr)

	_, writeErr = io.WriteString(lf, "Goodbye, World!")
	require.NoError(t, writeErr)

	unlockErr = lf.Unlock()
	require.NoError(t, unlockErr)

	lockErr = lf.TryLock(testCtx, lockfile.DefaultLockRetryInterval)
	require.NoError(t, lockErr)

	_, seekErr = lf.Seek(0, io.SeekStart)
	require.NoError(t, seekErr)

	content, readErr = io.ReadAll(lf)
	require.NoError(t, readErr)

	require.Equal(t, "Goodbye, World!", string(content))

	closeErr := lf.Close()
	require.NoError(t, closeErr)
}

// Locking an already-locked file from a second handle must fail until the
// first handle releases it.
func TestLockfileSecondHandleBlocksUntilUnlocked(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), t.Name()+".lockfile")
	defer func() {
		_ = os.Remove(path)
	}()

	first, err := lockfile.NewLockfile(path)
	require.NoError(t, err)
	require.NoError(t, first.TryLock(context.Background(), lockfile.DefaultLockRetryInterval))

	second, err := lockfile.NewLockfile(path)
	require.NoError(t, err)

	shortCtx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	lockErr := second.TryLock(shortCtx, 20*time.Millisecond)
	require.Error(t, lockErr, "expected second handle to fail to acquire an already-held lock")

	require.NoError(t, first.Unlock())
	require.NoError(t, first.Close())

	longCtx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	require.NoError(t, second.TryLock(longCtx, 20*time.Millisecond))
	require.NoError(t, second.Close())
}
