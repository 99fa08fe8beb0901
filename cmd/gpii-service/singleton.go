package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gpii/win-service/internal/lockfile"
)

// lockAcquireTimeout bounds how long acquireInstanceLock waits for a
// contended lock before concluding another instance holds it.
const lockAcquireTimeout = 500 * time.Millisecond

// acquireInstanceLock takes an exclusive, non-blocking OS-level lock
// guarding against two copies of this process running for the same service
// name at once. It is independent of the child pid file: this lock protects
// the supervisor process itself, while the pid file (internal/supervisor)
// tracks the spawned child.
func acquireInstanceLock(serviceName string) (*lockfile.Lockfile, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("%s.lock", serviceName))

	lf, err := lockfile.NewLockfile(path)
	if err != nil {
		return nil, fmt.Errorf("prepare instance lock at %q: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), lockAcquireTimeout)
	defer cancel()

	if err := lf.TryLock(ctx, 0); err != nil {
		return nil, fmt.Errorf("another %s instance is already running: %w", serviceName, err)
	}

	return lf, nil
}
