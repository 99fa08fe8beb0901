package procutil

import (
	"context"
	"errors"
	"sync"
	"syscall"
	"time"
)

const defaultWaitPollInterval = 2 * time.Second

// Waiter blocks until the process identified by a Handle exits. os.Process.Wait
// only works for direct children reaped by this process; on platforms and
// scenarios where wait4 reports ECHILD (the child was already reaped by the
// runtime, or is not a direct child) Waiter falls back to polling the process
// table until the identity handle stops resolving.
type Waiter struct {
	PollInterval time.Duration

	handle  Handle
	once    sync.Once
	done    chan struct{}
	waitErr error
}

// NewWaiter constructs a Waiter for the given process handle.
func NewWaiter(handle Handle) *Waiter {
	return &Waiter{
		PollInterval: defaultWaitPollInterval,
		handle:       handle,
	}
}

// Wait blocks until the process exits or ctx is cancelled.
func (w *Waiter) Wait(ctx context.Context) error {
	w.once.Do(func() { w.start() })

	select {
	case <-w.done:
		return w.waitErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Waiter) start() {
	w.done = make(chan struct{})

	go func() {
		defer close(w.done)

		proc, err := Find(w.handle)
		if err != nil {
			// Already gone.
			return
		}

		_, err = proc.Wait()
		if err == nil {
			return
		}

		var errno syscall.Errno
		if !errors.As(err, &errno) || errno != syscall.ECHILD {
			w.waitErr = err
			return
		}

		w.pollUntilExited()
	}()
}

func (w *Waiter) pollUntilExited() {
	interval := w.PollInterval
	if interval <= 0 {
		interval = defaultWaitPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		if _, err := Find(w.handle); err != nil {
			return
		}
	}
}
