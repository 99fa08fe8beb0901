// Package procutil provides process identity and lifecycle helpers shared by
// the launcher and supervisor: a comparable process handle, an
// identity-time-aware waiter, and PID validity helpers.
package procutil

import (
	"errors"
	"os"
	"os/exec"
	"time"

	ps "github.com/shirou/gopsutil/v4/process"
)

// UnknownPID is used when a process failed to start or its PID is not yet known.
const UnknownPID int32 = -1

// UnknownExitCode indicates the exit code has not been captured yet.
const UnknownExitCode int32 = -1

// ErrProcessNotFound is returned when a PID does not correspond to a running process.
var ErrProcessNotFound = errors.New("process does not exist")

// IdentityTimeMaxDifference bounds how much identity timestamps may drift and
// still be considered the same process instance; timestamps are frequently
// serialized with millisecond precision.
const IdentityTimeMaxDifference = 2 * time.Millisecond

// Handle is a comparable reference to a process: its PID plus the process
// creation ("identity") time. Comparing handles instead of bare PIDs protects
// against acting on a different process after PID reuse.
//
// IdentityTime may not be a valid wall-clock time on every platform; it exists
// to be stable across clock adjustments, not for display.
type Handle struct {
	Pid          int32
	IdentityTime time.Time
}

// NewHandle builds a Handle from a PID and identity time.
func NewHandle(pid int32, identityTime time.Time) Handle {
	return Handle{Pid: pid, IdentityTime: identityTime}
}

// FromCmd builds a Handle from a started exec.Cmd, looking up the identity
// time via the OS process table.
func FromCmd(cmd *exec.Cmd) Handle {
	if cmd.Process == nil {
		return Handle{Pid: UnknownPID}
	}
	pid := int32(cmd.Process.Pid)
	return Handle{Pid: pid, IdentityTime: IdentityTime(pid)}
}

// IdentityTime returns the raw process creation timestamp used to verify
// process identity. It is not guaranteed to match wall-clock display time.
func IdentityTime(pid int32) time.Time {
	proc, err := ps.NewProcess(pid)
	if err != nil {
		return time.Time{}
	}
	return identityTimeOf(proc)
}

func identityTimeOf(proc *ps.Process) time.Time {
	ts, err := proc.CreateTime()
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ts)
}

// HasExpectedIdentity reports whether the process currently running under pid
// matches expected, tolerating clock jitter within IdentityTimeMaxDifference.
// A zero expected time always matches (identity was not being tracked).
func HasExpectedIdentity(pid int32, expected time.Time) bool {
	if expected.IsZero() {
		return true
	}
	actual := IdentityTime(pid)
	diff := actual.Sub(expected)
	if diff < 0 {
		diff = -diff
	}
	return diff <= IdentityTimeMaxDifference
}

// Find returns the OS process for handle, verifying its identity time when
// handle.IdentityTime is non-zero. Returns ErrProcessNotFound if the PID does
// not exist, or a wrapped error if the PID was reused by a different process.
func Find(handle Handle) (*os.Process, error) {
	_, err := ps.NewProcess(handle.Pid)
	if err != nil {
		if errors.Is(err, ps.ErrorProcessNotRunning) {
			return nil, ErrProcessNotFound
		}
		return nil, err
	}

	if !HasExpectedIdentity(handle.Pid, handle.IdentityTime) {
		return nil, errors.New("process identity mismatch: pid was likely reused")
	}

	return os.FindProcess(int(handle.Pid))
}

// IsEarlyExit reports whether err represents an already-exited process, which
// is an expected outcome rather than a failure when tearing a child down.
func IsEarlyExit(err error) bool {
	if err == nil {
		return false
	}
	var ee *exec.ExitError
	return errors.Is(err, os.ErrProcessDone) || errors.As(err, &ee)
}
