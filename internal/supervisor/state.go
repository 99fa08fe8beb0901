package supervisor

import (
	"time"

	"github.com/gpii/win-service/internal/launcher"
)

// Kind is the discriminant of a supervisor State.
type Kind int

const (
	Idle Kind = iota
	Starting
	Running
	Backoff
	GivingUp
)

func (k Kind) String() string {
	switch k {
	case Idle:
		return "Idle"
	case Starting:
		return "Starting"
	case Running:
		return "Running"
	case Backoff:
		return "Backoff"
	case GivingUp:
		return "GivingUp"
	default:
		return "Unknown"
	}
}

// State is the supervisor's current SupervisorState, a tagged union
// approximated by a Kind discriminant plus the fields relevant to it: Child
// for Running, Attempts/NextStartAt for Backoff.
type State struct {
	Kind        Kind
	Child       *launcher.ChildHandle
	Attempts    uint32
	NextStartAt time.Time
}

// MinHealthyRuntime is how long a child must stay alive for its exit to
// reset the restart ledger's consecutive-failure count.
const MinHealthyRuntime = 20 * time.Second

// MaxFailedStarts is the number of consecutive fast failures tolerated
// before the supervisor gives up and waits for a session-logon event: the
// (MaxFailedStarts+1)th consecutive fast failure triggers GivingUp.
const MaxFailedStarts = 3

// BackoffDuration implements the n*10s+1s restart delay formula.
func BackoffDuration(attempts uint32) time.Duration {
	return time.Duration(attempts)*10*time.Second + time.Second
}

// RestartLedger tracks consecutive failed/fast-crashing starts. It is
// process-local and never persisted across service restarts.
type RestartLedger struct {
	ConsecutiveFailures uint32
	LastStart           time.Time
}

// ranLongEnough reports whether a child started at lastStart and exiting at
// exitedAt lived at least MinHealthyRuntime.
func ranLongEnough(lastStart, exitedAt time.Time) bool {
	return exitedAt.Sub(lastStart) >= MinHealthyRuntime
}
