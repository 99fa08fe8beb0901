// Package supervisor implements the restart-with-backoff state machine
// (component E). It asks internal/launcher to spawn a child, watches it exit
// through internal/osbind, pumps its IPC frames onto internal/eventbus, and
// decides when to restart, back off, or give up, per the SupervisorState
// machine: Idle -> Starting -> Running -> (Backoff -> Starting)* -> GivingUp,
// with GivingUp resumed only by a session-logon event.
package supervisor

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/gpii/win-service/internal/eventbus"
	"github.com/gpii/win-service/internal/ipc"
	"github.com/gpii/win-service/internal/launcher"
	"github.com/gpii/win-service/internal/osbind"
	"github.com/gpii/win-service/internal/session"
)

// Spawner is the subset of *launcher.Launcher the supervisor depends on, so
// tests can substitute a fake without a real OS binding.
type Spawner interface {
	SpawnChild(command string, opts launcher.SpawnOpts) (launcher.ChildHandle, error)
}

// Config holds the supervisor's fixed policy.
type Config struct {
	// Command is the full command line passed to every spawn.
	Command string
	// AlwaysRun permits falling back to the host's own token when no
	// interactive user is present. Only meaningful for a console-mode host.
	AlwaysRun bool
	// Product names the child application for event names (e.g.
	// "started-gpii", "gpii.message.hello"). Defaults to "gpii" if empty.
	Product string
}

// Supervisor drives the child restart state machine described above.
type Supervisor struct {
	log      logr.Logger
	binding  osbind.Binding
	sessions *session.Manager
	spawner  Spawner
	bus      *eventbus.Bus
	cfg      Config
	now      func() time.Time

	mu     sync.Mutex
	state  State
	ledger RestartLedger
}

// New constructs a Supervisor. sessions is used only to locate the pid file
// that records an externally running instance; the spawner resolves its own
// token internally.
func New(log logr.Logger, binding osbind.Binding, sessions *session.Manager, spawner Spawner, bus *eventbus.Bus, cfg Config) *Supervisor {
	if cfg.Product == "" {
		cfg.Product = "gpii"
	}
	return &Supervisor{
		log:      log.WithName("supervisor"),
		binding:  binding,
		sessions: sessions,
		spawner:  spawner,
		bus:      bus,
		cfg:      cfg,
		now:      time.Now,
		state:    State{Kind: Idle},
	}
}

// Snapshot returns a copy of the current state, safe to call concurrently
// with Run.
func (s *Supervisor) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// pidFilePath resolves the path a running child records its pid at, via the
// current user's data directory. ok is false when no user is presently
// resolvable, in which case the external-instance check is skipped.
func (s *Supervisor) pidFilePath() (path string, ok bool) {
	token, err := s.sessions.CurrentUserToken()
	if err != nil {
		return "", false
	}
	defer token.Close()

	env, err := s.sessions.EnvironmentFor(token)
	if err != nil {
		return "", false
	}
	dir, err := s.sessions.UserDataDir(env)
	if err != nil {
		return "", false
	}
	return filepath.Join(dir, PidFileName), true
}

// externalInstanceRunning reports whether another instance already owns
// this product: a pid file exists, names a pid, and that pid is currently
// alive.
func (s *Supervisor) externalInstanceRunning() bool {
	path, ok := s.pidFilePath()
	if !ok {
		return false
	}
	pid, ok := readPidFile(path)
	if !ok {
		return false
	}
	return s.binding.IsProcessAlive(uint32(pid))
}

type eventKind int

const (
	evStart eventKind = iota
	evStop
	evSessionLogon
	evChildExited
	evBackoffElapsed
)

type loopEvent struct {
	kind    eventKind
	exitErr error
}

// Run drives the event loop until ctx is cancelled or a "control.stop" event
// is observed. It must not be called more than once concurrently on the same
// Supervisor.
func (s *Supervisor) Run(ctx context.Context) error {
	events := make(chan loopEvent, 8)
	send := func(e loopEvent) {
		select {
		case events <- e:
		case <-ctx.Done():
		}
	}

	stopSub := s.bus.Subscribe(func(e eventbus.Event) {
		if e.Name == "control.stop" {
			send(loopEvent{kind: evStop})
		}
	})
	defer stopSub.Unsubscribe()

	logonSub := s.bus.Subscribe(func(e eventbus.Event) {
		if e.Name == "session.logon" {
			send(loopEvent{kind: evSessionLogon})
		}
	})
	defer logonSub.Unsubscribe()

	var pump *messagePump
	var endpoint *ipc.Endpoint
	var backoffTimer *time.Timer
	stopBackoff := func() {
		if backoffTimer != nil {
			backoffTimer.Stop()
			backoffTimer = nil
		}
	}
	teardownChild := func() {
		if pump != nil {
			pump.stop()
			pump = nil
		}
		if endpoint != nil {
			_ = endpoint.CloseServer()
			endpoint = nil
		}
	}
	defer teardownChild()
	defer stopBackoff()

	attemptStart := func() {
		if s.externalInstanceRunning() {
			s.log.Info("another instance is already running, staying idle")
			s.setState(State{Kind: Idle})
			return
		}

		child, err := s.spawner.SpawnChild(s.cfg.Command, launcher.SpawnOpts{AlwaysRun: s.cfg.AlwaysRun})
		if err != nil {
			s.log.Error(err, "failed to start child")
			s.recordFailedStart(send, &backoffTimer)
			return
		}

		s.mu.Lock()
		s.state = State{Kind: Running, Child: &child}
		s.ledger.LastStart = s.now()
		s.mu.Unlock()

		s.bus.Publish(eventbus.Event{Name: fmt.Sprintf("started-%s", s.cfg.Product), Payload: child})

		endpoint = child.Endpoint
		pump = newMessagePump(s.log, s.bus, endpoint, s.cfg.Product, s.now)
		pump.start()

		go func() {
			waitErr := s.binding.WaitForProcess(ctx, uint32(child.Pid()), child.StartTime)
			send(loopEvent{kind: evChildExited, exitErr: waitErr})
		}()
	}

	send(loopEvent{kind: evStart})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev := <-events:
			switch ev.kind {
			case evStart, evSessionLogon:
				if s.Snapshot().Kind == Running {
					continue
				}
				stopBackoff()
				attemptStart()

			case evStop:
				teardownChild()
				stopBackoff()
				s.setState(State{Kind: Idle})
				s.bus.Publish(eventbus.Event{Name: "stop"})
				return nil

			case evChildExited:
				teardownChild()
				s.handleChildExited(ev.exitErr)
				if s.Snapshot().Kind == Backoff {
					delay := time.Until(s.Snapshot().NextStartAt)
					backoffTimer = time.AfterFunc(delay, func() { send(loopEvent{kind: evBackoffElapsed}) })
				}

			case evBackoffElapsed:
				attemptStart()
			}
		}
	}
}

// recordFailedStart is invoked when SpawnChild itself fails, which counts
// the same as an immediate crash for restart-ledger purposes.
func (s *Supervisor) recordFailedStart(send func(loopEvent), backoffTimer **time.Timer) {
	s.mu.Lock()
	s.ledger.ConsecutiveFailures++
	failures := s.ledger.ConsecutiveFailures
	s.mu.Unlock()

	if failures > MaxFailedStarts {
		s.setState(State{Kind: GivingUp})
		s.bus.Publish(eventbus.Event{Name: "givingUp", Payload: fmt.Errorf("%d consecutive failed starts", failures)})
		return
	}

	next := s.now().Add(BackoffDuration(failures))
	s.setState(State{Kind: Backoff, Attempts: failures, NextStartAt: next})
	*backoffTimer = time.AfterFunc(time.Until(next), func() { send(loopEvent{kind: evBackoffElapsed}) })
}

// pidFileNamesChild reports whether the pid file still names childPid, the
// crash-vs-clean-exit test for a just-exited child. A pid file we can't
// resolve (no user token available) is treated as still naming the child,
// preserving the existing crash/backoff behavior when external-instance
// detection itself would also be unable to run.
func (s *Supervisor) pidFileNamesChild(childPid int32) bool {
	path, ok := s.pidFilePath()
	if !ok {
		return true
	}
	pid, ok := readPidFile(path)
	if !ok {
		return false
	}
	return pid == childPid
}

// handleChildExited implements the crash-vs-clean-exit classification. If
// the pid file is absent or now names a different pid, the child shut
// itself down cleanly and the supervisor returns to Idle. Otherwise the
// exit is a crash: a child that ran at least MinHealthyRuntime resets the
// consecutive-failure counter and restarts after a short backoff; one that
// exited sooner counts as a fast failure, and more than MaxFailedStarts
// consecutive fast failures give up.
func (s *Supervisor) handleChildExited(exitErr error) {
	if exitErr != nil {
		s.log.Error(exitErr, "child wait failed")
	}
	s.bus.Publish(eventbus.Event{Name: "child.exited", Payload: exitErr})

	child := s.Snapshot().Child

	if child == nil || !s.pidFileNamesChild(child.Pid()) {
		s.mu.Lock()
		s.ledger.ConsecutiveFailures = 0
		s.mu.Unlock()
		s.setState(State{Kind: Idle})
		return
	}

	s.mu.Lock()
	lastStart := s.ledger.LastStart
	exitedAt := s.now()
	s.mu.Unlock()

	if ranLongEnough(lastStart, exitedAt) {
		s.mu.Lock()
		s.ledger.ConsecutiveFailures = 0
		s.mu.Unlock()
		next := s.now().Add(BackoffDuration(0))
		s.setState(State{Kind: Backoff, Attempts: 0, NextStartAt: next})
		return
	}

	s.mu.Lock()
	s.ledger.ConsecutiveFailures++
	failures := s.ledger.ConsecutiveFailures
	s.mu.Unlock()

	if failures > MaxFailedStarts {
		s.setState(State{Kind: GivingUp})
		s.bus.Publish(eventbus.Event{Name: "givingUp", Payload: fmt.Errorf("%d consecutive fast failures", failures)})
		return
	}

	next := s.now().Add(BackoffDuration(failures))
	s.setState(State{Kind: Backoff, Attempts: failures, NextStartAt: next})
}
