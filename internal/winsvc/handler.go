//go:build windows

// Package winsvc translates Windows service control manager events into
// internal/eventbus events (component G): service start runs the
// supervisor's loop, stop and shutdown become "control.stop", and a
// session-change with the logon sub-reason becomes "session.logon", so
// internal/supervisor never has to know it is hosted by the SCM.
package winsvc

import (
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sys/windows/svc"

	"github.com/gpii/win-service/internal/eventbus"
)

// acceptedCommands are the control codes this service reports it can handle.
const acceptedCommands = svc.AcceptStop | svc.AcceptShutdown | svc.AcceptSessionChange

// pendingTimeout bounds how long Execute waits for the supervisor loop to
// return after a Stop or Shutdown request before reporting Stopped anyway.
const pendingTimeout = 3 * time.Second

// Handler implements svc.Handler, running the supervisor's Run loop for the
// lifetime of the service and forwarding control events onto bus.
type Handler struct {
	log logr.Logger
	bus *eventbus.Bus
	// Run is invoked in the background as soon as Execute has reported
	// StartPending; it should block until the supervisor's event loop returns.
	Run func() error
}

// NewHandler constructs a service Handler wired to bus.
func NewHandler(log logr.Logger, bus *eventbus.Bus, run func() error) *Handler {
	return &Handler{log: log.WithName("winsvc"), bus: bus, Run: run}
}

// Execute implements svc.Handler. It reports StartPending, launches the
// supervisor in the background, reports Running, and then answers control
// requests until Stop or Shutdown, at which point it asks the supervisor to
// stop and waits up to pendingTimeout for it to exit before reporting
// Stopped.
func (h *Handler) Execute(args []string, requests <-chan svc.ChangeRequest, statusCh chan<- svc.Status) (svcSpecificEC bool, exitCode uint32) {
	statusCh <- svc.Status{State: svc.StartPending}

	done := make(chan error, 1)
	go func() { done <- h.Run() }()

	statusCh <- svc.Status{State: svc.Running, Accepts: acceptedCommands}

	for {
		select {
		case err := <-done:
			if err != nil {
				h.log.Error(err, "supervisor loop exited with error")
				statusCh <- svc.Status{State: svc.Stopped}
				return false, 1
			}
			statusCh <- svc.Status{State: svc.Stopped}
			return false, 0

		case req := <-requests:
			switch req.Cmd {
			case svc.Interrogate:
				statusCh <- req.CurrentStatus

			case svc.Stop, svc.Shutdown:
				statusCh <- svc.Status{State: svc.StopPending}
				h.bus.Publish(eventbus.Event{Name: "control.stop"})
				select {
				case err := <-done:
					if err != nil {
						h.log.Error(err, "supervisor loop exited with error")
					}
				case <-time.After(pendingTimeout):
					h.log.Info("supervisor did not stop within the pending timeout")
				}
				statusCh <- svc.Status{State: svc.Stopped}
				return false, 0

			case svc.SessionChange:
				if req.EventType == sessionChangeLogonEvent {
					h.bus.Publish(eventbus.Event{Name: "session.logon"})
				}

			default:
				h.log.Info("ignoring unrecognized service control request", "cmd", req.Cmd)
			}
		}
	}
}

// sessionChangeLogonEvent is WTS_SESSION_LOGON, reported by the SCM in
// ChangeRequest.EventType for svc.SessionChange when a user has just logged
// on to the console session.
const sessionChangeLogonEvent = 5
