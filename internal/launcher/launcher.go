// Package launcher implements the cross-session process launcher (component
// D): it acquires a user token from internal/session, opens a private IPC
// endpoint via internal/ipc, and spawns a child under that token with the
// endpoint's client handle (and any caller-supplied handles) inherited.
package launcher

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/gpii/win-service/internal/ipc"
	"github.com/gpii/win-service/internal/osbind"
	"github.com/gpii/win-service/internal/procutil"
	"github.com/gpii/win-service/internal/session"
	"github.com/gpii/win-service/pkg/maps"
)

// SpawnOpts controls a single SpawnChild call.
type SpawnOpts struct {
	// AlwaysRun allows falling back to the launcher's own process token when
	// no interactive user token is available. Callers must only set this
	// when the host is not itself a Windows service; otherwise the child
	// would run as LocalSystem.
	AlwaysRun bool
	// Env holds extra NAME=VALUE pairs merged into the user's environment.
	Env map[string]string
	// CurrentDir is the child's working directory, or "" for the launcher's own.
	CurrentDir string
	// InheritHandles are extra OS handles to transfer to the child, beyond
	// the private endpoint's client handle that every spawn already inherits.
	InheritHandles []osbind.InheritableHandle
}

// ChildHandle identifies a spawned child: its pid plus identity time, the
// server side of its private endpoint, and its wall-clock start time. It
// holds no native process handle (the binding closes that right after the
// process is created) and has no Close method; waiting for the child goes
// through osbind.Binding.WaitForProcess by pid.
type ChildHandle struct {
	Handle    procutil.Handle
	Endpoint  *ipc.Endpoint
	StartTime time.Time
}

// Pid is a convenience accessor for the child's process id.
func (c ChildHandle) Pid() int32 { return c.Handle.Pid }

// Launcher spawns children under a resolved user token, each with its own
// private IPC endpoint.
type Launcher struct {
	log      logr.Logger
	binding  osbind.Binding
	sessions *session.Manager
	product  string
}

// New constructs a Launcher. product names the IPC endpoint prefix
// (\\.\pipe\<product>-<rand>).
func New(log logr.Logger, binding osbind.Binding, sessions *session.Manager, product string) *Launcher {
	return &Launcher{log: log.WithName("launcher"), binding: binding, sessions: sessions, product: product}
}

// DefaultCommandLine synthesizes "<hostExecutable>" <defaultEntry> for
// callers that want a default command line when none was configured.
func DefaultCommandLine(hostExecutable, defaultEntry string) string {
	return fmt.Sprintf("\"%s\" %s", hostExecutable, defaultEntry)
}

// defaultEntry is the argument appended to the host executable's own path
// when SpawnChild is asked to start a child with no command line at all.
const defaultEntry = "gpii.js"

// SpawnChild acquires a token, opens a private IPC endpoint, builds the
// environment and startup-info structures, invokes CreateProcessAsUser, and
// unconditionally releases the token and every inheritable handle on the
// way out. An empty command synthesizes one from the host executable's own
// path plus defaultEntry.
func (l *Launcher) SpawnChild(command string, opts SpawnOpts) (ChildHandle, error) {
	for _, h := range opts.InheritHandles {
		defer func(handle osbind.InheritableHandle) {
			if closeErr := l.binding.CloseHandle(handle.Handle); closeErr != nil {
				l.log.Error(closeErr, "failed to close inheritable handle", "handle", handle.Handle)
			}
		}(h)
	}

	if command == "" {
		hostExe, err := HostExecutable()
		if err != nil {
			return ChildHandle{}, fmt.Errorf("launcher: %w", err)
		}
		command = DefaultCommandLine(hostExe, defaultEntry)
	}

	token, err := l.sessions.CurrentUserToken()
	if err != nil {
		if !errors.Is(err, osbind.ErrNoInteractiveUser) || !opts.AlwaysRun {
			return ChildHandle{}, err
		}
		token = osbind.Token{}
	}
	defer func() {
		if closeErr := token.Close(); closeErr != nil {
			l.log.Error(closeErr, "failed to close acquired token")
		}
	}()

	endpoint, err := ipc.Create(l.product, l.binding)
	if err != nil {
		return ChildHandle{}, fmt.Errorf("open ipc endpoint: %w", err)
	}
	// The parent's copy of the client handle is closed on every exit path
	// (success or failure) so EOF on either side of the pipe reliably
	// signals peer exit once the child has its own copy.
	defer func() {
		if closeErr := endpoint.CloseClientHandle(); closeErr != nil {
			l.log.Error(closeErr, "failed to close endpoint client handle")
		}
	}()

	inherit := append([]osbind.InheritableHandle{{Handle: endpoint.ClientHandle}}, opts.InheritHandles...)

	env, err := l.sessions.EnvironmentFor(token)
	if err != nil {
		_ = endpoint.CloseServer()
		return ChildHandle{}, fmt.Errorf("build environment: %w", err)
	}
	if len(opts.Env) > 0 {
		env = env.Merge(opts.Env)
		l.log.V(1).Info("merged extra environment variables", "names", maps.Keys(opts.Env))
	}

	info, err := l.binding.CreateProcessAsUser(token, osbind.StartupOpts{
		CommandLine:    command,
		CurrentDir:     opts.CurrentDir,
		Env:            env,
		InheritHandles: inherit,
	})
	if err != nil {
		_ = endpoint.CloseServer()
		return ChildHandle{}, fmt.Errorf("spawn child: %w", err)
	}

	return ChildHandle{
		Handle:    procutil.NewHandle(int32(info.Pid), info.StartTime),
		Endpoint:  endpoint,
		StartTime: info.StartTime,
	}, nil
}

// HostExecutable returns the currently running executable's path, used to
// build the default command line when the caller supplies none.
func HostExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve host executable: %w", err)
	}
	return exe, nil
}
