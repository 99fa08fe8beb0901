package osbind

import (
	"context"
	"time"
)

// StartupOpts describes how a child process should be created.
type StartupOpts struct {
	// CommandLine is the full command line, already quoted as needed.
	CommandLine string
	// CurrentDir is the working directory, or "" for the launcher's default.
	CurrentDir string
	// Env is the fully-resolved environment block to serialize for the child.
	Env EnvironmentBlock
	// InheritHandles are OS handles (e.g. the client side of a pipe
	// endpoint) that must survive into the child, in addition to
	// stdin/stdout/stderr.
	InheritHandles []InheritableHandle
}

// InheritableHandle is a native handle to pass into a child. It carries no
// fd slot of its own: the slot is assigned by position, starting at fd 3, in
// the handle-inheritance blob.
type InheritableHandle struct {
	Handle uintptr
}

// Binding is the OS binding layer (component A): every native call the rest
// of the service needs, behind an interface so session/launcher/ipc code can
// be exercised without a live Windows session.
type Binding interface {
	// ActiveConsoleSessionID returns the session id attached to the
	// physical console, or NoSessionID if none is attached.
	ActiveConsoleSessionID() uint32

	// CurrentProcessToken opens this process's own primary token with
	// ASSIGN_PRIMARY|DUPLICATE|QUERY rights.
	CurrentProcessToken() (Token, error)

	// QueryUserToken returns a primary token for the given console
	// session, or ErrNoInteractiveUser if the session is unattached or the
	// query fails with an expected-at-lock-screen error code.
	QueryUserToken(sessionID uint32) (Token, error)

	// EnvironmentForToken builds the environment block a child running
	// under token would see.
	EnvironmentForToken(token Token) (EnvironmentBlock, error)

	// CreateProcessAsUser spawns command under token, wiring inherited
	// handles per the CRT-compatible inheritance blob. Returns the
	// spawned process's pid and start time; the caller is responsible for
	// closing the token and every inheritable handle afterward.
	CreateProcessAsUser(token Token, opts StartupOpts) (ProcessInfo, error)

	// CreatePipePair listens on a named pipe and immediately opens the
	// client side itself, returning both. name has already been generated
	// by internal/ipc; this call is purely mechanical.
	CreatePipePair(name string) (server PipeServer, clientHandle uintptr, err error)

	// TCPTable returns a snapshot of the IPv4 TCP connection table for
	// peer-ownership authentication of the loopback-TCP transport.
	TCPTable() ([]TCPTableEntry, error)

	// WaitForProcess blocks until the process with the given pid exits or
	// ctx is cancelled.
	WaitForProcess(ctx context.Context, pid uint32, startTime time.Time) error

	// IsProcessAlive probes whether pid is currently running (used for the
	// pid-file "another instance" check).
	IsProcessAlive(pid uint32) bool

	// CloseHandle releases a raw native handle, such as a client-side pipe
	// handle after it has been inherited into a child. Safe to call with a
	// zero handle.
	CloseHandle(handle uintptr) error
}

// PipeServer is the duplex byte stream owned by this process on the server
// side of a named pipe endpoint.
type PipeServer interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// TCPTableEntry is one row of the IPv4 TCP connection table, with ports
// already unmasked (& 0xFFFF) and byte-swapped from network order, per the
// spec's accept-side authentication algorithm.
type TCPTableEntry struct {
	LocalAddr  [4]byte
	LocalPort  uint16
	RemoteAddr [4]byte
	RemotePort uint16
	OwningPid  uint32
	State      uint32
}
