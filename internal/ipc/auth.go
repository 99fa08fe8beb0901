package ipc

import (
	"fmt"

	"github.com/gpii/win-service/internal/osbind"
	"github.com/gpii/win-service/internal/procutil"
	"github.com/gpii/win-service/pkg/slices"
)

// MaxAncestryDepth bounds how many parent hops PeerAuthenticator will walk
// when checking whether a remote pid descends from the expected child.
const MaxAncestryDepth = 5

// PeerAuthResult is the outcome of authenticating an inbound loopback-TCP
// connection against the system TCP table.
type PeerAuthResult struct {
	Authenticated bool
	RemotePid     uint32
	Reason        string
}

// PeerAuthenticator implements the loopback-TCP accept-side authentication
// fallback: it verifies the local endpoint belongs to this process and the
// remote endpoint belongs to the expected child or one of its descendants,
// by walking the system TCP table and the process ancestry.
type PeerAuthenticator struct {
	binding   osbind.Binding
	selfPid   uint32
	ancestors func(pid uint32, maxDepth int) []uint32
}

// NewPeerAuthenticator constructs an authenticator for a self process id.
func NewPeerAuthenticator(binding osbind.Binding, selfPid uint32) *PeerAuthenticator {
	return &PeerAuthenticator{binding: binding, selfPid: selfPid, ancestors: ancestorsOf}
}

func ancestorsOf(pid uint32, maxDepth int) []uint32 {
	raw := procutil.Ancestors(int32(pid), maxDepth)
	out := make([]uint32, len(raw))
	for i, p := range raw {
		out[i] = uint32(p)
	}
	return out
}

// Authenticate matches localPort/remotePort (host byte order, already
// unmasked) against the current TCP table and validates ownership.
func (a *PeerAuthenticator) Authenticate(localPort, remotePort uint16, expectedChildPid uint32) PeerAuthResult {
	table, err := a.binding.TCPTable()
	if err != nil {
		return PeerAuthResult{Reason: fmt.Sprintf("read TCP table: %v", err)}
	}

	var localOwner, remoteOwner uint32
	var foundLocal, foundRemote bool

	for _, row := range table {
		if row.LocalPort == localPort {
			localOwner = row.OwningPid
			foundLocal = true
		}
		if row.LocalPort == remotePort {
			remoteOwner = row.OwningPid
			foundRemote = true
		}
	}

	if !foundLocal || localOwner != a.selfPid {
		return PeerAuthResult{Reason: "local endpoint is not owned by this process"}
	}
	if !foundRemote {
		return PeerAuthResult{Reason: "remote endpoint owner not found in TCP table"}
	}

	if remoteOwner == expectedChildPid || slices.Contains(a.ancestors(remoteOwner, MaxAncestryDepth), expectedChildPid) {
		return PeerAuthResult{Authenticated: true, RemotePid: remoteOwner}
	}

	return PeerAuthResult{
		RemotePid: remoteOwner,
		Reason:    fmt.Sprintf("pid %d is not the expected child (%d) or a descendant of it within depth %d", remoteOwner, expectedChildPid, MaxAncestryDepth),
	}
}
