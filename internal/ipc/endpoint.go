package ipc

import (
	"fmt"

	"github.com/gpii/win-service/internal/osbind"
)

// Endpoint is a paired {server side, client side} channel. The server side
// is a duplex byte stream owned by this process; the client side is an
// inheritable OS handle intended for transfer to exactly one child.
//
// Once the child has been spawned, CloseClientHandle must be called so that
// EOF on either side reliably signals peer exit — the parent must not keep
// its own copy of the client handle open.
type Endpoint struct {
	Name         string
	Server       osbind.PipeServer
	ClientHandle uintptr

	binding osbind.Binding
}

// Create generates a unique endpoint name and opens both the server and
// client sides via binding. If either half fails to come up, the other is
// closed and an error is returned; the parent trusts the client end because
// it opened it itself, so the pipe server never has to authenticate an
// anonymous connecting client.
func Create(product string, binding osbind.Binding) (*Endpoint, error) {
	name, err := NewEndpointName(product)
	if err != nil {
		return nil, err
	}

	server, clientHandle, err := binding.CreatePipePair(name)
	if err != nil {
		return nil, fmt.Errorf("create pipe pair %q: %w", name, err)
	}

	return &Endpoint{
		Name:         name,
		Server:       server,
		ClientHandle: clientHandle,
		binding:      binding,
	}, nil
}

// Reader wraps the server side for framed reads.
func (e *Endpoint) Reader() *FrameReader { return NewFrameReader(e.Server) }

// Writer wraps the server side for framed writes.
func (e *Endpoint) Writer() *FrameWriter { return NewFrameWriter(e.Server) }

// CloseServer closes the parent's side of the endpoint. Safe to call once
// the child has disconnected or the supervisor is tearing the child down.
func (e *Endpoint) CloseServer() error {
	if e.Server == nil {
		return nil
	}
	return e.Server.Close()
}

// CloseClientHandle drops the parent's copy of the client handle. Must be
// called immediately after the child has been spawned and the handle
// inherited, so that EOF on either side reliably signals peer exit.
func (e *Endpoint) CloseClientHandle() error {
	return e.binding.CloseHandle(e.ClientHandle)
}
