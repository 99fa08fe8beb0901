package ipc_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gpii/win-service/internal/ipc"
	"github.com/gpii/win-service/internal/osbind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bufferPipeServer struct {
	bytes.Buffer
	closed bool
}

func (p *bufferPipeServer) Close() error {
	p.closed = true
	return nil
}

type fakeEndpointBinding struct {
	server       *bufferPipeServer
	clientHandle uintptr
	createErr    error
	closedHandle uintptr
}

func (f *fakeEndpointBinding) ActiveConsoleSessionID() uint32 { return osbind.NoSessionID }
func (f *fakeEndpointBinding) CurrentProcessToken() (osbind.Token, error) {
	return osbind.Token{}, nil
}
func (f *fakeEndpointBinding) QueryUserToken(uint32) (osbind.Token, error) {
	return osbind.Token{}, nil
}
func (f *fakeEndpointBinding) EnvironmentForToken(osbind.Token) (osbind.EnvironmentBlock, error) {
	return osbind.EnvironmentBlock{}, nil
}
func (f *fakeEndpointBinding) CreateProcessAsUser(osbind.Token, osbind.StartupOpts) (osbind.ProcessInfo, error) {
	return osbind.ProcessInfo{}, errors.New("unused")
}

func (f *fakeEndpointBinding) CreatePipePair(name string) (osbind.PipeServer, uintptr, error) {
	if f.createErr != nil {
		return nil, 0, f.createErr
	}
	return f.server, f.clientHandle, nil
}

func (f *fakeEndpointBinding) TCPTable() ([]osbind.TCPTableEntry, error) { return nil, nil }
func (f *fakeEndpointBinding) WaitForProcess(context.Context, uint32, time.Time) error {
	return errors.New("unused")
}
func (f *fakeEndpointBinding) IsProcessAlive(uint32) bool { return false }
func (f *fakeEndpointBinding) CloseHandle(handle uintptr) error {
	f.closedHandle = handle
	return nil
}

var _ osbind.Binding = (*fakeEndpointBinding)(nil)

func TestEndpoint_CreateAndCloseClientHandle(t *testing.T) {
	b := &fakeEndpointBinding{server: &bufferPipeServer{}, clientHandle: 42}

	ep, err := ipc.Create("gpii", b)
	require.NoError(t, err)
	assert.Equal(t, uintptr(42), ep.ClientHandle)

	require.NoError(t, ep.CloseClientHandle())
	assert.Equal(t, uintptr(42), b.closedHandle)
}

func TestEndpoint_CreatePropagatesFailure(t *testing.T) {
	b := &fakeEndpointBinding{createErr: errors.New("no pipes left")}

	_, err := ipc.Create("gpii", b)
	assert.Error(t, err)
}
