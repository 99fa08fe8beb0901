package ipc_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gpii/win-service/internal/ipc"
	"github.com/gpii/win-service/internal/osbind"
	"github.com/stretchr/testify/assert"
)

type fakeTableBinding struct {
	table []osbind.TCPTableEntry
}

func (f *fakeTableBinding) ActiveConsoleSessionID() uint32 { return osbind.NoSessionID }
func (f *fakeTableBinding) CurrentProcessToken() (osbind.Token, error) {
	return osbind.Token{}, nil
}
func (f *fakeTableBinding) QueryUserToken(uint32) (osbind.Token, error) { return osbind.Token{}, nil }
func (f *fakeTableBinding) EnvironmentForToken(osbind.Token) (osbind.EnvironmentBlock, error) {
	return osbind.EnvironmentBlock{}, nil
}
func (f *fakeTableBinding) CreateProcessAsUser(osbind.Token, osbind.StartupOpts) (osbind.ProcessInfo, error) {
	return osbind.ProcessInfo{}, errors.New("unused")
}
func (f *fakeTableBinding) CreatePipePair(string) (osbind.PipeServer, uintptr, error) {
	return nil, 0, errors.New("unused")
}
func (f *fakeTableBinding) TCPTable() ([]osbind.TCPTableEntry, error) { return f.table, nil }
func (f *fakeTableBinding) WaitForProcess(context.Context, uint32, time.Time) error {
	return errors.New("unused")
}
func (f *fakeTableBinding) IsProcessAlive(uint32) bool  { return false }
func (f *fakeTableBinding) CloseHandle(uintptr) error   { return nil }

var _ osbind.Binding = (*fakeTableBinding)(nil)

func TestPeerAuthenticator_AcceptsExpectedChild(t *testing.T) {
	b := &fakeTableBinding{table: []osbind.TCPTableEntry{
		{LocalPort: 5000, OwningPid: 100},
		{LocalPort: 6000, OwningPid: 200},
	}}
	auth := ipc.NewPeerAuthenticator(b, 100)

	result := auth.Authenticate(5000, 6000, 200)
	assert.True(t, result.Authenticated)
	assert.Equal(t, uint32(200), result.RemotePid)
}

func TestPeerAuthenticator_RejectsWrongLocalOwner(t *testing.T) {
	b := &fakeTableBinding{table: []osbind.TCPTableEntry{
		{LocalPort: 5000, OwningPid: 999},
		{LocalPort: 6000, OwningPid: 200},
	}}
	auth := ipc.NewPeerAuthenticator(b, 100)

	result := auth.Authenticate(5000, 6000, 200)
	assert.False(t, result.Authenticated)
}

func TestPeerAuthenticator_RejectsUnrelatedRemotePid(t *testing.T) {
	b := &fakeTableBinding{table: []osbind.TCPTableEntry{
		{LocalPort: 5000, OwningPid: 100},
		{LocalPort: 6000, OwningPid: 999},
	}}
	auth := ipc.NewPeerAuthenticator(b, 100)

	result := auth.Authenticate(5000, 6000, 200)
	assert.False(t, result.Authenticated)
	assert.Equal(t, uint32(999), result.RemotePid)
}
