//go:build !windows

package osbind

import (
	"context"
	"time"
)

// OtherBinding is the non-Windows osbind.Binding: every call that returns an
// error fails with ErrUnsupportedPlatform, ActiveConsoleSessionID reports
// NoSessionID, and IsProcessAlive reports false. It exists so the rest of
// the module builds and its
// platform-independent logic (session policy, ipc framing, supervisor state
// machine) can be unit tested away from a live Windows session.
type OtherBinding struct{}

// NewOtherBinding constructs the non-Windows stub binding.
func NewOtherBinding() *OtherBinding {
	return &OtherBinding{}
}

// New constructs the platform binding cmd/gpii-service should use.
func New() Binding {
	return NewOtherBinding()
}

var _ Binding = (*OtherBinding)(nil)

func (b *OtherBinding) ActiveConsoleSessionID() uint32 {
	return NoSessionID
}

func (b *OtherBinding) CurrentProcessToken() (Token, error) {
	return Token{}, ErrUnsupportedPlatform
}

func (b *OtherBinding) QueryUserToken(sessionID uint32) (Token, error) {
	return Token{}, ErrUnsupportedPlatform
}

func (b *OtherBinding) EnvironmentForToken(token Token) (EnvironmentBlock, error) {
	return EnvironmentBlock{}, ErrUnsupportedPlatform
}

func (b *OtherBinding) CreateProcessAsUser(token Token, opts StartupOpts) (ProcessInfo, error) {
	return ProcessInfo{}, ErrUnsupportedPlatform
}

func (b *OtherBinding) CreatePipePair(name string) (PipeServer, uintptr, error) {
	return nil, 0, ErrUnsupportedPlatform
}

func (b *OtherBinding) TCPTable() ([]TCPTableEntry, error) {
	return nil, ErrUnsupportedPlatform
}

func (b *OtherBinding) WaitForProcess(ctx context.Context, pid uint32, startTime time.Time) error {
	return ErrUnsupportedPlatform
}

func (b *OtherBinding) IsProcessAlive(pid uint32) bool {
	return false
}

func (b *OtherBinding) CloseHandle(handle uintptr) error {
	return ErrUnsupportedPlatform
}
