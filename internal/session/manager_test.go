package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/gpii/win-service/internal/osbind"
	"github.com/gpii/win-service/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBinding struct {
	consoleSessionID uint32
	queryTokenErr    error
	currentTokenErr  error
	env              osbind.EnvironmentBlock
	envErr           error
}

func (f *fakeBinding) ActiveConsoleSessionID() uint32 { return f.consoleSessionID }

func (f *fakeBinding) CurrentProcessToken() (osbind.Token, error) {
	if f.currentTokenErr != nil {
		return osbind.Token{}, f.currentTokenErr
	}
	return osbind.Token{}, nil
}

func (f *fakeBinding) QueryUserToken(sessionID uint32) (osbind.Token, error) {
	if f.queryTokenErr != nil {
		return osbind.Token{}, f.queryTokenErr
	}
	return osbind.Token{}, nil
}

func (f *fakeBinding) EnvironmentForToken(token osbind.Token) (osbind.EnvironmentBlock, error) {
	if f.envErr != nil {
		return osbind.EnvironmentBlock{}, f.envErr
	}
	return f.env, nil
}

func (f *fakeBinding) CreateProcessAsUser(osbind.Token, osbind.StartupOpts) (osbind.ProcessInfo, error) {
	return osbind.ProcessInfo{}, errors.New("not used by session tests")
}

func (f *fakeBinding) CreatePipePair(string) (osbind.PipeServer, uintptr, error) {
	return nil, 0, errors.New("not used by session tests")
}

func (f *fakeBinding) TCPTable() ([]osbind.TCPTableEntry, error) {
	return nil, errors.New("not used by session tests")
}

func (f *fakeBinding) WaitForProcess(ctx context.Context, pid uint32, startTime time.Time) error {
	return errors.New("not used by session tests")
}

func (f *fakeBinding) IsProcessAlive(uint32) bool { return false }

func (f *fakeBinding) CloseHandle(uintptr) error { return nil }

var _ osbind.Binding = (*fakeBinding)(nil)

func TestManager_CurrentUserToken_NotAServiceUsesOwnToken(t *testing.T) {
	b := &fakeBinding{}
	m := session.NewManager(logr.Discard(), b, false)

	_, err := m.CurrentUserToken()
	require.NoError(t, err)
}

func TestManager_CurrentUserToken_ServiceWithNoSessionIsNoInteractiveUser(t *testing.T) {
	b := &fakeBinding{consoleSessionID: osbind.NoSessionID}
	m := session.NewManager(logr.Discard(), b, true)

	_, err := m.CurrentUserToken()
	assert.ErrorIs(t, err, osbind.ErrNoInteractiveUser)
}

func TestManager_CurrentUserToken_ServiceQueriesSession(t *testing.T) {
	b := &fakeBinding{consoleSessionID: 1}
	m := session.NewManager(logr.Discard(), b, true)

	_, err := m.CurrentUserToken()
	require.NoError(t, err)
}

func TestManager_IsUserLoggedOn(t *testing.T) {
	loggedOn := session.NewManager(logr.Discard(), &fakeBinding{consoleSessionID: 1}, true)
	assert.True(t, loggedOn.IsUserLoggedOn())

	loggedOff := session.NewManager(logr.Discard(), &fakeBinding{consoleSessionID: osbind.NoSessionID}, true)
	assert.False(t, loggedOff.IsUserLoggedOn())
}

func TestManager_UserDataDir_LooksUpAppDataCaseInsensitively(t *testing.T) {
	env := osbind.NewEnvironmentBlock([]string{"AppData=C:\\Users\\bob\\AppData\\Roaming"})
	m := session.NewManager(logr.Discard(), &fakeBinding{}, false)

	dir, err := m.UserDataDir(env)
	require.NoError(t, err)
	assert.Equal(t, "C:\\Users\\bob\\AppData\\Roaming\\gpii", dir)
}

func TestManager_UserDataDir_MissingAppDataIsError(t *testing.T) {
	env := osbind.NewEnvironmentBlock([]string{"PATH=C:\\Windows"})
	m := session.NewManager(logr.Discard(), &fakeBinding{}, false)

	_, err := m.UserDataDir(env)
	assert.ErrorIs(t, err, session.ErrNoAppData)
}
