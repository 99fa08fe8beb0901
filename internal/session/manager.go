// Package session resolves the active console session into a usable primary
// token and derives the per-user facts (environment, data directory) the
// launcher needs to start a child under that identity.
package session

import (
	"fmt"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/gpii/win-service/internal/osbind"
)

// ProductFolderName names the subdirectory this service appends under a
// user's roaming AppData directory.
const ProductFolderName = "gpii"

// Manager resolves session identity and per-user facts through an
// osbind.Binding, so tests can fake the OS layer instead of touching a real
// session.
type Manager struct {
	log     logr.Logger
	binding osbind.Binding
	// runningAsService controls current_user_token's fallback behavior: a
	// host running interactively (not as a Windows service) is entitled to
	// use its own process token as "the" user token.
	runningAsService bool
}

// NewManager constructs a session Manager. runningAsService should be true
// only when the calling process is hosted by the Windows service control
// manager; a console-mode host passes false and gets its own token as a
// fallback identity.
func NewManager(log logr.Logger, binding osbind.Binding, runningAsService bool) *Manager {
	return &Manager{log: log.WithName("session"), binding: binding, runningAsService: runningAsService}
}

// CurrentUserToken resolves the active console session's primary token. When
// the host is not running as a service, the current process's own token is
// returned instead. Returns osbind.ErrNoInteractiveUser (never a bare OS
// error) when there is no interactive user to act on behalf of.
func (m *Manager) CurrentUserToken() (osbind.Token, error) {
	if !m.runningAsService {
		tok, err := m.binding.CurrentProcessToken()
		if err != nil {
			return osbind.Token{}, fmt.Errorf("current process token: %w", err)
		}
		return tok, nil
	}

	sessionID := m.binding.ActiveConsoleSessionID()
	if sessionID == osbind.NoSessionID {
		return osbind.Token{}, osbind.ErrNoInteractiveUser
	}

	tok, err := m.binding.QueryUserToken(sessionID)
	if err != nil {
		return osbind.Token{}, err
	}
	return tok, nil
}

// IsUserLoggedOn is a convenience wrapper that drops the token immediately.
func (m *Manager) IsUserLoggedOn() bool {
	tok, err := m.CurrentUserToken()
	if err != nil {
		return false
	}
	defer tok.Close()
	return true
}

// EnvironmentFor builds the environment block a child running under token
// would see.
func (m *Manager) EnvironmentFor(token osbind.Token) (osbind.EnvironmentBlock, error) {
	env, err := m.binding.EnvironmentForToken(token)
	if err != nil {
		return osbind.EnvironmentBlock{}, fmt.Errorf("build environment for token: %w", err)
	}
	return env, nil
}

// ErrNoAppData is returned by UserDataDir when the environment block being
// inspected carries no APPDATA entry.
var ErrNoAppData = fmt.Errorf("environment block has no APPDATA entry")

// UserDataDir locates APPDATA in env (case-insensitive) and appends the
// product folder. env is always the source of truth: the service's own
// environment is never substituted, because that would resolve to
// %SystemProfile% rather than the interactive user's roaming profile.
func (m *Manager) UserDataDir(env osbind.EnvironmentBlock) (string, error) {
	appData, ok := env.Lookup("APPDATA")
	if !ok {
		return "", ErrNoAppData
	}
	return filepath.Join(appData, ProductFolderName), nil
}
