// Package osbind provides typed wrappers over the native session, token,
// environment, process, pipe, and TCP-table calls the rest of the service
// needs to cross the service/session boundary. Everything above this
// package talks to the Binding interface, never to golang.org/x/sys/windows
// directly, so the session manager, launcher, and IPC layer can be tested
// without a real Windows session.
package osbind

import (
	"errors"
	"time"
)

// ErrNoInteractiveUser is the structured "no interactive user" outcome the
// spec requires session queries to return instead of a hard error when the
// console is at the lock screen or before first logon.
var ErrNoInteractiveUser = errors.New("no interactive user session")

// ErrUnsupportedPlatform is returned by every osbind operation on platforms
// that do not implement the underlying native call (only Windows does).
var ErrUnsupportedPlatform = errors.New("osbind: operation not supported on this platform")

// NoSessionID is the sentinel console session id meaning "no session
// attached to the physical console".
const NoSessionID uint32 = 0xFFFFFFFF

// TokenRights are the access rights a primary token needs to be usable with
// CreateProcessAsUser.
const TokenRights = "ASSIGN_PRIMARY|DUPLICATE|QUERY"

// Token is an owned OS handle representing a user's primary access token.
// The zero value represents "use the current process token" (opts.always_run
// fallback); a Token obtained from QueryUserToken must be closed exactly
// once via Close.
type Token struct {
	impl tokenImpl
}

// Valid reports whether the token wraps a real native handle rather than the
// zero "current process" sentinel.
func (t Token) Valid() bool { return t.impl.valid() }

// Close releases the underlying handle. Safe to call on a zero Token.
func (t Token) Close() error { return t.impl.close() }

// EnvironmentBlock is an ordered, read-only sequence of NAME=VALUE strings
// derived from a Token.
type EnvironmentBlock struct {
	vars []string
}

// NewEnvironmentBlock wraps a slice of "NAME=VALUE" strings.
func NewEnvironmentBlock(vars []string) EnvironmentBlock {
	cp := make([]string, len(vars))
	copy(cp, vars)
	return EnvironmentBlock{vars: cp}
}

// Vars returns the NAME=VALUE pairs, in order.
func (e EnvironmentBlock) Vars() []string {
	cp := make([]string, len(e.vars))
	copy(cp, e.vars)
	return cp
}

// Lookup finds a variable case-insensitively, since Windows environment
// variable names (like APPDATA) are case-insensitive.
func (e EnvironmentBlock) Lookup(name string) (string, bool) {
	for _, kv := range e.vars {
		k, v, ok := splitKV(kv)
		if ok && equalFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// Merge returns a new EnvironmentBlock with overrides applied on top,
// overriding by name (case-insensitive) and appending unseen names.
func (e EnvironmentBlock) Merge(overrides map[string]string) EnvironmentBlock {
	out := make([]string, 0, len(e.vars)+len(overrides))
	seen := make(map[string]bool, len(overrides))

	for _, kv := range e.vars {
		k, _, ok := splitKV(kv)
		if !ok {
			out = append(out, kv)
			continue
		}
		if v, isOverridden := lookupFold(overrides, k); isOverridden {
			out = append(out, k+"="+v)
			seen[foldKey(overrides, k)] = true
			continue
		}
		out = append(out, kv)
	}

	for k, v := range overrides {
		if seen[k] {
			continue
		}
		out = append(out, k+"="+v)
	}

	return NewEnvironmentBlock(out)
}

// ToBlock serializes the environment as the double-NUL-terminated UCS-2
// sequence CreateProcessAsUser expects when CREATE_UNICODE_ENVIRONMENT is set.
func (e EnvironmentBlock) ToBlock() ([]uint16, error) {
	return utf16Block(e.vars)
}

func splitKV(kv string) (key, value string, ok bool) {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i], kv[i+1:], true
		}
	}
	return "", "", false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func lookupFold(m map[string]string, key string) (string, bool) {
	for k, v := range m {
		if equalFold(k, key) {
			return v, true
		}
	}
	return "", false
}

func foldKey(m map[string]string, key string) string {
	for k := range m {
		if equalFold(k, key) {
			return k
		}
	}
	return key
}

// ProcessInfo is the handle-plus-timing tuple returned by process creation.
type ProcessInfo struct {
	Pid       uint32
	StartTime time.Time
}
