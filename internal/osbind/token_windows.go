//go:build windows

package osbind

import "golang.org/x/sys/windows"

// tokenImpl wraps the native handle for a Token on Windows. The zero value
// (nil handle) is the "current process token" sentinel used by
// opts.always_run.
type tokenImpl struct {
	h windows.Token
}

func (t tokenImpl) valid() bool {
	return t.h != 0
}

func (t tokenImpl) close() error {
	if t.h == 0 {
		return nil
	}
	return t.h.Close()
}

func tokenFromHandle(h windows.Token) Token {
	return Token{impl: tokenImpl{h: h}}
}

func nativeHandle(t Token) windows.Token {
	return t.impl.h
}
