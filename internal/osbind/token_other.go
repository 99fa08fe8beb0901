//go:build !windows

package osbind

// tokenImpl is a no-op sentinel on platforms without a native token type, so
// the module builds and its platform-independent tests run on any
// development machine. The service is only ever meaningfully run on Windows.
type tokenImpl struct{}

func (t tokenImpl) valid() bool { return false }
func (t tokenImpl) close() error { return nil }
