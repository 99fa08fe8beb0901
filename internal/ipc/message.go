// Package ipc implements the authenticated local transport (component C):
// unique endpoint naming, length-prefixed JSON framing over a named pipe or
// loopback TCP connection, and accept-time peer authentication.
package ipc

import (
	"fmt"

	"github.com/gpii/win-service/pkg/randdata"
)

// PipeNamePrefix is the Windows named-pipe namespace prefix every endpoint
// name is built under.
const PipeNamePrefix = `\\.\pipe\`

// randomNameLength is the number of random characters in an endpoint's
// unique suffix.
const randomNameLength = 24

// Reserved message types. A ping is answered with a pong carrying the same
// payload; every other type, reserved or not, is republished on the event
// bus as "<product>.message.<type>" rather than treated as an error.
const (
	TypePing  = "ping"
	TypePong  = "pong"
	TypeError = "error"
	TypeHello = "hello"
)

// Message is the tagged record carried by every framed IPC exchange.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// NewEndpointName generates a unique pipe name of the form
// "\\.\pipe\<product>-<rand>", where <rand> is randomNameLength lowercase
// letters, which namespace-safe characters allow to appear directly in the
// pipe path with no further escaping.
func NewEndpointName(product string) (string, error) {
	suffix, err := randdata.MakeRandomString(randomNameLength)
	if err != nil {
		return "", fmt.Errorf("generate endpoint random suffix: %w", err)
	}

	return fmt.Sprintf("%s%s-%s", PipeNamePrefix, product, suffix), nil
}
