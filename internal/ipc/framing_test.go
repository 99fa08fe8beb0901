package ipc_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/gpii/win-service/internal/ipc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loopStream struct {
	buf bytes.Buffer
}

func (s *loopStream) Read(p []byte) (int, error)  { return s.buf.Read(p) }
func (s *loopStream) Write(p []byte) (int, error) { return s.buf.Write(p) }

func TestFrameRoundTrip(t *testing.T) {
	stream := &loopStream{}
	w := ipc.NewFrameWriter(stream)
	r := ipc.NewFrameReader(stream)

	msg := ipc.Message{Type: "hello", Payload: map[string]any{"version": float64(1)}}
	require.NoError(t, w.WriteMessage(msg))

	got, err := r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, msg.Type, got.Type)
	assert.Equal(t, msg.Payload, got.Payload)
}

func TestFrameReader_EOFOnEmptyStream(t *testing.T) {
	stream := &loopStream{}
	r := ipc.NewFrameReader(stream)

	_, err := r.ReadMessage()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameWriter_RejectsOversizeMessage(t *testing.T) {
	stream := &loopStream{}
	w := ipc.NewFrameWriter(stream)

	huge := make([]byte, 128*1024)
	err := w.WriteMessage(ipc.Message{Type: "big", Payload: string(huge)})
	assert.ErrorIs(t, err, ipc.ErrFrameTooLarge)
}

func TestFrameRoundTrip_PingPongTypes(t *testing.T) {
	stream := &loopStream{}
	w := ipc.NewFrameWriter(stream)
	r := ipc.NewFrameReader(stream)

	require.NoError(t, w.WriteMessage(ipc.Message{Type: ipc.TypePing, Payload: "x"}))
	got, err := r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, ipc.TypePing, got.Type)
}
