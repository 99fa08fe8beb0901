package ipc

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// maxFrameSize bounds a single frame's body, guarding against a corrupt or
// hostile peer. 64 KiB is a conservative default for control-plane JSON
// traffic.
const maxFrameSize = 64 * 1024

// ErrFrameTooLarge is returned by FrameReader.ReadMessage when a peer
// announces a frame length exceeding maxFrameSize.
var ErrFrameTooLarge = fmt.Errorf("ipc: frame exceeds maximum size of %d bytes", maxFrameSize)

// byteStream is the minimal read/write surface framing needs; both a
// PipeServer and a net.Conn satisfy it.
type byteStream interface {
	io.Reader
	io.Writer
}

// FrameReader reads length-prefixed JSON messages from a byte stream: a
// 4-byte big-endian length followed by the UTF-8 JSON body.
type FrameReader struct {
	stream byteStream
}

// NewFrameReader wraps stream for message-at-a-time reads.
func NewFrameReader(stream byteStream) *FrameReader {
	return &FrameReader{stream: stream}
}

// ReadMessage blocks for the next complete frame and decodes it as a
// Message. io.EOF (possibly wrapped) is returned verbatim so callers can
// distinguish peer-closed from a framing error.
func (r *FrameReader) ReadMessage() (Message, error) {
	var lengthBuf [4]byte
	if _, err := io.ReadFull(r.stream, lengthBuf[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Message{}, io.EOF
		}
		return Message{}, err
	}

	length := binary.BigEndian.Uint32(lengthBuf[:])
	if length > maxFrameSize {
		return Message{}, ErrFrameTooLarge
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r.stream, body); err != nil {
		return Message{}, fmt.Errorf("read frame body: %w", err)
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Message{}, fmt.Errorf("decode frame body: %w", err)
	}
	return msg, nil
}

// FrameWriter writes length-prefixed JSON messages to a byte stream.
type FrameWriter struct {
	stream byteStream
}

// NewFrameWriter wraps stream for message-at-a-time writes.
func NewFrameWriter(stream byteStream) *FrameWriter {
	return &FrameWriter{stream: stream}
}

// WriteMessage encodes msg and writes it as one frame.
func (w *FrameWriter) WriteMessage(msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode frame body: %w", err)
	}
	if len(body) > maxFrameSize {
		return ErrFrameTooLarge
	}

	var lengthBuf [4]byte
	binary.BigEndian.PutUint32(lengthBuf[:], uint32(len(body)))

	if _, err := w.stream.Write(lengthBuf[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := w.stream.Write(body); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}
