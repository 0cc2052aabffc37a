// Package server implements the length-prefixed JSON socket protocol.
//
// Every frame on the wire is a 4-byte big-endian payload length followed by
// that many bytes of UTF-8 JSON. Requests carry an action name and an opaque
// data object; responses carry a success flag, an optional message, an
// optional machine-readable code and an optional data payload.
package server

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// lengthPrefixSize is the fixed size of the frame header.
const lengthPrefixSize = 4

// DefaultMaxFrameSize bounds accepted frames when the config leaves the
// limit unset.
const DefaultMaxFrameSize = 4 << 20

// ErrFrameTooLarge is returned when a frame header announces a payload
// larger than the configured maximum.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// Request is the wire envelope sent by clients.
type Request struct {
	Action string              `json:"action"`
	Data   jsoniter.RawMessage `json:"data,omitempty"`
}

// Response is the wire envelope sent back for every request.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ReadFrame reads one length-prefixed payload from r. maxSize <= 0 falls
// back to DefaultMaxFrameSize.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	var header [lengthPrefixSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if length > uint32(maxSize) {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// WriteFrame writes one length-prefixed payload to w.
func WriteFrame(w io.Writer, payload []byte) error {
	var header [lengthPrefixSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return nil
}

// WriteMessage marshals v and writes it as a single frame.
func WriteMessage(w io.Writer, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return WriteFrame(w, payload)
}

// ReadMessage reads one frame and unmarshals it into v.
func ReadMessage(r io.Reader, maxSize int, v any) error {
	payload, err := ReadFrame(r, maxSize)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, v)
}
