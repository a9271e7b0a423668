// Package meshproto is the wire format between drowsewatch and an external
// face-mesh worker process. Every message is a 4-byte big-endian length
// followed by a msgpack body.
package meshproto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/dudu/drowsewatch/internal/geometry"
)

// MaxMessageSize bounds a single message. A 1080p RGB frame is ~6.2MB.
const MaxMessageSize = 32 << 20

// ErrFrameTooLarge is returned when a length prefix exceeds MaxMessageSize.
var ErrFrameTooLarge = errors.New("message exceeds maximum size")

// Request carries one RGB frame, row-major, 3 bytes per pixel.
type Request struct {
	Seq    uint64 `msgpack:"seq"`
	Width  int    `msgpack:"w"`
	Height int    `msgpack:"h"`
	Data   []byte `msgpack:"d"`
}

// Response carries the landmarks of every face found in the frame.
// Each face is a list of [x, y, z] triples in normalized coordinates.
type Response struct {
	Seq         uint64         `msgpack:"seq"`
	Faces       [][][3]float64 `msgpack:"faces"`
	InferenceMS float64        `msgpack:"inference_ms"`
	Error       string         `msgpack:"error,omitempty"`
}

// LandmarkSets converts the faces to geometry sets.
func (r *Response) LandmarkSets() []geometry.LandmarkSet {
	sets := make([]geometry.LandmarkSet, 0, len(r.Faces))
	for _, face := range r.Faces {
		set := make(geometry.LandmarkSet, len(face))
		for i, p := range face {
			set[i] = geometry.Point{X: p[0], Y: p[1], Z: p[2]}
		}
		sets = append(sets, set)
	}
	return sets
}

// Write encodes v and writes it as one framed message.
func Write(w io.Writer, v any) error {
	body, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if len(body) > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(body))
	}
	msg := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(msg, uint32(len(body)))
	copy(msg[4:], body)
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Read reads one framed message into v. It returns io.EOF only when the
// stream ends cleanly before a new message.
func Read(r io.Reader, v any) error {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return fmt.Errorf("failed to read length prefix: %w", err)
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return fmt.Errorf("failed to read message body (%d bytes): %w", n, err)
	}
	if err := msgpack.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return nil
}
