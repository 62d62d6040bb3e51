package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
)

// PrefixLen is the size of the big-endian u32 length prefix.
const PrefixLen = 4

var (
	// ErrEndOfStream reports that the peer stopped sending. It wraps io.EOF
	// and is not a failure: the reader loop should terminate quietly.
	ErrEndOfStream     = fmt.Errorf("frame: end of stream: %w", io.EOF)
	ErrMessageTooLarge = errors.New("frame: message too large")
)

// Limits constrains message decode/encode memory use.
type Limits struct {
	MaxMessageBytes uint32
}

func DefaultLimits() Limits {
	return Limits{
		MaxMessageBytes: 64 * 1024 * 1024,
	}
}

// ReadMessage reads one length-prefixed message. Any read failure, including
// a short read inside the payload, is reported as ErrEndOfStream with the
// underlying cause attached.
func ReadMessage(r io.Reader, limits Limits) ([]byte, error) {
	var prefix [PrefixLen]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, endOfStream(err)
	}

	size := binary.BigEndian.Uint32(prefix[:])
	if limits.MaxMessageBytes > 0 && size > limits.MaxMessageBytes {
		return nil, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, size, limits.MaxMessageBytes)
	}

	buf := make([]byte, size)
	if size > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, endOfStream(err)
		}
	}
	return buf, nil
}

// Messages yields complete messages until the stream ends. Each range over
// the sequence resumes from the reader's current position. End of stream
// stops iteration without yielding an error.
func Messages(r io.Reader, limits Limits) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			msg, err := ReadMessage(r, limits)
			if err != nil {
				if !IsEndOfStream(err) {
					yield(nil, err)
				}
				return
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}

// WriteMessage writes prefix and payload with a single Write call.
func WriteMessage(w io.Writer, payload []byte, limits Limits) error {
	buf, err := Encode(payload, limits)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// Encode returns payload with its length prefix.
func Encode(payload []byte, limits Limits) ([]byte, error) {
	if uint64(len(payload)) > uint64(^uint32(0)) {
		return nil, fmt.Errorf("%w: %d", ErrMessageTooLarge, len(payload))
	}
	if limits.MaxMessageBytes > 0 && uint32(len(payload)) > limits.MaxMessageBytes {
		return nil, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(payload), limits.MaxMessageBytes)
	}
	buf := make([]byte, PrefixLen+len(payload))
	binary.BigEndian.PutUint32(buf[:PrefixLen], uint32(len(payload)))
	copy(buf[PrefixLen:], payload)
	return buf, nil
}

func IsEndOfStream(err error) bool {
	return errors.Is(err, ErrEndOfStream)
}

func endOfStream(err error) error {
	if errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrEndOfStream
	}
	return fmt.Errorf("%w: %w", ErrEndOfStream, err)
}
