package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/danmuck/photon/internal/protocol"
	"github.com/danmuck/photon/internal/protocol/frame"
)

var ErrObjectTooLarge = errors.New("session: unframed object too large")

// maxUnframedBytes bounds handshake and raw-mode event reads.
const maxUnframedBytes = 64 * 1024

// WriteHandshake sends the identification message once, unframed.
func WriteHandshake(ctx context.Context, conn net.Conn, cfg Config) error {
	deadline := time.Now().Add(cfg.HandshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)
	defer conn.SetWriteDeadline(time.Time{})
	_, err := conn.Write(protocol.Handshake(cfg.HandshakeStyle, cfg.HandshakeKind))
	return err
}

// ReadHandshake reads the client's identification message and returns the
// announced kind. Used by peers.
func ReadHandshake(r *bufio.Reader) (string, error) {
	obj, err := readObject(r)
	if err != nil {
		return "", err
	}
	return protocol.ParseHandshake(obj)
}

// ReadEvent reads one outbound client event as framed by mode. Used by peers
// and tests.
func ReadEvent(r *bufio.Reader, mode Framing, limits frame.Limits) (protocol.CallbackEvent, error) {
	var (
		payload []byte
		err     error
	)
	if mode == FramingRaw {
		payload, err = readObject(r)
	} else {
		payload, err = frame.ReadMessage(r, limits)
	}
	if err != nil {
		return protocol.CallbackEvent{}, err
	}
	return protocol.DecodeCallbackEvent(payload)
}

// readObject reads one brace-delimited object without nested braces, which
// covers the handshake and callback events.
func readObject(r *bufio.Reader) ([]byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == '{' {
			break
		}
		if b != ' ' && b != '\n' && b != '\r' && b != '\t' {
			return nil, fmt.Errorf("%w: unexpected byte %q before object", protocol.ErrMalformedMessage, b)
		}
	}
	out := []byte{'{'}
	for {
		b, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		out = append(out, b)
		if b == '}' {
			return out, nil
		}
		if len(out) > maxUnframedBytes {
			return nil, ErrObjectTooLarge
		}
	}
}
