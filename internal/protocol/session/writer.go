package session

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/danmuck/photon/internal/protocol"
	"github.com/danmuck/photon/internal/protocol/frame"
)

var ErrWriterClosed = errors.New("session: writer closed")

// Writer serializes outbound events on one connection. Each event is
// written with a single Write call under the writer's lock, so concurrent
// callers never interleave bytes.
type Writer struct {
	mu      sync.Mutex
	conn    net.Conn
	framing Framing
	limits  frame.Limits
	timeout time.Duration
	closed  bool
}

func NewWriter(conn net.Conn, cfg Config) *Writer {
	cfg = cfg.WithDefaults()
	return &Writer{
		conn:    conn,
		framing: cfg.Framing,
		limits:  cfg.Limits,
		timeout: cfg.WriteTimeout,
	}
}

// WriteEvent encodes and writes ev.
func (w *Writer) WriteEvent(ctx context.Context, ev protocol.CallbackEvent) error {
	payload, err := protocol.EncodeCallbackEvent(ev)
	if err != nil {
		return err
	}
	buf := payload
	if w.framing != FramingRaw {
		if buf, err = frame.Encode(payload, w.limits); err != nil {
			return err
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_ = w.conn.SetWriteDeadline(w.deadline(ctx))
	_, err = w.conn.Write(buf)
	return err
}

// Close stops further writes. The connection is owned by the caller.
func (w *Writer) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}

func (w *Writer) deadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(w.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	return deadline
}
