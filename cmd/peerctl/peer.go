package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/photon/internal/config"
	"github.com/danmuck/photon/internal/logging"
	"github.com/danmuck/photon/internal/protocol"
	"github.com/danmuck/photon/internal/protocol/frame"
	"github.com/danmuck/photon/internal/protocol/session"
)

// peer replays one scenario to the first client that connects.
type peer struct {
	sc      config.Scenario
	framing session.Framing
	tlsCfg  *tls.Config
	log     zerolog.Logger

	outMu sync.Mutex
	out   io.Writer
}

func newPeer(sc config.Scenario, out io.Writer) (*peer, error) {
	framing, err := session.ParseFraming(sc.Framing)
	if err != nil {
		return nil, err
	}
	p := &peer{sc: sc, framing: framing, out: out, log: logging.Component("peerctl")}
	if sc.TLSCert != "" {
		cfg := session.Config{TLS: session.TLSConfig{
			Enabled:  true,
			Mutual:   sc.TLSCA != "",
			CAFile:   sc.TLSCA,
			CertFile: sc.TLSCert,
			KeyFile:  sc.TLSKey,
		}}
		if err := cfg.ValidateServerTransport(); err != nil {
			return nil, err
		}
		if p.tlsCfg, err = cfg.ServerTLSConfig(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *peer) ListenAndReplay(ctx context.Context) error {
	ln, err := net.Listen("tcp", p.sc.Listen)
	if err != nil {
		return err
	}
	defer ln.Close()
	return p.Serve(ctx, ln)
}

// Serve accepts one connection from ln and replays the scenario on it.
func (p *peer) Serve(ctx context.Context, ln net.Listener) error {
	if p.tlsCfg != nil {
		ln = tls.NewListener(ln, p.tlsCfg)
	}
	p.log.Info().Str("addr", ln.Addr().String()).Str("scenario", p.sc.Name).Msg("waiting for client")

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	defer conn.Close()
	closeOnCancel := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer closeOnCancel()

	r := bufio.NewReader(conn)
	kind, err := session.ReadHandshake(r)
	if err != nil {
		return fmt.Errorf("read handshake: %w", err)
	}
	p.log.Info().Str("kind", kind).Str("remote", conn.RemoteAddr().String()).Msg("client connected")

	events := make(chan protocol.CallbackEvent, 64)
	readDone := make(chan error, 1)
	go func() { readDone <- p.readEvents(r, events) }()

	for i, msg := range p.sc.Messages {
		if err := p.awaitEvents(ctx, events, msg.AwaitEvents); err != nil {
			return err
		}
		if d := msg.DelayDuration(); d > 0 {
			if err := sleep(ctx, d); err != nil {
				return err
			}
		}
		if err := frame.WriteMessage(conn, []byte(msg.Body), frame.DefaultLimits()); err != nil {
			return fmt.Errorf("send message %d: %w", i, err)
		}
		p.log.Debug().Int("message", i).Int("bytes", len(msg.Body)).Msg("sent")
	}

	if linger := p.sc.LingerDuration(); linger > 0 {
		if err := sleep(ctx, linger); err != nil {
			return err
		}
	}
	_ = conn.Close()
	if err := <-readDone; err != nil && !errors.Is(err, net.ErrClosed) && !frame.IsEndOfStream(err) {
		return err
	}
	return nil
}

func (p *peer) readEvents(r *bufio.Reader, events chan<- protocol.CallbackEvent) error {
	defer close(events)
	for {
		ev, err := session.ReadEvent(r, p.framing, frame.DefaultLimits())
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}
		p.print(ev)
		select {
		case events <- ev:
		default:
			p.log.Warn().Uint64("log_id", ev.LogID).Msg("event backlog full, not counted")
		}
	}
}

func (p *peer) print(ev protocol.CallbackEvent) {
	line, _ := json.Marshal(ev)
	p.outMu.Lock()
	defer p.outMu.Unlock()
	fmt.Fprintf(p.out, "%s\n", line)
}

func (p *peer) awaitEvents(ctx context.Context, events <-chan protocol.CallbackEvent, n int) error {
	for range n {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-events:
			if !ok {
				return errors.New("client closed before sending awaited events")
			}
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
