package session

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"math/rand"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/photon/internal/protocol"
	"github.com/danmuck/photon/internal/protocol/frame"
	"github.com/danmuck/photon/internal/testutil/testlog"
	"github.com/danmuck/photon/internal/testutil/tlstest"
)

func TestBackoffDelayDeterministic(t *testing.T) {
	testlog.Start(t)

	b := BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		Multiplier:   2,
		MaxDelay:     time.Second,
	}
	cases := map[int]time.Duration{
		1: 100 * time.Millisecond,
		2: 200 * time.Millisecond,
		3: 400 * time.Millisecond,
		4: 800 * time.Millisecond,
		5: time.Second,
		9: time.Second,
	}
	for attempt, want := range cases {
		if got := b.Delay(attempt, nil); got != want {
			t.Fatalf("attempt %d: expected %s, got %s", attempt, want, got)
		}
	}
}

func TestBackoffDelayJitterBounds(t *testing.T) {
	testlog.Start(t)

	b := BackoffConfig{InitialDelay: 100 * time.Millisecond, Multiplier: 2, Jitter: true}
	rng := rand.New(rand.NewSource(7))
	for range 50 {
		got := b.Delay(2, rng)
		if got < 100*time.Millisecond || got >= 300*time.Millisecond {
			t.Fatalf("jittered delay out of range: %s", got)
		}
	}
}

func TestConfigWithDefaults(t *testing.T) {
	testlog.Start(t)

	cfg := Config{Framing: FramingRaw}.WithDefaults()
	if cfg.Framing != FramingRaw {
		t.Fatalf("explicit framing overwritten: %q", cfg.Framing)
	}
	if cfg.HandshakeStyle != protocol.HandshakeLegacy || cfg.HandshakeKind != protocol.DefaultHandshakeKind {
		t.Fatalf("unexpected handshake defaults: %q %q", cfg.HandshakeStyle, cfg.HandshakeKind)
	}
	if cfg.Limits.MaxMessageBytes == 0 || cfg.WriteTimeout <= 0 || cfg.AckTimeout <= 0 {
		t.Fatalf("zero defaults left in config: %+v", cfg)
	}
}

func TestLegacyPeerNeedsRawFraming(t *testing.T) {
	testlog.Start(t)

	def := DefaultConfig()
	if def.HandshakeStyle != protocol.HandshakeLegacy || def.Framing != FramingLengthPrefixed {
		t.Fatalf("unexpected defaults: handshake=%q framing=%q", def.HandshakeStyle, def.Framing)
	}

	legacy := def
	legacy.Framing = FramingRaw
	cases := []struct {
		cfg   Config
		first byte
	}{
		{def, 0x00},
		{legacy, '{'},
	}
	for _, tc := range cases {
		client, peer := net.Pipe()
		w := NewWriter(client, tc.cfg)
		errCh := make(chan error, 1)
		go func() { errCh <- w.WriteEvent(context.Background(), protocol.CallbackEvent{Node: 1, Key: protocol.KeyOnClick}) }()

		r := bufio.NewReader(peer)
		head, err := r.Peek(1)
		if err != nil {
			t.Fatalf("peek: %v", err)
		}
		if head[0] != tc.first {
			t.Fatalf("framing %q: expected first byte %q, got %q", tc.cfg.Framing, tc.first, head[0])
		}
		if _, err := ReadEvent(r, tc.cfg.Framing, frame.DefaultLimits()); err != nil {
			t.Fatalf("framing %q: read event: %v", tc.cfg.Framing, err)
		}
		if err := <-errCh; err != nil {
			t.Fatalf("framing %q: write event: %v", tc.cfg.Framing, err)
		}
		_ = client.Close()
		_ = peer.Close()
	}
}

func TestParseFraming(t *testing.T) {
	testlog.Start(t)

	for in, want := range map[string]Framing{"": FramingLengthPrefixed, "RAW": FramingRaw, " length-prefixed ": FramingLengthPrefixed} {
		got, err := ParseFraming(in)
		if err != nil || got != want {
			t.Fatalf("ParseFraming(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFraming("chunked"); err == nil {
		t.Fatalf("expected error for unknown framing")
	}
}

func TestCallbackOutboxLifecycle(t *testing.T) {
	testlog.Start(t)

	box := NewCallbackOutbox(time.Second)
	base := time.Unix(1000, 0)
	box.Track(0, 1, protocol.KeyOnClick, base)
	box.Track(7, 2, protocol.KeyOnWheel, base)
	box.Track(3, 4, protocol.KeyOnClick, base.Add(2*time.Second))
	if box.Len() != 2 {
		t.Fatalf("expected 2 pending callbacks, got %d", box.Len())
	}

	list := box.List()
	if list[0].LogID != 7 || list[1].LogID != 3 {
		t.Fatalf("unexpected list order: %+v", list)
	}

	acked := box.Ack([]uint64{3, 99})
	if len(acked) != 1 || acked[0].Node != 4 {
		t.Fatalf("unexpected ack result: %+v", acked)
	}
	if _, ok := box.Get(3); ok {
		t.Fatalf("acked callback still pending")
	}

	expired := box.Expire(base.Add(5 * time.Second))
	if len(expired) != 1 || expired[0].LogID != 7 {
		t.Fatalf("unexpected expired set: %+v", expired)
	}
	if box.Len() != 0 {
		t.Fatalf("expected empty outbox, got %d", box.Len())
	}
}

func TestWriterLengthPrefixed(t *testing.T) {
	testlog.Start(t)

	client, peer := net.Pipe()
	defer client.Close()
	defer peer.Close()

	w := NewWriter(client, Config{})
	ev := protocol.CallbackEvent{LogID: 5, TS: 10, Node: 2, Key: protocol.KeyOnWheel, Arguments: [2]float64{0, -38}}
	errCh := make(chan error, 1)
	go func() { errCh <- w.WriteEvent(context.Background(), ev) }()

	got, err := ReadEvent(bufio.NewReader(peer), FramingLengthPrefixed, frame.DefaultLimits())
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("write event: %v", err)
	}
	if got != ev {
		t.Fatalf("expected %+v, got %+v", ev, got)
	}
}

func TestWriterRawConcurrentWritesDoNotInterleave(t *testing.T) {
	testlog.Start(t)

	client, peer := net.Pipe()
	defer client.Close()
	defer peer.Close()

	w := NewWriter(client, Config{Framing: FramingRaw})
	const n = 8
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ev := protocol.CallbackEvent{LogID: uint64(i), Node: protocol.NodeID(i), Key: protocol.KeyOnClick}
			if err := w.WriteEvent(context.Background(), ev); err != nil {
				t.Errorf("write %d: %v", i, err)
			}
		}()
	}

	r := bufio.NewReader(peer)
	seen := make(map[uint64]bool)
	for range n {
		ev, err := ReadEvent(r, FramingRaw, frame.DefaultLimits())
		if err != nil {
			t.Fatalf("read raw event: %v", err)
		}
		if uint64(ev.Node) != ev.LogID {
			t.Fatalf("interleaved event: %+v", ev)
		}
		seen[ev.LogID] = true
	}
	wg.Wait()
	if len(seen) != n {
		t.Fatalf("expected %d distinct events, got %d", n, len(seen))
	}
}

func TestWriterClosedRejectsWrites(t *testing.T) {
	testlog.Start(t)

	client, peer := net.Pipe()
	defer client.Close()
	defer peer.Close()

	w := NewWriter(client, Config{})
	w.Close()
	err := w.WriteEvent(context.Background(), protocol.CallbackEvent{Key: protocol.KeyOnClick})
	if !errors.Is(err, ErrWriterClosed) {
		t.Fatalf("expected ErrWriterClosed, got %v", err)
	}
}

func TestHandshakeRoundTrip(t *testing.T) {
	testlog.Start(t)

	for _, style := range []protocol.HandshakeStyle{protocol.HandshakeLegacy, protocol.HandshakeJSON} {
		client, peer := net.Pipe()
		cfg := Config{HandshakeStyle: style}.WithDefaults()
		errCh := make(chan error, 1)
		go func() { errCh <- WriteHandshake(context.Background(), client, cfg) }()

		kind, err := ReadHandshake(bufio.NewReader(peer))
		if err != nil {
			t.Fatalf("%s: read handshake: %v", style, err)
		}
		if err := <-errCh; err != nil {
			t.Fatalf("%s: write handshake: %v", style, err)
		}
		if kind != protocol.DefaultHandshakeKind {
			t.Fatalf("%s: expected kind %q, got %q", style, protocol.DefaultHandshakeKind, kind)
		}
		client.Close()
		peer.Close()
	}
}

func TestReadHandshakeRejectsGarbage(t *testing.T) {
	testlog.Start(t)

	_, err := ReadHandshake(bufio.NewReader(strings.NewReader("hello")))
	if !errors.Is(err, protocol.ErrMalformedMessage) {
		t.Fatalf("expected ErrMalformedMessage, got %v", err)
	}
	big := "{" + strings.Repeat("a", maxUnframedBytes+1)
	if _, err := ReadHandshake(bufio.NewReader(strings.NewReader(big))); !errors.Is(err, ErrObjectTooLarge) {
		t.Fatalf("expected ErrObjectTooLarge, got %v", err)
	}
}

func TestValidateClientTransport(t *testing.T) {
	testlog.Start(t)

	cases := []struct {
		name string
		cfg  Config
		want error
	}{
		{name: "development plain", cfg: Config{}},
		{name: "production plain", cfg: Config{SecurityMode: SecurityModeProduction}, want: ErrTLSRequired},
		{name: "bad mode", cfg: Config{SecurityMode: "staging"}, want: ErrInvalidSecurityMode},
		{name: "tls without ca", cfg: Config{TLS: TLSConfig{Enabled: true}}, want: ErrTLSCAFileRequired},
		{name: "production skip verify", cfg: Config{SecurityMode: SecurityModeProduction, TLS: TLSConfig{Enabled: true, InsecureSkipVerify: true}}, want: ErrTLSInsecureSkipNotAllow},
		{name: "mutual without cert", cfg: Config{TLS: TLSConfig{Enabled: true, Mutual: true, CAFile: "ca.crt"}}, want: ErrTLSCertFileRequired},
	}
	for _, tc := range cases {
		err := tc.cfg.WithDefaults().ValidateClientTransport()
		if tc.want == nil && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if tc.want != nil && !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestDialerPlainConnectsAndHandshakes(t *testing.T) {
	testlog.Start(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	kindCh := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		kind, _ := ReadHandshake(bufio.NewReader(conn))
		kindCh <- kind
	}()

	cfg := Config{MaxConnectAttempts: 1}
	conn, err := NewDialer(cfg).Dial(context.Background(), ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := WriteHandshake(context.Background(), conn, cfg.WithDefaults()); err != nil {
		t.Fatalf("write handshake: %v", err)
	}
	select {
	case kind := <-kindCh:
		if kind != protocol.DefaultHandshakeKind {
			t.Fatalf("unexpected kind %q", kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for handshake")
	}
}

func TestDialerGivesUpAfterMaxAttempts(t *testing.T) {
	testlog.Start(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	cfg := Config{
		MaxConnectAttempts: 2,
		Backoff:            BackoffConfig{InitialDelay: time.Millisecond, Multiplier: 1},
	}
	if _, err := NewDialer(cfg).Dial(context.Background(), addr); err == nil {
		t.Fatalf("expected dial failure against closed port")
	}
}

func TestDialerMutualTLS(t *testing.T) {
	testlog.Start(t)

	certs := tlstest.NewBundle(t)

	peerCfg := Config{
		SecurityMode: SecurityModeProduction,
		TLS:          TLSConfig{Enabled: true, Mutual: true, CAFile: certs.CAFile, CertFile: certs.PeerCert, KeyFile: certs.PeerKey},
	}
	if err := peerCfg.ValidateServerTransport(); err != nil {
		t.Fatalf("validate server transport: %v", err)
	}
	serverTLS, err := peerCfg.ServerTLSConfig()
	if err != nil {
		t.Fatalf("server tls config: %v", err)
	}
	ln, err := tls.Listen("tcp", "127.0.0.1:0", serverTLS)
	if err != nil {
		t.Fatalf("listen tls: %v", err)
	}
	defer ln.Close()

	kindCh := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		kind, _ := ReadHandshake(bufio.NewReader(conn))
		kindCh <- kind
	}()

	cfg := Config{
		SecurityMode:       SecurityModeProduction,
		MaxConnectAttempts: 1,
		HandshakeStyle:     protocol.HandshakeJSON,
		TLS:                TLSConfig{Enabled: true, Mutual: true, CAFile: certs.CAFile, CertFile: certs.ClientCert, KeyFile: certs.ClientKey},
	}
	conn, err := NewDialer(cfg).Dial(context.Background(), ln.Addr().String())
	if err != nil {
		t.Fatalf("dial tls: %v", err)
	}
	defer conn.Close()
	if err := WriteHandshake(context.Background(), conn, cfg.WithDefaults()); err != nil {
		t.Fatalf("write handshake: %v", err)
	}
	select {
	case kind := <-kindCh:
		if kind != protocol.DefaultHandshakeKind {
			t.Fatalf("unexpected kind %q", kind)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for tls handshake")
	}
}
