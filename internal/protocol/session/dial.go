package session

import (
	"context"
	"crypto/tls"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/photon/internal/logging"
)

// Dialer connects to the peer, retrying with backoff until
// MaxConnectAttempts is exhausted (<= 0 retries forever).
type Dialer struct {
	cfg Config
	rng *rand.Rand
	log zerolog.Logger
}

func NewDialer(cfg Config) *Dialer {
	return &Dialer{
		cfg: cfg.WithDefaults(),
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		log: logging.Component("session"),
	}
}

// Dial returns a connected, TLS-negotiated (when enabled) connection with
// TCP_NODELAY set. The handshake is not written.
func (d *Dialer) Dial(ctx context.Context, addr string) (net.Conn, error) {
	if err := d.cfg.ValidateClientTransport(); err != nil {
		return nil, err
	}
	attempt := 0
	for {
		attempt++
		conn, err := d.dialOnce(ctx, addr)
		if err == nil {
			return conn, nil
		}
		d.log.Warn().Err(err).Str("addr", addr).Int("attempt", attempt).Msg("dial failed")
		if !d.shouldRetry(attempt) {
			return nil, fmt.Errorf("session: dial %s after %d attempts: %w", addr, attempt, err)
		}
		if err := d.sleepBackoff(ctx, attempt); err != nil {
			return nil, err
		}
	}
}

func (d *Dialer) dialOnce(ctx context.Context, addr string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.cfg.ConnectTimeout}
	rawConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if tcp, ok := rawConn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	if !d.cfg.TLS.Enabled {
		return rawConn, nil
	}

	tlsCfg, err := d.cfg.ClientTLSConfig(addr)
	if err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	conn := tls.Client(rawConn, tlsCfg)
	handshakeCtx, cancel := context.WithTimeout(ctx, d.cfg.HandshakeTimeout)
	defer cancel()
	if err := conn.HandshakeContext(handshakeCtx); err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	return conn, nil
}

func (d *Dialer) shouldRetry(attempt int) bool {
	if d.cfg.MaxConnectAttempts <= 0 {
		return true
	}
	return attempt < d.cfg.MaxConnectAttempts
}

func (d *Dialer) sleepBackoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(d.cfg.Backoff.Delay(attempt, d.rng))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
