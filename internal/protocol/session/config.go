package session

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/danmuck/photon/internal/protocol"
	"github.com/danmuck/photon/internal/protocol/frame"
)

// Framing selects how outbound events are delimited.
type Framing string

const (
	// FramingLengthPrefixed mirrors inbound framing: u32 BE length + JSON.
	FramingLengthPrefixed Framing = "length-prefixed"
	// FramingRaw writes bare JSON objects for peers that predate framing.
	FramingRaw Framing = "raw"
)

func ParseFraming(s string) (Framing, error) {
	switch Framing(strings.ToLower(strings.TrimSpace(s))) {
	case "", FramingLengthPrefixed:
		return FramingLengthPrefixed, nil
	case FramingRaw:
		return FramingRaw, nil
	default:
		return "", fmt.Errorf("session: unknown framing %q", s)
	}
}

type SecurityMode string

const (
	SecurityModeDevelopment SecurityMode = "development"
	SecurityModeProduction  SecurityMode = "production"
)

// TLSConfig describes transport security for the peer connection.
type TLSConfig struct {
	Enabled            bool
	Mutual             bool
	CAFile             string
	CertFile           string
	KeyFile            string
	ServerName         string
	InsecureSkipVerify bool
}

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Delay returns the wait before retry attempt N (1-based). With jitter the
// delay is scaled by a factor in [0.5, 1.5).
func (b BackoffConfig) Delay(attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 || b.InitialDelay <= 0 {
		return max(b.InitialDelay, 0)
	}
	mult := math.Max(b.Multiplier, 1.0)
	delay := float64(b.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if b.MaxDelay > 0 {
		delay = math.Min(delay, float64(b.MaxDelay))
	}
	if b.Jitter {
		f := 0.5
		if rng != nil {
			f += rng.Float64()
		}
		delay *= f
	}
	return time.Duration(delay)
}

// Config defines connection and wire policy for one client session.
type Config struct {
	ConnectTimeout     time.Duration
	HandshakeTimeout   time.Duration
	WriteTimeout       time.Duration
	AckTimeout         time.Duration
	MaxConnectAttempts int
	Backoff            BackoffConfig

	SecurityMode SecurityMode
	TLS          TLSConfig

	Framing        Framing
	HandshakeStyle protocol.HandshakeStyle
	HandshakeKind  string
	Limits         frame.Limits
}

// DefaultConfig writes the legacy unquoted handshake but frames outbound
// events with a length prefix. A peer that predates framing also needs
// Framing set to FramingRaw; changing only the handshake style is not enough.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:     5 * time.Second,
		HandshakeTimeout:   5 * time.Second,
		WriteTimeout:       5 * time.Second,
		AckTimeout:         10 * time.Second,
		MaxConnectAttempts: 5,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
		SecurityMode:   SecurityModeDevelopment,
		Framing:        FramingLengthPrefixed,
		HandshakeStyle: protocol.HandshakeLegacy,
		HandshakeKind:  protocol.DefaultHandshakeKind,
		Limits:         frame.DefaultLimits(),
	}
}

// WithDefaults fills zero values from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = def.AckTimeout
	}
	if c.Backoff == (BackoffConfig{}) {
		c.Backoff = def.Backoff
	}
	if c.SecurityMode == "" {
		c.SecurityMode = def.SecurityMode
	}
	if c.Framing == "" {
		c.Framing = def.Framing
	}
	if c.HandshakeStyle == "" {
		c.HandshakeStyle = def.HandshakeStyle
	}
	if c.HandshakeKind == "" {
		c.HandshakeKind = def.HandshakeKind
	}
	if c.Limits.MaxMessageBytes == 0 {
		c.Limits = def.Limits
	}
	return c
}
