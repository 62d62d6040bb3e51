package client

import (
	"github.com/danmuck/photon/internal/protocol"
	"github.com/danmuck/photon/internal/protocol/session"
	"github.com/danmuck/photon/internal/textlayout"
)

// Config is the per-session client configuration.
type Config struct {
	// Addr is the peer's host:port.
	Addr     string
	Viewport protocol.Size
	// FontSize and FontFile pick the shaping face. An empty FontFile uses
	// the embedded Go Regular font.
	FontSize   float64
	FontFile   string
	Background protocol.Color
	Session    session.Config
}

func DefaultConfig() Config {
	return Config{
		Addr:     "127.0.0.1:9001",
		Viewport: protocol.Size{Width: 1024, Height: 768},
		FontSize: textlayout.DefaultFontSize,
		Session:  session.DefaultConfig(),
	}
}

// WithDefaults fills zero values from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		c.Viewport = def.Viewport
	}
	if c.FontSize <= 0 {
		c.FontSize = def.FontSize
	}
	c.Session = c.Session.WithDefaults()
	return c
}
