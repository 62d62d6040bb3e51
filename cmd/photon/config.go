package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/photon/internal/client"
	"github.com/danmuck/photon/internal/config"
	"github.com/danmuck/photon/internal/protocol"
	"github.com/danmuck/photon/internal/protocol/session"
)

type runtimeConfig struct {
	Client       client.Config
	InspectAddr  string
	InspectToken string
	FrameOutput  string
}

func defaultRuntimeConfig() runtimeConfig {
	return runtimeConfig{Client: client.DefaultConfig()}
}

// loadRuntimeConfig applies keys present in path onto the defaults.
func loadRuntimeConfig(path string) (runtimeConfig, error) {
	cfg := defaultRuntimeConfig()

	var raw config.PhotonFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return runtimeConfig{}, fmt.Errorf("load photon config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return runtimeConfig{}, fmt.Errorf("load photon config: unknown keys %v", undecoded)
	}
	if err := config.ValidatePhotonFile(raw); err != nil {
		return runtimeConfig{}, err
	}

	c := &cfg.Client
	if meta.IsDefined("addr") {
		c.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("viewport_width") {
		c.Viewport.Width = raw.ViewportWidth
	}
	if meta.IsDefined("viewport_height") {
		c.Viewport.Height = raw.ViewportHeight
	}
	if meta.IsDefined("font_size") {
		c.FontSize = raw.FontSize
	}
	if meta.IsDefined("font_file") {
		c.FontFile = strings.TrimSpace(raw.FontFile)
	}
	if meta.IsDefined("outbound_framing") {
		framing, _ := session.ParseFraming(raw.OutboundFraming)
		c.Session.Framing = framing
	}
	if meta.IsDefined("handshake_style") {
		style, _ := protocol.ParseHandshakeStyle(raw.HandshakeStyle)
		c.Session.HandshakeStyle = style
	}
	if meta.IsDefined("connect_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ConnectTimeout))
		if err != nil {
			return runtimeConfig{}, fmt.Errorf("parse connect_timeout: %w", err)
		}
		c.Session.ConnectTimeout = d
	}
	if meta.IsDefined("max_connect_attempts") {
		c.Session.MaxConnectAttempts = raw.MaxConnectAttempts
	}
	if meta.IsDefined("max_message_bytes") {
		c.Session.Limits.MaxMessageBytes = raw.MaxMessageBytes
	}
	if meta.IsDefined("security_mode") {
		c.Session.SecurityMode = session.NormalizeSecurityMode(session.SecurityMode(raw.SecurityMode))
	}
	if meta.IsDefined("tls_enabled") {
		c.Session.TLS.Enabled = raw.TLSEnabled
	}
	if meta.IsDefined("tls_mutual") {
		c.Session.TLS.Mutual = raw.TLSMutual
	}
	if meta.IsDefined("tls_ca_file") {
		c.Session.TLS.CAFile = strings.TrimSpace(raw.TLSCAFile)
	}
	if meta.IsDefined("tls_cert_file") {
		c.Session.TLS.CertFile = strings.TrimSpace(raw.TLSCertFile)
	}
	if meta.IsDefined("tls_key_file") {
		c.Session.TLS.KeyFile = strings.TrimSpace(raw.TLSKeyFile)
	}
	if meta.IsDefined("tls_server_name") {
		c.Session.TLS.ServerName = strings.TrimSpace(raw.TLSServerName)
	}
	if meta.IsDefined("tls_insecure_skip_verify") {
		c.Session.TLS.InsecureSkipVerify = raw.TLSInsecureSkipVerify
	}
	if meta.IsDefined("inspect_addr") {
		cfg.InspectAddr = strings.TrimSpace(raw.InspectAddr)
	}
	if meta.IsDefined("inspect_token") {
		cfg.InspectToken = strings.TrimSpace(raw.InspectToken)
	}
	if meta.IsDefined("frame_output") {
		cfg.FrameOutput = strings.TrimSpace(raw.FrameOutput)
	}

	if err := cfg.Client.Session.WithDefaults().ValidateClientTransport(); err != nil {
		return runtimeConfig{}, err
	}
	return cfg, nil
}
