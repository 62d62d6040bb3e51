// Package config loads the TOML files shared by the photon tools: the client
// config file and peer scenarios.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/danmuck/photon/internal/protocol"
	"github.com/danmuck/photon/internal/protocol/session"
)

var ErrInvalidConfig = errors.New("config: invalid")

// PhotonFile is the on-disk client config. Durations are Go duration
// strings.
type PhotonFile struct {
	Addr               string  `toml:"addr"`
	ViewportWidth      float64 `toml:"viewport_width"`
	ViewportHeight     float64 `toml:"viewport_height"`
	FontSize           float64 `toml:"font_size"`
	FontFile           string  `toml:"font_file"`
	OutboundFraming    string  `toml:"outbound_framing"`
	HandshakeStyle     string  `toml:"handshake_style"`
	ConnectTimeout     string  `toml:"connect_timeout"`
	MaxConnectAttempts int     `toml:"max_connect_attempts"`
	MaxMessageBytes    uint32  `toml:"max_message_bytes"`
	InspectAddr        string  `toml:"inspect_addr"`
	InspectToken       string  `toml:"inspect_token"`
	FrameOutput        string  `toml:"frame_output"`
	SecurityMode       string  `toml:"security_mode"`

	TLSEnabled            bool   `toml:"tls_enabled"`
	TLSMutual             bool   `toml:"tls_mutual"`
	TLSCAFile             string `toml:"tls_ca_file"`
	TLSCertFile           string `toml:"tls_cert_file"`
	TLSKeyFile            string `toml:"tls_key_file"`
	TLSServerName         string `toml:"tls_server_name"`
	TLSInsecureSkipVerify bool   `toml:"tls_insecure_skip_verify"`
}

// Scenario is a scripted peer session replayed by peerctl.
type Scenario struct {
	Name     string            `toml:"name"`
	Listen   string            `toml:"listen"`
	Framing  string            `toml:"framing"`
	TLSCert  string            `toml:"tls_cert_file"`
	TLSKey   string            `toml:"tls_key_file"`
	TLSCA    string            `toml:"tls_ca_file"`
	Linger   string            `toml:"linger"`
	Messages []ScenarioMessage `toml:"message"`
}

// ScenarioMessage is one inbound message. Delay is waited before sending;
// AwaitEvents blocks until that many client events have arrived.
type ScenarioMessage struct {
	Body        string `toml:"body"`
	Delay       string `toml:"delay"`
	AwaitEvents int    `toml:"await_events"`
}

func LoadPhotonFile(path string) (PhotonFile, error) {
	var cfg PhotonFile
	if err := loadToml(path, &cfg); err != nil {
		return PhotonFile{}, err
	}
	if err := ValidatePhotonFile(cfg); err != nil {
		return PhotonFile{}, err
	}
	return cfg, nil
}

func LoadScenario(path string) (Scenario, error) {
	var sc Scenario
	if err := loadToml(path, &sc); err != nil {
		return Scenario{}, err
	}
	if sc.Name == "" {
		sc.Name = strings.TrimSuffix(filepath.Base(path), ".toml")
	}
	if sc.Listen == "" {
		sc.Listen = "127.0.0.1:9001"
	}
	if err := ValidateScenario(sc); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

// ParseScenario decodes scenario TOML from memory without defaults.
func ParseScenario(data []byte) (Scenario, error) {
	var sc Scenario
	if err := toml.Unmarshal(data, &sc); err != nil {
		return Scenario{}, fmt.Errorf("config parse failed: %w", err)
	}
	return sc, ValidateScenario(sc)
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidatePhotonFile(cfg PhotonFile) error {
	if cfg.ViewportWidth < 0 || cfg.ViewportHeight < 0 {
		return fmt.Errorf("%w: negative viewport %vx%v", ErrInvalidConfig, cfg.ViewportWidth, cfg.ViewportHeight)
	}
	if cfg.FontSize < 0 {
		return fmt.Errorf("%w: negative font_size", ErrInvalidConfig)
	}
	if _, err := session.ParseFraming(cfg.OutboundFraming); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := protocol.ParseHandshakeStyle(cfg.HandshakeStyle); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := parseDuration("connect_timeout", cfg.ConnectTimeout); err != nil {
		return err
	}
	if cfg.FontFile != "" {
		if _, err := os.Stat(cfg.FontFile); err != nil {
			return fmt.Errorf("%w: font_file: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

func ValidateScenario(sc Scenario) error {
	if _, err := session.ParseFraming(sc.Framing); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if (sc.TLSCert == "") != (sc.TLSKey == "") {
		return fmt.Errorf("%w: tls_cert_file and tls_key_file go together", ErrInvalidConfig)
	}
	if _, err := parseDuration("linger", sc.Linger); err != nil {
		return err
	}
	if len(sc.Messages) == 0 {
		return fmt.Errorf("%w: scenario has no messages", ErrInvalidConfig)
	}
	for i, msg := range sc.Messages {
		if _, err := protocol.Decode([]byte(msg.Body)); err != nil {
			return fmt.Errorf("%w: message[%d]: %w", ErrInvalidConfig, i, err)
		}
		if _, err := parseDuration(fmt.Sprintf("message[%d].delay", i), msg.Delay); err != nil {
			return err
		}
		if msg.AwaitEvents < 0 {
			return fmt.Errorf("%w: message[%d]: negative await_events", ErrInvalidConfig, i)
		}
	}
	return nil
}

// DelayDuration returns the parsed delay, zero when unset.
func (m ScenarioMessage) DelayDuration() time.Duration {
	d, _ := parseDuration("delay", m.Delay)
	return d
}

// LingerDuration returns how long peerctl keeps reading after the last
// message.
func (sc Scenario) LingerDuration() time.Duration {
	d, _ := parseDuration("linger", sc.Linger)
	return d
}

func parseDuration(field, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s: negative duration", ErrInvalidConfig, field)
	}
	return d, nil
}
