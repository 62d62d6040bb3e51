package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// HandshakeStyle selects how the identification message is spelled.
type HandshakeStyle string

const (
	// HandshakeLegacy writes the unquoted-key form existing peers expect.
	HandshakeLegacy HandshakeStyle = "legacy"
	HandshakeJSON   HandshakeStyle = "json"
)

// DefaultHandshakeKind identifies the client as a scene renderer.
const DefaultHandshakeKind = "webrender"

func ParseHandshakeStyle(s string) (HandshakeStyle, error) {
	switch HandshakeStyle(strings.ToLower(strings.TrimSpace(s))) {
	case "", HandshakeLegacy:
		return HandshakeLegacy, nil
	case HandshakeJSON:
		return HandshakeJSON, nil
	default:
		return "", fmt.Errorf("protocol: unknown handshake style %q", s)
	}
}

// Handshake returns the identification bytes sent once after connecting.
func Handshake(style HandshakeStyle, kind string) []byte {
	if kind == "" {
		kind = DefaultHandshakeKind
	}
	if style == HandshakeJSON {
		b, _ := json.Marshal(struct {
			Kind string `json:"kind"`
		}{Kind: kind})
		return b
	}
	quoted, _ := json.Marshal(kind)
	return []byte("{kind : " + string(quoted) + "}")
}

// ParseHandshake accepts both spellings and returns the announced kind.
func ParseHandshake(data []byte) (string, error) {
	var w struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &w); err == nil && w.Kind != "" {
		return w.Kind, nil
	}
	s := strings.TrimSpace(string(data))
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return "", fmt.Errorf("%w: handshake %q", ErrMalformedMessage, s)
	}
	key, value, ok := strings.Cut(strings.TrimSpace(s[1:len(s)-1]), ":")
	if !ok || strings.TrimSpace(key) != "kind" {
		return "", fmt.Errorf("%w: handshake %q", ErrMalformedMessage, s)
	}
	var kind string
	if err := json.Unmarshal([]byte(strings.TrimSpace(value)), &kind); err != nil || kind == "" {
		return "", fmt.Errorf("%w: handshake kind %q", ErrMalformedMessage, value)
	}
	return kind, nil
}
