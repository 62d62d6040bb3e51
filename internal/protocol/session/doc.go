// Package session owns client<->peer connection policy.
//
// Ownership boundary:
// - dial with retry/backoff and optional TLS
// - identification handshake
// - message-atomic outbound event writer (length-prefixed or raw)
// - tracking of sync callbacks awaiting a correlation id
//
// Inbound framing lives in protocol/frame; payload shapes live in protocol.
package session
