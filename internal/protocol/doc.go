// Package protocol owns the mutation wire contract and parsing primitives.
//
// Ownership boundary:
// - inbound entry decoding (correlation batches and operations)
// - attribute value shapes (point, rect, color, callback policy)
// - outbound callback events and the session handshake
//
// Framing lives in protocol/frame; connection policy lives in protocol/session.
package protocol
