// Package client runs one photon session against a remote peer.
//
// Ownership boundary:
// - the reader goroutine owns message application and transaction submission
// - the document is guarded by one mutex shared with the input Controller
// - network writes happen outside that mutex through a serialized writer
//
// A session ends on end-of-stream (graceful), on a decode or desync error, or
// when the caller cancels. Ending a session never exits the process and the
// last rendered frame stays available.
package client
