// Package render is the compositing collaborator: it accepts scene
// transactions, produces frames and answers hit tests.
//
// Ownership boundary:
// - Backend contract used by the synchronization shell and dispatcher
// - Software backend on gg's CPU rasterizer
// - scroll offset state keyed by scroll node id, clamped to content bounds
package render

import (
	"errors"

	"github.com/danmuck/photon/internal/protocol"
	"github.com/danmuck/photon/internal/scene"
)

var ErrClosed = errors.New("render: backend closed")

// Transaction is one atomic update. A nil Scene keeps the current display
// list and only applies Scrolls.
type Transaction struct {
	Epoch         uint64
	Scene         *scene.Scene
	Scrolls       []scene.ScrollCommand
	LogIDs        []uint64
	GenerateFrame bool
}

// SkipsSceneBuild reports whether the transaction reuses the previous scene.
func (t Transaction) SkipsSceneBuild() bool {
	return t.Scene == nil
}

// HitItem is one tagged primitive under a point. Point is relative to the
// primitive's rect origin.
type HitItem struct {
	Node  protocol.NodeID
	Point protocol.Point
}

// Backend is safe for concurrent Submit and HitTest calls.
type Backend interface {
	Submit(txn Transaction) error
	// HitTest returns tagged items under pt, front to back.
	HitTest(pt protocol.Point) []HitItem
}
