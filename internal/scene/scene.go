// Package scene converts a document into a flat, renderer-neutral display
// list.
//
// Ownership boundary:
// - depth-first visit of the document with a spatial/clip scope stack
// - primitives (borders, hit rects, glyph runs) tagged with node ids
// - scroll frame definitions keyed by scroll node id
//
// Rasterization and hit testing belong to internal/render.
package scene

import (
	"errors"

	"github.com/danmuck/photon/internal/protocol"
	"github.com/danmuck/photon/internal/textlayout"
)

var (
	ErrScopeImbalance = errors.New("scene: scope stack imbalance")
	ErrCycle          = errors.New("scene: document contains a cycle")
)

const (
	BorderWidth  = 1.0
	BorderRadius = 3.0
)

type ScopeKind int

const (
	// ScopeViewport is the root spatial frame covering the viewport.
	ScopeViewport ScopeKind = iota
	// ScopeGroup groups a container's children. It shares its parent's
	// spatial frame and does not clip.
	ScopeGroup
	// ScopeScroll clips to its frame's viewport and shifts content by the
	// frame's scroll offset.
	ScopeScroll
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeViewport:
		return "viewport"
	case ScopeGroup:
		return "group"
	case ScopeScroll:
		return "scroll"
	default:
		return "unknown"
	}
}

// Scope is one entry of the spatial/clip tree. Parent is -1 for the root.
type Scope struct {
	Index  int             `json:"index"`
	Parent int             `json:"parent"`
	Kind   ScopeKind       `json:"kind"`
	Node   protocol.NodeID `json:"node"`
	Clip   protocol.Rect   `json:"clip"`
}

type PrimitiveKind int

const (
	PrimitiveBorder PrimitiveKind = iota
	PrimitiveHitRect
	PrimitiveGlyphs
)

// Primitive is a drawable or hit-testable item placed in Scope. Tagged
// primitives report Node on hit test.
type Primitive struct {
	Kind   PrimitiveKind   `json:"kind"`
	Node   protocol.NodeID `json:"node"`
	Scope  int             `json:"scope"`
	Tagged bool            `json:"tagged"`
	Rect   protocol.Rect   `json:"rect"`

	Color       protocol.Color `json:"color"`
	BorderColor protocol.Color `json:"border_color"`
	BorderWidth float64        `json:"border_width,omitempty"`
	Radius      float64        `json:"radius,omitempty"`

	Origin protocol.Point     `json:"origin"`
	Layout *textlayout.Layout `json:"-"`
}

// ScrollFrame defines a scrollable viewport over a content rect.
type ScrollFrame struct {
	Node        protocol.NodeID `json:"node"`
	Viewport    protocol.Rect   `json:"viewport"`
	Content     protocol.Rect   `json:"content"`
	Scope       int             `json:"scope"`
	ParentScope int             `json:"parent_scope"`
}

// ScrollCommand moves a scroll frame without rebuilding the scene.
type ScrollCommand struct {
	Node   protocol.NodeID `json:"node"`
	Offset protocol.Point  `json:"offset"`
}

// Scene is the output of one build. Primitives are in paint order.
type Scene struct {
	Viewport     protocol.Size                   `json:"viewport"`
	Scopes       []Scope                         `json:"scopes"`
	Primitives   []Primitive                     `json:"primitives"`
	ScrollFrames map[protocol.NodeID]ScrollFrame `json:"scroll_frames"`
	Tags         map[protocol.NodeID]int         `json:"tags"`
}

func newScene(viewport protocol.Size) *Scene {
	return &Scene{
		Viewport:     viewport,
		ScrollFrames: make(map[protocol.NodeID]ScrollFrame),
		Tags:         make(map[protocol.NodeID]int),
	}
}

// Empty reports whether the scene draws nothing.
func (s *Scene) Empty() bool {
	return s == nil || len(s.Primitives) == 0
}
