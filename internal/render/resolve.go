package render

import (
	"math"

	"github.com/danmuck/photon/internal/protocol"
	"github.com/danmuck/photon/internal/scene"
)

// space is a scope resolved to world coordinates.
type space struct {
	offset protocol.Point
	clip   protocol.Rect
}

// resolveScopes maps every scope to its world offset and clip. Scopes are
// stored parent-first, so one forward pass is enough.
func resolveScopes(s *scene.Scene, offsets map[protocol.NodeID]protocol.Point) []space {
	out := make([]space, len(s.Scopes))
	for i, sc := range s.Scopes {
		parent := space{clip: protocol.RectFromSize(s.Viewport)}
		if sc.Parent >= 0 && sc.Parent < i {
			parent = out[sc.Parent]
		}
		switch sc.Kind {
		case scene.ScopeViewport:
			out[i] = space{offset: parent.offset, clip: parent.clip.Intersect(sc.Clip)}
		case scene.ScopeScroll:
			frame := s.ScrollFrames[sc.Node]
			viewport := frame.Viewport.Translate(parent.offset)
			out[i] = space{
				offset: parent.offset.Sub(offsets[sc.Node]),
				clip:   parent.clip.Intersect(viewport),
			}
		default:
			out[i] = parent
		}
	}
	return out
}

// clampOffset keeps the viewport inside the content rect.
func clampOffset(frame scene.ScrollFrame, off protocol.Point) protocol.Point {
	maxX := math.Max(0, frame.Content.MaxX()-frame.Viewport.MaxX())
	maxY := math.Max(0, frame.Content.MaxY()-frame.Viewport.MaxY())
	minX := math.Min(0, frame.Content.X-frame.Viewport.X)
	minY := math.Min(0, frame.Content.Y-frame.Viewport.Y)
	return protocol.Point{
		X: math.Min(math.Max(off.X, minX), maxX),
		Y: math.Min(math.Max(off.Y, minY), maxY),
	}
}
