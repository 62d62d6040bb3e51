package hittest

import "github.com/danmuck/photon/internal/protocol"

// LineHeight converts line-based wheel deltas to layout units.
const LineHeight = 38.0

type DeltaKind int

const (
	DeltaLine DeltaKind = iota
	DeltaPixel
)

func (k DeltaKind) String() string {
	if k == DeltaPixel {
		return "pixel"
	}
	return "line"
}

// WheelDelta is a raw wheel reading as delivered by the windowing layer.
type WheelDelta struct {
	Kind DeltaKind
	X, Y float64
}

func LineDelta(dx, dy float64) WheelDelta {
	return WheelDelta{Kind: DeltaLine, X: dx, Y: dy}
}

func PixelDelta(x, y float64) WheelDelta {
	return WheelDelta{Kind: DeltaPixel, X: x, Y: y}
}

// Vector returns the scroll vector reported to the peer. Wheel direction is
// inverted; line deltas are scaled by LineHeight on the vertical axis only.
func (d WheelDelta) Vector() protocol.Point {
	if d.Kind == DeltaPixel {
		return protocol.Point{X: -d.X, Y: -d.Y}
	}
	return protocol.Point{X: -d.X, Y: -d.Y * LineHeight}
}
