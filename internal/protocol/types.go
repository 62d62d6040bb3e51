package protocol

import "math"

// NodeID is assigned by the peer and never generated locally.
type NodeID uint64

// Point is a layout-space position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) Add(o Point) Point { return Point{X: p.X + o.X, Y: p.Y + o.Y} }
func (p Point) Sub(o Point) Point { return Point{X: p.X - o.X, Y: p.Y - o.Y} }

// Size is a layout-space extent.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is an axis-aligned layout rectangle. Contains is half-open on the
// right and bottom edges.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func RectFromSize(s Size) Rect {
	return Rect{Width: s.Width, Height: s.Height}
}

func (r Rect) Origin() Point { return Point{X: r.X, Y: r.Y} }
func (r Rect) Size() Size    { return Size{Width: r.Width, Height: r.Height} }
func (r Rect) MaxX() float64 { return r.X + r.Width }
func (r Rect) MaxY() float64 { return r.Y + r.Height }

func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

func (r Rect) Contains(p Point) bool {
	return !r.Empty() && p.X >= r.X && p.X < r.MaxX() && p.Y >= r.Y && p.Y < r.MaxY()
}

func (r Rect) Translate(d Point) Rect {
	r.X += d.X
	r.Y += d.Y
	return r
}

// Intersect returns the overlap of r and o, or a zero rect when they are
// disjoint.
func (r Rect) Intersect(o Rect) Rect {
	x0 := math.Max(r.X, o.X)
	y0 := math.Max(r.Y, o.Y)
	x1 := math.Min(r.MaxX(), o.MaxX())
	y1 := math.Min(r.MaxY(), o.MaxY())
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Color carries 8-bit channels as sent on the wire.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"`
}

var (
	ColorBlack       = Color{A: 255}
	ColorWhite       = Color{R: 255, G: 255, B: 255, A: 255}
	ColorTransparent = Color{}
)

func (c Color) Transparent() bool { return c.A == 0 }

// Floats returns the channels normalised to [0, 1].
func (c Color) Floats() (r, g, b, a float64) {
	return float64(c.R) / 255, float64(c.G) / 255, float64(c.B) / 255, float64(c.A) / 255
}

// CallbackPolicy is the per-node, per-interaction reporting mode.
type CallbackPolicy int

const (
	CallbackAbsent CallbackPolicy = iota
	CallbackSync
	CallbackAsync
)

const (
	HandlerSync   = "noria-handler-sync"
	HandlerAsync  = "noria-handler-async"
	HandlerAbsent = "-noria-handler"
)

func (p CallbackPolicy) Present() bool { return p != CallbackAbsent }

func (p CallbackPolicy) String() string {
	switch p {
	case CallbackSync:
		return "sync"
	case CallbackAsync:
		return "async"
	default:
		return "absent"
	}
}

// Wire returns the sentinel string the peer uses for p.
func (p CallbackPolicy) Wire() string {
	switch p {
	case CallbackSync:
		return HandlerSync
	case CallbackAsync:
		return HandlerAsync
	default:
		return HandlerAbsent
	}
}
