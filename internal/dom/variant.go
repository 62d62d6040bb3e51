package dom

import (
	"fmt"

	"github.com/danmuck/photon/internal/protocol"
	"github.com/danmuck/photon/internal/textlayout"
)

// Wire type names accepted by make-node.
const (
	TypeRoot   = "root"
	TypeDiv    = "div"
	TypeText   = "text"
	TypeScroll = "scroll"
)

// Variant is the closed set of node kinds.
type Variant interface {
	TypeName() string
	variant()
}

type Root struct{}

// Container is a rectangular box with optional click and wheel callbacks.
type Container struct {
	Rect        protocol.Rect
	Color       protocol.Color
	BorderColor protocol.Color
	OnClick     protocol.CallbackPolicy
	OnWheel     protocol.CallbackPolicy
}

// Text holds a string and its shaped layout. Layout is nil until the
// content has been shaped.
type Text struct {
	Content string
	Origin  protocol.Point
	Color   protocol.Color
	Layout  *textlayout.Layout
}

// Scroll is a viewport (Position) over a larger Content rect.
type Scroll struct {
	Position protocol.Rect
	Content  protocol.Rect
	OnWheel  protocol.CallbackPolicy
	Offset   protocol.Point
}

func (*Root) TypeName() string      { return TypeRoot }
func (*Container) TypeName() string { return TypeDiv }
func (*Text) TypeName() string      { return TypeText }
func (*Scroll) TypeName() string    { return TypeScroll }

func (*Root) variant()      {}
func (*Container) variant() {}
func (*Text) variant()      {}
func (*Scroll) variant()    {}

// NewVariant returns the default-initialised variant for a wire type name.
func NewVariant(typeName string) (Variant, error) {
	switch typeName {
	case TypeRoot:
		return &Root{}, nil
	case TypeDiv:
		return &Container{
			Color:       protocol.ColorBlack,
			BorderColor: protocol.ColorTransparent,
		}, nil
	case TypeText:
		return &Text{Color: protocol.ColorBlack}, nil
	case TypeScroll:
		return &Scroll{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typeName)
	}
}

// ClickPolicy reports the click callback policy of v.
func ClickPolicy(v Variant) protocol.CallbackPolicy {
	if c, ok := v.(*Container); ok {
		return c.OnClick
	}
	return protocol.CallbackAbsent
}

// WheelPolicy reports the wheel callback policy of v.
func WheelPolicy(v Variant) protocol.CallbackPolicy {
	switch n := v.(type) {
	case *Container:
		return n.OnWheel
	case *Scroll:
		return n.OnWheel
	default:
		return protocol.CallbackAbsent
	}
}

// Tagged reports whether v participates in hit testing.
func Tagged(v Variant) bool {
	return ClickPolicy(v).Present() || WheelPolicy(v).Present()
}
