package protocol

import (
	"encoding/json"
	"fmt"
)

// ParsePoint decodes {"x": .., "y": ..}. Both fields are required.
func ParsePoint(raw json.RawMessage) (Point, error) {
	var w struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return Point{}, invalid("point", err)
	}
	if w.X == nil || w.Y == nil {
		return Point{}, fmt.Errorf("%w: point requires x and y", ErrInvalidValue)
	}
	return Point{X: *w.X, Y: *w.Y}, nil
}

// ParseRect decodes {"x", "y", "width", "height"}. Negative extents are
// rejected.
func ParseRect(raw json.RawMessage) (Rect, error) {
	var w struct {
		X      *float64 `json:"x"`
		Y      *float64 `json:"y"`
		Width  *float64 `json:"width"`
		Height *float64 `json:"height"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return Rect{}, invalid("rect", err)
	}
	if w.X == nil || w.Y == nil || w.Width == nil || w.Height == nil {
		return Rect{}, fmt.Errorf("%w: rect requires x, y, width and height", ErrInvalidValue)
	}
	if *w.Width < 0 || *w.Height < 0 {
		return Rect{}, fmt.Errorf("%w: rect extent %vx%v", ErrInvalidValue, *w.Width, *w.Height)
	}
	return Rect{X: *w.X, Y: *w.Y, Width: *w.Width, Height: *w.Height}, nil
}

// ParseColor decodes {"r", "g", "b", "a"} with 0-255 channels. A missing
// alpha channel means opaque.
func ParseColor(raw json.RawMessage) (Color, error) {
	var w struct {
		R *int `json:"r"`
		G *int `json:"g"`
		B *int `json:"b"`
		A *int `json:"a"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return Color{}, invalid("color", err)
	}
	if w.R == nil || w.G == nil || w.B == nil {
		return Color{}, fmt.Errorf("%w: color requires r, g and b", ErrInvalidValue)
	}
	alpha := 255
	if w.A != nil {
		alpha = *w.A
	}
	out := Color{}
	for _, ch := range []struct {
		name string
		v    int
		dst  *uint8
	}{
		{"r", *w.R, &out.R},
		{"g", *w.G, &out.G},
		{"b", *w.B, &out.B},
		{"a", alpha, &out.A},
	} {
		if ch.v < 0 || ch.v > 255 {
			return Color{}, fmt.Errorf("%w: color channel %s=%d out of range", ErrInvalidValue, ch.name, ch.v)
		}
		*ch.dst = uint8(ch.v)
	}
	return out, nil
}

func ParseString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", invalid("string", err)
	}
	return s, nil
}

// ParseNodeRef decodes a child reference carried as a bare JSON number.
func ParseNodeRef(raw json.RawMessage) (NodeID, error) {
	var id uint64
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, invalid("node reference", err)
	}
	return NodeID(id), nil
}

// ParseCallback maps a handler sentinel to its policy.
func ParseCallback(raw json.RawMessage) (CallbackPolicy, error) {
	s, err := ParseString(raw)
	if err != nil {
		return CallbackAbsent, err
	}
	switch s {
	case HandlerSync:
		return CallbackSync, nil
	case HandlerAsync:
		return CallbackAsync, nil
	case HandlerAbsent:
		return CallbackAbsent, nil
	default:
		return CallbackAbsent, fmt.Errorf("%w: unknown handler %q", ErrInvalidValue, s)
	}
}

func invalid(shape string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInvalidValue, shape, err)
}
