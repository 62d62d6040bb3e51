package dom

import (
	"slices"

	"github.com/danmuck/photon/internal/protocol"
)

// Snapshot is a detached copy of the document for inspection.
type Snapshot struct {
	Root  *protocol.NodeID `json:"root,omitempty"`
	Nodes []NodeSnapshot   `json:"nodes"`
}

type NodeSnapshot struct {
	ID       protocol.NodeID   `json:"id"`
	Type     string            `json:"type"`
	Children []protocol.NodeID `json:"children"`

	Rect        *protocol.Rect  `json:"rect,omitempty"`
	Color       *protocol.Color `json:"color,omitempty"`
	BorderColor *protocol.Color `json:"border_color,omitempty"`
	OnClick     string          `json:"on_click,omitempty"`
	OnWheel     string          `json:"on_wheel,omitempty"`

	Text   *string         `json:"text,omitempty"`
	Origin *protocol.Point `json:"origin,omitempty"`
	Glyphs int             `json:"glyphs,omitempty"`

	Position *protocol.Rect  `json:"position,omitempty"`
	Content  *protocol.Rect  `json:"content,omitempty"`
	Offset   *protocol.Point `json:"offset,omitempty"`
}

// Snapshot copies every node, ordered by id.
func (d *Document) Snapshot() Snapshot {
	out := Snapshot{Nodes: make([]NodeSnapshot, 0, len(d.nodes))}
	if id, ok := d.Root(); ok {
		out.Root = &id
	}
	for _, n := range d.nodes {
		out.Nodes = append(out.Nodes, snapshotNode(n))
	}
	slices.SortFunc(out.Nodes, func(a, b NodeSnapshot) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

func snapshotNode(n *Node) NodeSnapshot {
	s := NodeSnapshot{
		ID:       n.ID,
		Type:     n.Variant.TypeName(),
		Children: slices.Clone(n.Children),
	}
	if s.Children == nil {
		s.Children = []protocol.NodeID{}
	}
	switch v := n.Variant.(type) {
	case *Container:
		rect, color, border := v.Rect, v.Color, v.BorderColor
		s.Rect, s.Color, s.BorderColor = &rect, &color, &border
		s.OnClick = policyName(v.OnClick)
		s.OnWheel = policyName(v.OnWheel)
	case *Text:
		text, origin, color := v.Content, v.Origin, v.Color
		s.Text, s.Origin, s.Color = &text, &origin, &color
		if v.Layout != nil {
			s.Glyphs = len(v.Layout.Glyphs)
		}
	case *Scroll:
		pos, content, offset := v.Position, v.Content, v.Offset
		s.Position, s.Content, s.Offset = &pos, &content, &offset
		s.OnWheel = policyName(v.OnWheel)
	}
	return s
}

func policyName(p protocol.CallbackPolicy) string {
	if !p.Present() {
		return ""
	}
	return p.String()
}
