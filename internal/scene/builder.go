package scene

import (
	"fmt"

	"github.com/danmuck/photon/internal/dom"
	"github.com/danmuck/photon/internal/protocol"
)

// Builder walks a document once. A Builder is single use.
type Builder struct {
	scene  *Scene
	stack  []int
	onPath map[protocol.NodeID]bool
	doc    *dom.Document
}

func NewBuilder(viewport protocol.Size) *Builder {
	return &Builder{
		scene:  newScene(viewport),
		onPath: make(map[protocol.NodeID]bool),
	}
}

// Build is shorthand for NewBuilder(viewport).Build(doc).
func Build(doc *dom.Document, viewport protocol.Size) (*Scene, error) {
	return NewBuilder(viewport).Build(doc)
}

// Depth is the current scope stack depth. It is zero before and after a
// complete build.
func (b *Builder) Depth() int {
	return len(b.stack)
}

// Build visits the document from its root. A document without a root
// produces an empty scene.
func (b *Builder) Build(doc *dom.Document) (*Scene, error) {
	b.doc = doc
	root, ok := doc.Root()
	if !ok {
		return b.scene, nil
	}
	if err := b.visit(root); err != nil {
		return nil, err
	}
	if len(b.stack) != 0 {
		return nil, fmt.Errorf("%w: %d scopes left open", ErrScopeImbalance, len(b.stack))
	}
	return b.scene, nil
}

func (b *Builder) visit(id protocol.NodeID) error {
	n, ok := b.doc.Node(id)
	if !ok {
		return fmt.Errorf("%w: %d", dom.ErrNodeNotFound, id)
	}
	if b.onPath[id] {
		return fmt.Errorf("%w: node %d", ErrCycle, id)
	}
	b.onPath[id] = true
	defer delete(b.onPath, id)

	if err := b.visitDown(n); err != nil {
		return err
	}
	for _, child := range n.Children {
		if err := b.visit(child); err != nil {
			return err
		}
	}
	return b.visitUp(n)
}

func (b *Builder) visitDown(n *dom.Node) error {
	switch v := n.Variant.(type) {
	case *dom.Root:
		b.push(Scope{
			Kind: ScopeViewport,
			Node: n.ID,
			Clip: protocol.RectFromSize(b.scene.Viewport),
		})
	case *dom.Container:
		parent, err := b.top()
		if err != nil {
			return err
		}
		b.emit(Primitive{
			Kind:        PrimitiveBorder,
			Node:        n.ID,
			Scope:       parent,
			Tagged:      dom.Tagged(v),
			Rect:        v.Rect,
			Color:       v.Color,
			BorderColor: v.BorderColor,
			BorderWidth: BorderWidth,
			Radius:      BorderRadius,
		})
		b.push(Scope{
			Kind: ScopeGroup,
			Node: n.ID,
			Clip: b.scene.Scopes[parent].Clip,
		})
	case *dom.Scroll:
		parent, err := b.top()
		if err != nil {
			return err
		}
		scope := b.push(Scope{
			Kind: ScopeScroll,
			Node: n.ID,
			Clip: v.Position,
		})
		b.scene.ScrollFrames[n.ID] = ScrollFrame{
			Node:        n.ID,
			Viewport:    v.Position,
			Content:     v.Content,
			Scope:       scope,
			ParentScope: parent,
		}
		b.emit(Primitive{
			Kind:   PrimitiveHitRect,
			Node:   n.ID,
			Scope:  scope,
			Tagged: v.OnWheel.Present(),
			Rect:   v.Content,
			Color:  protocol.ColorTransparent,
		})
	case *dom.Text:
		parent, err := b.top()
		if err != nil {
			return err
		}
		if v.Layout == nil {
			return nil
		}
		rect := v.Layout.Bounds.Translate(v.Origin)
		b.emit(Primitive{
			Kind:   PrimitiveGlyphs,
			Node:   n.ID,
			Scope:  parent,
			Rect:   rect,
			Color:  v.Color,
			Origin: v.Origin,
			Layout: v.Layout,
		})
	}
	return nil
}

func (b *Builder) visitUp(n *dom.Node) error {
	switch n.Variant.(type) {
	case *dom.Root, *dom.Container, *dom.Scroll:
		return b.pop()
	}
	return nil
}

func (b *Builder) push(s Scope) int {
	s.Index = len(b.scene.Scopes)
	s.Parent = -1
	if len(b.stack) > 0 {
		s.Parent = b.stack[len(b.stack)-1]
	}
	b.scene.Scopes = append(b.scene.Scopes, s)
	b.stack = append(b.stack, s.Index)
	return s.Index
}

func (b *Builder) pop() error {
	if len(b.stack) == 0 {
		return fmt.Errorf("%w: pop on empty stack", ErrScopeImbalance)
	}
	b.stack = b.stack[:len(b.stack)-1]
	return nil
}

func (b *Builder) top() (int, error) {
	if len(b.stack) == 0 {
		return 0, fmt.Errorf("%w: no enclosing scope", ErrScopeImbalance)
	}
	return b.stack[len(b.stack)-1], nil
}

func (b *Builder) emit(p Primitive) {
	b.scene.Primitives = append(b.scene.Primitives, p)
	if p.Tagged {
		b.scene.Tags[p.Node] = len(b.scene.Primitives) - 1
	}
}
