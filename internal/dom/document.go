package dom

import (
	"errors"
	"fmt"
	"slices"

	"github.com/danmuck/photon/internal/protocol"
)

var (
	ErrNodeNotFound    = errors.New("dom: node not found")
	ErrDuplicateNode   = errors.New("dom: node already exists")
	ErrUnknownType     = errors.New("dom: unknown node type")
	ErrIndexOutOfRange = errors.New("dom: child index out of range")
)

// Node is one element of the document. Children order is paint order.
type Node struct {
	ID       protocol.NodeID
	Variant  Variant
	Children []protocol.NodeID
}

// InsertChild places child at index, shifting later children right.
func (n *Node) InsertChild(index int, child protocol.NodeID) error {
	if index < 0 || index > len(n.Children) {
		return fmt.Errorf("%w: %d not in [0,%d]", ErrIndexOutOfRange, index, len(n.Children))
	}
	n.Children = slices.Insert(n.Children, index, child)
	return nil
}

// RemoveChild deletes the first occurrence of child and reports whether one
// was found.
func (n *Node) RemoveChild(child protocol.NodeID) bool {
	i := slices.Index(n.Children, child)
	if i < 0 {
		return false
	}
	n.Children = slices.Delete(n.Children, i, i+1)
	return true
}

// Document is the local copy of the peer's tree. It is not safe for
// concurrent use; callers hold the session's document lock.
type Document struct {
	nodes map[protocol.NodeID]*Node
	root  *protocol.NodeID
}

func NewDocument() *Document {
	return &Document{nodes: make(map[protocol.NodeID]*Node)}
}

// Create inserts a node with the default variant for typeName. A root node
// becomes the document root, replacing any previous root.
func (d *Document) Create(id protocol.NodeID, typeName string) (*Node, error) {
	if _, exists := d.nodes[id]; exists {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateNode, id)
	}
	v, err := NewVariant(typeName)
	if err != nil {
		return nil, err
	}
	n := &Node{ID: id, Variant: v}
	d.nodes[id] = n
	if _, ok := v.(*Root); ok {
		root := id
		d.root = &root
	}
	return n, nil
}

// Destroy removes id. References to it held in other nodes' children are
// left in place.
func (d *Document) Destroy(id protocol.NodeID) error {
	if _, ok := d.nodes[id]; !ok {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	delete(d.nodes, id)
	if d.root != nil && *d.root == id {
		d.root = nil
	}
	return nil
}

func (d *Document) Node(id protocol.NodeID) (*Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

func (d *Document) Root() (protocol.NodeID, bool) {
	if d.root == nil {
		return 0, false
	}
	return *d.root, true
}

func (d *Document) Len() int {
	return len(d.nodes)
}

// AddChild inserts child into parent's children at index. Both nodes must
// exist.
func (d *Document) AddChild(parent protocol.NodeID, index int, child protocol.NodeID) error {
	p, ok := d.nodes[parent]
	if !ok {
		return fmt.Errorf("%w: parent %d", ErrNodeNotFound, parent)
	}
	if _, ok := d.nodes[child]; !ok {
		return fmt.Errorf("%w: child %d", ErrNodeNotFound, child)
	}
	return p.InsertChild(index, child)
}

// RemoveChild removes the first occurrence of child from parent. A child
// that is not listed is a no-op.
func (d *Document) RemoveChild(parent protocol.NodeID, child protocol.NodeID) (bool, error) {
	p, ok := d.nodes[parent]
	if !ok {
		return false, fmt.Errorf("%w: parent %d", ErrNodeNotFound, parent)
	}
	return p.RemoveChild(child), nil
}

// Walk visits nodes depth-first from the root. Missing children and
// revisits are skipped. Returning false from fn stops the walk.
func (d *Document) Walk(fn func(n *Node, depth int) bool) {
	id, ok := d.Root()
	if !ok {
		return
	}
	seen := make(map[protocol.NodeID]bool, len(d.nodes))
	var visit func(id protocol.NodeID, depth int) bool
	visit = func(id protocol.NodeID, depth int) bool {
		n, ok := d.nodes[id]
		if !ok || seen[id] {
			return true
		}
		seen[id] = true
		if !fn(n, depth) {
			return false
		}
		for _, c := range n.Children {
			if !visit(c, depth+1) {
				return false
			}
		}
		return true
	}
	visit(id, 0)
}
