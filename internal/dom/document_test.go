package dom

import (
	"errors"
	"slices"
	"testing"

	"github.com/danmuck/photon/internal/protocol"
)

func TestCreateDestroyRestoresCount(t *testing.T) {
	doc := NewDocument()
	if _, err := doc.Create(1, TypeRoot); err != nil {
		t.Fatalf("create root: %v", err)
	}
	before := doc.Len()
	if _, err := doc.Create(2, TypeDiv); err != nil {
		t.Fatalf("create div: %v", err)
	}
	if err := doc.Destroy(2); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if doc.Len() != before {
		t.Fatalf("expected %d nodes, got %d", before, doc.Len())
	}
}

func TestCreateDefaults(t *testing.T) {
	doc := NewDocument()
	n, err := doc.Create(5, TypeDiv)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	c := n.Variant.(*Container)
	if c.Color != protocol.ColorBlack || !c.BorderColor.Transparent() || !c.Rect.Empty() {
		t.Fatalf("unexpected container defaults: %+v", c)
	}
	if Tagged(c) {
		t.Fatalf("default container must not be tagged")
	}
	tn, _ := doc.Create(6, TypeText)
	if txt := tn.Variant.(*Text); txt.Content != "" || txt.Layout != nil || txt.Color != protocol.ColorBlack {
		t.Fatalf("unexpected text defaults: %+v", txt)
	}
	if _, ok := doc.Root(); ok {
		t.Fatalf("no root expected")
	}
}

func TestCreateRejectsDuplicatesAndUnknownTypes(t *testing.T) {
	doc := NewDocument()
	if _, err := doc.Create(1, TypeDiv); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := doc.Create(1, TypeText); !errors.Is(err, ErrDuplicateNode) {
		t.Fatalf("expected ErrDuplicateNode, got %v", err)
	}
	if _, err := doc.Create(2, "span"); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestRootIsLastWriteWins(t *testing.T) {
	doc := NewDocument()
	_, _ = doc.Create(1, TypeRoot)
	_, _ = doc.Create(9, TypeRoot)
	if id, ok := doc.Root(); !ok || id != 9 {
		t.Fatalf("expected root 9, got %d ok=%v", id, ok)
	}
	if err := doc.Destroy(9); err != nil {
		t.Fatalf("destroy root: %v", err)
	}
	if _, ok := doc.Root(); ok {
		t.Fatalf("destroying the root must clear it")
	}
}

func TestDestroyUnknown(t *testing.T) {
	if err := NewDocument().Destroy(3); !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestAddRemoveChildrenRestores(t *testing.T) {
	doc := NewDocument()
	for id, typ := range map[protocol.NodeID]string{1: TypeRoot, 2: TypeDiv, 3: TypeDiv, 4: TypeText} {
		if _, err := doc.Create(id, typ); err != nil {
			t.Fatalf("create %d: %v", id, err)
		}
	}
	_ = doc.AddChild(1, 0, 2)
	_ = doc.AddChild(1, 1, 3)
	root, _ := doc.Node(1)
	before := slices.Clone(root.Children)

	if err := doc.AddChild(1, 1, 4); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !slices.Equal(root.Children, []protocol.NodeID{2, 4, 3}) {
		t.Fatalf("unexpected order %v", root.Children)
	}
	removed, err := doc.RemoveChild(1, 4)
	if err != nil || !removed {
		t.Fatalf("remove: removed=%v err=%v", removed, err)
	}
	if !slices.Equal(root.Children, before) {
		t.Fatalf("expected %v, got %v", before, root.Children)
	}
}

func TestAddChildValidation(t *testing.T) {
	doc := NewDocument()
	_, _ = doc.Create(1, TypeRoot)
	_, _ = doc.Create(2, TypeDiv)
	if err := doc.AddChild(1, 0, 42); !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("expected missing child error, got %v", err)
	}
	if err := doc.AddChild(7, 0, 2); !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("expected missing parent error, got %v", err)
	}
	if err := doc.AddChild(1, 3, 2); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestRemoveChildFirstOccurrenceOnly(t *testing.T) {
	doc := NewDocument()
	_, _ = doc.Create(1, TypeRoot)
	_, _ = doc.Create(2, TypeDiv)
	_ = doc.AddChild(1, 0, 2)
	_ = doc.AddChild(1, 1, 2)
	removed, _ := doc.RemoveChild(1, 2)
	root, _ := doc.Node(1)
	if !removed || !slices.Equal(root.Children, []protocol.NodeID{2}) {
		t.Fatalf("expected one remaining duplicate, got %v", root.Children)
	}
	removed, _ = doc.RemoveChild(1, 99)
	if removed {
		t.Fatalf("absent child must be a no-op")
	}
}

func TestWalkSkipsMissingAndCycles(t *testing.T) {
	doc := NewDocument()
	_, _ = doc.Create(1, TypeRoot)
	_, _ = doc.Create(2, TypeDiv)
	_ = doc.AddChild(1, 0, 2)
	_ = doc.AddChild(2, 0, 1)
	_, _ = doc.Create(3, TypeDiv)
	_ = doc.AddChild(2, 1, 3)
	_ = doc.Destroy(3)

	var visited []protocol.NodeID
	doc.Walk(func(n *Node, depth int) bool {
		visited = append(visited, n.ID)
		return true
	})
	if !slices.Equal(visited, []protocol.NodeID{1, 2}) {
		t.Fatalf("unexpected walk order %v", visited)
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	doc := NewDocument()
	_, _ = doc.Create(2, TypeScroll)
	_, _ = doc.Create(1, TypeRoot)
	_ = doc.AddChild(1, 0, 2)
	snap := doc.Snapshot()
	if snap.Root == nil || *snap.Root != 1 || len(snap.Nodes) != 2 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.Nodes[0].ID != 1 || snap.Nodes[1].Type != TypeScroll || snap.Nodes[1].Position == nil {
		t.Fatalf("unexpected node snapshots %+v", snap.Nodes)
	}
	snap.Nodes[0].Children[0] = 99
	root, _ := doc.Node(1)
	if root.Children[0] != 2 {
		t.Fatalf("snapshot must not alias document state")
	}
}
