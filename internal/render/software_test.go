package render

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/danmuck/photon/internal/dom"
	"github.com/danmuck/photon/internal/protocol"
	"github.com/danmuck/photon/internal/scene"
	"github.com/danmuck/photon/internal/testutil/testlog"
	"github.com/danmuck/photon/internal/textlayout"
)

var testViewport = protocol.Size{Width: 200, Height: 150}

// buildScene: root 1 > div 2 (click, red) and scroll 3 (wheel) > div 4 (click).
func buildScene(t *testing.T) *scene.Scene {
	t.Helper()
	doc := dom.NewDocument()
	for id, typ := range map[protocol.NodeID]string{1: dom.TypeRoot, 2: dom.TypeDiv, 3: dom.TypeScroll, 4: dom.TypeDiv} {
		if _, err := doc.Create(id, typ); err != nil {
			t.Fatalf("create %d: %v", id, err)
		}
	}
	_ = doc.AddChild(1, 0, 2)
	_ = doc.AddChild(1, 1, 3)
	_ = doc.AddChild(3, 0, 4)

	n2, _ := doc.Node(2)
	c := n2.Variant.(*dom.Container)
	c.Rect = protocol.Rect{X: 10, Y: 10, Width: 40, Height: 30}
	c.Color = protocol.Color{R: 255, A: 255}
	c.OnClick = protocol.CallbackSync

	n3, _ := doc.Node(3)
	sv := n3.Variant.(*dom.Scroll)
	sv.Position = protocol.Rect{X: 100, Y: 0, Width: 100, Height: 100}
	sv.Content = protocol.Rect{X: 100, Y: 0, Width: 100, Height: 400}
	sv.OnWheel = protocol.CallbackAsync

	n4, _ := doc.Node(4)
	inner := n4.Variant.(*dom.Container)
	inner.Rect = protocol.Rect{X: 110, Y: 150, Width: 50, Height: 50}
	inner.OnClick = protocol.CallbackAsync

	s, err := scene.Build(doc, testViewport)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return s
}

func TestHitTestRelativePointAndOrder(t *testing.T) {
	testlog.Start(t)
	b := NewSoftware(SoftwareConfig{Viewport: testViewport})
	if err := b.Submit(Transaction{Epoch: 1, Scene: buildScene(t)}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	hits := b.HitTest(protocol.Point{X: 15, Y: 20})
	if len(hits) != 1 || hits[0].Node != 2 || hits[0].Point != (protocol.Point{X: 5, Y: 10}) {
		t.Fatalf("unexpected hits %+v", hits)
	}
	if hits := b.HitTest(protocol.Point{X: 5, Y: 5}); len(hits) != 0 {
		t.Fatalf("expected no hits outside tagged rects, got %+v", hits)
	}
}

func TestHitTestRespectsScrollClipAndOffset(t *testing.T) {
	testlog.Start(t)
	b := NewSoftware(SoftwareConfig{Viewport: testViewport})
	_ = b.Submit(Transaction{Epoch: 1, Scene: buildScene(t)})

	// Node 4 starts below the scroll viewport.
	hits := b.HitTest(protocol.Point{X: 120, Y: 160})
	if len(hits) != 0 {
		t.Fatalf("content outside the scroll viewport must not hit, got %+v", hits)
	}

	if err := b.Submit(Transaction{Epoch: 2, Scrolls: []scene.ScrollCommand{{Node: 3, Offset: protocol.Point{Y: 120}}}}); err != nil {
		t.Fatalf("scroll submit: %v", err)
	}
	hits = b.HitTest(protocol.Point{X: 120, Y: 40})
	if len(hits) != 2 {
		t.Fatalf("expected inner div and scroll frame, got %+v", hits)
	}
	if hits[0].Node != 4 || hits[1].Node != 3 {
		t.Fatalf("expected front-to-back order [4 3], got %+v", hits)
	}
	if hits[0].Point != (protocol.Point{X: 10, Y: 10}) {
		t.Fatalf("unexpected relative point %+v", hits[0].Point)
	}
}

func TestScrollOffsetIsClamped(t *testing.T) {
	testlog.Start(t)
	b := NewSoftware(SoftwareConfig{Viewport: testViewport})
	_ = b.Submit(Transaction{Epoch: 1, Scene: buildScene(t)})
	_ = b.Submit(Transaction{Epoch: 2, Scrolls: []scene.ScrollCommand{{Node: 3, Offset: protocol.Point{X: 50, Y: 9999}}}})
	if got := b.ScrollOffset(3); got != (protocol.Point{X: 0, Y: 300}) {
		t.Fatalf("expected clamped offset {0 300}, got %+v", got)
	}
	_ = b.Submit(Transaction{Epoch: 3, Scrolls: []scene.ScrollCommand{{Node: 3, Offset: protocol.Point{Y: -20}}}})
	if got := b.ScrollOffset(3); got.Y != 0 {
		t.Fatalf("expected offset clamped at 0, got %+v", got)
	}
}

func TestScrollOffsetSurvivesRebuild(t *testing.T) {
	testlog.Start(t)
	b := NewSoftware(SoftwareConfig{Viewport: testViewport})
	_ = b.Submit(Transaction{Epoch: 1, Scene: buildScene(t)})
	_ = b.Submit(Transaction{Epoch: 2, Scrolls: []scene.ScrollCommand{{Node: 3, Offset: protocol.Point{Y: 50}}}})
	_ = b.Submit(Transaction{Epoch: 3, Scene: buildScene(t)})
	if got := b.ScrollOffset(3); got.Y != 50 {
		t.Fatalf("expected offset to survive rebuild, got %+v", got)
	}
}

func TestGenerateFrame(t *testing.T) {
	testlog.Start(t)
	shaper, err := textlayout.NewDefault(textlayout.DefaultFontSize)
	if err != nil {
		t.Fatalf("shaper: %v", err)
	}
	var notified *Frame
	b := NewSoftware(SoftwareConfig{
		Viewport: testViewport,
		Face:     shaper.Face(),
		OnFrame:  func(f *Frame) { notified = f },
	})
	if b.LastFrame() != nil {
		t.Fatalf("no frame expected before the first transaction")
	}
	if err := b.Submit(Transaction{Epoch: 7, Scene: buildScene(t), LogIDs: []uint64{3}, GenerateFrame: true}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	f := b.LastFrame()
	if f == nil || notified != f || f.Epoch != 7 || len(f.LogIDs) != 1 {
		t.Fatalf("unexpected frame %+v", f)
	}
	img := f.Image()
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 150 {
		t.Fatalf("unexpected frame bounds %v", img.Bounds())
	}
	r, g, _, _ := img.At(20, 20).RGBA()
	if r>>8 < 200 || g>>8 > 60 {
		t.Fatalf("expected red fill inside node 2, got r=%d g=%d", r>>8, g>>8)
	}

	var buf bytes.Buffer
	if err := f.EncodePNG(&buf); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if _, err := png.Decode(&buf); err != nil {
		t.Fatalf("decode png: %v", err)
	}
}

func TestGlyphsFilledFromShapedLayout(t *testing.T) {
	testlog.Start(t)
	shaper, err := textlayout.NewDefault(24)
	if err != nil {
		t.Fatalf("shaper: %v", err)
	}
	defer shaper.Close()
	shaped, err := shaper.Layout("HHHH")
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	// Drop the text so only the cached glyph ids can produce ink.
	layout := *shaped
	layout.Text = ""

	doc := dom.NewDocument()
	_, _ = doc.Create(1, dom.TypeRoot)
	n, _ := doc.Create(2, dom.TypeText)
	_ = doc.AddChild(1, 0, 2)
	tv := n.Variant.(*dom.Text)
	tv.Origin = protocol.Point{X: 10, Y: 10}
	tv.Color = protocol.Color{A: 255}
	tv.Layout = &layout
	sc, err := scene.Build(doc, testViewport)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	b := NewSoftware(SoftwareConfig{Viewport: testViewport, Font: shaper.Font(), FontSize: shaper.Size()})
	if err := b.Submit(Transaction{Epoch: 1, Scene: sc, GenerateFrame: true}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	img := b.LastFrame().Image()
	area := layout.Bounds.Translate(tv.Origin)
	ink := 0
	for y := int(area.Y); y < int(area.Y+area.Height); y++ {
		for x := int(area.X); x < int(area.X+area.Width); x++ {
			if r, _, _, _ := img.At(x, y).RGBA(); r>>8 < 100 {
				ink++
			}
		}
	}
	if ink == 0 {
		t.Fatalf("expected glyph ink inside %+v", area)
	}
	if r, _, _, _ := img.At(5, 5).RGBA(); r>>8 < 200 {
		t.Fatalf("ink outside the text area at (5,5)")
	}
}

func TestSubmitAfterClose(t *testing.T) {
	b := NewSoftware(SoftwareConfig{Viewport: testViewport})
	_ = b.Close()
	if err := b.Submit(Transaction{}); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
