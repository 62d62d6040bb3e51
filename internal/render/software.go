package render

import (
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"github.com/rs/zerolog"

	"github.com/danmuck/photon/internal/logging"
	"github.com/danmuck/photon/internal/protocol"
	"github.com/danmuck/photon/internal/scene"
	"github.com/danmuck/photon/internal/textlayout"
)

// DefaultBackground matches the light grey the peer's layouts assume.
var DefaultBackground = protocol.Color{R: 230, G: 230, B: 232, A: 255}

// Frame is one rasterized result.
type Frame struct {
	Epoch    uint64
	LogIDs   []uint64
	At       time.Time
	Duration time.Duration

	ctx *gg.Context
}

func (f *Frame) Image() image.Image {
	if f == nil || f.ctx == nil {
		return nil
	}
	return f.ctx.Image()
}

func (f *Frame) EncodePNG(w io.Writer) error {
	if f == nil || f.ctx == nil {
		return fmt.Errorf("render: no frame")
	}
	return f.ctx.EncodePNG(w)
}

type SoftwareConfig struct {
	Viewport   protocol.Size
	Background protocol.Color
	// Font and FontSize fill glyph primitives from their shaped glyph ids.
	Font     text.ParsedFont
	FontSize float64
	// Face draws the layout text when no Font is set. Nil skips text.
	Face text.Face
	// OnFrame runs after each generated frame, outside the backend lock.
	OnFrame func(*Frame)
}

// Software rasterizes scenes with gg's CPU renderer.
type Software struct {
	cfg SoftwareConfig
	log zerolog.Logger

	mu      sync.Mutex
	scene   *scene.Scene
	spaces  []space
	offsets map[protocol.NodeID]protocol.Point
	epoch   uint64
	frame   *Frame
	closed  bool

	extractor *text.OutlineExtractor
	outlines  map[uint16]*text.GlyphOutline
}

func NewSoftware(cfg SoftwareConfig) *Software {
	if cfg.Background == (protocol.Color{}) {
		cfg.Background = DefaultBackground
	}
	return &Software{
		cfg:     cfg,
		log:     logging.Component("render"),
		offsets: make(map[protocol.NodeID]protocol.Point),

		extractor: text.NewOutlineExtractor(),
		outlines:  make(map[uint16]*text.GlyphOutline),
	}
}

// Submit installs the transaction's scene (if any), applies scroll commands
// and optionally rasterizes a frame.
func (s *Software) Submit(txn Transaction) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if txn.Scene != nil {
		s.scene = txn.Scene
		for id, off := range s.offsets {
			frame, ok := s.scene.ScrollFrames[id]
			if !ok {
				continue
			}
			s.offsets[id] = clampOffset(frame, off)
		}
	}
	for _, cmd := range txn.Scrolls {
		frame, ok := s.currentFrame(cmd.Node)
		if !ok {
			s.log.Debug().Uint64("node", uint64(cmd.Node)).Msg("scroll for unknown frame kept for next scene")
			s.offsets[cmd.Node] = cmd.Offset
			continue
		}
		s.offsets[cmd.Node] = clampOffset(frame, cmd.Offset)
	}
	if s.scene != nil {
		s.spaces = resolveScopes(s.scene, s.offsets)
	}
	s.epoch = txn.Epoch

	var frame *Frame
	if txn.GenerateFrame {
		start := time.Now()
		ctx, err := s.rasterize()
		if err != nil {
			s.mu.Unlock()
			return err
		}
		frame = &Frame{
			Epoch:    txn.Epoch,
			LogIDs:   append([]uint64(nil), txn.LogIDs...),
			At:       time.Now(),
			Duration: time.Since(start),
			ctx:      ctx,
		}
		if s.frame != nil && s.frame.ctx != nil {
			_ = s.frame.ctx.Close()
		}
		s.frame = frame
	}
	onFrame := s.cfg.OnFrame
	s.mu.Unlock()

	if frame != nil && onFrame != nil {
		onFrame(frame)
	}
	return nil
}

// HitTest walks tagged primitives topmost first.
func (s *Software) HitTest(pt protocol.Point) []HitItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scene == nil {
		return nil
	}
	var out []HitItem
	for i := len(s.scene.Primitives) - 1; i >= 0; i-- {
		p := s.scene.Primitives[i]
		if !p.Tagged {
			continue
		}
		sp := s.spaces[p.Scope]
		if !sp.clip.Contains(pt) {
			continue
		}
		rect := p.Rect.Translate(sp.offset)
		if !rect.Contains(pt) {
			continue
		}
		out = append(out, HitItem{Node: p.Node, Point: pt.Sub(rect.Origin())})
	}
	return out
}

// LastFrame returns the most recent frame, or nil before the first one.
func (s *Software) LastFrame() *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// ScrollOffset returns the clamped offset applied to a scroll frame.
func (s *Software) ScrollOffset(node protocol.NodeID) protocol.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offsets[node]
}

func (s *Software) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

func (s *Software) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Software) currentFrame(node protocol.NodeID) (scene.ScrollFrame, bool) {
	if s.scene == nil {
		return scene.ScrollFrame{}, false
	}
	f, ok := s.scene.ScrollFrames[node]
	return f, ok
}

func (s *Software) rasterize() (*gg.Context, error) {
	w, h := int(s.cfg.Viewport.Width), int(s.cfg.Viewport.Height)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("render: invalid viewport %vx%v", s.cfg.Viewport.Width, s.cfg.Viewport.Height)
	}
	ctx := gg.NewContext(w, h)
	ctx.ClearWithColor(toRGBA(s.cfg.Background))
	if s.scene == nil {
		return ctx, nil
	}
	if s.cfg.Face != nil {
		ctx.SetFont(s.cfg.Face)
	}
	for _, p := range s.scene.Primitives {
		sp := s.spaces[p.Scope]
		if sp.clip.Empty() {
			continue
		}
		ctx.Push()
		ctx.ClipRect(sp.clip.X, sp.clip.Y, sp.clip.Width, sp.clip.Height)
		err := s.drawPrimitive(ctx, p, sp.offset)
		ctx.Pop()
		if err != nil {
			_ = ctx.Close()
			return nil, fmt.Errorf("render: node %d: %w", p.Node, err)
		}
	}
	return ctx, nil
}

func (s *Software) drawPrimitive(ctx *gg.Context, p scene.Primitive, offset protocol.Point) error {
	rect := p.Rect.Translate(offset)
	switch p.Kind {
	case scene.PrimitiveBorder:
		if rect.Empty() {
			return nil
		}
		if !p.Color.Transparent() {
			setColor(ctx, p.Color)
			ctx.DrawRoundedRectangle(rect.X, rect.Y, rect.Width, rect.Height, p.Radius)
			if err := ctx.Fill(); err != nil {
				return err
			}
		}
		if !p.BorderColor.Transparent() && p.BorderWidth > 0 {
			setColor(ctx, p.BorderColor)
			ctx.SetLineWidth(p.BorderWidth)
			half := p.BorderWidth / 2
			ctx.DrawRoundedRectangle(rect.X+half, rect.Y+half, rect.Width-p.BorderWidth, rect.Height-p.BorderWidth, p.Radius)
			if err := ctx.Stroke(); err != nil {
				return err
			}
		}
	case scene.PrimitiveHitRect:
		if rect.Empty() || p.Color.Transparent() {
			return nil
		}
		setColor(ctx, p.Color)
		ctx.DrawRectangle(rect.X, rect.Y, rect.Width, rect.Height)
		return ctx.Fill()
	case scene.PrimitiveGlyphs:
		if p.Layout == nil || p.Color.Transparent() {
			return nil
		}
		setColor(ctx, p.Color)
		origin := p.Origin.Add(offset)
		if s.cfg.Font != nil {
			return s.fillGlyphs(ctx, p.Layout.Glyphs, origin)
		}
		if s.cfg.Face != nil {
			ctx.DrawString(p.Layout.Text, origin.X, origin.Y+p.Layout.Baseline)
		}
	}
	return nil
}

// fillGlyphs fills the outlines of already shaped glyphs. Glyph positions are
// relative to origin with Y on the baseline.
func (s *Software) fillGlyphs(ctx *gg.Context, glyphs []textlayout.Glyph, origin protocol.Point) error {
	ctx.ClearPath()
	drawn := false
	for _, g := range glyphs {
		outline := s.outline(g.ID)
		if outline == nil || outline.IsEmpty() {
			continue
		}
		x, y := origin.X+g.X, origin.Y+g.Y
		for i, seg := range outline.Segments {
			pt := func(k int) (float64, float64) {
				return x + float64(seg.Points[k].X), y + float64(seg.Points[k].Y)
			}
			switch seg.Op {
			case text.OutlineOpMoveTo:
				if i > 0 {
					ctx.ClosePath()
				}
				ctx.MoveTo(pt(0))
			case text.OutlineOpLineTo:
				ctx.LineTo(pt(0))
			case text.OutlineOpQuadTo:
				cx, cy := pt(0)
				px, py := pt(1)
				ctx.QuadraticTo(cx, cy, px, py)
			case text.OutlineOpCubicTo:
				c1x, c1y := pt(0)
				c2x, c2y := pt(1)
				px, py := pt(2)
				ctx.CubicTo(c1x, c1y, c2x, c2y, px, py)
			}
		}
		ctx.ClosePath()
		drawn = true
	}
	if !drawn {
		return nil
	}
	return ctx.Fill()
}

// outline caches extracted outlines by glyph id. Callers hold s.mu.
func (s *Software) outline(id uint16) *text.GlyphOutline {
	if o, ok := s.outlines[id]; ok {
		return o
	}
	o, err := s.extractor.ExtractOutline(s.cfg.Font, text.GlyphID(id), s.cfg.FontSize)
	if err != nil {
		s.log.Debug().Err(err).Uint16("glyph", id).Msg("glyph has no outline")
		o = nil
	}
	s.outlines[id] = o
	return o
}

func setColor(ctx *gg.Context, c protocol.Color) {
	r, g, b, a := c.Floats()
	ctx.SetRGBA(r, g, b, a)
}

func toRGBA(c protocol.Color) gg.RGBA {
	r, g, b, a := c.Floats()
	return gg.RGBA{R: r, G: g, B: b, A: a}
}
