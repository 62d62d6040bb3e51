// Package textlayout shapes node text into positioned glyph runs.
//
// Layouts are computed at origin (0,0) with the first line's baseline at
// Layout.Baseline; callers translate by the node's origin when drawing.
package textlayout

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/danmuck/photon/internal/protocol"
)

var ErrNoFace = errors.New("textlayout: no font face")

const (
	DefaultFontSize  = 16.0
	DefaultCacheSize = 512
)

// Glyph is one positioned glyph. X and Y are relative to the layout origin,
// with Y on the baseline.
type Glyph struct {
	ID      uint16  `json:"id"`
	Cluster int     `json:"cluster"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Advance float64 `json:"advance"`
}

// Layout is the shaped form of a string.
type Layout struct {
	Text     string        `json:"text"`
	Glyphs   []Glyph       `json:"glyphs"`
	Bounds   protocol.Rect `json:"bounds"`
	Baseline float64       `json:"baseline"`
}

// Shaper turns content into a Layout. Implementations must be safe for
// concurrent use.
type Shaper interface {
	Layout(content string) (*Layout, error)
}

// GoText shapes with go-text/typesetting through gg's text package and caches
// layouts by content.
type GoText struct {
	source *text.FontSource
	face   text.Face
	size   float64
	shaper *text.GoTextShaper

	mu       sync.Mutex
	cache    map[string]*Layout
	order    []string
	capacity int
}

// NewDefault shapes with the embedded Go Regular font.
func NewDefault(size float64) (*GoText, error) {
	source, err := text.NewFontSource(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("textlayout: load default font: %w", err)
	}
	return New(source, size, DefaultCacheSize), nil
}

func NewGoTextFromFile(path string, size float64) (*GoText, error) {
	source, err := text.NewFontSourceFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("textlayout: load font %s: %w", path, err)
	}
	return New(source, size, DefaultCacheSize), nil
}

func New(source *text.FontSource, size float64, cacheSize int) *GoText {
	if size <= 0 {
		size = DefaultFontSize
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	g := &GoText{
		source:   source,
		size:     size,
		shaper:   text.NewGoTextShaper(),
		cache:    make(map[string]*Layout, cacheSize),
		capacity: cacheSize,
	}
	if source != nil {
		g.face = source.Face(size)
	}
	return g
}

// Face exposes the face used for shaping so renderers draw with the same
// metrics.
func (g *GoText) Face() text.Face {
	return g.face
}

// Font is the parsed font behind Face, or nil.
func (g *GoText) Font() text.ParsedFont {
	if g.source == nil {
		return nil
	}
	return g.source.Parsed()
}

func (g *GoText) Size() float64 {
	return g.size
}

func (g *GoText) Close() error {
	if g.source == nil {
		return nil
	}
	return g.source.Close()
}

// Layout returns the cached layout for content, shaping it on a miss. The
// returned value is shared and must not be mutated.
func (g *GoText) Layout(content string) (*Layout, error) {
	if g.face == nil {
		return nil, ErrNoFace
	}
	g.mu.Lock()
	if l, ok := g.cache[content]; ok {
		g.mu.Unlock()
		return l, nil
	}
	g.mu.Unlock()

	l := g.shape(content)

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.cache[content]; !ok {
		if len(g.order) >= g.capacity {
			oldest := g.order[0]
			g.order = g.order[1:]
			delete(g.cache, oldest)
		}
		g.cache[content] = l
		g.order = append(g.order, content)
	}
	return g.cache[content], nil
}

func (g *GoText) CacheLen() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.cache)
}

func (g *GoText) shape(content string) *Layout {
	m := g.face.Metrics()
	l := &Layout{
		Text:     content,
		Baseline: m.Ascent,
	}
	shaped := g.shaper.Shape(content, g.face)
	l.Glyphs = make([]Glyph, 0, len(shaped))
	width := 0.0
	for _, sg := range shaped {
		l.Glyphs = append(l.Glyphs, Glyph{
			ID:      uint16(sg.GID),
			Cluster: sg.Cluster,
			X:       sg.X,
			Y:       m.Ascent + sg.Y,
			Advance: sg.XAdvance,
		})
		if end := sg.X + sg.XAdvance; end > width {
			width = end
		}
	}
	l.Bounds = protocol.Rect{Width: width, Height: m.LineHeight()}
	return l
}
