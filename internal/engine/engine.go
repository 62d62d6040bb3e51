// Package engine applies decoded entries to a document in stream order.
//
// Ownership boundary:
// - operation semantics per node variant
// - rebuild/skip decision and direct scroll commands
// - desync classification of contract violations
//
// Callers hold the document lock for the duration of Apply.
package engine

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/danmuck/photon/internal/dom"
	"github.com/danmuck/photon/internal/logging"
	"github.com/danmuck/photon/internal/perf"
	"github.com/danmuck/photon/internal/protocol"
	"github.com/danmuck/photon/internal/scene"
	"github.com/danmuck/photon/internal/textlayout"
)

var (
	// ErrProtocolDesync means the peer and the local document disagree. The
	// session cannot continue; already-applied entries are not rolled back.
	ErrProtocolDesync  = errors.New("engine: protocol desync")
	ErrUnknownNodeType = errors.New("engine: unknown node type")
)

// Scroll-frame attributes.
const (
	AttrPosition       = "position"
	AttrContent        = "content"
	AttrScrollPosition = "scroll-position"
)

// Container and text attributes.
const (
	AttrRect        = "rect"
	AttrColor       = "color"
	AttrBorderColor = "border-color"
	AttrOnClick     = "on-click"
	AttrOnWheel     = "on-wheel"
	AttrText        = "text"
	AttrOrigin      = "origin"
)

// Result summarises one Apply call.
type Result struct {
	NeedsRebuild   bool
	CorrelationIDs []uint64
	Scrolls        []scene.ScrollCommand
	Applied        int
}

type Engine struct {
	shaper  textlayout.Shaper
	metrics *perf.Collector
	log     zerolog.Logger
}

// New returns an engine. A nil shaper leaves text unshaped; a nil collector
// disables metrics.
func New(shaper textlayout.Shaper, metrics *perf.Collector) *Engine {
	return &Engine{
		shaper:  shaper,
		metrics: metrics,
		log:     logging.Component("engine"),
	}
}

// Apply runs entries in order. On error the returned Result reflects the
// entries applied before the failing one.
func (e *Engine) Apply(doc *dom.Document, entries []protocol.Entry) (Result, error) {
	var res Result
	for i, entry := range entries {
		var (
			rebuild bool
			err     error
			kind    string
		)
		switch op := entry.(type) {
		case protocol.CorrelationBatch:
			res.CorrelationIDs = op.IDs
			kind = "correlation"
		case protocol.MakeNode:
			rebuild, err = e.makeNode(doc, op)
		case protocol.Destroy:
			rebuild, err = true, doc.Destroy(op.Node)
		case protocol.Add:
			rebuild, err = e.add(doc, op)
		case protocol.Remove:
			rebuild, err = e.remove(doc, op)
		case protocol.SetAttr:
			rebuild, err = e.setAttr(doc, op, &res)
		default:
			err = fmt.Errorf("unsupported entry %T", entry)
		}
		if err != nil {
			return res, fmt.Errorf("%w: entry %d: %w", ErrProtocolDesync, i, err)
		}
		if op, ok := entry.(protocol.Operation); ok {
			kind = string(op.Type())
		}
		res.NeedsRebuild = res.NeedsRebuild || rebuild
		res.Applied++
		if e.metrics != nil {
			e.metrics.EntryApplied(kind)
		}
	}
	return res, nil
}

func (e *Engine) makeNode(doc *dom.Document, op protocol.MakeNode) (bool, error) {
	if _, err := doc.Create(op.Node, op.NodeType); err != nil {
		if errors.Is(err, dom.ErrUnknownType) {
			return false, fmt.Errorf("%w: %w", ErrUnknownNodeType, err)
		}
		return false, err
	}
	return true, nil
}

func (e *Engine) add(doc *dom.Document, op protocol.Add) (bool, error) {
	if op.Attr != protocol.AttrChildren {
		e.log.Debug().Uint64("node", uint64(op.Node)).Str("attr", op.Attr).Msg("add on non-list attribute ignored")
		return true, nil
	}
	child, err := protocol.ParseNodeRef(op.Value)
	if err != nil {
		return false, err
	}
	return true, doc.AddChild(op.Node, op.Index, child)
}

func (e *Engine) remove(doc *dom.Document, op protocol.Remove) (bool, error) {
	if op.Attr != protocol.AttrChildren {
		e.log.Debug().Uint64("node", uint64(op.Node)).Str("attr", op.Attr).Msg("remove on non-list attribute ignored")
		return true, nil
	}
	child, err := protocol.ParseNodeRef(op.Value)
	if err != nil {
		return false, err
	}
	if _, err := doc.RemoveChild(op.Node, child); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) setAttr(doc *dom.Document, op protocol.SetAttr, res *Result) (bool, error) {
	n, ok := doc.Node(op.Node)
	if !ok {
		return false, fmt.Errorf("%w: %d", dom.ErrNodeNotFound, op.Node)
	}
	switch v := n.Variant.(type) {
	case *dom.Root:
		return true, nil
	case *dom.Container:
		return true, e.setContainer(v, op)
	case *dom.Text:
		return true, e.setText(v, op)
	case *dom.Scroll:
		return e.setScroll(v, op, res)
	default:
		return true, nil
	}
}

func (e *Engine) setContainer(v *dom.Container, op protocol.SetAttr) error {
	var err error
	switch op.Attr {
	case AttrRect:
		v.Rect, err = protocol.ParseRect(op.Value)
	case AttrColor:
		v.Color, err = protocol.ParseColor(op.Value)
	case AttrBorderColor:
		v.BorderColor, err = protocol.ParseColor(op.Value)
	case AttrOnClick:
		v.OnClick, err = protocol.ParseCallback(op.Value)
	case AttrOnWheel:
		v.OnWheel, err = protocol.ParseCallback(op.Value)
	default:
		e.ignored(op)
	}
	return err
}

func (e *Engine) setText(v *dom.Text, op protocol.SetAttr) error {
	switch op.Attr {
	case AttrText:
		content, err := protocol.ParseString(op.Value)
		if err != nil {
			return err
		}
		v.Content = content
		v.Layout = e.shape(op.Node, content)
	case AttrOrigin:
		origin, err := protocol.ParsePoint(op.Value)
		if err != nil {
			return err
		}
		v.Origin = origin
	case AttrColor:
		color, err := protocol.ParseColor(op.Value)
		if err != nil {
			return err
		}
		v.Color = color
	default:
		e.ignored(op)
	}
	return nil
}

// setScroll reports false for scroll-position: the offset is applied
// directly by the backend without a scene rebuild.
func (e *Engine) setScroll(v *dom.Scroll, op protocol.SetAttr, res *Result) (bool, error) {
	var err error
	switch op.Attr {
	case AttrPosition:
		v.Position, err = protocol.ParseRect(op.Value)
	case AttrContent:
		v.Content, err = protocol.ParseRect(op.Value)
	case AttrOnWheel:
		v.OnWheel, err = protocol.ParseCallback(op.Value)
	case AttrScrollPosition:
		offset, perr := protocol.ParsePoint(op.Value)
		if perr != nil {
			return false, perr
		}
		v.Offset = offset
		res.Scrolls = append(res.Scrolls, scene.ScrollCommand{Node: op.Node, Offset: offset})
		return false, nil
	default:
		e.ignored(op)
	}
	return true, err
}

func (e *Engine) shape(node protocol.NodeID, content string) *textlayout.Layout {
	if e.shaper == nil {
		return nil
	}
	layout, err := e.shaper.Layout(content)
	if err != nil {
		e.log.Warn().Err(err).Uint64("node", uint64(node)).Msg("text shaping failed; node renders without glyphs")
		return nil
	}
	return layout
}

func (e *Engine) ignored(op protocol.SetAttr) {
	e.log.Debug().Uint64("node", uint64(op.Node)).Str("attr", op.Attr).Msg("unknown attribute ignored")
}
