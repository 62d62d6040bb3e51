package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gg/text"
	"github.com/rs/zerolog"

	"github.com/danmuck/photon/internal/dom"
	"github.com/danmuck/photon/internal/engine"
	"github.com/danmuck/photon/internal/hittest"
	"github.com/danmuck/photon/internal/logging"
	"github.com/danmuck/photon/internal/perf"
	"github.com/danmuck/photon/internal/protocol"
	"github.com/danmuck/photon/internal/protocol/frame"
	"github.com/danmuck/photon/internal/protocol/session"
	"github.com/danmuck/photon/internal/render"
	"github.com/danmuck/photon/internal/scene"
	"github.com/danmuck/photon/internal/textlayout"
)

var (
	ErrAlreadyRunning = errors.New("client: session already running")
	ErrNotStarted     = errors.New("client: session not started")
)

// Deps are optional collaborators. Zero values are replaced with the
// defaults: a fresh perf collector, a go-text shaper and the gg software
// backend.
type Deps struct {
	Metrics *perf.Collector
	Shaper  textlayout.Shaper
	Backend render.Backend
	// OnFrame runs after every generated frame when the default backend is
	// used.
	OnFrame func(*render.Frame)
}

// faceProvider is implemented by shapers that can hand their face to the
// renderer.
type faceProvider interface {
	Face() text.Face
}

// fontProvider is implemented by shapers whose glyph ids the renderer can
// fill directly.
type fontProvider interface {
	Font() text.ParsedFont
	Size() float64
}

type Client struct {
	cfg Config
	log zerolog.Logger

	conn   net.Conn
	reader *bufio.Reader
	writer *session.Writer
	outbox *session.CallbackOutbox

	mu       sync.Mutex
	doc      *dom.Document
	engine   *engine.Engine
	metrics  *perf.Collector
	backend  render.Backend
	software *render.Software
	closers  []io.Closer

	controller *Controller
	epoch      atomic.Uint64
	running    atomic.Bool

	done      chan struct{}
	errMu     sync.Mutex
	err       error
	closeOnce sync.Once
}

// Dial connects to cfg.Addr, writes the handshake and returns a client that
// has not started reading yet.
func Dial(ctx context.Context, cfg Config, deps Deps) (*Client, error) {
	cfg = cfg.WithDefaults()
	conn, err := session.NewDialer(cfg.Session).Dial(ctx, cfg.Addr)
	if err != nil {
		return nil, err
	}
	if err := session.WriteHandshake(ctx, conn, cfg.Session); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("client: write handshake: %w", err)
	}
	c, err := New(conn, cfg, deps)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

// New wraps an established connection. No handshake is written.
func New(conn net.Conn, cfg Config, deps Deps) (*Client, error) {
	cfg = cfg.WithDefaults()
	c := &Client{
		cfg:    cfg,
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: session.NewWriter(conn, cfg.Session),
		outbox: session.NewCallbackOutbox(cfg.Session.AckTimeout),
		doc:    dom.NewDocument(),
		done:   make(chan struct{}),
	}

	c.metrics = deps.Metrics
	if c.metrics == nil {
		c.metrics = perf.New("")
	}
	c.log = logging.Component("client").With().Str("session_id", c.metrics.SessionID()).Logger()

	shaper := deps.Shaper
	if shaper == nil {
		gt, err := newShaper(cfg)
		if err != nil {
			return nil, err
		}
		shaper = gt
		c.closers = append(c.closers, gt)
	}
	c.engine = engine.New(shaper, c.metrics)

	c.backend = deps.Backend
	if c.backend == nil {
		var face text.Face
		if fp, ok := shaper.(faceProvider); ok {
			face = fp.Face()
		}
		var font text.ParsedFont
		var fontSize float64
		if fp, ok := shaper.(fontProvider); ok {
			font, fontSize = fp.Font(), fp.Size()
		}
		onFrame := deps.OnFrame
		c.software = render.NewSoftware(render.SoftwareConfig{
			Viewport:   cfg.Viewport,
			Background: cfg.Background,
			Font:       font,
			FontSize:   fontSize,
			Face:       face,
			OnFrame: func(f *render.Frame) {
				c.metrics.FrameReady(f.LogIDs, f.Duration)
				if onFrame != nil {
					onFrame(f)
				}
			},
		})
		c.backend = c.software
	}

	c.controller = &Controller{dispatcher: hittest.New(hittest.Deps{
		Lock:    &c.mu,
		Doc:     c.doc,
		Backend: c.backend,
		Writer:  c.writer,
		Metrics: c.metrics,
		Tracker: c.outbox,
	})}
	return c, nil
}

func newShaper(cfg Config) (*textlayout.GoText, error) {
	if cfg.FontFile != "" {
		return textlayout.NewGoTextFromFile(cfg.FontFile, cfg.FontSize)
	}
	return textlayout.NewDefault(cfg.FontSize)
}

// Start runs the reader loop on its own goroutine.
func (c *Client) Start(ctx context.Context) {
	go func() { _ = c.Run(ctx) }()
}

// Run reads and applies messages until the stream ends, an error occurs or
// ctx is cancelled. End-of-stream returns nil.
func (c *Client) Run(ctx context.Context) (err error) {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer func() {
		c.finish(err)
	}()

	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	c.log.Info().Str("addr", c.conn.RemoteAddr().String()).Msg("session started")
	for msg, readErr := range frame.Messages(c.reader, c.cfg.Session.Limits) {
		if readErr != nil {
			c.log.Error().Err(readErr).Msg("session terminated")
			return readErr
		}
		if err := c.ApplyMessage(msg); err != nil {
			c.log.Error().Err(err).Msg("session terminated")
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.log.Info().Msg("peer closed stream")
	return nil
}

// ApplyMessage decodes one inbound message, applies it to the document,
// rebuilds the scene if needed and submits the resulting transaction.
func (c *Client) ApplyMessage(msg []byte) error {
	start := time.Now()
	entries, err := protocol.Decode(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	res, err := c.engine.Apply(c.doc, entries)
	var sc *scene.Scene
	if err == nil && res.NeedsRebuild {
		buildStart := time.Now()
		sc, err = scene.Build(c.doc, c.cfg.Viewport)
		if err == nil {
			c.metrics.SceneBuilt(time.Since(buildStart))
		}
	}
	c.mu.Unlock()

	c.metrics.MessageReceived(res.CorrelationIDs)
	c.metrics.ObserveApply(time.Since(start))
	if err != nil {
		return err
	}
	if !res.NeedsRebuild {
		c.metrics.SceneSkipped()
	}

	now := time.Now()
	for _, p := range c.outbox.Ack(res.CorrelationIDs) {
		c.metrics.CallbackAcked(p.LogID, now.Sub(p.SentAt))
	}
	for _, p := range c.outbox.Expire(now) {
		c.log.Warn().Uint64("log_id", p.LogID).Uint64("node", uint64(p.Node)).Str("key", p.Key).Msg("callback never acknowledged")
	}

	txn := render.Transaction{
		Epoch:         c.epoch.Add(1),
		Scene:         sc,
		Scrolls:       res.Scrolls,
		LogIDs:        res.CorrelationIDs,
		GenerateFrame: true,
	}
	if err := c.backend.Submit(txn); err != nil {
		return fmt.Errorf("client: submit transaction %d: %w", txn.Epoch, err)
	}
	c.metrics.TransactionSent(txn.LogIDs, len(txn.Scrolls))
	return nil
}

func (c *Client) finish(err error) {
	c.errMu.Lock()
	c.err = err
	c.errMu.Unlock()
	c.writer.Close()
	close(c.done)
}

// Done is closed when Run returns.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the session's terminal error, nil for a graceful end.
// Before Run returns it reports ErrNotStarted or nil while running.
func (c *Client) Err() error {
	select {
	case <-c.done:
	default:
		if !c.running.Load() {
			return ErrNotStarted
		}
		return nil
	}
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Close closes the connection and releases owned resources. A running
// session ends with end-of-stream.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writer.Close()
		err = c.conn.Close()
		for _, cl := range c.closers {
			if cerr := cl.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	})
	return err
}

func (c *Client) Controller() *Controller {
	return c.controller
}

func (c *Client) Metrics() *perf.Collector {
	return c.metrics
}

func (c *Client) SessionID() string {
	return c.metrics.SessionID()
}

// Snapshot copies the document under the lock.
func (c *Client) Snapshot() dom.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc.Snapshot()
}

// LastFrame returns the last generated frame of the default backend, or nil.
func (c *Client) LastFrame() *render.Frame {
	if c.software == nil {
		return nil
	}
	return c.software.LastFrame()
}

// PendingCallbacks lists sync callbacks still awaiting their correlation id.
func (c *Client) PendingCallbacks() []session.PendingCallback {
	return c.outbox.List()
}

// Epoch is the number of transactions submitted so far.
func (c *Client) Epoch() uint64 {
	return c.epoch.Load()
}
