// Package perf records per-session counters, latency histograms and a
// bounded trace of interaction markers.
//
// Every Collector owns a private prometheus registry; sessions never share
// metric state.
package perf

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace            = "photon"
	DefaultTraceCapacity = 4096
)

// Kind names a trace marker.
type Kind string

const (
	KindGetMouseWheel   Kind = "get_mouse_wheel"
	KindSendMouseWheel  Kind = "send_mouse_wheel"
	KindSendClick       Kind = "send_click"
	KindGetPeerMessage  Kind = "get_peer_message"
	KindSendTransaction Kind = "send_transaction"
	KindFrameReady      Kind = "frame_ready"
	KindCallbackAck     Kind = "callback_ack"
)

// Event is one trace marker. LogIDs link interaction markers to the peer's
// correlation batches.
type Event struct {
	At     time.Time `json:"at"`
	Kind   Kind      `json:"kind"`
	LogIDs []uint64  `json:"log_ids,omitempty"`
}

type Collector struct {
	sessionID string
	registry  *prometheus.Registry

	messages      prometheus.Counter
	entries       *prometheus.CounterVec
	rebuilds      prometheus.Counter
	skipped       prometheus.Counter
	transactions  prometheus.Counter
	scrolls       prometheus.Counter
	callbacks     *prometheus.CounterVec
	applyDuration prometheus.Histogram
	sceneDuration prometheus.Histogram
	frameDuration prometheus.Histogram
	ackLatency    prometheus.Histogram
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec

	nextLogID atomic.Uint64

	mu       sync.Mutex
	trace    []Event
	capacity int
	dropped  uint64
}

// NewSessionID returns a fresh random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// New creates a collector whose metrics carry session as a constant label.
// An empty session gets a generated id.
func New(session string) *Collector {
	if session == "" {
		session = NewSessionID()
	}
	labels := prometheus.Labels{"session": session}
	c := &Collector{
		sessionID: session,
		registry:  prometheus.NewRegistry(),
		capacity:  DefaultTraceCapacity,

		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "messages_total",
			Help: "Inbound messages received.", ConstLabels: labels,
		}),
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "engine", Name: "entries_applied_total",
			Help: "Entries applied by kind.", ConstLabels: labels,
		}, []string{"kind"}),
		rebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scene", Name: "rebuilds_total",
			Help: "Scene rebuilds.", ConstLabels: labels,
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scene", Name: "skipped_rebuilds_total",
			Help: "Transactions submitted without a scene rebuild.", ConstLabels: labels,
		}),
		transactions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "render", Name: "transactions_total",
			Help: "Transactions submitted to the backend.", ConstLabels: labels,
		}),
		scrolls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "render", Name: "scroll_commands_total",
			Help: "Direct scroll commands submitted.", ConstLabels: labels,
		}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "input", Name: "callbacks_sent_total",
			Help: "Callback events written to the peer.", ConstLabels: labels,
		}, []string{"key", "policy"}),
		applyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "engine", Name: "apply_duration_seconds",
			Help: "Time to apply one message.", ConstLabels: labels, Buckets: prometheus.DefBuckets,
		}),
		sceneDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "scene", Name: "build_duration_seconds",
			Help: "Time to build one scene.", ConstLabels: labels, Buckets: prometheus.DefBuckets,
		}),
		frameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "render", Name: "frame_duration_seconds",
			Help: "Time to generate one frame.", ConstLabels: labels, Buckets: prometheus.DefBuckets,
		}),
		ackLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "input", Name: "callback_ack_seconds",
			Help: "Time from a sync callback to its correlation id coming back.", ConstLabels: labels,
			Buckets: prometheus.DefBuckets,
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "Total inspection HTTP requests.", ConstLabels: labels,
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help: "Inspection HTTP request duration in seconds.", ConstLabels: labels,
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
	c.registry.MustRegister(
		c.messages, c.entries, c.rebuilds, c.skipped, c.transactions, c.scrolls,
		c.callbacks, c.applyDuration, c.sceneDuration, c.frameDuration, c.ackLatency,
		c.httpRequests, c.httpDuration,
	)
	return c
}

func (c *Collector) SessionID() string {
	return c.sessionID
}

// Registry is served by the inspection surface.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// NextLogID allocates an interaction id. Ids start at 1; 0 means untracked.
func (c *Collector) NextLogID() uint64 {
	return c.nextLogID.Add(1)
}

func (c *Collector) MessageReceived(logIDs []uint64) {
	c.messages.Inc()
	if len(logIDs) > 0 {
		c.record(KindGetPeerMessage, logIDs...)
	}
}

func (c *Collector) EntryApplied(kind string) {
	c.entries.WithLabelValues(kind).Inc()
}

func (c *Collector) ObserveApply(d time.Duration) {
	c.applyDuration.Observe(d.Seconds())
}

func (c *Collector) SceneBuilt(d time.Duration) {
	c.rebuilds.Inc()
	c.sceneDuration.Observe(d.Seconds())
}

func (c *Collector) SceneSkipped() {
	c.skipped.Inc()
}

func (c *Collector) TransactionSent(logIDs []uint64, scrolls int) {
	c.transactions.Inc()
	c.scrolls.Add(float64(scrolls))
	c.record(KindSendTransaction, logIDs...)
}

func (c *Collector) FrameReady(logIDs []uint64, d time.Duration) {
	c.frameDuration.Observe(d.Seconds())
	c.record(KindFrameReady, logIDs...)
}

func (c *Collector) WheelReceived(logID uint64) {
	c.record(KindGetMouseWheel, logID)
}

func (c *Collector) CallbackSent(key, policy string, logID uint64) {
	c.callbacks.WithLabelValues(key, policy).Inc()
	kind := KindSendClick
	if key == "on-wheel" {
		kind = KindSendMouseWheel
	}
	c.record(kind, logID)
}

// CallbackAcked records the round trip of a tracked sync callback.
func (c *Collector) CallbackAcked(logID uint64, latency time.Duration) {
	c.ackLatency.Observe(latency.Seconds())
	c.record(KindCallbackAck, logID)
}

func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusLabel := strconv.Itoa(status)
	c.httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	c.httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// Drain returns the buffered trace and clears it.
func (c *Collector) Drain() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.trace
	c.trace = nil
	return out
}

// Dropped reports how many trace events were discarded because the buffer
// was full.
func (c *Collector) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

func (c *Collector) record(kind Kind, logIDs ...uint64) {
	ev := Event{At: time.Now(), Kind: kind}
	if len(logIDs) > 0 {
		ev.LogIDs = append([]uint64(nil), logIDs...)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.trace) >= c.capacity {
		copy(c.trace, c.trace[1:])
		c.trace = c.trace[:len(c.trace)-1]
		c.dropped++
	}
	c.trace = append(c.trace, ev)
}
