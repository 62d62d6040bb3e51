// Package hittest maps user input to callback events for the peer.
//
// The document lock is held only while events are built; hit testing runs
// before it is taken and events are written after it is released.
package hittest

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/photon/internal/dom"
	"github.com/danmuck/photon/internal/logging"
	"github.com/danmuck/photon/internal/perf"
	"github.com/danmuck/photon/internal/protocol"
	"github.com/danmuck/photon/internal/render"
)

// EventWriter delivers one event to the peer atomically.
type EventWriter interface {
	WriteEvent(ctx context.Context, ev protocol.CallbackEvent) error
}

// Tracker records sync callbacks that await a correlation id from the peer.
type Tracker interface {
	Track(logID uint64, node protocol.NodeID, key string, at time.Time)
}

type Deps struct {
	// Lock guards Doc. It is shared with the update goroutine.
	Lock    sync.Locker
	Doc     *dom.Document
	Backend render.Backend
	Writer  EventWriter
	Metrics *perf.Collector
	Tracker Tracker
}

type Dispatcher struct {
	deps Deps
	log  zerolog.Logger
}

func New(deps Deps) *Dispatcher {
	return &Dispatcher{deps: deps, log: logging.Component("hittest")}
}

type pending struct {
	event  protocol.CallbackEvent
	policy protocol.CallbackPolicy
}

// Click reports an on-click event for every hit container with a click
// callback. It returns the number of events written.
func (d *Dispatcher) Click(ctx context.Context, pt protocol.Point) (int, error) {
	hits := d.deps.Backend.HitTest(pt)
	if len(hits) == 0 {
		return 0, nil
	}

	d.deps.Lock.Lock()
	events := make([]pending, 0, len(hits))
	for _, hit := range hits {
		n, ok := d.deps.Doc.Node(hit.Node)
		if !ok {
			d.log.Debug().Uint64("node", uint64(hit.Node)).Msg("hit on destroyed node skipped")
			continue
		}
		policy := dom.ClickPolicy(n.Variant)
		if !policy.Present() {
			continue
		}
		events = append(events, pending{
			event:  protocol.NewCallbackEvent(0, hit.Node, protocol.KeyOnClick, [2]float64{hit.Point.X, hit.Point.Y}),
			policy: policy,
		})
	}
	d.deps.Lock.Unlock()

	return d.send(ctx, events)
}

// Wheel reports an on-wheel event for every hit node with a wheel callback.
// All events of one wheel reading share a fresh log id.
func (d *Dispatcher) Wheel(ctx context.Context, pt protocol.Point, delta WheelDelta) (int, error) {
	var logID uint64
	if d.deps.Metrics != nil {
		logID = d.deps.Metrics.NextLogID()
		d.deps.Metrics.WheelReceived(logID)
	}
	hits := d.deps.Backend.HitTest(pt)
	if len(hits) == 0 {
		return 0, nil
	}
	vec := delta.Vector()

	d.deps.Lock.Lock()
	events := make([]pending, 0, len(hits))
	for _, hit := range hits {
		n, ok := d.deps.Doc.Node(hit.Node)
		if !ok {
			d.log.Debug().Uint64("node", uint64(hit.Node)).Msg("hit on destroyed node skipped")
			continue
		}
		policy := dom.WheelPolicy(n.Variant)
		if !policy.Present() {
			continue
		}
		events = append(events, pending{
			event:  protocol.NewCallbackEvent(logID, hit.Node, protocol.KeyOnWheel, [2]float64{vec.X, vec.Y}),
			policy: policy,
		})
	}
	d.deps.Lock.Unlock()

	return d.send(ctx, events)
}

func (d *Dispatcher) send(ctx context.Context, events []pending) (int, error) {
	sent := 0
	for _, p := range events {
		if err := d.deps.Writer.WriteEvent(ctx, p.event); err != nil {
			d.log.Error().Err(err).Uint64("node", uint64(p.event.Node)).Str("key", p.event.Key).Msg("callback write failed")
			return sent, err
		}
		sent++
		if d.deps.Metrics != nil {
			d.deps.Metrics.CallbackSent(p.event.Key, p.policy.String(), p.event.LogID)
		}
		if p.policy == protocol.CallbackSync && p.event.LogID != 0 && d.deps.Tracker != nil {
			d.deps.Tracker.Track(p.event.LogID, p.event.Node, p.event.Key, time.Now())
		}
	}
	return sent, nil
}
