package session

import (
	"sort"
	"sync"
	"time"

	"github.com/danmuck/photon/internal/protocol"
)

// PendingCallback tracks one sync callback awaiting its log id in a
// correlation batch.
type PendingCallback struct {
	LogID      uint64
	Node       protocol.NodeID
	Key        string
	SentAt     time.Time
	DeadlineAt time.Time
}

// CallbackOutbox stores pending sync callbacks by log id.
type CallbackOutbox struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[uint64]PendingCallback
}

func NewCallbackOutbox(ttl time.Duration) *CallbackOutbox {
	return &CallbackOutbox{
		ttl:   ttl,
		items: make(map[uint64]PendingCallback),
	}
}

// Track records a sent callback. Log id 0 is never tracked.
func (o *CallbackOutbox) Track(logID uint64, node protocol.NodeID, key string, at time.Time) {
	if logID == 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items[logID] = PendingCallback{
		LogID:      logID,
		Node:       node,
		Key:        key,
		SentAt:     at,
		DeadlineAt: at.Add(o.ttl),
	}
}

// Ack resolves every tracked id in ids and returns the resolved entries.
func (o *CallbackOutbox) Ack(ids []uint64) []PendingCallback {
	if len(ids) == 0 {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []PendingCallback
	for _, id := range ids {
		if item, ok := o.items[id]; ok {
			out = append(out, item)
			delete(o.items, id)
		}
	}
	return out
}

// Expire drops entries whose deadline is before now and returns them.
func (o *CallbackOutbox) Expire(now time.Time) []PendingCallback {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []PendingCallback
	for id, item := range o.items {
		if o.ttl > 0 && item.DeadlineAt.Before(now) {
			out = append(out, item)
			delete(o.items, id)
		}
	}
	sortPending(out)
	return out
}

func (o *CallbackOutbox) Get(logID uint64) (PendingCallback, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	item, ok := o.items[logID]
	return item, ok
}

func (o *CallbackOutbox) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.items)
}

func (o *CallbackOutbox) List() []PendingCallback {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]PendingCallback, 0, len(o.items))
	for _, item := range o.items {
		out = append(out, item)
	}
	sortPending(out)
	return out
}

func sortPending(items []PendingCallback) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].SentAt.Equal(items[j].SentAt) {
			return items[i].LogID < items[j].LogID
		}
		return items[i].SentAt.Before(items[j].SentAt)
	})
}
