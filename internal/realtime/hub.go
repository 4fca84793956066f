// Package realtime fans committed row changes out to live subscribers such as
// the shopping list websocket feed.
package realtime

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"shopops/backend/internal/domain"
)

const defaultBuffer = 64

// Relay accepts change events from writers and hands them to subscribers.
type Relay interface {
	Publish(ctx context.Context, event domain.ChangeEvent) error
	Subscribe(filter Filter) *Subscription
}

// Filter selects events by table and, optionally, by one column value.
// Empty fields match anything.
type Filter struct {
	Table  string
	Type   string
	Column string
	Value  string
}

func (f Filter) Matches(event domain.ChangeEvent) bool {
	if f.Table != "" && f.Table != event.Table {
		return false
	}
	if f.Type != "" && f.Type != event.Type {
		return false
	}
	if f.Column != "" && (f.Column != event.FilterColumn || f.Value != event.FilterValue) {
		return false
	}
	return true
}

type Subscription struct {
	C <-chan domain.ChangeEvent

	id     uint64
	filter Filter
	ch     chan domain.ChangeEvent
	hub    *Hub
	once   sync.Once
}

// Close detaches the subscription and closes C. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s.id)
	})
}

// Hub is the in-process relay. Delivery never blocks the publisher: a
// subscriber whose buffer is full misses the event and must refetch.
type Hub struct {
	mu      sync.RWMutex
	nextID  uint64
	subs    map[uint64]*Subscription
	buffer  int
	dropped atomic.Int64
	closed  bool
}

func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = defaultBuffer
	}
	return &Hub{subs: make(map[uint64]*Subscription), buffer: buffer}
}

func (h *Hub) Subscribe(filter Filter) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan domain.ChangeEvent, h.buffer)
	h.nextID++
	sub := &Subscription{C: ch, id: h.nextID, filter: filter, ch: ch, hub: h}
	if h.closed {
		close(ch)
		return sub
	}
	h.subs[sub.id] = sub
	return sub
}

func (h *Hub) Publish(_ context.Context, event domain.ChangeEvent) error {
	h.deliver(event)
	return nil
}

func (h *Hub) deliver(event domain.ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if !sub.filter.Matches(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			if n := h.dropped.Add(1); n == 1 || n%100 == 0 {
				log.Printf("[realtime] WARN: subscriber %d is slow, dropped %s %s (total dropped %d)", sub.id, event.Type, event.Table, n)
			}
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close ends every subscription. Later subscriptions are returned closed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		close(sub.ch)
		delete(h.subs, id)
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	close(sub.ch)
}
