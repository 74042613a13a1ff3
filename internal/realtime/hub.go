package realtime

import (
	"context"
	"sync"
)

type subscriber struct {
	match func(Event) bool
	ch    chan struct{}
}

// Hub fans one event stream out to many subscribers as refresh signals
type Hub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

// Run forwards events until ctx is done or events is closed
func (h *Hub) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.Publish(ev)
		}
	}
}

// Publish signals every subscriber whose filter accepts ev
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subs {
		if s.match != nil && !s.match(ev) {
			continue
		}
		select {
		case s.ch <- struct{}{}:
		default:
		}
	}
}

// Subscribe returns a signal channel for events accepted by match and a
// function that ends the subscription.
func (h *Hub) Subscribe(match func(Event) bool) (<-chan struct{}, func()) {
	s := &subscriber{match: match, ch: make(chan struct{}, 1)}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, s)
			h.mu.Unlock()
		})
	}
}

// Len returns the number of subscribers
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
