// FilePath: internal/anomaly/hub.go
package anomaly

import (
	"context"
	"sync"

	nuts "github.com/vaudience/go-nuts"
)

// Hub fans monitor events out to subscribers. A subscriber whose buffer is
// full misses the event instead of blocking the monitor.
type Hub struct {
	buffer int
	mu     sync.Mutex
	subs   map[string]chan Event
	closed bool
}

func NewHub(buffer int) *Hub {
	return &Hub{buffer: buffer, subs: make(map[string]chan Event)}
}

func (h *Hub) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, h.buffer)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch
	}
	id := nuts.NID("sub", 8)
	h.subs[id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.remove(id)
	}()
	return ch
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			nuts.L.Warnf("[Monitor] Subscriber %s is too slow, dropped %s event", id, ev.Type)
		}
	}
}

// Close closes every subscriber channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
	h.closed = true
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
