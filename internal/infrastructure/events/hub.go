package events

import (
	"sync"

	"diagrammer/internal/domain/entity"
	"diagrammer/internal/domain/repository"
)

const clientBuffer = 16

// Hub fans status events out to subscribers. Slow subscribers miss events
// instead of blocking publishers.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan entity.StatusEvent]struct{}
}

var _ repository.EventPublisher = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		clients: make(map[chan entity.StatusEvent]struct{}),
	}
}

func (h *Hub) Subscribe() chan entity.StatusEvent {
	ch := make(chan entity.StatusEvent, clientBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan entity.StatusEvent) {
	h.mu.Lock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
	h.mu.Unlock()
}

func (h *Hub) Publish(ev entity.StatusEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
