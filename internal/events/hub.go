// Package events carries engine notifications to in-process
// subscribers. Delivery is best-effort per subscriber: a full buffer
// drops the notification for that subscriber only, so a slow consumer
// can never stall monitoring or sweeping.
package events

import (
	"sync"

	"github.com/glebkoxan36/mypip/internal/domain"
)

const subscriberBuffer = 32

// Hub fans domain notifications out to all current subscribers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan domain.Notification]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[chan domain.Notification]struct{}),
	}
}

// Publish delivers n to every subscriber with buffer room. It never
// blocks.
func (h *Hub) Publish(n domain.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers {
		select {
		case ch <- n:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its channel with an
// unsubscribe function. The channel closes on unsubscribe; calling
// unsubscribe more than once is a no-op.
func (h *Hub) Subscribe() (<-chan domain.Notification, func()) {
	ch := make(chan domain.Notification, subscriberBuffer)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, ch)
			close(ch)
			h.mu.Unlock()
		})
	}
	return ch, unsubscribe
}
