package app

import (
	"context"
	"sync"

	"ecoquest-service/internal/domain"
)

// EventHub fans gamification events out to a user's live subscribers.
type EventHub struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.Event]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{subscribers: make(map[string]map[chan domain.Event]struct{})}
}

// Subscribe returns a channel receiving the user's events.
// The caller must invoke the returned cancel function to avoid leaks.
func (h *EventHub) Subscribe(userID string) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, 8)

	h.mu.Lock()
	subs, ok := h.subscribers[userID]
	if !ok {
		subs = make(map[chan domain.Event]struct{})
		h.subscribers[userID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subscribers[userID]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(h.subscribers, userID)
		}
	}
	return ch, cancel
}

// Publish delivers event to every subscriber of event.UserID without blocking.
// A full subscriber loses its oldest pending event.
func (h *EventHub) Publish(_ context.Context, event domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[event.UserID] {
		select {
		case ch <- event:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}

// Subscribers reports how many channels are open for userID.
func (h *EventHub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[userID])
}
