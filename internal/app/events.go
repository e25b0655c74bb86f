package app

import (
	"context"
	"sync"

	"quiz-player/internal/domain"
)

// EventHub is the in-process EventBus.
type EventHub struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.LobbyEvent]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{subscribers: make(map[string]map[chan domain.LobbyEvent]struct{})}
}

// Publish delivers event to every subscriber of its lobby without blocking.
func (h *EventHub) Publish(_ context.Context, event domain.LobbyEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[event.LobbyID] {
		select {
		case ch <- event:
		default:
			// Drop the oldest event so a slow subscriber never blocks publishers.
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
	return nil
}

// Subscribe registers a buffered channel for lobbyID.
func (h *EventHub) Subscribe(_ context.Context, lobbyID string) (<-chan domain.LobbyEvent, func(), error) {
	ch := make(chan domain.LobbyEvent, 8)

	h.mu.Lock()
	subs, ok := h.subscribers[lobbyID]
	if !ok {
		subs = make(map[chan domain.LobbyEvent]struct{})
		h.subscribers[lobbyID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs, ok := h.subscribers[lobbyID]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(h.subscribers, lobbyID)
		}
	}
	return ch, cancel, nil
}

// Subscribers reports how many subscribers a lobby has.
func (h *EventHub) Subscribers(lobbyID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[lobbyID])
}
