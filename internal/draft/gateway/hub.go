package gateway

import (
	"sync"

	"github.com/google/uuid"
	"github.com/manadraft/league/internal/draft/events"
	"github.com/rs/zerolog/log"
)

// Hub is the in-process broadcast channel for session events. Publishing
// never blocks: a subscriber that stops draining loses events rather
// than stalling the pick path, and must reconcile through the state
// endpoint.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]map[*subscription]bool
	bufferSize  int
}

type subscription struct {
	sessionID uuid.UUID
	ch        chan events.SessionEvent
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[uuid.UUID]map[*subscription]bool),
		bufferSize:  64,
	}
}

// Subscribe returns a channel of events for one session plus a cancel
// function. Cancel closes the channel and releases the subscription.
func (h *Hub) Subscribe(sessionID uuid.UUID) (<-chan events.SessionEvent, func()) {
	sub := &subscription{
		sessionID: sessionID,
		ch:        make(chan events.SessionEvent, h.bufferSize),
	}

	h.mu.Lock()
	if h.subscribers[sessionID] == nil {
		h.subscribers[sessionID] = make(map[*subscription]bool)
	}
	h.subscribers[sessionID][sub] = true
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs, exists := h.subscribers[sessionID]; exists {
			if subs[sub] {
				delete(subs, sub)
				close(sub.ch)
				if len(subs) == 0 {
					delete(h.subscribers, sessionID)
				}
			}
		}
	}
	return sub.ch, cancel
}

// Publish fans an event out to every subscriber of its session. Sends
// stay under the read lock: cancel closes channels only under the write
// lock, so a send can never land on a closed channel, and the sends are
// non-blocking so the lock is held only briefly.
func (h *Hub) Publish(event events.SessionEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subscribers[event.SessionID] {
		select {
		case sub.ch <- event:
		default:
			log.Warn().
				Str("session_id", event.SessionID.String()).
				Str("event_type", string(event.Type)).
				Msg("hub subscriber buffer full, dropping event")
		}
	}
}

// SubscriberCount reports active subscriptions for a session.
func (h *Hub) SubscriberCount(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[sessionID])
}
