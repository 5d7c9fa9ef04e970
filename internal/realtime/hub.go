// Package realtime pushes trip and chat changes to connected clients.
package realtime

import (
	"sync"
	"time"
)

// Tables that publish changes.
const (
	TableTrips        = "trips"
	TableChatMessages = "chat_messages"
)

// Change types.
const (
	Insert = "INSERT"
	Update = "UPDATE"
	Delete = "DELETE"
)

// Event is one change notification.
type Event struct {
	Table     string    `json:"table"`
	Type      string    `json:"type"`
	OwnerID   string    `json:"-"`
	SessionID string    `json:"session_id,omitempty"`
	Record    any       `json:"record"`
	At        time.Time `json:"at"`
}

// Filter selects the events a subscriber receives.
type Filter struct {
	Table     string
	OwnerID   string
	SessionID string // chat_messages only
}

// Match reports whether ev passes the filter. Trip events match on owner;
// chat events match on owner and session.
func (f Filter) Match(ev Event) bool {
	if f.Table != ev.Table || f.OwnerID != ev.OwnerID {
		return false
	}
	if f.Table == TableChatMessages {
		return f.SessionID == ev.SessionID
	}
	return true
}

// subscriberBuffer is the number of events a slow subscriber may lag
// before events are dropped for it.
const subscriberBuffer = 64

// Subscription receives filtered events until closed.
type Subscription struct {
	C      <-chan Event
	ch     chan Event
	filter Filter
	hub    *Hub
	once   sync.Once
}

// Close unsubscribes and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}

// Hub fans events out to subscribers.
type Hub struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	dropped func() // called for every event dropped on a full subscriber
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{}), dropped: func() {}}
}

// OnDrop sets a callback for events dropped on full subscribers.
func (h *Hub) OnDrop(fn func()) { h.dropped = fn }

// Subscribe registers a subscriber for events matching f.
func (h *Hub) Subscribe(f Filter) *Subscription {
	ch := make(chan Event, subscriberBuffer)
	s := &Subscription{C: ch, ch: ch, filter: f, hub: h}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.ch)
	}
}

// Publish delivers ev to every matching subscriber without blocking.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if !s.filter.Match(ev) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			h.dropped()
		}
	}
}

// Subscribers returns the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
