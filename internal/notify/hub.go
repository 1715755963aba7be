package notify

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/manav03panchal/medremind/internal/logging"
	"github.com/manav03panchal/medremind/internal/metrics"
	"github.com/manav03panchal/medremind/internal/model"
)

// Sink receives every event emitted on the hub, whether or not the user has
// a live session. Notify must not block.
type Sink interface {
	Notify(e model.Event) bool
}

// Hub is the per-user realtime channel. Sessions subscribe under a user id
// and receive that user's events. Delivery is best-effort: a session whose
// buffer is full misses the event, and events for users with no session are
// not kept.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*Session]struct{}
	sinks    []Sink

	nextID    atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewHub creates an empty hub that also forwards events to sinks.
func NewHub(sinks ...Sink) *Hub {
	return &Hub{
		sessions: make(map[string]map[*Session]struct{}),
		sinks:    sinks,
	}
}

// Session is one live connection subscribed to a user's channel.
type Session struct {
	ID     string
	UserID string

	hub    *Hub
	events chan model.Event
	once   sync.Once
}

// Events returns the session's event stream. It is closed by Close.
func (s *Session) Events() <-chan model.Event {
	return s.events
}

// Close unsubscribes the session. It is safe to call more than once.
func (s *Session) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

// Subscribe registers a new session for userID with the given buffer size.
func (h *Hub) Subscribe(userID string, buffer int) *Session {
	if buffer < 1 {
		buffer = 1
	}
	s := &Session{
		ID:     strconv.FormatUint(h.nextID.Add(1), 10),
		UserID: userID,
		hub:    h,
		events: make(chan model.Event, buffer),
	}

	h.mu.Lock()
	set, ok := h.sessions[userID]
	if !ok {
		set = make(map[*Session]struct{})
		h.sessions[userID] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()

	metrics.SessionsActive.Inc()
	logging.DebugLog("session connected", logging.KeyUserID, userID, "session", s.ID)
	return s
}

// remove drops s and closes its channel. Holding the write lock while
// closing guarantees no emit is sending on it.
func (h *Hub) remove(s *Session) {
	h.mu.Lock()
	if set, ok := h.sessions[s.UserID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.sessions, s.UserID)
		}
	}
	close(s.events)
	h.mu.Unlock()

	metrics.SessionsActive.Dec()
	logging.DebugLog("session disconnected", logging.KeyUserID, s.UserID, "session", s.ID)
}

// Publish delivers a medication_reminder event for alert to the user's
// sessions and sinks. It returns the number of sessions reached.
func (h *Hub) Publish(ctx context.Context, userID string, alert model.Alert) int {
	if ctx.Err() != nil {
		return 0
	}
	return h.Emit(userID, model.NewEvent(model.EventMedicationReminder, userID, alert))
}

// Emit delivers e to every live session of userID without blocking and
// forwards it to the sinks. It returns the number of sessions reached.
func (h *Hub) Emit(userID string, e model.Event) int {
	if e.UserID == "" {
		e.UserID = userID
	}

	h.mu.RLock()
	reached := 0
	for s := range h.sessions[userID] {
		select {
		case s.events <- e:
			reached++
		default:
			h.dropped.Add(1)
			metrics.EventsDropped.Inc()
			logging.Warn("session buffer full, event dropped",
				logging.KeyUserID, userID,
				logging.KeyEvent, string(e.Type),
				"session", s.ID)
		}
	}
	sinks := h.sinks
	h.mu.RUnlock()

	h.delivered.Add(uint64(reached))
	metrics.EventsPublished.WithLabelValues(string(e.Type)).Add(float64(reached))

	for _, sink := range sinks {
		sink.Notify(e)
	}
	return reached
}

// SessionCount returns the number of live sessions of a user.
func (h *Hub) SessionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[userID])
}

// HubStats summarises hub activity.
type HubStats struct {
	Users     int    `json:"users"`
	Sessions  int    `json:"sessions"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
}

// Stats returns current hub statistics.
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := HubStats{
		Users:     len(h.sessions),
		Delivered: h.delivered.Load(),
		Dropped:   h.dropped.Load(),
	}
	for _, set := range h.sessions {
		stats.Sessions += len(set)
	}
	return stats
}

// Close disconnects every session.
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*Session
	for _, set := range h.sessions {
		for s := range set {
			all = append(all, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range all {
		s.Close()
	}
}
