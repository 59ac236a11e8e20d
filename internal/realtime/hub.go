package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/timmy/sportsync/internal/logger"
)

// EventKind names an invalidation event.
type EventKind string

const (
	EventAlertNew      EventKind = "alert:new"
	EventAlertResolved EventKind = "alert:resolved"
	EventSyncCompleted EventKind = "sync:completed"
	EventRunFinished   EventKind = "run:finished"
)

// Scope keys tell subscribers which views to refetch.
const (
	ScopeAlerts       = "alerts"
	ScopeDashboard    = "dashboard"
	ScopeBatches      = "batches"
	ScopeAvailability = "availability"
	ScopeJobs         = "jobs"
)

// Event is an invalidation signal. It identifies what changed and carries no
// state of record; subscribers refetch.
type Event struct {
	Type  EventKind `json:"type"`
	ID    uint      `json:"id"`
	Scope []string  `json:"scope,omitempty"`
	TS    time.Time `json:"ts"`
}

// Publisher fans out invalidation events.
type Publisher interface {
	Publish(kind EventKind, id uint, scopeKeys ...string)
}

// Session is one subscribed operator connection.
type Session interface {
	ID() string
	// Send queues an event without blocking and reports whether it was accepted.
	Send(Event) bool
	Close()
}

// Hub is the broadcast group of operator sessions.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{sessions: make(map[string]Session)}
}

// Register adds a session to the broadcast group.
func (h *Hub) Register(s Session) {
	h.mu.Lock()
	h.sessions[s.ID()] = s
	total := len(h.sessions)
	h.mu.Unlock()

	logger.With(logger.Fields{
		logger.FieldSessionID: s.ID(),
		logger.FieldCount:     total,
	}).Debug(context.Background(), "[Realtime] Session registered")
}

// Unregister removes and closes a session. Unknown ids are ignored.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	s, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()

	if ok {
		s.Close()
		logger.With(logger.Fields{logger.FieldSessionID: id}).Debug(context.Background(), "[Realtime] Session unregistered")
	}
}

// Count returns the number of subscribed sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Publish sends an event to every session without blocking. A session whose
// buffer is full is dropped; it resynchronizes when it reconnects.
func (h *Hub) Publish(kind EventKind, id uint, scopeKeys ...string) {
	event := Event{
		Type:  kind,
		ID:    id,
		Scope: scopeKeys,
		TS:    time.Now().UTC(),
	}

	h.mu.RLock()
	var dropped []string
	for sid, s := range h.sessions {
		if !s.Send(event) {
			dropped = append(dropped, sid)
		}
	}
	delivered := len(h.sessions) - len(dropped)
	h.mu.RUnlock()

	for _, sid := range dropped {
		logger.Warn("[Realtime] Dropping slow session %s", sid)
		h.Unregister(sid)
	}

	logger.With(logger.Fields{
		logger.FieldCount: delivered,
	}).Debug(context.Background(), "[Realtime] Published %s id=%d", kind, id)
}

// Close disconnects every session.
func (h *Hub) Close() {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[string]Session)
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
