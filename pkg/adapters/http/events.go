package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/skillflow/internal/logging"
)

// Event names sent on /events.
const (
	EventDiff  = "diff"
	EventEnded = "ended"
)

// DefaultKeepAlive is the interval between SSE keep-alive comments.
const DefaultKeepAlive = 15 * time.Second

// Event is one server-sent event for a session. ID increases per manager.
type Event struct {
	ID   uint64
	Name string
	Data string
}

// StreamManager fans session events out to SSE subscribers.
type StreamManager struct {
	mu     sync.RWMutex
	subs   map[string]map[chan Event]struct{}
	seq    atomic.Uint64
	buffer int
	logger *slog.Logger
}

// NewStreamManager creates a manager whose subscribers buffer up to 16 events.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		subs:   make(map[string]map[chan Event]struct{}),
		buffer: 16,
		logger: logging.NewNop(),
	}
}

// Subscribe registers a channel for the session's events.
// The returned func unsubscribes and closes the channel; it is safe to call twice.
func (sm *StreamManager) Subscribe(sessionID string) (<-chan Event, func()) {
	ch := make(chan Event, sm.buffer)

	sm.mu.Lock()
	if sm.subs[sessionID] == nil {
		sm.subs[sessionID] = make(map[chan Event]struct{})
	}
	sm.subs[sessionID][ch] = struct{}{}
	sm.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			delete(sm.subs[sessionID], ch)
			if len(sm.subs[sessionID]) == 0 {
				delete(sm.subs, sessionID)
			}
			close(ch)
		})
	}
}

// Subscribers returns the number of open subscriptions for a session.
func (sm *StreamManager) Subscribers(sessionID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subs[sessionID])
}

// Broadcast stamps an ID on the event and delivers it to every subscriber of
// the session. A subscriber with a full buffer misses the event; the turn
// never blocks on a slow client.
func (sm *StreamManager) Broadcast(sessionID, name, data string) {
	ev := Event{ID: sm.seq.Add(1), Name: name, Data: data}

	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for ch := range sm.subs[sessionID] {
		select {
		case ch <- ev:
		default:
			sm.logger.Warn("SSE: Client buffer full, dropping event", "session_id", sessionID, "event", name)
		}
	}
}

// SubscribeEvents handles the GET /events request (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	events, cancel := s.Streams.Subscribe(sessionID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	keepAlive := time.NewTicker(s.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected", "session_id", sessionID)
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.ID, ev.Name, ev.Data)
			flusher.Flush()
		}
	}
}
