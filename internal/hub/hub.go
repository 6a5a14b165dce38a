package hub

import (
	"auctionhouse/internal/protocol"
	"sync"

	"go.uber.org/zap"
)

// Session is one connected client as seen by the broadcaster. Send must be
// safe to call concurrently with the session's own replies.
type Session interface {
	ID() string
	Send(env protocol.Envelope) error
	Close() error
}

// Hub keeps the set of live sessions.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewHub() *Hub { return &Hub{sessions: map[string]Session{}} }

func (h *Hub) Join(s Session) {
	h.mu.Lock()
	h.sessions[s.ID()] = s
	h.mu.Unlock()
	zap.L().Debug("hub.join", zap.String("session_id", s.ID()))
}

// Leave drops the session. It does not close it; the owner does that after
// leaving.
func (h *Hub) Leave(id string) {
	h.mu.Lock()
	delete(h.sessions, id)
	h.mu.Unlock()
	zap.L().Debug("hub.leave", zap.String("session_id", id))
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Sessions returns a snapshot of the live sessions.
func (h *Hub) Sessions() []Session {
	h.mu.RLock()
	out := make([]Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	h.mu.RUnlock()
	return out
}

// Broadcast sends env to every session and returns how many received it.
// Sessions whose sink fails are removed and closed; the rest still get the
// message.
func (h *Hub) Broadcast(env protocol.Envelope) int {
	// Take a quick snapshot, do the I/O outside the lock.
	sessions := h.Sessions()

	var failed []Session
	for _, s := range sessions {
		if err := s.Send(env); err != nil {
			zap.L().Warn("hub.send_failed", zap.String("session_id", s.ID()), zap.Error(err))
			failed = append(failed, s)
		}
	}
	for _, s := range failed {
		h.Leave(s.ID())
		_ = s.Close()
	}
	return len(sessions) - len(failed)
}

// CloseAll empties the hub and closes every session.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = map[string]Session{}
	h.mu.Unlock()

	for _, s := range sessions {
		_ = s.Close()
	}
}
