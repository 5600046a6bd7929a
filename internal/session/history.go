// Package session stores conversation history per session id.
package session

import (
	"sync"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
)

type conversation struct {
	mu      sync.Mutex
	turns   domain.ConversationHistory
	touched time.Time
	// deleted is set once the conversation left the map; writers holding a
	// stale pointer must look the session up again
	deleted bool
}

// add appends a turn unless the conversation was deleted meanwhile.
func (c *conversation) add(turn domain.ConversationTurn, at time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deleted {
		return false
	}
	c.turns = append(c.turns, turn)
	c.touched = at
	return true
}

// History keeps ordered turns per session. Each session has its own lock;
// the map lock is only held to look up or create a session.
type History struct {
	mu       sync.RWMutex
	sessions map[string]*conversation
	now      func() time.Time
}

// NewHistory creates an empty history store
func NewHistory() *History {
	return &History{
		sessions: make(map[string]*conversation),
		now:      time.Now,
	}
}

func (h *History) lookup(sessionID string, create bool) *conversation {
	h.mu.RLock()
	c, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if ok || !create {
		return c
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok = h.sessions[sessionID]; ok {
		return c
	}
	c = &conversation{touched: h.now()}
	h.sessions[sessionID] = c
	return c
}

// Append adds a turn to the end of the session's history.
func (h *History) Append(sessionID string, turn domain.ConversationTurn) {
	if turn.AskedAt.IsZero() {
		turn.AskedAt = h.now()
	}

	for {
		if h.lookup(sessionID, true).add(turn, h.now()) {
			return
		}
	}
}

// Get returns a copy of the session's turns and counts as activity for
// Sweep. Unknown sessions yield an empty history.
func (h *History) Get(sessionID string) domain.ConversationHistory {
	c := h.lookup(sessionID, false)
	if c == nil {
		return domain.ConversationHistory{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.touched = h.now()
	out := make(domain.ConversationHistory, len(c.turns))
	copy(out, c.turns)
	return out
}

// Recent returns at most n of the latest turns, oldest first.
func (h *History) Recent(sessionID string, n int) domain.ConversationHistory {
	return h.Get(sessionID).Last(n)
}

// Len returns the number of turns stored for a session
func (h *History) Len(sessionID string) int {
	c := h.lookup(sessionID, false)
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// Exists reports whether a session has been seen
func (h *History) Exists(sessionID string) bool {
	return h.lookup(sessionID, false) != nil
}

// Delete drops a session. It reports whether the session existed.
func (h *History) Delete(sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.sessions[sessionID]
	if !ok {
		return false
	}
	c.mu.Lock()
	c.deleted = true
	c.mu.Unlock()
	delete(h.sessions, sessionID)
	return true
}

// Sweep removes sessions not touched since now minus idle and returns how
// many were removed.
func (h *History) Sweep(idle time.Duration) int {
	cutoff := h.now().Add(-idle)

	h.mu.Lock()
	defer h.mu.Unlock()

	removed := 0
	for id, c := range h.sessions {
		c.mu.Lock()
		stale := c.touched.Before(cutoff)
		if stale {
			c.deleted = true
		}
		c.mu.Unlock()
		if stale {
			delete(h.sessions, id)
			removed++
		}
	}
	return removed
}

// Count returns the number of live sessions
func (h *History) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
