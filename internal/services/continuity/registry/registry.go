// Package registry owns the in-memory session and connection state. It is
// the single source of truth: components resolve sessions and connection
// identity through it instead of caching references across suspension
// points.
package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/louisbranch/tablekeep/internal/platform/id"
	"github.com/louisbranch/tablekeep/internal/services/continuity/domain"
)

var (
	// ErrSessionNotFound indicates the session is unknown to the registry.
	ErrSessionNotFound = errors.New("session not found")
	// ErrConnectionNotFound indicates the connection is unknown to the registry.
	ErrConnectionNotFound = errors.New("connection not found")
)

type sessionEntry struct {
	mu      sync.Mutex
	session *domain.GameSession
}

// SessionRegistry indexes live game sessions by ID and serializes all
// mutation of a session through a per-session lock. Operations on different
// sessions proceed in parallel.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry

	clock       func() time.Time
	idGenerator func() (string, error)
}

// NewSessionRegistry creates an empty session registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions:    make(map[string]*sessionEntry),
		clock:       time.Now,
		idGenerator: id.NewID,
	}
}

// CreateSession creates and indexes a new game session.
func (r *SessionRegistry) CreateSession(input domain.CreateSessionInput) (*domain.GameSession, error) {
	session, err := domain.CreateSession(input, r.clock, r.idGenerator)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions[session.ID] = &sessionEntry{session: session}
	r.mu.Unlock()
	return session, nil
}

// WithSession runs fn with the session's lock held. All reads and writes of
// session state must go through here so concurrent disconnect, reconnect and
// cleanup never interleave their critical sections on the same session.
func (r *SessionRegistry) WithSession(sessionID string, fn func(*domain.GameSession) error) error {
	r.mu.RLock()
	entry, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	// The session may have been removed while we waited for its lock. A
	// reconnect racing the reaper must observe the removal, not a zombie.
	r.mu.RLock()
	current, stillKnown := r.sessions[sessionID]
	r.mu.RUnlock()
	if !stillKnown || current != entry {
		return ErrSessionNotFound
	}

	return fn(entry.session)
}

// RemoveSession drops a session from the registry. Callers must invoke it
// from within WithSession on the same session so removal is serialized with
// other mutations; removal of an unknown session is a no-op.
func (r *SessionRegistry) RemoveSession(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()
}

// SessionIDs returns a snapshot of all known session IDs.
func (r *SessionRegistry) SessionIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.sessions))
	for sessionID := range r.sessions {
		ids = append(ids, sessionID)
	}
	return ids
}

// Len returns the number of known sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
