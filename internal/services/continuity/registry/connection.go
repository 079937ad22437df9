package registry

import (
	"sync"
	"time"

	"github.com/louisbranch/tablekeep/internal/platform/id"
	"github.com/louisbranch/tablekeep/internal/services/continuity/domain"
)

// ConnectionRegistry is the sole authority for the transport-handle to
// (session, participant) mapping. Other components resolve identity through
// it rather than caching copies.
type ConnectionRegistry struct {
	mu          sync.RWMutex
	connections map[string]domain.Connection

	sessions    *SessionRegistry
	clock       func() time.Time
	idGenerator func() (string, error)
}

// NewConnectionRegistry creates a connection registry that validates session
// existence against the given session registry.
func NewConnectionRegistry(sessions *SessionRegistry) *ConnectionRegistry {
	return &ConnectionRegistry{
		connections: make(map[string]domain.Connection),
		sessions:    sessions,
		clock:       time.Now,
		idGenerator: id.NewID,
	}
}

// Register binds a transport handle to a session participant and returns the
// connection ID. Registration fails with ErrSessionNotFound when the session
// is unknown.
func (r *ConnectionRegistry) Register(sessionID, participantID string, handle domain.Handle) (string, error) {
	if r.sessions != nil {
		known := false
		r.sessions.mu.RLock()
		_, known = r.sessions.sessions[sessionID]
		r.sessions.mu.RUnlock()
		if !known {
			return "", ErrSessionNotFound
		}
	}

	connectionID, err := r.idGenerator()
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.connections[connectionID] = domain.Connection{
		ID:            connectionID,
		SessionID:     sessionID,
		ParticipantID: participantID,
		Handle:        handle,
		ConnectedAt:   r.clock().UTC(),
	}
	r.mu.Unlock()
	return connectionID, nil
}

// Unregister removes a connection. Removing an unknown connection is a no-op.
func (r *ConnectionRegistry) Unregister(connectionID string) {
	r.mu.Lock()
	delete(r.connections, connectionID)
	r.mu.Unlock()
}

// Lookup resolves a connection ID to its connection record.
func (r *ConnectionRegistry) Lookup(connectionID string) (domain.Connection, error) {
	r.mu.RLock()
	conn, ok := r.connections[connectionID]
	r.mu.RUnlock()
	if !ok {
		return domain.Connection{}, ErrConnectionNotFound
	}
	return conn, nil
}

// ListConnections returns all active connections for a session.
func (r *ConnectionRegistry) ListConnections(sessionID string) []domain.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Connection
	for _, conn := range r.connections {
		if conn.SessionID == sessionID {
			out = append(out, conn)
		}
	}
	return out
}

// DropSession removes every connection belonging to a session and returns
// the removed records, used at session teardown.
func (r *ConnectionRegistry) DropSession(sessionID string) []domain.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	var dropped []domain.Connection
	for connectionID, conn := range r.connections {
		if conn.SessionID == sessionID {
			dropped = append(dropped, conn)
			delete(r.connections, connectionID)
		}
	}
	return dropped
}
