package domain

import (
	"context"
	"time"
)

// Handle delivers outbound notices to one connected client. Implementations
// must be safe for concurrent use; the transport layer serializes writes per
// connection.
type Handle interface {
	Deliver(ctx context.Context, notice Notice) error
}

// Connection binds a transport handle to a (session, participant) identity.
// Connections are created on handshake and destroyed on disconnect or
// explicit leave; they never outlive the transport socket.
type Connection struct {
	ID            string
	SessionID     string
	ParticipantID string
	Handle        Handle
	ConnectedAt   time.Time
}
