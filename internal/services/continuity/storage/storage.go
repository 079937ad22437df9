// Package storage defines persistence contracts for the continuity service.
//
// Live session state is held in memory only; the store records an
// operational journal of continuity events for audit and debugging.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested journal record is missing.
var ErrNotFound = errors.New("record not found")

// EntryKind identifies one journal event type.
type EntryKind string

const (
	// EntryKindParticipantDisconnected records a connection loss.
	EntryKindParticipantDisconnected EntryKind = "participant.disconnected"
	// EntryKindParticipantReconnected records a successful reconnect.
	EntryKindParticipantReconnected EntryKind = "participant.reconnected"
	// EntryKindParticipantLeft records a voluntary departure.
	EntryKindParticipantLeft EntryKind = "participant.left"
	// EntryKindBotTakeover records a bot assuming a seat.
	EntryKindBotTakeover EntryKind = "bot.takeover"
	// EntryKindControlResumed records a human reclaiming a seat.
	EntryKindControlResumed EntryKind = "control.resumed"
	// EntryKindLeaderChanged records a host migration.
	EntryKindLeaderChanged EntryKind = "leader.changed"
	// EntryKindSessionClosed records a session teardown.
	EntryKindSessionClosed EntryKind = "session.closed"
	// EntryKindQueueOverflow records replay entries dropped by eviction.
	EntryKindQueueOverflow EntryKind = "queue.overflow"
	// EntryKindAgentFault records a bot decision failure.
	EntryKindAgentFault EntryKind = "agent.fault"
)

// JournalEntry stores one continuity event.
type JournalEntry struct {
	ID            string
	SessionID     string
	ParticipantID string
	Kind          EntryKind
	DetailJSON    string
	CreatedAt     time.Time
}

// JournalStore persists continuity journal entries.
type JournalStore interface {
	AppendEntry(ctx context.Context, entry JournalEntry) error
	ListEntriesBySession(ctx context.Context, sessionID string, limit int) ([]JournalEntry, error)
}
