package domain

import (
	"encoding/json"
	"time"
)

// Priority orders replay queue eviction. Critical entries survive overflow
// while any Normal entry remains.
type Priority int

const (
	// PriorityNormal marks an entry evictable under queue pressure.
	PriorityNormal Priority = iota
	// PriorityCritical marks an entry that must survive overflow while any
	// Normal entry remains.
	PriorityCritical
)

// String returns the lowercase label for a priority.
func (p Priority) String() string {
	if p == PriorityCritical {
		return "critical"
	}
	return "normal"
}

// QueuedMessage is one event retained for a disconnected participant.
// Sequence numbers increase monotonically per participant; flush preserves
// sequence order exactly.
type QueuedMessage struct {
	Sequence   int64           `json:"sequence"`
	Event      string          `json:"event"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Priority   Priority        `json:"priority"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}
