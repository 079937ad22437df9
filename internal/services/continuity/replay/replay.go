// Package replay buffers events for disconnected participants and flushes
// them, in order, on reconnect.
package replay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/louisbranch/tablekeep/internal/services/continuity/domain"
)

// DefaultMaxQueueSize bounds each participant's replay queue when no
// explicit size is configured.
const DefaultMaxQueueSize = 256

// Queue is one participant's bounded, ordered replay queue. Enqueue and
// Flush are mutually exclusive, so an event racing a reconnect lands
// deterministically before or after the flush boundary, never split.
type Queue struct {
	mu      sync.Mutex
	maxSize int
	nextSeq int64
	entries []domain.QueuedMessage
	evicted int64
}

// NewQueue creates a queue bounded to maxSize entries.
func NewQueue(maxSize int) *Queue {
	if maxSize <= 0 {
		maxSize = DefaultMaxQueueSize
	}
	return &Queue{maxSize: maxSize}
}

// Enqueue appends an event with the next sequence number. When the queue
// exceeds its cap, the oldest Normal entry is evicted; if only Critical
// entries remain, the oldest entry is evicted regardless of priority so the
// cap bounds total memory. The evicted entry, if any, is returned.
func (q *Queue) Enqueue(event string, payload json.RawMessage, priority domain.Priority, now time.Time) (domain.QueuedMessage, *domain.QueuedMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextSeq++
	msg := domain.QueuedMessage{
		Sequence:   q.nextSeq,
		Event:      event,
		Payload:    payload,
		Priority:   priority,
		EnqueuedAt: now.UTC(),
	}
	q.entries = append(q.entries, msg)

	if len(q.entries) <= q.maxSize {
		return msg, nil
	}

	// Oldest Normal entry first; when none remain, index 0 is the oldest
	// entry overall.
	victim := 0
	for i, entry := range q.entries {
		if entry.Priority == domain.PriorityNormal {
			victim = i
			break
		}
	}

	evicted := q.entries[victim]
	q.entries = append(q.entries[:victim], q.entries[victim+1:]...)
	q.evicted++
	return msg, &evicted
}

// Flush atomically drains and returns all queued entries in sequence order.
func (q *Queue) Flush() []domain.QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.entries
	q.entries = nil
	return out
}

// Len returns the number of buffered entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// EvictedCount returns the number of entries discarded under queue pressure.
func (q *Queue) EvictedCount() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.evicted
}

// Buffers holds one replay queue per participant.
type Buffers struct {
	mu      sync.Mutex
	maxSize int
	queues  map[string]*Queue
	clock   func() time.Time
}

// NewBuffers creates a buffer set whose queues are bounded to maxSize.
func NewBuffers(maxSize int) *Buffers {
	return &Buffers{
		maxSize: maxSize,
		queues:  make(map[string]*Queue),
		clock:   time.Now,
	}
}

func (b *Buffers) queue(participantID string) *Queue {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[participantID]
	if !ok {
		q = NewQueue(b.maxSize)
		b.queues[participantID] = q
	}
	return q
}

// Enqueue buffers an event for a participant.
func (b *Buffers) Enqueue(participantID, event string, payload json.RawMessage, priority domain.Priority) (domain.QueuedMessage, *domain.QueuedMessage) {
	return b.queue(participantID).Enqueue(event, payload, priority, b.clock())
}

// Flush drains a participant's queue in sequence order. Flushing a
// participant with no buffered events returns an empty slice.
func (b *Buffers) Flush(participantID string) []domain.QueuedMessage {
	b.mu.Lock()
	q, ok := b.queues[participantID]
	b.mu.Unlock()
	if !ok {
		return nil
	}
	return q.Flush()
}

// Drop discards a participant's queue entirely, used at session teardown.
func (b *Buffers) Drop(participantID string) {
	b.mu.Lock()
	delete(b.queues, participantID)
	b.mu.Unlock()
}
