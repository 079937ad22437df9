// Package journal records continuity events to the operational journal.
package journal

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/louisbranch/tablekeep/internal/platform/id"
	"github.com/louisbranch/tablekeep/internal/services/continuity/storage"
)

// Emitter appends continuity events to a journal store. A nil Emitter,
// or one without a store, drops events silently so callers never need
// to branch on journaling being configured.
type Emitter struct {
	store       storage.JournalStore
	clock       func() time.Time
	idGenerator func() (string, error)
}

// NewEmitter returns an Emitter writing to the given store.
func NewEmitter(store storage.JournalStore) *Emitter {
	return &Emitter{
		store:       store,
		clock:       time.Now,
		idGenerator: id.NewID,
	}
}

// Emit appends one journal entry. Failures are logged, never returned:
// journaling must not block or fail live session handling.
func (e *Emitter) Emit(ctx context.Context, sessionID, participantID string, kind storage.EntryKind, detail map[string]string) {
	if e == nil || e.store == nil {
		return
	}

	entryID, err := e.idGenerator()
	if err != nil {
		log.Printf("journal id generation failed kind=%s session=%s error=%v", kind, sessionID, err)
		return
	}

	detailJSON := ""
	if len(detail) > 0 {
		raw, err := json.Marshal(detail)
		if err != nil {
			log.Printf("journal detail marshal failed kind=%s session=%s error=%v", kind, sessionID, err)
		} else {
			detailJSON = string(raw)
		}
	}

	entry := storage.JournalEntry{
		ID:            entryID,
		SessionID:     sessionID,
		ParticipantID: participantID,
		Kind:          kind,
		DetailJSON:    detailJSON,
		CreatedAt:     e.clock(),
	}
	if err := e.store.AppendEntry(ctx, entry); err != nil {
		log.Printf("journal append failed kind=%s session=%s error=%v", kind, sessionID, err)
	}
}
