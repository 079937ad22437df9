package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/tablekeep/internal/services/continuity/storage"
)

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestAppendAndListEntries(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	inputs := []storage.JournalEntry{
		{
			ID:            "entry-1",
			SessionID:     "sess-1",
			ParticipantID: "part-1",
			Kind:          storage.EntryKindParticipantDisconnected,
			DetailJSON:    `{"reason":"transport"}`,
			CreatedAt:     now,
		},
		{
			ID:            "entry-2",
			SessionID:     "sess-1",
			ParticipantID: "part-1",
			Kind:          storage.EntryKindBotTakeover,
			CreatedAt:     now.Add(time.Minute),
		},
		{
			ID:        "entry-other",
			SessionID: "sess-2",
			Kind:      storage.EntryKindSessionClosed,
			CreatedAt: now.Add(2 * time.Minute),
		},
	}
	for _, input := range inputs {
		if err := store.AppendEntry(context.Background(), input); err != nil {
			t.Fatalf("append %s: %v", input.ID, err)
		}
	}

	entries, err := store.ListEntriesBySession(context.Background(), "sess-1", 0)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].ID != "entry-1" || entries[1].ID != "entry-2" {
		t.Fatalf("entries out of order: %s, %s", entries[0].ID, entries[1].ID)
	}
	if entries[0].Kind != storage.EntryKindParticipantDisconnected {
		t.Fatalf("kind = %s, want %s", entries[0].Kind, storage.EntryKindParticipantDisconnected)
	}
	if entries[0].DetailJSON != `{"reason":"transport"}` {
		t.Fatalf("detail = %s", entries[0].DetailJSON)
	}
	if !entries[0].CreatedAt.Equal(now) {
		t.Fatalf("created at = %v, want %v", entries[0].CreatedAt, now)
	}
}

func TestListEntriesHonorsLimit(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	for i, kind := range []storage.EntryKind{
		storage.EntryKindParticipantDisconnected,
		storage.EntryKindParticipantReconnected,
		storage.EntryKindParticipantLeft,
	} {
		entry := storage.JournalEntry{
			ID:        string(rune('a' + i)),
			SessionID: "sess-1",
			Kind:      kind,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		}
		if err := store.AppendEntry(context.Background(), entry); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	entries, err := store.ListEntriesBySession(context.Background(), "sess-1", 2)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
}

func TestAppendValidatesEntry(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		entry storage.JournalEntry
	}{
		{name: "missing id", entry: storage.JournalEntry{SessionID: "sess-1", Kind: storage.EntryKindSessionClosed, CreatedAt: now}},
		{name: "missing session", entry: storage.JournalEntry{ID: "entry-1", Kind: storage.EntryKindSessionClosed, CreatedAt: now}},
		{name: "missing kind", entry: storage.JournalEntry{ID: "entry-1", SessionID: "sess-1", CreatedAt: now}},
		{name: "missing created", entry: storage.JournalEntry{ID: "entry-1", SessionID: "sess-1", Kind: storage.EntryKindSessionClosed}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.AppendEntry(context.Background(), tt.entry); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()
	storePath := filepath.Join(t.TempDir(), "continuity.db")
	store, err := Open(storePath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := store.Close(); closeErr != nil {
			t.Fatalf("close store: %v", closeErr)
		}
	})
	return store
}
