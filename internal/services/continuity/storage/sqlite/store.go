package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/tablekeep/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/tablekeep/internal/services/continuity/storage"
	"github.com/louisbranch/tablekeep/internal/services/continuity/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for the continuity journal.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a continuity journal store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// AppendEntry persists one journal row.
func (s *Store) AppendEntry(ctx context.Context, entry storage.JournalEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(entry.ID) == "" {
		return fmt.Errorf("journal entry id is required")
	}
	if strings.TrimSpace(entry.SessionID) == "" {
		return fmt.Errorf("journal entry session id is required")
	}
	if strings.TrimSpace(string(entry.Kind)) == "" {
		return fmt.Errorf("journal entry kind is required")
	}
	if entry.CreatedAt.IsZero() {
		return fmt.Errorf("journal entry created time is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO journal_entries (id, session_id, participant_id, kind, detail_json, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.SessionID, entry.ParticipantID, string(entry.Kind), entry.DetailJSON, toMillis(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// ListEntriesBySession returns journal rows for one session, oldest first.
// A limit of zero or less returns all rows.
func (s *Store) ListEntriesBySession(ctx context.Context, sessionID string, limit int) ([]storage.JournalEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT id, session_id, participant_id, kind, detail_json, created_at_ms
		FROM journal_entries
		WHERE session_id = ?
		ORDER BY created_at_ms ASC, id ASC
		LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []storage.JournalEntry
	for rows.Next() {
		var entry storage.JournalEntry
		var kind string
		var createdAtMillis int64
		if err := rows.Scan(&entry.ID, &entry.SessionID, &entry.ParticipantID, &kind, &entry.DetailJSON, &createdAtMillis); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		entry.Kind = storage.EntryKind(kind)
		entry.CreatedAt = fromMillis(createdAtMillis)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal entries: %w", err)
	}
	return entries, nil
}
