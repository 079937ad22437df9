package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/louisbranch/tablekeep/internal/services/continuity/domain"
)

type nopHandle struct{}

func (nopHandle) Deliver(context.Context, domain.Notice) error { return nil }

func createSession(t *testing.T, r *SessionRegistry) *domain.GameSession {
	t.Helper()
	session, err := r.CreateSession(domain.CreateSessionInput{Name: "table", SlotCount: 4})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session
}

func TestWithSessionUnknown(t *testing.T) {
	r := NewSessionRegistry()
	err := r.WithSession("missing", func(*domain.GameSession) error { return nil })
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestWithSessionRunsUnderLock(t *testing.T) {
	r := NewSessionRegistry()
	session := createSession(t, r)

	const workers = 16
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			err := r.WithSession(session.ID, func(s *domain.GameSession) error {
				// Unsynchronized read-modify-write on the session name; the
				// per-session lock must serialize it.
				s.Name = s.Name + "x"
				return nil
			})
			if err != nil {
				t.Errorf("with session: %v", err)
			}
		}()
	}
	wg.Wait()

	if err := r.WithSession(session.ID, func(s *domain.GameSession) error {
		if len(s.Name) != len("table")+workers {
			t.Errorf("expected %d appended writes, got name %q", workers, s.Name)
		}
		return nil
	}); err != nil {
		t.Fatalf("with session: %v", err)
	}
}

func TestWithSessionObservesRemoval(t *testing.T) {
	r := NewSessionRegistry()
	session := createSession(t, r)

	if err := r.WithSession(session.ID, func(s *domain.GameSession) error {
		r.RemoveSession(s.ID)
		return nil
	}); err != nil {
		t.Fatalf("with session: %v", err)
	}

	err := r.WithSession(session.ID, func(*domain.GameSession) error { return nil })
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after removal, got %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d sessions", r.Len())
	}
}

func TestSessionIDsSnapshot(t *testing.T) {
	r := NewSessionRegistry()
	a := createSession(t, r)
	b := createSession(t, r)

	ids := r.SessionIDs()
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %d", len(ids))
	}
	seen := map[string]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen[a.ID] || !seen[b.ID] {
		t.Fatalf("expected ids %q and %q, got %v", a.ID, b.ID, ids)
	}
}

func TestRegisterUnknownSession(t *testing.T) {
	sessions := NewSessionRegistry()
	conns := NewConnectionRegistry(sessions)

	_, err := conns.Register("missing", "p1", nopHandle{})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRegisterLookupUnregister(t *testing.T) {
	sessions := NewSessionRegistry()
	conns := NewConnectionRegistry(sessions)
	session := createSession(t, sessions)

	connectionID, err := conns.Register(session.ID, "p1", nopHandle{})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	conn, err := conns.Lookup(connectionID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if conn.SessionID != session.ID || conn.ParticipantID != "p1" {
		t.Fatalf("unexpected identity (%q, %q)", conn.SessionID, conn.ParticipantID)
	}
	if conn.ConnectedAt.IsZero() {
		t.Fatal("expected connected timestamp")
	}

	conns.Unregister(connectionID)
	if _, err := conns.Lookup(connectionID); !errors.Is(err, ErrConnectionNotFound) {
		t.Fatalf("expected ErrConnectionNotFound, got %v", err)
	}
}

func TestListConnectionsFiltersBySession(t *testing.T) {
	sessions := NewSessionRegistry()
	conns := NewConnectionRegistry(sessions)
	a := createSession(t, sessions)
	b := createSession(t, sessions)

	if _, err := conns.Register(a.ID, "p1", nopHandle{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := conns.Register(a.ID, "p2", nopHandle{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := conns.Register(b.ID, "p3", nopHandle{}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if got := len(conns.ListConnections(a.ID)); got != 2 {
		t.Fatalf("expected 2 connections for session a, got %d", got)
	}
	if got := len(conns.ListConnections(b.ID)); got != 1 {
		t.Fatalf("expected 1 connection for session b, got %d", got)
	}
}

func TestDropSessionRemovesAllConnections(t *testing.T) {
	sessions := NewSessionRegistry()
	conns := NewConnectionRegistry(sessions)
	session := createSession(t, sessions)

	for _, participantID := range []string{"p1", "p2", "p3"} {
		if _, err := conns.Register(session.ID, participantID, nopHandle{}); err != nil {
			t.Fatalf("register %s: %v", participantID, err)
		}
	}

	dropped := conns.DropSession(session.ID)
	if len(dropped) != 3 {
		t.Fatalf("expected 3 dropped connections, got %d", len(dropped))
	}
	if got := len(conns.ListConnections(session.ID)); got != 0 {
		t.Fatalf("expected no connections after drop, got %d", got)
	}
}
