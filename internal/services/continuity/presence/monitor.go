// Package presence tracks which participants are live and drives the
// control-status transitions that keep a game session playable when
// humans drop: bot takeover on disconnect, control handback on
// reconnect, leadership migration and cleanup scheduling.
package presence

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	"golang.org/x/text/language"

	platformerrors "github.com/louisbranch/tablekeep/internal/platform/errors"
	"github.com/louisbranch/tablekeep/internal/services/continuity/domain"
	"github.com/louisbranch/tablekeep/internal/services/continuity/journal"
	"github.com/louisbranch/tablekeep/internal/services/continuity/leadership"
	"github.com/louisbranch/tablekeep/internal/services/continuity/registry"
	"github.com/louisbranch/tablekeep/internal/services/continuity/render"
	"github.com/louisbranch/tablekeep/internal/services/continuity/replay"
	"github.com/louisbranch/tablekeep/internal/services/continuity/resume"
	"github.com/louisbranch/tablekeep/internal/services/continuity/storage"
)

// Session teardown reasons carried on SessionClosed notices.
const (
	CloseReasonAbandoned  = "abandoned"
	CloseReasonLeaderLeft = "leader_left"
	CloseReasonNotFound   = "session_not_found"
	CloseReasonClosed     = "closed"
)

// Config carries the Monitor's collaborators. Journal and Issuer are
// optional; a nil Clock defaults to time.Now.
type Config struct {
	Sessions    *registry.SessionRegistry
	Connections *registry.ConnectionRegistry
	Buffers     *replay.Buffers
	Journal     *journal.Emitter
	Issuer      *resume.Issuer
	Clock       func() time.Time
}

// Monitor owns the presence lifecycle of every session participant. All
// session mutation runs inside the registry's per-session critical
// section; outbound notices are collected there and delivered after it
// so slow client handles never stall session state. The one exception
// is the replay flush, which delivers inside the critical section to
// pin the point after which live events may bypass the queue.
type Monitor struct {
	sessions    *registry.SessionRegistry
	connections *registry.ConnectionRegistry
	buffers     *replay.Buffers
	journal     *journal.Emitter
	issuer      *resume.Issuer
	clock       func() time.Time

	mu    sync.Mutex
	ready map[string]struct{}
}

// NewMonitor creates a presence monitor.
func NewMonitor(cfg Config) *Monitor {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Monitor{
		sessions:    cfg.Sessions,
		connections: cfg.Connections,
		buffers:     cfg.Buffers,
		journal:     cfg.Journal,
		issuer:      cfg.Issuer,
		clock:       clock,
		ready:       make(map[string]struct{}),
	}
}

// CreateSession creates and indexes a new game session.
func (m *Monitor) CreateSession(input domain.CreateSessionInput) (*domain.GameSession, error) {
	return m.sessions.CreateSession(input)
}

// StartSession marks the session as started. Disconnects before this
// point remove the seat; after it they trigger bot takeover.
func (m *Monitor) StartSession(sessionID string) error {
	return m.sessions.WithSession(sessionID, func(session *domain.GameSession) error {
		if err := session.Start(); err != nil {
			return platformerrors.Wrap(platformerrors.CodeSessionAlreadyStarted, "start session", err)
		}
		return nil
	})
}

// JoinInput describes a participant joining a session.
type JoinInput struct {
	DisplayName string
	Bot         bool
}

// JoinResult reports the seated participant and, for humans, the resume
// token that authorizes later reconnects to this seat.
type JoinResult struct {
	ParticipantID string
	DisplayName   string
	SlotIndex     int
	Leader        bool
	ResumeToken   string
}

// Join seats a new participant. The first joiner becomes the session
// leader, and any pending cleanup is cancelled when a human joins.
func (m *Monitor) Join(ctx context.Context, sessionID string, input JoinInput) (JoinResult, error) {
	var result JoinResult

	err := m.sessions.WithSession(sessionID, func(session *domain.GameSession) error {
		participant, err := domain.CreateParticipant(domain.CreateParticipantInput{
			DisplayName:  input.DisplayName,
			PermanentBot: input.Bot,
		}, m.clock, nil)
		if err != nil {
			return err
		}
		if err := session.AddParticipant(participant); err != nil {
			return err
		}
		result = JoinResult{
			ParticipantID: participant.ID,
			DisplayName:   participant.DisplayName,
			SlotIndex:     participant.SlotIndex,
			Leader:        session.LeaderID == participant.ID,
		}
		return nil
	})
	if err != nil {
		return JoinResult{}, m.mapSessionErr(err)
	}

	if !input.Bot && m.issuer != nil {
		token, err := m.issuer.Issue(sessionID, result.ParticipantID)
		if err != nil {
			return JoinResult{}, err
		}
		result.ResumeToken = token
	}
	return result, nil
}

// Attach binds a transport handle to a seat. A seat under bot takeover
// is handed back to the human: control resumes, pending cleanup is
// cancelled and the reconnect is announced. Attaching to a session that
// no longer exists delivers an explicit closed notice on the handle so
// the client is never left waiting.
func (m *Monitor) Attach(ctx context.Context, sessionID, participantID, token string, handle domain.Handle) (string, error) {
	var (
		resumed bool
		name    string
		tag     language.Tag
	)

	err := m.sessions.WithSession(sessionID, func(session *domain.GameSession) error {
		participant, err := session.Participant(participantID)
		if err != nil {
			// A stale identity gets the same answer as a missing
			// session: the seat the client remembers is gone.
			return registry.ErrSessionNotFound
		}

		if participant.Human() && m.issuer != nil {
			if err := m.issuer.Verify(token, sessionID, participantID); err != nil {
				// A bad token gets the same answer as a missing
				// session so probing leaks nothing about live seats.
				log.Printf("resume token rejected session=%s participant=%s error=%v", sessionID, participantID, err)
				return registry.ErrSessionNotFound
			}
		}

		switch participant.Control {
		case domain.ControlStatusBotTakeover:
			if err := participant.ResumeControl(); err != nil {
				return platformerrors.Wrap(platformerrors.CodeInvalidStateTransition, "resume control", err)
			}
			resumed = true
		case domain.ControlStatusHumanActive:
			// No disconnect record to match: treat as a fresh attach.
			log.Printf("attach without disconnect record session=%s participant=%s", sessionID, participantID)
		default:
			return platformerrors.New(platformerrors.CodeInvalidStateTransition, "seat is bot-controlled")
		}

		session.CancelCleanup()
		name = participant.DisplayName
		tag = render.ResolveTag(session.Locale)
		return nil
	})
	if err != nil {
		if errors.Is(err, registry.ErrSessionNotFound) && handle != nil {
			closed := domain.SessionClosed{
				Reason: CloseReasonNotFound,
				Text:   render.SessionClosed(language.English, false),
			}
			if deliverErr := handle.Deliver(ctx, closed); deliverErr != nil {
				log.Printf("session closed notice delivery failed session=%s error=%v", sessionID, deliverErr)
			}
		}
		return "", m.mapSessionErr(err)
	}

	connectionID, err := m.connections.Register(sessionID, participantID, handle)
	if err != nil {
		return "", m.mapSessionErr(err)
	}

	if resumed {
		m.journal.Emit(ctx, sessionID, participantID, storage.EntryKindParticipantReconnected, nil)
		m.broadcast(ctx, sessionID, domain.ParticipantReconnected{
			Name:           name,
			ResumedControl: true,
			Text:           render.Reconnected(tag, name, true),
		})
	}
	return connectionID, nil
}

// Participant returns a snapshot of one seated participant.
func (m *Monitor) Participant(sessionID, participantID string) (domain.ParticipantSession, error) {
	var snapshot domain.ParticipantSession
	err := m.sessions.WithSession(sessionID, func(session *domain.GameSession) error {
		participant, err := session.Participant(participantID)
		if err != nil {
			return err
		}
		snapshot = *participant
		return nil
	})
	if err != nil {
		return domain.ParticipantSession{}, m.mapSessionErr(err)
	}
	return snapshot, nil
}

// ClientReady marks a connection as ready for live delivery and flushes
// the participant's replay backlog to it. Readiness, the flush and the
// backlog delivery all commit inside the session critical section: a
// concurrent broadcast either enqueues before the flush drains or goes
// live strictly after the backlog has reached the handle, so nothing
// overtakes or duplicates replayed events.
func (m *Monitor) ClientReady(ctx context.Context, connectionID string) error {
	conn, err := m.connections.Lookup(connectionID)
	if err != nil {
		return m.mapSessionErr(err)
	}

	err = m.sessions.WithSession(conn.SessionID, func(*domain.GameSession) error {
		m.mu.Lock()
		m.ready[connectionID] = struct{}{}
		m.mu.Unlock()

		backlog := m.buffers.Flush(conn.ParticipantID)
		if len(backlog) == 0 {
			return nil
		}
		if err := conn.Handle.Deliver(ctx, domain.QueuedMessages{Messages: backlog}); err != nil {
			log.Printf("replay delivery failed session=%s participant=%s queued=%d error=%v",
				conn.SessionID, conn.ParticipantID, len(backlog), err)
		}
		return nil
	})
	return m.mapSessionErr(err)
}

// Disconnect handles a transport-level connection loss. Before start it
// is an explicit departure; after start the seat transitions to bot
// takeover and stays reserved for an unbounded reconnection window.
func (m *Monitor) Disconnect(ctx context.Context, connectionID string) error {
	conn, err := m.connections.Lookup(connectionID)
	if err != nil {
		return m.mapSessionErr(err)
	}
	m.forget(connectionID)

	var (
		notices  []domain.Notice
		teardown string
	)

	err = m.sessions.WithSession(conn.SessionID, func(session *domain.GameSession) error {
		participant, err := session.Participant(conn.ParticipantID)
		if err != nil {
			return nil
		}
		tag := render.ResolveTag(session.Locale)

		if !session.Started {
			if session.LeaderID == participant.ID {
				teardown = CloseReasonLeaderLeft
				return nil
			}
			if err := session.RemoveParticipant(participant.ID); err != nil {
				return err
			}
			m.buffers.Drop(participant.ID)
			notices = append(notices, domain.ParticipantLeft{
				Name: participant.DisplayName,
				Text: render.Left(tag, participant.DisplayName, false),
			})
			return nil
		}

		if participant.Control != domain.ControlStatusHumanActive {
			return nil
		}
		if err := participant.BeginTakeover(m.clock()); err != nil {
			return platformerrors.Wrap(platformerrors.CodeInvalidStateTransition, "begin takeover", err)
		}
		m.journal.Emit(ctx, session.ID, participant.ID, storage.EntryKindParticipantDisconnected, nil)
		m.journal.Emit(ctx, session.ID, participant.ID, storage.EntryKindBotTakeover, nil)
		notices = append(notices, domain.ParticipantDisconnected{
			Name:         participant.DisplayName,
			AIActivated:  true,
			CanReconnect: true,
			Text:         render.Disconnected(tag, participant.DisplayName, true),
		})

		if session.LeaderID == participant.ID {
			notices = append(notices, m.migrateLocked(ctx, session, participant.ID, tag)...)
		}
		if !session.HumanPresent() {
			session.ScheduleCleanup(m.clock())
		}
		return nil
	})
	if err != nil {
		return m.mapSessionErr(err)
	}

	if teardown != "" {
		return m.CloseSession(ctx, conn.SessionID, teardown)
	}
	for _, notice := range notices {
		m.broadcast(ctx, conn.SessionID, notice)
	}
	return nil
}

// Leave handles an explicit departure. Before start the seat is freed;
// after start it becomes a permanent bot for the rest of the game and
// its replay backlog is discarded.
func (m *Monitor) Leave(ctx context.Context, connectionID string) error {
	conn, err := m.connections.Lookup(connectionID)
	if err != nil {
		return m.mapSessionErr(err)
	}
	m.forget(connectionID)

	var (
		notices  []domain.Notice
		teardown string
	)

	err = m.sessions.WithSession(conn.SessionID, func(session *domain.GameSession) error {
		participant, err := session.Participant(conn.ParticipantID)
		if err != nil {
			return nil
		}
		tag := render.ResolveTag(session.Locale)

		if !session.Started {
			if session.LeaderID == participant.ID {
				teardown = CloseReasonLeaderLeft
				return nil
			}
			if err := session.RemoveParticipant(participant.ID); err != nil {
				return err
			}
			m.buffers.Drop(participant.ID)
			notices = append(notices, domain.ParticipantLeft{
				Name: participant.DisplayName,
				Text: render.Left(tag, participant.DisplayName, false),
			})
			return nil
		}

		if err := participant.AbandonSeat(); err != nil {
			return platformerrors.Wrap(platformerrors.CodeInvalidStateTransition, "abandon seat", err)
		}
		m.buffers.Drop(participant.ID)
		m.journal.Emit(ctx, session.ID, participant.ID, storage.EntryKindParticipantLeft, nil)
		notices = append(notices, domain.ParticipantLeft{
			Name: participant.DisplayName,
			Text: render.Left(tag, participant.DisplayName, true),
		})

		if session.LeaderID == participant.ID {
			notices = append(notices, m.migrateLocked(ctx, session, participant.ID, tag)...)
		}
		if !session.HumanPresent() {
			session.ScheduleCleanup(m.clock())
		}
		return nil
	})
	if err != nil {
		return m.mapSessionErr(err)
	}

	if teardown != "" {
		return m.CloseSession(ctx, conn.SessionID, teardown)
	}
	for _, notice := range notices {
		m.broadcast(ctx, conn.SessionID, notice)
	}
	return nil
}

// BroadcastEvent fans one live game event out to every ready connection
// and queues it for replay on behalf of each absent human seat. The
// readiness snapshot and the queue-vs-live decision are taken inside
// the session critical section, mutually exclusive with ClientReady's
// flush, so a seat that is mid-flush receives the event either in its
// backlog or live after it, never both. Permanent bots never replay.
func (m *Monitor) BroadcastEvent(ctx context.Context, sessionID, name string, payload json.RawMessage, priority domain.Priority) error {
	var targets []domain.Connection

	err := m.sessions.WithSession(sessionID, func(session *domain.GameSession) error {
		readyParticipants := make(map[string]struct{})
		for _, conn := range m.connections.ListConnections(sessionID) {
			if !m.isReady(conn.ID) {
				continue
			}
			readyParticipants[conn.ParticipantID] = struct{}{}
			targets = append(targets, conn)
		}

		for _, participant := range session.Participants() {
			if !participant.Human() {
				continue
			}
			if _, ok := readyParticipants[participant.ID]; ok {
				continue
			}
			_, evicted := m.buffers.Enqueue(participant.ID, name, payload, priority)
			if evicted != nil {
				m.journal.Emit(ctx, sessionID, participant.ID, storage.EntryKindQueueOverflow, map[string]string{
					"evicted_event":    evicted.Event,
					"evicted_sequence": strconv.FormatInt(evicted.Sequence, 10),
				})
			}
		}
		return nil
	})
	if err != nil {
		return m.mapSessionErr(err)
	}

	// Deliver to the snapshot that governed the enqueue decision. A
	// connection that became ready afterwards takes the event from its
	// backlog instead.
	event := domain.Event{Name: name, Payload: payload, Priority: priority}
	for _, conn := range targets {
		if err := conn.Handle.Deliver(ctx, event); err != nil {
			log.Printf("notice delivery failed session=%s connection=%s kind=%s error=%v",
				sessionID, conn.ID, event.Kind(), err)
		}
	}
	return nil
}

// CloseSession tears a session down: every remaining connection gets a
// closed notice, replay buffers are discarded and the session leaves
// the registry.
func (m *Monitor) CloseSession(ctx context.Context, sessionID, reason string) error {
	var (
		participantIDs []string
		tag            = language.English
	)

	err := m.sessions.WithSession(sessionID, func(session *domain.GameSession) error {
		for _, participant := range session.Participants() {
			participantIDs = append(participantIDs, participant.ID)
		}
		tag = render.ResolveTag(session.Locale)
		m.sessions.RemoveSession(sessionID)
		return nil
	})
	if err != nil {
		return m.mapSessionErr(err)
	}

	m.teardown(ctx, sessionID, reason, participantIDs, tag)
	return nil
}

// ReapIfDue removes the session when its cleanup timeout has elapsed.
// The due check and the removal run inside the same critical section,
// so a reconnect racing the reaper either cancels the cleanup first or
// observes the session as gone; it never resurrects a half-removed one.
func (m *Monitor) ReapIfDue(ctx context.Context, sessionID string, timeout time.Duration) (bool, error) {
	var (
		due            bool
		participantIDs []string
		tag            = language.English
	)

	err := m.sessions.WithSession(sessionID, func(session *domain.GameSession) error {
		if !session.CleanupDue(m.clock(), timeout) {
			return nil
		}
		due = true
		for _, participant := range session.Participants() {
			participantIDs = append(participantIDs, participant.ID)
		}
		tag = render.ResolveTag(session.Locale)
		m.sessions.RemoveSession(sessionID)
		return nil
	})
	if err != nil {
		if errors.Is(err, registry.ErrSessionNotFound) {
			// Already gone; nothing left to reap.
			return false, nil
		}
		return false, m.mapSessionErr(err)
	}
	if !due {
		return false, nil
	}

	m.teardown(ctx, sessionID, CloseReasonAbandoned, participantIDs, tag)
	return true, nil
}

// teardown runs the post-removal cleanup: replay buffers, journal entry
// and closed notices to every remaining connection.
func (m *Monitor) teardown(ctx context.Context, sessionID, reason string, participantIDs []string, tag language.Tag) {
	for _, participantID := range participantIDs {
		m.buffers.Drop(participantID)
	}
	m.journal.Emit(ctx, sessionID, "", storage.EntryKindSessionClosed, map[string]string{"reason": reason})

	closed := domain.SessionClosed{
		Reason: reason,
		Text:   render.SessionClosed(tag, reason == CloseReasonAbandoned),
	}
	for _, conn := range m.connections.DropSession(sessionID) {
		m.forget(conn.ID)
		if err := conn.Handle.Deliver(ctx, closed); err != nil {
			log.Printf("session closed notice delivery failed session=%s connection=%s error=%v", sessionID, conn.ID, err)
		}
	}
}

// migrateLocked reassigns leadership away from the departing leader.
// Must run inside the session critical section.
func (m *Monitor) migrateLocked(ctx context.Context, session *domain.GameSession, oldLeaderID string, tag language.Tag) []domain.Notice {
	leader, migrated := leadership.Migrate(session)
	if !migrated || leader == nil {
		return nil
	}
	m.journal.Emit(ctx, session.ID, leader.ID, storage.EntryKindLeaderChanged, map[string]string{
		"old_leader": oldLeaderID,
	})
	return []domain.Notice{domain.LeaderChanged{
		OldLeader: oldLeaderID,
		NewLeader: leader.ID,
		Text:      render.LeaderChanged(tag, leader.DisplayName),
	}}
}

// broadcast delivers one notice to every ready connection of a session.
// Delivery failures are logged per connection and never abort the fan-out.
func (m *Monitor) broadcast(ctx context.Context, sessionID string, notice domain.Notice) {
	for _, conn := range m.connections.ListConnections(sessionID) {
		if !m.isReady(conn.ID) {
			continue
		}
		if err := conn.Handle.Deliver(ctx, notice); err != nil {
			log.Printf("notice delivery failed session=%s connection=%s kind=%s error=%v",
				sessionID, conn.ID, notice.Kind(), err)
		}
	}
}

func (m *Monitor) isReady(connectionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.ready[connectionID]
	return ok
}

func (m *Monitor) forget(connectionID string) {
	m.connections.Unregister(connectionID)
	m.mu.Lock()
	delete(m.ready, connectionID)
	m.mu.Unlock()
}

// mapSessionErr translates registry and domain sentinels into the
// platform error taxonomy so transports can map them to wire codes.
func (m *Monitor) mapSessionErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, registry.ErrSessionNotFound):
		return platformerrors.Wrap(platformerrors.CodeSessionNotFound, "session not found", err)
	case errors.Is(err, registry.ErrConnectionNotFound):
		return platformerrors.Wrap(platformerrors.CodeConnectionNotFound, "connection not found", err)
	case errors.Is(err, domain.ErrParticipantNotFound):
		return platformerrors.Wrap(platformerrors.CodeParticipantNotFound, "participant not found", err)
	case errors.Is(err, domain.ErrSessionFull):
		return platformerrors.Wrap(platformerrors.CodeSessionFull, "session full", err)
	case errors.Is(err, domain.ErrSessionAlreadyStarted):
		return platformerrors.Wrap(platformerrors.CodeSessionAlreadyStarted, "session already started", err)
	case errors.Is(err, domain.ErrEmptyDisplayName):
		return platformerrors.Wrap(platformerrors.CodeEmptyDisplayName, "display name required", err)
	default:
		return err
	}
}
