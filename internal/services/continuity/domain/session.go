package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/louisbranch/tablekeep/internal/platform/id"
)

const (
	// MinSlots is the smallest allowed participant slot count.
	MinSlots = 2
	// MaxSlots is the largest allowed participant slot count.
	MaxSlots = 8
)

var (
	// ErrInvalidSlotCount indicates a slot count outside [MinSlots, MaxSlots].
	ErrInvalidSlotCount = errors.New("slot count is out of range")
	// ErrSessionFull indicates no open slot remains.
	ErrSessionFull = errors.New("session has no open slot")
	// ErrSessionAlreadyStarted indicates a start on an already-started session.
	ErrSessionAlreadyStarted = errors.New("session already started")
	// ErrParticipantNotFound indicates no slot holds the given participant.
	ErrParticipantNotFound = errors.New("participant not found in session")
)

// GameSession is one multi-party game with a fixed number of participant
// slots. A nil slot is open. Sessions with at least one participant always
// have exactly one leader.
type GameSession struct {
	ID        string
	Name      string
	Locale    string
	Slots     []*ParticipantSession
	LeaderID  string
	Started   bool
	CreatedAt time.Time

	// LastAllHumanAbsentAt and CleanupScheduled are set together when the
	// last human participant of a started session goes absent, and cleared
	// together the instant any human reconnects or joins.
	LastAllHumanAbsentAt *time.Time
	CleanupScheduled     bool
}

// CreateSessionInput describes the metadata needed to create a game session.
type CreateSessionInput struct {
	Name      string
	Locale    string
	SlotCount int
}

// CreateSession creates an empty game session with a generated ID.
func CreateSession(input CreateSessionInput, now func() time.Time, idGenerator func() (string, error)) (*GameSession, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	if input.SlotCount < MinSlots || input.SlotCount > MaxSlots {
		return nil, ErrInvalidSlotCount
	}

	sessionID, err := idGenerator()
	if err != nil {
		return nil, err
	}

	locale := strings.TrimSpace(input.Locale)
	if locale == "" {
		locale = "en"
	}

	return &GameSession{
		ID:        sessionID,
		Name:      strings.TrimSpace(input.Name),
		Locale:    locale,
		Slots:     make([]*ParticipantSession, input.SlotCount),
		CreatedAt: now().UTC(),
	}, nil
}

// AddParticipant seats a participant in the first open slot. The first
// participant to join becomes the session leader. Any scheduled cleanup is
// cancelled when a human joins.
func (s *GameSession) AddParticipant(p *ParticipantSession) error {
	for i, slot := range s.Slots {
		if slot != nil {
			continue
		}
		p.SlotIndex = i
		s.Slots[i] = p
		if s.LeaderID == "" {
			s.LeaderID = p.ID
		}
		if p.Control == ControlStatusHumanActive {
			s.CancelCleanup()
		}
		return nil
	}
	return ErrSessionFull
}

// Participant returns the seated participant with the given ID.
func (s *GameSession) Participant(participantID string) (*ParticipantSession, error) {
	for _, slot := range s.Slots {
		if slot != nil && slot.ID == participantID {
			return slot, nil
		}
	}
	return nil, ErrParticipantNotFound
}

// RemoveParticipant vacates the slot held by the given participant.
func (s *GameSession) RemoveParticipant(participantID string) error {
	for i, slot := range s.Slots {
		if slot != nil && slot.ID == participantID {
			s.Slots[i] = nil
			if s.LeaderID == participantID {
				s.LeaderID = ""
			}
			return nil
		}
	}
	return ErrParticipantNotFound
}

// Participants returns seated participants in slot order.
func (s *GameSession) Participants() []*ParticipantSession {
	out := make([]*ParticipantSession, 0, len(s.Slots))
	for _, slot := range s.Slots {
		if slot != nil {
			out = append(out, slot)
		}
	}
	return out
}

// Empty reports whether no slot is occupied.
func (s *GameSession) Empty() bool {
	return len(s.Participants()) == 0
}

// HumanPresent reports whether any participant currently has an active human
// connection.
func (s *GameSession) HumanPresent() bool {
	for _, p := range s.Participants() {
		if p.Control == ControlStatusHumanActive {
			return true
		}
	}
	return false
}

// Start marks the session as started. Presence transitions behave
// differently before and after this point: pre-start disconnects are
// departures, post-start disconnects are bot takeovers.
func (s *GameSession) Start() error {
	if s.Started {
		return ErrSessionAlreadyStarted
	}
	s.Started = true
	return nil
}

// ScheduleCleanup records the all-humans-absent timestamp and flags the
// session for reaping. Scheduling is idempotent; an earlier timestamp wins.
func (s *GameSession) ScheduleCleanup(at time.Time) {
	if s.CleanupScheduled {
		return
	}
	at = at.UTC()
	s.LastAllHumanAbsentAt = &at
	s.CleanupScheduled = true
}

// CancelCleanup clears the scheduled cleanup. Calling it with no cleanup
// scheduled is a no-op.
func (s *GameSession) CancelCleanup() {
	s.CleanupScheduled = false
	s.LastAllHumanAbsentAt = nil
}

// CleanupDue reports whether the scheduled cleanup timeout has elapsed.
func (s *GameSession) CleanupDue(now time.Time, timeout time.Duration) bool {
	if !s.CleanupScheduled || s.LastAllHumanAbsentAt == nil {
		return false
	}
	return now.UTC().Sub(*s.LastAllHumanAbsentAt) >= timeout
}
