package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/louisbranch/tablekeep/internal/platform/id"
)

// ControlStatus describes who currently sources a participant's actions.
type ControlStatus int

const (
	// ControlStatusUnspecified represents an invalid control status value.
	ControlStatusUnspecified ControlStatus = iota
	// ControlStatusHumanActive indicates a live human connection drives the participant.
	ControlStatusHumanActive
	// ControlStatusBotTakeover indicates a disconnected human participant is
	// temporarily driven by the AI adapter until reconnect.
	ControlStatusBotTakeover
	// ControlStatusPermanentBot indicates the participant was created as a bot
	// and is never affected by presence transitions.
	ControlStatusPermanentBot
)

// String returns the lowercase label for a control status.
func (s ControlStatus) String() string {
	switch s {
	case ControlStatusHumanActive:
		return "human_active"
	case ControlStatusBotTakeover:
		return "bot_takeover"
	case ControlStatusPermanentBot:
		return "permanent_bot"
	default:
		return "unspecified"
	}
}

var (
	// ErrEmptyDisplayName indicates a missing participant display name.
	ErrEmptyDisplayName = errors.New("display name is required")
	// ErrInvalidControlTransition indicates a control-status transition the
	// state machine does not allow.
	ErrInvalidControlTransition = errors.New("invalid control status transition")
)

// ParticipantSession is a participant's durable seat in a game session. It
// persists across reconnects and is keyed by a stable identity rather than
// the transient transport connection.
type ParticipantSession struct {
	ID             string
	DisplayName    string
	Control        ControlStatus
	SlotIndex      int
	JoinedAt       time.Time
	DisconnectedAt *time.Time // set while Control is ControlStatusBotTakeover
}

// CreateParticipantInput describes the metadata needed to create a participant.
type CreateParticipantInput struct {
	DisplayName  string
	PermanentBot bool
}

// CreateParticipant creates a participant session with a generated ID. The
// initial control status is HumanActive, or PermanentBot when the participant
// is created as a bot.
func CreateParticipant(input CreateParticipantInput, now func() time.Time, idGenerator func() (string, error)) (*ParticipantSession, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		return nil, ErrEmptyDisplayName
	}

	participantID, err := idGenerator()
	if err != nil {
		return nil, err
	}

	control := ControlStatusHumanActive
	if input.PermanentBot {
		control = ControlStatusPermanentBot
	}

	return &ParticipantSession{
		ID:          participantID,
		DisplayName: displayName,
		Control:     control,
		JoinedAt:    now().UTC(),
	}, nil
}

// Human reports whether the participant was originally human-controlled.
func (p *ParticipantSession) Human() bool {
	return p.Control == ControlStatusHumanActive || p.Control == ControlStatusBotTakeover
}

// BeginTakeover transitions HumanActive to BotTakeover, recording the
// disconnect time. PermanentBot participants are never transitioned.
func (p *ParticipantSession) BeginTakeover(at time.Time) error {
	if p.Control != ControlStatusHumanActive {
		return ErrInvalidControlTransition
	}
	at = at.UTC()
	p.Control = ControlStatusBotTakeover
	p.DisconnectedAt = &at
	return nil
}

// ResumeControl transitions BotTakeover back to HumanActive and clears the
// disconnect record. The reconnection wait is unbounded; any BotTakeover
// participant may resume while the owning session is alive.
func (p *ParticipantSession) ResumeControl() error {
	if p.Control != ControlStatusBotTakeover {
		return ErrInvalidControlTransition
	}
	p.Control = ControlStatusHumanActive
	p.DisconnectedAt = nil
	return nil
}

// AbandonSeat transitions a human-owned seat to PermanentBot after an
// explicit mid-game departure. The seat is never handed back.
func (p *ParticipantSession) AbandonSeat() error {
	if p.Control != ControlStatusHumanActive && p.Control != ControlStatusBotTakeover {
		return ErrInvalidControlTransition
	}
	p.Control = ControlStatusPermanentBot
	p.DisconnectedAt = nil
	return nil
}
