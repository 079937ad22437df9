package domain

import (
	"errors"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func stubIDGenerator(id string) func() (string, error) {
	return func() (string, error) { return id, nil }
}

func TestCreateParticipantHuman(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p, err := CreateParticipant(CreateParticipantInput{DisplayName: "  Rowan  "}, fixedClock(now), stubIDGenerator("p1"))
	if err != nil {
		t.Fatalf("create participant: %v", err)
	}
	if p.ID != "p1" {
		t.Fatalf("expected id p1, got %q", p.ID)
	}
	if p.DisplayName != "Rowan" {
		t.Fatalf("expected trimmed display name, got %q", p.DisplayName)
	}
	if p.Control != ControlStatusHumanActive {
		t.Fatalf("expected HumanActive, got %v", p.Control)
	}
	if !p.JoinedAt.Equal(now) {
		t.Fatalf("expected joined at %v, got %v", now, p.JoinedAt)
	}
}

func TestCreateParticipantPermanentBot(t *testing.T) {
	p, err := CreateParticipant(CreateParticipantInput{DisplayName: "Golem", PermanentBot: true}, nil, stubIDGenerator("p2"))
	if err != nil {
		t.Fatalf("create participant: %v", err)
	}
	if p.Control != ControlStatusPermanentBot {
		t.Fatalf("expected PermanentBot, got %v", p.Control)
	}
}

func TestCreateParticipantRequiresDisplayName(t *testing.T) {
	_, err := CreateParticipant(CreateParticipantInput{DisplayName: "   "}, nil, stubIDGenerator("p3"))
	if !errors.Is(err, ErrEmptyDisplayName) {
		t.Fatalf("expected ErrEmptyDisplayName, got %v", err)
	}
}

func TestBeginTakeoverFromHumanActive(t *testing.T) {
	p := &ParticipantSession{Control: ControlStatusHumanActive}
	at := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	if err := p.BeginTakeover(at); err != nil {
		t.Fatalf("begin takeover: %v", err)
	}
	if p.Control != ControlStatusBotTakeover {
		t.Fatalf("expected BotTakeover, got %v", p.Control)
	}
	if p.DisconnectedAt == nil || !p.DisconnectedAt.Equal(at) {
		t.Fatalf("expected disconnect timestamp %v, got %v", at, p.DisconnectedAt)
	}
}

func TestBeginTakeoverNeverTouchesPermanentBot(t *testing.T) {
	p := &ParticipantSession{Control: ControlStatusPermanentBot}
	if err := p.BeginTakeover(time.Now()); !errors.Is(err, ErrInvalidControlTransition) {
		t.Fatalf("expected ErrInvalidControlTransition, got %v", err)
	}
	if p.Control != ControlStatusPermanentBot {
		t.Fatalf("permanent bot control changed to %v", p.Control)
	}
}

func TestBeginTakeoverRejectsDoubleDisconnect(t *testing.T) {
	p := &ParticipantSession{Control: ControlStatusHumanActive}
	if err := p.BeginTakeover(time.Now()); err != nil {
		t.Fatalf("first takeover: %v", err)
	}
	if err := p.BeginTakeover(time.Now()); !errors.Is(err, ErrInvalidControlTransition) {
		t.Fatalf("expected ErrInvalidControlTransition, got %v", err)
	}
}

func TestResumeControlRoundTrip(t *testing.T) {
	p := &ParticipantSession{Control: ControlStatusHumanActive}
	if err := p.BeginTakeover(time.Now()); err != nil {
		t.Fatalf("begin takeover: %v", err)
	}
	if err := p.ResumeControl(); err != nil {
		t.Fatalf("resume control: %v", err)
	}
	if p.Control != ControlStatusHumanActive {
		t.Fatalf("expected HumanActive, got %v", p.Control)
	}
	if p.DisconnectedAt != nil {
		t.Fatal("expected disconnect record cleared")
	}
}

func TestResumeControlRequiresTakeover(t *testing.T) {
	p := &ParticipantSession{Control: ControlStatusHumanActive}
	if err := p.ResumeControl(); !errors.Is(err, ErrInvalidControlTransition) {
		t.Fatalf("expected ErrInvalidControlTransition, got %v", err)
	}
}

func TestAbandonSeat(t *testing.T) {
	p := &ParticipantSession{Control: ControlStatusHumanActive}
	if err := p.BeginTakeover(time.Now()); err != nil {
		t.Fatalf("begin takeover: %v", err)
	}
	if err := p.AbandonSeat(); err != nil {
		t.Fatalf("abandon seat: %v", err)
	}
	if p.Control != ControlStatusPermanentBot {
		t.Fatalf("expected PermanentBot, got %v", p.Control)
	}
	if p.DisconnectedAt != nil {
		t.Fatal("expected disconnect record cleared")
	}
	if err := p.AbandonSeat(); !errors.Is(err, ErrInvalidControlTransition) {
		t.Fatalf("expected ErrInvalidControlTransition, got %v", err)
	}
}

func TestControlStatusRandomizedTransitions(t *testing.T) {
	// The takeover invariant: BotTakeover iff an originally-human participant
	// is currently disconnected. Replay a random-ish connect/disconnect
	// sequence and check the invariant after every step.
	p := &ParticipantSession{Control: ControlStatusHumanActive}
	disconnected := false
	steps := []bool{true, false, true, true, false, false, true, false, true, true}
	for i, disconnect := range steps {
		if disconnect {
			err := p.BeginTakeover(time.Now())
			if disconnected {
				if !errors.Is(err, ErrInvalidControlTransition) {
					t.Fatalf("step %d: expected rejected double disconnect, got %v", i, err)
				}
			} else if err != nil {
				t.Fatalf("step %d: begin takeover: %v", i, err)
			}
			disconnected = true
		} else {
			err := p.ResumeControl()
			if !disconnected {
				if !errors.Is(err, ErrInvalidControlTransition) {
					t.Fatalf("step %d: expected rejected reconnect, got %v", i, err)
				}
			} else if err != nil {
				t.Fatalf("step %d: resume control: %v", i, err)
			}
			disconnected = false
		}

		wantTakeover := disconnected
		gotTakeover := p.Control == ControlStatusBotTakeover
		if wantTakeover != gotTakeover {
			t.Fatalf("step %d: takeover invariant violated: disconnected=%v control=%v", i, disconnected, p.Control)
		}
	}
}
