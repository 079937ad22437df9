package resume

import (
	"errors"
	"testing"

	platformerrors "github.com/louisbranch/tablekeep/internal/platform/errors"
)

func TestIssueAndVerify(t *testing.T) {
	issuer := NewIssuer([]byte("test-secret"))

	token, err := issuer.Issue("session-1", "participant-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if token == "" {
		t.Fatal("Issue() returned empty token")
	}

	if err := issuer.Verify(token, "session-1", "participant-1"); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
}

func TestVerifyRejectsWrongSeat(t *testing.T) {
	issuer := NewIssuer([]byte("test-secret"))

	token, err := issuer.Issue("session-1", "participant-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	tests := []struct {
		name          string
		sessionID     string
		participantID string
	}{
		{name: "wrong session", sessionID: "session-2", participantID: "participant-1"},
		{name: "wrong participant", sessionID: "session-1", participantID: "participant-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := issuer.Verify(token, tt.sessionID, tt.participantID)
			if err == nil {
				t.Fatal("Verify() succeeded for wrong seat")
			}
			var derr *platformerrors.Error
			if !errors.As(err, &derr) {
				t.Fatalf("Verify() error type = %T, want *platformerrors.Error", err)
			}
			if derr.Code != platformerrors.CodeResumeTokenMismatch {
				t.Fatalf("Verify() code = %v, want %v", derr.Code, platformerrors.CodeResumeTokenMismatch)
			}
		})
	}
}

func TestVerifyRejectsForgedToken(t *testing.T) {
	issuer := NewIssuer([]byte("test-secret"))
	forger := NewIssuer([]byte("other-secret"))

	token, err := forger.Issue("session-1", "participant-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	err = issuer.Verify(token, "session-1", "participant-1")
	if err == nil {
		t.Fatal("Verify() accepted token signed with another secret")
	}
	var derr *platformerrors.Error
	if !errors.As(err, &derr) {
		t.Fatalf("Verify() error type = %T, want *platformerrors.Error", err)
	}
	if derr.Code != platformerrors.CodeResumeTokenInvalid {
		t.Fatalf("Verify() code = %v, want %v", derr.Code, platformerrors.CodeResumeTokenInvalid)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	issuer := NewIssuer([]byte("test-secret"))

	if err := issuer.Verify("not-a-token", "session-1", "participant-1"); err == nil {
		t.Fatal("Verify() accepted malformed token")
	}
}
