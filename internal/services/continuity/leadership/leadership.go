// Package leadership reassigns session leadership when the current
// leader disconnects or leaves.
package leadership

import (
	"github.com/louisbranch/tablekeep/internal/services/continuity/domain"
)

// NextLeader selects the participant that should lead the session.
// Selection prefers the first connected human in slot order, then the
// first occupied slot regardless of control status. It returns nil when
// the session has no participants left.
func NextLeader(session *domain.GameSession) *domain.ParticipantSession {
	var first *domain.ParticipantSession
	for _, participant := range session.Participants() {
		if first == nil {
			first = participant
		}
		if participant.Control == domain.ControlStatusHumanActive {
			return participant
		}
	}
	return first
}

// Migrate moves leadership to the next eligible participant and reports
// the outcome. A migrated=false result with a nil leader means the
// session is empty and should be torn down; migrated=false with a
// non-nil leader means leadership did not need to move.
func Migrate(session *domain.GameSession) (leader *domain.ParticipantSession, migrated bool) {
	next := NextLeader(session)
	if next == nil {
		session.LeaderID = ""
		return nil, false
	}
	if session.LeaderID == next.ID {
		return next, false
	}
	session.LeaderID = next.ID
	return next, true
}
