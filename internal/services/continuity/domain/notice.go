package domain

import "encoding/json"

// NoticeKind identifies one outbound notice type on the wire.
type NoticeKind string

const (
	NoticeKindParticipantDisconnected NoticeKind = "session.participant_disconnected"
	NoticeKindParticipantReconnected  NoticeKind = "session.participant_reconnected"
	NoticeKindParticipantLeft         NoticeKind = "session.participant_left"
	NoticeKindLeaderChanged           NoticeKind = "session.leader_changed"
	NoticeKindSessionClosed           NoticeKind = "session.closed"
	NoticeKindQueuedMessages          NoticeKind = "session.queued_messages"
	NoticeKindEvent                   NoticeKind = "session.event"
)

// Notice is the closed union of outbound broadcast messages. Each concrete
// notice carries its own payload shape; transports dispatch on Kind.
type Notice interface {
	Kind() NoticeKind
}

// ParticipantDisconnected announces a mid-session disconnect and the bot
// takeover that covers it. CanReconnect is always true: the reconnection
// window is unbounded while the session is alive.
type ParticipantDisconnected struct {
	Name         string `json:"name"`
	AIActivated  bool   `json:"ai_activated"`
	CanReconnect bool   `json:"can_reconnect"`
	Text         string `json:"text,omitempty"`
}

// Kind implements Notice.
func (ParticipantDisconnected) Kind() NoticeKind { return NoticeKindParticipantDisconnected }

// ParticipantReconnected announces a human regaining control of a seat.
type ParticipantReconnected struct {
	Name           string `json:"name"`
	ResumedControl bool   `json:"resumed_control"`
	Text           string `json:"text,omitempty"`
}

// Kind implements Notice.
func (ParticipantReconnected) Kind() NoticeKind { return NoticeKindParticipantReconnected }

// ParticipantLeft announces a voluntary departure or pre-start slot removal.
type ParticipantLeft struct {
	Name string `json:"name"`
	Text string `json:"text,omitempty"`
}

// Kind implements Notice.
func (ParticipantLeft) Kind() NoticeKind { return NoticeKindParticipantLeft }

// LeaderChanged announces a leadership migration.
type LeaderChanged struct {
	OldLeader string `json:"old_leader"`
	NewLeader string `json:"new_leader"`
	Text      string `json:"text,omitempty"`
}

// Kind implements Notice.
func (LeaderChanged) Kind() NoticeKind { return NoticeKindLeaderChanged }

// SessionClosed announces session teardown to every remaining connection.
type SessionClosed struct {
	Reason string `json:"reason"`
	Text   string `json:"text,omitempty"`
}

// Kind implements Notice.
func (SessionClosed) Kind() NoticeKind { return NoticeKindSessionClosed }

// QueuedMessages delivers the replayed backlog to one reconnecting
// participant before live event flow resumes.
type QueuedMessages struct {
	Messages []QueuedMessage `json:"messages"`
}

// Kind implements Notice.
func (QueuedMessages) Kind() NoticeKind { return NoticeKindQueuedMessages }

// Event carries one live game event to currently connected participants.
// The same event is queued for replay on behalf of absent participants.
type Event struct {
	Name     string          `json:"name"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Priority Priority        `json:"priority"`
}

// Kind implements Notice.
func (Event) Kind() NoticeKind { return NoticeKindEvent }
