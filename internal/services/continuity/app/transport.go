package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	platformerrors "github.com/louisbranch/tablekeep/internal/platform/errors"
	"github.com/louisbranch/tablekeep/internal/services/continuity/agent"
	"github.com/louisbranch/tablekeep/internal/services/continuity/domain"
	"github.com/louisbranch/tablekeep/internal/services/continuity/presence"
	continuitystorage "github.com/louisbranch/tablekeep/internal/services/continuity/storage"
)

const (
	maxFramePayloadBytes   = 16 * 1024
	maxFramesPerSecond     = 40
	maxDecodeErrorsPerConn = 3
)

type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type wsErrorEnvelope struct {
	Error wsError `json:"error"`
}

type wsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// wsPeer serializes frame writes to one websocket connection.
type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func newWSPeer(encoder *json.Encoder) *wsPeer {
	return &wsPeer{encoder: encoder}
}

func (p *wsPeer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(frame)
}

// clientHandle adapts a wsPeer to the notice delivery contract. Frames
// reuse the notice kind as the frame type.
type clientHandle struct {
	peer *wsPeer
}

func (h clientHandle) Deliver(_ context.Context, notice domain.Notice) error {
	return h.peer.writeFrame(wsFrame{
		Type:    string(notice.Kind()),
		Payload: mustJSON(notice),
	})
}

// wsSession tracks the seat bound to one websocket connection.
type wsSession struct {
	mu            sync.Mutex
	peer          *wsPeer
	connectionID  string
	sessionID     string
	participantID string
}

func (s *wsSession) bind(connectionID, sessionID, participantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectionID = connectionID
	s.sessionID = sessionID
	s.participantID = participantID
}

func (s *wsSession) unbind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectionID = ""
	s.sessionID = ""
	s.participantID = ""
}

func (s *wsSession) bound() (connectionID, sessionID, participantID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectionID, s.sessionID, s.participantID, s.connectionID != ""
}

// actionHub routes actions relayed from live connections to whichever
// agent is awaiting them.
type actionHub struct {
	mu      sync.Mutex
	pending map[string]chan agent.Action
}

func newActionHub() *actionHub {
	return &actionHub{pending: make(map[string]chan agent.Action)}
}

func (h *actionHub) channel(participantID string) chan agent.Action {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.pending[participantID]
	if !ok {
		ch = make(chan agent.Action, 1)
		h.pending[participantID] = ch
	}
	return ch
}

// Submit hands one relayed action to a waiting agent. The slot buffers a
// single action; further submissions before the agent consumes it are
// rejected.
func (h *actionHub) Submit(participantID string, action agent.Action) bool {
	select {
	case h.channel(participantID) <- action:
		return true
	default:
		return false
	}
}

// AwaitAction implements the relay source contract for live seats.
func (h *actionHub) AwaitAction(ctx context.Context, participantID string) (agent.Action, error) {
	select {
	case action := <-h.channel(participantID):
		return action, nil
	case <-ctx.Done():
		return agent.Action{}, ctx.Err()
	}
}

// runtime bundles the collaborators the websocket dispatch needs.
type runtime struct {
	monitor    *presence.Monitor
	controller *agent.Controller
	actions    *actionHub
	journal    continuitystorage.JournalStore
}

func newHandler(rt *runtime) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		handleWSConn(conn, rt)
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wsHandler.ServeHTTP(w, r)
	})

	return mux
}

func handleWSConn(conn *websocket.Conn, rt *runtime) {
	defer func() {
		_ = conn.Close()
	}()

	decoder := json.NewDecoder(conn)
	session := &wsSession{peer: newWSPeer(json.NewEncoder(conn))}

	ctx := context.Background()
	if request := conn.Request(); request != nil {
		ctx = request.Context()
	}

	// Socket loss without an explicit leave starts the seat's
	// reconnection window.
	defer func() {
		if connectionID, _, _, ok := session.bound(); ok {
			if err := rt.monitor.Disconnect(context.Background(), connectionID); err != nil {
				log.Printf("disconnect handling failed connection=%s error=%v", connectionID, err)
			}
		}
	}()

	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			_ = writeWSError(session.peer, "", "INVALID_ARGUMENT", "invalid frame payload")
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "payload too large")
			continue
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = writeWSError(session.peer, frame.RequestID, "RESOURCE_EXHAUSTED", "rate limit exceeded")
			return
		}

		switch frame.Type {
		case "session.create":
			handleCreateFrame(session, rt, frame)
		case "session.join":
			handleJoinFrame(ctx, session, rt, frame)
		case "session.connect":
			handleConnectFrame(ctx, session, rt, frame)
		case "session.ready":
			handleReadyFrame(ctx, session, rt, frame)
		case "session.start":
			handleStartFrame(session, rt, frame)
		case "session.leave":
			handleLeaveFrame(ctx, session, rt, frame)
		case "session.close":
			handleCloseFrame(ctx, session, rt, frame)
		case "session.event":
			handleEventFrame(ctx, session, rt, frame)
		case "session.journal":
			handleJournalFrame(ctx, session, rt, frame)
		case "session.action":
			handleActionFrame(session, rt, frame)
		case "turn.play":
			handleTurnFrame(ctx, session, rt, frame)
		default:
			_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "unsupported frame type")
		}
	}
}

type createPayload struct {
	Name      string `json:"name"`
	Locale    string `json:"locale"`
	SlotCount int    `json:"slot_count"`
}

type createdPayload struct {
	SessionID string `json:"session_id"`
}

func handleCreateFrame(session *wsSession, rt *runtime, frame wsFrame) {
	var payload createPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid create payload")
		return
	}

	created, err := rt.monitor.CreateSession(domain.CreateSessionInput{
		Name:      payload.Name,
		Locale:    payload.Locale,
		SlotCount: payload.SlotCount,
	})
	if err != nil {
		writeDomainError(session.peer, frame.RequestID, err)
		return
	}
	_ = session.peer.writeFrame(wsFrame{
		Type:      "session.created",
		RequestID: frame.RequestID,
		Payload:   mustJSON(createdPayload{SessionID: created.ID}),
	})
}

type joinPayload struct {
	SessionID   string `json:"session_id"`
	DisplayName string `json:"display_name"`
	Bot         bool   `json:"bot"`
}

type joinedPayload struct {
	ParticipantID string `json:"participant_id"`
	SlotIndex     int    `json:"slot_index"`
	Leader        bool   `json:"leader"`
	ResumeToken   string `json:"resume_token,omitempty"`
}

func handleJoinFrame(ctx context.Context, session *wsSession, rt *runtime, frame wsFrame) {
	var payload joinPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid join payload")
		return
	}
	if strings.TrimSpace(payload.SessionID) == "" {
		_ = writeWSError(session.peer, frame.RequestID, "EMPTY_SESSION_ID", "session_id is required")
		return
	}

	joined, err := rt.monitor.Join(ctx, payload.SessionID, presence.JoinInput{
		DisplayName: payload.DisplayName,
		Bot:         payload.Bot,
	})
	if err != nil {
		writeDomainError(session.peer, frame.RequestID, err)
		return
	}
	_ = session.peer.writeFrame(wsFrame{
		Type:      "session.joined",
		RequestID: frame.RequestID,
		Payload: mustJSON(joinedPayload{
			ParticipantID: joined.ParticipantID,
			SlotIndex:     joined.SlotIndex,
			Leader:        joined.Leader,
			ResumeToken:   joined.ResumeToken,
		}),
	})
}

type connectPayload struct {
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id"`
	ResumeToken   string `json:"resume_token,omitempty"`
}

type connectedPayload struct {
	ConnectionID string `json:"connection_id"`
}

func handleConnectFrame(ctx context.Context, session *wsSession, rt *runtime, frame wsFrame) {
	var payload connectPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid connect payload")
		return
	}
	if strings.TrimSpace(payload.SessionID) == "" {
		_ = writeWSError(session.peer, frame.RequestID, "EMPTY_SESSION_ID", "session_id is required")
		return
	}
	if strings.TrimSpace(payload.ParticipantID) == "" {
		_ = writeWSError(session.peer, frame.RequestID, "EMPTY_PARTICIPANT_ID", "participant_id is required")
		return
	}
	if _, _, _, bound := session.bound(); bound {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_STATE_TRANSITION", "connection already bound to a seat")
		return
	}

	connectionID, err := rt.monitor.Attach(ctx, payload.SessionID, payload.ParticipantID, payload.ResumeToken, clientHandle{peer: session.peer})
	if err != nil {
		writeDomainError(session.peer, frame.RequestID, err)
		return
	}
	session.bind(connectionID, payload.SessionID, payload.ParticipantID)
	_ = session.peer.writeFrame(wsFrame{
		Type:      "session.connected",
		RequestID: frame.RequestID,
		Payload:   mustJSON(connectedPayload{ConnectionID: connectionID}),
	})
}

func handleReadyFrame(ctx context.Context, session *wsSession, rt *runtime, frame wsFrame) {
	connectionID, _, _, bound := session.bound()
	if !bound {
		_ = writeWSError(session.peer, frame.RequestID, "CONNECTION_NOT_FOUND", "connect before announcing readiness")
		return
	}
	if err := rt.monitor.ClientReady(ctx, connectionID); err != nil {
		writeDomainError(session.peer, frame.RequestID, err)
	}
}

func handleStartFrame(session *wsSession, rt *runtime, frame wsFrame) {
	_, sessionID, _, bound := session.bound()
	if !bound {
		_ = writeWSError(session.peer, frame.RequestID, "CONNECTION_NOT_FOUND", "connect before starting")
		return
	}
	if err := rt.monitor.StartSession(sessionID); err != nil {
		writeDomainError(session.peer, frame.RequestID, err)
		return
	}
	_ = session.peer.writeFrame(wsFrame{Type: "session.started", RequestID: frame.RequestID})
}

func handleLeaveFrame(ctx context.Context, session *wsSession, rt *runtime, frame wsFrame) {
	connectionID, _, _, bound := session.bound()
	if !bound {
		_ = writeWSError(session.peer, frame.RequestID, "CONNECTION_NOT_FOUND", "connect before leaving")
		return
	}
	if err := rt.monitor.Leave(ctx, connectionID); err != nil {
		writeDomainError(session.peer, frame.RequestID, err)
		return
	}
	session.unbind()
	_ = session.peer.writeFrame(wsFrame{Type: "session.left", RequestID: frame.RequestID})
}

func handleCloseFrame(ctx context.Context, session *wsSession, rt *runtime, frame wsFrame) {
	_, sessionID, _, bound := session.bound()
	if !bound {
		_ = writeWSError(session.peer, frame.RequestID, "CONNECTION_NOT_FOUND", "connect before closing")
		return
	}
	// The closed notice delivered during teardown doubles as the reply.
	if err := rt.monitor.CloseSession(ctx, sessionID, presence.CloseReasonClosed); err != nil {
		writeDomainError(session.peer, frame.RequestID, err)
		return
	}
	session.unbind()
}

type eventPayload struct {
	Name     string          `json:"name"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Priority domain.Priority `json:"priority"`
}

func handleEventFrame(ctx context.Context, session *wsSession, rt *runtime, frame wsFrame) {
	_, sessionID, _, bound := session.bound()
	if !bound {
		_ = writeWSError(session.peer, frame.RequestID, "CONNECTION_NOT_FOUND", "connect before publishing events")
		return
	}
	var payload eventPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid event payload")
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "event name is required")
		return
	}

	if err := rt.monitor.BroadcastEvent(ctx, sessionID, payload.Name, payload.Payload, payload.Priority); err != nil {
		writeDomainError(session.peer, frame.RequestID, err)
	}
}

type journalPayload struct {
	Limit int `json:"limit,omitempty"`
}

type journalEntryPayload struct {
	ParticipantID string `json:"participant_id,omitempty"`
	Kind          string `json:"kind"`
	Detail        string `json:"detail,omitempty"`
	CreatedAt     string `json:"created_at"`
}

type journalListPayload struct {
	Entries []journalEntryPayload `json:"entries"`
}

func handleJournalFrame(ctx context.Context, session *wsSession, rt *runtime, frame wsFrame) {
	_, sessionID, _, bound := session.bound()
	if !bound {
		_ = writeWSError(session.peer, frame.RequestID, "CONNECTION_NOT_FOUND", "connect before reading the journal")
		return
	}
	if rt.journal == nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_STATE_TRANSITION", "no journal configured")
		return
	}
	var payload journalPayload
	if len(frame.Payload) > 0 {
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid journal payload")
			return
		}
	}

	entries, err := rt.journal.ListEntriesBySession(ctx, sessionID, payload.Limit)
	if err != nil {
		writeDomainError(session.peer, frame.RequestID, err)
		return
	}
	listed := make([]journalEntryPayload, 0, len(entries))
	for _, entry := range entries {
		listed = append(listed, journalEntryPayload{
			ParticipantID: entry.ParticipantID,
			Kind:          string(entry.Kind),
			Detail:        entry.DetailJSON,
			CreatedAt:     entry.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	_ = session.peer.writeFrame(wsFrame{
		Type:      "session.journal",
		RequestID: frame.RequestID,
		Payload:   mustJSON(journalListPayload{Entries: listed}),
	})
}

type actionPayload struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func handleActionFrame(session *wsSession, rt *runtime, frame wsFrame) {
	_, _, participantID, bound := session.bound()
	if !bound {
		_ = writeWSError(session.peer, frame.RequestID, "CONNECTION_NOT_FOUND", "connect before submitting actions")
		return
	}
	var payload actionPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid action payload")
		return
	}
	if strings.TrimSpace(payload.Kind) == "" {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "action kind is required")
		return
	}

	if !rt.actions.Submit(participantID, agent.Action{Kind: payload.Kind, Payload: payload.Payload}) {
		_ = writeWSError(session.peer, frame.RequestID, "RESOURCE_EXHAUSTED", "previous action still pending")
	}
}

type turnPayload struct {
	ParticipantID string `json:"participant_id"`
}

type turnResultPayload struct {
	ParticipantID string `json:"participant_id"`
	Accepted      bool   `json:"accepted"`
	Detail        string `json:"detail,omitempty"`
}

func handleTurnFrame(ctx context.Context, session *wsSession, rt *runtime, frame wsFrame) {
	_, sessionID, _, bound := session.bound()
	if !bound {
		_ = writeWSError(session.peer, frame.RequestID, "CONNECTION_NOT_FOUND", "connect before playing turns")
		return
	}
	if rt.controller == nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_STATE_TRANSITION", "no game engine configured")
		return
	}
	var payload turnPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid turn payload")
		return
	}
	if strings.TrimSpace(payload.ParticipantID) == "" {
		_ = writeWSError(session.peer, frame.RequestID, "EMPTY_PARTICIPANT_ID", "participant_id is required")
		return
	}

	participant, err := rt.monitor.Participant(sessionID, payload.ParticipantID)
	if err != nil {
		writeDomainError(session.peer, frame.RequestID, err)
		return
	}
	result, err := rt.controller.PlayTurn(ctx, sessionID, &participant)
	if err != nil {
		writeDomainError(session.peer, frame.RequestID, err)
		return
	}
	_ = session.peer.writeFrame(wsFrame{
		Type:      "turn.result",
		RequestID: frame.RequestID,
		Payload: mustJSON(turnResultPayload{
			ParticipantID: payload.ParticipantID,
			Accepted:      result.Accepted,
			Detail:        result.Detail,
		}),
	})
}

func writeDomainError(peer *wsPeer, requestID string, err error) {
	code := platformerrors.CodeUnknown
	message := "internal error"
	var derr *platformerrors.Error
	if errors.As(err, &derr) {
		code = derr.Code
		message = derr.Message
	} else {
		message = err.Error()
	}
	_ = writeWSError(peer, requestID, string(code), message)
}

func writeWSError(peer *wsPeer, requestID, code, message string) error {
	return peer.writeFrame(wsFrame{
		Type:      "session.error",
		RequestID: requestID,
		Payload: mustJSON(wsErrorEnvelope{
			Error: wsError{Code: code, Message: message},
		}),
	})
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("failed to marshal websocket frame payload: %v", err)
		return nil
	}
	return b
}
