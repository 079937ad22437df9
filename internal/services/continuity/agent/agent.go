// Package agent supplies the acting agent for each participant seat.
//
// Human-controlled seats relay actions from the live connection. Seats
// under bot control produce actions from a decision policy, with a
// conservative pass action substituted whenever the policy fails or
// takes too long.
package agent

import (
	"context"
	"encoding/json"
	"log"

	platformerrors "github.com/louisbranch/tablekeep/internal/platform/errors"
	"github.com/louisbranch/tablekeep/internal/platform/timeouts"
	"github.com/louisbranch/tablekeep/internal/services/continuity/domain"
)

// ActionKindPass is the safe default action submitted when a bot
// decision fails.
const ActionKindPass = "pass"

// Action is one game action submitted on behalf of a participant.
type Action struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PassAction returns the conservative default action.
func PassAction() Action {
	return Action{Kind: ActionKindPass}
}

// Result reports the engine's verdict on a submitted action.
type Result struct {
	Accepted bool
	Detail   string
}

// PhaseState describes the current game phase to decision policies.
type PhaseState struct {
	Phase        string
	ActiveSeat   int
	LegalActions []string
}

// Engine is the collaborator contract with the game rule engine. The
// continuity service never interprets game rules itself.
type Engine interface {
	ApplyAction(ctx context.Context, participantID string, action Action) (Result, error)
	CurrentPhaseState(ctx context.Context) (PhaseState, error)
}

// Handle produces the next action for one participant seat.
type Handle interface {
	NextAction(ctx context.Context, participantID string) (Action, error)
}

// ActionSource supplies actions relayed from a live human connection.
type ActionSource interface {
	AwaitAction(ctx context.Context, participantID string) (Action, error)
}

// Policy chooses an action for a bot-controlled seat.
type Policy interface {
	Decide(state PhaseState) (Action, error)
}

// PassPolicy always declines to act.
type PassPolicy struct{}

// Decide returns the pass action.
func (PassPolicy) Decide(PhaseState) (Action, error) {
	return PassAction(), nil
}

// Controller resolves which agent acts for a participant based on its
// control status.
type Controller struct {
	engine  Engine
	policy  Policy
	source  ActionSource
	onFault func(sessionID, participantID string, cause error)
}

// NewController builds a Controller. The policy defaults to PassPolicy
// when nil; onFault may be nil.
func NewController(engine Engine, policy Policy, source ActionSource, onFault func(sessionID, participantID string, cause error)) *Controller {
	if policy == nil {
		policy = PassPolicy{}
	}
	return &Controller{
		engine:  engine,
		policy:  policy,
		source:  source,
		onFault: onFault,
	}
}

// ActingAgent returns the agent that currently acts for the seat: a
// relay to the live connection while the human is active, a bot
// otherwise.
func (c *Controller) ActingAgent(sessionID string, participant *domain.ParticipantSession) Handle {
	if participant.Control == domain.ControlStatusHumanActive {
		return &relayAgent{source: c.source}
	}
	return &botAgent{
		engine: c.engine,
		policy: c.policy,
		onFault: func(participantID string, cause error) {
			c.fault(sessionID, participantID, cause)
		},
	}
}

// PlayTurn obtains the next action for the seat and submits it to the
// game engine.
func (c *Controller) PlayTurn(ctx context.Context, sessionID string, participant *domain.ParticipantSession) (Result, error) {
	action, err := c.ActingAgent(sessionID, participant).NextAction(ctx, participant.ID)
	if err != nil {
		return Result{}, err
	}
	return c.engine.ApplyAction(ctx, participant.ID, action)
}

func (c *Controller) fault(sessionID, participantID string, cause error) {
	log.Printf("bot decision failed session=%s participant=%s error=%v", sessionID, participantID, cause)
	if c.onFault != nil {
		c.onFault(sessionID, participantID, cause)
	}
}

// relayAgent passes through whatever the live human connection sends.
type relayAgent struct {
	source ActionSource
}

func (r *relayAgent) NextAction(ctx context.Context, participantID string) (Action, error) {
	if r.source == nil {
		return Action{}, platformerrors.New(platformerrors.CodeConnectionNotFound, "no action source for live seat")
	}
	return r.source.AwaitAction(ctx, participantID)
}

// botAgent decides with the configured policy under a hard deadline.
// It never returns an error: faults substitute the pass action so the
// owning game session keeps moving.
type botAgent struct {
	engine  Engine
	policy  Policy
	onFault func(participantID string, cause error)
}

func (b *botAgent) NextAction(ctx context.Context, participantID string) (Action, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.AgentDecision)
	defer cancel()

	state, err := b.engine.CurrentPhaseState(ctx)
	if err != nil {
		b.onFault(participantID, platformerrors.Wrap(platformerrors.CodeAgentDecisionFailure, "read phase state", err))
		return PassAction(), nil
	}

	type decision struct {
		action Action
		err    error
	}
	// The policy runs in its own goroutine so a slow script cannot
	// stall the caller past the decision deadline.
	decided := make(chan decision, 1)
	go func() {
		action, decideErr := b.policy.Decide(state)
		decided <- decision{action: action, err: decideErr}
	}()

	select {
	case d := <-decided:
		if d.err != nil {
			b.onFault(participantID, platformerrors.Wrap(platformerrors.CodeAgentDecisionFailure, "policy decision", d.err))
			return PassAction(), nil
		}
		if d.action.Kind == "" {
			b.onFault(participantID, platformerrors.New(platformerrors.CodeAgentDecisionFailure, "policy returned empty action"))
			return PassAction(), nil
		}
		return d.action, nil
	case <-ctx.Done():
		b.onFault(participantID, platformerrors.Wrap(platformerrors.CodeAgentDecisionFailure, "decision deadline exceeded", ctx.Err()))
		return PassAction(), nil
	}
}
