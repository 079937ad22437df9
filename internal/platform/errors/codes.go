// Package errors provides structured error handling for the continuity service.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Lookup errors
	CodeSessionNotFound     Code = "SESSION_NOT_FOUND"
	CodeConnectionNotFound  Code = "CONNECTION_NOT_FOUND"
	CodeParticipantNotFound Code = "PARTICIPANT_NOT_FOUND"

	// Presence errors
	CodeInvalidStateTransition Code = "INVALID_STATE_TRANSITION"
	CodeSessionAlreadyStarted  Code = "SESSION_ALREADY_STARTED"
	CodeSessionFull            Code = "SESSION_FULL"

	// Replay errors
	CodeQueueOverflow Code = "QUEUE_OVERFLOW"

	// Agent errors
	CodeAgentDecisionFailure Code = "AGENT_DECISION_FAILURE"

	// Validation errors
	CodeEmptySessionID     Code = "EMPTY_SESSION_ID"
	CodeEmptyParticipantID Code = "EMPTY_PARTICIPANT_ID"
	CodeEmptyDisplayName   Code = "EMPTY_DISPLAY_NAME"
	CodeInvalidSlotCount   Code = "INVALID_SLOT_COUNT"

	// Resume token errors
	CodeResumeTokenInvalid  Code = "RESUME_TOKEN_INVALID"
	CodeResumeTokenMismatch Code = "RESUME_TOKEN_MISMATCH"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeEmptySessionID,
		CodeEmptyParticipantID,
		CodeEmptyDisplayName,
		CodeInvalidSlotCount:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeInvalidStateTransition,
		CodeSessionAlreadyStarted,
		CodeSessionFull:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeSessionNotFound,
		CodeConnectionNotFound,
		CodeParticipantNotFound:
		return codes.NotFound

	// Unauthenticated - reconnect identity could not be pinned to the join
	case CodeResumeTokenInvalid,
		CodeResumeTokenMismatch:
		return codes.Unauthenticated

	// ResourceExhausted - bounded queue discarded entries
	case CodeQueueOverflow:
		return codes.ResourceExhausted

	default:
		return codes.Internal
	}
}
