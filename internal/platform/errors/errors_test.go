package errors

import (
	stderrors "errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := New(CodeSessionNotFound, "session abc not found")
	target := New(CodeSessionNotFound, "different message")

	if !stderrors.Is(err, target) {
		t.Fatal("expected errors with the same code to match")
	}
	if stderrors.Is(err, New(CodeConnectionNotFound, "other")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(CodeAgentDecisionFailure, "agent decision failed", cause)

	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable via errors.Is")
	}
	if err.Error() != "agent decision failed" {
		t.Fatalf("expected internal message, got %q", err.Error())
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	tests := []struct {
		code Code
		want codes.Code
	}{
		{CodeSessionNotFound, codes.NotFound},
		{CodeConnectionNotFound, codes.NotFound},
		{CodeInvalidStateTransition, codes.FailedPrecondition},
		{CodeSessionFull, codes.FailedPrecondition},
		{CodeEmptySessionID, codes.InvalidArgument},
		{CodeQueueOverflow, codes.ResourceExhausted},
		{CodeResumeTokenInvalid, codes.Unauthenticated},
		{CodeUnknown, codes.Internal},
		{CodeAgentDecisionFailure, codes.Internal},
	}
	for _, tc := range tests {
		if got := tc.code.GRPCCode(); got != tc.want {
			t.Fatalf("code %s: expected %v, got %v", tc.code, tc.want, got)
		}
	}
}

func TestToGRPCStatusAttachesErrorInfo(t *testing.T) {
	err := WithMetadata(CodeSessionNotFound, "session not found", map[string]string{
		"session_id": "abc",
	})

	st, ok := status.FromError(err.ToGRPCStatus())
	if !ok {
		t.Fatal("expected a gRPC status error")
	}
	if st.Code() != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", st.Code())
	}
	if st.Message() != "session not found" {
		t.Fatalf("unexpected status message %q", st.Message())
	}
	if len(st.Details()) != 1 {
		t.Fatalf("expected 1 detail, got %d", len(st.Details()))
	}
}
