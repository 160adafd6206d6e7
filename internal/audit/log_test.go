package audit

import (
	"context"
	"testing"

	"planhub.org/internal/identity"
)

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatalf("expected error for blank event name")
	}
	if err := LogEvent(context.Background(), "authz.grant.added", map[string]any{"role": "member"}); err != nil {
		t.Fatalf("log event: %v", err)
	}
}

func TestLogEventWithContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = identity.ContextWithUser(ctx, "actor-1", "admin")
	if err := LogEvent(ctx, "authz.assignment.created", map[string]any{"assignment_id": "a1"}); err != nil {
		t.Fatalf("log event: %v", err)
	}
}

func TestWithRequestIDIgnoresBlank(t *testing.T) {
	ctx := context.Background()
	if got := WithRequestID(ctx, "   "); got != ctx {
		t.Fatalf("blank request id should not wrap the context")
	}
	wrapped := WithRequestID(ctx, "req-9")
	if requestIDFromContext(wrapped) != "req-9" {
		t.Fatalf("request id not recoverable from context")
	}
}
