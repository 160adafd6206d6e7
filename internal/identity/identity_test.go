package identity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func setSecret(t *testing.T, value string) {
	t.Helper()
	t.Setenv("PLANHUB_AUTH_SECRET", value)
	ResetSecretCache()
	t.Cleanup(ResetSecretCache)
}

func TestGenerateAndValidate(t *testing.T) {
	setSecret(t, "test-secret")

	token, err := GenerateToken("user-1", "admin", time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("subject = %q", claims.Subject)
	}
	if claims.SystemRole != "admin" {
		t.Fatalf("system role = %q", claims.SystemRole)
	}
	if claims.ID == "" {
		t.Fatalf("expected a token id claim")
	}
}

func TestGenerateValidation(t *testing.T) {
	setSecret(t, "test-secret")

	if _, err := GenerateToken("", "admin", time.Minute); err == nil {
		t.Fatalf("expected error for empty user id")
	}
	if _, err := GenerateToken("user-1", "", 0); err == nil {
		t.Fatalf("expected error for non-positive ttl")
	}
}

func TestMissingSecret(t *testing.T) {
	setSecret(t, "")

	if _, err := GenerateToken("user-1", "", time.Minute); !errors.Is(err, errMissingSecret) {
		t.Fatalf("expected missing-secret error, got %v", err)
	}
}

func TestRejectsTamperedToken(t *testing.T) {
	setSecret(t, "test-secret")

	token, err := GenerateToken("user-1", "", time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape")
	}
	tampered := parts[0] + "." + parts[1] + ".AAAA"
	if _, err := ParseAndValidate(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("tampered token accepted: %v", err)
	}
	if _, err := ParseAndValidate(""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("empty token accepted: %v", err)
	}
}

func TestRejectsWrongSecret(t *testing.T) {
	setSecret(t, "secret-a")
	token, err := GenerateToken("user-1", "", time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	setSecret(t, "secret-b")
	if _, err := ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token signed with another secret accepted: %v", err)
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := ContextWithUser(context.Background(), "user-1", "admin")
	id, ok := UserIDFromContext(ctx)
	if !ok || id != "user-1" {
		t.Fatalf("user id = %q, %v", id, ok)
	}
	if role := SystemRoleFromContext(ctx); role != "admin" {
		t.Fatalf("system role = %q", role)
	}
	if _, ok := UserIDFromContext(context.Background()); ok {
		t.Fatalf("empty context should carry no user")
	}
}
