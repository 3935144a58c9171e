package auth

import (
	"errors"
	"testing"
	"time"
)

func TestServiceTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")

	tok, err := NewServiceToken(secret, "cron", time.Minute)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	subject, err := VerifyServiceToken(secret, tok)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if subject != "cron" {
		t.Errorf("subject = %q, want %q", subject, "cron")
	}
}

func TestServiceTokenWrongSecret(t *testing.T) {
	tok, err := NewServiceToken([]byte("secret-a"), "cron", time.Minute)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	if _, err := VerifyServiceToken([]byte("secret-b"), tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestServiceTokenExpired(t *testing.T) {
	secret := []byte("test-secret")
	tok, err := NewServiceToken(secret, "cron", -time.Minute)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	if _, err := VerifyServiceToken(secret, tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestServiceTokenGarbage(t *testing.T) {
	if _, err := VerifyServiceToken([]byte("secret"), "not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}
