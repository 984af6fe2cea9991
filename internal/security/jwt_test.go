package security

import (
	"testing"
	"time"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	mgr := NewJWTManager("0123456789abcdef0123456789abcdef")
	token, err := mgr.SignAccessToken(42, "round@example.com", 15*time.Minute)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	claims, err := mgr.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if claims.Subject != "42" {
		t.Fatalf("subject=%q want 42", claims.Subject)
	}
	if claims.Email != "round@example.com" {
		t.Fatalf("email=%q", claims.Email)
	}
	if claims.TokenType != TokenTypeAccess {
		t.Fatalf("type=%q want access", claims.TokenType)
	}
	if claims.ID == "" {
		t.Fatal("expected a jti")
	}
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	mgr := NewJWTManager("0123456789abcdef0123456789abcdef")
	token, expiresAt, err := mgr.SignRefreshToken(7, 24*time.Hour)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if remaining := time.Until(expiresAt); remaining < 23*time.Hour {
		t.Fatalf("expiry too soon: %v", remaining)
	}
	claims, err := mgr.ParseRefreshToken(token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if claims.Subject != "7" || claims.TokenType != TokenTypeRefresh {
		t.Fatalf("claims subject=%q type=%q", claims.Subject, claims.TokenType)
	}
}

// A token of one type must never parse as the other.
func TestTokenTypeConfusionRejected(t *testing.T) {
	mgr := NewJWTManager("0123456789abcdef0123456789abcdef")
	access, err := mgr.SignAccessToken(1, "a@example.com", time.Minute)
	if err != nil {
		t.Fatalf("sign access: %v", err)
	}
	refresh, _, err := mgr.SignRefreshToken(1, time.Minute)
	if err != nil {
		t.Fatalf("sign refresh: %v", err)
	}
	if _, err := mgr.ParseRefreshToken(access); err != ErrInvalidToken {
		t.Fatalf("access-as-refresh err=%v want ErrInvalidToken", err)
	}
	if _, err := mgr.ParseAccessToken(refresh); err != ErrInvalidToken {
		t.Fatalf("refresh-as-access err=%v want ErrInvalidToken", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	mgr := NewJWTManager("0123456789abcdef0123456789abcdef")
	token, err := mgr.SignAccessToken(1, "old@example.com", -time.Minute)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := mgr.ParseAccessToken(token); err != ErrInvalidToken {
		t.Fatalf("expired token err=%v want ErrInvalidToken", err)
	}
}

func TestWrongSecretRejected(t *testing.T) {
	token, err := NewJWTManager("0123456789abcdef0123456789abcdef").SignAccessToken(1, "", time.Minute)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	other := NewJWTManager("abcdef0123456789abcdef0123456789")
	if _, err := other.ParseAccessToken(token); err != ErrInvalidToken {
		t.Fatalf("foreign token err=%v want ErrInvalidToken", err)
	}
}

func TestGarbageTokenRejected(t *testing.T) {
	mgr := NewJWTManager("0123456789abcdef0123456789abcdef")
	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := mgr.ParseAccessToken(raw); err != ErrInvalidToken {
			t.Fatalf("garbage %q err=%v want ErrInvalidToken", raw, err)
		}
	}
}

func TestConfigured(t *testing.T) {
	if NewJWTManager("").Configured() {
		t.Fatal("empty secret must not report configured")
	}
	if !NewJWTManager("secret").Configured() {
		t.Fatal("non-empty secret must report configured")
	}
}

func TestFingerprintStableAndDistinct(t *testing.T) {
	a := Fingerprint("token-a")
	if a != Fingerprint("token-a") {
		t.Fatal("fingerprint must be deterministic")
	}
	if a == Fingerprint("token-b") {
		t.Fatal("distinct tokens must not collide")
	}
	if len(a) != 64 {
		t.Fatalf("fingerprint length=%d want 64 hex chars", len(a))
	}
}
