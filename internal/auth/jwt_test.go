package auth

import (
	"testing"
	"time"
)

func TestValidateTokenRejectsWrongIssuerAndExpiry(t *testing.T) {
	cfg := &JWTConfig{Secret: []byte("s3cret"), Issuer: "wirechat", TTL: time.Hour}

	token, err := GenerateToken(cfg, "alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ValidateToken(cfg, token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Username != "alice" || claims.Subject != "alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	other := &JWTConfig{Secret: cfg.Secret, Issuer: "someone-else", TTL: time.Hour}
	if _, err := ValidateToken(other, token); err == nil {
		t.Fatalf("expected issuer mismatch to fail")
	}

	expired := &JWTConfig{Secret: cfg.Secret, Issuer: "wirechat", TTL: -time.Minute}
	stale, err := GenerateToken(expired, "alice")
	if err != nil {
		t.Fatalf("generate expired: %v", err)
	}
	if _, err := ValidateToken(cfg, stale); err == nil {
		t.Fatalf("expected expired token to fail")
	}

	wrongKey := &JWTConfig{Secret: []byte("other"), Issuer: "wirechat", TTL: time.Hour}
	if _, err := ValidateToken(wrongKey, token); err == nil {
		t.Fatalf("expected signature mismatch to fail")
	}
}
