package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndParse(t *testing.T) {
	token, err := GenerateToken("secret", "owner-1", time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	claims, err := ParseToken("secret", token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.UserID != "owner-1" {
		t.Fatalf("unexpected user id %q", claims.UserID)
	}
}

func TestParseWrongSecret(t *testing.T) {
	token, _ := GenerateToken("secret", "owner-1", time.Minute)
	if _, err := ParseToken("other", token); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestParseExpired(t *testing.T) {
	claims := &Claims{UserID: "owner-1", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if _, err := ParseToken("secret", token); err == nil {
		t.Fatalf("expected expiry error")
	}
}

func TestParseSubjectFallback(t *testing.T) {
	claims := jwt.RegisteredClaims{Subject: "owner-9", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	parsed, err := ParseToken("secret", token)
	if err != nil || parsed.UserID != "owner-9" {
		t.Fatalf("expected subject fallback, got %#v (%v)", parsed, err)
	}
}

func TestParseMissingSubject(t *testing.T) {
	claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if _, err := ParseToken("secret", token); err != ErrMissingSubject {
		t.Fatalf("expected ErrMissingSubject, got %v", err)
	}
}
