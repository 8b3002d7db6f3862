package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ledger/internal/auth"
)

func TestAuthRejects(t *testing.T) {
	foreign, err := auth.GenerateToken("other-secret", "owner-1", time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	cases := []struct {
		name   string
		header string
		want   string
	}{
		{"missing header", "", "missing authorization header"},
		{"wrong scheme", "Token abc", "invalid authorization header"},
		{"empty bearer", "Bearer ", "invalid authorization header"},
		{"garbage token", "Bearer invalid", "invalid token"},
		{"foreign secret", "Bearer " + foreign, "invalid token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := Auth("secret")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Fatalf("handler should not be called")
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rr.Code)
			}
			if !strings.Contains(rr.Body.String(), tc.want) {
				t.Fatalf("expected %q, got %q", tc.want, rr.Body.String())
			}
		})
	}
}

func TestAuthPutsOwnerInContext(t *testing.T) {
	token, err := auth.GenerateToken("secret", "owner-1", time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	handler := Auth("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := OwnerIDFromContext(r.Context())
		if !ok || ownerID != "owner-1" {
			t.Fatalf("expected owner-1 in context, got %q", ownerID)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
}

func TestOwnerIDFromContextEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := OwnerIDFromContext(req.Context()); ok {
		t.Fatal("expected no owner")
	}
	if _, ok := OwnerIDFromContext(WithOwner(req.Context(), "")); ok {
		t.Fatal("expected empty owner to be rejected")
	}
}
