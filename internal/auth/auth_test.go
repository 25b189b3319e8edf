package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIssueAndVerify(t *testing.T) {
	issuer := NewTokenIssuer("testsecret")
	tok, err := issuer.Issue(42, time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	id, err := issuer.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id != 42 {
		t.Fatalf("id = %d, want 42", id)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	tok, _ := NewTokenIssuer("secret-a").Issue(1, time.Now())
	if _, err := NewTokenIssuer("secret-b").Verify(tok); err != ErrTokenInvalid {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	issuer := NewTokenIssuer("testsecret")
	tok, _ := issuer.Issue(7, time.Now().Add(-48*time.Hour))
	if _, err := issuer.Verify(tok); err != ErrTokenInvalid {
		t.Fatalf("expected ErrTokenInvalid for expired token, got %v", err)
	}
}

func TestRequireAuth(t *testing.T) {
	issuer := NewTokenIssuer("testsecret")
	var gotID uint
	handler := issuer.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = CustomerIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// missing token
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", w.Code)
	}
	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["error"] != "Token missing" {
		t.Fatalf("expected Token missing, got %v", resp["error"])
	}

	// garbage token
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", w.Code)
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["error"] != "Invalid token" {
		t.Fatalf("expected Invalid token, got %v", resp["error"])
	}

	// valid token
	tok, _ := issuer.Issue(9, time.Now())
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	if gotID != 9 {
		t.Fatalf("context id = %d, want 9", gotID)
	}
}
