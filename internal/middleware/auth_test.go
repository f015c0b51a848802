package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/theatlasimpact/papermark-vansgiving/internal/auth"
)

func newAuthHandler(t *testing.T, validator TokenValidator) (http.Handler, *string) {
	t.Helper()
	var capturedUserID string
	handler := Auth(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedUserID = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	return handler, &capturedUserID
}

func TestAuth_ValidToken(t *testing.T) {
	svc := auth.NewJWTService("test-secret")
	token, err := svc.GenerateAccessToken("user-123", "owner@acme.com")
	if err != nil {
		t.Fatalf("GenerateAccessToken() failed: %v", err)
	}

	handler, capturedUserID := newAuthHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/teams/team-1/documents/doc-1/views", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if *capturedUserID != "user-123" {
		t.Errorf("expected user ID user-123 in context, got %q", *capturedUserID)
	}
}

func TestAuth_NoHeaderPassesThrough(t *testing.T) {
	svc := auth.NewJWTService("test-secret")
	handler, capturedUserID := newAuthHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if *capturedUserID != "" {
		t.Errorf("expected no user ID in context, got %q", *capturedUserID)
	}
}

func TestAuth_InvalidToken(t *testing.T) {
	svc := auth.NewJWTService("test-secret")
	handler, _ := newAuthHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/teams/team-1/documents/doc-1/views", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rr.Code)
	}
	if rr.Header().Get("WWW-Authenticate") == "" {
		t.Error("expected WWW-Authenticate header")
	}
}

func TestAuth_WrongSecret(t *testing.T) {
	signer := auth.NewJWTService("other-secret")
	token, err := signer.GenerateAccessToken("user-123", "")
	if err != nil {
		t.Fatalf("GenerateAccessToken() failed: %v", err)
	}

	svc := auth.NewJWTService("test-secret")
	handler, _ := newAuthHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/teams/team-1/documents", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rr.Code)
	}
}

func TestAuth_RefreshTokenRejected(t *testing.T) {
	svc := auth.NewJWTService("test-secret")
	token, err := svc.GenerateRefreshToken("user-123")
	if err != nil {
		t.Fatalf("GenerateRefreshToken() failed: %v", err)
	}

	handler, _ := newAuthHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/teams/team-1/documents", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("refresh token should not authenticate a request, got status %d", rr.Code)
	}
}

func TestAuth_MalformedHeader(t *testing.T) {
	svc := auth.NewJWTService("test-secret")
	handler, _ := newAuthHandler(t, svc)

	for _, header := range []string{"Bearer", "Bearer ", "Basic dXNlcjpwYXNz", "token-without-scheme"} {
		req := httptest.NewRequest(http.MethodGet, "/teams/team-1/documents", nil)
		req.Header.Set("Authorization", header)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected status 401, got %d", header, rr.Code)
		}
	}
}

func TestAuth_RotatedSecretStillValidates(t *testing.T) {
	oldSvc := auth.NewJWTService("old-secret")
	token, err := oldSvc.GenerateAccessToken("user-456", "")
	if err != nil {
		t.Fatalf("GenerateAccessToken() failed: %v", err)
	}

	rotated := auth.NewJWTServiceWithRotationAndLeeway("new-secret", "old-secret", 30*time.Second)
	handler, capturedUserID := newAuthHandler(t, rotated)

	req := httptest.NewRequest(http.MethodGet, "/teams/team-1/documents", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200 for token signed with previous secret, got %d", rr.Code)
	}
	if *capturedUserID != "user-456" {
		t.Errorf("expected user ID user-456, got %q", *capturedUserID)
	}
}
