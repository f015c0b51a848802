package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// stubChecker implements HealthChecker with a fixed result.
type stubChecker struct {
	err error
}

func (s *stubChecker) HealthCheck(_ context.Context) error {
	return s.err
}

func TestHealthEndpoint(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handlers.Health(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("expected healthy status, got %q", resp.Status)
	}
}

func TestHealthMethodNotAllowed(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{})

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	w := httptest.NewRecorder()
	handlers.Health(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}
}

func TestReadyAllHealthy(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{
		DBChecker:          &stubChecker{},
		RedisChecker:       &stubChecker{},
		TinybirdConfigured: true,
	})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	handlers.Ready(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Checks["database"] != "ok" || resp.Checks["redis"] != "ok" {
		t.Errorf("unexpected checks: %v", resp.Checks)
	}
	if resp.Checks["tinybird"] != "configured" {
		t.Errorf("expected tinybird configured, got %q", resp.Checks["tinybird"])
	}
}

func TestReadyDatabaseDown(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{
		DBChecker: &stubChecker{err: errors.New("connection refused")},
	})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	handlers.Ready(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", w.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "unhealthy" {
		t.Errorf("expected unhealthy status, got %q", resp.Status)
	}
	if resp.Checks["database"] != "error" {
		t.Errorf("expected database error, got %q", resp.Checks["database"])
	}
}

func TestReadyMissingTinybirdDoesNotFail(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	handlers.Ready(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Checks["tinybird"] != "not_configured" {
		t.Errorf("expected tinybird not_configured, got %q", resp.Checks["tinybird"])
	}
}
