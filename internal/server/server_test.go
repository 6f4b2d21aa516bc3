package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestHealthHandler_NoCheckers(t *testing.T) {
	srv := New(":0", "test")

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", rec.Code, http.StatusOK)
	}

	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if status.Status != "healthy" {
		t.Errorf("status = %q, want healthy", status.Status)
	}
	if status.Version != "test" {
		t.Errorf("version = %q, want test", status.Version)
	}
}

func TestHealthHandler_FailingChecker(t *testing.T) {
	srv := New(":0", "test")
	srv.RegisterHealthCheck("cache", func(context.Context) error { return nil })
	srv.RegisterHealthCheck("posters", func(context.Context) error {
		return errors.New("database locked")
	})

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("health status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if status.Status != "unhealthy" {
		t.Errorf("status = %q, want unhealthy", status.Status)
	}
	if status.Checks["cache"] != "ok" {
		t.Errorf("cache check = %q, want ok", status.Checks["cache"])
	}
	if !strings.Contains(status.Checks["posters"], "database locked") {
		t.Errorf("posters check = %q, want failure message", status.Checks["posters"])
	}
}

func TestReadyHandler(t *testing.T) {
	srv := New(":0", "test")
	srv.RegisterHealthCheck("cache", func(context.Context) error { return nil })

	req := httptest.NewRequest("GET", "/ready", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("ready status = %d, want %d", rec.Code, http.StatusOK)
	}

	srv.RegisterHealthCheck("cache", func(context.Context) error {
		return errors.New("connection refused")
	})
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestLiveHandler(t *testing.T) {
	srv := New(":0", "test")

	req := httptest.NewRequest("GET", "/live", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("live status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "alive" {
		t.Errorf("live body = %q, want alive", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := New(":0", "test")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("metrics status = %d, want %d", rec.Code, http.StatusOK)
	}
}
