package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHealthCheckReportsModeAndUptime(t *testing.T) {
	started := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	h := NewHealthHandler("full")
	h.started = started
	h.now = func() time.Time { return started.Add(90 * time.Second) }

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Status        string `json:"status"`
		Service       string `json:"service"`
		Mode          string `json:"mode"`
		UptimeSeconds int64  `json:"uptime_seconds"`
		Timestamp     string `json:"timestamp"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}

	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	if body.Service != "verivo-engine" {
		t.Errorf("service = %q, want verivo-engine", body.Service)
	}
	if body.Mode != "full" {
		t.Errorf("mode = %q, want full", body.Mode)
	}
	if body.UptimeSeconds != 90 {
		t.Errorf("uptime_seconds = %d, want 90", body.UptimeSeconds)
	}
	if _, err := time.Parse(time.RFC3339, body.Timestamp); err != nil {
		t.Errorf("timestamp %q not RFC3339: %v", body.Timestamp, err)
	}
}
