package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/docketwatch/docketwatch/internal/auth"
	"github.com/docketwatch/docketwatch/internal/models"
	"github.com/docketwatch/docketwatch/internal/notify"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoginHandler(t *testing.T) {
	hash, err := auth.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	handler := NewAuthHandler(auth.Config{
		JWTSecret:         "test-secret",
		AdminPasswordHash: hash,
		TokenDuration:     time.Hour,
	}, testLogger())

	tests := []struct {
		name string
		body string
		want int
	}{
		{"correct password", `{"password":"s3cret"}`, http.StatusOK},
		{"wrong password", `{"password":"nope"}`, http.StatusUnauthorized},
		{"empty body", `{}`, http.StatusUnauthorized},
		{"malformed json", `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			handler.Login(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}

			if tt.want == http.StatusOK {
				var resp LoginResponse
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatalf("decoding response: %v", err)
				}
				if resp.Token == "" {
					t.Error("successful login must return a token")
				}
				if userID, err := auth.ValidateToken(resp.Token, "test-secret"); err != nil || userID != "admin" {
					t.Errorf("token does not validate: %v", err)
				}
			}
		})
	}
}

func TestLoginRejectsWithoutConfiguredHash(t *testing.T) {
	handler := NewAuthHandler(auth.Config{JWTSecret: "test-secret", TokenDuration: time.Hour}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"password":""}`))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d; an unset admin hash must reject every login", rec.Code)
	}
}

func TestLoginMethodNotAllowed(t *testing.T) {
	handler := NewAuthHandler(auth.Config{JWTSecret: "s", TokenDuration: time.Hour}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/auth/login", nil)
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func newAckHandler(t *testing.T) (*Handler, *notify.Escalator) {
	t.Helper()
	registry := notify.NewLogRegistry(testLogger())
	escalator := notify.NewEscalator(registry, notify.NewMemoryAckStore(),
		[]time.Duration{time.Hour}, nil, testLogger())
	t.Cleanup(escalator.Stop)
	return NewHandler(nil, nil, escalator, nil, testLogger()), escalator
}

func TestAcknowledgeHandler(t *testing.T) {
	handler, _ := newAckHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/filings/filing-1/acknowledge",
		strings.NewReader(`{"acknowledged_by":"oncall@example.com"}`))
	rec := httptest.NewRecorder()

	handler.AcknowledgeHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["filing_id"] != "filing-1" || resp["acknowledged"] != true {
		t.Errorf("response = %v", resp)
	}
}

func TestAcknowledgeHandlerValidation(t *testing.T) {
	handler, _ := newAckHandler(t)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"missing acknowledged_by", "/api/filings/filing-1/acknowledge", `{}`, http.StatusBadRequest},
		{"missing filing id", "/api/filings//acknowledge", `{"acknowledged_by":"a"}`, http.StatusBadRequest},
		{"wrong suffix", "/api/filings/filing-1", `{"acknowledged_by":"a"}`, http.StatusBadRequest},
		{"malformed body", "/api/filings/filing-1/acknowledge", `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			handler.AcknowledgeHandler(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

type staticHistory struct {
	entries  []models.SearchHistoryEntry
	err      error
	gotLimit int
}

func (s *staticHistory) Recent(ctx context.Context, identity string, limit int) ([]models.SearchHistoryEntry, error) {
	s.gotLimit = limit
	return s.entries, s.err
}

func TestSearchHistoryHandler(t *testing.T) {
	source := &staticHistory{entries: []models.SearchHistoryEntry{
		{ID: "e1", Identity: "tenant-1", SearchType: "cases", ResultCount: 3},
	}}
	handler := NewHandler(nil, nil, nil, source, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/search/history/tenant-1?limit=5", nil)
	rec := httptest.NewRecorder()

	handler.SearchHistoryHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if source.gotLimit != 5 {
		t.Errorf("limit = %d, want 5", source.gotLimit)
	}

	var resp struct {
		Identity string                      `json:"identity"`
		Searches []models.SearchHistoryEntry `json:"searches"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Identity != "tenant-1" || len(resp.Searches) != 1 {
		t.Errorf("response = %+v", resp)
	}
}

func TestSearchHistoryHandlerEmptyHistoryIsNotNull(t *testing.T) {
	handler := NewHandler(nil, nil, nil, &staticHistory{}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/search/history/tenant-1", nil)
	rec := httptest.NewRecorder()

	handler.SearchHistoryHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"searches":[]`) {
		t.Errorf("empty history must serialize as an empty array, got %s", rec.Body.String())
	}
}

func TestSearchHistoryHandlerValidation(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"missing identity", http.MethodGet, "/api/search/history/", http.StatusBadRequest},
		{"nested path", http.MethodGet, "/api/search/history/tenant-1/extra", http.StatusBadRequest},
		{"non-numeric limit", http.MethodGet, "/api/search/history/tenant-1?limit=abc", http.StatusBadRequest},
		{"zero limit", http.MethodGet, "/api/search/history/tenant-1?limit=0", http.StatusBadRequest},
		{"wrong method", http.MethodPost, "/api/search/history/tenant-1", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(nil, nil, nil, &staticHistory{}, testLogger())

			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()

			handler.SearchHistoryHandler(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestSearchHistoryHandlerSourceError(t *testing.T) {
	handler := NewHandler(nil, nil, nil, &staticHistory{err: errors.New("db down")}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/search/history/tenant-1", nil)
	rec := httptest.NewRecorder()

	handler.SearchHistoryHandler(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestHealthHandlerWithoutDatabase(t *testing.T) {
	handler := NewHandler(nil, nil, nil, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()

	handler.HealthHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["status"] != "ok" {
		t.Errorf("status field = %v", resp["status"])
	}
}
