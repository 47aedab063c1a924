package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/docketwatch/docketwatch/internal/billing"
	"github.com/docketwatch/docketwatch/internal/database"
	"github.com/docketwatch/docketwatch/internal/models"
	"github.com/docketwatch/docketwatch/internal/notify"
)

// SearchHistorySource lists an identity's recent searches, newest first.
type SearchHistorySource interface {
	Recent(ctx context.Context, identity string, limit int) ([]models.SearchHistoryEntry, error)
}

// Handler serves the operational endpoints: health, usage reporting, search
// history, and alert acknowledgment.
type Handler struct {
	db        *sql.DB
	tracker   *billing.Tracker
	escalator *notify.Escalator
	history   SearchHistorySource
	logger    *slog.Logger
}

// NewHandler creates the operational handler.
func NewHandler(db *sql.DB, tracker *billing.Tracker, escalator *notify.Escalator, history SearchHistorySource, logger *slog.Logger) *Handler {
	return &Handler{
		db:        db,
		tracker:   tracker,
		escalator: escalator,
		history:   history,
		logger:    logger,
	}
}

// HealthHandler handles GET /api/health
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := "ok"
	code := http.StatusOK

	var dbStatus map[string]interface{}
	if h.db != nil {
		if err := database.HealthCheck(r.Context(), h.db); err != nil {
			h.logger.Error("database health check failed", "error", err)
			status = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			dbStatus = database.Stats(h.db)
		}
	}

	writeJSON(w, code, map[string]interface{}{
		"status":   status,
		"database": dbStatus,
	})
}

// UsageReportHandler handles GET /api/usage/{identity}?days=30
func (h *Handler) UsageReportHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	identity := strings.TrimPrefix(r.URL.Path, "/api/usage/")
	if identity == "" || strings.Contains(identity, "/") {
		http.Error(w, "Identity required", http.StatusBadRequest)
		return
	}

	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 365 {
			http.Error(w, "Invalid days parameter", http.StatusBadRequest)
			return
		}
		days = n
	}

	report, err := h.tracker.UsageReport(r.Context(), identity, days)
	if err != nil {
		h.logger.Error("failed to build usage report", "error", err)
		http.Error(w, "Failed to build usage report", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// SearchHistoryHandler handles GET /api/search/history/{identity}?limit=50
func (h *Handler) SearchHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	identity := strings.TrimPrefix(r.URL.Path, "/api/search/history/")
	if identity == "" || strings.Contains(identity, "/") {
		http.Error(w, "Identity required", http.StatusBadRequest)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			http.Error(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := h.history.Recent(r.Context(), identity, limit)
	if err != nil {
		h.logger.Error("failed to load search history", "identity", identity, "error", err)
		http.Error(w, "Failed to load search history", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []models.SearchHistoryEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"identity": identity,
		"searches": entries,
	})
}

// AcknowledgeRequest is the acknowledge endpoint's body.
type AcknowledgeRequest struct {
	AcknowledgedBy string `json:"acknowledged_by"`
}

// AcknowledgeHandler handles POST /api/filings/{id}/acknowledge
func (h *Handler) AcknowledgeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/filings/")
	filingID := strings.TrimSuffix(path, "/acknowledge")
	if filingID == "" || filingID == path || strings.Contains(filingID, "/") {
		http.Error(w, "Filing ID required", http.StatusBadRequest)
		return
	}

	var req AcknowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.AcknowledgedBy == "" {
		http.Error(w, "acknowledged_by is required", http.StatusBadRequest)
		return
	}

	if err := h.escalator.Acknowledge(r.Context(), filingID, req.AcknowledgedBy); err != nil {
		h.logger.Error("failed to acknowledge filing", "filing_id", filingID, "error", err)
		http.Error(w, "Failed to record acknowledgment", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"filing_id":    filingID,
		"acknowledged": true,
	})
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Default().Error("failed to encode response", "error", err)
	}
}
