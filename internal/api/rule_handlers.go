package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/docketwatch/docketwatch/internal/database"
	"github.com/docketwatch/docketwatch/internal/models"
)

// RuleHandler serves notification rule CRUD.
type RuleHandler struct {
	repo   *database.PostgresRuleRepository
	logger *slog.Logger
}

// NewRuleHandler creates a new rule handler.
func NewRuleHandler(repo *database.PostgresRuleRepository, logger *slog.Logger) *RuleHandler {
	return &RuleHandler{repo: repo, logger: logger}
}

// Collection handles GET and POST on /api/rules
func (h *RuleHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rules, err := h.repo.List(r.Context())
		if err != nil {
			h.logger.Error("failed to list rules", "error", err)
			http.Error(w, "Failed to list rules", http.StatusInternalServerError)
			return
		}
		if rules == nil {
			rules = []models.NotificationRule{}
		}
		writeJSON(w, http.StatusOK, rules)

	case http.MethodPost:
		var rule models.NotificationRule
		if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := validateRule(rule); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		rule.ID = uuid.NewString()
		if err := h.repo.Save(r.Context(), rule); err != nil {
			h.logger.Error("failed to create rule", "error", err)
			http.Error(w, "Failed to create rule", http.StatusInternalServerError)
			return
		}

		h.logger.Info("notification rule created", "id", rule.ID, "name", rule.Name)
		writeJSON(w, http.StatusCreated, rule)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Item handles GET, PUT, and DELETE on /api/rules/{id}
func (h *RuleHandler) Item(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/rules/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "Rule ID required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		rule, err := h.repo.Get(r.Context(), id)
		if err != nil {
			h.logger.Error("failed to get rule", "id", id, "error", err)
			http.Error(w, "Failed to get rule", http.StatusInternalServerError)
			return
		}
		if rule == nil {
			http.Error(w, "Rule not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, rule)

	case http.MethodPut:
		existing, err := h.repo.Get(r.Context(), id)
		if err != nil {
			h.logger.Error("failed to get rule", "id", id, "error", err)
			http.Error(w, "Failed to get rule", http.StatusInternalServerError)
			return
		}
		if existing == nil {
			http.Error(w, "Rule not found", http.StatusNotFound)
			return
		}

		var rule models.NotificationRule
		if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := validateRule(rule); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		rule.ID = id
		if err := h.repo.Save(r.Context(), rule); err != nil {
			h.logger.Error("failed to update rule", "id", id, "error", err)
			http.Error(w, "Failed to update rule", http.StatusInternalServerError)
			return
		}

		h.logger.Info("notification rule updated", "id", id, "name", rule.Name)
		writeJSON(w, http.StatusOK, rule)

	case http.MethodDelete:
		if err := h.repo.Delete(r.Context(), id); err != nil {
			if strings.Contains(err.Error(), "not found") {
				http.Error(w, "Rule not found", http.StatusNotFound)
				return
			}
			h.logger.Error("failed to delete rule", "id", id, "error", err)
			http.Error(w, "Failed to delete rule", http.StatusInternalServerError)
			return
		}

		h.logger.Info("notification rule deleted", "id", id)
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func validateRule(rule models.NotificationRule) error {
	if rule.Name == "" {
		return errBadRule("name is required")
	}
	if len(rule.Roles) == 0 {
		return errBadRule("at least one role is required")
	}
	if len(rule.Channels) == 0 {
		return errBadRule("at least one channel is required")
	}
	for _, ch := range rule.Channels {
		switch ch {
		case models.ChannelEmail, models.ChannelSMS, models.ChannelSlack,
			models.ChannelTeams, models.ChannelWebhook, models.ChannelPush:
		default:
			return errBadRule("unknown channel: " + string(ch))
		}
	}
	return nil
}

type errBadRule string

func (e errBadRule) Error() string { return string(e) }
