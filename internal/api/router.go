package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/docketwatch/docketwatch/internal/auth"
	"github.com/docketwatch/docketwatch/internal/billing"
	"github.com/docketwatch/docketwatch/internal/database"
	"github.com/docketwatch/docketwatch/internal/metrics"
	"github.com/docketwatch/docketwatch/internal/notify"
)

// SetupRoutes configures the operational API routes.
func SetupRoutes(mux *http.ServeMux, db *sql.DB, tracker *billing.Tracker, escalator *notify.Escalator, ruleRepo *database.PostgresRuleRepository, pacerHandler *PACERHandler, authConfig auth.Config, collector *metrics.Collector, logger *slog.Logger) {
	handler := NewHandler(db, tracker, escalator, database.NewPostgresSearchHistoryRepository(db), logger)
	authHandler := NewAuthHandler(authConfig, logger)
	ruleHandler := NewRuleHandler(ruleRepo, logger)

	authMiddleware := auth.Middleware(authConfig)
	protected := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			authMiddleware(h).ServeHTTP(w, r)
		}
	}

	// Public routes
	mux.HandleFunc("/api/health", handler.HealthHandler)
	mux.HandleFunc("/api/auth/login", authHandler.Login)
	mux.Handle("/metrics", collector.Handler())

	// Protected routes
	mux.HandleFunc("/api/usage/", protected(handler.UsageReportHandler))
	mux.HandleFunc("/api/rules", protected(ruleHandler.Collection))
	mux.HandleFunc("/api/rules/", protected(ruleHandler.Item))

	// Filing routes: POST /api/filings/analyze runs the pipeline, POST
	// /api/filings/{id}/acknowledge cancels escalation.
	mux.HandleFunc("/api/filings/analyze", protected(pacerHandler.AnalyzeFiling))
	mux.HandleFunc("/api/filings/", protected(handler.AcknowledgeHandler))

	// PACER integration routes
	mux.HandleFunc("/api/credentials", protected(pacerHandler.SaveCredential))
	mux.HandleFunc("/api/pacer/authenticate", protected(pacerHandler.Authenticate))
	mux.HandleFunc("/api/pacer/logout", protected(pacerHandler.Logout))
	mux.HandleFunc("/api/search/cases", protected(pacerHandler.SearchCases))
	mux.HandleFunc("/api/search/parties", protected(pacerHandler.SearchParties))
	mux.HandleFunc("/api/search/history/", protected(handler.SearchHistoryHandler))
	mux.HandleFunc("/api/documents/fetch", protected(pacerHandler.FetchDocument))
}
