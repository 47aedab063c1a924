package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/joho/godotenv"

	"github.com/docketwatch/docketwatch/internal/api"
	"github.com/docketwatch/docketwatch/internal/auth"
	"github.com/docketwatch/docketwatch/internal/billing"
	"github.com/docketwatch/docketwatch/internal/config"
	"github.com/docketwatch/docketwatch/internal/database"
	"github.com/docketwatch/docketwatch/internal/documents"
	"github.com/docketwatch/docketwatch/internal/filings"
	"github.com/docketwatch/docketwatch/internal/logging"
	"github.com/docketwatch/docketwatch/internal/metrics"
	"github.com/docketwatch/docketwatch/internal/notify"
	"github.com/docketwatch/docketwatch/internal/pacer"
	"github.com/docketwatch/docketwatch/internal/server"
)

func main() {
	// Load .env when present; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting docketwatch", "environment", cfg.PACER.Environment)

	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.Database.URL

	logger.Info("connecting to database")
	db, err := database.Connect(ctx, dbCfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connected")

	if err := database.RunMigrations(ctx, db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Repositories
	credentialRepo := database.NewPostgresCredentialRepository(db)
	costRepo := database.NewPostgresCostRepository(db)
	historyRepo := database.NewPostgresSearchHistoryRepository(db)
	documentRepo := database.NewPostgresDocumentRepository(db)
	ruleRepo := database.NewPostgresRuleRepository(db)
	ackRepo := database.NewPostgresAckRepository(db)

	// PACER client stack
	cipher, err := pacer.NewCipher(cfg.PACER)
	if err != nil {
		logger.Error("failed to init token cipher", "error", err)
		os.Exit(1)
	}

	tokenCache := pacer.NewTokenCache(pacer.NewMemoryTokenStore(), cipher, cfg.PACER.SessionLifetime, logger)
	rateLimiter := pacer.NewRateLimiter(pacer.NewMemoryAttemptStore(), cfg.PACER.RateLimitMax, cfg.PACER.RateLimitWindow, logger)
	authenticator := pacer.NewAuthenticator(cfg.PACER, tokenCache, rateLimiter, collector, logger)
	searchClient := pacer.NewSearchClient(cfg.PACER, historyRepo, collector, logger)

	// Billing
	tracker := billing.NewTracker(costRepo, credentialRepo, cfg.Budget, func(identity string, threshold float64, spend, limit float64) {
		logger.Warn("budget alert",
			"identity", identity,
			"threshold", threshold,
			"spend", spend,
			"limit", limit,
		)
	}, collector, logger)

	// Documents
	fetcher := documents.NewFetcher(cfg.PACER, tracker, documents.NewPDFEstimator(), documentRepo,
		os.Getenv("DOCUMENT_STORAGE_ROOT"), collector, logger)

	// Filing analysis pipeline
	assistant := filings.NewAssistant(cfg.OpenAI)
	analyzer := filings.NewAnalyzer(assistant, logger)

	// Notification dispatch
	registry := notify.NewLogRegistry(logger)
	escalator := notify.NewEscalator(registry, ackRepo, cfg.Notify.EscalationStages, collector, logger)
	escalator.SetEscalationRoles(cfg.Notify.EscalationRoles)
	engine := notify.NewEngine(ruleRepo, registry, escalator, cfg.Notify.ChannelRatePerMinute, collector, logger)

	// Operational API
	authConfig := auth.Config{
		JWTSecret:         cfg.Server.JWTSecret,
		AdminPasswordHash: cfg.Server.AdminPasswordHash,
		TokenDuration:     24 * time.Hour,
	}

	pacerHandler := api.NewPACERHandler(authenticator, searchClient, fetcher, analyzer, engine, credentialRepo, cipher, logger)

	mux := http.NewServeMux()
	api.SetupRoutes(mux, db, tracker, escalator, ruleRepo, pacerHandler, authConfig, collector, logger)

	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig.String())
	}

	escalator.Stop()

	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("docketwatch stopped")
}
