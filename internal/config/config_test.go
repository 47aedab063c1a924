package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PACER_ENVIRONMENT", "production")
	t.Setenv("PORT", "")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")
	t.Setenv("BUDGET_DAILY_LIMIT", "")
	t.Setenv("BUDGET_MONTHLY_LIMIT", "")
	t.Setenv("PACER_AUTH_URL", "")
	t.Setenv("PACER_SEARCH_URL", "")
	t.Setenv("PACER_SESSION_LIFETIME_SECONDS", "")
	t.Setenv("PACER_RATE_LIMIT_WINDOW_SECONDS", "")
	t.Setenv("PACER_RATE_LIMIT_MAX_ATTEMPTS", "")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("port = %s, want 8080", cfg.Server.Port)
	}
	if cfg.Logging.Level != slog.LevelInfo || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.PACER.AuthURL != "https://pacer.login.uscourts.gov/services/cso-auth" {
		t.Errorf("auth url = %s", cfg.PACER.AuthURL)
	}
	if cfg.PACER.SessionLifetime != 30*time.Minute {
		t.Errorf("session lifetime = %v", cfg.PACER.SessionLifetime)
	}
	if cfg.PACER.RateLimitMax != 5 || cfg.PACER.RateLimitWindow != 5*time.Minute {
		t.Errorf("rate limit = %d/%v", cfg.PACER.RateLimitMax, cfg.PACER.RateLimitWindow)
	}
	if cfg.Budget.DailyLimit != 50.0 || cfg.Budget.MonthlyLimit != 500.0 {
		t.Errorf("budget = %+v", cfg.Budget)
	}
	if cfg.OpenAI.Enabled {
		t.Error("AI must be disabled without an API key")
	}
	if cfg.Notify.ChannelRatePerMinute != 30 {
		t.Errorf("channel rate = %d", cfg.Notify.ChannelRatePerMinute)
	}
	if len(cfg.Notify.EscalationStages) != 3 || cfg.Notify.EscalationStages[0] != time.Hour {
		t.Errorf("escalation stages = %v", cfg.Notify.EscalationStages)
	}
}

func TestLoadQAEnvironment(t *testing.T) {
	t.Setenv("PACER_ENVIRONMENT", "qa")
	t.Setenv("PACER_AUTH_URL", "")
	t.Setenv("PACER_SEARCH_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PACER.AuthURL != "https://qa-login.uscourts.gov/services/cso-auth" {
		t.Errorf("auth url = %s", cfg.PACER.AuthURL)
	}
	if cfg.PACER.SearchURL != "https://qa-pcl.uscourts.gov/pcl-public-api/rest" {
		t.Errorf("search url = %s", cfg.PACER.SearchURL)
	}
}

func TestLoadInvalidEnvironment(t *testing.T) {
	t.Setenv("PACER_ENVIRONMENT", "staging")

	if _, err := Load(); err == nil {
		t.Fatal("unknown environment must be rejected")
	}
}

func TestLoadURLOverrides(t *testing.T) {
	t.Setenv("PACER_ENVIRONMENT", "production")
	t.Setenv("PACER_AUTH_URL", "http://localhost:9001/auth")
	t.Setenv("PACER_SEARCH_URL", "http://localhost:9002")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PACER.AuthURL != "http://localhost:9001/auth" {
		t.Errorf("auth url override ignored: %s", cfg.PACER.AuthURL)
	}
	if cfg.PACER.SearchURL != "http://localhost:9002" {
		t.Errorf("search url override ignored: %s", cfg.PACER.SearchURL)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PACER_ENVIRONMENT", "production")
	t.Setenv("PACER_SESSION_LIFETIME_SECONDS", "600")
	t.Setenv("PACER_RATE_LIMIT_MAX_ATTEMPTS", "3")
	t.Setenv("BUDGET_DAILY_LIMIT", "25.50")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PACER.SessionLifetime != 10*time.Minute {
		t.Errorf("session lifetime = %v, want 10m", cfg.PACER.SessionLifetime)
	}
	if cfg.PACER.RateLimitMax != 3 {
		t.Errorf("rate limit max = %d, want 3", cfg.PACER.RateLimitMax)
	}
	if cfg.Budget.DailyLimit != 25.50 {
		t.Errorf("daily limit = %v, want 25.50", cfg.Budget.DailyLimit)
	}
	if cfg.Logging.Level != slog.LevelDebug || cfg.Logging.Format != "text" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if !cfg.OpenAI.Enabled {
		t.Error("AI must be enabled when an API key is present")
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"negative session lifetime", "PACER_SESSION_LIFETIME_SECONDS", "-5"},
		{"non-numeric session lifetime", "PACER_SESSION_LIFETIME_SECONDS", "soon"},
		{"zero max attempts", "PACER_RATE_LIMIT_MAX_ATTEMPTS", "0"},
		{"negative daily limit", "BUDGET_DAILY_LIMIT", "-1"},
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"bad log format", "LOG_FORMAT", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PACER_ENVIRONMENT", "production")
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("%s=%s must be rejected", tt.key, tt.value)
			}
		})
	}
}
