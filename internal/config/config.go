package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server   ServerConfig
	Logging  LoggingConfig
	PACER    PACERConfig
	Budget   BudgetConfig
	OpenAI   OpenAIConfig
	Notify   NotifyConfig
	Database DatabaseConfig
}

// ServerConfig holds HTTP server runtime parameters for the operational API.
type ServerConfig struct {
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	ShutdownTimeout   time.Duration
	JWTSecret         string
	AdminPasswordHash string
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// PACERConfig holds the external case-locator/document service settings.
type PACERConfig struct {
	Environment       string // "production" or "qa"
	AuthURL           string
	SearchURL         string
	RequestTimeout    time.Duration
	SessionLifetime   time.Duration // external session duration; cache TTL is 80% of this
	EncryptionKeyFile string
	EncryptionKey     string // inline hex key, takes precedence over the key file
	RateLimitWindow   time.Duration
	RateLimitMax      int
}

// BudgetConfig holds default spend ceilings and alerting policy.
type BudgetConfig struct {
	DailyLimit      float64
	MonthlyLimit    float64
	AlertThresholds []float64 // fractions of the daily limit, ascending
	AlertDebounce   time.Duration
}

// OpenAIConfig configures the optional AI classification method.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	Enabled     bool
}

// NotifyConfig holds notification dispatch and escalation policy.
// EscalationRoles are appended one per stage after the first, so later
// stages reach increasingly senior audiences.
type NotifyConfig struct {
	ChannelRatePerMinute int
	EscalationStages     []time.Duration
	EscalationRoles      []string
}

// DatabaseConfig holds the postgres connection settings.
type DatabaseConfig struct {
	URL string
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	productionAuthURL   = "https://pacer.login.uscourts.gov/services/cso-auth"
	productionSearchURL = "https://pcl.uscourts.gov/pcl-public-api/rest"
	qaAuthURL           = "https://qa-login.uscourts.gov/services/cso-auth"
	qaSearchURL         = "https://qa-pcl.uscourts.gov/pcl-public-api/rest"

	defaultRequestTimeout  = 30 * time.Second
	defaultSessionLifetime = 30 * time.Minute
	defaultRateLimitWindow = 5 * time.Minute
	defaultRateLimitMax    = 5

	defaultDailyLimit   = 50.0
	defaultMonthlyLimit = 500.0
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided or invalid.
func Load() (Config, error) {
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:              port,
			ReadTimeout:       defaultReadTimeout,
			WriteTimeout:      defaultWriteTimeout,
			ShutdownTimeout:   defaultShutdownTimeout,
			JWTSecret:         getEnv("API_JWT_SECRET", "change-this-secret"),
			AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		PACER: PACERConfig{
			Environment:       getEnv("PACER_ENVIRONMENT", "production"),
			RequestTimeout:    defaultRequestTimeout,
			SessionLifetime:   defaultSessionLifetime,
			EncryptionKeyFile: getEnv("PACER_KEY_FILE", ".pacer_key"),
			EncryptionKey:     os.Getenv("PACER_ENCRYPTION_KEY"),
			RateLimitWindow:   defaultRateLimitWindow,
			RateLimitMax:      defaultRateLimitMax,
		},
		Budget: BudgetConfig{
			DailyLimit:      defaultDailyLimit,
			MonthlyLimit:    defaultMonthlyLimit,
			AlertThresholds: []float64{0.75, 0.90},
			AlertDebounce:   time.Hour,
		},
		OpenAI: OpenAIConfig{
			APIKey:      os.Getenv("OPENAI_API_KEY"),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Temperature: 0.2,
			MaxTokens:   500,
		},
		Notify: NotifyConfig{
			ChannelRatePerMinute: 30,
			EscalationStages:     []time.Duration{time.Hour, 4 * time.Hour, 24 * time.Hour},
			EscalationRoles:      []string{"management", "executive"},
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
	}

	switch cfg.PACER.Environment {
	case "production":
		cfg.PACER.AuthURL = productionAuthURL
		cfg.PACER.SearchURL = productionSearchURL
	case "qa":
		cfg.PACER.AuthURL = qaAuthURL
		cfg.PACER.SearchURL = qaSearchURL
	default:
		return Config{}, fmt.Errorf("invalid PACER_ENVIRONMENT: must be 'production' or 'qa'")
	}

	if v := os.Getenv("PACER_AUTH_URL"); v != "" {
		cfg.PACER.AuthURL = v
	}
	if v := os.Getenv("PACER_SEARCH_URL"); v != "" {
		cfg.PACER.SearchURL = v
	}

	cfg.OpenAI.Enabled = cfg.OpenAI.APIKey != ""

	if v := os.Getenv("PACER_SESSION_LIFETIME_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PACER_SESSION_LIFETIME_SECONDS: %w", err)
		}
		cfg.PACER.SessionLifetime = d
	}

	if v := os.Getenv("PACER_RATE_LIMIT_WINDOW_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PACER_RATE_LIMIT_WINDOW_SECONDS: %w", err)
		}
		cfg.PACER.RateLimitWindow = d
	}

	if v := os.Getenv("PACER_RATE_LIMIT_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid PACER_RATE_LIMIT_MAX_ATTEMPTS: must be a positive integer")
		}
		cfg.PACER.RateLimitMax = n
	}

	if v := os.Getenv("BUDGET_DAILY_LIMIT"); v != "" {
		f, err := parseDollars(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid BUDGET_DAILY_LIMIT: %w", err)
		}
		cfg.Budget.DailyLimit = f
	}

	if v := os.Getenv("BUDGET_MONTHLY_LIMIT"); v != "" {
		f, err := parseDollars(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid BUDGET_MONTHLY_LIMIT: %w", err)
		}
		cfg.Budget.MonthlyLimit = f
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	return cfg, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func parseDollars(raw string) (float64, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("must be a non-negative number")
	}
	return f, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
