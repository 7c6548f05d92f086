package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config is the flat environment-driven configuration for the service.
type Config struct {
	Port        string
	DatabaseURL string

	StaticTokens []string
	JWTSecret    string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	WebhookCallbackURL string

	// ExternalTimeout bounds every remote-calendar call.
	ExternalTimeout time.Duration
	// RefreshLead is how long before token expiry a refresh is attempted.
	RefreshLead time.Duration
	// AuthStartLimit is the number of handshake starts allowed per client
	// address per rolling hour.
	AuthStartLimit int
	// PollInterval drives the reconciler's fallback polling loop.
	PollInterval time.Duration

	LogLevel string
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               os.Getenv("PORT"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		JWTSecret:          strings.TrimSpace(os.Getenv("JWT_HMAC_SECRET")),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
		WebhookCallbackURL: os.Getenv("WEBHOOK_CALLBACK_URL"),
		ExternalTimeout:    envDuration("EXTERNAL_TIMEOUT", 10*time.Second),
		RefreshLead:        envDuration("TOKEN_REFRESH_LEAD", time.Hour),
		AuthStartLimit:     envInt("AUTH_START_LIMIT", 3),
		PollInterval:       envDuration("SYNC_POLL_INTERVAL", 5*time.Minute),
		LogLevel:           os.Getenv("LOG_LEVEL"),
	}
	if raw := strings.TrimSpace(os.Getenv("STATIC_TOKENS")); raw != "" {
		for _, tok := range strings.Split(raw, ",") {
			if tok = strings.TrimSpace(tok); tok != "" {
				cfg.StaticTokens = append(cfg.StaticTokens, tok)
			}
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL required")
	}
	return cfg, nil
}

// GoogleConfigured reports whether the remote-calendar integration can run.
func (c *Config) GoogleConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

// Logger builds the root zerolog logger for the configured level.
func (c *Config) Logger() zerolog.Logger {
	level := zerolog.InfoLevel
	if c.LogLevel != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err == nil {
			level = parsed
		}
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
}

func envDuration(key string, def time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
	}
	return def
}

func envInt(key string, def int) int {
	if raw := os.Getenv(key); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return def
}
