package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string `env:"APP_ENV" envDefault:"development"`

	// Server
	Port           string   `env:"PORT" envDefault:"4000"`
	FrontendURL    string   `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	// Ledger
	APIBase               string        `env:"API_BASE" envDefault:"http://localhost:3000"`
	APIKey                string        `env:"API_KEY"`
	LedgerTimeout         time.Duration `env:"LEDGER_TIMEOUT" envDefault:"10s"`
	ChainRegisterAttempts int           `env:"CHAIN_REGISTER_ATTEMPTS" envDefault:"3"`
	ChainRegisterBackoff  time.Duration `env:"CHAIN_REGISTER_BACKOFF" envDefault:"3s"`
	ChainConfirmAttempts  int           `env:"CHAIN_CONFIRM_ATTEMPTS" envDefault:"15"`
	ChainPollInterval     time.Duration `env:"CHAIN_POLL_INTERVAL" envDefault:"3s"`
	ResultReportTimeout   time.Duration `env:"RESULT_REPORT_TIMEOUT" envDefault:"15s"`

	// Redis (optional lifecycle feed)
	RedisURL           string `env:"REDIS_URL"`
	RedisEventsChannel string `env:"REDIS_EVENTS_CHANNEL" envDefault:"match_events"`

	// Database (optional result audit log)
	DatabaseURL      string `env:"DATABASE_URL"`
	MigrateOnStart   bool   `env:"MIGRATE_ON_START" envDefault:"true"`
	MigrationsSource string `env:"MIGRATIONS_SOURCE" envDefault:"file://migrations"`

	// Security
	JWTSecret     string        `env:"JWT_SECRET"`
	AdminTokenTTL time.Duration `env:"ADMIN_TOKEN_TTL" envDefault:"12h"`
}

// Load reads .env (if present) and the process environment
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.APIBase == "" {
		return fmt.Errorf("API_BASE is required")
	}
	if c.ChainRegisterAttempts < 1 || c.ChainConfirmAttempts < 1 {
		return fmt.Errorf("chain attempt bounds must be at least 1")
	}
	if c.ChainPollInterval <= 0 {
		return fmt.Errorf("CHAIN_POLL_INTERVAL must be positive")
	}
	return nil
}

// IsProduction reports whether the server runs with production settings
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Origins returns every origin allowed to open a websocket or call the API
func (c *Config) Origins() []string {
	origins := make([]string, 0, len(c.AllowedOrigins)+1)
	seen := make(map[string]bool)
	for _, o := range append([]string{c.FrontendURL}, c.AllowedOrigins...) {
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		origins = append(origins, o)
	}
	return origins
}
