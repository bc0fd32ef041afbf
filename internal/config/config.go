// Package config loads the quality-check runtime configuration from
// environment variables.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the environment-driven configuration for a quality-check run.
// Variable names mirror the deployed platform's E2E settings.
type Config struct {
	BaseURL        string `env:"E2E_BASE_URL" envDefault:"http://localhost:8000"`
	Token          string `env:"E2E_TOKEN"`
	UserID         string `env:"E2E_USER_ID"`
	OrganizationID string `env:"E2E_ORG_ID"`
	InternalAPIKey string `env:"E2E_INTERNAL_API_KEY"`

	PGHost     string `env:"E2E_PG_HOST" envDefault:"localhost"`
	PGPort     int    `env:"E2E_PG_PORT" envDefault:"5432"`
	PGUser     string `env:"E2E_PG_USER" envDefault:"postgres"`
	PGPassword string `env:"E2E_PG_PASSWORD"`
	MatterDB   string `env:"E2E_MATTER_DB" envDefault:"matter_service"`

	ScenariosDir string `env:"E2E_SCENARIOS_DIR" envDefault:"scenarios"`
	ReportDir    string `env:"E2E_REPORT_DIR" envDefault:"reports"`

	HTTPTimeout time.Duration `env:"E2E_HTTP_TIMEOUT" envDefault:"30s"`
	RunTimeout  time.Duration `env:"E2E_RUN_TIMEOUT" envDefault:"5m"`
}

// Load parses the configuration from the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// MatterDSN builds the Postgres connection string for the matter database.
func (c Config) MatterDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		url.QueryEscape(c.PGUser), url.QueryEscape(c.PGPassword),
		c.PGHost, c.PGPort, c.MatterDB)
}
