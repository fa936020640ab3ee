// Package config reads runtime settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Runtime modes.
const (
	ModeAuto = "auto"
	ModeHTTP = "http"
	ModeMock = "mock"
	ModeSQL  = "sql"
)

// Config selects and tunes the storage backend.
type Config struct {
	Mode      string `env:"R1_RUNTIME_MODE" envDefault:"auto"`
	CStoreURL string `env:"EE_CHAINSTORE_API_URL"`
	MockSeed  string `env:"R1_MOCK_CSTORE_SEED"`

	SQLDriver string `env:"DATATABLE_SQL_DRIVER" envDefault:"sqlite"`
	SQLDSN    string `env:"DATATABLE_SQL_DSN"`

	HTTPTimeout time.Duration `env:"DATATABLE_HTTP_TIMEOUT" envDefault:"10s"`
	HTTPRetries int           `env:"DATATABLE_HTTP_RETRIES" envDefault:"3"`

	Compress bool `env:"DATATABLE_COMPRESS" envDefault:"false"`

	LogLevel       string `env:"DATATABLE_LOG_LEVEL" envDefault:"info"`
	LogDevelopment bool   `env:"DATATABLE_LOG_DEVELOPMENT" envDefault:"false"`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates a Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate normalises Mode and checks that the chosen mode has what it needs.
func (c *Config) Validate() error {
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	if c.Mode == "" {
		c.Mode = ModeAuto
	}
	switch c.Mode {
	case ModeAuto, ModeMock:
	case ModeHTTP:
		if strings.TrimSpace(c.CStoreURL) == "" {
			return fmt.Errorf("config: http mode requires EE_CHAINSTORE_API_URL")
		}
	case ModeSQL:
		if strings.TrimSpace(c.SQLDSN) == "" {
			return fmt.Errorf("config: sql mode requires DATATABLE_SQL_DSN")
		}
	default:
		return fmt.Errorf("config: unsupported R1_RUNTIME_MODE value %q", c.Mode)
	}
	if c.HTTPRetries < 0 {
		return fmt.Errorf("config: DATATABLE_HTTP_RETRIES must not be negative")
	}
	return nil
}

// ResolvedMode returns the concrete mode. Auto picks http when a store URL
// is set, then sql when a DSN is set, and mock otherwise.
func (c Config) ResolvedMode() string {
	if c.Mode != ModeAuto && c.Mode != "" {
		return c.Mode
	}
	switch {
	case strings.TrimSpace(c.CStoreURL) != "":
		return ModeHTTP
	case strings.TrimSpace(c.SQLDSN) != "":
		return ModeSQL
	default:
		return ModeMock
	}
}
