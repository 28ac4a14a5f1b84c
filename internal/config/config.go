// Package config loads worker and API process configuration from the
// environment, matching the variables in spec.md §6.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the settings shared by the worker and API binaries.
type Config struct {
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     int    `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME"`

	MaxDepth      int    `env:"MAX_DEPTH" envDefault:"3"`
	Timeout       int    `env:"TIMEOUT" envDefault:"30"`
	MaxConcurrent int    `env:"MAX_CONCURRENT" envDefault:"1000"`
	WorkerID      string `env:"WORKER_ID"`
	PollInterval  int    `env:"POLL_INTERVAL" envDefault:"5"`
	SearchID      int    `env:"SEARCH_ID" envDefault:"1"`

	HealthPort int    `env:"HEALTH_PORT" envDefault:"8080"`
	APIPort    int    `env:"API_PORT" envDefault:"8000"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads configuration from the environment, loading a local .env
// file first if one is present (best-effort, never an error).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.WorkerID == "" {
		cfg.WorkerID = fmt.Sprintf("worker-%d", os.Getpid())
	}

	return cfg, nil
}

// DSN builds the PostgreSQL connection string from the discrete DB_*
// environment variables.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}
