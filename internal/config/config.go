// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every runtime knob for the tokenwatch API.
type Config struct {
	Addr string `env:"TOKENWATCH_ADDR" envDefault:":8080"`

	// SQLitePath is the default durable store. When PGDSN is set the
	// Postgres store is used instead.
	SQLitePath string `env:"TOKENWATCH_SQLITE_PATH" envDefault:"tokenwatch.db"`
	PGDSN      string `env:"TOKENWATCH_PG_DSN"`

	AuthSecret string `env:"TOKENWATCH_AUTH_SECRET"`

	BlockfrostURL string        `env:"TOKENWATCH_BLOCKFROST_URL" envDefault:"https://cardano-preprod.blockfrost.io/api/v0"`
	BlockfrostKey string        `env:"TOKENWATCH_BLOCKFROST_KEY"`
	ChainTimeout  time.Duration `env:"TOKENWATCH_CHAIN_TIMEOUT" envDefault:"10s"`

	GeminiURL      string        `env:"TOKENWATCH_GEMINI_URL"`
	GeminiKey      string        `env:"TOKENWATCH_GEMINI_KEY"`
	AdvisorTimeout time.Duration `env:"TOKENWATCH_ADVISOR_TIMEOUT" envDefault:"15s"`

	FactoryInterval time.Duration `env:"TOKENWATCH_FACTORY_INTERVAL" envDefault:"5s"`

	RateBurst  int `env:"TOKENWATCH_RATE_BURST" envDefault:"20"`
	RatePerSec int `env:"TOKENWATCH_RATE_PER_SEC" envDefault:"10"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
