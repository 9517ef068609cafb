package main

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/go-faster/errors"
)

// Config holds the coupon-ingest configuration, loadable from environment
// variables (INGEST_ prefix) or flags.
type Config struct {
	DataDir     string        `default:"data" usage:"Directory containing couponbaseN.gz files" flag:"data-dir"`
	DatabaseURL string        `usage:"PostgreSQL connection URL (INGEST_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ExpiresIn   time.Duration `usage:"Expiry window for ingested coupons, e.g. 720h; zero means no expiry" flag:"expires-in"`
}

// LoadConfig loads configuration from flags and environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "INGEST",
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set INGEST_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}
