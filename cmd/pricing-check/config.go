package main

import (
	"os"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the pricing-check configuration, loadable from environment
// variables (PRICING_ prefix), flags, or YAML config files.
type Config struct {
	DatabaseURL string   `usage:"PostgreSQL connection URL (PRICING_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	CartFile    string   `default:"cart.json" usage:"Path to the cart JSON file" flag:"cart-file"`
	Coupons     []string `usage:"Coupon codes to apply, in order"`
	Manual      []string `usage:"Manual discount specs, e.g. 10% or 5.00"`
	UserID      string   `usage:"User id for per-user usage limits" flag:"user-id"`
	Sequential  bool     `default:"false" usage:"Compute percent coupons off what earlier coupons left"`
}

// LoadConfig loads configuration from flags, environment variables, and YAML
// config files.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "PRICING",
		Files:     []string{"config.yaml", "/etc/kart-pricing/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set PRICING_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}
