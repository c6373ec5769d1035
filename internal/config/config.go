// Package config loads bot configuration from .env and the
// environment.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Trade API (offer fetch/accept/decline, session refresh).
	TradeAPIHost string `envconfig:"TRADE_API_HOST" default:"https://api.steampowered.com"`
	TradeAPIKey  string `envconfig:"TRADE_API_KEY"`

	// Marketplace listings. An empty token disables listings entirely.
	MarketplaceHost  string `envconfig:"MARKETPLACE_HOST"`
	MarketplaceToken string `envconfig:"MARKETPLACE_TOKEN"`
	MarketplaceWSURL string `envconfig:"MARKETPLACE_WS_URL"`

	// Pricing and schema services.
	PricingHost  string `envconfig:"PRICING_HOST"`
	SchemaHost   string `envconfig:"SCHEMA_HOST"`
	SchemaAPIKey string `envconfig:"SCHEMA_API_KEY"`

	// Local state.
	DataDir  string `envconfig:"DATA_DIR" default:"data"`
	EventLog string `envconfig:"EVENT_LOG" default:"logs/itembot.jsonl"`

	// Game coordinator.
	AppID uint32 `envconfig:"APP_ID" default:"440"`

	// Policy knobs for the example pricing handler. KeyScrap is the
	// key's value in scrap units (1 ref = 9 scrap).
	KeyScrap       int `envconfig:"KEY_SCRAP" default:"612"`
	MinProfitScrap int `envconfig:"MIN_PROFIT_SCRAP" default:"1"`

	// DryRun keeps the bot off the real game connection; crafting runs
	// against a simulated coordinator.
	DryRun bool `envconfig:"DRY_RUN" default:"true"`
}

// Load reads .env (when present) and then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("ITEMBOT", &cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
