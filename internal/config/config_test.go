package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TradeAPIHost != "https://api.steampowered.com" {
		t.Fatalf("trade api host = %q", cfg.TradeAPIHost)
	}
	if cfg.DataDir != "data" || cfg.AppID != 440 || cfg.KeyScrap != 612 {
		t.Fatalf("defaults = %+v", cfg)
	}
	if !cfg.DryRun {
		t.Fatalf("dry-run should default on")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRADE_API_HOST", "http://localhost:8080")
	t.Setenv("DATA_DIR", "/tmp/bot-state")
	t.Setenv("MIN_PROFIT_SCRAP", "4")
	t.Setenv("DRY_RUN", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TradeAPIHost != "http://localhost:8080" {
		t.Fatalf("trade api host = %q", cfg.TradeAPIHost)
	}
	if cfg.DataDir != "/tmp/bot-state" || cfg.MinProfitScrap != 4 || cfg.DryRun {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoad_BadValueIsAnError(t *testing.T) {
	t.Setenv("APP_ID", "not-a-number")
	if _, err := Load(); err == nil {
		t.Fatalf("bad APP_ID accepted")
	}
}
