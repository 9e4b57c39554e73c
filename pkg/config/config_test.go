package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/marketpulse")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "8090" {
		t.Errorf("Port = %s, want 8090", cfg.Port)
	}
	if cfg.Signal.UrgentChangePct != 5.0 {
		t.Errorf("UrgentChangePct = %v, want 5.0", cfg.Signal.UrgentChangePct)
	}
	if cfg.Signal.NotableChangePct != 2.0 {
		t.Errorf("NotableChangePct = %v, want 2.0", cfg.Signal.NotableChangePct)
	}
	if cfg.TTL.Stock != 24*time.Hour {
		t.Errorf("TTL.Stock = %v, want 24h", cfg.TTL.Stock)
	}
	if cfg.TTL.Crypto != 12*time.Hour {
		t.Errorf("TTL.Crypto = %v, want 12h", cfg.TTL.Crypto)
	}
	if cfg.Threshold.MinPredictors != 3 {
		t.Errorf("MinPredictors = %d, want 3", cfg.Threshold.MinPredictors)
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Error("expected error when DATABASE_URL is unset")
	}
}

func TestLoadRejectsBadConsensus(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/marketpulse")
	t.Setenv("THRESHOLD_MIN_DIRECTION_CONSENSUS", "1.5")

	if _, err := Load(); err == nil {
		t.Error("expected error for consensus > 1")
	}
}

func TestGetEnvAsSlice(t *testing.T) {
	t.Setenv("QUOTES_SYMBOLS", "AAPL, MSFT ,NVDA,")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/marketpulse")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := []string{"AAPL", "MSFT", "NVDA"}
	if len(cfg.Quotes.Symbols) != len(want) {
		t.Fatalf("Symbols = %v, want %v", cfg.Quotes.Symbols, want)
	}
	for i := range want {
		if cfg.Quotes.Symbols[i] != want[i] {
			t.Errorf("Symbols[%d] = %s, want %s", i, cfg.Quotes.Symbols[i], want[i])
		}
	}
}
