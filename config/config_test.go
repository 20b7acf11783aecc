package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RouterURL == "" || cfg.PrivacyURL == "" || cfg.RPCUrl == "" {
		t.Errorf("defaults missing: %+v", cfg)
	}
	if cfg.Commitment != "confirmed" {
		t.Errorf("expected confirmed commitment by default, got %q", cfg.Commitment)
	}
	if cfg.SlippageBps != 50 {
		t.Errorf("expected default 50 bps slippage, got %d", cfg.SlippageBps)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	os.Setenv("WAVE_SWAP_RPC_URL", "http://localhost:8899")
	os.Setenv("WAVE_SWAP_SLIPPAGE_BPS", "100")
	defer os.Unsetenv("WAVE_SWAP_RPC_URL")
	defer os.Unsetenv("WAVE_SWAP_SLIPPAGE_BPS")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RPCUrl != "http://localhost:8899" {
		t.Errorf("environment override ignored, got %q", cfg.RPCUrl)
	}
	if cfg.SlippageBps != 100 {
		t.Errorf("environment override ignored, got %d", cfg.SlippageBps)
	}
}
