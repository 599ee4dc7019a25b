package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if s.Store.Backend != "sqlite" {
		t.Fatalf("default store backend wrong: %s", s.Store.Backend)
	}
	if s.Agent.StuckThreshold != 15 || s.Agent.MaxActionsPerSite != 40 {
		t.Fatalf("agent defaults wrong: %+v", s.Agent)
	}
	if s.Browser.NavTimeout != 45*time.Second {
		t.Fatalf("nav timeout default wrong: %v", s.Browser.NavTimeout)
	}
	if !s.Stealth.ApplyStealthScripts {
		t.Fatal("stealth scripts should default on")
	}
}

func TestLoadOverridesAndValidation(t *testing.T) {
	t.Setenv("SSI_AGENT_STUCK_THRESHOLD", "25")
	t.Setenv("SSI_AGENT_STUCK_THRESHOLDS", "FILL_REGISTER=20, EXTRACT_WALLETS=10")
	t.Setenv("SSI_BROWSER_NAV_TIMEOUT", "90s")
	t.Setenv("SSI_LLM_MAX_TOKENS", "not-a-number")

	s, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if s.Agent.StuckThreshold != 25 {
		t.Fatalf("override not applied: %d", s.Agent.StuckThreshold)
	}
	if s.Agent.StuckThresholdPer["FILL_REGISTER"] != 20 || s.Agent.StuckThresholdPer["EXTRACT_WALLETS"] != 10 {
		t.Fatalf("per-state map wrong: %v", s.Agent.StuckThresholdPer)
	}
	if s.Browser.NavTimeout != 90*time.Second {
		t.Fatalf("duration override wrong: %v", s.Browser.NavTimeout)
	}
	// Malformed numeric input falls back to the default.
	if s.LLM.MaxTokens != 4096 {
		t.Fatalf("malformed int should fall back: %d", s.LLM.MaxTokens)
	}
}

func TestLoadRejectsBadEnums(t *testing.T) {
	t.Setenv("SSI_MODE", "turbo")
	if _, err := Load(); err == nil {
		t.Fatal("bad mode must be rejected")
	}
}

func TestCloudSQLRequiresDSN(t *testing.T) {
	t.Setenv("SSI_MODE", "full")
	t.Setenv("SSI_STORE_BACKEND", "cloudsql")
	if _, err := Load(); err == nil {
		t.Fatal("cloudsql without DSN must be rejected")
	}
	t.Setenv("SSI_STORE_POSTGRES_DSN", "postgres://u:p@h/db")
	if _, err := Load(); err != nil {
		t.Fatalf("cloudsql with DSN should load: %v", err)
	}
}
