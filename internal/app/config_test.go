package app

import (
	"testing"
	"time"
)

func TestApplyEnvOverridesUpdatesOnlySetVars(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	err := ApplyEnvOverrides(cfg, []string{
		"DIVVY_LISTEN_ADDR=:9999",
		"DIVVY_BACKEND_ADDR=10.0.0.1:6379,10.0.0.2:6379",
		"DIVVY_MAX_CONNS=100",
		"DIVVY_DRAIN_TIMEOUT=10s",
		"IRRELEVANT=ignored",
	})
	if err != nil {
		t.Fatalf("ApplyEnvOverrides: %v", err)
	}
	if cfg.ListenAddr != ":9999" {
		t.Fatalf("got %q", cfg.ListenAddr)
	}
	if len(cfg.BackendAddrs) != 2 || cfg.BackendAddrs[0] != "10.0.0.1:6379" {
		t.Fatalf("got %v", cfg.BackendAddrs)
	}
	if cfg.MaxConns != 100 {
		t.Fatalf("got %d", cfg.MaxConns)
	}
	if cfg.DrainTimeout != 10*time.Second {
		t.Fatalf("got %v", cfg.DrainTimeout)
	}
	// unset: ConfigPath keeps its default.
	if cfg.ConfigPath != "./divvy.ini" {
		t.Fatalf("got %q", cfg.ConfigPath)
	}
}

func TestApplyEnvOverridesRejectsUnparseableInt(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	err := ApplyEnvOverrides(cfg, []string{"DIVVY_MAX_CONNS=not-a-number"})
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestValidateRejectsBadFailPolicy(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.FailPolicy = "sideways"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	t.Parallel()

	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
