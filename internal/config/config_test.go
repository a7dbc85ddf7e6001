package config

import (
	"testing"
	"time"
)

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/clinic")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %q", cfg.Port)
	}
	if cfg.DefaultClinic != "default" {
		t.Errorf("expected default clinic, got %q", cfg.DefaultClinic)
	}
	if !cfg.IsDev() {
		t.Error("expected development env by default")
	}
	if cfg.CacheTTL() != 5*time.Minute {
		t.Errorf("expected 5m cache TTL, got %v", cfg.CacheTTL())
	}
	if cfg.HealthPingTimeout() != 5*time.Second {
		t.Errorf("expected 5s health ping timeout, got %v", cfg.HealthPingTimeout())
	}
}

func TestValidate_ProductionNeedsSecret(t *testing.T) {
	cfg := &Config{Env: "production"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing JWT_SECRET in production")
	}
	cfg.JWTSecret = "short"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for short JWT_SECRET")
	}
	cfg.JWTSecret = "0123456789abcdef0123456789abcdef"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_DevAllowsNoSecret(t *testing.T) {
	cfg := &Config{Env: "development"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCacheTTL_Explicit(t *testing.T) {
	cfg := &Config{CacheTTLSec: 60}
	if cfg.CacheTTL() != time.Minute {
		t.Errorf("expected 1m, got %v", cfg.CacheTTL())
	}
}
