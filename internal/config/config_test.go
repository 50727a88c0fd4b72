package config

import (
	"testing"
	"time"
)

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8096" {
		t.Fatalf("expected default HTTPAddr, got %q", cfg.HTTPAddr)
	}
	if cfg.IdleThreshold != 5*time.Minute {
		t.Fatalf("expected default IdleThreshold of 5m, got %v", cfg.IdleThreshold)
	}
}

func TestLoad_EnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("SESSIONHUB_HTTP_ADDR", ":9999")
	t.Setenv("SESSIONHUB_IDLE_THRESHOLD", "1m")
	t.Setenv("SESSIONHUB_REDIS_DB", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Fatalf("expected overridden HTTPAddr, got %q", cfg.HTTPAddr)
	}
	if cfg.IdleThreshold != time.Minute {
		t.Fatalf("expected overridden IdleThreshold of 1m, got %v", cfg.IdleThreshold)
	}
	if cfg.RedisDB != 3 {
		t.Fatalf("expected overridden RedisDB of 3, got %d", cfg.RedisDB)
	}
}
