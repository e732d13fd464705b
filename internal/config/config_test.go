package config

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.RedisURL != "redis://localhost:6379" {
		t.Errorf("RedisURL mismatch: got %s", cfg.RedisURL)
	}
	if cfg.APIPort != "8080" {
		t.Errorf("APIPort mismatch: got %s", cfg.APIPort)
	}
	if cfg.DispatchToken != "" {
		t.Errorf("Expected empty dispatch token by default, got %s", cfg.DispatchToken)
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Errorf("SweepInterval mismatch: got %v", cfg.SweepInterval)
	}
	if !cfg.SweepEnabled {
		t.Error("Expected sweep enabled by default")
	}
}

func TestLoadConfig_WebhookRequiredWithToken(t *testing.T) {
	t.Setenv("DISPATCH_TOKEN", "secret")
	t.Setenv("WEBHOOK_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Error("Expected error when DISPATCH_TOKEN is set without WEBHOOK_URL")
	}

	t.Setenv("WEBHOOK_URL", "https://cadence.example.com/hooks/run")
	if _, err := LoadConfig(); err != nil {
		t.Errorf("Unexpected error with webhook URL set: %v", err)
	}
}

func TestLoadConfig_SweepIntervalFloor(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "100ms")

	if _, err := LoadConfig(); err == nil {
		t.Error("Expected error for sub-second sweep interval")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://redis:6379/2")
	t.Setenv("LLM_MODEL", "gpt-4o")
	t.Setenv("DISPATCH_TIMEOUT", "5s")
	t.Setenv("SWEEP_ENABLED", "false")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.RedisURL != "redis://redis:6379/2" {
		t.Errorf("RedisURL override not applied: got %s", cfg.RedisURL)
	}
	if cfg.LLMModel != "gpt-4o" {
		t.Errorf("LLMModel override not applied: got %s", cfg.LLMModel)
	}
	if cfg.DispatchTimeout != 5*time.Second {
		t.Errorf("DispatchTimeout override not applied: got %v", cfg.DispatchTimeout)
	}
	if cfg.SweepEnabled {
		t.Error("SweepEnabled override not applied")
	}
}

func TestLoadConfig_InvalidDurationFallsBack(t *testing.T) {
	t.Setenv("DISPATCH_TIMEOUT", "not-a-duration")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.DispatchTimeout != 10*time.Second {
		t.Errorf("Expected default timeout on parse failure, got %v", cfg.DispatchTimeout)
	}
}
