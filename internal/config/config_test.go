package config

import (
	"strings"
	"testing"
	"time"
)

func TestEnvStrFallback(t *testing.T) {
	t.Setenv("TEST_STR", "value")
	if v := envStr("TEST_STR", "default"); v != "value" {
		t.Fatalf("expected value, got %q", v)
	}
	if v := envStr("TEST_STR_MISSING", "default"); v != "default" {
		t.Fatalf("expected default, got %q", v)
	}
}

func TestEnvIntValid(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	if v := envInt("TEST_INT", 0); v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
}

func TestEnvIntFallback(t *testing.T) {
	// Unset and unparseable values both fall back.
	if v := envInt("TEST_INT_MISSING", 99); v != 99 {
		t.Fatalf("expected fallback 99, got %d", v)
	}
	t.Setenv("TEST_INT_BAD", "abc")
	if v := envInt("TEST_INT_BAD", 7); v != 7 {
		t.Fatalf("expected fallback 7, got %d", v)
	}
}

func TestEnvDurationValid(t *testing.T) {
	t.Setenv("TEST_DUR", "5s")
	if v := envDuration("TEST_DUR", 0); v != 5*time.Second {
		t.Fatalf("expected 5s, got %s", v)
	}
}

func TestEnvDurationFallback(t *testing.T) {
	t.Setenv("TEST_DUR_BAD", "five-seconds")
	if v := envDuration("TEST_DUR_BAD", time.Minute); v != time.Minute {
		t.Fatalf("expected fallback 1m, got %s", v)
	}
}

func TestEnvFloatValid(t *testing.T) {
	t.Setenv("TEST_FLOAT", "2.5")
	if v := envFloat("TEST_FLOAT", 0); v != 2.5 {
		t.Fatalf("expected 2.5, got %v", v)
	}
}

func TestEnvFloatFallback(t *testing.T) {
	t.Setenv("TEST_FLOAT_BAD", "fast")
	if v := envFloat("TEST_FLOAT_BAD", 1.5); v != 1.5 {
		t.Fatalf("expected fallback 1.5, got %v", v)
	}
}

func TestLoadSucceedsWithDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected Load() to succeed with defaults, got: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.TaskQueue != "kotae-chat" {
		t.Fatalf("expected default task queue, got %q", cfg.TaskQueue)
	}
	if cfg.LLMProvider != "ollama" {
		t.Fatalf("expected default provider ollama, got %q", cfg.LLMProvider)
	}
}

func TestLoadFailsOnUnknownProvider(t *testing.T) {
	t.Setenv("KOTAE_LLM_PROVIDER", "bard")
	_, err := Load()
	if err == nil {
		t.Fatal("expected Load() to fail with unknown provider")
	}
	if got := err.Error(); !strings.Contains(got, "KOTAE_LLM_PROVIDER") || !strings.Contains(got, "bard") {
		t.Fatalf("error should mention KOTAE_LLM_PROVIDER and value 'bard', got: %s", got)
	}
}

func TestValidateRejectsEmptyRequired(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"temporal address", func(c *Config) { c.TemporalAddress = "" }, "TEMPORAL_ADDRESS"},
		{"task queue", func(c *Config) { c.TaskQueue = "" }, "KOTAE_TASK_QUEUE"},
		{"documents root", func(c *Config) { c.DocumentsRoot = "" }, "KOTAE_DOCUMENTS_ROOT"},
		{"body limit", func(c *Config) { c.MaxRequestBodyBytes = 0 }, "KOTAE_MAX_REQUEST_BODY_BYTES"},
		{"negative rate limit", func(c *Config) { c.RateLimitRPS = -1 }, "KOTAE_RATE_LIMIT_RPS"},
		{"zero burst with limiting on", func(c *Config) { c.RateLimitRPS = 5; c.RateLimitBurst = 0 }, "KOTAE_RATE_LIMIT_BURST"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bad := cfg
			tc.mutate(&bad)
			err := bad.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error should mention %s, got: %s", tc.want, err)
			}
		})
	}
}
