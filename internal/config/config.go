// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration. The API server and the
// worker share one config; each reads the fields it needs.
type Config struct {
	// Server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Temporal settings.
	TemporalAddress   string
	TemporalNamespace string
	TaskQueue         string

	// Document settings.
	DocumentsRoot string // Host directory the path guard roots all access in.
	MountPrefix   string // Virtual prefix clients use, e.g. "/documents".

	// LLM provider settings.
	LLMProvider     string // "anthropic", "openai", or "ollama"
	LLMModel        string // Empty selects the provider default.
	AnthropicAPIKey string
	OpenAIAPIKey    string
	OllamaURL       string
	LLMTimeout      time.Duration

	// Run archive settings.
	SQLitePath string

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel            string
	MaxRequestBodyBytes int64 // Maximum request body size in bytes.

	// Rate limit for chat creation, per client IP. Zero disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:                envInt("KOTAE_PORT", 8080),
		ReadTimeout:         envDuration("KOTAE_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        envDuration("KOTAE_WRITE_TIMEOUT", 30*time.Second),
		TemporalAddress:     envStr("TEMPORAL_ADDRESS", "localhost:7233"),
		TemporalNamespace:   envStr("TEMPORAL_NAMESPACE", "default"),
		TaskQueue:           envStr("KOTAE_TASK_QUEUE", "kotae-chat"),
		DocumentsRoot:       envStr("KOTAE_DOCUMENTS_ROOT", "/documents"),
		MountPrefix:         envStr("KOTAE_MOUNT_PREFIX", "/documents"),
		LLMProvider:         envStr("KOTAE_LLM_PROVIDER", "ollama"),
		LLMModel:            envStr("KOTAE_LLM_MODEL", ""),
		AnthropicAPIKey:     envStr("KOTAE_ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:        envStr("OPENAI_API_KEY", ""),
		OllamaURL:           envStr("OLLAMA_URL", "http://localhost:11434"),
		LLMTimeout:          envDuration("KOTAE_LLM_TIMEOUT", 10*time.Minute),
		SQLitePath:          envStr("KOTAE_SQLITE_PATH", "kotae.db"),
		OTELEndpoint:        envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:        envStr("OTEL_EXPORTER_OTLP_INSECURE", "") == "true",
		ServiceName:         envStr("OTEL_SERVICE_NAME", "kotae"),
		LogLevel:            envStr("KOTAE_LOG_LEVEL", "info"),
		MaxRequestBodyBytes: int64(envInt("KOTAE_MAX_REQUEST_BODY_BYTES", 1*1024*1024)), // 1 MB default
		RateLimitRPS:        envFloat("KOTAE_RATE_LIMIT_RPS", 0),
		RateLimitBurst:      envInt("KOTAE_RATE_LIMIT_BURST", 10),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present and consistent.
func (c Config) Validate() error {
	if c.TemporalAddress == "" {
		return fmt.Errorf("config: TEMPORAL_ADDRESS is required")
	}
	if c.TaskQueue == "" {
		return fmt.Errorf("config: KOTAE_TASK_QUEUE is required")
	}
	if c.DocumentsRoot == "" {
		return fmt.Errorf("config: KOTAE_DOCUMENTS_ROOT is required")
	}
	switch c.LLMProvider {
	case "anthropic", "openai", "ollama":
	default:
		return fmt.Errorf("config: KOTAE_LLM_PROVIDER must be anthropic, openai, or ollama, got %q", c.LLMProvider)
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: KOTAE_MAX_REQUEST_BODY_BYTES must be positive")
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("config: KOTAE_RATE_LIMIT_RPS must not be negative")
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		return fmt.Errorf("config: KOTAE_RATE_LIMIT_BURST must be at least 1 when rate limiting is enabled")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
