// Package llm provides streaming clients for the supported model providers
// and a factory that resolves one from configuration.
//
// The provider set is closed: anthropic, openai, and ollama. Each client is
// resolved once at configuration time; there is no runtime provider
// discovery.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Chunk is a single streamed token (or token group) from a provider.
type Chunk struct {
	Content      string
	FinishReason string
}

// Client is the uniform surface over a model provider. Stream invokes emit
// for every chunk in generation order; an emit error aborts the stream.
type Client interface {
	Stream(ctx context.Context, prompt string, maxTokens int, temperature float64, emit func(Chunk) error) error
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
	Provider() string
	Model() string
}

// ErrEmptyPrompt is returned before any network call when the prompt is
// blank.
var ErrEmptyPrompt = errors.New("llm: prompt cannot be empty")

// ProviderError reports invalid provider configuration (unknown name,
// missing credential). It fails construction, not requests.
type ProviderError struct {
	Message string
}

func (e *ProviderError) Error() string { return "llm: " + e.Message }

// Supported provider identifiers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
)

// Default models per provider, used when config leaves Model empty.
const (
	defaultAnthropicModel = "claude-sonnet-4-5"
	defaultOpenAIModel    = "gpt-4o"
	defaultOllamaModel    = "llama3.1"
)

// defaultTimeout bounds a single provider call when config gives none.
// Large generations stream for a while, so this is generous.
const defaultTimeout = 10 * time.Minute

// Config selects and parameterizes a provider client.
type Config struct {
	Provider        string
	Model           string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	OllamaURL       string
	Timeout         time.Duration
}

// New resolves a Client from config. Unknown providers and missing
// credentials are configuration errors.
func New(cfg Config) (Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, &ProviderError{Message: "anthropic API key not found; set KOTAE_ANTHROPIC_API_KEY"}
		}
		return newAnthropicClient(cfg.AnthropicAPIKey, orDefault(cfg.Model, defaultAnthropicModel), cfg.Timeout), nil
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, &ProviderError{Message: "openai API key not found; set OPENAI_API_KEY"}
		}
		return newOpenAIClient(cfg.OpenAIAPIKey, orDefault(cfg.Model, defaultOpenAIModel), cfg.Timeout), nil
	case ProviderOllama:
		return newOllamaClient(cfg.OllamaURL, orDefault(cfg.Model, defaultOllamaModel), cfg.Timeout)
	default:
		return nil, &ProviderError{
			Message: fmt.Sprintf("invalid provider %q: must be %q, %q, or %q",
				cfg.Provider, ProviderAnthropic, ProviderOpenAI, ProviderOllama),
		}
	}
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
