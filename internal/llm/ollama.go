package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

const defaultOllamaURL = "http://localhost:11434"

// ollamaClient generates against a local Ollama server. No API key needed;
// data never leaves the host.
type ollamaClient struct {
	api   *api.Client
	model string
}

func newOllamaClient(baseURL, model string, timeout time.Duration) (*ollamaClient, error) {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, &ProviderError{Message: fmt.Sprintf("invalid ollama URL %q: %v", baseURL, err)}
	}
	return &ollamaClient{
		api:   api.NewClient(parsed, &http.Client{Timeout: timeout}),
		model: model,
	}, nil
}

func (c *ollamaClient) Provider() string { return ProviderOllama }
func (c *ollamaClient) Model() string    { return c.model }

func (c *ollamaClient) Stream(ctx context.Context, prompt string, maxTokens int, temperature float64, emit func(Chunk) error) error {
	if strings.TrimSpace(prompt) == "" {
		return ErrEmptyPrompt
	}

	stream := true
	req := &api.GenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: &stream,
		Options: map[string]any{
			"temperature": temperature,
			"num_predict": maxTokens,
		},
	}

	err := c.api.Generate(ctx, req, func(resp api.GenerateResponse) error {
		chunk := Chunk{Content: resp.Response}
		if resp.Done {
			chunk.FinishReason = resp.DoneReason
		}
		if chunk.Content == "" && chunk.FinishReason == "" {
			return nil
		}
		return emit(chunk)
	})
	if err != nil {
		return fmt.Errorf("llm: ollama generate: %w", err)
	}
	return nil
}

func (c *ollamaClient) Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	stream := false
	req := &api.GenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: &stream,
		Options: map[string]any{
			"temperature": temperature,
			"num_predict": maxTokens,
		},
	}

	var b strings.Builder
	err := c.api.Generate(ctx, req, func(resp api.GenerateResponse) error {
		b.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("llm: ollama generate: %w", err)
	}
	return b.String(), nil
}
