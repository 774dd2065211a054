package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelectsProvider(t *testing.T) {
	c, err := New(Config{Provider: "anthropic", AnthropicAPIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, c.Provider())
	assert.Equal(t, defaultAnthropicModel, c.Model())

	c, err = New(Config{Provider: "OpenAI", OpenAIAPIKey: "sk-test", Model: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, c.Provider())
	assert.Equal(t, "gpt-4o-mini", c.Model())

	c, err = New(Config{Provider: "ollama"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, c.Provider())
	assert.Equal(t, defaultOllamaModel, c.Model())
}

func TestNewRejectsBadConfig(t *testing.T) {
	var perr *ProviderError

	_, err := New(Config{Provider: "anthropic"})
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Error(), "API key")

	_, err = New(Config{Provider: "openai"})
	assert.ErrorAs(t, err, &perr)

	_, err = New(Config{Provider: "grok"})
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Error(), "invalid provider")

	_, err = New(Config{Provider: "ollama", OllamaURL: "://bad"})
	assert.ErrorAs(t, err, &perr)
}

func TestParseAnthropicStream(t *testing.T) {
	body := strings.Join([]string{
		`event: message_start`,
		`data: {"type":"message_start","message":{"id":"msg_1"}}`,
		``,
		`event: content_block_delta`,
		`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"Hello"}}`,
		``,
		`event: content_block_delta`,
		`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":" world"}}`,
		``,
		`event: message_delta`,
		`data: {"type":"message_delta","delta":{"stop_reason":"end_turn"}}`,
		``,
		`event: message_stop`,
		`data: {"type":"message_stop"}`,
		``,
	}, "\n")

	var chunks []Chunk
	err := parseAnthropicStream(strings.NewReader(body), func(c Chunk) error {
		chunks = append(chunks, c)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, chunks, 3)
	assert.Equal(t, "Hello", chunks[0].Content)
	assert.Equal(t, " world", chunks[1].Content)
	assert.Equal(t, "end_turn", chunks[2].FinishReason)
}

func TestParseAnthropicStreamBadPayload(t *testing.T) {
	err := parseAnthropicStream(strings.NewReader("data: {not json}\n"), func(Chunk) error { return nil })
	assert.Error(t, err)
}

func TestParseOpenAIStream(t *testing.T) {
	body := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"Hel"},"finish_reason":null}]}`,
		``,
		`data: {"choices":[{"delta":{"content":"lo"},"finish_reason":null}]}`,
		``,
		`data: {"choices":[{"delta":{},"finish_reason":"stop"}]}`,
		``,
		`data: [DONE]`,
		``,
	}, "\n")

	var chunks []Chunk
	err := parseOpenAIStream(strings.NewReader(body), func(c Chunk) error {
		chunks = append(chunks, c)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, chunks, 3)
	assert.Equal(t, "Hel", chunks[0].Content)
	assert.Equal(t, "lo", chunks[1].Content)
	assert.Equal(t, "stop", chunks[2].FinishReason)
}

func TestParseOpenAIStreamEmitErrorAborts(t *testing.T) {
	body := `data: {"choices":[{"delta":{"content":"x"},"finish_reason":null}]}` + "\n"
	calls := 0
	err := parseOpenAIStream(strings.NewReader(body), func(Chunk) error {
		calls++
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)
}
