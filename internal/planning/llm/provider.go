// Package llm is a small client for generative text providers that speak the
// OpenAI chat completions protocol (OpenAI, Gemini's OpenAI endpoint, Ollama,
// vLLM).
package llm

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Message is one chat message sent to or received from the model.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Options configures a single completion request.
type Options struct {
	MaxTokens   int64
	Temperature float64
	// JSON asks the provider for a JSON object response. Callers must still
	// parse defensively; not every backend honours it.
	JSON bool
}

// Response is the result of a non-streaming completion.
type Response struct {
	Content      string
	FinishReason string
	PromptTokens int64
	OutputTokens int64
}

// StreamEvent is a single chunk from a streaming completion.
type StreamEvent struct {
	Delta        string // incremental text content
	Done         bool   // true when the stream is finished
	FinishReason string
	Err          error
}

// Provider abstracts a generative text backend.
type Provider interface {
	// Complete sends messages and returns a full response.
	Complete(ctx context.Context, messages []Message, opts Options) (*Response, error)

	// StreamComplete sends messages and returns a channel of streaming events.
	StreamComplete(ctx context.Context, messages []Message, opts Options) (<-chan StreamEvent, error)

	// Name returns the provider name (e.g. "openai").
	Name() string

	// Available returns true if the provider is configured and ready.
	Available() bool
}

// StatusError is returned when the provider answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Body)
}

// Config holds provider configuration.
type Config struct {
	APIKey      string
	Model       string
	Endpoint    string // base URL override (for Gemini, Ollama, vLLM)
	MaxTokens   int64
	Temperature float64
	Timeout     time.Duration
}

// ConfigFromEnv reads provider configuration from TRIPPLANNER_LLM_*
// environment variables.
func ConfigFromEnv() Config {
	maxTokens := int64(4096)
	if v := os.Getenv("TRIPPLANNER_LLM_MAX_TOKENS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			maxTokens = n
		}
	}

	temperature := 0.7
	if v := os.Getenv("TRIPPLANNER_LLM_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			temperature = f
		}
	}

	timeout := 60 * time.Second
	if v := os.Getenv("TRIPPLANNER_LLM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			timeout = d
		}
	}

	model := os.Getenv("TRIPPLANNER_LLM_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}

	return Config{
		APIKey:      os.Getenv("TRIPPLANNER_LLM_API_KEY"),
		Model:       model,
		Endpoint:    os.Getenv("TRIPPLANNER_LLM_ENDPOINT"),
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Timeout:     timeout,
	}
}
