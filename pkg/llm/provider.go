package llm

import (
	"context"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Chunk is one increment of a streamed completion. Err is set at most once,
// on the final chunk, when the stream ended abnormally.
type Chunk struct {
	Text string
	Err  error
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(maxTokens int) Option {
	return func(o *Options) {
		o.MaxTokens = maxTokens
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// Prompt builds the canonical system+user history the engines send to a
// provider. An empty system prompt yields a user-only history.
func Prompt(systemPrompt, userPrompt string) []Message {
	if systemPrompt == "" {
		return []Message{{Role: "user", Content: userPrompt}}
	}
	return []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}
}

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)

	// Stream sends a chat history and delivers the response incrementally,
	// in emission order. The returned channel is closed when the stream
	// ends; cancelling ctx aborts the stream and releases the underlying
	// connection.
	Stream(ctx context.Context, history []Message, options ...Option) (<-chan Chunk, error)
}
