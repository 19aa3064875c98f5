package huggingface

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ai-deepsearch-be/pkg/llm"
	"ai-deepsearch-be/pkg/provider"
)

const defaultRouterURL = "https://router.huggingface.co/v1"

// HuggingFaceProvider drives models behind the Hugging Face inference
// router. The router exposes many hosted models through one key and speaks
// the OpenAI chat completions dialect, including SSE streaming.
type HuggingFaceProvider struct {
	APIKey    string
	BaseURL   string
	ModelName string
	Client    *http.Client
}

var _ llm.LLMProvider = &HuggingFaceProvider{}

func NewHuggingFaceProvider(apiKey, baseURL, modelName string) *HuggingFaceProvider {
	if baseURL == "" {
		baseURL = defaultRouterURL
	}
	return &HuggingFaceProvider{
		APIKey:    apiKey,
		BaseURL:   strings.TrimSuffix(baseURL, "/"),
		ModelName: modelName,
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type hfChatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type hfChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type hfStreamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (p *HuggingFaceProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	resp, err := p.send(ctx, history, false, opts...)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", provider.NewError("huggingface", "chat", 0, fmt.Errorf("read response: %w", err))
	}

	var parsed hfChatResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return "", provider.NewError("huggingface", "chat", 0, fmt.Errorf("unmarshal response: %w", err))
	}
	if parsed.Error != nil {
		return "", provider.NewError("huggingface", "chat", 0, fmt.Errorf("api error: %s", parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return "", provider.NewError("huggingface", "chat", 0, fmt.Errorf("empty choices in response"))
	}

	return parsed.Choices[0].Message.Content, nil
}

func (p *HuggingFaceProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

// Stream forwards router deltas in emission order until the [DONE]
// sentinel. The router occasionally interleaves keep-alive comments; those
// are skipped like any other non-data line.
func (p *HuggingFaceProvider) Stream(ctx context.Context, history []llm.Message, opts ...llm.Option) (<-chan llm.Chunk, error) {
	resp, err := p.send(ctx, history, true, opts...)
	if err != nil {
		return nil, err
	}

	out := make(chan llm.Chunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}
			var event hfStreamEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				continue
			}
			if len(event.Choices) == 0 || event.Choices[0].Delta.Content == "" {
				continue
			}
			select {
			case out <- llm.Chunk{Text: event.Choices[0].Delta.Content}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			select {
			case out <- llm.Chunk{Err: provider.NewError("huggingface", "stream", 0, err)}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

func (p *HuggingFaceProvider) send(ctx context.Context, history []llm.Message, stream bool, opts ...llm.Option) (*http.Response, error) {
	operation := "chat"
	if stream {
		operation = "stream"
	}

	options := &llm.Options{
		Temperature: 0.7,
	}
	for _, opt := range opts {
		opt(options)
	}

	model := p.ModelName
	if options.Model != "" {
		model = options.Model
	}

	reqPayload := hfChatRequest{
		Model:       model,
		Messages:    history,
		Temperature: options.Temperature,
		Stream:      stream,
	}
	if options.MaxTokens > 0 {
		reqPayload.MaxTokens = options.MaxTokens
	}

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, provider.NewError("huggingface", operation, 0, fmt.Errorf("marshal request: %w", err))
	}

	url := p.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, provider.NewError("huggingface", operation, 0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, provider.NewError("huggingface", operation, 0, err)
	}

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, provider.NewError("huggingface", operation, resp.StatusCode, fmt.Errorf("body: %s", string(bodyBytes)))
	}

	return resp, nil
}
