package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ai-deepsearch-be/pkg/llm"
	"ai-deepsearch-be/pkg/provider"
)

const apiURLTemplate = "https://generativelanguage.googleapis.com/v1/models/%s:generateContent"

type GeminiProvider struct {
	APIKey    string
	ModelName string
	Client    *http.Client
}

var _ llm.LLMProvider = &GeminiProvider{}

func NewGeminiProvider(apiKey, modelName string) *GeminiProvider {
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiProvider{
		APIKey:    apiKey,
		ModelName: modelName,
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (g *GeminiProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	options := &llm.Options{
		Temperature: 0.7,
	}
	for _, opt := range opts {
		opt(options)
	}

	model := g.ModelName
	if options.Model != "" {
		model = options.Model
	}

	// The v1 API has no system role; fold system prompts into the first
	// user turn.
	var system string
	contents := make([]geminiContent, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case "system":
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
		case "assistant", "model":
			contents = append(contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: msg.Content}}})
		default:
			contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: msg.Content}}})
		}
	}
	if system != "" {
		if len(contents) > 0 && contents[0].Role == "user" {
			contents[0].Parts[0].Text = system + "\n\n" + contents[0].Parts[0].Text
		} else {
			contents = append([]geminiContent{{Role: "user", Parts: []geminiPart{{Text: system}}}}, contents...)
		}
	}

	reqPayload := geminiRequest{
		Contents: contents,
		GenerationConfig: &geminiGenerationConfig{
			Temperature: options.Temperature,
		},
	}
	if options.MaxTokens > 0 {
		reqPayload.GenerationConfig.MaxOutputTokens = options.MaxTokens
	}

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return "", provider.NewError("gemini", "chat", 0, fmt.Errorf("marshal request: %w", err))
	}

	url := fmt.Sprintf(apiURLTemplate, model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return "", provider.NewError("gemini", "chat", 0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.APIKey)

	resp, err := g.Client.Do(req)
	if err != nil {
		return "", provider.NewError("gemini", "chat", 0, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", provider.NewError("gemini", "chat", 0, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return "", provider.NewError("gemini", "chat", resp.StatusCode, fmt.Errorf("body: %s", string(bodyBytes)))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return "", provider.NewError("gemini", "chat", 0, fmt.Errorf("unmarshal response: %w", err))
	}
	if parsed.Error != nil {
		return "", provider.NewError("gemini", "chat", 0, fmt.Errorf("api error: %s", parsed.Error.Message))
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", provider.NewError("gemini", "chat", 0, fmt.Errorf("no candidates in response"))
	}

	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

func (g *GeminiProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return g.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

// Stream satisfies the streaming contract over the non-streaming endpoint:
// the full completion arrives as a single chunk. Callers see the same
// channel semantics as with incremental providers.
func (g *GeminiProvider) Stream(ctx context.Context, history []llm.Message, opts ...llm.Option) (<-chan llm.Chunk, error) {
	text, err := g.Chat(ctx, history, opts...)
	if err != nil {
		return nil, err
	}

	out := make(chan llm.Chunk, 1)
	go func() {
		defer close(out)
		select {
		case out <- llm.Chunk{Text: text}:
		case <-ctx.Done():
		}
	}()
	return out, nil
}
