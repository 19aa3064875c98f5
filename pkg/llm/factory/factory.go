package factory

import (
	"fmt"

	"ai-deepsearch-be/pkg/llm"
	"ai-deepsearch-be/pkg/llm/gemini"
	"ai-deepsearch-be/pkg/llm/huggingface"
	"ai-deepsearch-be/pkg/llm/ollama"
	"ai-deepsearch-be/pkg/llm/openai"
)

// Credentials carries the per-provider settings a backend may need. Fields
// irrelevant to the selected provider are ignored.
type Credentials struct {
	OllamaBaseURL      string
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	GeminiAPIKey       string
	HuggingFaceAPIKey  string
	HuggingFaceBaseURL string
}

// NewLLMProvider creates an LLM provider based on the given type.
// Supported: "ollama", "openai", "gemini", "huggingface".
func NewLLMProvider(providerType, modelName string, creds Credentials) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		baseURL := creds.OllamaBaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "openai":
		if creds.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		return openai.NewOpenAIProvider(creds.OpenAIAPIKey, creds.OpenAIBaseURL, modelName), nil
	case "gemini":
		if creds.GeminiAPIKey == "" {
			return nil, fmt.Errorf("gemini provider requires an API key")
		}
		return gemini.NewGeminiProvider(creds.GeminiAPIKey, modelName), nil
	case "huggingface":
		if creds.HuggingFaceAPIKey == "" {
			return nil, fmt.Errorf("huggingface provider requires an API key")
		}
		return huggingface.NewHuggingFaceProvider(creds.HuggingFaceAPIKey, creds.HuggingFaceBaseURL, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
