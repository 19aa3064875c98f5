package embedding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ai-deepsearch-be/pkg/provider"
)

const geminiEmbeddingModel = "text-embedding-004"

type GeminiProvider struct {
	ApiKey string
	Client *http.Client
}

func NewGeminiProvider(apiKey string) EmbeddingProvider {
	return &GeminiProvider{
		ApiKey: apiKey,
		Client: &http.Client{Timeout: 60 * time.Second},
	}
}

type geminiEmbeddingPart struct {
	Text string `json:"text"`
}

type geminiEmbeddingContent struct {
	Parts []geminiEmbeddingPart `json:"parts"`
}

type geminiEmbeddingRequest struct {
	Model    string                 `json:"model"`
	Content  geminiEmbeddingContent `json:"content"`
	TaskType string                 `json:"task_type,omitempty"`
}

func (p *GeminiProvider) Generate(text string, taskType string) (*EmbeddingResponse, error) {
	geminiReq := geminiEmbeddingRequest{
		Model: geminiEmbeddingModel,
		Content: geminiEmbeddingContent{
			Parts: []geminiEmbeddingPart{{Text: text}},
		},
		TaskType: taskType,
	}
	geminiReqJson, err := json.Marshal(geminiReq)
	if err != nil {
		return nil, provider.NewError("gemini", "embed", 0, err)
	}

	endpoint := fmt.Sprintf(
		"https://generativelanguage.googleapis.com/v1/models/%s:embedContent",
		geminiEmbeddingModel,
	)
	req, err := http.NewRequest("POST", endpoint, bytes.NewBuffer(geminiReqJson))
	if err != nil {
		return nil, provider.NewError("gemini", "embed", 0, err)
	}
	req.Header.Set("x-goog-api-key", p.ApiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := p.Client.Do(req)
	if err != nil {
		return nil, provider.NewError("gemini", "embed", 0, err)
	}
	defer res.Body.Close()

	resByte, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, provider.NewError("gemini", "embed", 0, err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, provider.NewError("gemini", "embed", res.StatusCode, fmt.Errorf("%s", string(resByte)))
	}

	var resEmbedding EmbeddingResponse
	if err := json.Unmarshal(resByte, &resEmbedding); err != nil {
		return nil, provider.NewError("gemini", "embed", 0, err)
	}
	return &resEmbedding, nil
}
