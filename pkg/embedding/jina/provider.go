package jina

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ai-deepsearch-be/pkg/embedding"
	"ai-deepsearch-be/pkg/provider"
)

type JinaProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewJinaProvider(apiKey string) *JinaProvider {
	return &JinaProvider{
		apiKey:  apiKey,
		baseURL: "https://api.jina.ai/v1/embeddings",
		model:   "jina-embeddings-v2-base-en",
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Generate embeds a single text. Jina has no task types, the parameter is
// accepted for interface compatibility and ignored.
func (p *JinaProvider) Generate(text string, taskType string) (*embedding.EmbeddingResponse, error) {
	reqBody := embeddingRequest{
		Model: p.model,
		Input: []string{text},
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, provider.NewError("jina", "embed", 0, err)
	}

	req, err := http.NewRequest("POST", p.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, provider.NewError("jina", "embed", 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.apiKey))

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, provider.NewError("jina", "embed", 0, err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, provider.NewError("jina", "embed", resp.StatusCode, fmt.Errorf("%s", string(bodyBytes)))
	}

	var jinaResp embeddingResponse
	if err := json.Unmarshal(bodyBytes, &jinaResp); err != nil {
		return nil, provider.NewError("jina", "embed", 0, err)
	}
	if jinaResp.Error != nil {
		return nil, provider.NewError("jina", "embed", 0, fmt.Errorf("%s", jinaResp.Error.Message))
	}
	if len(jinaResp.Data) == 0 {
		return nil, provider.NewError("jina", "embed", 0, fmt.Errorf("empty embeddings in response"))
	}

	return &embedding.EmbeddingResponse{
		Embedding: embedding.Vector{Values: jinaResp.Data[0].Embedding},
	}, nil
}
