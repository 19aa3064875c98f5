package searxng

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ai-deepsearch-be/pkg/provider"
	"ai-deepsearch-be/pkg/search"
)

// SearxngProvider queries a self-hosted SearXNG instance via its JSON API.
// Useful when running fully local, paired with an Ollama backend.
type SearxngProvider struct {
	BaseURL string
	Client  *http.Client
}

var _ search.Provider = &SearxngProvider{}

func NewSearxngProvider(baseURL string) *SearxngProvider {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &SearxngProvider{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Client: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

type searxngResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

func (s *SearxngProvider) Search(ctx context.Context, query string, count int) ([]search.Source, error) {
	if count <= 0 {
		count = 5
	}

	endpoint := s.BaseURL + "/search?q=" + url.QueryEscape(query) + "&format=json"
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, provider.NewError("searxng", "search", 0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, provider.NewError("searxng", "search", 0, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.NewError("searxng", "search", 0, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, provider.NewError("searxng", "search", resp.StatusCode, fmt.Errorf("body: %s", string(bodyBytes)))
	}

	var parsed searxngResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return nil, provider.NewError("searxng", "search", 0, fmt.Errorf("unmarshal response: %w", err))
	}

	sources := make([]search.Source, 0, count)
	for _, r := range parsed.Results {
		if r.URL == "" {
			continue
		}
		sources = append(sources, search.Source{
			Title:   r.Title,
			URL:     r.URL,
			Domain:  search.DomainOf(r.URL),
			Snippet: r.Content,
		})
		if len(sources) == count {
			break
		}
	}
	return sources, nil
}
