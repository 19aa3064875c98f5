package brave

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"ai-deepsearch-be/pkg/provider"
	"ai-deepsearch-be/pkg/search"
)

const defaultBaseURL = "https://api.search.brave.com/res/v1"

type BraveProvider struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

var _ search.Provider = &BraveProvider{}

func NewBraveProvider(apiKey string) *BraveProvider {
	return &BraveProvider{
		APIKey:  apiKey,
		BaseURL: defaultBaseURL,
		Client: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

func (b *BraveProvider) Search(ctx context.Context, query string, count int) ([]search.Source, error) {
	if count <= 0 {
		count = 5
	}

	endpoint := b.BaseURL + "/web/search?q=" + url.QueryEscape(query) + "&count=" + strconv.Itoa(count)
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, provider.NewError("brave", "search", 0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.APIKey)

	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, provider.NewError("brave", "search", 0, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.NewError("brave", "search", 0, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, provider.NewError("brave", "search", resp.StatusCode, fmt.Errorf("body: %s", string(bodyBytes)))
	}

	var parsed braveResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return nil, provider.NewError("brave", "search", 0, fmt.Errorf("unmarshal response: %w", err))
	}

	sources := make([]search.Source, 0, len(parsed.Web.Results))
	for _, r := range parsed.Web.Results {
		if r.URL == "" {
			continue
		}
		sources = append(sources, search.Source{
			Title:   r.Title,
			URL:     r.URL,
			Domain:  search.DomainOf(r.URL),
			Snippet: r.Description,
		})
	}
	return sources, nil
}
