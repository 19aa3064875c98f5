package factory

import (
	"fmt"

	"ai-deepsearch-be/pkg/search"
	"ai-deepsearch-be/pkg/search/brave"
	"ai-deepsearch-be/pkg/search/searxng"
)

// NewSearchProvider creates a search provider based on the given type.
// Supported: "brave", "searxng".
func NewSearchProvider(providerType, braveAPIKey, searxngBaseURL string) (search.Provider, error) {
	switch providerType {
	case "brave":
		if braveAPIKey == "" {
			return nil, fmt.Errorf("brave provider requires an API key")
		}
		return brave.NewBraveProvider(braveAPIKey), nil
	case "searxng":
		return searxng.NewSearxngProvider(searxngBaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported search provider: %s", providerType)
	}
}
