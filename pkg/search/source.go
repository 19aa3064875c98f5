package search

import (
	"net/url"
	"strings"
)

// Source is a single search hit, optionally enriched with extracted page
// content. Sources are identified by URL throughout the pipeline.
type Source struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Domain  string `json:"domain"`
	Snippet string `json:"snippet"`
	Content string `json:"content,omitempty"`
}

// DomainOf extracts the bare hostname of a URL, minus any leading "www."
// prefix. Unparseable URLs yield an empty domain, never an error.
func DomainOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := parsed.Hostname()
	return strings.TrimPrefix(host, "www.")
}

// MergeSources appends incoming sources to existing, deduplicating by URL.
// The first occurrence wins; a later duplicate only contributes its content
// when the kept copy has none.
func MergeSources(existing, incoming []Source) []Source {
	merged := make([]Source, 0, len(existing)+len(incoming))
	byURL := make(map[string]int, len(existing)+len(incoming))

	for _, s := range existing {
		byURL[s.URL] = len(merged)
		merged = append(merged, s)
	}
	for _, s := range incoming {
		if pos, seen := byURL[s.URL]; seen {
			if merged[pos].Content == "" && s.Content != "" {
				merged[pos].Content = s.Content
			}
			continue
		}
		byURL[s.URL] = len(merged)
		merged = append(merged, s)
	}

	return merged
}
