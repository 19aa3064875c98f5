package search

import (
	"context"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"ai-deepsearch-be/pkg/utils"
)

const (
	enrichMaxBody    = 2 << 20 // read cap per page
	enrichMaxContent = 4000    // runes kept after extraction
)

// Enricher fetches a result page and extracts its readable text. Enrichment
// is best effort: any failure yields empty content, never an error, so a
// dead link can never sink a search step.
type Enricher struct {
	Client     *http.Client
	MaxContent int
}

func NewEnricher() *Enricher {
	return &Enricher{
		Client: &http.Client{
			Timeout: 15 * time.Second,
		},
		MaxContent: enrichMaxContent,
	}
}

// Enrich downloads the page at rawURL and returns its visible text, capped
// at MaxContent runes. Returns "" on any failure.
func (e *Enricher) Enrich(ctx context.Context, rawURL string) string {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", "deepsearch-bot/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.Client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "text/plain") {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, enrichMaxBody))
	if err != nil {
		return ""
	}

	return utils.TruncateRunes(StripHTML(string(body)), e.MaxContent)
}

// StripHTML reduces an HTML document to its visible text: script and style
// blocks dropped, tags removed, entities decoded, whitespace collapsed.
func StripHTML(doc string) string {
	var b strings.Builder
	b.Grow(len(doc) / 2)

	lower := strings.ToLower(doc)
	inTag := false
	inSkipBlock := false

	for i := 0; i < len(doc); i++ {
		c := doc[i]
		if c == '<' {
			inTag = true
			if !inSkipBlock && (strings.HasPrefix(lower[i:], "<script") || strings.HasPrefix(lower[i:], "<style")) {
				inSkipBlock = true
			} else if inSkipBlock && (strings.HasPrefix(lower[i:], "</script") || strings.HasPrefix(lower[i:], "</style")) {
				inSkipBlock = false
			}
			continue
		}
		if c == '>' {
			inTag = false
			b.WriteByte(' ')
			continue
		}
		if inTag || inSkipBlock {
			continue
		}
		b.WriteByte(c)
	}

	text := html.UnescapeString(b.String())
	return strings.Join(strings.Fields(text), " ")
}
