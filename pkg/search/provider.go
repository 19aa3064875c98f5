package search

import "context"

// Provider is the contract for any web search backend. An empty result
// slice with a nil error is a valid "no results" outcome; errors are
// reserved for failed calls.
type Provider interface {
	Search(ctx context.Context, query string, count int) ([]Source, error)
}
