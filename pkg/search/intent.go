package search

import (
	"strings"
	"unicode"
)

// Strategy selects how an archive lookup is executed.
type Strategy string

const (
	StrategyLiteral  Strategy = "literal"
	StrategySemantic Strategy = "semantic"
)

// DetermineStrategy decides between literal and semantic archive search.
// Queries that look like exact lookups (quoted text, very short tokens,
// identifier-like strings) match literally against the stored query text;
// everything else goes through embedding similarity.
func DetermineStrategy(query string) Strategy {
	query = strings.TrimSpace(query)

	if len(query) <= 3 {
		return StrategyLiteral
	}

	if strings.HasPrefix(query, "\"") && strings.HasSuffix(query, "\"") {
		return StrategyLiteral
	}

	// A single token with no spaces is an identifier or keyword, not a
	// question worth embedding.
	if !strings.ContainsFunc(query, unicode.IsSpace) {
		return StrategyLiteral
	}

	return StrategySemantic
}
