package council

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"ai-deepsearch-be/pkg/store"
)

const keywordMinLength = 5

// DetectConsensusKeywords returns the significant words shared by every
// completed response, sorted alphabetically. Words shorter than five
// characters are ignored so filler like "the" and "is" never counts as
// agreement. Responses that did not complete are excluded entirely.
func DetectConsensusKeywords(responses []ModelResponse) []string {
	var shared map[string]bool
	for _, r := range responses {
		if r.Status != store.StatusCompleted {
			continue
		}
		words := significantWords(r.Text)
		if shared == nil {
			shared = words
			continue
		}
		for w := range shared {
			if !words[w] {
				delete(shared, w)
			}
		}
	}
	if len(shared) == 0 {
		return nil
	}
	out := make([]string, 0, len(shared))
	for w := range shared {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// heuristicConsensusText is the fallback consensus body used when the
// consensus model is unavailable.
func heuristicConsensusText(completed []ModelResponse, keywords []string) string {
	if len(keywords) == 0 {
		return fmt.Sprintf("%d backends completed but their answers share no significant terms; review them individually.", len(completed))
	}
	return fmt.Sprintf("All %d completed backends touch on these shared themes: %s.", len(completed), strings.Join(keywords, ", "))
}

// significantWords lowercases the text, splits on anything that is not a
// letter or digit, and keeps the words long enough to carry meaning.
func significantWords(text string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	words := make(map[string]bool, len(fields))
	for _, f := range fields {
		if len([]rune(f)) >= keywordMinLength {
			words[f] = true
		}
	}
	return words
}
