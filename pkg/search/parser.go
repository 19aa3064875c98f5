package search

import (
	"strings"
)

// ArchiveFilters holds the structured filters extracted from a raw archive
// query plus the remaining free text.
type ArchiveFilters struct {
	RunState    string
	SessionID   string
	SearchQuery string // remaining text matched against archived queries
}

// ParseArchiveQuery extracts slash filters from a raw archive query.
// Supported:
//
//	/state:<run_state>  -> filter by terminal run state ("completed", "stopped")
//	/session:<id>       -> look up one archived run by session id
//	<text>              -> remaining text becomes the SearchQuery
//
// Filters may appear anywhere in the query and are case insensitive.
func ParseArchiveQuery(raw string) ArchiveFilters {
	filters := ArchiveFilters{}
	var cleanParts []string

	for _, part := range strings.Fields(raw) {
		lowerPart := strings.ToLower(part)

		switch {
		case strings.HasPrefix(lowerPart, "/state:"):
			filters.RunState = strings.TrimPrefix(lowerPart, "/state:")
		case strings.HasPrefix(lowerPart, "/session:"):
			// Session ids are case sensitive, trim from the original part.
			filters.SessionID = part[len("/session:"):]
		default:
			cleanParts = append(cleanParts, part)
		}
	}

	filters.SearchQuery = strings.Join(cleanParts, " ")
	return filters
}
