package research

import (
	"fmt"
	"strings"
	"time"

	"ai-deepsearch-be/pkg/store"
)

// FormatReport renders a session as a shareable plain-text document: the
// final report followed by a numbered source listing. The output is a pure
// function of the session state, so exports and deliveries of the same
// snapshot are byte-identical.
func FormatReport(s *Session) string {
	var b strings.Builder

	b.WriteString("# Research Report\n\n")
	fmt.Fprintf(&b, "Query: %s\n", s.Query)
	fmt.Fprintf(&b, "Status: %s\n", s.RunState)
	fmt.Fprintf(&b, "Started: %s\n", s.StartedAt.UTC().Format(time.RFC3339))
	if s.EndedAt != nil {
		fmt.Fprintf(&b, "Ended: %s\n", s.EndedAt.UTC().Format(time.RFC3339))
	}
	b.WriteString("\n")

	switch {
	case s.FinalReport != "":
		b.WriteString(s.FinalReport)
		b.WriteString("\n")
	case s.RunState == store.RunStateRunning:
		b.WriteString("The research run is still in progress.\n")
	default:
		b.WriteString("No final report was generated for this run.\n")
	}

	if len(s.Sources) > 0 {
		b.WriteString("\n## Sources\n\n")
		for i, src := range s.Sources {
			fmt.Fprintf(&b, "%d. %s (%s)\n   %s\n", i+1, src.Title, src.Domain, src.URL)
		}
	}

	return b.String()
}
