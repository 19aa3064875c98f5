package research

import (
	"fmt"
	"strings"

	"ai-deepsearch-be/pkg/search"
	"ai-deepsearch-be/pkg/utils"
)

const (
	planSystemPrompt = `You are a research planner. You decompose a research question into focused web search queries that together cover the topic. Respond with a JSON array of strings and nothing else.`

	summarySystemPrompt = `You are a research assistant. You write dense, factual summaries of search results. Respond in plain prose, three sentences at most, no preamble.`

	gapSystemPrompt = `You are a research reviewer. You identify what a set of findings still fails to answer about the original question. Respond with a JSON array of strings and nothing else.`

	synthesisSystemPrompt = `You are a research analyst writing a final report. Be factual, cite sources by their bracketed number, and follow the requested structure exactly.`
)

// promptSourceContentCap bounds how much extracted page text goes into a
// single prompt, per source.
const promptSourceContentCap = 1500

func buildPlanPrompt(query string, minQueries, maxQueries int) string {
	return fmt.Sprintf(`Research question: %s

Produce %d to %d web search queries that explore distinct angles of this question. Return a JSON array of strings, for example: ["query one", "query two", "query three"].`, query, minQueries, maxQueries)
}

func buildSummaryPrompt(subQuery string, sources []search.Source) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search query: %s\n\nResults:\n", subQuery)
	for i, src := range sources {
		fmt.Fprintf(&b, "\n[%d] %s (%s)\n", i+1, src.Title, src.Domain)
		if src.Snippet != "" {
			fmt.Fprintf(&b, "Snippet: %s\n", src.Snippet)
		}
		if src.Content != "" {
			fmt.Fprintf(&b, "Extract: %s\n", utils.TruncateRunes(src.Content, promptSourceContentCap))
		}
	}
	b.WriteString("\nSummarize what these results say about the search query.")
	return b.String()
}

func buildGapPrompt(query string, findings []string, maxGaps int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original research question: %s\n\nFindings so far:\n", query)
	for _, f := range findings {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	fmt.Fprintf(&b, `
Identify up to %d focused follow-up search queries that would close the most important remaining gaps. If the findings already cover the question, return an empty array. Return a JSON array of strings only.`, maxGaps)
	return b.String()
}

func buildSynthesisPrompt(query string, findings []string, sources []search.Source) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research question: %s\n\nFindings:\n", query)
	for _, f := range findings {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	b.WriteString("\nSources:\n")
	for i, src := range sources {
		fmt.Fprintf(&b, "[%d] %s (%s) %s\n", i+1, src.Title, src.Domain, src.URL)
	}
	b.WriteString(`
Write the final research report in markdown with exactly these sections:

## Executive Summary
## Key Findings
## Analysis
## Conclusions
## Recommendations

Cite sources inline using their bracketed numbers, e.g. [2]. Key Findings must be a bulleted list.`)
	return b.String()
}
