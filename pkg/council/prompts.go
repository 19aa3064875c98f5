package council

import (
	"fmt"
	"strings"
)

const backendSystemPrompt = `You are one voice on a council of AI models answering the same question. Give your own best answer directly and concisely. Do not mention the council or the other models.`

const consensusSystemPrompt = `You are the moderator of a council of AI models. You are given one question and the full answer each model produced for it. Write a short consensus analysis that covers:
1. The points where the models agree.
2. The notable points where they disagree or diverge.
3. Which answer is the most complete or useful, and why.

Refer to the models by their display names. Respond in plain prose, no preamble.`

func buildConsensusPrompt(query string, responses []ModelResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", query)
	fmt.Fprintf(&b, "Answers from %d models:\n\n", len(responses))
	for _, r := range responses {
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", r.DisplayName, strings.TrimSpace(r.Text))
	}
	b.WriteString("Write the consensus analysis.")
	return b.String()
}
