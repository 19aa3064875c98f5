package council

import (
	"time"

	"ai-deepsearch-be/pkg/llm"
	"ai-deepsearch-be/pkg/store"
)

// Provider kinds shown to consumers so a UI can badge local vs hosted
// backends.
const (
	ProviderKindLocal  = "local"
	ProviderKindHosted = "hosted"
)

// Consensus sources. "model" means the default LLM wrote the analysis,
// "heuristic" means it was assembled from keyword overlap after the model
// was unavailable, "insufficient" means fewer than two backends completed.
const (
	ConsensusSourceModel        = "model"
	ConsensusSourceHeuristic    = "heuristic"
	ConsensusSourceInsufficient = "insufficient"
)

// Backend is a configured council member: a display identity plus the LLM
// provider that answers for it.
type Backend struct {
	ID          string
	DisplayName string
	Kind        string // "local" or "hosted"
	Model       string
	Provider    llm.LLMProvider
}

// ModelResponse tracks one backend's answer within a session. Status moves
// pending -> running -> (completed | error) independently of its peers.
type ModelResponse struct {
	BackendID    string `json:"backend_id"`
	DisplayName  string `json:"display_name"`
	ProviderKind string `json:"provider_kind"`
	Status       string `json:"status"`
	Text         string `json:"text,omitempty"`
	LatencyMs    int64  `json:"latency_ms"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// KeywordSet is the shared-vocabulary heuristic attached to a consensus.
// Method is always "heuristic" so consumers can tell it apart from model
// output.
type KeywordSet struct {
	Words  []string `json:"words"`
	Method string   `json:"method"`
}

// Consensus is the comparative analysis computed once every backend has
// settled. A nil Consensus on the session means it was never computed,
// which is distinct from any computed outcome.
type Consensus struct {
	Text     string      `json:"text"`
	Source   string      `json:"source"`
	Keywords *KeywordSet `json:"keywords,omitempty"`
}

// Session is one council run. Votes are ephemeral UI state scoped to the
// session: one active vote, re-voting moves it.
type Session struct {
	ID        string          `json:"id"`
	Query     string          `json:"query"`
	Responses []ModelResponse `json:"responses"`
	Consensus *Consensus      `json:"consensus,omitempty"`
	Votes     map[string]int  `json:"votes"`
	VotedFor  string          `json:"voted_for,omitempty"`
	RunState  string          `json:"run_state"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
}

// Clone returns a deep copy safe to hand outside the engine.
func (s *Session) Clone() *Session {
	c := *s
	c.Responses = append([]ModelResponse(nil), s.Responses...)
	if s.Consensus != nil {
		cons := *s.Consensus
		if s.Consensus.Keywords != nil {
			kw := *s.Consensus.Keywords
			kw.Words = append([]string(nil), s.Consensus.Keywords.Words...)
			cons.Keywords = &kw
		}
		c.Consensus = &cons
	}
	c.Votes = make(map[string]int, len(s.Votes))
	for k, v := range s.Votes {
		c.Votes[k] = v
	}
	if s.EndedAt != nil {
		endedAt := *s.EndedAt
		c.EndedAt = &endedAt
	}
	return &c
}

func (s *Session) responseIndex(backendID string) int {
	for i := range s.Responses {
		if s.Responses[i].BackendID == backendID {
			return i
		}
	}
	return -1
}

// completedResponses returns copies of the responses that finished cleanly.
func (s *Session) completedResponses() []ModelResponse {
	var out []ModelResponse
	for _, r := range s.Responses {
		if r.Status == store.StatusCompleted {
			out = append(out, r)
		}
	}
	return out
}
