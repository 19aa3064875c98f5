package research

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"ai-deepsearch-be/pkg/search"
	"ai-deepsearch-be/pkg/store"
)

// Step kinds. The pipeline shape is fixed: plan, search, analyze, followup,
// search, synthesize.
const (
	KindPlan       = "plan"
	KindSearch     = "search"
	KindAnalyze    = "analyze"
	KindFollowup   = "followup"
	KindSynthesize = "synthesize"
)

// Indexes into Session.Steps.
const (
	idxPlan = iota
	idxInitialSearch
	idxAnalyze
	idxFollowup
	idxFollowupSearch
	idxSynthesize
	stepCount
)

// Step is one stage of the research pipeline. Status moves pending ->
// running -> (completed | error) and never back.
type Step struct {
	Kind       string          `json:"kind"`
	Title      string          `json:"title"`
	Status     string          `json:"status"`
	Result     string          `json:"result,omitempty"`
	Sources    []search.Source `json:"sources,omitempty"`
	SubQueries []string        `json:"sub_queries,omitempty"`
}

// Session is one deep-research run. The engine owns the live session; every
// copy handed to callers is a deep clone, so readers never observe a
// half-applied update.
type Session struct {
	ID          string          `json:"id"`
	Query       string          `json:"query"`
	Steps       []Step          `json:"steps"`
	Sources     []search.Source `json:"sources"`
	FinalReport string          `json:"final_report,omitempty"`
	RunState    string          `json:"run_state"`
	StartedAt   time.Time       `json:"started_at"`
	EndedAt     *time.Time      `json:"ended_at,omitempty"`
}

// NewSession builds a running session with all six pipeline steps pending.
func NewSession(query string) (*Session, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &store.ValidationError{Field: "query", Reason: "must not be empty"}
	}

	return &Session{
		ID:    uuid.NewString(),
		Query: query,
		Steps: []Step{
			{Kind: KindPlan, Title: "Planning research", Status: store.StatusPending},
			{Kind: KindSearch, Title: "Searching sources", Status: store.StatusPending},
			{Kind: KindAnalyze, Title: "Analyzing findings", Status: store.StatusPending},
			{Kind: KindFollowup, Title: "Identifying gaps", Status: store.StatusPending},
			{Kind: KindSearch, Title: "Following up", Status: store.StatusPending},
			{Kind: KindSynthesize, Title: "Synthesizing report", Status: store.StatusPending},
		},
		RunState:  store.RunStateRunning,
		StartedAt: time.Now(),
	}, nil
}

// Clone returns a deep copy safe to hand outside the engine.
func (s *Session) Clone() *Session {
	c := *s
	c.Steps = make([]Step, len(s.Steps))
	for i, step := range s.Steps {
		c.Steps[i] = step
		c.Steps[i].Sources = append([]search.Source(nil), step.Sources...)
		c.Steps[i].SubQueries = append([]string(nil), step.SubQueries...)
	}
	c.Sources = append([]search.Source(nil), s.Sources...)
	if s.EndedAt != nil {
		endedAt := *s.EndedAt
		c.EndedAt = &endedAt
	}
	return &c
}
