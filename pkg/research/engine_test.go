package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"ai-deepsearch-be/internal/pkg/logger"
	"ai-deepsearch-be/pkg/llm"
	"ai-deepsearch-be/pkg/provider"
	"ai-deepsearch-be/pkg/search"
	"ai-deepsearch-be/pkg/store"
)

// --- test doubles ---

type fakeLLM struct {
	mu sync.Mutex

	planReply      string
	planErr        error
	summaryReply   string
	summaryErr     error
	gapReply       string
	gapErr         error
	synthesisReply string
	synthesisErr   error

	planCalls      int
	summaryCalls   int
	gapCalls       int
	synthesisCalls int
}

func (f *fakeLLM) Chat(ctx context.Context, history []llm.Message, _ ...llm.Option) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	system := ""
	if len(history) > 0 && history[0].Role == "system" {
		system = history[0].Content
	}
	switch system {
	case planSystemPrompt:
		f.planCalls++
		return f.planReply, f.planErr
	case summarySystemPrompt:
		f.summaryCalls++
		return f.summaryReply, f.summaryErr
	case gapSystemPrompt:
		f.gapCalls++
		return f.gapReply, f.gapErr
	case synthesisSystemPrompt:
		f.synthesisCalls++
		return f.synthesisReply, f.synthesisErr
	}
	return "", fmt.Errorf("unexpected system prompt: %q", system)
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return f.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

func (f *fakeLLM) Stream(ctx context.Context, history []llm.Message, opts ...llm.Option) (<-chan llm.Chunk, error) {
	text, err := f.Chat(ctx, history, opts...)
	if err != nil {
		return nil, err
	}
	out := make(chan llm.Chunk, 1)
	out <- llm.Chunk{Text: text}
	close(out)
	return out, nil
}

type fakeSearch struct {
	mu      sync.Mutex
	calls   int
	queries []string
	// handler decides per query; when nil, two stable sources per query.
	handler func(query string) ([]search.Source, error)
}

func (f *fakeSearch) Search(ctx context.Context, query string, count int) ([]search.Source, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	f.mu.Lock()
	f.calls++
	f.queries = append(f.queries, query)
	handler := f.handler
	f.mu.Unlock()

	if handler != nil {
		return handler(query)
	}
	return []search.Source{
		{Title: "Result A for " + query, URL: "https://a.example.com/" + query, Domain: "a.example.com", Snippet: "snippet a"},
		{Title: "Result B for " + query, URL: "https://b.example.com/" + query, Domain: "b.example.com", Snippet: "snippet b"},
	}, nil
}

func (f *fakeSearch) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeEnricher struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeEnricher) Enrich(ctx context.Context, url string) string {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return "extracted text for " + url
}

func (f *fakeEnricher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type blockingSearch struct {
	entered chan struct{}
	once    sync.Once
}

func (b *blockingSearch) Search(ctx context.Context, query string, count int) ([]search.Source, error) {
	b.once.Do(func() { close(b.entered) })
	<-ctx.Done()
	return nil, ctx.Err()
}

type mapStore struct {
	mu sync.Mutex
	m  map[string]*Session
}

func newMapStore() *mapStore {
	return &mapStore{m: make(map[string]*Session)}
}

func (s *mapStore) SaveResearch(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[sess.ID] = sess
}

func (s *mapStore) GetResearch(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.m[id]
	return sess, ok
}

type snapshotObserver struct {
	mu    sync.Mutex
	snaps []*Session
}

func (o *snapshotObserver) ResearchUpdated(s *Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.snaps = append(o.snaps, s)
}

func (o *snapshotObserver) snapshots() []*Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Session(nil), o.snaps...)
}

func happyLLM() *fakeLLM {
	return &fakeLLM{
		planReply:      `["solar panel efficiency", "solar adoption rates", "solar storage tech"]`,
		summaryReply:   "The sources agree on steady growth.",
		gapReply:       `["solar recycling challenges"]`,
		synthesisReply: "## Executive Summary\n\nSolar power keeps growing. [1]\n\n## Key Findings\n\n- Growth is steady. [2]\n\n## Analysis\n\nDetails.\n\n## Conclusions\n\nDone.\n\n## Recommendations\n\nInvest.",
	}
}

func newTestEngine(f *fakeLLM, s search.Provider, e Enricher) (*Engine, *snapshotObserver) {
	obs := &snapshotObserver{}
	eng := NewEngine(f, s, e, newMapStore(), obs, Config{}, logger.NewNopLogger())
	return eng, obs
}

func waitTerminal(t *testing.T, eng *Engine, id string) *Session {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		sess, err := eng.Get(id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if store.TerminalRunState(sess.RunState) {
			return sess
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("session did not reach a terminal run state")
	return nil
}

// --- tests ---

func TestRunCompletesThroughAllSteps(t *testing.T) {
	llmFake := happyLLM()
	searchFake := &fakeSearch{}
	enrichFake := &fakeEnricher{}
	eng, _ := newTestEngine(llmFake, searchFake, enrichFake)

	started, err := eng.Start("solar power")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if len(started.Steps) != stepCount {
		t.Fatalf("steps = %d, want %d", len(started.Steps), stepCount)
	}
	for i, step := range started.Steps {
		if step.Status != store.StatusPending {
			t.Errorf("initial step %d status = %s, want pending", i, step.Status)
		}
	}

	sess := waitTerminal(t, eng, started.ID)

	if sess.RunState != store.RunStateCompleted {
		t.Fatalf("RunState = %s, want completed", sess.RunState)
	}
	if sess.EndedAt == nil {
		t.Error("EndedAt should be set on a completed session")
	}
	for i, step := range sess.Steps {
		if step.Status != store.StatusCompleted {
			t.Errorf("step %d (%s) status = %s, want completed", i, step.Kind, step.Status)
		}
	}
	if sess.FinalReport != llmFake.synthesisReply {
		t.Errorf("FinalReport = %q, want synthesis reply", sess.FinalReport)
	}

	// 3 planned sub-queries plus 1 follow-up gap.
	if got := searchFake.callCount(); got != 4 {
		t.Errorf("search calls = %d, want 4", got)
	}
	if got := len(sess.Steps[idxInitialSearch].SubQueries); got != 3 {
		t.Errorf("initial search sub-queries = %d, want 3", got)
	}
	if got := sess.Steps[idxFollowupSearch].SubQueries; len(got) != 1 || got[0] != "solar recycling challenges" {
		t.Errorf("follow-up sub-queries = %v", got)
	}

	// Two results per query, both under the enrich cap of 3.
	if got := enrichFake.callCount(); got != 8 {
		t.Errorf("enrich calls = %d, want 8", got)
	}
}

func TestSourcesDeduplicatedAcrossSubQueries(t *testing.T) {
	llmFake := happyLLM()
	llmFake.gapReply = `[]`
	searchFake := &fakeSearch{handler: func(query string) ([]search.Source, error) {
		return []search.Source{
			{Title: "Shared", URL: "https://shared.example.com/page", Domain: "shared.example.com"},
			{Title: "Unique " + query, URL: "https://unique.example.com/" + query, Domain: "unique.example.com"},
		}, nil
	}}
	eng, _ := newTestEngine(llmFake, searchFake, &fakeEnricher{})

	started, _ := eng.Start("solar power")
	sess := waitTerminal(t, eng, started.ID)

	// 3 sub-queries, each returning the shared URL plus one unique URL.
	if len(sess.Sources) != 4 {
		t.Fatalf("session sources = %d, want 4", len(sess.Sources))
	}
	seen := map[string]int{}
	for _, src := range sess.Sources {
		seen[src.URL]++
	}
	if seen["https://shared.example.com/page"] != 1 {
		t.Errorf("shared URL recorded %d times, want 1", seen["https://shared.example.com/page"])
	}
}

func TestStepTransitionsAreMonotonic(t *testing.T) {
	rank := map[string]int{
		store.StatusPending:   0,
		store.StatusRunning:   1,
		store.StatusCompleted: 2,
		store.StatusError:     2,
	}

	llmFake := happyLLM()
	eng, obs := newTestEngine(llmFake, &fakeSearch{}, &fakeEnricher{})

	started, _ := eng.Start("solar power")
	waitTerminal(t, eng, started.ID)

	snaps := obs.snapshots()
	if len(snaps) < stepCount {
		t.Fatalf("observer saw %d snapshots, want at least %d", len(snaps), stepCount)
	}
	prev := snaps[0]
	for _, snap := range snaps[1:] {
		running := 0
		for i := range snap.Steps {
			if rank[snap.Steps[i].Status] < rank[prev.Steps[i].Status] {
				t.Fatalf("step %d regressed from %s to %s", i, prev.Steps[i].Status, snap.Steps[i].Status)
			}
			if snap.Steps[i].Status == store.StatusRunning {
				running++
			}
			// A step may not start before its predecessor is terminal.
			if i > 0 && rank[snap.Steps[i].Status] >= 1 && !store.TerminalStatus(snap.Steps[i-1].Status) {
				t.Fatalf("step %d active while step %d is %s", i, i-1, snap.Steps[i-1].Status)
			}
		}
		if running > 1 {
			t.Fatalf("%d steps running at once", running)
		}
		prev = snap
	}
}

func TestPlanFallsBackToTemplateQueries(t *testing.T) {
	llmFake := happyLLM()
	llmFake.planErr = provider.NewError("ollama", "chat", 500, errors.New("down"))
	llmFake.gapReply = `[]`
	searchFake := &fakeSearch{}
	eng, _ := newTestEngine(llmFake, searchFake, &fakeEnricher{})

	started, _ := eng.Start("solar power")
	sess := waitTerminal(t, eng, started.ID)

	if sess.RunState != store.RunStateCompleted {
		t.Fatalf("RunState = %s, want completed despite planner failure", sess.RunState)
	}
	want := []string{
		"solar power overview",
		"solar power latest developments",
		"solar power examples and case studies",
		"solar power expert opinions",
	}
	got := sess.Steps[idxPlan].SubQueries
	if len(got) != len(want) {
		t.Fatalf("template sub-queries = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sub-query %d = %q, want %q", i, got[i], want[i])
		}
	}
	if !strings.Contains(sess.Steps[idxPlan].Result, "template fallback") {
		t.Errorf("plan result = %q, should note the fallback", sess.Steps[idxPlan].Result)
	}
}

func TestUnparseablePlanFallsBack(t *testing.T) {
	llmFake := happyLLM()
	llmFake.planReply = "I would be happy to help you research this topic."
	llmFake.gapReply = `[]`
	eng, _ := newTestEngine(llmFake, &fakeSearch{}, &fakeEnricher{})

	started, _ := eng.Start("solar power")
	sess := waitTerminal(t, eng, started.ID)

	if got := len(sess.Steps[idxPlan].SubQueries); got != 4 {
		t.Errorf("sub-queries = %d, want 4 template queries", got)
	}
}

func TestInitialSearchFailureAbortsRun(t *testing.T) {
	llmFake := happyLLM()
	searchFake := &fakeSearch{handler: func(query string) ([]search.Source, error) {
		return nil, provider.NewError("brave", "search", 429, errors.New("quota exceeded"))
	}}
	eng, _ := newTestEngine(llmFake, searchFake, &fakeEnricher{})

	started, _ := eng.Start("solar power")
	sess := waitTerminal(t, eng, started.ID)

	if sess.RunState != store.RunStateStopped {
		t.Fatalf("RunState = %s, want stopped", sess.RunState)
	}
	if sess.EndedAt == nil {
		t.Error("EndedAt should be set on an aborted run")
	}
	if sess.Steps[idxInitialSearch].Status != store.StatusError {
		t.Errorf("search step status = %s, want error", sess.Steps[idxInitialSearch].Status)
	}
	if sess.FinalReport != "" {
		t.Errorf("FinalReport = %q, want empty on an aborted run", sess.FinalReport)
	}
	// The pipeline must not advance past the failed step.
	for i := idxAnalyze; i < stepCount; i++ {
		if sess.Steps[i].Status != store.StatusPending {
			t.Errorf("step %d status = %s, want pending", i, sess.Steps[i].Status)
		}
	}
	if llmFake.gapCalls != 0 || llmFake.synthesisCalls != 0 {
		t.Errorf("gap/synthesis calls = %d/%d, want 0/0", llmFake.gapCalls, llmFake.synthesisCalls)
	}
}

func TestZeroTotalSourcesAbortsRun(t *testing.T) {
	llmFake := happyLLM()
	searchFake := &fakeSearch{handler: func(query string) ([]search.Source, error) {
		return []search.Source{}, nil
	}}
	eng, _ := newTestEngine(llmFake, searchFake, &fakeEnricher{})

	started, _ := eng.Start("solar power")
	sess := waitTerminal(t, eng, started.ID)

	if sess.RunState != store.RunStateStopped {
		t.Fatalf("RunState = %s, want stopped", sess.RunState)
	}
	if sess.Steps[idxInitialSearch].Status != store.StatusError {
		t.Errorf("search step status = %s, want error", sess.Steps[idxInitialSearch].Status)
	}
	if sess.Steps[idxAnalyze].Status != store.StatusPending {
		t.Errorf("analyze step ran despite zero sources")
	}
}

func TestSummaryFailureUsesCountFallback(t *testing.T) {
	llmFake := happyLLM()
	llmFake.summaryErr = provider.NewError("ollama", "chat", 500, errors.New("down"))
	llmFake.gapReply = `[]`
	eng, _ := newTestEngine(llmFake, &fakeSearch{}, &fakeEnricher{})

	started, _ := eng.Start("solar power")
	sess := waitTerminal(t, eng, started.ID)

	if sess.RunState != store.RunStateCompleted {
		t.Fatalf("RunState = %s, want completed", sess.RunState)
	}
	if !strings.Contains(sess.Steps[idxInitialSearch].Result, "Found 2 sources for 'solar panel efficiency'") {
		t.Errorf("step result missing count fallback: %q", sess.Steps[idxInitialSearch].Result)
	}
}

func TestNoGapsSkipsFollowupSearch(t *testing.T) {
	llmFake := happyLLM()
	llmFake.gapReply = `[]`
	searchFake := &fakeSearch{}
	eng, _ := newTestEngine(llmFake, searchFake, &fakeEnricher{})

	started, _ := eng.Start("solar power")
	sess := waitTerminal(t, eng, started.ID)

	if sess.RunState != store.RunStateCompleted {
		t.Fatalf("RunState = %s, want completed", sess.RunState)
	}
	if sess.Steps[idxFollowup].Result != "No knowledge gaps identified" {
		t.Errorf("followup result = %q", sess.Steps[idxFollowup].Result)
	}
	if sess.Steps[idxFollowupSearch].Status != store.StatusCompleted {
		t.Errorf("follow-up search status = %s, want completed", sess.Steps[idxFollowupSearch].Status)
	}
	if sess.Steps[idxFollowupSearch].Result != "skipped" {
		t.Errorf("follow-up search result = %q, want skipped", sess.Steps[idxFollowupSearch].Result)
	}
	// Only the three planned sub-queries hit the search provider.
	if got := searchFake.callCount(); got != 3 {
		t.Errorf("search calls = %d, want 3", got)
	}
}

func TestFollowupSearchFailureDegrades(t *testing.T) {
	llmFake := happyLLM()
	searchFake := &fakeSearch{handler: func(query string) ([]search.Source, error) {
		if query == "solar recycling challenges" {
			return nil, provider.NewError("brave", "search", 500, errors.New("upstream down"))
		}
		return []search.Source{
			{Title: "OK", URL: "https://ok.example.com/" + query, Domain: "ok.example.com"},
		}, nil
	}}
	eng, _ := newTestEngine(llmFake, searchFake, &fakeEnricher{})

	started, _ := eng.Start("solar power")
	sess := waitTerminal(t, eng, started.ID)

	if sess.RunState != store.RunStateCompleted {
		t.Fatalf("RunState = %s, want completed despite follow-up failure", sess.RunState)
	}
	if sess.Steps[idxFollowupSearch].Status != store.StatusCompleted {
		t.Errorf("follow-up step status = %s, want completed", sess.Steps[idxFollowupSearch].Status)
	}
	if !strings.Contains(sess.Steps[idxFollowupSearch].Result, "Search failed for 'solar recycling challenges'") {
		t.Errorf("follow-up result = %q, should note the failed query", sess.Steps[idxFollowupSearch].Result)
	}
	if sess.FinalReport == "" {
		t.Error("FinalReport should still be produced")
	}
}

func TestSynthesisFailureUsesFallbackReport(t *testing.T) {
	llmFake := happyLLM()
	llmFake.gapReply = `[]`
	llmFake.synthesisErr = provider.NewError("ollama", "chat", 500, errors.New("down"))
	eng, _ := newTestEngine(llmFake, &fakeSearch{}, &fakeEnricher{})

	started, _ := eng.Start("solar power")
	sess := waitTerminal(t, eng, started.ID)

	if sess.RunState != store.RunStateCompleted {
		t.Fatalf("RunState = %s, want completed", sess.RunState)
	}
	if sess.FinalReport == "" {
		t.Fatal("FinalReport must be non-empty on the completed path")
	}
	if !strings.Contains(sess.FinalReport, "## Executive Summary") {
		t.Errorf("fallback report = %q", sess.FinalReport)
	}
}

func TestStopDuringSearchFreezesSession(t *testing.T) {
	llmFake := happyLLM()
	blocking := &blockingSearch{entered: make(chan struct{})}
	eng, _ := newTestEngine(llmFake, blocking, &fakeEnricher{})

	started, _ := eng.Start("solar power")

	select {
	case <-blocking.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("search was never entered")
	}

	if _, err := eng.Stop(started.ID); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	sess := waitTerminal(t, eng, started.ID)

	if sess.RunState != store.RunStateStopped {
		t.Fatalf("RunState = %s, want stopped", sess.RunState)
	}
	if sess.EndedAt == nil {
		t.Error("EndedAt should be set on a stopped session")
	}
	if sess.FinalReport != "" {
		t.Errorf("FinalReport = %q, want empty after stop", sess.FinalReport)
	}
	for i := idxAnalyze; i < stepCount; i++ {
		if sess.Steps[i].Status != store.StatusPending {
			t.Errorf("step %d status = %s, want pending after stop", i, sess.Steps[i].Status)
		}
	}

	// The frozen snapshot must not change afterwards.
	time.Sleep(50 * time.Millisecond)
	later, err := eng.Get(started.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	for i := range sess.Steps {
		if later.Steps[i].Status != sess.Steps[i].Status {
			t.Errorf("step %d changed after stop: %s -> %s", i, sess.Steps[i].Status, later.Steps[i].Status)
		}
	}
	if later.RunState != sess.RunState {
		t.Errorf("RunState changed after stop: %s -> %s", sess.RunState, later.RunState)
	}
}

func TestStopIsIdempotentOnFinishedSession(t *testing.T) {
	llmFake := happyLLM()
	llmFake.gapReply = `[]`
	eng, _ := newTestEngine(llmFake, &fakeSearch{}, &fakeEnricher{})

	started, _ := eng.Start("solar power")
	waitTerminal(t, eng, started.ID)

	sess, err := eng.Stop(started.ID)
	if err != nil {
		t.Fatalf("Stop on finished session failed: %v", err)
	}
	if sess.RunState != store.RunStateCompleted {
		t.Errorf("RunState = %s, stop must not overwrite a completed run", sess.RunState)
	}
}

func TestStartRejectsBlankQuery(t *testing.T) {
	eng, _ := newTestEngine(happyLLM(), &fakeSearch{}, &fakeEnricher{})

	for _, query := range []string{"", "   ", "\n\t"} {
		_, err := eng.Start(query)
		var ve *store.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("Start(%q) error = %v, want ValidationError", query, err)
		}
	}
}

func TestGetUnknownSessionReturnsNotFound(t *testing.T) {
	eng, _ := newTestEngine(happyLLM(), &fakeSearch{}, &fakeEnricher{})

	if _, err := eng.Get("nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get error = %v, want ErrNotFound", err)
	}
	if _, err := eng.Stop("nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Stop error = %v, want ErrNotFound", err)
	}
}

func TestSnapshotsAreIsolatedCopies(t *testing.T) {
	llmFake := happyLLM()
	llmFake.gapReply = `[]`
	eng, _ := newTestEngine(llmFake, &fakeSearch{}, &fakeEnricher{})

	started, _ := eng.Start("solar power")
	sess := waitTerminal(t, eng, started.ID)

	sess.Steps[0].Status = "vandalized"
	sess.Sources = append(sess.Sources, search.Source{URL: "https://injected.example.com"})

	fresh, _ := eng.Get(started.ID)
	if fresh.Steps[0].Status == "vandalized" {
		t.Error("mutating a snapshot leaked into the engine's session")
	}
	for _, src := range fresh.Sources {
		if src.URL == "https://injected.example.com" {
			t.Error("appending to a snapshot leaked into the engine's session")
		}
	}
}
