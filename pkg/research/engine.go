package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ai-deepsearch-be/internal/pkg/logger"
	"ai-deepsearch-be/pkg/llm"
	"ai-deepsearch-be/pkg/search"
	"ai-deepsearch-be/pkg/store"
)

// Store persists live sessions. The engine is the only writer; readers get
// deep copies via Engine.Get.
type Store interface {
	SaveResearch(s *Session)
	GetResearch(id string) (*Session, bool)
}

// Observer receives a fresh snapshot after every visible session change.
// Implementations must not block for long; they run on the engine's
// goroutines.
type Observer interface {
	ResearchUpdated(s *Session)
}

// Enricher extracts page content for a search hit. Best effort: "" means
// the page contributed nothing.
type Enricher interface {
	Enrich(ctx context.Context, url string) string
}

// Config bounds the engine's provider usage.
type Config struct {
	SearchCount   int // results requested per sub-query
	EnrichLimit   int // results enriched per search call
	MinSubQueries int
	MaxSubQueries int
	MaxGaps       int
}

func DefaultConfig() Config {
	return Config{
		SearchCount:   5,
		EnrichLimit:   3,
		MinSubQueries: 3,
		MaxSubQueries: 5,
		MaxGaps:       2,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.SearchCount <= 0 {
		c.SearchCount = d.SearchCount
	}
	if c.EnrichLimit <= 0 {
		c.EnrichLimit = d.EnrichLimit
	}
	if c.MinSubQueries <= 0 {
		c.MinSubQueries = d.MinSubQueries
	}
	if c.MaxSubQueries < c.MinSubQueries {
		c.MaxSubQueries = d.MaxSubQueries
	}
	if c.MaxGaps <= 0 {
		c.MaxGaps = d.MaxGaps
	}
}

// Engine drives research sessions through the fixed six-step pipeline. One
// goroutine owns each run; all session mutation is serialized through the
// engine mutex, so snapshots handed out are always consistent.
type Engine struct {
	llm      llm.LLMProvider
	searcher search.Provider
	enricher Enricher
	sessions Store
	observer Observer
	cfg      Config
	log      logger.ILogger

	mu      sync.RWMutex
	cancels map[string]context.CancelFunc
}

func NewEngine(llmProvider llm.LLMProvider, searcher search.Provider, enricher Enricher, sessions Store, observer Observer, cfg Config, log logger.ILogger) *Engine {
	cfg.applyDefaults()
	return &Engine{
		llm:      llmProvider,
		searcher: searcher,
		enricher: enricher,
		sessions: sessions,
		observer: observer,
		cfg:      cfg,
		log:      log,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Start validates the query, creates a session, and launches the pipeline
// in the background. The returned snapshot shows all steps pending.
func (e *Engine) Start(query string) (*Session, error) {
	sess, err := NewSession(query)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	e.mu.Lock()
	e.sessions.SaveResearch(sess)
	e.cancels[sess.ID] = cancel
	snap := sess.Clone()
	e.mu.Unlock()

	e.notify(snap)
	go e.run(ctx, sess)

	return snap, nil
}

// Get returns a deep copy of the session's current state.
func (e *Engine) Get(id string) (*Session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	sess, ok := e.sessions.GetResearch(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return sess.Clone(), nil
}

// Stop requests cooperative cancellation. In-flight provider calls are
// aborted through their context; the run goroutine closes the session out
// shortly after. Stopping a finished session is a no-op.
func (e *Engine) Stop(id string) (*Session, error) {
	e.mu.Lock()
	cancel, ok := e.cancels[id]
	e.mu.Unlock()
	if ok {
		cancel()
	}
	return e.Get(id)
}

func (e *Engine) run(ctx context.Context, sess *Session) {
	defer func() {
		e.mu.Lock()
		delete(e.cancels, sess.ID)
		e.mu.Unlock()
	}()

	e.log.Info("ResearchEngine", "Research run started", map[string]interface{}{
		"session_id": sess.ID,
		"query":      sess.Query,
	})

	// Step 1: plan sub-queries. Never fatal; a failed or unparseable model
	// reply falls back to template queries.
	e.startStep(sess, idxPlan)
	subQueries, usedFallback := e.plan(ctx, sess.Query)
	if e.stoppedByCancel(ctx, sess) {
		return
	}
	planResult := fmt.Sprintf("Planned %d sub-queries", len(subQueries))
	if usedFallback {
		planResult += " (template fallback)"
	}
	e.apply(sess, func() {
		step := &sess.Steps[idxPlan]
		step.SubQueries = subQueries
		step.Status = store.StatusCompleted
		step.Result = planResult
	})

	// Step 2: initial search. A failed search call, or zero sources across
	// all sub-queries, aborts the run here: analysis without sources would
	// be fabrication.
	if e.stoppedByCancel(ctx, sess) {
		return
	}
	e.startStep(sess, idxInitialSearch)
	findings, err := e.runSearch(ctx, sess, idxInitialSearch, subQueries, true)
	if err != nil {
		if e.stoppedByCancel(ctx, sess) {
			return
		}
		e.failStep(sess, idxInitialSearch, err)
		e.endSession(sess, store.RunStateStopped)
		e.log.Error("ResearchEngine", "Initial search failed, run aborted", map[string]interface{}{
			"session_id": sess.ID,
			"error":      err.Error(),
		})
		return
	}
	if e.sourceCount(sess) == 0 {
		e.failStep(sess, idxInitialSearch, errors.New("no sources found for any sub-query"))
		e.endSession(sess, store.RunStateStopped)
		e.log.Warn("ResearchEngine", "No sources found, run aborted", map[string]interface{}{
			"session_id": sess.ID,
		})
		return
	}
	e.completeStep(sess, idxInitialSearch, strings.Join(findings, "\n"))

	// Step 3: analysis checkpoint. No provider calls.
	if e.stoppedByCancel(ctx, sess) {
		return
	}
	e.startStep(sess, idxAnalyze)
	e.completeStep(sess, idxAnalyze, fmt.Sprintf("Reviewed %d findings covering %d sources", len(findings), e.sourceCount(sess)))

	// Step 4: gap identification. Failures degrade to "no gaps".
	if e.stoppedByCancel(ctx, sess) {
		return
	}
	e.startStep(sess, idxFollowup)
	gaps := e.findGaps(ctx, sess.Query, findings)
	if e.stoppedByCancel(ctx, sess) {
		return
	}
	followupResult := "No knowledge gaps identified"
	if len(gaps) > 0 {
		followupResult = fmt.Sprintf("Identified %d follow-up queries", len(gaps))
	}
	e.apply(sess, func() {
		step := &sess.Steps[idxFollowup]
		step.SubQueries = gaps
		step.Status = store.StatusCompleted
		step.Result = followupResult
	})

	// Step 5: follow-up search. Per-gap failures degrade; with no gaps the
	// step completes immediately without touching any provider.
	if e.stoppedByCancel(ctx, sess) {
		return
	}
	e.startStep(sess, idxFollowupSearch)
	if len(gaps) == 0 {
		e.completeStep(sess, idxFollowupSearch, "skipped")
	} else {
		followupFindings, err := e.runSearch(ctx, sess, idxFollowupSearch, gaps, false)
		if err != nil {
			// Only cancellation escapes a non-fatal search pass.
			e.stoppedByCancel(ctx, sess)
			return
		}
		findings = append(findings, followupFindings...)
		e.completeStep(sess, idxFollowupSearch, strings.Join(followupFindings, "\n"))
	}

	// Step 6: synthesis. The completed path always ends with a report, even
	// if it is the fallback one.
	if e.stoppedByCancel(ctx, sess) {
		return
	}
	e.startStep(sess, idxSynthesize)
	report := e.synthesize(ctx, sess, findings)
	if e.stoppedByCancel(ctx, sess) {
		return
	}
	e.apply(sess, func() {
		sess.FinalReport = report
		sess.Steps[idxSynthesize].Status = store.StatusCompleted
		sess.Steps[idxSynthesize].Result = "Report generated"
	})
	e.endSession(sess, store.RunStateCompleted)

	e.log.Info("ResearchEngine", "Research run completed", map[string]interface{}{
		"session_id": sess.ID,
		"sources":    e.sourceCount(sess),
	})
}

func (e *Engine) plan(ctx context.Context, query string) (subQueries []string, usedFallback bool) {
	reply, err := e.llm.Chat(ctx, llm.Prompt(planSystemPrompt, buildPlanPrompt(query, e.cfg.MinSubQueries, e.cfg.MaxSubQueries)), llm.WithTemperature(0.4))
	if err != nil {
		e.log.Warn("ResearchEngine", "Planner call failed, using template sub-queries", map[string]interface{}{
			"error": err.Error(),
		})
		return templateSubQueries(query), true
	}
	if parsed := ParseStringList(reply, e.cfg.MaxSubQueries); len(parsed) > 0 {
		return parsed, false
	}
	return templateSubQueries(query), true
}

// templateSubQueries is the deterministic fallback plan. Planning never
// fails a run.
func templateSubQueries(query string) []string {
	return []string{
		query + " overview",
		query + " latest developments",
		query + " examples and case studies",
		query + " expert opinions",
	}
}

// runSearch performs one search pass: for each query, search, enrich the
// top hits, then summarize. With fatal=true a failed search call aborts the
// pass; otherwise it degrades to a note in the findings. Cancellation is
// checked between queries and surfaces as ctx.Err().
func (e *Engine) runSearch(ctx context.Context, sess *Session, idx int, queries []string, fatal bool) ([]string, error) {
	var findings []string

	for _, q := range queries {
		if ctx.Err() != nil {
			return findings, ctx.Err()
		}

		results, err := e.searcher.Search(ctx, q, e.cfg.SearchCount)
		if err != nil {
			if ctx.Err() != nil {
				return findings, ctx.Err()
			}
			if fatal {
				return findings, err
			}
			e.log.Warn("ResearchEngine", "Search failed for follow-up query, continuing", map[string]interface{}{
				"session_id": sess.ID,
				"sub_query":  q,
				"error":      err.Error(),
			})
			findings = append(findings, fmt.Sprintf("Search failed for '%s'", q))
			e.apply(sess, func() {
				step := &sess.Steps[idx]
				step.SubQueries = append(step.SubQueries, q)
				step.Result = strings.Join(findings, "\n")
			})
			continue
		}

		for i := 0; i < len(results) && i < e.cfg.EnrichLimit; i++ {
			if ctx.Err() != nil {
				return findings, ctx.Err()
			}
			if e.enricher == nil {
				break
			}
			if content := e.enricher.Enrich(ctx, results[i].URL); content != "" {
				results[i].Content = content
			}
		}

		summary := ""
		if len(results) > 0 {
			reply, chatErr := e.llm.Chat(ctx, llm.Prompt(summarySystemPrompt, buildSummaryPrompt(q, results)), llm.WithTemperature(0.3))
			if chatErr == nil {
				summary = strings.TrimSpace(reply)
			}
		}
		if summary == "" {
			summary = fmt.Sprintf("Found %d sources for '%s'", len(results), q)
		}

		if ctx.Err() != nil {
			// Cancellation observed: discard this query's results.
			return findings, ctx.Err()
		}

		findings = append(findings, fmt.Sprintf("%s: %s", q, summary))
		e.apply(sess, func() {
			step := &sess.Steps[idx]
			step.SubQueries = append(step.SubQueries, q)
			step.Sources = search.MergeSources(step.Sources, results)
			step.Result = strings.Join(findings, "\n")
			sess.Sources = search.MergeSources(sess.Sources, results)
		})
	}

	return findings, nil
}

func (e *Engine) findGaps(ctx context.Context, query string, findings []string) []string {
	reply, err := e.llm.Chat(ctx, llm.Prompt(gapSystemPrompt, buildGapPrompt(query, findings, e.cfg.MaxGaps)), llm.WithTemperature(0.4))
	if err != nil {
		e.log.Warn("ResearchEngine", "Gap analysis failed, treating as no gaps", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	return ParseStringList(reply, e.cfg.MaxGaps)
}

func (e *Engine) synthesize(ctx context.Context, sess *Session, findings []string) string {
	sources := e.snapshotSources(sess)
	reply, err := e.llm.Chat(ctx, llm.Prompt(synthesisSystemPrompt, buildSynthesisPrompt(sess.Query, findings, sources)), llm.WithTemperature(0.5))
	if err == nil && strings.TrimSpace(reply) != "" {
		return strings.TrimSpace(reply)
	}
	if err != nil {
		e.log.Warn("ResearchEngine", "Synthesis call failed, using fallback report", map[string]interface{}{
			"session_id": sess.ID,
			"error":      err.Error(),
		})
	}
	return fallbackReport(sess.Query, findings, len(sources))
}

// fallbackReport keeps the completed path useful when the synthesis model
// is unavailable.
func fallbackReport(query string, findings []string, sourceCount int) string {
	var b strings.Builder
	b.WriteString("## Executive Summary\n\n")
	fmt.Fprintf(&b, "Research on %q collected %d sources, but the synthesis model was unavailable. The findings below are the per-query summaries gathered during the run.\n\n", query, sourceCount)
	b.WriteString("## Key Findings\n\n")
	for _, f := range findings {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	return b.String()
}

// --- session mutation helpers ---

// apply runs fn under the engine lock, persists the session, and notifies
// the observer with a fresh snapshot.
func (e *Engine) apply(sess *Session, fn func()) {
	e.mu.Lock()
	fn()
	e.sessions.SaveResearch(sess)
	snap := sess.Clone()
	e.mu.Unlock()
	e.notify(snap)
}

func (e *Engine) notify(snap *Session) {
	if e.observer != nil {
		e.observer.ResearchUpdated(snap)
	}
}

func (e *Engine) startStep(sess *Session, idx int) {
	e.apply(sess, func() {
		sess.Steps[idx].Status = store.StatusRunning
	})
}

func (e *Engine) completeStep(sess *Session, idx int, result string) {
	e.apply(sess, func() {
		sess.Steps[idx].Status = store.StatusCompleted
		sess.Steps[idx].Result = result
	})
}

func (e *Engine) failStep(sess *Session, idx int, err error) {
	e.apply(sess, func() {
		sess.Steps[idx].Status = store.StatusError
		sess.Steps[idx].Result = err.Error()
	})
}

func (e *Engine) endSession(sess *Session, state string) {
	e.apply(sess, func() {
		if sess.RunState != store.RunStateRunning {
			return
		}
		now := time.Now()
		sess.RunState = state
		sess.EndedAt = &now
	})
}

// stoppedByCancel closes the session out as stopped once cancellation has
// been observed. Step statuses are frozen as they are; an interrupted step
// may legitimately remain "running" in the terminal snapshot.
func (e *Engine) stoppedByCancel(ctx context.Context, sess *Session) bool {
	if ctx.Err() == nil {
		return false
	}
	e.endSession(sess, store.RunStateStopped)
	e.log.Info("ResearchEngine", "Research run stopped", map[string]interface{}{
		"session_id": sess.ID,
	})
	return true
}

func (e *Engine) sourceCount(sess *Session) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(sess.Sources)
}

func (e *Engine) snapshotSources(sess *Session) []search.Source {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]search.Source(nil), sess.Sources...)
}
