package council

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ai-deepsearch-be/internal/pkg/logger"
	"ai-deepsearch-be/pkg/llm"
	"ai-deepsearch-be/pkg/store"
)

// Store persists council sessions. The engine keeps the master copy inside
// the store and hands out clones to everyone else.
type Store interface {
	SaveCouncil(s *Session)
	GetCouncil(id string) (*Session, bool)
}

// Observer receives a snapshot after every session mutation.
type Observer interface {
	CouncilUpdated(s *Session)
}

// Engine fans one query out to a set of LLM backends in parallel, streams
// their answers into the session, and computes a consensus once every
// backend has settled.
type Engine struct {
	backends  []Backend
	byID      map[string]Backend
	consensus llm.LLMProvider
	sessions  Store
	observer  Observer
	log       logger.ILogger

	mu      sync.RWMutex
	cancels map[string]context.CancelFunc
}

func NewEngine(backends []Backend, consensusProvider llm.LLMProvider, sessions Store, observer Observer, log logger.ILogger) *Engine {
	byID := make(map[string]Backend, len(backends))
	for _, b := range backends {
		byID[b.ID] = b
	}
	return &Engine{
		backends:  backends,
		byID:      byID,
		consensus: consensusProvider,
		sessions:  sessions,
		observer:  observer,
		log:       log,
		cancels:   make(map[string]context.CancelFunc),
	}
}

// Backends lists the configured council members in registration order.
func (e *Engine) Backends() []Backend {
	return append([]Backend(nil), e.backends...)
}

// Start validates the request, creates the session, and launches one
// goroutine per selected backend. Validation happens before any provider
// is contacted, so a bad request never spends tokens.
func (e *Engine) Start(query string, backendIDs []string) (*Session, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &store.ValidationError{Field: "query", Reason: "must not be empty"}
	}
	if len(backendIDs) < 2 {
		return nil, &store.ValidationError{Field: "backend_ids", Reason: "a council needs at least two backends"}
	}
	seen := make(map[string]bool, len(backendIDs))
	selected := make([]Backend, 0, len(backendIDs))
	for _, id := range backendIDs {
		b, ok := e.byID[id]
		if !ok {
			return nil, &store.ValidationError{Field: "backend_ids", Reason: fmt.Sprintf("unknown backend: %s", id)}
		}
		if seen[id] {
			return nil, &store.ValidationError{Field: "backend_ids", Reason: fmt.Sprintf("duplicate backend: %s", id)}
		}
		seen[id] = true
		selected = append(selected, b)
	}

	sess := &Session{
		ID:        uuid.NewString(),
		Query:     query,
		Responses: make([]ModelResponse, 0, len(selected)),
		Votes:     map[string]int{},
		RunState:  store.RunStateRunning,
		StartedAt: time.Now(),
	}
	for _, b := range selected {
		sess.Responses = append(sess.Responses, ModelResponse{
			BackendID:    b.ID,
			DisplayName:  b.DisplayName,
			ProviderKind: b.Kind,
			Status:       store.StatusPending,
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.sessions.SaveCouncil(sess)
	e.cancels[sess.ID] = cancel
	snap := sess.Clone()
	e.mu.Unlock()
	e.notify(snap)

	e.log.Info("CouncilEngine", "Council session started", map[string]interface{}{
		"session_id": sess.ID,
		"backends":   len(selected),
	})
	go e.run(ctx, sess, selected)
	return snap, nil
}

// Get returns a snapshot of the session or store.ErrNotFound.
func (e *Engine) Get(id string) (*Session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	sess, ok := e.sessions.GetCouncil(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return sess.Clone(), nil
}

// Stop cancels the session's context if it is still running. Backends that
// already finished keep their results. Stopping a finished session is a
// no-op that returns its current state.
func (e *Engine) Stop(id string) (*Session, error) {
	e.mu.Lock()
	cancel, ok := e.cancels[id]
	e.mu.Unlock()
	if ok {
		cancel()
	}
	return e.Get(id)
}

// Vote records the caller's pick. A session holds one active vote: voting
// for the same backend again is a no-op, voting for a different one moves
// the vote. Votes never touch any provider.
func (e *Engine) Vote(sessionID, backendID string) (*Session, error) {
	e.mu.Lock()
	sess, ok := e.sessions.GetCouncil(sessionID)
	if !ok {
		e.mu.Unlock()
		return nil, store.ErrNotFound
	}
	if sess.responseIndex(backendID) < 0 {
		e.mu.Unlock()
		return nil, &store.ValidationError{Field: "backend_id", Reason: fmt.Sprintf("backend %s is not part of this session", backendID)}
	}
	if sess.VotedFor == backendID {
		snap := sess.Clone()
		e.mu.Unlock()
		return snap, nil
	}
	if sess.Votes == nil {
		sess.Votes = map[string]int{}
	}
	if prev := sess.VotedFor; prev != "" {
		if sess.Votes[prev] <= 1 {
			delete(sess.Votes, prev)
		} else {
			sess.Votes[prev]--
		}
	}
	sess.Votes[backendID]++
	sess.VotedFor = backendID
	e.sessions.SaveCouncil(sess)
	snap := sess.Clone()
	e.mu.Unlock()
	e.notify(snap)
	return snap, nil
}

func (e *Engine) run(ctx context.Context, sess *Session, selected []Backend) {
	defer func() {
		e.mu.Lock()
		delete(e.cancels, sess.ID)
		e.mu.Unlock()
	}()

	var wg sync.WaitGroup
	for i, b := range selected {
		wg.Add(1)
		go func(idx int, backend Backend) {
			defer wg.Done()
			e.queryBackend(ctx, sess, idx, backend)
		}(i, b)
	}
	wg.Wait()
	e.settle(ctx, sess)
}

// queryBackend streams one backend's answer into the session. Chunks are
// appended as they arrive so observers see the text grow.
func (e *Engine) queryBackend(ctx context.Context, sess *Session, idx int, backend Backend) {
	started := time.Now()
	e.apply(sess, func() {
		if sess.Responses[idx].Status == store.StatusPending {
			sess.Responses[idx].Status = store.StatusRunning
		}
	})

	chunks, err := backend.Provider.Stream(ctx, llm.Prompt(backendSystemPrompt, sess.Query), llm.WithTemperature(0.7))
	if err != nil {
		e.failResponse(sess, idx, backend.ID, started, failureMessage(ctx, err))
		return
	}

	for chunk := range chunks {
		if chunk.Err != nil {
			e.failResponse(sess, idx, backend.ID, started, failureMessage(ctx, chunk.Err))
			return
		}
		if chunk.Text == "" {
			continue
		}
		e.apply(sess, func() {
			if sess.Responses[idx].Status == store.StatusRunning {
				sess.Responses[idx].Text += chunk.Text
			}
		})
	}

	if ctx.Err() != nil {
		e.failResponse(sess, idx, backend.ID, started, "cancelled")
		return
	}
	if strings.TrimSpace(e.responseText(sess, idx)) == "" {
		e.failResponse(sess, idx, backend.ID, started, "backend returned an empty response")
		return
	}
	e.apply(sess, func() {
		r := &sess.Responses[idx]
		if r.Status != store.StatusRunning {
			return
		}
		r.Status = store.StatusCompleted
		r.LatencyMs = time.Since(started).Milliseconds()
	})
}

// settle runs after every backend goroutine has returned. A cancelled run
// freezes as-is: the consensus stays nil no matter how many backends
// completed before the stop.
func (e *Engine) settle(ctx context.Context, sess *Session) {
	if ctx.Err() != nil {
		e.endSession(sess, store.RunStateStopped)
		e.log.Info("CouncilEngine", "Council session stopped", map[string]interface{}{"session_id": sess.ID})
		return
	}

	completed, total := e.completedSnapshot(sess)
	cons := e.buildConsensus(ctx, sess.Query, completed, total)
	if ctx.Err() != nil {
		e.endSession(sess, store.RunStateStopped)
		e.log.Info("CouncilEngine", "Council session stopped", map[string]interface{}{"session_id": sess.ID})
		return
	}
	e.apply(sess, func() {
		sess.Consensus = cons
	})
	e.endSession(sess, store.RunStateCompleted)
	e.log.Info("CouncilEngine", "Council session completed", map[string]interface{}{
		"session_id": sess.ID,
		"consensus":  cons.Source,
	})
}

func (e *Engine) buildConsensus(ctx context.Context, query string, completed []ModelResponse, total int) *Consensus {
	if len(completed) < 2 {
		return &Consensus{
			Text:   fmt.Sprintf("Insufficient responses for consensus analysis: %d of %d backends completed.", len(completed), total),
			Source: ConsensusSourceInsufficient,
		}
	}
	keywords := DetectConsensusKeywords(completed)
	cons := &Consensus{
		Keywords: &KeywordSet{Words: keywords, Method: "heuristic"},
	}
	text, err := e.consensus.Chat(ctx, llm.Prompt(consensusSystemPrompt, buildConsensusPrompt(query, completed)), llm.WithTemperature(0.4))
	if err == nil && strings.TrimSpace(text) != "" {
		cons.Text = strings.TrimSpace(text)
		cons.Source = ConsensusSourceModel
		return cons
	}
	if err != nil {
		e.log.Warn("CouncilEngine", "Consensus model unavailable, using keyword overlap", map[string]interface{}{
			"error": err.Error(),
		})
	}
	cons.Text = heuristicConsensusText(completed, keywords)
	cons.Source = ConsensusSourceHeuristic
	return cons
}

// apply serializes a mutation of the master session, persists it, and
// notifies observers with a clone taken inside the critical section.
func (e *Engine) apply(sess *Session, fn func()) {
	e.mu.Lock()
	fn()
	e.sessions.SaveCouncil(sess)
	snap := sess.Clone()
	e.mu.Unlock()
	e.notify(snap)
}

func (e *Engine) notify(snap *Session) {
	if e.observer == nil {
		return
	}
	e.observer.CouncilUpdated(snap)
}

func (e *Engine) failResponse(sess *Session, idx int, backendID string, started time.Time, message string) {
	e.apply(sess, func() {
		r := &sess.Responses[idx]
		if store.TerminalStatus(r.Status) {
			return
		}
		r.Status = store.StatusError
		r.ErrorMessage = message
		r.LatencyMs = time.Since(started).Milliseconds()
	})
	e.log.Warn("CouncilEngine", "Backend failed", map[string]interface{}{
		"session_id": sess.ID,
		"backend":    backendID,
		"reason":     message,
	})
}

func (e *Engine) endSession(sess *Session, state string) {
	e.apply(sess, func() {
		if sess.RunState != store.RunStateRunning {
			return
		}
		sess.RunState = state
		now := time.Now()
		sess.EndedAt = &now
	})
}

func (e *Engine) responseText(sess *Session, idx int) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return sess.Responses[idx].Text
}

func (e *Engine) completedSnapshot(sess *Session) ([]ModelResponse, int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return sess.completedResponses(), len(sess.Responses)
}

func failureMessage(ctx context.Context, err error) string {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	return err.Error()
}
