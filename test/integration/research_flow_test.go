package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"ai-deepsearch-be/internal/config"
	"ai-deepsearch-be/internal/pkg/logger"
	"ai-deepsearch-be/internal/repository/memory"
	"ai-deepsearch-be/internal/service"
	"ai-deepsearch-be/pkg/llm"
	"ai-deepsearch-be/pkg/research"
	"ai-deepsearch-be/pkg/search"
	"ai-deepsearch-be/pkg/store"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
)

// scriptedLLM answers each pipeline stage by recognizing its system prompt.
type scriptedLLM struct{}

func (s *scriptedLLM) Chat(ctx context.Context, history []llm.Message, _ ...llm.Option) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	system := ""
	if len(history) > 0 && history[0].Role == "system" {
		system = history[0].Content
	}
	switch {
	case strings.Contains(system, "research planner"):
		return `["battery recycling methods", "lithium recovery efficiency"]`, nil
	case strings.Contains(system, "research assistant"):
		return "Direct recycling preserves cathode structure and cuts energy use.", nil
	case strings.Contains(system, "research reviewer"):
		return `[]`, nil
	case strings.Contains(system, "research analyst"):
		return "## Executive Summary\nRecycling is advancing fast. [1]\n\n## Key Findings\n- Hydrometallurgy dominates commercial plants [2]\n\n## Analysis\nRecovery rates keep improving.\n\n## Conclusions\nThe field is maturing.\n\n## Recommendations\nTrack pilot plants.", nil
	}
	return "", fmt.Errorf("unexpected system prompt: %q", system)
}

func (s *scriptedLLM) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return s.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

func (s *scriptedLLM) Stream(ctx context.Context, history []llm.Message, opts ...llm.Option) (<-chan llm.Chunk, error) {
	text, err := s.Chat(ctx, history, opts...)
	if err != nil {
		return nil, err
	}
	out := make(chan llm.Chunk, 1)
	out <- llm.Chunk{Text: text}
	close(out)
	return out, nil
}

type stubSearch struct {
	err error
}

func (s *stubSearch) Search(ctx context.Context, query string, count int) ([]search.Source, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []search.Source{
		{Title: "Result for " + query, URL: "https://example.com/" + strings.ReplaceAll(query, " ", "-"), Domain: "example.com", Snippet: "snippet"},
	}, nil
}

type stubEnricher struct{}

func (stubEnricher) Enrich(ctx context.Context, url string) string {
	return "extracted page content"
}

type stubMailer struct {
	mu      sync.Mutex
	to      string
	query   string
	reports []string
}

func (m *stubMailer) SendReport(toEmail, query, report string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to = toEmail
	m.query = query
	m.reports = append(m.reports, report)
	return nil
}

func testTopics() config.EventsConfig {
	return config.EventsConfig{
		ResearchUpdatesTopic: "TEST_RESEARCH_UPDATES",
		CouncilUpdatesTopic:  "TEST_COUNCIL_UPDATES",
		ResearchArchiveTopic: "TEST_RESEARCH_ARCHIVE",
	}
}

func newTestPubSub() *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
}

// drainResearch acknowledges update messages until a terminal snapshot
// arrives, returning every snapshot seen.
func drainResearch(t *testing.T, msgs <-chan *message.Message) []research.Session {
	t.Helper()
	deadline := time.After(10 * time.Second)
	var snapshots []research.Session
	for {
		select {
		case msg := <-msgs:
			var snap research.Session
			if err := json.Unmarshal(msg.Payload, &snap); err != nil {
				t.Fatalf("Update payload is not a session snapshot: %v", err)
			}
			msg.Ack()
			snapshots = append(snapshots, snap)
			if store.TerminalRunState(snap.RunState) {
				return snapshots
			}
		case <-deadline:
			t.Fatal("Timed out waiting for a terminal research snapshot")
		}
	}
}

func TestResearchFlowPublishesUpdatesAndArchive(t *testing.T) {
	pubSub := newTestPubSub()
	topics := testTopics()
	nopLog := logger.NewNopLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := pubSub.Subscribe(ctx, topics.ResearchUpdatesTopic)
	assert.NoError(t, err)
	archive, err := pubSub.Subscribe(ctx, topics.ResearchArchiveTopic)
	assert.NoError(t, err)

	sessionPublisher := service.NewSessionPublisher(service.NewPublisherService(pubSub), nil, topics, nopLog)
	engine := research.NewEngine(
		&scriptedLLM{},
		&stubSearch{},
		stubEnricher{},
		memory.NewSessionRepository(),
		sessionPublisher,
		research.Config{},
		nopLog,
	)

	sess, err := engine.Start("How is lithium recovered from spent batteries?")
	assert.NoError(t, err)

	snapshots := drainResearch(t, updates)
	t.Logf("Observed %d streamed snapshots", len(snapshots))

	final := snapshots[len(snapshots)-1]
	assert.Equal(t, sess.ID, final.ID)
	assert.Equal(t, store.RunStateCompleted, final.RunState)
	for _, step := range final.Steps {
		assert.Equal(t, store.StatusCompleted, step.Status, "step %s", step.Kind)
	}
	assert.NotEmpty(t, final.FinalReport)
	assert.NotEmpty(t, final.Sources)

	// Every streamed snapshot belongs to the same run.
	for _, snap := range snapshots {
		assert.Equal(t, sess.ID, snap.ID)
	}

	// Exactly one archive handoff for the completed run.
	select {
	case msg := <-archive:
		var archived research.Session
		assert.NoError(t, json.Unmarshal(msg.Payload, &archived))
		msg.Ack()
		assert.Equal(t, sess.ID, archived.ID)
		assert.Equal(t, store.RunStateCompleted, archived.RunState)
	case <-time.After(5 * time.Second):
		t.Fatal("No archive message for the completed run")
	}
	select {
	case <-archive:
		t.Fatal("Completed run was archived twice")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestResearchFatalSearchStopsRunWithoutArchive(t *testing.T) {
	pubSub := newTestPubSub()
	topics := testTopics()
	nopLog := logger.NewNopLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := pubSub.Subscribe(ctx, topics.ResearchUpdatesTopic)
	assert.NoError(t, err)
	archive, err := pubSub.Subscribe(ctx, topics.ResearchArchiveTopic)
	assert.NoError(t, err)

	sessionPublisher := service.NewSessionPublisher(service.NewPublisherService(pubSub), nil, topics, nopLog)
	engine := research.NewEngine(
		&scriptedLLM{},
		&stubSearch{err: errors.New("search backend down")},
		stubEnricher{},
		memory.NewSessionRepository(),
		sessionPublisher,
		research.Config{},
		nopLog,
	)

	_, err = engine.Start("Unreachable topic")
	assert.NoError(t, err)

	snapshots := drainResearch(t, updates)
	final := snapshots[len(snapshots)-1]
	assert.Equal(t, store.RunStateStopped, final.RunState)
	assert.Equal(t, store.StatusError, final.Steps[1].Status)
	assert.Empty(t, final.FinalReport)

	// An aborted run never reaches the archive.
	select {
	case <-archive:
		t.Fatal("Aborted run must not be archived")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestReportDeliveryFallsBackInline(t *testing.T) {
	nopLog := logger.NewNopLogger()
	engine := research.NewEngine(
		&scriptedLLM{},
		&stubSearch{},
		stubEnricher{},
		memory.NewSessionRepository(),
		nil,
		research.Config{},
		nopLog,
	)

	sess, err := engine.Start("How is lithium recovered from spent batteries?")
	assert.NoError(t, err)

	// Wait for the run to finish before requesting delivery.
	deadline := time.Now().Add(10 * time.Second)
	for {
		current, err := engine.Get(sess.ID)
		assert.NoError(t, err)
		if store.TerminalRunState(current.RunState) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Research run did not finish in time")
		}
		time.Sleep(50 * time.Millisecond)
	}

	mail := &stubMailer{}
	// No NATS configured: Request must deliver inline.
	delivery := service.NewDeliveryService(engine, mail, nil, nil, nopLog)
	assert.NoError(t, delivery.Start())

	err = delivery.Request(sess.ID, "reader@example.com")
	assert.NoError(t, err)

	mail.mu.Lock()
	defer mail.mu.Unlock()
	assert.Equal(t, "reader@example.com", mail.to)
	assert.Equal(t, sess.Query, mail.query)
	if assert.Len(t, mail.reports, 1) {
		assert.Contains(t, mail.reports[0], "Executive Summary")
	}

	// Unknown sessions are rejected before anything is queued.
	err = delivery.Request("missing-session", "reader@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
