package integration

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ai-deepsearch-be/internal/pkg/logger"
	"ai-deepsearch-be/internal/repository/memory"
	"ai-deepsearch-be/internal/service"
	"ai-deepsearch-be/pkg/council"
	"ai-deepsearch-be/pkg/llm"
	"ai-deepsearch-be/pkg/store"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
)

// councilBackendLLM streams a fixed reply chunk by chunk. When block is set
// the stream stalls until the context is cancelled, standing in for a slow
// model.
type councilBackendLLM struct {
	reply string
	block bool
}

func (b *councilBackendLLM) Chat(ctx context.Context, history []llm.Message, _ ...llm.Option) (string, error) {
	return b.reply, nil
}

func (b *councilBackendLLM) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return b.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

func (b *councilBackendLLM) Stream(ctx context.Context, history []llm.Message, _ ...llm.Option) (<-chan llm.Chunk, error) {
	out := make(chan llm.Chunk)
	go func() {
		defer close(out)
		if b.block {
			<-ctx.Done()
			out <- llm.Chunk{Err: ctx.Err()}
			return
		}
		for _, word := range splitWords(b.reply) {
			select {
			case out <- llm.Chunk{Text: word}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func splitWords(s string) []string {
	var words []string
	current := ""
	for _, r := range s {
		current += string(r)
		if r == ' ' {
			words = append(words, current)
			current = ""
		}
	}
	if current != "" {
		words = append(words, current)
	}
	return words
}

func drainCouncil(t *testing.T, msgs <-chan *message.Message) []council.Session {
	t.Helper()
	deadline := time.After(10 * time.Second)
	var snapshots []council.Session
	for {
		select {
		case msg := <-msgs:
			var snap council.Session
			if err := json.Unmarshal(msg.Payload, &snap); err != nil {
				t.Fatalf("Update payload is not a council snapshot: %v", err)
			}
			msg.Ack()
			snapshots = append(snapshots, snap)
			if store.TerminalRunState(snap.RunState) {
				return snapshots
			}
		case <-deadline:
			t.Fatal("Timed out waiting for a terminal council snapshot")
		}
	}
}

func TestCouncilFlowReachesModelConsensus(t *testing.T) {
	pubSub := newTestPubSub()
	topics := testTopics()
	nopLog := logger.NewNopLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := pubSub.Subscribe(ctx, topics.CouncilUpdatesTopic)
	assert.NoError(t, err)

	backends := []council.Backend{
		{ID: "alpha", DisplayName: "Alpha", Kind: council.ProviderKindLocal, Model: "alpha-1",
			Provider: &councilBackendLLM{reply: "Solar energy and renewable power will dominate."}},
		{ID: "bravo", DisplayName: "Bravo", Kind: council.ProviderKindLocal, Model: "bravo-1",
			Provider: &councilBackendLLM{reply: "Renewable sources, mainly solar power, keep growing their energy share."}},
	}
	moderator := &councilBackendLLM{reply: "Both backends agree renewables led by solar will dominate."}

	sessionPublisher := service.NewSessionPublisher(service.NewPublisherService(pubSub), nil, topics, nopLog)
	engine := council.NewEngine(backends, moderator, memory.NewSessionRepository(), sessionPublisher, nopLog)

	sess, err := engine.Start("What energy source will dominate by 2040?", []string{"alpha", "bravo"})
	assert.NoError(t, err)

	snapshots := drainCouncil(t, updates)
	t.Logf("Observed %d streamed council snapshots", len(snapshots))

	final := snapshots[len(snapshots)-1]
	assert.Equal(t, sess.ID, final.ID)
	assert.Equal(t, store.RunStateCompleted, final.RunState)
	for _, r := range final.Responses {
		assert.Equal(t, store.StatusCompleted, r.Status, "backend %s", r.BackendID)
		assert.NotEmpty(t, r.Text)
	}
	if assert.NotNil(t, final.Consensus) {
		assert.Equal(t, council.ConsensusSourceModel, final.Consensus.Source)
		if assert.NotNil(t, final.Consensus.Keywords) {
			assert.Contains(t, final.Consensus.Keywords.Words, "solar")
			assert.Contains(t, final.Consensus.Keywords.Words, "renewable")
		}
	}

	// Streaming must be visible: some snapshot holds a partially built
	// answer for at least one backend.
	sawPartial := false
	for _, snap := range snapshots {
		for _, r := range snap.Responses {
			if r.Status == store.StatusRunning && r.Text != "" && r.Text != "Solar energy and renewable power will dominate." {
				sawPartial = true
			}
		}
	}
	assert.True(t, sawPartial, "expected at least one partial streamed response")

	// Votes after completion reach the stream without re-running anything.
	voted, err := engine.Vote(sess.ID, "alpha")
	assert.NoError(t, err)
	assert.Equal(t, 1, voted.Votes["alpha"])
}

func TestCouncilStopFreezesWithoutConsensus(t *testing.T) {
	pubSub := newTestPubSub()
	topics := testTopics()
	nopLog := logger.NewNopLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := pubSub.Subscribe(ctx, topics.CouncilUpdatesTopic)
	assert.NoError(t, err)

	backends := []council.Backend{
		{ID: "alpha", DisplayName: "Alpha", Kind: council.ProviderKindLocal, Model: "alpha-1",
			Provider: &councilBackendLLM{block: true}},
		{ID: "bravo", DisplayName: "Bravo", Kind: council.ProviderKindLocal, Model: "bravo-1",
			Provider: &councilBackendLLM{block: true}},
	}
	moderator := &councilBackendLLM{reply: "unused"}

	sessionPublisher := service.NewSessionPublisher(service.NewPublisherService(pubSub), nil, topics, nopLog)
	engine := council.NewEngine(backends, moderator, memory.NewSessionRepository(), sessionPublisher, nopLog)

	sess, err := engine.Start("Will this ever finish?", []string{"alpha", "bravo"})
	assert.NoError(t, err)

	// Give both streams time to enter the running state, then cut them off.
	time.Sleep(100 * time.Millisecond)
	_, err = engine.Stop(sess.ID)
	assert.NoError(t, err)

	snapshots := drainCouncil(t, updates)
	final := snapshots[len(snapshots)-1]
	assert.Equal(t, store.RunStateStopped, final.RunState)
	assert.Nil(t, final.Consensus)
	for _, r := range final.Responses {
		assert.Equal(t, store.StatusError, r.Status, "backend %s", r.BackendID)
	}
}
