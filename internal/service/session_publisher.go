package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"ai-deepsearch-be/internal/config"
	"ai-deepsearch-be/internal/pkg/logger"
	"ai-deepsearch-be/pkg/council"
	"ai-deepsearch-be/pkg/events"
	"ai-deepsearch-be/pkg/nats"
	"ai-deepsearch-be/pkg/research"
	"ai-deepsearch-be/pkg/store"
)

// SessionPublisher receives session snapshots from both engines and fans
// them out: every snapshot goes to the in-process updates topic for the
// websocket stream, terminal snapshots additionally emit a lifecycle event
// to NATS, and a completed research run is handed to the archive topic.
type SessionPublisher struct {
	publisher IPublisherService
	nats      *nats.Publisher // nil when NATS is unavailable
	topics    config.EventsConfig
	log       logger.ILogger

	mu       sync.Mutex
	finished map[string]bool
}

func NewSessionPublisher(publisher IPublisherService, natsPublisher *nats.Publisher, topics config.EventsConfig, log logger.ILogger) *SessionPublisher {
	return &SessionPublisher{
		publisher: publisher,
		nats:      natsPublisher,
		topics:    topics,
		log:       log,
		finished:  map[string]bool{},
	}
}

func (p *SessionPublisher) ResearchUpdated(s *research.Session) {
	payload, err := json.Marshal(s)
	if err != nil {
		p.log.Error("SessionPublisher", "Failed to marshal research snapshot", map[string]interface{}{
			"session_id": s.ID,
			"error":      err.Error(),
		})
		return
	}
	p.publish(p.topics.ResearchUpdatesTopic, payload, s.ID)

	if !store.TerminalRunState(s.RunState) || !p.markFinished(s.ID) {
		return
	}
	switch s.RunState {
	case store.RunStateCompleted:
		p.emit(events.NewSessionEvent(events.TypeResearchCompleted, s.ID, map[string]interface{}{
			"query": s.Query,
		}))
		p.publish(p.topics.ResearchArchiveTopic, payload, s.ID)
	case store.RunStateStopped:
		p.emit(events.NewSessionEvent(events.TypeResearchStopped, s.ID, nil))
	}
}

func (p *SessionPublisher) CouncilUpdated(s *council.Session) {
	payload, err := json.Marshal(s)
	if err != nil {
		p.log.Error("SessionPublisher", "Failed to marshal council snapshot", map[string]interface{}{
			"session_id": s.ID,
			"error":      err.Error(),
		})
		return
	}
	p.publish(p.topics.CouncilUpdatesTopic, payload, s.ID)

	if !store.TerminalRunState(s.RunState) || !p.markFinished(s.ID) {
		return
	}
	switch s.RunState {
	case store.RunStateCompleted:
		p.emit(events.NewSessionEvent(events.TypeCouncilCompleted, s.ID, map[string]interface{}{
			"query": s.Query,
		}))
	case store.RunStateStopped:
		p.emit(events.NewSessionEvent(events.TypeCouncilStopped, s.ID, nil))
	}
}

func (p *SessionPublisher) publish(topic string, payload []byte, sessionID string) {
	if err := p.publisher.Publish(context.Background(), topic, payload); err != nil {
		p.log.Warn("SessionPublisher", "Failed to publish session update", map[string]interface{}{
			"session_id": sessionID,
			"topic":      topic,
			"error":      err.Error(),
		})
	}
}

// markFinished reports whether this is the first terminal snapshot for the
// session. Votes keep arriving after a council completes, they must not
// re-emit lifecycle events.
func (p *SessionPublisher) markFinished(sessionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished[sessionID] {
		return false
	}
	p.finished[sessionID] = true
	return true
}

func (p *SessionPublisher) emit(event events.Event) {
	if p.nats == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.nats.Publish(ctx, event); err != nil {
		p.log.Warn("SessionPublisher", "Failed to publish lifecycle event", map[string]interface{}{
			"event": event.EventType(),
			"error": err.Error(),
		})
	}
}
