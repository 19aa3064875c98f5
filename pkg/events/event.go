package events

import "time"

// Session lifecycle event types carried over the NATS bus.
const (
	TypeResearchCompleted = "RESEARCH_COMPLETED"
	TypeResearchStopped   = "RESEARCH_STOPPED"
	TypeCouncilCompleted  = "COUNCIL_COMPLETED"
	TypeCouncilStopped    = "COUNCIL_STOPPED"
	TypeReportDelivery    = "RESEARCH_REPORT_DELIVERY"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "RESEARCH_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent helps embed common logic if needed,
// strictly creating valid implementations is preferred though.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewSessionEvent builds a lifecycle event for a session. Extra fields are
// merged into the payload alongside the session id.
func NewSessionEvent(eventType, sessionID string, extra map[string]interface{}) BaseEvent {
	data := map[string]interface{}{
		"session_id": sessionID,
	}
	for k, v := range extra {
		data[k] = v
	}
	return BaseEvent{
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now(),
	}
}
