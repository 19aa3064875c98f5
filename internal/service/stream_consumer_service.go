// FILE: internal/service/stream_consumer_service.go
package service

import (
	"context"
	"encoding/json"
	"log"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"ai-deepsearch-be/internal/websocket"
)

// IStreamConsumerService bridges engine snapshots from the in-process bus
// to the websocket hub.
type IStreamConsumerService interface {
	Consume(ctx context.Context) error
}

type streamConsumerService struct {
	pubSub        *gochannel.GoChannel
	hub           *websocket.Hub
	researchTopic string
	councilTopic  string
}

func NewStreamConsumerService(
	pubSub *gochannel.GoChannel,
	hub *websocket.Hub,
	researchTopic string,
	councilTopic string,
) IStreamConsumerService {
	return &streamConsumerService{
		pubSub:        pubSub,
		hub:           hub,
		researchTopic: researchTopic,
		councilTopic:  councilTopic,
	}
}

func (cs *streamConsumerService) Consume(ctx context.Context) error {
	researchMsgs, err := cs.pubSub.Subscribe(ctx, cs.researchTopic)
	if err != nil {
		return err
	}
	councilMsgs, err := cs.pubSub.Subscribe(ctx, cs.councilTopic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range researchMsgs {
			cs.processMessage(msg, "research_update")
		}
	}()
	go func() {
		for msg := range councilMsgs {
			cs.processMessage(msg, "council_update")
		}
	}()

	return nil
}

func (cs *streamConsumerService) processMessage(msg *message.Message, updateType string) {
	// Only the session id is needed here, the snapshot is forwarded as-is.
	var snapshot struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(msg.Payload, &snapshot); err != nil || snapshot.ID == "" {
		log.Printf("[ERROR] Dropping malformed session snapshot: %v", err)
		msg.Ack()
		return
	}

	envelope, err := json.Marshal(map[string]interface{}{
		"type": updateType,
		"data": json.RawMessage(msg.Payload),
	})
	if err != nil {
		log.Printf("[ERROR] Failed to build stream envelope: %v", err)
		msg.Ack()
		return
	}

	cs.hub.Broadcast(snapshot.ID, envelope)
	msg.Ack()
}
