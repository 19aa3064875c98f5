package websocket

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"ai-deepsearch-be/internal/pkg/logger"
)

// redisChannel carries session updates between instances. Each payload
// names the target session so receiving instances only deliver to clients
// watching it.
const redisChannel = "deepsearch_events"

// deliverRequest asks the hub to fan a payload out to the local clients
// watching one session.
type deliverRequest struct {
	sessionID string
	payload   []byte
}

type Hub struct {
	// Watching clients per session ID. Owned by the Run goroutine; all
	// access is serialized through the channels below, so closing a Send
	// channel can never race a delivery.
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client
	deliver    chan deliverRequest

	// Redis connection for cross-instance fan-out
	rdb *redis.Client

	// Identifies this instance so it can skip its own Redis messages,
	// local clients already got them directly.
	instanceID string

	// Dedicated Logger
	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan deliverRequest),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run() {
	// Start Redis Subscriber if Redis is available
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.clients[client.SessionID] = append(h.clients[client.SessionID], client)
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"session_id": client.SessionID})

		case client := <-h.unregister:
			h.drop(client)

		case req := <-h.deliver:
			h.deliverLocal(req.sessionID, req.payload)
		}
	}
}

// Broadcast delivers a payload to every local client watching the session,
// then publishes it to Redis so other instances can do the same. Safe to
// call from any goroutine.
func (h *Hub) Broadcast(sessionID string, message []byte) {
	h.deliver <- deliverRequest{sessionID: sessionID, payload: message}

	if h.rdb != nil {
		payload := map[string]interface{}{
			"origin":            h.instanceID,
			"target_session_id": sessionID,
			"message":           json.RawMessage(message),
		}
		jsonPayload, _ := json.Marshal(payload)
		h.rdb.Publish(context.Background(), redisChannel, jsonPayload)
	}
}

// drop removes a client and closes its Send channel. Dropping a client
// twice is a no-op. Run goroutine only.
func (h *Hub) drop(client *Client) {
	clients, ok := h.clients[client.SessionID]
	if !ok {
		return
	}
	for i, c := range clients {
		if c == client {
			h.clients[client.SessionID] = append(clients[:i], clients[i+1:]...)
			close(client.Send)
			break
		}
	}
	if len(h.clients[client.SessionID]) == 0 {
		delete(h.clients, client.SessionID)
		h.logger.Info("Hub", "Last client unregistered", map[string]interface{}{"session_id": client.SessionID})
	}
}

// deliverLocal fans a payload out to the session's clients. Run goroutine
// only.
func (h *Hub) deliverLocal(sessionID string, message []byte) {
	var slow []*Client
	for _, client := range h.clients[sessionID] {
		select {
		case client.Send <- message:
		default:
			slow = append(slow, client)
		}
	}
	for _, client := range slow {
		h.logger.Warn("Hub", "Client send buffer full, dropping connection", map[string]interface{}{"session_id": sessionID})
		h.drop(client)
	}
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for msg := range ch {
		var payload struct {
			Origin          string          `json:"origin"`
			TargetSessionID string          `json:"target_session_id"`
			Message         json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			log.Printf("Redis msg parse error: %v", err)
			continue
		}
		if payload.Origin == h.instanceID || payload.TargetSessionID == "" {
			continue
		}
		h.deliver <- deliverRequest{sessionID: payload.TargetSessionID, payload: payload.Message}
	}
}
