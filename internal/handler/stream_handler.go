package handler

import (
	"time"

	"ai-deepsearch-be/internal/config"
	"ai-deepsearch-be/internal/dto"
	"ai-deepsearch-be/internal/pkg/logger"
	"ai-deepsearch-be/internal/pkg/serverutils"
	internalWS "ai-deepsearch-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type StreamHandler struct {
	hub    *internalWS.Hub
	cfg    config.StreamConfig
	logger logger.ILogger
}

func NewStreamHandler(hub *internalWS.Hub, cfg config.StreamConfig, log logger.ILogger) *StreamHandler {
	return &StreamHandler{
		hub:    hub,
		cfg:    cfg,
		logger: log,
	}
}

// IssueTicket hands out a short-lived token bound to one session. The
// websocket endpoint accepts only these tickets, never raw credentials,
// because browsers cannot attach headers to an upgrade request.
func (h *StreamHandler) IssueTicket(c *fiber.Ctx) error {
	var req dto.StreamTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return err
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	ttl := time.Duration(h.cfg.TicketTTLMinutes) * time.Minute
	ticket, err := serverutils.IssueStreamTicket(h.cfg.TicketSecret, req.SessionID, ttl)
	if err != nil {
		return err
	}

	return c.JSON(serverutils.SuccessResponse("Success issue stream ticket", dto.StreamTicketResponse{
		Ticket:    ticket,
		ExpiresIn: int(ttl.Seconds()),
	}))
}

// ServeWs upgrades the connection and pins it to the session named in the
// ticket.
func (h *StreamHandler) ServeWs(c *fiber.Ctx) error {
	// Priority 1: Query Param (Browser standard)
	ticketStr := c.Query("ticket")

	// Priority 2: Authorization Header (Tooling/Non-browser standard)
	if ticketStr == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			ticketStr = authHeader[7:]
		}
	}

	if ticketStr == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing ticket (Query 'ticket' or Header 'Authorization')"})
	}

	claims, err := serverutils.ParseStreamTicket(h.cfg.TicketSecret, ticketStr)
	if err != nil {
		h.logger.Warn("StreamHandler", "Invalid ticket in WS handshake", map[string]interface{}{"error": err.Error()})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid ticket"})
	}

	sessionID := claims.SessionID

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("StreamHandler", "Starting WebSocket session", map[string]interface{}{"session_id": sessionID})
			internalWS.ServeWs(h.hub, conn, sessionID)
			h.logger.Info("StreamHandler", "WebSocket session ended", map[string]interface{}{"session_id": sessionID})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

// RegisterRoutes registers the stream routes.
func (h *StreamHandler) RegisterRoutes(router fiber.Router) {
	stream := router.Group("/stream/v1")
	stream.Post("/ticket", h.IssueTicket)
	stream.Get("/ws", h.ServeWs)
}
