package dto

type StreamTicketRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

type StreamTicketResponse struct {
	Ticket    string `json:"ticket"`
	ExpiresIn int    `json:"expires_in"` // seconds
}
