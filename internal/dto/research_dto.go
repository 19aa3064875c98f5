package dto

import "time"

type StartResearchRequest struct {
	Query string `json:"query" validate:"required,min=3"`
}

type DeliverReportRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ArchiveMatchResponse is one archived run scored against the search
// query. Similarity is 1.0 for an identical embedding.
type ArchiveMatchResponse struct {
	SessionId  string    `json:"session_id"`
	Query      string    `json:"query"`
	RunState   string    `json:"run_state"`
	Similarity float64   `json:"similarity"`
	CreatedAt  time.Time `json:"created_at"`
}

type ArchiveEntryResponse struct {
	SessionId string    `json:"session_id"`
	Query     string    `json:"query"`
	RunState  string    `json:"run_state"`
	CreatedAt time.Time `json:"created_at"`
}
