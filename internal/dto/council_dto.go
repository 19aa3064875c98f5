package dto

type StartCouncilRequest struct {
	Query      string   `json:"query" validate:"required,min=3"`
	BackendIDs []string `json:"backend_ids" validate:"required,min=2"`
}

type VoteRequest struct {
	BackendID string `json:"backend_id" validate:"required"`
}

type BackendResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Kind        string `json:"kind"`
	Model       string `json:"model"`
}
