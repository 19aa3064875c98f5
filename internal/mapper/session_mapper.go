package mapper

import (
	"encoding/json"

	"gorm.io/datatypes"

	"ai-deepsearch-be/internal/model"
	"ai-deepsearch-be/pkg/research"
)

type SessionMapper struct{}

func NewSessionMapper() *SessionMapper {
	return &SessionMapper{}
}

// ToArchive flattens a finished research session into its archive row.
// The embedding is attached by the consumer once it has been computed.
func (m *SessionMapper) ToArchive(s *research.Session) (*model.ResearchArchive, error) {
	if s == nil {
		return nil, nil
	}

	stepsJson, err := json.Marshal(s.Steps)
	if err != nil {
		return nil, err
	}
	sourcesJson, err := json.Marshal(s.Sources)
	if err != nil {
		return nil, err
	}

	return &model.ResearchArchive{
		SessionId:   s.ID,
		Query:       s.Query,
		FinalReport: s.FinalReport,
		RunState:    s.RunState,
		Steps:       datatypes.JSON(stepsJson),
		Sources:     datatypes.JSON(sourcesJson),
	}, nil
}
