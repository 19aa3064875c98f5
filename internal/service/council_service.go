package service

import (
	"ai-deepsearch-be/pkg/council"
)

type ICouncilService interface {
	Backends() []council.Backend
	Start(query string, backendIDs []string) (*council.Session, error)
	Get(sessionID string) (*council.Session, error)
	Stop(sessionID string) (*council.Session, error)
	Vote(sessionID, backendID string) (*council.Session, error)
}

type councilService struct {
	engine *council.Engine
}

func NewCouncilService(engine *council.Engine) ICouncilService {
	return &councilService{
		engine: engine,
	}
}

func (s *councilService) Backends() []council.Backend {
	return s.engine.Backends()
}

func (s *councilService) Start(query string, backendIDs []string) (*council.Session, error) {
	return s.engine.Start(query, backendIDs)
}

func (s *councilService) Get(sessionID string) (*council.Session, error) {
	return s.engine.Get(sessionID)
}

func (s *councilService) Stop(sessionID string) (*council.Session, error) {
	return s.engine.Stop(sessionID)
}

func (s *councilService) Vote(sessionID, backendID string) (*council.Session, error) {
	return s.engine.Vote(sessionID, backendID)
}
