package service

import (
	"context"
	"errors"

	"ai-deepsearch-be/internal/model"
	"ai-deepsearch-be/internal/repository/contract"
	"ai-deepsearch-be/pkg/embedding"
	"ai-deepsearch-be/pkg/research"
	"ai-deepsearch-be/pkg/search"
)

// ErrArchiveDisabled is returned for archive operations when no database
// was configured.
var ErrArchiveDisabled = errors.New("research archive is not configured")

type IResearchService interface {
	Start(query string) (*research.Session, error)
	Get(sessionID string) (*research.Session, error)
	Stop(sessionID string) (*research.Session, error)
	Report(sessionID string) (string, error)
	Deliver(sessionID, email string) error
	SearchArchive(ctx context.Context, query string, limit int) ([]*model.ArchiveMatch, error)
	RecentArchive(ctx context.Context, limit int) ([]*model.ResearchArchive, error)
}

type researchService struct {
	engine      *research.Engine
	delivery    IDeliveryService
	archiveRepo contract.ArchiveRepository // nil when no database is configured
	embedder    embedding.EmbeddingProvider
}

func NewResearchService(
	engine *research.Engine,
	delivery IDeliveryService,
	archiveRepo contract.ArchiveRepository,
	embedder embedding.EmbeddingProvider,
) IResearchService {
	return &researchService{
		engine:      engine,
		delivery:    delivery,
		archiveRepo: archiveRepo,
		embedder:    embedder,
	}
}

func (s *researchService) Start(query string) (*research.Session, error) {
	return s.engine.Start(query)
}

func (s *researchService) Get(sessionID string) (*research.Session, error) {
	return s.engine.Get(sessionID)
}

func (s *researchService) Stop(sessionID string) (*research.Session, error) {
	return s.engine.Stop(sessionID)
}

func (s *researchService) Report(sessionID string) (string, error) {
	sess, err := s.engine.Get(sessionID)
	if err != nil {
		return "", err
	}
	return research.FormatReport(sess), nil
}

func (s *researchService) Deliver(sessionID, email string) error {
	return s.delivery.Request(sessionID, email)
}

// SearchArchive routes a query through one of three lookups: a /session:
// filter fetches a single run, literal-looking queries (or a /state:
// filter) match against the stored query text, and everything else goes
// through embedding similarity.
func (s *researchService) SearchArchive(ctx context.Context, query string, limit int) ([]*model.ArchiveMatch, error) {
	if s.archiveRepo == nil {
		return nil, ErrArchiveDisabled
	}

	filters := search.ParseArchiveQuery(query)

	if filters.SessionID != "" {
		archived, err := s.archiveRepo.FindBySessionId(ctx, filters.SessionID)
		if err != nil {
			return nil, err
		}
		if archived == nil {
			return []*model.ArchiveMatch{}, nil
		}
		return []*model.ArchiveMatch{{ResearchArchive: *archived}}, nil
	}

	if filters.RunState != "" || s.embedder == nil || search.DetermineStrategy(filters.SearchQuery) == search.StrategyLiteral {
		return s.archiveRepo.FindByQuery(ctx, filters.SearchQuery, filters.RunState, limit)
	}

	res, err := s.embedder.Generate(filters.SearchQuery, embedding.TaskQuery)
	if err != nil {
		return nil, err
	}
	return s.archiveRepo.FindSimilar(ctx, res.Embedding.Values, limit)
}

func (s *researchService) RecentArchive(ctx context.Context, limit int) ([]*model.ResearchArchive, error) {
	if s.archiveRepo == nil {
		return nil, ErrArchiveDisabled
	}
	return s.archiveRepo.FindRecent(ctx, limit)
}
