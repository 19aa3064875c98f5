package implementation

import (
	"context"
	"errors"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ai-deepsearch-be/internal/model"
	"ai-deepsearch-be/internal/repository/contract"
	"ai-deepsearch-be/internal/repository/scope"
)

type ArchiveRepositoryImpl struct {
	db *gorm.DB
}

func NewArchiveRepository(db *gorm.DB) contract.ArchiveRepository {
	return &ArchiveRepositoryImpl{db: db}
}

func (r *ArchiveRepositoryImpl) Create(ctx context.Context, archive *model.ResearchArchive) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"query", "final_report", "run_state", "steps", "sources", "embedding", "updated_at",
			}),
		}).
		Create(archive).Error
}

func (r *ArchiveRepositoryImpl) FindBySessionId(ctx context.Context, sessionID string) (*model.ResearchArchive, error) {
	var m model.ResearchArchive
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *ArchiveRepositoryImpl) FindRecent(ctx context.Context, limit int) ([]*model.ResearchArchive, error) {
	var results []*model.ResearchArchive
	err := r.db.WithContext(ctx).
		Scopes(scope.OrderByCreatedDesc, scope.LimitTo(limit)).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *ArchiveRepositoryImpl) FindByQuery(ctx context.Context, text, runState string, limit int) ([]*model.ArchiveMatch, error) {
	if limit <= 0 {
		limit = 5
	}

	q := r.db.WithContext(ctx).Table("research_archives")
	if text != "" {
		q = q.Where("query ILIKE ?", "%"+text+"%")
	}
	if runState != "" {
		q = q.Where("run_state = ?", runState)
	}

	// Literal matches carry no similarity score, Similarity stays zero.
	var results []*model.ArchiveMatch
	err := q.Order("created_at DESC").Limit(limit).Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *ArchiveRepositoryImpl) FindSimilar(ctx context.Context, embedding []float32, limit int) ([]*model.ArchiveMatch, error) {
	if limit <= 0 {
		limit = 5
	}
	queryVector := pgvector.NewVector(embedding)

	// Cosine distance in pgvector is 1 - cosine_similarity, so the
	// select computes similarity while the order uses raw distance.
	var results []*model.ArchiveMatch
	err := r.db.WithContext(ctx).
		Table("research_archives").
		Select("research_archives.*, 1 - (embedding <=> ?) as similarity", queryVector).
		Where("embedding IS NOT NULL").
		Order(gorm.Expr("embedding <=> ?", queryVector)).
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
