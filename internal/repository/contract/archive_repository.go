package contract

import (
	"context"

	"ai-deepsearch-be/internal/model"
)

type ArchiveRepository interface {
	// Create upserts on session_id, a redelivered archive event must not
	// produce a duplicate row.
	Create(ctx context.Context, archive *model.ResearchArchive) error
	FindBySessionId(ctx context.Context, sessionID string) (*model.ResearchArchive, error)
	// FindRecent lists archived runs newest first.
	FindRecent(ctx context.Context, limit int) ([]*model.ResearchArchive, error)
	// FindByQuery matches archived runs literally: text against the stored
	// query, runState against the terminal state. Either may be empty.
	FindByQuery(ctx context.Context, text, runState string, limit int) ([]*model.ArchiveMatch, error)
	// FindSimilar returns the closest archived runs by cosine distance.
	// Rows without an embedding are never returned.
	FindSimilar(ctx context.Context, embedding []float32, limit int) ([]*model.ArchiveMatch, error)
}
