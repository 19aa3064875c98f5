package integration

import (
	"context"
	"log"
	"os"
	"testing"

	"ai-deepsearch-be/internal/model"
	"ai-deepsearch-be/internal/repository/implementation"
	"ai-deepsearch-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func TestGormArchiveRoundTrip(t *testing.T) {
	// Load .env from root
	err := godotenv.Load("../../.env")
	if err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}

	// Extensions and schema, mirroring cmd/migrate.
	assert.NoError(t, gormDB.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto;`).Error)
	assert.NoError(t, gormDB.Exec(`CREATE EXTENSION IF NOT EXISTS vector;`).Error)
	assert.NoError(t, gormDB.AutoMigrate(&model.ResearchArchive{}))

	repo := implementation.NewArchiveRepository(gormDB)
	ctx := context.Background()

	sessionID := "it-" + uuid.NewString()
	t.Cleanup(func() {
		gormDB.Exec(`DELETE FROM research_archives WHERE session_id = ?`, sessionID)
	})

	values := make([]float32, 768)
	values[0] = 1 // unit vector pointing along the first axis
	vec := pgvector.NewVector(values)

	archive := &model.ResearchArchive{
		SessionId:   sessionID,
		Query:       "integration test query",
		FinalReport: "report v1",
		RunState:    "completed",
		Steps:       datatypes.JSON([]byte(`[]`)),
		Sources:     datatypes.JSON([]byte(`[]`)),
		Embedding:   &vec,
	}
	assert.NoError(t, repo.Create(ctx, archive))

	t.Run("Upsert Replaces Instead Of Duplicating", func(t *testing.T) {
		updated := &model.ResearchArchive{
			SessionId:   sessionID,
			Query:       "integration test query",
			FinalReport: "report v2",
			RunState:    "completed",
			Steps:       datatypes.JSON([]byte(`[]`)),
			Sources:     datatypes.JSON([]byte(`[]`)),
			Embedding:   &vec,
		}
		assert.NoError(t, repo.Create(ctx, updated))

		var count int64
		gormDB.Table("research_archives").Where("session_id = ?", sessionID).Count(&count)
		assert.Equal(t, int64(1), count)

		found, err := repo.FindBySessionId(ctx, sessionID)
		assert.NoError(t, err)
		if assert.NotNil(t, found) {
			assert.Equal(t, "report v2", found.FinalReport)
		}
	})

	t.Run("Find Similar Ranks By Cosine Distance", func(t *testing.T) {
		matches, err := repo.FindSimilar(ctx, values, 5)
		assert.NoError(t, err)

		var found bool
		for _, m := range matches {
			if m.SessionId == sessionID {
				found = true
				// Identical vectors give similarity 1.0.
				assert.InDelta(t, 1.0, m.Similarity, 0.01)
			}
		}
		assert.True(t, found, "archived run should come back for its own embedding")
	})

	t.Run("Find By Query Matches Text And State", func(t *testing.T) {
		matches, err := repo.FindByQuery(ctx, "integration test", "completed", 5)
		assert.NoError(t, err)
		var found bool
		for _, m := range matches {
			if m.SessionId == sessionID {
				found = true
				assert.Zero(t, m.Similarity)
			}
		}
		assert.True(t, found, "literal lookup should match the stored query text")

		none, err := repo.FindByQuery(ctx, "integration test", "stopped", 5)
		assert.NoError(t, err)
		for _, m := range none {
			assert.NotEqual(t, sessionID, m.SessionId, "state filter should exclude completed runs")
		}
	})

	t.Run("Find Recent Lists Archived Runs", func(t *testing.T) {
		recent, err := repo.FindRecent(ctx, 10)
		assert.NoError(t, err)
		var found bool
		for _, e := range recent {
			if e.SessionId == sessionID {
				found = true
			}
		}
		assert.True(t, found, "fresh archive entry should appear in the recent listing")
	})

	t.Run("Missing Session Returns Nil", func(t *testing.T) {
		found, err := repo.FindBySessionId(ctx, "it-nonexistent")
		assert.NoError(t, err)
		assert.Nil(t, found)
	})
}
