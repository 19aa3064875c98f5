package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type ResearchArchive struct {
	Id          uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId   string           `gorm:"type:varchar(64);not null;uniqueIndex"`
	Query       string           `gorm:"type:text;not null"`
	FinalReport string           `gorm:"type:text"`
	RunState    string           `gorm:"type:varchar(16);not null"`
	Steps       datatypes.JSON   `gorm:"type:jsonb"`
	Sources     datatypes.JSON   `gorm:"type:jsonb"`
	Embedding   *pgvector.Vector `gorm:"type:vector(768)"` // nomic-embed-text and text-embedding-004 use 768 dimensions
	CreatedAt   time.Time        `gorm:"autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"autoUpdateTime"`
}

func (ResearchArchive) TableName() string {
	return "research_archives"
}

// ArchiveMatch is an archive row scored by vector similarity to a query
// embedding. Similarity is 1 - cosine distance, so 1.0 means identical.
type ArchiveMatch struct {
	ResearchArchive
	Similarity float64
}
