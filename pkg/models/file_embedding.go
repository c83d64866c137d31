package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// FileEmbedding is the knowledge record for one repository file: its source,
// the generated summary, and the summary's embedding vector. The summary and
// vector are always written together; a row never holds a vector computed
// from a different summary.
type FileEmbedding struct {
	ID         uuid.UUID       `json:"id"`
	ProjectID  uuid.UUID       `json:"project_id"`
	FileName   string          `json:"file_name"`
	SourceCode string          `json:"source_code"`
	Summary    string          `json:"summary"`
	Embedding  pgvector.Vector `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileMatch is a FileEmbedding scored against a query vector.
type FileMatch struct {
	FileEmbedding
	Similarity float64 `json:"similarity"`
}
