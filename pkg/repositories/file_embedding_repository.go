package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/reposage-ai/reposage-engine/pkg/database"
	"github.com/reposage-ai/reposage-engine/pkg/models"
)

// FileEmbeddingRepository provides data access for file knowledge records.
type FileEmbeddingRepository interface {
	// Upsert writes source, summary, and embedding as one logical operation,
	// keyed by (project_id, file_name). Re-indexing a project replaces rows
	// rather than duplicating them; the summary and its vector are never
	// written separately.
	Upsert(ctx context.Context, record *models.FileEmbedding) error

	CountByProject(ctx context.Context, projectID uuid.UUID) (int, error)

	// TopSimilar returns the records closest to the query vector by cosine
	// distance, best match first.
	TopSimilar(ctx context.Context, projectID uuid.UUID, query pgvector.Vector, limit int) ([]*models.FileMatch, error)
}

type fileEmbeddingRepository struct {
	db *database.DB
}

// NewFileEmbeddingRepository creates a new FileEmbeddingRepository.
func NewFileEmbeddingRepository(db *database.DB) FileEmbeddingRepository {
	return &fileEmbeddingRepository{db: db}
}

var _ FileEmbeddingRepository = (*fileEmbeddingRepository)(nil)

func (r *fileEmbeddingRepository) Upsert(ctx context.Context, record *models.FileEmbedding) error {
	now := time.Now()
	record.UpdatedAt = now
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
		record.CreatedAt = now
	}

	query := `
		INSERT INTO file_embeddings (
			id, project_id, file_name, source_code, summary, embedding, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (project_id, file_name)
		DO UPDATE SET
			source_code = EXCLUDED.source_code,
			summary = EXCLUDED.summary,
			embedding = EXCLUDED.embedding,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		record.ID, record.ProjectID, record.FileName, record.SourceCode,
		record.Summary, record.Embedding, record.CreatedAt, record.UpdatedAt,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert file embedding: %w", err)
	}

	return nil
}

func (r *fileEmbeddingRepository) CountByProject(ctx context.Context, projectID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM file_embeddings WHERE project_id = $1`, projectID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count file embeddings: %w", err)
	}
	return count, nil
}

func (r *fileEmbeddingRepository) TopSimilar(ctx context.Context, projectID uuid.UUID, query pgvector.Vector, limit int) ([]*models.FileMatch, error) {
	sql := `
		SELECT id, project_id, file_name, source_code, summary, created_at, updated_at,
		       1 - (embedding <=> $2) AS similarity
		FROM file_embeddings
		WHERE project_id = $1
		ORDER BY embedding <=> $2
		LIMIT $3`

	rows, err := r.db.Query(ctx, sql, projectID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search file embeddings: %w", err)
	}
	defer rows.Close()

	var matches []*models.FileMatch
	for rows.Next() {
		var m models.FileMatch
		err := rows.Scan(
			&m.ID, &m.ProjectID, &m.FileName, &m.SourceCode, &m.Summary,
			&m.CreatedAt, &m.UpdatedAt, &m.Similarity,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file match: %w", err)
		}
		matches = append(matches, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file matches: %w", err)
	}

	return matches, nil
}
