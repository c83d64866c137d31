package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/reposage-ai/reposage-engine/pkg/database"
	"github.com/reposage-ai/reposage-engine/pkg/models"
)

// CommitRepository provides data access for commit records.
type CommitRepository interface {
	// ExistingHashes returns the set of commit hashes already stored for a
	// project. The sync engine diffs against this set before summarizing.
	ExistingHashes(ctx context.Context, projectID uuid.UUID) (map[string]bool, error)

	// InsertBatch bulk-inserts new commit records. Hashes that raced in
	// through a concurrent sync are skipped, never duplicated.
	InsertBatch(ctx context.Context, commits []*models.Commit) error

	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Commit, error)
}

type commitRepository struct {
	db *database.DB
}

// NewCommitRepository creates a new CommitRepository.
func NewCommitRepository(db *database.DB) CommitRepository {
	return &commitRepository{db: db}
}

var _ CommitRepository = (*commitRepository)(nil)

func (r *commitRepository) ExistingHashes(ctx context.Context, projectID uuid.UUID) (map[string]bool, error) {
	rows, err := r.db.Query(ctx,
		`SELECT commit_hash FROM commits WHERE project_id = $1`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list commit hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]bool)
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("failed to scan commit hash: %w", err)
		}
		hashes[hash] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read commit hashes: %w", err)
	}

	return hashes, nil
}

func (r *commitRepository) InsertBatch(ctx context.Context, commits []*models.Commit) error {
	if len(commits) == 0 {
		return nil
	}

	now := time.Now()
	batch := &pgx.Batch{}
	for _, commit := range commits {
		if commit.ID == uuid.Nil {
			commit.ID = uuid.New()
		}
		commit.CreatedAt = now

		batch.Queue(`
			INSERT INTO commits (
				id, project_id, commit_hash, message, author_name, author_avatar,
				committed_at, summary, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (project_id, commit_hash) DO NOTHING`,
			commit.ID, commit.ProjectID, commit.CommitHash, commit.Message,
			commit.AuthorName, commit.AuthorAvatar, commit.CommittedAt,
			commit.Summary, commit.CreatedAt,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range commits {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert commits: %w", err)
		}
	}

	return nil
}

func (r *commitRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Commit, error) {
	query := `
		SELECT id, project_id, commit_hash, message, author_name, author_avatar,
		       committed_at, summary, created_at
		FROM commits
		WHERE project_id = $1
		ORDER BY committed_at DESC`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list commits: %w", err)
	}
	defer rows.Close()

	var commits []*models.Commit
	for rows.Next() {
		var c models.Commit
		err := rows.Scan(
			&c.ID, &c.ProjectID, &c.CommitHash, &c.Message, &c.AuthorName,
			&c.AuthorAvatar, &c.CommittedAt, &c.Summary, &c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan commit: %w", err)
		}
		commits = append(commits, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read commits: %w", err)
	}

	return commits, nil
}
