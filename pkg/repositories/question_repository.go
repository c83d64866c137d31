package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/reposage-ai/reposage-engine/pkg/database"
	"github.com/reposage-ai/reposage-engine/pkg/models"
)

// QuestionRepository provides data access for saved question/answer pairs.
type QuestionRepository interface {
	Insert(ctx context.Context, question *models.Question) error
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Question, error)
}

type questionRepository struct {
	db *database.DB
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(db *database.DB) QuestionRepository {
	return &questionRepository{db: db}
}

var _ QuestionRepository = (*questionRepository)(nil)

func (r *questionRepository) Insert(ctx context.Context, question *models.Question) error {
	if question.ID == uuid.Nil {
		question.ID = uuid.New()
	}
	question.CreatedAt = time.Now()

	query := `
		INSERT INTO questions (id, project_id, user_id, question, answer, referenced_files, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		question.ID, question.ProjectID, question.UserID, question.Question,
		question.Answer, question.ReferencedFiles, question.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert question: %w", err)
	}

	return nil
}

func (r *questionRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Question, error) {
	query := `
		SELECT id, project_id, user_id, question, answer, referenced_files, created_at
		FROM questions
		WHERE project_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	var questions []*models.Question
	for rows.Next() {
		var q models.Question
		err := rows.Scan(
			&q.ID, &q.ProjectID, &q.UserID, &q.Question, &q.Answer,
			&q.ReferencedFiles, &q.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, &q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read questions: %w", err)
	}

	return questions, nil
}
