package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/reposage-ai/reposage-engine/pkg/llm"
	"github.com/reposage-ai/reposage-engine/pkg/models"
	"github.com/reposage-ai/reposage-engine/pkg/repositories"
)

// matchLimit is how many files are retrieved as context for an answer.
const matchLimit = 10

const answerSystemMessage = `You are a senior engineer helping a teammate understand a codebase. ` +
	`Answer using only the provided file summaries and source code. ` +
	`Reference file names when they support the answer. ` +
	`If the context does not contain the answer, say so.`

// QuestionService answers questions about an indexed repository using
// similarity search over its file embeddings.
type QuestionService interface {
	// Ask embeds the question with the project's pinned embedding model,
	// retrieves the closest files, and generates a grounded answer.
	Ask(ctx context.Context, projectID, userID uuid.UUID, question string) (*models.Question, error)

	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Question, error)
}

type questionService struct {
	projects  repositories.ProjectRepository
	files     repositories.FileEmbeddingRepository
	questions repositories.QuestionRepository
	embedder  llm.Embedder
	generator llm.Generator
	logger    *zap.Logger
}

// NewQuestionService creates the question answering service.
func NewQuestionService(
	projects repositories.ProjectRepository,
	files repositories.FileEmbeddingRepository,
	questions repositories.QuestionRepository,
	embedder llm.Embedder,
	generator llm.Generator,
	logger *zap.Logger,
) QuestionService {
	return &questionService{
		projects:  projects,
		files:     files,
		questions: questions,
		embedder:  embedder,
		generator: generator,
		logger:    logger.Named("questions"),
	}
}

var _ QuestionService = (*questionService)(nil)

func (s *questionService) Ask(ctx context.Context, projectID, userID uuid.UUID, question string) (*models.Question, error) {
	project, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}

	// The query must live in the same embedding space as the stored vectors,
	// so the project's pinned model is used, not the current default.
	vector, err := s.embedder.CreateEmbedding(ctx, question, project.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	matches, err := s.files.TopSimilar(ctx, projectID, pgvector.NewVector(vector), matchLimit)
	if err != nil {
		return nil, fmt.Errorf("search file embeddings: %w", err)
	}

	answer, err := s.generator.GenerateResponse(ctx, answerPrompt(question, matches), answerSystemMessage, 0.2)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	referenced := make([]string, 0, len(matches))
	for _, m := range matches {
		referenced = append(referenced, m.FileName)
	}

	record := &models.Question{
		ProjectID:       projectID,
		UserID:          userID,
		Question:        question,
		Answer:          answer,
		ReferencedFiles: referenced,
	}
	if err := s.questions.Insert(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("Answered question",
		zap.String("project_id", projectID.String()),
		zap.Int("matches", len(matches)))

	return record, nil
}

func (s *questionService) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Question, error) {
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		return nil, err
	}
	return s.questions.ListByProject(ctx, projectID)
}

func answerPrompt(question string, matches []*models.FileMatch) string {
	var b strings.Builder
	b.WriteString("Context from the repository:\n\n")
	for _, m := range matches {
		fmt.Fprintf(&b, "File: %s\nSummary: %s\nSource:\n%s\n\n", m.FileName, m.Summary, m.SourceCode)
	}
	fmt.Fprintf(&b, "Question: %s", question)
	return b.String()
}
