package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reposage-ai/reposage-engine/pkg/github"
	"github.com/reposage-ai/reposage-engine/pkg/logging"
	"github.com/reposage-ai/reposage-engine/pkg/models"
	"github.com/reposage-ai/reposage-engine/pkg/repositories"
)

// CreateProjectInput carries everything needed to register and index a
// repository.
type CreateProjectInput struct {
	UserID      uuid.UUID
	UserEmail   string
	Name        string
	RepoURL     string
	GithubToken string
}

// CreateProjectResult pairs the stored project with its indexing outcome.
type CreateProjectResult struct {
	Project *models.Project
	Report  *IndexReport
}

// ProjectService owns the project lifecycle: creation with full indexing,
// retrieval, and archival.
type ProjectService interface {
	// Create validates the repository, checks the user's credit quota, then
	// indexes the repository and syncs its recent commits. The quota gate
	// runs before any project row or file record is written.
	Create(ctx context.Context, input CreateProjectInput) (*CreateProjectResult, error)

	Get(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Project, error)
	Archive(ctx context.Context, id uuid.UUID) error
}

type projectService struct {
	projects       repositories.ProjectRepository
	users          repositories.UserRepository
	credits        CreditService
	indexer        IndexerService
	commits        CommitService
	embeddingModel string
	logger         *zap.Logger
}

// NewProjectService creates the project lifecycle service. embeddingModel is
// pinned onto every project created through it.
func NewProjectService(
	projects repositories.ProjectRepository,
	users repositories.UserRepository,
	credits CreditService,
	indexer IndexerService,
	commits CommitService,
	embeddingModel string,
	logger *zap.Logger,
) ProjectService {
	return &projectService{
		projects:       projects,
		users:          users,
		credits:        credits,
		indexer:        indexer,
		commits:        commits,
		embeddingModel: embeddingModel,
		logger:         logger.Named("projects"),
	}
}

var _ ProjectService = (*projectService)(nil)

func (s *projectService) Create(ctx context.Context, input CreateProjectInput) (*CreateProjectResult, error) {
	if _, _, err := github.ParseRepoURL(input.RepoURL); err != nil {
		return nil, err
	}

	user := &models.User{ID: input.UserID, Email: input.UserEmail}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("provision user: %w", err)
	}

	quoted, err := s.credits.QuoteRepository(ctx, input.RepoURL, input.GithubToken)
	if err != nil {
		return nil, err
	}
	if err := s.credits.Authorize(ctx, input.UserID, quoted); err != nil {
		return nil, err
	}

	project := &models.Project{
		UserID:         input.UserID,
		Name:           s.projectName(input),
		RepoURL:        input.RepoURL,
		GithubToken:    input.GithubToken,
		EmbeddingModel: s.embeddingModel,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, err
	}

	report, err := s.indexer.IndexRepository(ctx, project, input.GithubToken)
	if err != nil {
		// The project row stays; a later re-index can recover it. The caller
		// sees the failure.
		s.logger.Error("Indexing failed for new project",
			zap.String("project_id", project.ID.String()),
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("index repository: %w", err)
	}

	if _, err := s.commits.Sync(ctx, project.ID); err != nil {
		// Commit history is a secondary surface; its failure never undoes a
		// successful indexing run.
		s.logger.Warn("Commit sync failed for new project",
			zap.String("project_id", project.ID.String()),
			zap.String("error", logging.SanitizeError(err)))
	}

	if err := s.credits.Settle(ctx, input.UserID, report.FilesIndexed, quoted); err != nil {
		s.logger.Error("Failed to settle credits",
			zap.String("user_id", input.UserID.String()),
			zap.String("error", logging.SanitizeError(err)))
	}

	return &CreateProjectResult{Project: project, Report: report}, nil
}

// projectName falls back to the repository name when the caller omits one.
func (s *projectService) projectName(input CreateProjectInput) string {
	if name := strings.TrimSpace(input.Name); name != "" {
		return name
	}
	_, repo, err := github.ParseRepoURL(input.RepoURL)
	if err != nil {
		return input.RepoURL
	}
	return repo
}

func (s *projectService) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return s.projects.Get(ctx, id)
}

func (s *projectService) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Project, error) {
	return s.projects.ListByUser(ctx, userID)
}

func (s *projectService) Archive(ctx context.Context, id uuid.UUID) error {
	return s.projects.Archive(ctx, id)
}
