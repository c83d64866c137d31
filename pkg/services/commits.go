package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/reposage-ai/reposage-engine/pkg/config"
	"github.com/reposage-ai/reposage-engine/pkg/logging"
	"github.com/reposage-ai/reposage-engine/pkg/models"
	"github.com/reposage-ai/reposage-engine/pkg/repositories"
)

// recentCommitLimit caps how far back a sync looks on the default branch.
const recentCommitLimit = 10

// syncTimeout bounds a background sync started by SyncAsync.
const syncTimeout = 5 * time.Minute

// CommitService keeps a project's stored commit history aligned with the
// repository's recent history. Sync is idempotent: commits already stored
// are never re-summarized or duplicated.
type CommitService interface {
	// Sync fetches the most recent commits, summarizes the diffs of the ones
	// not yet stored, and persists them. Returns the newly stored commits.
	Sync(ctx context.Context, projectID uuid.UUID) ([]*models.Commit, error)

	// SyncAsync runs Sync on a background context and logs any failure.
	SyncAsync(projectID uuid.UUID)

	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Commit, error)
}

type commitService struct {
	fetcher    RepoFetcher
	summarizer Summarizer
	projects   repositories.ProjectRepository
	commits    repositories.CommitRepository
	cfg        config.IndexerConfig
	logger     *zap.Logger
}

// NewCommitService creates the commit sync engine.
func NewCommitService(
	fetcher RepoFetcher,
	summarizer Summarizer,
	projects repositories.ProjectRepository,
	commits repositories.CommitRepository,
	cfg config.IndexerConfig,
	logger *zap.Logger,
) CommitService {
	return &commitService{
		fetcher:    fetcher,
		summarizer: summarizer,
		projects:   projects,
		commits:    commits,
		cfg:        cfg,
		logger:     logger.Named("commits"),
	}
}

var _ CommitService = (*commitService)(nil)

func (s *commitService) Sync(ctx context.Context, projectID uuid.UUID) ([]*models.Commit, error) {
	project, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("get project for sync: %w", err)
	}

	recent, err := s.fetcher.ListRecentCommits(ctx, project.RepoURL, project.GithubToken, recentCommitLimit)
	if err != nil {
		return nil, fmt.Errorf("list recent commits: %w", err)
	}

	existing, err := s.commits.ExistingHashes(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load existing commit hashes: %w", err)
	}

	newCommits := make([]*models.Commit, 0, len(recent))
	for _, info := range recent {
		if existing[info.Hash] {
			continue
		}
		newCommits = append(newCommits, &models.Commit{
			ProjectID:    projectID,
			CommitHash:   info.Hash,
			Message:      info.Message,
			AuthorName:   info.AuthorName,
			AuthorAvatar: info.AuthorAvatar,
			CommittedAt:  info.CommittedAt,
		})
	}
	if len(newCommits) == 0 {
		return nil, nil
	}

	s.logger.Info("Syncing new commits",
		zap.String("project_id", projectID.String()),
		zap.Int("new", len(newCommits)),
		zap.Int("recent", len(recent)))

	// Diff summaries run concurrently with a cap. A failed diff or summary
	// leaves that commit's summary empty rather than failing the sync.
	concurrency := s.cfg.DiffConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)
	for _, commit := range newCommits {
		group.Go(func() error {
			commit.Summary = s.summarizeCommit(groupCtx, project, commit.CommitHash)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	if err := s.commits.InsertBatch(ctx, newCommits); err != nil {
		return nil, fmt.Errorf("insert commits: %w", err)
	}

	return newCommits, nil
}

func (s *commitService) summarizeCommit(ctx context.Context, project *models.Project, hash string) string {
	diff, err := s.fetcher.GetCommitDiff(ctx, project.RepoURL, project.GithubToken, hash)
	if err != nil {
		s.logger.Warn("Failed to fetch commit diff",
			zap.String("commit", hash),
			zap.String("error", logging.SanitizeError(err)))
		return ""
	}

	summary, err := s.summarizer.SummarizeDiff(ctx, diff)
	if err != nil {
		s.logger.Warn("Failed to summarize commit diff",
			zap.String("commit", hash),
			zap.String("error", logging.SanitizeError(err)))
		return ""
	}
	return summary
}

func (s *commitService) SyncAsync(projectID uuid.UUID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()

		if _, err := s.Sync(ctx, projectID); err != nil {
			s.logger.Error("Background commit sync failed",
				zap.String("project_id", projectID.String()),
				zap.String("error", logging.SanitizeError(err)))
		}
	}()
}

func (s *commitService) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Commit, error) {
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		return nil, err
	}
	return s.commits.ListByProject(ctx, projectID)
}
