package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/reposage-ai/reposage-engine/pkg/apperrors"
	"github.com/reposage-ai/reposage-engine/pkg/config"
	"github.com/reposage-ai/reposage-engine/pkg/github"
	"github.com/reposage-ai/reposage-engine/pkg/llm"
	"github.com/reposage-ai/reposage-engine/pkg/logging"
	"github.com/reposage-ai/reposage-engine/pkg/models"
	"github.com/reposage-ai/reposage-engine/pkg/repositories"
	"github.com/reposage-ai/reposage-engine/pkg/retry"
)

// persistWriteDelay spaces out row writes during the persistence phase.
const persistWriteDelay = 50 * time.Millisecond

// IndexReport summarizes one indexing run. The pipeline is best-effort:
// FilesIndexed can be lower than FilesFetched without the run failing.
type IndexReport struct {
	FilesFetched    int
	FilesSummarized int
	FilesIndexed    int
	FilesSkipped    int
	Elapsed         time.Duration
}

// IndexerService drives summarization and embedding for every fetched file
// and persists the results.
type IndexerService interface {
	// IndexRepository runs the full pipeline for a project. A total fetch
	// failure aborts the run; any single file's failure only skips that file.
	IndexRepository(ctx context.Context, project *models.Project, token string) (*IndexReport, error)
}

type indexerService struct {
	fetcher    RepoFetcher
	summarizer Summarizer
	embedder   llm.Embedder
	files      repositories.FileEmbeddingRepository
	cfg        config.IndexerConfig
	guard      *projectGuard
	logger     *zap.Logger
}

// NewIndexerService creates the indexing orchestrator.
func NewIndexerService(
	fetcher RepoFetcher,
	summarizer Summarizer,
	embedder llm.Embedder,
	files repositories.FileEmbeddingRepository,
	cfg config.IndexerConfig,
	logger *zap.Logger,
) IndexerService {
	return &indexerService{
		fetcher:    fetcher,
		summarizer: summarizer,
		embedder:   embedder,
		files:      files,
		cfg:        cfg,
		guard:      newProjectGuard(),
		logger:     logger.Named("indexer"),
	}
}

var _ IndexerService = (*indexerService)(nil)

// summarizedFile is the output of the summarization phase.
type summarizedFile struct {
	path    string
	content string
	summary string
}

// indexedFile is a summarizedFile with its embedding attached.
type indexedFile struct {
	summarizedFile
	vector []float32
}

func (s *indexerService) IndexRepository(ctx context.Context, project *models.Project, token string) (*IndexReport, error) {
	if !s.guard.tryAcquire(project.ID) {
		return nil, apperrors.ErrIndexingInProgress
	}
	defer s.guard.release(project.ID)

	start := time.Now()

	// Phase 1: fetch. The only fatal phase; with no files there is nothing
	// to degrade to.
	files, err := s.fetcher.FetchRepositoryFiles(ctx, project.RepoURL, token)
	if err != nil {
		return nil, fmt.Errorf("fetch repository files: %w", err)
	}

	s.logger.Info("Indexing run started",
		zap.String("project_id", project.ID.String()),
		zap.String("repo", project.RepoURL),
		zap.Int("files", len(files)))

	summarized := s.summarizePhase(ctx, files)
	indexed := s.embedPhase(ctx, project, summarized)
	persisted := s.persistPhase(ctx, project, indexed)

	report := &IndexReport{
		FilesFetched:    len(files),
		FilesSummarized: len(summarized),
		FilesIndexed:    persisted,
		FilesSkipped:    len(files) - persisted,
		Elapsed:         time.Since(start),
	}

	s.logger.Info("Indexing run finished",
		zap.String("project_id", project.ID.String()),
		zap.Int("fetched", report.FilesFetched),
		zap.Int("indexed", report.FilesIndexed),
		zap.Int("skipped", report.FilesSkipped),
		zap.Duration("elapsed", report.Elapsed))

	return report, nil
}

// summarizePhase processes files strictly sequentially to respect the shared
// provider rate budget. Files whose summarization exhausts its retries are
// skipped, not fatal. The phase holds a minimum total duration as a coarse
// throttle on top of per-file pacing.
func (s *indexerService) summarizePhase(ctx context.Context, files []github.RepoFile) []summarizedFile {
	phaseStart := time.Now()
	limiter := rate.NewLimiter(rate.Every(s.cfg.InterFileDelay), 1)

	summarized := make([]summarizedFile, 0, len(files))
	for i, file := range files {
		if ctx.Err() != nil {
			s.logger.Warn("Summarization phase canceled", zap.Error(ctx.Err()))
			break
		}

		var summary string
		err := s.callWithRetry(ctx, func() error {
			var sumErr error
			summary, sumErr = s.summarizer.SummarizeFile(ctx, file.Path, file.Content)
			return sumErr
		})
		if err != nil {
			s.logger.Warn("Skipping file after summarization retries",
				zap.String("file", file.Path),
				zap.String("error", logging.SanitizeError(err)))
			continue
		}

		summarized = append(summarized, summarizedFile{
			path:    file.Path,
			content: file.Content,
			summary: summary,
		})

		s.logger.Debug("Summarized file",
			zap.String("file", file.Path),
			zap.Int("progress", i+1),
			zap.Int("total", len(files)))

		// Minimum inter-file delay even on success; complex files burn more
		// of the rate budget and wait longer.
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		if isComplexFile(file.Path, file.Content) {
			if err := sleepCtx(ctx, s.cfg.ComplexFileDelay); err != nil {
				break
			}
		}
	}

	if remaining := s.cfg.MinPhaseDuration - time.Since(phaseStart); remaining > 0 && len(files) > 0 {
		_ = sleepCtx(ctx, remaining)
	}

	return summarized
}

// embedPhase generates an embedding for each successful summary with the
// same bounded-retry policy. A summary whose embedding fails is dropped:
// a record without a matching vector is unsearchable and is never written.
func (s *indexerService) embedPhase(ctx context.Context, project *models.Project, summarized []summarizedFile) []indexedFile {
	indexed := make([]indexedFile, 0, len(summarized))
	for _, sf := range summarized {
		if ctx.Err() != nil {
			break
		}

		var vector []float32
		err := s.callWithRetry(ctx, func() error {
			var embErr error
			vector, embErr = s.embedder.CreateEmbedding(ctx, sf.summary, project.EmbeddingModel)
			return embErr
		})
		if err != nil {
			s.logger.Warn("Dropping file after embedding retries",
				zap.String("file", sf.path),
				zap.String("error", logging.SanitizeError(err)))
			continue
		}

		indexed = append(indexed, indexedFile{summarizedFile: sf, vector: vector})
	}
	return indexed
}

// persistPhase upserts one row per indexed file. A failed write is logged
// and skipped; partial persistence is acceptable.
func (s *indexerService) persistPhase(ctx context.Context, project *models.Project, indexed []indexedFile) int {
	persisted := 0
	for _, file := range indexed {
		record := &models.FileEmbedding{
			ProjectID:  project.ID,
			FileName:   file.path,
			SourceCode: file.content,
			Summary:    file.summary,
			Embedding:  pgvector.NewVector(file.vector),
		}

		if err := s.files.Upsert(ctx, record); err != nil {
			s.logger.Error("Failed to persist file embedding",
				zap.String("file", file.path),
				zap.String("error", logging.SanitizeError(err)))
			continue
		}
		persisted++

		if err := sleepCtx(ctx, persistWriteDelay); err != nil {
			break
		}
	}
	return persisted
}

// callWithRetry runs op with the pipeline's retry policy: up to MaxAttempts
// attempts; rate-limit responses back off exponentially from RateLimitDelay,
// other transient errors wait a fixed TransientDelay, permanent errors give
// up immediately.
func (s *indexerService) callWithRetry(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == s.cfg.MaxAttempts-1 {
			break
		}

		var wait time.Duration
		switch {
		case llm.IsRateLimited(err):
			wait = rateLimitBackoff(s.cfg.RateLimitDelay, attempt)
		case retry.IsRetryable(err):
			wait = s.cfg.TransientDelay
		default:
			return err
		}

		s.logger.Debug("Retrying after provider error",
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.String("error", logging.SanitizeError(err)))

		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
	return lastErr
}

// rateLimitBackoff doubles the seed delay per prior rate-limited attempt.
// The schedule is non-decreasing: seed, 2*seed, 4*seed, ...
func rateLimitBackoff(seed time.Duration, attempt int) time.Duration {
	delay := seed
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// isComplexFile classifies inputs that cost more against the provider rate
// budget: large content, test files, and structured-data files.
func isComplexFile(filePath, content string) bool {
	if len(content) > 8_000 {
		return true
	}
	base := strings.ToLower(path.Base(filePath))
	if strings.Contains(base, "test") || strings.Contains(base, "spec") {
		return true
	}
	switch strings.ToLower(path.Ext(filePath)) {
	case ".json", ".yaml", ".yml", ".xml", ".csv":
		return true
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// projectGuard is a per-project advisory lock: two indexing runs for the
// same project must not interleave writes.
type projectGuard struct {
	mu     sync.Mutex
	active map[uuid.UUID]bool
}

func newProjectGuard() *projectGuard {
	return &projectGuard{active: make(map[uuid.UUID]bool)}
}

func (g *projectGuard) tryAcquire(id uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active[id] {
		return false
	}
	g.active[id] = true
	return true
}

func (g *projectGuard) release(id uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, id)
}
