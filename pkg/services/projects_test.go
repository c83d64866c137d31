package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reposage-ai/reposage-engine/pkg/apperrors"
	"github.com/reposage-ai/reposage-engine/pkg/github"
	"github.com/reposage-ai/reposage-engine/pkg/llm"
)

type projectFixture struct {
	fetcher  *stubFetcher
	projects *memProjectRepo
	users    *memUserRepo
	files    *memFileRepo
	commits  *memCommitRepo
	svc      ProjectService
}

func newProjectFixture(t *testing.T) *projectFixture {
	t.Helper()

	fetcher := &stubFetcher{diffs: map[string]string{}}
	projects := newMemProjectRepo()
	users := newMemUserRepo()
	files := newMemFileRepo()
	commits := newMemCommitRepo()
	logger := zap.NewNop()

	creditSvc := NewCreditService(fetcher, users, logger)
	indexerSvc := NewIndexerService(fetcher, &stubSummarizer{}, &llm.MockEmbedder{}, files, fastIndexerConfig(), logger)
	commitSvc := NewCommitService(fetcher, &stubSummarizer{}, projects, commits, fastIndexerConfig(), logger)
	svc := NewProjectService(projects, users, creditSvc, indexerSvc, commitSvc, "text-embedding-3-small", logger)

	return &projectFixture{
		fetcher:  fetcher,
		projects: projects,
		users:    users,
		files:    files,
		commits:  commits,
		svc:      svc,
	}
}

func TestCreateIndexesRepositoryAndDebitsActualCount(t *testing.T) {
	f := newProjectFixture(t)
	userID := uuid.New()
	f.users.seed(userID, 10)
	f.fetcher.files = threeFiles()
	f.fetcher.count = 3
	f.fetcher.commits = []github.CommitInfo{
		commitInfo("a1", time.Hour),
		commitInfo("b2", 2*time.Hour),
	}
	f.fetcher.diffs["a1"] = "diff a1"
	f.fetcher.diffs["b2"] = "diff b2"

	result, err := f.svc.Create(context.Background(), CreateProjectInput{
		UserID:  userID,
		RepoURL: "https://github.com/acme/engine",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if result.Report.FilesIndexed != 3 {
		t.Errorf("FilesIndexed = %d, want 3", result.Report.FilesIndexed)
	}
	if got := f.users.credits(userID); got != 7 {
		t.Errorf("balance = %d, want 10 - 3 = 7", got)
	}
	if result.Project.Name != "engine" {
		t.Errorf("project name = %q, want repo name fallback", result.Project.Name)
	}
	if result.Project.EmbeddingModel != "text-embedding-3-small" {
		t.Errorf("embedding model = %q, want pinned default", result.Project.EmbeddingModel)
	}
	if len(f.files.fileNames()) != 3 {
		t.Errorf("persisted files = %v, want 3", f.files.fileNames())
	}
	if f.commits.size() != 2 {
		t.Errorf("stored commits = %d, want 2", f.commits.size())
	}
}

func TestCreateRejectsInsufficientCreditsBeforeAnyWork(t *testing.T) {
	f := newProjectFixture(t)
	userID := uuid.New()
	f.users.seed(userID, 2)
	f.fetcher.files = threeFiles()
	f.fetcher.count = 3

	_, err := f.svc.Create(context.Background(), CreateProjectInput{
		UserID:  userID,
		RepoURL: "https://github.com/acme/engine",
	})
	if !errors.Is(err, apperrors.ErrInsufficientCredits) {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}

	if got := f.users.credits(userID); got != 2 {
		t.Errorf("balance = %d, want unchanged 2", got)
	}
	if f.projects.size() != 0 {
		t.Error("no project row may exist after a rejected quote")
	}
	if len(f.files.fileNames()) != 0 {
		t.Error("no file records may exist after a rejected quote")
	}
	if f.fetcher.fetchCalls != 0 {
		t.Error("file content must not be downloaded before the quota gate passes")
	}
}

func TestCreateDebitsOnlyIndexedFiles(t *testing.T) {
	f := newProjectFixture(t)
	userID := uuid.New()
	f.users.seed(userID, 10)
	f.fetcher.files = threeFiles()
	f.fetcher.count = 3
	// One file never persists.
	f.files.upsertErr = func(fileName string) error {
		if fileName == "README.md" {
			return errors.New("write failed")
		}
		return nil
	}

	result, err := f.svc.Create(context.Background(), CreateProjectInput{
		UserID:  userID,
		RepoURL: "https://github.com/acme/engine",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if result.Report.FilesIndexed != 2 {
		t.Errorf("FilesIndexed = %d, want 2", result.Report.FilesIndexed)
	}
	if got := f.users.credits(userID); got != 8 {
		t.Errorf("balance = %d, want 10 - 2 = 8 (only persisted files are charged)", got)
	}
}

func TestCreateRejectsInvalidRepoURL(t *testing.T) {
	f := newProjectFixture(t)

	_, err := f.svc.Create(context.Background(), CreateProjectInput{
		UserID:  uuid.New(),
		RepoURL: "https://github.com/just-an-owner",
	})
	if !errors.Is(err, apperrors.ErrInvalidRepoURL) {
		t.Fatalf("err = %v, want ErrInvalidRepoURL", err)
	}
}

func TestCreatePropagatesRateLimitFromQuote(t *testing.T) {
	f := newProjectFixture(t)
	userID := uuid.New()
	f.users.seed(userID, 10)
	f.fetcher.countErr = apperrors.ErrRateLimited

	_, err := f.svc.Create(context.Background(), CreateProjectInput{
		UserID:  userID,
		RepoURL: "https://github.com/acme/engine",
	})
	if !errors.Is(err, apperrors.ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
}

func TestCreateProvisionsNewUserWithDefaultCredits(t *testing.T) {
	f := newProjectFixture(t)
	userID := uuid.New()
	f.fetcher.files = threeFiles()
	f.fetcher.count = 3

	_, err := f.svc.Create(context.Background(), CreateProjectInput{
		UserID:    userID,
		UserEmail: "dev@acme.test",
		RepoURL:   "https://github.com/acme/engine",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	// A first-time user starts from the default grant, minus this run.
	user, err := f.users.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("user was not provisioned: %v", err)
	}
	if user.Credits >= 150 || user.Credits <= 0 {
		t.Errorf("credits = %d, want the default grant minus the indexed files", user.Credits)
	}
}

func TestArchiveHidesProjectFromGet(t *testing.T) {
	f := newProjectFixture(t)
	project := testProject()
	if err := f.projects.Create(context.Background(), project); err != nil {
		t.Fatalf("create project: %v", err)
	}

	if err := f.svc.Archive(context.Background(), project.ID); err != nil {
		t.Fatalf("Archive returned error: %v", err)
	}
	if _, err := f.svc.Get(context.Background(), project.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("Get after archive err = %v, want ErrNotFound", err)
	}
	if err := f.svc.Archive(context.Background(), project.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("second Archive err = %v, want ErrNotFound", err)
	}
}
