package services

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/reposage-ai/reposage-engine/pkg/apperrors"
	"github.com/reposage-ai/reposage-engine/pkg/github"
	"github.com/reposage-ai/reposage-engine/pkg/models"
	"github.com/reposage-ai/reposage-engine/pkg/repositories"
)

// stubFetcher is a configurable RepoFetcher for tests.
type stubFetcher struct {
	mu sync.Mutex

	files    []github.RepoFile
	fetchErr error
	// fetchFunc, if set, overrides the static files/fetchErr pair.
	fetchFunc func(ctx context.Context) ([]github.RepoFile, error)

	count    int
	countErr error

	commits []github.CommitInfo
	listErr error

	diffs   map[string]string
	diffErr error

	fetchCalls int
	diffCalls  []string
}

var _ RepoFetcher = (*stubFetcher)(nil)

func (f *stubFetcher) FetchRepositoryFiles(ctx context.Context, repoURL, token string) ([]github.RepoFile, error) {
	f.mu.Lock()
	f.fetchCalls++
	f.mu.Unlock()
	if f.fetchFunc != nil {
		return f.fetchFunc(ctx)
	}
	return f.files, f.fetchErr
}

func (f *stubFetcher) CountRepositoryFiles(ctx context.Context, repoURL, token string) (int, error) {
	return f.count, f.countErr
}

func (f *stubFetcher) ListRecentCommits(ctx context.Context, repoURL, token string, limit int) ([]github.CommitInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	commits := f.commits
	if len(commits) > limit {
		commits = commits[:limit]
	}
	return commits, nil
}

func (f *stubFetcher) GetCommitDiff(ctx context.Context, repoURL, token, commitHash string) (string, error) {
	f.mu.Lock()
	f.diffCalls = append(f.diffCalls, commitHash)
	f.mu.Unlock()
	if f.diffErr != nil {
		return "", f.diffErr
	}
	return f.diffs[commitHash], nil
}

// stubSummarizer is a configurable Summarizer for tests.
type stubSummarizer struct {
	mu sync.Mutex

	// fileFunc computes the summary per file; defaults to "summary of <name>".
	fileFunc func(fileName, content string) (string, error)
	// diffFunc computes the summary per diff; defaults to "summary of <diff>".
	diffFunc func(diff string) (string, error)

	fileCalls map[string]int
}

var _ Summarizer = (*stubSummarizer)(nil)

func (s *stubSummarizer) SummarizeFile(ctx context.Context, fileName, content string) (string, error) {
	s.mu.Lock()
	if s.fileCalls == nil {
		s.fileCalls = make(map[string]int)
	}
	s.fileCalls[fileName]++
	s.mu.Unlock()

	if s.fileFunc != nil {
		return s.fileFunc(fileName, content)
	}
	return "summary of " + fileName, nil
}

func (s *stubSummarizer) SummarizeDiff(ctx context.Context, diff string) (string, error) {
	if s.diffFunc != nil {
		return s.diffFunc(diff)
	}
	return "summary of " + diff, nil
}

func (s *stubSummarizer) callsFor(fileName string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fileCalls[fileName]
}

// memFileRepo is an in-memory FileEmbeddingRepository keyed by file name.
type memFileRepo struct {
	mu sync.Mutex

	rows map[string]*models.FileEmbedding
	// upsertErr, if set, injects a write failure per file.
	upsertErr func(fileName string) error
	// matches is returned from TopSimilar when set.
	matches []*models.FileMatch
}

func newMemFileRepo() *memFileRepo {
	return &memFileRepo{rows: make(map[string]*models.FileEmbedding)}
}

func (r *memFileRepo) Upsert(ctx context.Context, record *models.FileEmbedding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		if err := r.upsertErr(record.FileName); err != nil {
			return err
		}
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	r.rows[record.FileName] = record
	return nil
}

func (r *memFileRepo) CountByProject(ctx context.Context, projectID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows), nil
}

func (r *memFileRepo) TopSimilar(ctx context.Context, projectID uuid.UUID, query pgvector.Vector, limit int) ([]*models.FileMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.matches != nil {
		return r.matches, nil
	}
	names := make([]string, 0, len(r.rows))
	for name := range r.rows {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > limit {
		names = names[:limit]
	}
	matches := make([]*models.FileMatch, 0, len(names))
	for _, name := range names {
		row := r.rows[name]
		matches = append(matches, &models.FileMatch{FileEmbedding: *row, Similarity: 1})
	}
	return matches, nil
}

func (r *memFileRepo) fileNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.rows))
	for name := range r.rows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// memUserRepo is an in-memory UserRepository.
type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uuid.UUID]*models.User)}
}

func (r *memUserRepo) seed(id uuid.UUID, credits int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id] = &models.User{ID: id, Credits: credits}
}

func (r *memUserRepo) Upsert(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.users[user.ID]; ok {
		existing.Email = user.Email
		user.Credits = existing.Credits
		return nil
	}
	if user.Credits == 0 {
		user.Credits = repositories.DefaultCredits
	}
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *memUserRepo) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *memUserRepo) Debit(ctx context.Context, id uuid.UUID, amount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok || user.Credits < amount {
		return apperrors.ErrInsufficientCredits
	}
	user.Credits -= amount
	return nil
}

func (r *memUserRepo) credits(id uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[id]; ok {
		return user.Credits
	}
	return 0
}

// memProjectRepo is an in-memory ProjectRepository.
type memProjectRepo struct {
	mu       sync.Mutex
	projects map[uuid.UUID]*models.Project
}

func newMemProjectRepo() *memProjectRepo {
	return &memProjectRepo{projects: make(map[uuid.UUID]*models.Project)}
}

func (r *memProjectRepo) Create(ctx context.Context, project *models.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	stored := *project
	r.projects[project.ID] = &stored
	return nil
}

func (r *memProjectRepo) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	project, ok := r.projects[id]
	if !ok || project.Archived() {
		return nil, apperrors.ErrNotFound
	}
	copied := *project
	return &copied, nil
}

func (r *memProjectRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var projects []*models.Project
	for _, project := range r.projects {
		if project.UserID == userID && !project.Archived() {
			copied := *project
			projects = append(projects, &copied)
		}
	}
	return projects, nil
}

func (r *memProjectRepo) Archive(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	project, ok := r.projects[id]
	if !ok || project.Archived() {
		return apperrors.ErrNotFound
	}
	now := project.UpdatedAt
	project.DeletedAt = &now
	return nil
}

func (r *memProjectRepo) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.projects)
}

// memCommitRepo is an in-memory CommitRepository keyed by commit hash.
type memCommitRepo struct {
	mu   sync.Mutex
	rows map[string]*models.Commit
}

func newMemCommitRepo() *memCommitRepo {
	return &memCommitRepo{rows: make(map[string]*models.Commit)}
}

func (r *memCommitRepo) seed(projectID uuid.UUID, hashes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, hash := range hashes {
		r.rows[hash] = &models.Commit{ID: uuid.New(), ProjectID: projectID, CommitHash: hash}
	}
}

func (r *memCommitRepo) ExistingHashes(ctx context.Context, projectID uuid.UUID) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hashes := make(map[string]bool, len(r.rows))
	for hash := range r.rows {
		hashes[hash] = true
	}
	return hashes, nil
}

func (r *memCommitRepo) InsertBatch(ctx context.Context, commits []*models.Commit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, commit := range commits {
		if _, exists := r.rows[commit.CommitHash]; exists {
			continue
		}
		if commit.ID == uuid.Nil {
			commit.ID = uuid.New()
		}
		stored := *commit
		r.rows[commit.CommitHash] = &stored
	}
	return nil
}

func (r *memCommitRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Commit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var commits []*models.Commit
	for _, commit := range r.rows {
		copied := *commit
		commits = append(commits, &copied)
	}
	sort.Slice(commits, func(i, j int) bool {
		return commits[i].CommittedAt.After(commits[j].CommittedAt)
	})
	return commits, nil
}

func (r *memCommitRepo) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *memCommitRepo) get(hash string) *models.Commit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[hash]
}

// memQuestionRepo is an in-memory QuestionRepository.
type memQuestionRepo struct {
	mu       sync.Mutex
	inserted []*models.Question
}

func (r *memQuestionRepo) Insert(ctx context.Context, question *models.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if question.ID == uuid.Nil {
		question.ID = uuid.New()
	}
	r.inserted = append(r.inserted, question)
	return nil
}

func (r *memQuestionRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.Question(nil), r.inserted...), nil
}
