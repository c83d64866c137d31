package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reposage-ai/reposage-engine/pkg/apperrors"
	"github.com/reposage-ai/reposage-engine/pkg/models"
	"github.com/reposage-ai/reposage-engine/pkg/services"
)

// mockProjectService is a configurable services.ProjectService for tests.
type mockProjectService struct {
	createResult *services.CreateProjectResult
	createErr    error
	createInput  services.CreateProjectInput

	project *models.Project
	getErr  error

	projects []*models.Project
	listErr  error

	archiveErr error
}

func (m *mockProjectService) Create(ctx context.Context, input services.CreateProjectInput) (*services.CreateProjectResult, error) {
	m.createInput = input
	return m.createResult, m.createErr
}

func (m *mockProjectService) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return m.project, m.getErr
}

func (m *mockProjectService) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Project, error) {
	return m.projects, m.listErr
}

func (m *mockProjectService) Archive(ctx context.Context, id uuid.UUID) error {
	return m.archiveErr
}

type mockCommitService struct {
	commits   []*models.Commit
	listErr   error
	syncCalls []uuid.UUID
}

func (m *mockCommitService) Sync(ctx context.Context, projectID uuid.UUID) ([]*models.Commit, error) {
	return nil, nil
}

func (m *mockCommitService) SyncAsync(projectID uuid.UUID) {
	m.syncCalls = append(m.syncCalls, projectID)
}

func (m *mockCommitService) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Commit, error) {
	return m.commits, m.listErr
}

type mockQuestionService struct {
	question *models.Question
	askErr   error

	questions []*models.Question
	listErr   error
}

func (m *mockQuestionService) Ask(ctx context.Context, projectID, userID uuid.UUID, question string) (*models.Question, error) {
	return m.question, m.askErr
}

func (m *mockQuestionService) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Question, error) {
	return m.questions, m.listErr
}

func newTestMux(projectSvc *mockProjectService, commitSvc *mockCommitService, questionSvc *mockQuestionService) *http.ServeMux {
	if projectSvc == nil {
		projectSvc = &mockProjectService{}
	}
	if commitSvc == nil {
		commitSvc = &mockCommitService{}
	}
	if questionSvc == nil {
		questionSvc = &mockQuestionService{}
	}
	mux := http.NewServeMux()
	handler := NewProjectsHandler(projectSvc, commitSvc, questionSvc, zap.NewNop())
	handler.RegisterRoutes(mux)
	return mux
}

func TestCreateProjectRequiresUserHeader(t *testing.T) {
	mux := newTestMux(nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/projects", strings.NewReader(`{"repo_url":"https://github.com/acme/engine"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestCreateProjectRequiresRepoURL(t *testing.T) {
	mux := newTestMux(nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/projects", strings.NewReader(`{"name":"engine"}`))
	req.Header.Set("X-User-ID", uuid.NewString())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateProjectSuccess(t *testing.T) {
	project := &models.Project{ID: uuid.New(), Name: "engine"}
	projectSvc := &mockProjectService{
		createResult: &services.CreateProjectResult{
			Project: project,
			Report:  &services.IndexReport{FilesFetched: 3, FilesIndexed: 3},
		},
	}
	mux := newTestMux(projectSvc, nil, nil)

	userID := uuid.New()
	body := `{"repo_url":"https://github.com/acme/engine","github_token":"ghp_x","name":"engine"}`
	req := httptest.NewRequest(http.MethodPost, "/api/projects", strings.NewReader(body))
	req.Header.Set("X-User-ID", userID.String())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body: %s", rec.Code, rec.Body.String())
	}

	var envelope ApiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if !envelope.Success {
		t.Error("success = false")
	}
	if projectSvc.createInput.UserID != userID {
		t.Errorf("service received user %s, want %s", projectSvc.createInput.UserID, userID)
	}
	if projectSvc.createInput.GithubToken != "ghp_x" {
		t.Error("github token not forwarded to service")
	}
}

func TestCreateProjectErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"insufficient credits", apperrors.ErrInsufficientCredits, http.StatusPaymentRequired},
		{"invalid repo url", apperrors.ErrInvalidRepoURL, http.StatusBadRequest},
		{"repo not found", apperrors.ErrRepoNotFound, http.StatusNotFound},
		{"rate limited", apperrors.ErrRateLimited, http.StatusTooManyRequests},
		{"indexing in progress", apperrors.ErrIndexingInProgress, http.StatusConflict},
		{"internal", context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newTestMux(&mockProjectService{createErr: tt.err}, nil, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/projects", strings.NewReader(`{"repo_url":"https://github.com/acme/engine"}`))
			req.Header.Set("X-User-ID", uuid.NewString())
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestGetProjectNotFound(t *testing.T) {
	mux := newTestMux(&mockProjectService{getErr: apperrors.ErrNotFound}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/projects/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetProjectInvalidID(t *testing.T) {
	mux := newTestMux(nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/projects/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListCommitsTriggersBackgroundSync(t *testing.T) {
	projectID := uuid.New()
	commitSvc := &mockCommitService{
		commits: []*models.Commit{{ID: uuid.New(), ProjectID: projectID, CommitHash: "a1"}},
	}
	mux := newTestMux(nil, commitSvc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/projects/"+projectID.String()+"/commits", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(commitSvc.syncCalls) != 1 || commitSvc.syncCalls[0] != projectID {
		t.Errorf("background sync calls = %v, want one for the project", commitSvc.syncCalls)
	}

	var envelope ApiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if !envelope.Success {
		t.Error("success = false")
	}
}

func TestAskRequiresQuestion(t *testing.T) {
	mux := newTestMux(nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/projects/"+uuid.NewString()+"/ask", strings.NewReader(`{}`))
	req.Header.Set("X-User-ID", uuid.NewString())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAskSuccess(t *testing.T) {
	questionSvc := &mockQuestionService{
		question: &models.Question{
			ID:       uuid.New(),
			Question: "where is main?",
			Answer:   "main.go",
		},
	}
	mux := newTestMux(nil, nil, questionSvc)

	req := httptest.NewRequest(http.MethodPost, "/api/projects/"+uuid.NewString()+"/ask",
		strings.NewReader(`{"question":"where is main?"}`))
	req.Header.Set("X-User-ID", uuid.NewString())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
}
