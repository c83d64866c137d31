package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/reposage-ai/reposage-engine/pkg/apperrors"
	"github.com/reposage-ai/reposage-engine/pkg/logging"
	"github.com/reposage-ai/reposage-engine/pkg/models"
	"github.com/reposage-ai/reposage-engine/pkg/services"
)

// CreateProjectRequest for POST /api/projects
type CreateProjectRequest struct {
	Name        string `json:"name,omitempty"`
	RepoURL     string `json:"repo_url"`
	GithubToken string `json:"github_token,omitempty"`
	UserEmail   string `json:"user_email,omitempty"`
}

// CreateProjectResponse pairs the project with its indexing report.
type CreateProjectResponse struct {
	Project *models.Project `json:"project"`
	Indexed int             `json:"indexed_files"`
	Fetched int             `json:"fetched_files"`
	Skipped int             `json:"skipped_files"`
}

// ProjectListResponse for GET /api/projects
type ProjectListResponse struct {
	Projects []*models.Project `json:"projects"`
	Total    int               `json:"total"`
}

// CommitListResponse for GET /api/projects/{pid}/commits
type CommitListResponse struct {
	Commits []*models.Commit `json:"commits"`
	Total   int              `json:"total"`
}

// AskRequest for POST /api/projects/{pid}/ask
type AskRequest struct {
	Question string `json:"question"`
}

// QuestionListResponse for GET /api/projects/{pid}/questions
type QuestionListResponse struct {
	Questions []*models.Question `json:"questions"`
	Total     int                `json:"total"`
}

// ProjectsHandler handles project lifecycle, commit history, and question
// HTTP requests.
type ProjectsHandler struct {
	projectService  services.ProjectService
	commitService   services.CommitService
	questionService services.QuestionService
	logger          *zap.Logger
}

// NewProjectsHandler creates a new projects handler.
func NewProjectsHandler(
	projectService services.ProjectService,
	commitService services.CommitService,
	questionService services.QuestionService,
	logger *zap.Logger,
) *ProjectsHandler {
	return &ProjectsHandler{
		projectService:  projectService,
		commitService:   commitService,
		questionService: questionService,
		logger:          logger,
	}
}

// RegisterRoutes registers the projects handler's routes on the given mux.
func (h *ProjectsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/projects", h.Create)
	mux.HandleFunc("GET /api/projects", h.List)
	mux.HandleFunc("GET /api/projects/{pid}", h.Get)
	mux.HandleFunc("DELETE /api/projects/{pid}", h.Archive)
	mux.HandleFunc("GET /api/projects/{pid}/commits", h.ListCommits)
	mux.HandleFunc("POST /api/projects/{pid}/ask", h.Ask)
	mux.HandleFunc("GET /api/projects/{pid}/questions", h.ListQuestions)
}

// Create handles POST /api/projects. Indexing runs synchronously; the
// response carries the final report.
func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := RequireUserID(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if strings.TrimSpace(req.RepoURL) == "" {
		h.writeError(w, http.StatusBadRequest, "missing_repo_url", "repo_url is required")
		return
	}

	result, err := h.projectService.Create(r.Context(), services.CreateProjectInput{
		UserID:      userID,
		UserEmail:   req.UserEmail,
		Name:        req.Name,
		RepoURL:     req.RepoURL,
		GithubToken: req.GithubToken,
	})
	if err != nil {
		h.writeServiceError(w, err, "create_project_failed")
		return
	}

	response := CreateProjectResponse{
		Project: result.Project,
		Indexed: result.Report.FilesIndexed,
		Fetched: result.Report.FilesFetched,
		Skipped: result.Report.FilesSkipped,
	}
	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/projects
func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := RequireUserID(w, r, h.logger)
	if !ok {
		return
	}

	projects, err := h.projectService.ListByUser(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "list_projects_failed")
		return
	}

	response := ProjectListResponse{Projects: projects, Total: len(projects)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/projects/{pid}
func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	project, err := h.projectService.Get(r.Context(), projectID)
	if err != nil {
		h.writeServiceError(w, err, "get_project_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: project}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Archive handles DELETE /api/projects/{pid}
func (h *ProjectsHandler) Archive(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.projectService.Archive(r.Context(), projectID); err != nil {
		h.writeServiceError(w, err, "archive_project_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListCommits handles GET /api/projects/{pid}/commits. The stored history is
// returned immediately; a background sync picks up commits pushed since the
// last visit.
func (h *ProjectsHandler) ListCommits(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	commits, err := h.commitService.ListByProject(r.Context(), projectID)
	if err != nil {
		h.writeServiceError(w, err, "list_commits_failed")
		return
	}

	h.commitService.SyncAsync(projectID)

	response := CommitListResponse{Commits: commits, Total: len(commits)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Ask handles POST /api/projects/{pid}/ask
func (h *ProjectsHandler) Ask(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	userID, ok := RequireUserID(w, r, h.logger)
	if !ok {
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		h.writeError(w, http.StatusBadRequest, "missing_question", "question is required")
		return
	}

	question, err := h.questionService.Ask(r.Context(), projectID, userID, req.Question)
	if err != nil {
		h.writeServiceError(w, err, "ask_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: question}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListQuestions handles GET /api/projects/{pid}/questions
func (h *ProjectsHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	questions, err := h.questionService.ListByProject(r.Context(), projectID)
	if err != nil {
		h.writeServiceError(w, err, "list_questions_failed")
		return
	}

	response := QuestionListResponse{Questions: questions, Total: len(questions)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// writeServiceError maps domain errors to HTTP status codes.
func (h *ProjectsHandler) writeServiceError(w http.ResponseWriter, err error, fallbackCode string) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "not_found", "Resource not found")
	case errors.Is(err, apperrors.ErrInvalidRepoURL):
		h.writeError(w, http.StatusBadRequest, "invalid_repo_url", err.Error())
	case errors.Is(err, apperrors.ErrRepoNotFound):
		h.writeError(w, http.StatusNotFound, "repo_not_found", err.Error())
	case errors.Is(err, apperrors.ErrRateLimited):
		h.writeError(w, http.StatusTooManyRequests, "rate_limited", err.Error())
	case errors.Is(err, apperrors.ErrInsufficientCredits):
		h.writeError(w, http.StatusPaymentRequired, "insufficient_credits", "Not enough credits to index this repository")
	case errors.Is(err, apperrors.ErrIndexingInProgress):
		h.writeError(w, http.StatusConflict, "indexing_in_progress", "An indexing run for this project is already active")
	default:
		h.logger.Error("Request failed", zap.String("error", logging.SanitizeError(err)))
		h.writeError(w, http.StatusInternalServerError, fallbackCode, "Internal server error")
	}
}

func (h *ProjectsHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
