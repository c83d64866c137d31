package apperrors

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrInvalidRepoURL      = errors.New("invalid repository URL")
	ErrRepoNotFound        = errors.New("repository not found or not accessible")
	ErrRateLimited         = errors.New("rate limit exhausted")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrIndexingInProgress  = errors.New("indexing already in progress for this project")
)
