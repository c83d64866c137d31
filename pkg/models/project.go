// Package models contains domain types for reposage-engine.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Project links one GitHub repository to its knowledge base.
type Project struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
	RepoURL string   `json:"repo_url"`

	// GithubToken is the stored access token for private repositories.
	// Never serialized in API responses.
	GithubToken string `json:"-"`

	// EmbeddingModel is pinned at creation time. Every embedding written for
	// this project uses the same model; mixing embedding spaces silently
	// breaks similarity search.
	EmbeddingModel string `json:"embedding_model"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Archived reports whether the project has been soft-deleted.
func (p *Project) Archived() bool {
	return p.DeletedAt != nil
}
