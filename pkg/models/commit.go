package models

import (
	"time"

	"github.com/google/uuid"
)

// Commit is the stored summary of one repository commit. CommitHash is
// unique per project; the sync engine never re-inserts a hash it has
// already processed.
type Commit struct {
	ID           uuid.UUID `json:"id"`
	ProjectID    uuid.UUID `json:"project_id"`
	CommitHash   string    `json:"commit_hash"`
	Message      string    `json:"message"`
	AuthorName   string    `json:"author_name"`
	AuthorAvatar string    `json:"author_avatar"`
	CommittedAt  time.Time `json:"committed_at"`
	Summary      string    `json:"summary"`

	CreatedAt time.Time `json:"created_at"`
}
