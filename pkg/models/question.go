package models

import (
	"time"

	"github.com/google/uuid"
)

// Question is a saved question/answer pair, with the file names that were
// retrieved as evidence for the answer.
type Question struct {
	ID              uuid.UUID `json:"id"`
	ProjectID       uuid.UUID `json:"project_id"`
	UserID          uuid.UUID `json:"user_id"`
	Question        string    `json:"question"`
	Answer          string    `json:"answer"`
	ReferencedFiles []string  `json:"referenced_files"`

	CreatedAt time.Time `json:"created_at"`
}
