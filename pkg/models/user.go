package models

import (
	"time"

	"github.com/google/uuid"
)

// User holds the consumable indexing quota. Credits are debited one unit per
// file indexed and must never go negative.
type User struct {
	ID      uuid.UUID `json:"id"`
	Email   string    `json:"email"`
	Credits int       `json:"credits"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
