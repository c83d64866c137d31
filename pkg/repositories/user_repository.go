package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/reposage-ai/reposage-engine/pkg/apperrors"
	"github.com/reposage-ai/reposage-engine/pkg/database"
	"github.com/reposage-ai/reposage-engine/pkg/models"
)

// DefaultCredits is the quota granted to a newly provisioned user.
const DefaultCredits = 150

// UserRepository provides data access for users and their credit balance.
type UserRepository interface {
	// Upsert provisions the user on first sight. An existing user keeps
	// their credit balance; only the email is refreshed.
	Upsert(ctx context.Context, user *models.User) error

	Get(ctx context.Context, id uuid.UUID) (*models.User, error)

	// Debit atomically decrements the balance. Fails with
	// apperrors.ErrInsufficientCredits instead of ever going negative.
	Debit(ctx context.Context, id uuid.UUID, amount int) error
}

type userRepository struct {
	db *database.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *database.DB) UserRepository {
	return &userRepository{db: db}
}

var _ UserRepository = (*userRepository)(nil)

func (r *userRepository) Upsert(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Credits == 0 {
		user.Credits = DefaultCredits
	}

	now := time.Now()
	query := `
		INSERT INTO users (id, email, credits, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email,
		    updated_at = EXCLUDED.updated_at
		RETURNING credits, created_at`

	err := r.db.QueryRow(ctx, query, user.ID, user.Email, user.Credits, now).
		Scan(&user.Credits, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	user.UpdatedAt = now

	return nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT id, email, credits, created_at, updated_at
		FROM users
		WHERE id = $1`

	var user models.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.Credits, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

func (r *userRepository) Debit(ctx context.Context, id uuid.UUID, amount int) error {
	if amount <= 0 {
		return nil
	}

	// The balance guard lives in the WHERE clause so two concurrent debits
	// can never drive credits negative.
	query := `
		UPDATE users
		SET credits = credits - $2, updated_at = $3
		WHERE id = $1 AND credits >= $2`

	tag, err := r.db.Exec(ctx, query, id, amount, time.Now())
	if err != nil {
		return fmt.Errorf("failed to debit credits: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrInsufficientCredits
	}

	return nil
}
