package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reposage-ai/reposage-engine/pkg/apperrors"
	"github.com/reposage-ai/reposage-engine/pkg/repositories"
)

// CreditService is the quota ledger. One indexable file costs one credit;
// the quote is taken before any indexing work starts.
type CreditService interface {
	// QuoteRepository counts the indexable files in a repository without
	// downloading content. The count is both the cost estimate and the
	// amount reserved against the user's balance.
	QuoteRepository(ctx context.Context, repoURL, token string) (int, error)

	// Authorize verifies the user's balance covers the quoted cost.
	// Returns apperrors.ErrInsufficientCredits when it does not.
	Authorize(ctx context.Context, userID uuid.UUID, cost int) error

	// Settle debits the actual number of indexed files, clamped to the
	// quoted cost so a user is never charged more than they authorized.
	Settle(ctx context.Context, userID uuid.UUID, indexed, quoted int) error
}

type creditService struct {
	fetcher RepoFetcher
	users   repositories.UserRepository
	logger  *zap.Logger
}

// NewCreditService creates the quota ledger service.
func NewCreditService(fetcher RepoFetcher, users repositories.UserRepository, logger *zap.Logger) CreditService {
	return &creditService{
		fetcher: fetcher,
		users:   users,
		logger:  logger.Named("credits"),
	}
}

var _ CreditService = (*creditService)(nil)

func (s *creditService) QuoteRepository(ctx context.Context, repoURL, token string) (int, error) {
	count, err := s.fetcher.CountRepositoryFiles(ctx, repoURL, token)
	if err != nil {
		return 0, fmt.Errorf("count repository files: %w", err)
	}
	return count, nil
}

func (s *creditService) Authorize(ctx context.Context, userID uuid.UUID, cost int) error {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user for authorization: %w", err)
	}
	if user.Credits < cost {
		s.logger.Info("Indexing rejected for insufficient credits",
			zap.String("user_id", userID.String()),
			zap.Int("credits", user.Credits),
			zap.Int("cost", cost))
		return apperrors.ErrInsufficientCredits
	}
	return nil
}

func (s *creditService) Settle(ctx context.Context, userID uuid.UUID, indexed, quoted int) error {
	amount := indexed
	if amount > quoted {
		amount = quoted
	}
	if amount <= 0 {
		return nil
	}

	if err := s.users.Debit(ctx, userID, amount); err != nil {
		return fmt.Errorf("debit credits: %w", err)
	}

	s.logger.Info("Credits debited",
		zap.String("user_id", userID.String()),
		zap.Int("amount", amount))
	return nil
}
