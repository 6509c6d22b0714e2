package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"yield-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// GetByID fetches an account by its UUID.
func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT id, email, status, email_verified, pin_hash, preferred_payout_currency, created_at, updated_at
		FROM accounts WHERE id = $1`

	a := &domain.Account{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.Email, &a.Status, &a.EmailVerified,
		&a.PinHash, &a.PreferredPayoutCurrency, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account by id: %w", err)
	}
	return a, nil
}

// GetPayoutAddress returns the user's address for currency, or "" if none is on file.
func (r *AccountRepo) GetPayoutAddress(ctx context.Context, userID uuid.UUID, currency string) (string, error) {
	query := `SELECT address FROM payout_addresses WHERE user_id = $1 AND currency = $2`

	var addr string
	err := r.pool.QueryRow(ctx, query, userID, strings.ToUpper(currency)).Scan(&addr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get payout address: %w", err)
	}
	return addr, nil
}
