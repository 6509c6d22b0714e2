package service

import (
	"context"
	"fmt"

	"yield-ledger/internal/core/domain"
	"yield-ledger/internal/core/ports"
	"yield-ledger/pkg/apperror"

	"github.com/google/uuid"
)

// AccountServiceImpl implements ports.IdentityProvider over the account
// tables owned by the identity system.
type AccountServiceImpl struct {
	accounts ports.AccountRepository
	hashSvc  ports.HashService
}

func NewAccountService(accounts ports.AccountRepository, hashSvc ports.HashService) *AccountServiceImpl {
	return &AccountServiceImpl{accounts: accounts, hashSvc: hashSvc}
}

func (s *AccountServiceImpl) account(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	a, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// IsActive reports false for unknown accounts.
func (s *AccountServiceImpl) IsActive(ctx context.Context, userID uuid.UUID) (bool, error) {
	a, err := s.account(ctx, userID)
	if err != nil || a == nil {
		return false, err
	}
	return a.IsActive(), nil
}

func (s *AccountServiceImpl) IsEmailVerified(ctx context.Context, userID uuid.UUID) (bool, error) {
	a, err := s.account(ctx, userID)
	if err != nil || a == nil {
		return false, err
	}
	return a.EmailVerified, nil
}

func (s *AccountServiceImpl) GetPayoutAddress(ctx context.Context, userID uuid.UUID, currency string) (string, error) {
	addr, err := s.accounts.GetPayoutAddress(ctx, userID, currency)
	if err != nil {
		return "", fmt.Errorf("get payout address: %w", err)
	}
	return addr, nil
}

// VerifyPin checks pin against the stored Argon2id hash.
func (s *AccountServiceImpl) VerifyPin(ctx context.Context, userID uuid.UUID, pin string) (bool, error) {
	a, err := s.account(ctx, userID)
	if err != nil {
		return false, err
	}
	if a == nil {
		return false, apperror.ErrNotFound("Account")
	}
	if !a.HasPin() {
		return false, apperror.ErrPinNotSet()
	}
	ok, err := s.hashSvc.Verify(pin, *a.PinHash)
	if err != nil {
		return false, fmt.Errorf("verify pin: %w", err)
	}
	return ok, nil
}

func (s *AccountServiceImpl) PreferredPayoutCurrency(ctx context.Context, userID uuid.UUID) (string, error) {
	a, err := s.account(ctx, userID)
	if err != nil || a == nil || a.PreferredPayoutCurrency == nil {
		return "", err
	}
	return *a.PreferredPayoutCurrency, nil
}
