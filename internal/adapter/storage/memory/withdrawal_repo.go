package memory

import (
	"context"
	"fmt"
	"sort"

	"yield-ledger/internal/core/domain"
	"yield-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WithdrawalRepo implements ports.WithdrawalRepository.
type WithdrawalRepo struct {
	s *Store
}

func NewWithdrawalRepo(s *Store) *WithdrawalRepo {
	return &WithdrawalRepo{s: s}
}

func (r *WithdrawalRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Withdrawal) error {
	if _, ok := r.s.withdrawals[w.ID]; ok {
		return ports.ErrDuplicate
	}
	r.s.withdrawals[w.ID] = *w
	return nil
}

func (r *WithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.get(id), nil
}

func (r *WithdrawalRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Withdrawal, error) {
	return r.get(id), nil
}

func (r *WithdrawalRepo) get(id uuid.UUID) *domain.Withdrawal {
	w, ok := r.s.withdrawals[id]
	if !ok {
		return nil
	}
	return &w
}

func (r *WithdrawalRepo) ApplyDecision(ctx context.Context, tx pgx.Tx, d domain.WithdrawalDecision) (bool, error) {
	switch d.Status {
	case domain.WithdrawalStatusCompleted, domain.WithdrawalStatusRejected, domain.WithdrawalStatusCancelled:
	default:
		return false, fmt.Errorf("unsupported withdrawal decision %q", d.Status)
	}

	w, ok := r.s.withdrawals[d.WithdrawalID]
	if !ok || w.Status != domain.WithdrawalStatusPending {
		return false, nil
	}
	w.Apply(d)
	r.s.withdrawals[w.ID] = w
	return true, nil
}

func (r *WithdrawalRepo) ListByUser(ctx context.Context, userID uuid.UUID, params ports.ListParams) ([]domain.Withdrawal, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.Withdrawal
	for _, w := range r.s.withdrawals {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].RequestedAt.After(out[j].RequestedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return paginate(out, params), int64(len(out)), nil
}

func (r *WithdrawalRepo) ListByStatus(ctx context.Context, status *domain.WithdrawalStatus, params ports.ListParams) ([]domain.Withdrawal, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.Withdrawal
	for _, w := range r.s.withdrawals {
		if status == nil || w.Status == *status {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].RequestedAt.Before(out[j].RequestedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return paginate(out, params), int64(len(out)), nil
}
