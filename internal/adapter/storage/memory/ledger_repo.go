package memory

import (
	"context"
	"sort"

	"yield-ledger/internal/core/domain"
	"yield-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// LedgerRepo implements ports.LedgerRepository. It enforces the same
// uniqueness rules as the PostgreSQL partial indexes: one DEPOSIT and one
// ROI_PAYOUT per investment, one WITHDRAWAL entry per withdrawal.
type LedgerRepo struct {
	s *Store
}

func NewLedgerRepo(s *Store) *LedgerRepo {
	return &LedgerRepo{s: s}
}

func (r *LedgerRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	if _, ok := r.s.ledger[e.ID]; ok {
		return ports.ErrDuplicate
	}
	for _, existing := range r.s.ledger {
		if existing.Kind != e.Kind {
			continue
		}
		switch e.Kind {
		case domain.EntryKindDeposit, domain.EntryKindROIPayout:
			if sameID(existing.InvestmentID, e.InvestmentID) {
				return ports.ErrDuplicate
			}
		case domain.EntryKindWithdrawal:
			if sameID(existing.WithdrawalID, e.WithdrawalID) {
				return ports.ErrDuplicate
			}
		}
	}
	r.s.ledger[e.ID] = *e
	return nil
}

func sameID(a, b *uuid.UUID) bool {
	return a != nil && b != nil && *a == *b
}

func (r *LedgerRepo) GetByWithdrawalID(ctx context.Context, tx pgx.Tx, withdrawalID uuid.UUID) (*domain.LedgerEntry, error) {
	for _, e := range r.s.ledger {
		if e.Kind == domain.EntryKindWithdrawal && e.WithdrawalID != nil && *e.WithdrawalID == withdrawalID {
			return &e, nil
		}
	}
	return nil, nil
}

func (r *LedgerRepo) GetByInvestmentID(ctx context.Context, tx pgx.Tx, investmentID uuid.UUID, kind domain.EntryKind) (*domain.LedgerEntry, error) {
	for _, e := range r.s.ledger {
		if e.Kind == kind && e.InvestmentID != nil && *e.InvestmentID == investmentID {
			return &e, nil
		}
	}
	return nil, nil
}

func (r *LedgerRepo) Finalize(ctx context.Context, tx pgx.Tx, id uuid.UUID, from domain.EntryStatus, f domain.EntryFinalization) (bool, error) {
	e, ok := r.s.ledger[id]
	if !ok || e.Status != from {
		return false, nil
	}
	e.Status = f.Status
	if f.AmountCrypto.Valid {
		e.AmountCrypto = f.AmountCrypto
	}
	if f.RateSnapshot.Valid {
		e.RateSnapshot = f.RateSnapshot
	}
	if f.UserTxRef != nil {
		e.UserTxRef = f.UserTxRef
	}
	if f.PlatformTxRef != nil {
		e.PlatformTxRef = f.PlatformTxRef
	}
	if f.ProcessedBy != nil {
		e.ProcessedBy = f.ProcessedBy
	}
	if f.Description != nil {
		e.Description = *f.Description
	}
	if f.Status != domain.EntryStatusPending {
		at := f.At
		e.CompletedAt = &at
	}
	r.s.ledger[id] = e
	return true, nil
}

func (r *LedgerRepo) UpdateUserTxRef(ctx context.Context, tx pgx.Tx, id uuid.UUID, ref string) (bool, error) {
	e, ok := r.s.ledger[id]
	if !ok || e.Status != domain.EntryStatusPending {
		return false, nil
	}
	e.UserTxRef = &ref
	r.s.ledger[id] = e
	return true, nil
}

func (r *LedgerRepo) SumByKind(ctx context.Context, tx pgx.Tx, userID uuid.UUID, kind domain.EntryKind, statuses []domain.EntryStatus) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, e := range r.s.ledger {
		if e.UserID == userID && e.Kind == kind && hasStatus(statuses, e.Status) {
			sum = sum.Add(e.AmountUSD)
		}
	}
	return sum, nil
}

func hasStatus(statuses []domain.EntryStatus, s domain.EntryStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

func (r *LedgerRepo) ListByUser(ctx context.Context, userID uuid.UUID, params ports.ListParams) ([]domain.LedgerEntry, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.LedgerEntry
	for _, e := range r.s.ledger {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return paginate(out, params), int64(len(out)), nil
}

func (r *LedgerRepo) ListForReplay(ctx context.Context, userID uuid.UUID, statuses []domain.EntryStatus) ([]domain.LedgerEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.LedgerEntry
	for _, e := range r.s.ledger {
		if e.UserID == userID && hasStatus(statuses, e.Status) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := out[i].EffectiveAt(), out[j].EffectiveAt()
		if !ai.Equal(aj) {
			return ai.Before(aj)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}
