package memory

import (
	"context"
	"sort"
	"time"

	"yield-ledger/internal/core/domain"
	"yield-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// InvestmentRepo implements ports.InvestmentRepository.
type InvestmentRepo struct {
	s *Store
}

func NewInvestmentRepo(s *Store) *InvestmentRepo {
	return &InvestmentRepo{s: s}
}

func (r *InvestmentRepo) Create(ctx context.Context, tx pgx.Tx, inv *domain.Investment) error {
	if _, ok := r.s.investments[inv.ID]; ok {
		return ports.ErrDuplicate
	}
	r.s.investments[inv.ID] = *inv
	return nil
}

func (r *InvestmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Investment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.get(id), nil
}

func (r *InvestmentRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Investment, error) {
	return r.get(id), nil
}

func (r *InvestmentRepo) get(id uuid.UUID) *domain.Investment {
	inv, ok := r.s.investments[id]
	if !ok {
		return nil
	}
	return &inv
}

func (r *InvestmentRepo) ListByUser(ctx context.Context, userID uuid.UUID, params ports.ListParams) ([]domain.Investment, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.Investment
	for _, inv := range r.s.investments {
		if inv.UserID == userID {
			out = append(out, inv)
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

func (r *InvestmentRepo) ListByUserAndStatus(ctx context.Context, userID uuid.UUID, status domain.InvestmentStatus) ([]domain.Investment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.Investment
	for _, inv := range r.s.investments {
		if inv.UserID == userID && inv.Status == status {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// update applies fn to the investment if it is in status from.
func (r *InvestmentRepo) update(id uuid.UUID, from domain.InvestmentStatus, fn func(*domain.Investment)) bool {
	inv, ok := r.s.investments[id]
	if !ok || inv.Status != from {
		return false
	}
	fn(&inv)
	r.s.investments[id] = inv
	return true
}

func (r *InvestmentRepo) Activate(ctx context.Context, tx pgx.Tx, id uuid.UUID, a domain.Activation) (bool, error) {
	return r.update(id, domain.InvestmentStatusPendingVerification, func(inv *domain.Investment) {
		inv.ApplyActivation(a)
	}), nil
}

func (r *InvestmentRepo) Cancel(ctx context.Context, tx pgx.Tx, id uuid.UUID, note string, at time.Time) (bool, error) {
	return r.update(id, domain.InvestmentStatusPendingVerification, func(inv *domain.Investment) {
		inv.Status = domain.InvestmentStatusCancelled
		inv.AdminNotes = &note
		inv.UpdatedAt = at
	}), nil
}

func (r *InvestmentRepo) UpdateUserTxRef(ctx context.Context, tx pgx.Tx, id uuid.UUID, ref string, at time.Time) (bool, error) {
	return r.update(id, domain.InvestmentStatusPendingVerification, func(inv *domain.Investment) {
		inv.UserTxRef = &ref
		inv.UpdatedAt = at
	}), nil
}

func (r *InvestmentRepo) MarkMatured(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) (bool, error) {
	return r.transition(id, domain.InvestmentStatusActive, domain.InvestmentStatusMatured, at), nil
}

func (r *InvestmentRepo) MarkWithdrawn(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) (bool, error) {
	return r.transition(id, domain.InvestmentStatusMatured, domain.InvestmentStatusWithdrawn, at), nil
}

func (r *InvestmentRepo) transition(id uuid.UUID, from, to domain.InvestmentStatus, at time.Time) bool {
	return r.update(id, from, func(inv *domain.Investment) {
		inv.Status = to
		inv.UpdatedAt = at
	})
}

func (r *InvestmentRepo) ListDueForMaturity(ctx context.Context, now time.Time, after *ports.DueCursor, limit int) ([]domain.Investment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var due []domain.Investment
	for _, inv := range r.s.investments {
		if !inv.IsDue(now) {
			continue
		}
		if after != nil {
			m := *inv.MaturesAt
			if m.Before(after.MaturesAt) || (m.Equal(after.MaturesAt) && inv.ID.String() <= after.ID.String()) {
				continue
			}
		}
		due = append(due, inv)
	}
	sortByMaturity(due)
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *InvestmentRepo) ListSettlementCandidates(ctx context.Context, tx pgx.Tx, userID uuid.UUID) ([]domain.Investment, error) {
	var out []domain.Investment
	for _, inv := range r.s.investments {
		if inv.UserID != userID {
			continue
		}
		if inv.Status == domain.InvestmentStatusMatured || inv.Status == domain.InvestmentStatusWithdrawn {
			out = append(out, inv)
		}
	}
	sortByMaturity(out)
	return out, nil
}
