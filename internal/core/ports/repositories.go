package ports

import (
	"context"
	"errors"
	"time"

	"yield-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ErrDuplicate is returned by repositories when a uniqueness constraint rejects a write.
var ErrDuplicate = errors.New("duplicate record")

// ListParams holds pagination for list queries.
type ListParams struct {
	Page     int
	PageSize int
}

// Offset returns the row offset for the page.
func (p ListParams) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// DueCursor is the keyset position of the last investment returned by a
// maturity scan. A nil cursor starts from the beginning.
type DueCursor struct {
	MaturesAt time.Time
	ID        uuid.UUID
}

// InvestmentRepository defines persistence operations for investments.
// Methods accepting pgx.Tx run inside a unit of work; conditional updates
// return false when the row was not in the expected state.
type InvestmentRepository interface {
	Create(ctx context.Context, tx pgx.Tx, inv *domain.Investment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Investment, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Investment, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params ListParams) ([]domain.Investment, int64, error)
	ListByUserAndStatus(ctx context.Context, userID uuid.UUID, status domain.InvestmentStatus) ([]domain.Investment, error)

	Activate(ctx context.Context, tx pgx.Tx, id uuid.UUID, a domain.Activation) (bool, error)
	Cancel(ctx context.Context, tx pgx.Tx, id uuid.UUID, note string, at time.Time) (bool, error)
	UpdateUserTxRef(ctx context.Context, tx pgx.Tx, id uuid.UUID, ref string, at time.Time) (bool, error)
	MarkMatured(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) (bool, error)
	MarkWithdrawn(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) (bool, error)

	// ListDueForMaturity returns Active investments with matures_at <= now,
	// ordered by (matures_at, id) and strictly after the cursor.
	ListDueForMaturity(ctx context.Context, now time.Time, after *DueCursor, limit int) ([]domain.Investment, error)
	// ListSettlementCandidates locks and returns the user's Matured and
	// Withdrawn investments ordered by (matures_at, id).
	ListSettlementCandidates(ctx context.Context, tx pgx.Tx, userID uuid.UUID) ([]domain.Investment, error)
}

// LedgerRepository defines persistence operations for ledger entries.
type LedgerRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	GetByWithdrawalID(ctx context.Context, tx pgx.Tx, withdrawalID uuid.UUID) (*domain.LedgerEntry, error)
	GetByInvestmentID(ctx context.Context, tx pgx.Tx, investmentID uuid.UUID, kind domain.EntryKind) (*domain.LedgerEntry, error)
	// Finalize moves the entry from its current status to f.Status if it is
	// still in from.
	Finalize(ctx context.Context, tx pgx.Tx, id uuid.UUID, from domain.EntryStatus, f domain.EntryFinalization) (bool, error)
	UpdateUserTxRef(ctx context.Context, tx pgx.Tx, id uuid.UUID, ref string) (bool, error)
	SumByKind(ctx context.Context, tx pgx.Tx, userID uuid.UUID, kind domain.EntryKind, statuses []domain.EntryStatus) (decimal.Decimal, error)

	ListByUser(ctx context.Context, userID uuid.UUID, params ListParams) ([]domain.LedgerEntry, int64, error)
	// ListForReplay returns all of the user's entries in the given statuses.
	ListForReplay(ctx context.Context, userID uuid.UUID, statuses []domain.EntryStatus) ([]domain.LedgerEntry, error)
}

// WithdrawalRepository defines persistence operations for withdrawals.
type WithdrawalRepository interface {
	Create(ctx context.Context, tx pgx.Tx, w *domain.Withdrawal) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Withdrawal, error)
	// ApplyDecision writes d if the withdrawal is still Pending.
	ApplyDecision(ctx context.Context, tx pgx.Tx, d domain.WithdrawalDecision) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params ListParams) ([]domain.Withdrawal, int64, error)
	ListByStatus(ctx context.Context, status *domain.WithdrawalStatus, params ListParams) ([]domain.Withdrawal, int64, error)
}

// PlanRepository reads the plan catalog.
type PlanRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error)
	ListActive(ctx context.Context) ([]domain.Plan, error)
}

// CurrencyRepository reads the supported currency registry.
type CurrencyRepository interface {
	GetBySymbol(ctx context.Context, symbol string) (*domain.SupportedCurrency, error)
	ListActive(ctx context.Context) ([]domain.SupportedCurrency, error)
}

// AccountRepository reads identity records and payout addresses.
type AccountRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetPayoutAddress(ctx context.Context, userID uuid.UUID, currency string) (string, error)
}

// AuditRepository defines persistence for audit logs.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
