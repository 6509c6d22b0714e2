package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"yield-ledger/internal/core/domain"
	"yield-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const investmentColumns = `id, user_id, plan_id, plan_name, daily_yield_pct, duration_days, invested_amount_usd,
	payment_currency, payment_amount_crypto, rate_snapshot, rate_as_of, deposit_address,
	expected_daily_profit_usd, expected_total_profit_usd, expected_total_return_usd,
	status, user_tx_ref, confirmed_amount_crypto, activated_at, matures_at, verified_by, verified_at,
	admin_notes, created_at, updated_at`

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// InvestmentRepo implements ports.InvestmentRepository.
type InvestmentRepo struct {
	pool Pool
}

// NewInvestmentRepo creates a new InvestmentRepo.
func NewInvestmentRepo(pool Pool) *InvestmentRepo {
	return &InvestmentRepo{pool: pool}
}

// Create inserts a new investment within a database transaction.
func (r *InvestmentRepo) Create(ctx context.Context, tx pgx.Tx, inv *domain.Investment) error {
	query := `INSERT INTO investments (` + investmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`

	_, err := tx.Exec(ctx, query,
		inv.ID, inv.UserID, inv.PlanID, inv.PlanName, inv.DailyYieldPct, inv.DurationDays, inv.InvestedAmountUSD,
		inv.PaymentCurrency, inv.PaymentAmountCrypto, inv.RateSnapshot, inv.RateAsOf, inv.DepositAddress,
		inv.ExpectedDailyProfitUSD, inv.ExpectedTotalProfitUSD, inv.ExpectedTotalReturnUSD,
		inv.Status, inv.UserTxRef, inv.ConfirmedAmountCrypto, inv.ActivatedAt, inv.MaturesAt, inv.VerifiedBy, inv.VerifiedAt,
		inv.AdminNotes, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert investment: %w", mapWriteError(err))
	}
	return nil
}

// GetByID fetches an investment by UUID.
func (r *InvestmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE id = $1`
	return scanInvestment(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches and row-locks an investment inside a transaction.
func (r *InvestmentRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE id = $1 FOR UPDATE`
	return scanInvestment(tx.QueryRow(ctx, query, id))
}

// ListByUser returns a page of the user's investments, newest first.
func (r *InvestmentRepo) ListByUser(ctx context.Context, userID uuid.UUID, params ports.ListParams) ([]domain.Investment, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM investments WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count investments: %w", err)
	}

	query := `SELECT ` + investmentColumns + ` FROM investments WHERE user_id = $1
		ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, userID, params.PageSize, params.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list investments: %w", err)
	}
	invs, err := collectInvestments(rows)
	if err != nil {
		return nil, 0, err
	}
	return invs, total, nil
}

// ListByUserAndStatus returns all of the user's investments in status.
func (r *InvestmentRepo) ListByUserAndStatus(ctx context.Context, userID uuid.UUID, status domain.InvestmentStatus) ([]domain.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE user_id = $1 AND status = $2
		ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, userID, status)
	if err != nil {
		return nil, fmt.Errorf("list investments by status: %w", err)
	}
	return collectInvestments(rows)
}

// Activate moves a PendingVerification investment to Active.
func (r *InvestmentRepo) Activate(ctx context.Context, tx pgx.Tx, id uuid.UUID, a domain.Activation) (bool, error) {
	query := `UPDATE investments
		SET status = $1, activated_at = $2, matures_at = $3, verified_by = $4, verified_at = $2,
			confirmed_amount_crypto = $5, user_tx_ref = $6, updated_at = $2
		WHERE id = $7 AND status = $8`

	tag, err := tx.Exec(ctx, query,
		domain.InvestmentStatusActive, a.ActivatedAt, a.MaturesAt, a.VerifiedBy,
		a.ConfirmedAmountCrypto, a.TxRef, id, domain.InvestmentStatusPendingVerification,
	)
	if err != nil {
		return false, fmt.Errorf("activate investment: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Cancel moves a PendingVerification investment to Cancelled.
func (r *InvestmentRepo) Cancel(ctx context.Context, tx pgx.Tx, id uuid.UUID, note string, at time.Time) (bool, error) {
	query := `UPDATE investments SET status = $1, admin_notes = $2, updated_at = $3
		WHERE id = $4 AND status = $5`

	tag, err := tx.Exec(ctx, query,
		domain.InvestmentStatusCancelled, note, at, id, domain.InvestmentStatusPendingVerification,
	)
	if err != nil {
		return false, fmt.Errorf("cancel investment: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateUserTxRef replaces the user's transfer reference while still pending.
func (r *InvestmentRepo) UpdateUserTxRef(ctx context.Context, tx pgx.Tx, id uuid.UUID, ref string, at time.Time) (bool, error) {
	query := `UPDATE investments SET user_tx_ref = $1, updated_at = $2 WHERE id = $3 AND status = $4`

	tag, err := tx.Exec(ctx, query, ref, at, id, domain.InvestmentStatusPendingVerification)
	if err != nil {
		return false, fmt.Errorf("update investment tx ref: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkMatured moves an Active investment to Matured.
func (r *InvestmentRepo) MarkMatured(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) (bool, error) {
	return r.transition(ctx, tx, id, domain.InvestmentStatusActive, domain.InvestmentStatusMatured, at)
}

// MarkWithdrawn moves a Matured investment to Withdrawn.
func (r *InvestmentRepo) MarkWithdrawn(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) (bool, error) {
	return r.transition(ctx, tx, id, domain.InvestmentStatusMatured, domain.InvestmentStatusWithdrawn, at)
}

func (r *InvestmentRepo) transition(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.InvestmentStatus, at time.Time) (bool, error) {
	query := `UPDATE investments SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`

	tag, err := tx.Exec(ctx, query, to, at, id, from)
	if err != nil {
		return false, fmt.Errorf("transition investment %s->%s: %w", from, to, err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListDueForMaturity returns one keyset page of Active investments due at now.
func (r *InvestmentRepo) ListDueForMaturity(ctx context.Context, now time.Time, after *ports.DueCursor, limit int) ([]domain.Investment, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if after == nil {
		query := `SELECT ` + investmentColumns + ` FROM investments
			WHERE status = $1 AND matures_at <= $2
			ORDER BY matures_at, id LIMIT $3`
		rows, err = r.pool.Query(ctx, query, domain.InvestmentStatusActive, now, limit)
	} else {
		query := `SELECT ` + investmentColumns + ` FROM investments
			WHERE status = $1 AND matures_at <= $2 AND (matures_at, id) > ($3, $4)
			ORDER BY matures_at, id LIMIT $5`
		rows, err = r.pool.Query(ctx, query, domain.InvestmentStatusActive, now, after.MaturesAt, after.ID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list due investments: %w", err)
	}
	return collectInvestments(rows)
}

// ListSettlementCandidates locks the user's Matured and Withdrawn investments.
func (r *InvestmentRepo) ListSettlementCandidates(ctx context.Context, tx pgx.Tx, userID uuid.UUID) ([]domain.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments
		WHERE user_id = $1 AND status IN ($2, $3)
		ORDER BY matures_at, id FOR UPDATE`

	rows, err := tx.Query(ctx, query, userID, domain.InvestmentStatusMatured, domain.InvestmentStatusWithdrawn)
	if err != nil {
		return nil, fmt.Errorf("list settlement candidates: %w", err)
	}
	return collectInvestments(rows)
}

func collectInvestments(rows pgx.Rows) ([]domain.Investment, error) {
	defer rows.Close()

	var invs []domain.Investment
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, err
		}
		invs = append(invs, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate investment rows: %w", err)
	}
	return invs, nil
}

// scanInvestment scans a single row. Returns nil, nil when no row matched.
func scanInvestment(row rowScanner) (*domain.Investment, error) {
	inv := &domain.Investment{}
	err := row.Scan(
		&inv.ID, &inv.UserID, &inv.PlanID, &inv.PlanName, &inv.DailyYieldPct, &inv.DurationDays, &inv.InvestedAmountUSD,
		&inv.PaymentCurrency, &inv.PaymentAmountCrypto, &inv.RateSnapshot, &inv.RateAsOf, &inv.DepositAddress,
		&inv.ExpectedDailyProfitUSD, &inv.ExpectedTotalProfitUSD, &inv.ExpectedTotalReturnUSD,
		&inv.Status, &inv.UserTxRef, &inv.ConfirmedAmountCrypto, &inv.ActivatedAt, &inv.MaturesAt, &inv.VerifiedBy, &inv.VerifiedAt,
		&inv.AdminNotes, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan investment: %w", err)
	}
	return inv, nil
}
