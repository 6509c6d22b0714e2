package postgres

import (
	"context"
	"errors"
	"fmt"

	"yield-ledger/internal/core/domain"
	"yield-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const withdrawalColumns = `id, user_id, amount_usd, currency, payout_address, status, amount_crypto, rate_snapshot,
	approved_by, platform_tx_ref, rejection_reason, cancellation_reason, requested_at, approved_at,
	processing_at, completed_at, rejected_at, cancelled_at, updated_at`

// WithdrawalRepo implements ports.WithdrawalRepository.
type WithdrawalRepo struct {
	pool Pool
}

// NewWithdrawalRepo creates a new WithdrawalRepo.
func NewWithdrawalRepo(pool Pool) *WithdrawalRepo {
	return &WithdrawalRepo{pool: pool}
}

// Create inserts a new withdrawal within a database transaction.
func (r *WithdrawalRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Withdrawal) error {
	query := `INSERT INTO withdrawals (` + withdrawalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err := tx.Exec(ctx, query,
		w.ID, w.UserID, w.AmountUSD, w.Currency, w.PayoutAddress, w.Status, w.AmountCrypto, w.RateSnapshot,
		w.ApprovedBy, w.PlatformTxRef, w.RejectionReason, w.CancellationReason, w.RequestedAt, w.ApprovedAt,
		w.ProcessingAt, w.CompletedAt, w.RejectedAt, w.CancelledAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert withdrawal: %w", mapWriteError(err))
	}
	return nil
}

// GetByID fetches a withdrawal by UUID.
func (r *WithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1`
	return scanWithdrawal(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches and row-locks a withdrawal inside a transaction.
func (r *WithdrawalRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1 FOR UPDATE`
	return scanWithdrawal(tx.QueryRow(ctx, query, id))
}

// ApplyDecision writes an approval, rejection or cancellation if the
// withdrawal is still Pending.
func (r *WithdrawalRepo) ApplyDecision(ctx context.Context, tx pgx.Tx, d domain.WithdrawalDecision) (bool, error) {
	var (
		query string
		args  []any
	)

	switch d.Status {
	case domain.WithdrawalStatusCompleted:
		query = `UPDATE withdrawals SET status = $1, amount_crypto = $2, rate_snapshot = $3, approved_by = $4,
				platform_tx_ref = $5, approved_at = $6, processing_at = $6, completed_at = $6, updated_at = $6
			WHERE id = $7 AND status = $8`
		args = []any{d.Status, d.AmountCrypto, d.RateSnapshot, d.ActorID, d.PlatformTxRef, d.At, d.WithdrawalID, domain.WithdrawalStatusPending}
	case domain.WithdrawalStatusRejected:
		query = `UPDATE withdrawals SET status = $1, approved_by = $2, rejection_reason = $3, rejected_at = $4, updated_at = $4
			WHERE id = $5 AND status = $6`
		args = []any{d.Status, d.ActorID, d.Reason, d.At, d.WithdrawalID, domain.WithdrawalStatusPending}
	case domain.WithdrawalStatusCancelled:
		query = `UPDATE withdrawals SET status = $1, cancellation_reason = $2, cancelled_at = $3, updated_at = $3
			WHERE id = $4 AND status = $5`
		args = []any{d.Status, d.Reason, d.At, d.WithdrawalID, domain.WithdrawalStatusPending}
	default:
		return false, fmt.Errorf("unsupported withdrawal decision %q", d.Status)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("apply withdrawal decision: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByUser returns a page of the user's withdrawals, newest first.
func (r *WithdrawalRepo) ListByUser(ctx context.Context, userID uuid.UUID, params ports.ListParams) ([]domain.Withdrawal, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM withdrawals WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count withdrawals: %w", err)
	}

	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE user_id = $1
		ORDER BY requested_at DESC, id LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, userID, params.PageSize, params.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list withdrawals: %w", err)
	}
	ws, err := collectWithdrawals(rows)
	if err != nil {
		return nil, 0, err
	}
	return ws, total, nil
}

// ListByStatus returns the admin queue, oldest request first. A nil status
// lists every withdrawal.
func (r *WithdrawalRepo) ListByStatus(ctx context.Context, status *domain.WithdrawalStatus, params ports.ListParams) ([]domain.Withdrawal, int64, error) {
	where := ""
	var args []any
	if status != nil {
		where = "WHERE status = $1"
		args = append(args, *status)
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM withdrawals `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count withdrawal queue: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM withdrawals %s ORDER BY requested_at, id LIMIT $%d OFFSET $%d`,
		withdrawalColumns, where, n+1, n+2)
	args = append(args, params.PageSize, params.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list withdrawal queue: %w", err)
	}
	ws, err := collectWithdrawals(rows)
	if err != nil {
		return nil, 0, err
	}
	return ws, total, nil
}

func collectWithdrawals(rows pgx.Rows) ([]domain.Withdrawal, error) {
	defer rows.Close()

	var ws []domain.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		ws = append(ws, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate withdrawal rows: %w", err)
	}
	return ws, nil
}

func scanWithdrawal(row rowScanner) (*domain.Withdrawal, error) {
	w := &domain.Withdrawal{}
	err := row.Scan(
		&w.ID, &w.UserID, &w.AmountUSD, &w.Currency, &w.PayoutAddress, &w.Status, &w.AmountCrypto, &w.RateSnapshot,
		&w.ApprovedBy, &w.PlatformTxRef, &w.RejectionReason, &w.CancellationReason, &w.RequestedAt, &w.ApprovedAt,
		&w.ProcessingAt, &w.CompletedAt, &w.RejectedAt, &w.CancelledAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan withdrawal: %w", err)
	}
	return w, nil
}
