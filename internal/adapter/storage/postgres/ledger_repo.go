package postgres

import (
	"context"
	"errors"
	"fmt"

	"yield-ledger/internal/core/domain"
	"yield-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const ledgerColumns = `id, user_id, kind, investment_id, withdrawal_id, amount_usd, currency, amount_crypto,
	rate_snapshot, platform_address, user_address, user_tx_ref, platform_tx_ref, status, description,
	processed_by, created_at, completed_at`

// LedgerRepo implements ports.LedgerRepository.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Create appends an entry within a database transaction. A second DEPOSIT or
// ROI_PAYOUT for the same investment fails with ports.ErrDuplicate.
func (r *LedgerRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.UserID, e.Kind, e.InvestmentID, e.WithdrawalID, e.AmountUSD, e.Currency, e.AmountCrypto,
		e.RateSnapshot, e.PlatformAddress, e.UserAddress, e.UserTxRef, e.PlatformTxRef, e.Status, e.Description,
		e.ProcessedBy, e.CreatedAt, e.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", mapWriteError(err))
	}
	return nil
}

// GetByWithdrawalID locks and returns the entry owned by a withdrawal.
func (r *LedgerRepo) GetByWithdrawalID(ctx context.Context, tx pgx.Tx, withdrawalID uuid.UUID) (*domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries
		WHERE withdrawal_id = $1 AND kind = $2 FOR UPDATE`
	return scanLedgerEntry(tx.QueryRow(ctx, query, withdrawalID, domain.EntryKindWithdrawal))
}

// GetByInvestmentID locks and returns the investment's entry of the given kind.
func (r *LedgerRepo) GetByInvestmentID(ctx context.Context, tx pgx.Tx, investmentID uuid.UUID, kind domain.EntryKind) (*domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries
		WHERE investment_id = $1 AND kind = $2 FOR UPDATE`
	return scanLedgerEntry(tx.QueryRow(ctx, query, investmentID, kind))
}

// Finalize moves an entry out of from and stamps completed_at. Unset
// optional fields keep their stored value.
func (r *LedgerRepo) Finalize(ctx context.Context, tx pgx.Tx, id uuid.UUID, from domain.EntryStatus, f domain.EntryFinalization) (bool, error) {
	var completedAt any
	if f.Status != domain.EntryStatusPending {
		completedAt = f.At
	}

	query := `UPDATE ledger_entries SET
			status = $1,
			amount_crypto = COALESCE($2, amount_crypto),
			rate_snapshot = COALESCE($3, rate_snapshot),
			user_tx_ref = COALESCE($4, user_tx_ref),
			platform_tx_ref = COALESCE($5, platform_tx_ref),
			processed_by = COALESCE($6, processed_by),
			description = COALESCE($7, description),
			completed_at = COALESCE($8, completed_at)
		WHERE id = $9 AND status = $10`

	tag, err := tx.Exec(ctx, query,
		f.Status, f.AmountCrypto, f.RateSnapshot, f.UserTxRef, f.PlatformTxRef, f.ProcessedBy, f.Description,
		completedAt, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("finalize ledger entry: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateUserTxRef replaces the user reference on a Pending entry.
func (r *LedgerRepo) UpdateUserTxRef(ctx context.Context, tx pgx.Tx, id uuid.UUID, ref string) (bool, error) {
	query := `UPDATE ledger_entries SET user_tx_ref = $1 WHERE id = $2 AND status = $3`

	tag, err := tx.Exec(ctx, query, ref, id, domain.EntryStatusPending)
	if err != nil {
		return false, fmt.Errorf("update ledger tx ref: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SumByKind totals the user's entries of kind across statuses.
func (r *LedgerRepo) SumByKind(ctx context.Context, tx pgx.Tx, userID uuid.UUID, kind domain.EntryKind, statuses []domain.EntryStatus) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount_usd), 0) FROM ledger_entries
		WHERE user_id = $1 AND kind = $2 AND status = ANY($3)`

	var sum decimal.Decimal
	if err := tx.QueryRow(ctx, query, userID, kind, statusStrings(statuses)).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum ledger entries: %w", err)
	}
	return sum, nil
}

// ListByUser returns a page of the user's entries, newest first.
func (r *LedgerRepo) ListByUser(ctx context.Context, userID uuid.UUID, params ports.ListParams) ([]domain.LedgerEntry, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_entries WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE user_id = $1
		ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, userID, params.PageSize, params.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	entries, err := collectLedgerEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// ListForReplay returns the user's entries in statuses ordered by effective instant.
func (r *LedgerRepo) ListForReplay(ctx context.Context, userID uuid.UUID, statuses []domain.EntryStatus) ([]domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries
		WHERE user_id = $1 AND status = ANY($2)
		ORDER BY COALESCE(completed_at, created_at), id`

	rows, err := r.pool.Query(ctx, query, userID, statusStrings(statuses))
	if err != nil {
		return nil, fmt.Errorf("list ledger for replay: %w", err)
	}
	return collectLedgerEntries(rows)
}

func statusStrings(statuses []domain.EntryStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func collectLedgerEntries(rows pgx.Rows) ([]domain.LedgerEntry, error) {
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", err)
	}
	return entries, nil
}

func scanLedgerEntry(row rowScanner) (*domain.LedgerEntry, error) {
	e := &domain.LedgerEntry{}
	err := row.Scan(
		&e.ID, &e.UserID, &e.Kind, &e.InvestmentID, &e.WithdrawalID, &e.AmountUSD, &e.Currency, &e.AmountCrypto,
		&e.RateSnapshot, &e.PlatformAddress, &e.UserAddress, &e.UserTxRef, &e.PlatformTxRef, &e.Status, &e.Description,
		&e.ProcessedBy, &e.CreatedAt, &e.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan ledger entry: %w", err)
	}
	return e, nil
}
