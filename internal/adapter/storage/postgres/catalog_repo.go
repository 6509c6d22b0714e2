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

const (
	planColumns     = `id, name, min_usd, max_usd, daily_yield_pct, duration_days, is_active, created_at`
	currencyColumns = `symbol, name, deposit_address, active_for_investment, active_for_payout,
	min_investment_crypto, min_withdrawal_crypto, confirmations_required, precision`
)

// PlanRepo implements ports.PlanRepository.
type PlanRepo struct {
	pool Pool
}

// NewPlanRepo creates a new PlanRepo.
func NewPlanRepo(pool Pool) *PlanRepo {
	return &PlanRepo{pool: pool}
}

// GetByID fetches a plan regardless of its active flag.
func (r *PlanRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1`
	return scanPlan(r.pool.QueryRow(ctx, query, id))
}

// ListActive returns active plans ordered by minimum amount.
func (r *PlanRepo) ListActive(ctx context.Context) ([]domain.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE is_active ORDER BY min_usd, name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []domain.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plan rows: %w", err)
	}
	return plans, nil
}

func scanPlan(row rowScanner) (*domain.Plan, error) {
	p := &domain.Plan{}
	err := row.Scan(&p.ID, &p.Name, &p.MinUSD, &p.MaxUSD, &p.DailyYieldPct, &p.DurationDays, &p.IsActive, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan plan: %w", err)
	}
	return p, nil
}

// CurrencyRepo implements ports.CurrencyRepository.
type CurrencyRepo struct {
	pool Pool
}

// NewCurrencyRepo creates a new CurrencyRepo.
func NewCurrencyRepo(pool Pool) *CurrencyRepo {
	return &CurrencyRepo{pool: pool}
}

// GetBySymbol fetches a currency by its ticker symbol.
func (r *CurrencyRepo) GetBySymbol(ctx context.Context, symbol string) (*domain.SupportedCurrency, error) {
	query := `SELECT ` + currencyColumns + ` FROM supported_currencies WHERE symbol = $1`
	return scanCurrency(r.pool.QueryRow(ctx, query, strings.ToUpper(symbol)))
}

// ListActive returns currencies active for investment or payout.
func (r *CurrencyRepo) ListActive(ctx context.Context) ([]domain.SupportedCurrency, error) {
	query := `SELECT ` + currencyColumns + ` FROM supported_currencies
		WHERE active_for_investment OR active_for_payout ORDER BY symbol`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list currencies: %w", err)
	}
	defer rows.Close()

	var out []domain.SupportedCurrency
	for rows.Next() {
		c, err := scanCurrency(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate currency rows: %w", err)
	}
	return out, nil
}

func scanCurrency(row rowScanner) (*domain.SupportedCurrency, error) {
	c := &domain.SupportedCurrency{}
	err := row.Scan(
		&c.Symbol, &c.Name, &c.DepositAddress, &c.ActiveForInvestment, &c.ActiveForPayout,
		&c.MinInvestmentCrypto, &c.MinWithdrawalCrypto, &c.ConfirmationsRequired, &c.Precision,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan currency: %w", err)
	}
	return c, nil
}
