package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Plan is an investment product offered by the catalog.
type Plan struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	MinUSD        decimal.Decimal `json:"min_usd"`
	MaxUSD        decimal.Decimal `json:"max_usd"`
	DailyYieldPct decimal.Decimal `json:"daily_yield_pct"`
	DurationDays  int             `json:"duration_days"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
}

// TotalYieldPct is the undiscounted yield over the full term.
func (p *Plan) TotalYieldPct() decimal.Decimal {
	return p.DailyYieldPct.Mul(decimal.NewFromInt(int64(p.DurationDays)))
}

// AcceptsAmount reports whether amount lies within the plan's inclusive USD range.
func (p *Plan) AcceptsAmount(amount decimal.Decimal) bool {
	return !amount.LessThan(p.MinUSD) && !amount.GreaterThan(p.MaxUSD)
}

// SupportedCurrency describes a crypto currency the platform accepts or pays out.
type SupportedCurrency struct {
	Symbol                string          `json:"symbol"`
	Name                  string          `json:"name"`
	DepositAddress        string          `json:"deposit_address"`
	ActiveForInvestment   bool            `json:"active_for_investment"`
	ActiveForPayout       bool            `json:"active_for_payout"`
	MinInvestmentCrypto   decimal.Decimal `json:"min_investment_crypto"`
	MinWithdrawalCrypto   decimal.Decimal `json:"min_withdrawal_crypto"`
	ConfirmationsRequired int             `json:"confirmations_required"`
	Precision             int32           `json:"precision"`
}

// Rate is a USD price snapshot for one unit of a currency.
type Rate struct {
	Currency   string          `json:"currency"`
	USDPerUnit decimal.Decimal `json:"usd_per_unit"`
	AsOf       time.Time       `json:"as_of"`
	Stale      bool            `json:"stale,omitempty"`
}
