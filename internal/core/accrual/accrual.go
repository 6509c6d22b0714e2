// Package accrual computes profit earned by an investment from elapsed whole
// days since activation. Every read path derives day counts from here.
package accrual

import (
	"time"

	"yield-ledger/internal/core/domain"
	"yield-ledger/pkg/money"

	"github.com/shopspring/decimal"
)

// ElapsedDays returns floor((min(asOf, maturity) - activation) / 1 day)
// clamped to [0, durationDays]. Never-activated investments have zero days.
func ElapsedDays(inv *domain.Investment, asOf time.Time) int {
	if inv.ActivatedAt == nil || asOf.Before(*inv.ActivatedAt) {
		return 0
	}
	end := asOf
	if inv.MaturesAt != nil && end.After(*inv.MaturesAt) {
		end = *inv.MaturesAt
	}
	days := int(end.Sub(*inv.ActivatedAt) / domain.Day)
	if days < 0 {
		return 0
	}
	if days > inv.DurationDays {
		return inv.DurationDays
	}
	return days
}

// AccruedProfit returns principal × dailyPct/100 × elapsed days, rounded to
// cents. At or after maturity it equals the expected total profit.
func AccruedProfit(inv *domain.Investment, asOf time.Time) decimal.Decimal {
	days := ElapsedDays(inv, asOf)
	if days == 0 {
		return decimal.Zero
	}
	raw := money.Percent(inv.InvestedAmountUSD, inv.DailyYieldPct)
	return money.RoundUSD(raw.Mul(decimal.NewFromInt(int64(days))))
}

// Progress is a point-in-time view of an investment's term.
type Progress struct {
	DaysElapsed            int             `json:"days_elapsed"`
	DaysRemaining          int             `json:"days_remaining"`
	PercentComplete        decimal.Decimal `json:"percent_complete"`
	AccruedProfitUSD       decimal.Decimal `json:"accrued_profit_usd"`
	CurrentValueUSD        decimal.Decimal `json:"current_value_usd"`
	ExpectedTotalProfitUSD decimal.Decimal `json:"expected_total_profit_usd"`
	ExpectedTotalReturnUSD decimal.Decimal `json:"expected_total_return_usd"`
	MaturesAt              *time.Time      `json:"matures_at,omitempty"`
}

// ProgressOf builds the progress view of inv at asOf.
func ProgressOf(inv *domain.Investment, asOf time.Time) Progress {
	elapsed := ElapsedDays(inv, asOf)
	accrued := AccruedProfit(inv, asOf)

	pct := decimal.Zero
	if inv.DurationDays > 0 {
		pct = decimal.NewFromInt(int64(elapsed)).
			Mul(decimal.NewFromInt(100)).
			DivRound(decimal.NewFromInt(int64(inv.DurationDays)), 2)
	}

	remaining := inv.DurationDays - elapsed
	if inv.ActivatedAt == nil {
		remaining = inv.DurationDays
	}

	return Progress{
		DaysElapsed:            elapsed,
		DaysRemaining:          remaining,
		PercentComplete:        pct,
		AccruedProfitUSD:       accrued,
		CurrentValueUSD:        money.RoundUSD(inv.InvestedAmountUSD.Add(accrued)),
		ExpectedTotalProfitUSD: inv.ExpectedTotalProfitUSD,
		ExpectedTotalReturnUSD: inv.ExpectedTotalReturnUSD,
		MaturesAt:              inv.MaturesAt,
	}
}
