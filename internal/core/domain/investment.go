package domain

import (
	"time"

	"yield-ledger/pkg/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Day is the accrual unit. Maturity and elapsed-day arithmetic use fixed
// 24-hour days, independent of calendar or DST boundaries.
const Day = 24 * time.Hour

// InvestmentStatus represents the lifecycle state of an investment.
type InvestmentStatus string

const (
	InvestmentStatusPendingVerification InvestmentStatus = "PENDING_VERIFICATION"
	InvestmentStatusActive              InvestmentStatus = "ACTIVE"
	InvestmentStatusMatured             InvestmentStatus = "MATURED"
	InvestmentStatusWithdrawn           InvestmentStatus = "WITHDRAWN"
	InvestmentStatusCancelled           InvestmentStatus = "CANCELLED"
)

var investmentTransitions = map[InvestmentStatus][]InvestmentStatus{
	InvestmentStatusPendingVerification: {InvestmentStatusActive, InvestmentStatusCancelled},
	InvestmentStatusActive:              {InvestmentStatusMatured},
	InvestmentStatusMatured:             {InvestmentStatusWithdrawn},
}

// CanTransitionTo reports whether the state machine permits moving from s to next.
func (s InvestmentStatus) CanTransitionTo(next InvestmentStatus) bool {
	for _, allowed := range investmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s InvestmentStatus) Valid() bool {
	switch s {
	case InvestmentStatusPendingVerification, InvestmentStatusActive, InvestmentStatusMatured,
		InvestmentStatusWithdrawn, InvestmentStatusCancelled:
		return true
	}
	return false
}

// Investment is a user's fixed-term, fixed-yield pledge against a plan.
// Plan, rate and amount fields are snapshots taken at creation and never change.
type Investment struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
	PlanID uuid.UUID `json:"plan_id"`

	PlanName            string          `json:"plan_name"`
	DailyYieldPct       decimal.Decimal `json:"daily_yield_pct"`
	DurationDays        int             `json:"duration_days"`
	InvestedAmountUSD   decimal.Decimal `json:"invested_amount_usd"`
	PaymentCurrency     string          `json:"payment_currency"`
	PaymentAmountCrypto decimal.Decimal `json:"payment_amount_crypto"`
	RateSnapshot        decimal.Decimal `json:"rate_snapshot"`
	RateAsOf            time.Time       `json:"rate_as_of"`
	DepositAddress      string          `json:"deposit_address"`

	ExpectedDailyProfitUSD decimal.Decimal `json:"expected_daily_profit_usd"`
	ExpectedTotalProfitUSD decimal.Decimal `json:"expected_total_profit_usd"`
	ExpectedTotalReturnUSD decimal.Decimal `json:"expected_total_return_usd"`

	Status                InvestmentStatus    `json:"status"`
	UserTxRef             *string             `json:"user_tx_ref,omitempty"`
	ConfirmedAmountCrypto decimal.NullDecimal `json:"confirmed_amount_crypto"`
	ActivatedAt           *time.Time          `json:"activated_at,omitempty"`
	MaturesAt             *time.Time          `json:"matures_at,omitempty"`
	VerifiedBy            *uuid.UUID          `json:"verified_by,omitempty"`
	VerifiedAt            *time.Time          `json:"verified_at,omitempty"`
	AdminNotes            *string             `json:"admin_notes,omitempty"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

// NewInvestmentParams carries the inputs captured when an investment is created.
type NewInvestmentParams struct {
	UserID         uuid.UUID
	Plan           Plan
	AmountUSD      decimal.Decimal
	Currency       string
	AmountCrypto   decimal.Decimal
	Rate           Rate
	DepositAddress string
	UserTxRef      *string
	Now            time.Time
}

// NewInvestment builds a PendingVerification investment and computes its
// expected profit figures once from the plan snapshot.
func NewInvestment(p NewInvestmentParams) *Investment {
	daily, total, ret := ExpectedReturns(p.AmountUSD, p.Plan.DailyYieldPct, p.Plan.DurationDays)
	return &Investment{
		ID:                     uuid.New(),
		UserID:                 p.UserID,
		PlanID:                 p.Plan.ID,
		PlanName:               p.Plan.Name,
		DailyYieldPct:          p.Plan.DailyYieldPct,
		DurationDays:           p.Plan.DurationDays,
		InvestedAmountUSD:      p.AmountUSD,
		PaymentCurrency:        p.Currency,
		PaymentAmountCrypto:    p.AmountCrypto,
		RateSnapshot:           p.Rate.USDPerUnit,
		RateAsOf:               p.Rate.AsOf,
		DepositAddress:         p.DepositAddress,
		ExpectedDailyProfitUSD: daily,
		ExpectedTotalProfitUSD: total,
		ExpectedTotalReturnUSD: ret,
		Status:                 InvestmentStatusPendingVerification,
		UserTxRef:              p.UserTxRef,
		CreatedAt:              p.Now,
		UpdatedAt:              p.Now,
	}
}

// ExpectedReturns computes daily profit, total profit and total return for a
// principal at dailyPct for days, each rounded to cents.
func ExpectedReturns(principal, dailyPct decimal.Decimal, days int) (daily, total, ret decimal.Decimal) {
	raw := money.Percent(principal, dailyPct)
	daily = money.RoundUSD(raw)
	total = money.RoundUSD(raw.Mul(decimal.NewFromInt(int64(days))))
	ret = money.RoundUSD(principal.Add(total))
	return daily, total, ret
}

// MaturityFor derives the maturity instant from an activation instant.
func MaturityFor(activatedAt time.Time, durationDays int) time.Time {
	return activatedAt.Add(time.Duration(durationDays) * Day)
}

// Activation holds the fields written when an administrator confirms funds.
type Activation struct {
	ActivatedAt           time.Time
	MaturesAt             time.Time
	VerifiedBy            uuid.UUID
	ConfirmedAmountCrypto decimal.Decimal
	TxRef                 string
}

// PlanActivation computes the activation for this investment at now. The
// maturity instant is always recomputed from the activation instant.
func (i *Investment) PlanActivation(adminID uuid.UUID, confirmed decimal.Decimal, txRef string, now time.Time) Activation {
	return Activation{
		ActivatedAt:           now,
		MaturesAt:             MaturityFor(now, i.DurationDays),
		VerifiedBy:            adminID,
		ConfirmedAmountCrypto: confirmed,
		TxRef:                 txRef,
	}
}

// ApplyActivation mirrors a persisted activation onto the in-memory entity.
func (i *Investment) ApplyActivation(a Activation) {
	activated, matures, admin := a.ActivatedAt, a.MaturesAt, a.VerifiedBy
	ref := a.TxRef
	i.Status = InvestmentStatusActive
	i.ActivatedAt = &activated
	i.MaturesAt = &matures
	i.VerifiedBy = &admin
	i.VerifiedAt = &activated
	i.ConfirmedAmountCrypto = decimal.NewNullDecimal(a.ConfirmedAmountCrypto)
	i.UserTxRef = &ref
	i.UpdatedAt = activated
}

// IsDue reports whether an Active investment has reached its maturity instant.
func (i *Investment) IsDue(now time.Time) bool {
	return i.Status == InvestmentStatusActive && i.MaturesAt != nil && !now.Before(*i.MaturesAt)
}

// PrincipalCrypto returns the confirmed crypto amount when verified, otherwise
// the amount quoted at creation.
func (i *Investment) PrincipalCrypto() decimal.Decimal {
	if i.ConfirmedAmountCrypto.Valid {
		return i.ConfirmedAmountCrypto.Decimal
	}
	return i.PaymentAmountCrypto
}

// CancellationNote formats the admin note recorded on cancellation.
func CancellationNote(adminID uuid.UUID, reason string) string {
	return "Cancelled by admin " + adminID.String() + ". Reason: " + reason
}
