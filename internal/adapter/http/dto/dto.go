package dto

import (
	"time"

	"yield-ledger/internal/core/accrual"
	"yield-ledger/internal/core/domain"
	"yield-ledger/internal/core/ports"

	"github.com/shopspring/decimal"
)

// Money fields are decimal strings so that values like "0.1" keep their
// exact meaning on the wire.

// CreateInvestmentRequest is the request body for POST /investments.
type CreateInvestmentRequest struct {
	PlanID    string  `json:"plan_id" binding:"required,uuid"`
	AmountUSD string  `json:"amount_usd" binding:"required,decimal_str"`
	Currency  string  `json:"currency" binding:"required,min=2,max=10,alphanum"`
	UserTxRef *string `json:"user_tx_ref,omitempty" binding:"omitempty,max=200,safe_id"`
}

// SubmitTxRefRequest is the request body for PUT /investments/:id/tx-ref.
type SubmitTxRefRequest struct {
	TxRef string `json:"tx_ref" binding:"required,max=200,safe_id"`
}

// VerifyInvestmentRequest is the request body for the admin verify route.
type VerifyInvestmentRequest struct {
	ConfirmedAmountCrypto string `json:"confirmed_amount_crypto" binding:"required,decimal_str"`
	ConfirmedTxRef        string `json:"confirmed_tx_ref" binding:"required,max=200,safe_id"`
}

// ReasonRequest carries a mandatory free-text reason.
type ReasonRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// CancelWithdrawalRequest carries an optional user-supplied reason.
type CancelWithdrawalRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// CreateWithdrawalRequest is the request body for POST /withdrawals.
type CreateWithdrawalRequest struct {
	AmountUSD     string `json:"amount_usd" binding:"required,decimal_str"`
	Currency      string `json:"currency" binding:"required,min=2,max=10,alphanum"`
	Pin           string `json:"pin" binding:"required,min=4,max=12,numeric"`
	PayoutAddress string `json:"payout_address,omitempty" binding:"omitempty,max=128,safe_id"`
}

// ApproveWithdrawalRequest is the request body for the admin approve route.
type ApproveWithdrawalRequest struct {
	PlatformTxRef string `json:"platform_tx_ref" binding:"required,max=200,safe_id"`
}

// CreateInvestmentResponse is returned by POST /investments.
type CreateInvestmentResponse struct {
	Investment          *domain.Investment        `json:"investment"`
	PaymentInstructions ports.PaymentInstructions `json:"payment_instructions"`
}

// InvestmentResponse pairs an investment with its accrual progress.
type InvestmentResponse struct {
	domain.Investment
	Progress accrual.Progress `json:"progress"`
}

// BalanceResponse is returned by GET /withdrawals/balance.
type BalanceResponse struct {
	EligibleBalanceUSD decimal.Decimal `json:"eligible_balance_usd"`
	AsOf               time.Time       `json:"as_of"`
}

// ToInvestmentResponse flattens an InvestmentView for the wire.
func ToInvestmentResponse(v ports.InvestmentView) InvestmentResponse {
	return InvestmentResponse{Investment: v.Investment, Progress: v.Progress}
}

// ToInvestmentResponses converts a page of views.
func ToInvestmentResponses(views []ports.InvestmentView) []InvestmentResponse {
	out := make([]InvestmentResponse, 0, len(views))
	for _, v := range views {
		out = append(out, ToInvestmentResponse(v))
	}
	return out
}
