package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryKind represents the kind of money movement a ledger entry records.
type EntryKind string

const (
	EntryKindDeposit    EntryKind = "DEPOSIT"
	EntryKindROIPayout  EntryKind = "ROI_PAYOUT"
	EntryKindWithdrawal EntryKind = "WITHDRAWAL"
)

// EntryStatus represents the lifecycle state of a ledger entry.
type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "PENDING"
	EntryStatusVerified  EntryStatus = "VERIFIED"
	EntryStatusCompleted EntryStatus = "COMPLETED"
	EntryStatusRejected  EntryStatus = "REJECTED"
	EntryStatusCancelled EntryStatus = "CANCELLED"
)

// IsTerminal returns true if the entry can no longer change.
func (s EntryStatus) IsTerminal() bool {
	return s == EntryStatusCompleted || s == EntryStatusRejected || s == EntryStatusCancelled
}

// OpenEntryStatuses are the non-terminal states.
var OpenEntryStatuses = []EntryStatus{EntryStatusPending, EntryStatusVerified}

// ReservingEntryStatuses are the states whose amounts are held against the eligible balance.
var ReservingEntryStatuses = []EntryStatus{EntryStatusPending, EntryStatusVerified, EntryStatusCompleted}

// LedgerEntry is an append-only record of a money movement. Once its status is
// terminal the entry is immutable.
type LedgerEntry struct {
	ID              uuid.UUID           `json:"id"`
	UserID          uuid.UUID           `json:"user_id"`
	Kind            EntryKind           `json:"kind"`
	InvestmentID    *uuid.UUID          `json:"investment_id,omitempty"`
	WithdrawalID    *uuid.UUID          `json:"withdrawal_id,omitempty"`
	AmountUSD       decimal.Decimal     `json:"amount_usd"`
	Currency        string              `json:"currency"`
	AmountCrypto    decimal.NullDecimal `json:"amount_crypto"`
	RateSnapshot    decimal.NullDecimal `json:"rate_snapshot"`
	PlatformAddress *string             `json:"platform_address,omitempty"`
	UserAddress     *string             `json:"user_address,omitempty"`
	UserTxRef       *string             `json:"user_tx_ref,omitempty"`
	PlatformTxRef   *string             `json:"platform_tx_ref,omitempty"`
	Status          EntryStatus         `json:"status"`
	Description     string              `json:"description"`
	ProcessedBy     *uuid.UUID          `json:"processed_by,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	CompletedAt     *time.Time          `json:"completed_at,omitempty"`
}

// EffectiveAt is the instant the entry moved money: completion when set,
// otherwise creation.
func (e *LedgerEntry) EffectiveAt() time.Time {
	if e.CompletedAt != nil {
		return *e.CompletedAt
	}
	return e.CreatedAt
}

// SignedAmount returns the entry's contribution to a running USD balance.
func (e *LedgerEntry) SignedAmount() decimal.Decimal {
	if e.Kind == EntryKindWithdrawal {
		return e.AmountUSD.Neg()
	}
	return e.AmountUSD
}

// NewDepositEntry creates the Pending deposit that accompanies a new investment.
func NewDepositEntry(inv *Investment) *LedgerEntry {
	invID := inv.ID
	addr := inv.DepositAddress
	return &LedgerEntry{
		ID:              uuid.New(),
		UserID:          inv.UserID,
		Kind:            EntryKindDeposit,
		InvestmentID:    &invID,
		AmountUSD:       inv.InvestedAmountUSD,
		Currency:        inv.PaymentCurrency,
		AmountCrypto:    decimal.NewNullDecimal(inv.PaymentAmountCrypto),
		RateSnapshot:    decimal.NewNullDecimal(inv.RateSnapshot),
		PlatformAddress: &addr,
		UserTxRef:       inv.UserTxRef,
		Status:          EntryStatusPending,
		Description:     "Deposit for " + inv.PlanName + " investment",
		CreatedAt:       inv.CreatedAt,
	}
}

// NewROIPayoutEntry creates the Pending payout emitted when an investment matures.
func NewROIPayoutEntry(inv *Investment, currency string, now time.Time) *LedgerEntry {
	invID := inv.ID
	return &LedgerEntry{
		ID:           uuid.New(),
		UserID:       inv.UserID,
		Kind:         EntryKindROIPayout,
		InvestmentID: &invID,
		AmountUSD:    inv.ExpectedTotalProfitUSD,
		Currency:     currency,
		Status:       EntryStatusPending,
		Description:  "Profit from matured " + inv.PlanName + " investment",
		CreatedAt:    now,
	}
}

// NewWithdrawalEntry creates the Pending ledger entry owned by a withdrawal.
// Crypto amount and rate stay unset until approval.
func NewWithdrawalEntry(w *Withdrawal) *LedgerEntry {
	wID := w.ID
	addr := w.PayoutAddress
	return &LedgerEntry{
		ID:           uuid.New(),
		UserID:       w.UserID,
		Kind:         EntryKindWithdrawal,
		WithdrawalID: &wID,
		AmountUSD:    w.AmountUSD,
		Currency:     w.Currency,
		UserAddress:  &addr,
		Status:       EntryStatusPending,
		Description:  "Withdrawal request for $" + w.AmountUSD.StringFixed(2) + " via " + w.Currency,
		CreatedAt:    w.RequestedAt,
	}
}

// EntryFinalization carries the fields written when an entry reaches a new state.
type EntryFinalization struct {
	Status        EntryStatus
	AmountCrypto  decimal.NullDecimal
	RateSnapshot  decimal.NullDecimal
	UserTxRef     *string
	PlatformTxRef *string
	ProcessedBy   *uuid.UUID
	Description   *string
	At            time.Time
}
