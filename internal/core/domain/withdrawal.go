package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WithdrawalStatus represents the lifecycle state of a withdrawal request.
type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "PENDING"
	WithdrawalStatusApproved   WithdrawalStatus = "APPROVED"
	WithdrawalStatusProcessing WithdrawalStatus = "PROCESSING"
	WithdrawalStatusCompleted  WithdrawalStatus = "COMPLETED"
	WithdrawalStatusRejected   WithdrawalStatus = "REJECTED"
	WithdrawalStatusCancelled  WithdrawalStatus = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s WithdrawalStatus) Valid() bool {
	switch s {
	case WithdrawalStatusPending, WithdrawalStatusApproved, WithdrawalStatusProcessing,
		WithdrawalStatusCompleted, WithdrawalStatusRejected, WithdrawalStatusCancelled:
		return true
	}
	return false
}

// LedgerStatus returns the ledger entry status matching a terminal withdrawal state.
func (s WithdrawalStatus) LedgerStatus() EntryStatus {
	switch s {
	case WithdrawalStatusCompleted, WithdrawalStatusApproved:
		return EntryStatusCompleted
	case WithdrawalStatusRejected:
		return EntryStatusRejected
	case WithdrawalStatusCancelled:
		return EntryStatusCancelled
	}
	return EntryStatusPending
}

// Withdrawal is a user's request to pay out eligible profit.
type Withdrawal struct {
	ID                 uuid.UUID           `json:"id"`
	UserID             uuid.UUID           `json:"user_id"`
	AmountUSD          decimal.Decimal     `json:"amount_usd"`
	Currency           string              `json:"currency"`
	PayoutAddress      string              `json:"payout_address"`
	Status             WithdrawalStatus    `json:"status"`
	AmountCrypto       decimal.NullDecimal `json:"amount_crypto"`
	RateSnapshot       decimal.NullDecimal `json:"rate_snapshot"`
	ApprovedBy         *uuid.UUID          `json:"approved_by,omitempty"`
	PlatformTxRef      *string             `json:"platform_tx_ref,omitempty"`
	RejectionReason    *string             `json:"rejection_reason,omitempty"`
	CancellationReason *string             `json:"cancellation_reason,omitempty"`
	RequestedAt        time.Time           `json:"requested_at"`
	ApprovedAt         *time.Time          `json:"approved_at,omitempty"`
	ProcessingAt       *time.Time          `json:"processing_at,omitempty"`
	CompletedAt        *time.Time          `json:"completed_at,omitempty"`
	RejectedAt         *time.Time          `json:"rejected_at,omitempty"`
	CancelledAt        *time.Time          `json:"cancelled_at,omitempty"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// NewWithdrawal builds a Pending withdrawal with a snapshot of the payout address.
func NewWithdrawal(userID uuid.UUID, amountUSD decimal.Decimal, currency, address string, now time.Time) *Withdrawal {
	return &Withdrawal{
		ID:            uuid.New(),
		UserID:        userID,
		AmountUSD:     amountUSD,
		Currency:      currency,
		PayoutAddress: address,
		Status:        WithdrawalStatusPending,
		RequestedAt:   now,
		UpdatedAt:     now,
	}
}

// WithdrawalDecision carries the fields written by an administrator or user
// decision on a Pending withdrawal.
type WithdrawalDecision struct {
	WithdrawalID  uuid.UUID
	Status        WithdrawalStatus
	ActorID       uuid.UUID
	AmountCrypto  decimal.NullDecimal
	RateSnapshot  decimal.NullDecimal
	PlatformTxRef *string
	Reason        *string
	At            time.Time
}

// Apply mirrors a persisted decision onto the in-memory entity.
func (w *Withdrawal) Apply(d WithdrawalDecision) {
	at := d.At
	actor := d.ActorID
	w.Status = d.Status
	w.UpdatedAt = at
	switch d.Status {
	case WithdrawalStatusCompleted:
		w.AmountCrypto = d.AmountCrypto
		w.RateSnapshot = d.RateSnapshot
		w.PlatformTxRef = d.PlatformTxRef
		w.ApprovedBy = &actor
		w.ApprovedAt = &at
		w.ProcessingAt = &at
		w.CompletedAt = &at
	case WithdrawalStatusRejected:
		w.ApprovedBy = &actor
		w.RejectionReason = d.Reason
		w.RejectedAt = &at
	case WithdrawalStatusCancelled:
		w.CancellationReason = d.Reason
		w.CancelledAt = &at
	}
}
