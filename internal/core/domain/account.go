package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccountStatus represents the state of an investor account.
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "ACTIVE"
	AccountStatusSuspended AccountStatus = "SUSPENDED"
	AccountStatusClosed    AccountStatus = "CLOSED"
)

// Account is the identity record consulted by the engine.
type Account struct {
	ID                      uuid.UUID     `json:"id"`
	Email                   string        `json:"email"`
	Status                  AccountStatus `json:"status"`
	EmailVerified           bool          `json:"email_verified"`
	PinHash                 *string       `json:"-"`
	PreferredPayoutCurrency *string       `json:"preferred_payout_currency,omitempty"`
	CreatedAt               time.Time     `json:"created_at"`
	UpdatedAt               time.Time     `json:"updated_at"`
}

// IsActive returns true if the account is active.
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// HasPin returns true once a payout PIN has been set.
func (a *Account) HasPin() bool {
	return a.PinHash != nil && *a.PinHash != ""
}

// Role distinguishes investors from administrators in bearer tokens.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)
