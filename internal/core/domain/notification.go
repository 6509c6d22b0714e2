package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind identifies a user-facing lifecycle event.
type EventKind string

const (
	EventInvestmentCreated   EventKind = "investment.created"
	EventInvestmentActivated EventKind = "investment.activated"
	EventInvestmentCancelled EventKind = "investment.cancelled"
	EventInvestmentMatured   EventKind = "investment.matured"
	EventWithdrawalRequested EventKind = "withdrawal.requested"
	EventWithdrawalApproved  EventKind = "withdrawal.approved"
	EventWithdrawalRejected  EventKind = "withdrawal.rejected"
	EventWithdrawalCancelled EventKind = "withdrawal.cancelled"
)

// Notification is the envelope delivered to the notification endpoint.
type Notification struct {
	ID        uuid.UUID      `json:"id"`
	UserID    uuid.UUID      `json:"user_id"`
	Event     EventKind      `json:"event"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}
