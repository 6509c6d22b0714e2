package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited administrator action.
type AuditAction string

const (
	AuditActionVerifyInvestment  AuditAction = "VERIFY_INVESTMENT"
	AuditActionCancelInvestment  AuditAction = "CANCEL_INVESTMENT"
	AuditActionApproveWithdrawal AuditAction = "APPROVE_WITHDRAWAL"
	AuditActionRejectWithdrawal  AuditAction = "REJECT_WITHDRAWAL"
	AuditActionRunSweep          AuditAction = "RUN_SWEEP"
	AuditActionInvalidateRate    AuditAction = "INVALIDATE_RATE"
	AuditActionUnknown           AuditAction = "UNKNOWN"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      *uuid.UUID  `json:"actor_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
