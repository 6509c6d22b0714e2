package ports

import (
	"context"
	"time"

	"yield-ledger/internal/core/accrual"
	"yield-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Collaborator Ports ---

// RateProvider fetches a live USD price for one unit of currency.
type RateProvider interface {
	FetchRate(ctx context.Context, currency string) (*domain.Rate, error)
	Name() string
}

// RateCache stores rate snapshots with an expiry.
type RateCache interface {
	// Get returns the cached rate or nil when absent.
	Get(ctx context.Context, currency string) (*domain.Rate, error)
	Set(ctx context.Context, rate *domain.Rate, ttl time.Duration) error
	Delete(ctx context.Context, currency string) error
}

// RateOracle supplies USD conversion rates. GetRate never serves a stale
// value and is used by money-moving operations; GetRateAllowStale may.
type RateOracle interface {
	GetRate(ctx context.Context, currency string) (*domain.Rate, error)
	GetRateAllowStale(ctx context.Context, currency string) (*domain.Rate, error)
	Invalidate(ctx context.Context, currency string) error
}

// Notifier delivers user-facing events. Delivery failures never propagate.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, event domain.EventKind, payload map[string]any)
}

// IdentityProvider exposes the account facts the engine gates on.
type IdentityProvider interface {
	IsActive(ctx context.Context, userID uuid.UUID) (bool, error)
	IsEmailVerified(ctx context.Context, userID uuid.UUID) (bool, error)
	// GetPayoutAddress returns "" when no address is on file for currency.
	GetPayoutAddress(ctx context.Context, userID uuid.UUID, currency string) (string, error)
	// VerifyPin compares pin in constant time. It fails with a validation
	// error when no PIN has been set.
	VerifyPin(ctx context.Context, userID uuid.UUID, pin string) (bool, error)
	// PreferredPayoutCurrency returns "" when the user has no preference.
	PreferredPayoutCurrency(ctx context.Context, userID uuid.UUID) (string, error)
}

// PlanCatalog exposes plans and the currency registry.
type PlanCatalog interface {
	GetPlan(ctx context.Context, planID uuid.UUID) (*domain.Plan, error)
	ListActivePlans(ctx context.Context) ([]domain.Plan, error)
	GetCurrency(ctx context.Context, symbol string) (*domain.SupportedCurrency, error)
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string
}

// HashService handles PIN hashing (Argon2id).
type HashService interface {
	Hash(secret string) (string, error)
	Verify(secret string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID, role domain.Role) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Role   domain.Role
}

// NonceStore manages nonce uniqueness for replay attack prevention.
type NonceStore interface {
	// CheckAndSet atomically checks if nonce exists, sets it if not.
	// Returns true if nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, clientID string, nonce string, ttl time.Duration) (bool, error)
}

// --- Service Ports (Business Logic) ---

// InvestmentService owns the investment state machine.
type InvestmentService interface {
	Create(ctx context.Context, req CreateInvestmentRequest) (*CreateInvestmentResult, error)
	VerifyAndActivate(ctx context.Context, req VerifyInvestmentRequest) (*domain.Investment, error)
	CancelPending(ctx context.Context, adminID, investmentID uuid.UUID, reason string) (*domain.Investment, error)
	SubmitUserTxRef(ctx context.Context, userID, investmentID uuid.UUID, ref string) (*domain.Investment, error)
	Get(ctx context.Context, userID, investmentID uuid.UUID) (*InvestmentView, error)
	List(ctx context.Context, userID uuid.UUID, params ListParams) ([]InvestmentView, int64, error)
}

// CreateInvestmentRequest holds validated input for a new investment.
type CreateInvestmentRequest struct {
	UserID    uuid.UUID
	PlanID    uuid.UUID
	AmountUSD decimal.Decimal
	Currency  string
	UserTxRef *string
}

// PaymentInstructions tells the user what to send and where.
type PaymentInstructions struct {
	AmountCrypto          decimal.Decimal `json:"amount_crypto"`
	Currency              string          `json:"currency"`
	DepositAddress        string          `json:"deposit_address"`
	AmountUSD             decimal.Decimal `json:"amount_usd"`
	RateUSDPerUnit        decimal.Decimal `json:"rate_usd_per_unit"`
	RateAsOf              time.Time       `json:"rate_as_of"`
	ConfirmationsRequired int             `json:"confirmations_required"`
}

// CreateInvestmentResult is returned by InvestmentService.Create.
type CreateInvestmentResult struct {
	Investment   *domain.Investment
	Instructions PaymentInstructions
}

// VerifyInvestmentRequest holds an administrator's funds confirmation.
type VerifyInvestmentRequest struct {
	AdminID               uuid.UUID
	InvestmentID          uuid.UUID
	ConfirmedAmountCrypto decimal.Decimal
	ConfirmedTxRef        string
}

// InvestmentView pairs an investment with its accrual progress.
type InvestmentView struct {
	Investment domain.Investment
	Progress   accrual.Progress
}

// SweepService runs the maturity sweep.
type SweepService interface {
	Run(ctx context.Context) (*SweepReport, error)
}

// SweepItemError records a per-investment sweep failure.
type SweepItemError struct {
	InvestmentID uuid.UUID `json:"investment_id"`
	Error        string    `json:"error"`
}

// SweepReport summarizes one sweep run.
type SweepReport struct {
	Scanned    int              `json:"scanned"`
	Processed  int              `json:"processed"`
	Skipped    int              `json:"skipped"`
	Errors     []SweepItemError `json:"errors"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// WithdrawalService owns eligibility and user-side withdrawal operations.
type WithdrawalService interface {
	EligibleBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	Request(ctx context.Context, req WithdrawalRequest) (*domain.Withdrawal, error)
	Cancel(ctx context.Context, userID, withdrawalID uuid.UUID, reason string) (*domain.Withdrawal, error)
	List(ctx context.Context, userID uuid.UUID, params ListParams) ([]domain.Withdrawal, int64, error)
}

// WithdrawalRequest holds validated input for a withdrawal request.
type WithdrawalRequest struct {
	UserID        uuid.UUID
	AmountUSD     decimal.Decimal
	Currency      string
	Pin           string
	PayoutAddress string // optional; must match the address on file when set
}

// ApprovalService finalizes withdrawals as one unit of work.
type ApprovalService interface {
	Approve(ctx context.Context, adminID, withdrawalID uuid.UUID, platformTxRef string) (*domain.Withdrawal, error)
	Reject(ctx context.Context, adminID, withdrawalID uuid.UUID, reason string) (*domain.Withdrawal, error)
	ListQueue(ctx context.Context, status *domain.WithdrawalStatus, params ListParams) ([]domain.Withdrawal, int64, error)
}

// PortfolioService serves read-only valuation.
type PortfolioService interface {
	ReconstructHistory(ctx context.Context, userID uuid.UUID, windowDays int) (*PortfolioHistory, error)
	ListLedger(ctx context.Context, userID uuid.UUID, params ListParams) ([]domain.LedgerEntry, int64, error)
}

// PortfolioPoint is the end-of-day ledger balance for one day.
type PortfolioPoint struct {
	Date       time.Time       `json:"date"`
	BalanceUSD decimal.Decimal `json:"balance_usd"`
}

// Holding is the live valuation of one Active investment.
type Holding struct {
	InvestmentID     uuid.UUID       `json:"investment_id"`
	PlanName         string          `json:"plan_name"`
	Currency         string          `json:"currency"`
	PrincipalCrypto  decimal.Decimal `json:"principal_crypto"`
	PrincipalUSD     decimal.Decimal `json:"principal_usd"`
	AccruedProfitUSD decimal.Decimal `json:"accrued_profit_usd"`
	MarketValueUSD   decimal.Decimal `json:"market_value_usd"`
	RateUSDPerUnit   decimal.Decimal `json:"rate_usd_per_unit"`
	RateStale        bool            `json:"rate_stale"`
	RateUnavailable  bool            `json:"rate_unavailable"`
}

// PortfolioHistory is the result of ReconstructHistory.
type PortfolioHistory struct {
	WindowDays         int              `json:"window_days"`
	Points             []PortfolioPoint `json:"points"`
	LedgerBalanceUSD   decimal.Decimal  `json:"ledger_balance_usd"`
	ActiveAccruedUSD   decimal.Decimal  `json:"active_accrued_usd"`
	EligibleBalanceUSD decimal.Decimal  `json:"eligible_balance_usd"`
	UnsettledProfitUSD decimal.Decimal  `json:"unsettled_profit_usd"`
	CurrentValueUSD    decimal.Decimal  `json:"current_value_usd"`
	Holdings           []Holding        `json:"holdings"`
	AsOf               time.Time        `json:"as_of"`
}

// AuditService records audit log entries.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
