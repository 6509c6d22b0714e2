package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"yield-ledger/internal/core/accrual"
	"yield-ledger/internal/core/domain"
	"yield-ledger/internal/core/ports"
	"yield-ledger/pkg/apperror"
	"yield-ledger/pkg/logger"
	"yield-ledger/pkg/money"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// InvestmentServiceImpl implements ports.InvestmentService. Every transition
// is a conditional update; the loser of a race gets CON_002.
type InvestmentServiceImpl struct {
	invRepo    ports.InvestmentRepository
	ledgerRepo ports.LedgerRepository
	catalog    ports.PlanCatalog
	identity   ports.IdentityProvider
	rates      ports.RateOracle
	notifier   ports.Notifier
	transactor ports.DBTransactor
	log        zerolog.Logger
	now        func() time.Time
}

// NewInvestmentService creates a new InvestmentServiceImpl.
func NewInvestmentService(
	invRepo ports.InvestmentRepository,
	ledgerRepo ports.LedgerRepository,
	catalog ports.PlanCatalog,
	identity ports.IdentityProvider,
	rates ports.RateOracle,
	notifier ports.Notifier,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *InvestmentServiceImpl {
	return &InvestmentServiceImpl{
		invRepo:    invRepo,
		ledgerRepo: ledgerRepo,
		catalog:    catalog,
		identity:   identity,
		rates:      rates,
		notifier:   notifier,
		transactor: transactor,
		log:        logger.Component(log, "investment"),
		now:        time.Now,
	}
}

// Create validates the request against the plan and currency, snapshots a
// fresh rate and persists the investment with its Pending deposit entry.
func (s *InvestmentServiceImpl) Create(ctx context.Context, req ports.CreateInvestmentRequest) (*ports.CreateInvestmentResult, error) {
	if !money.IsUSDAmount(req.AmountUSD) {
		return nil, apperror.ErrInvalidAmount()
	}

	active, err := s.identity.IsActive(ctx, req.UserID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check account: %w", err))
	}
	if !active {
		return nil, apperror.ErrAccountNotEligible("Account is not active")
	}

	plan, err := s.catalog.GetPlan(ctx, req.PlanID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if plan == nil || !plan.IsActive {
		return nil, apperror.ErrNotFound("Plan")
	}
	if !plan.AcceptsAmount(req.AmountUSD) {
		return nil, apperror.ErrAmountOutOfPlanRange(
			money.FormatUSD(req.AmountUSD), money.FormatUSD(plan.MinUSD), money.FormatUSD(plan.MaxUSD))
	}

	symbol := strings.ToUpper(strings.TrimSpace(req.Currency))
	cur, err := s.catalog.GetCurrency(ctx, symbol)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if cur == nil || !cur.ActiveForInvestment {
		return nil, apperror.ErrNotFound("Currency")
	}

	rate, err := s.rates.GetRate(ctx, symbol)
	if err != nil {
		return nil, err
	}

	amountCrypto := money.ToCrypto(req.AmountUSD, rate.USDPerUnit, precisionOf(cur))
	if amountCrypto.LessThan(cur.MinInvestmentCrypto) {
		return nil, apperror.ErrBelowMinimumCrypto(amountCrypto.String(), cur.MinInvestmentCrypto.String(), symbol)
	}

	inv := domain.NewInvestment(domain.NewInvestmentParams{
		UserID:         req.UserID,
		Plan:           *plan,
		AmountUSD:      req.AmountUSD,
		Currency:       symbol,
		AmountCrypto:   amountCrypto,
		Rate:           *rate,
		DepositAddress: cur.DepositAddress,
		UserTxRef:      optionalRef(req.UserTxRef),
		Now:            s.now().UTC(),
	})
	deposit := domain.NewDepositEntry(inv)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.invRepo.Create(ctx, dbTx, inv); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create investment: %w", err))
	}
	if err := s.ledgerRepo.Create(ctx, dbTx, deposit); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create deposit entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("investment_id", inv.ID.String()).
		Str("user_id", inv.UserID.String()).
		Str("plan", inv.PlanName).
		Str("amount_usd", money.FormatUSD(inv.InvestedAmountUSD)).
		Str("currency", symbol).
		Msg("investment created")

	s.notifier.Notify(ctx, inv.UserID, domain.EventInvestmentCreated, map[string]any{
		"investment_id": inv.ID.String(),
		"plan":          inv.PlanName,
		"amount_usd":    money.FormatUSD(inv.InvestedAmountUSD),
		"amount_crypto": amountCrypto.String(),
		"currency":      symbol,
	})

	return &ports.CreateInvestmentResult{
		Investment: inv,
		Instructions: ports.PaymentInstructions{
			AmountCrypto:          amountCrypto,
			Currency:              symbol,
			DepositAddress:        cur.DepositAddress,
			AmountUSD:             inv.InvestedAmountUSD,
			RateUSDPerUnit:        rate.USDPerUnit,
			RateAsOf:              rate.AsOf,
			ConfirmationsRequired: cur.ConfirmationsRequired,
		},
	}, nil
}

// VerifyAndActivate confirms the deposit and starts the investment's term.
func (s *InvestmentServiceImpl) VerifyAndActivate(ctx context.Context, req ports.VerifyInvestmentRequest) (*domain.Investment, error) {
	if !req.ConfirmedAmountCrypto.IsPositive() {
		return nil, apperror.Validation("Confirmed crypto amount must be positive")
	}
	ref := strings.TrimSpace(req.ConfirmedTxRef)
	if ref == "" {
		return nil, apperror.Validation("Confirmed transaction reference is required")
	}

	inv, err := s.pending(ctx, req.InvestmentID, domain.InvestmentStatusActive)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	act := inv.PlanActivation(req.AdminID, req.ConfirmedAmountCrypto, ref, now)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	ok, err := s.invRepo.Activate(ctx, dbTx, inv.ID, act)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("activate investment: %w", err))
	}
	if !ok {
		return nil, apperror.ErrConcurrentUpdate("Investment")
	}

	admin := req.AdminID
	if err := s.finalizeDeposit(ctx, dbTx, inv.ID, domain.EntryFinalization{
		Status:       domain.EntryStatusVerified,
		AmountCrypto: decimal.NewNullDecimal(req.ConfirmedAmountCrypto),
		UserTxRef:    &ref,
		ProcessedBy:  &admin,
		At:           now,
	}); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	inv.ApplyActivation(act)

	s.log.Info().
		Str("investment_id", inv.ID.String()).
		Str("admin_id", admin.String()).
		Time("matures_at", act.MaturesAt).
		Msg("investment activated")

	s.notifier.Notify(ctx, inv.UserID, domain.EventInvestmentActivated, map[string]any{
		"investment_id": inv.ID.String(),
		"matures_at":    act.MaturesAt,
	})

	return inv, nil
}

// CancelPending cancels a never-activated investment and voids its deposit.
// The row is kept with the cancellation recorded in its admin notes.
func (s *InvestmentServiceImpl) CancelPending(ctx context.Context, adminID, investmentID uuid.UUID, reason string) (*domain.Investment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.Validation("Cancellation reason is required")
	}

	inv, err := s.pending(ctx, investmentID, domain.InvestmentStatusCancelled)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	note := domain.CancellationNote(adminID, reason)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	ok, err := s.invRepo.Cancel(ctx, dbTx, inv.ID, note, now)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("cancel investment: %w", err))
	}
	if !ok {
		return nil, apperror.ErrConcurrentUpdate("Investment")
	}

	if err := s.finalizeDeposit(ctx, dbTx, inv.ID, domain.EntryFinalization{
		Status:      domain.EntryStatusCancelled,
		ProcessedBy: &adminID,
		Description: &note,
		At:          now,
	}); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	inv.Status = domain.InvestmentStatusCancelled
	inv.AdminNotes = &note
	inv.UpdatedAt = now

	s.log.Info().
		Str("investment_id", inv.ID.String()).
		Str("admin_id", adminID.String()).
		Msg("investment cancelled")

	s.notifier.Notify(ctx, inv.UserID, domain.EventInvestmentCancelled, map[string]any{
		"investment_id": inv.ID.String(),
		"reason":        reason,
	})

	return inv, nil
}

// SubmitUserTxRef records the user's on-chain reference on the investment
// and its deposit entry.
func (s *InvestmentServiceImpl) SubmitUserTxRef(ctx context.Context, userID, investmentID uuid.UUID, ref string) (*domain.Investment, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, apperror.Validation("Transaction reference is required")
	}

	inv, err := s.owned(ctx, userID, investmentID)
	if err != nil {
		return nil, err
	}
	if inv.Status != domain.InvestmentStatusPendingVerification {
		return nil, apperror.ErrInvalidTransition("Investment", string(inv.Status))
	}

	now := s.now().UTC()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	ok, err := s.invRepo.UpdateUserTxRef(ctx, dbTx, inv.ID, ref, now)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update investment tx ref: %w", err))
	}
	if !ok {
		return nil, apperror.ErrConcurrentUpdate("Investment")
	}

	deposit, err := s.ledgerRepo.GetByInvestmentID(ctx, dbTx, inv.ID, domain.EntryKindDeposit)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get deposit entry: %w", err))
	}
	if deposit == nil {
		return nil, inconsistent(s.log, errors.New("deposit entry missing"), map[string]any{"investment_id": inv.ID.String()})
	}
	ok, err = s.ledgerRepo.UpdateUserTxRef(ctx, dbTx, deposit.ID, ref)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update deposit tx ref: %w", err))
	}
	if !ok {
		return nil, inconsistent(s.log, fmt.Errorf("deposit entry %s is %s", deposit.ID, deposit.Status),
			map[string]any{"investment_id": inv.ID.String(), "entry_id": deposit.ID.String()})
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	inv.UserTxRef = &ref
	inv.UpdatedAt = now

	s.log.Info().Str("investment_id", inv.ID.String()).Msg("user tx reference submitted")
	return inv, nil
}

// Get returns one of the user's investments with its accrual progress.
func (s *InvestmentServiceImpl) Get(ctx context.Context, userID, investmentID uuid.UUID) (*ports.InvestmentView, error) {
	inv, err := s.owned(ctx, userID, investmentID)
	if err != nil {
		return nil, err
	}
	return &ports.InvestmentView{Investment: *inv, Progress: accrual.ProgressOf(inv, s.now())}, nil
}

func (s *InvestmentServiceImpl) List(ctx context.Context, userID uuid.UUID, params ports.ListParams) ([]ports.InvestmentView, int64, error) {
	invs, total, err := s.invRepo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}

	now := s.now()
	views := make([]ports.InvestmentView, 0, len(invs))
	for i := range invs {
		views = append(views, ports.InvestmentView{Investment: invs[i], Progress: accrual.ProgressOf(&invs[i], now)})
	}
	return views, total, nil
}

// pending loads an investment that the state machine allows to move to next.
func (s *InvestmentServiceImpl) pending(ctx context.Context, id uuid.UUID, next domain.InvestmentStatus) (*domain.Investment, error) {
	inv, err := s.invRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if inv == nil {
		return nil, apperror.ErrNotFound("Investment")
	}
	if !inv.Status.CanTransitionTo(next) {
		return nil, apperror.ErrInvalidTransition("Investment", string(inv.Status))
	}
	return inv, nil
}

func (s *InvestmentServiceImpl) owned(ctx context.Context, userID, id uuid.UUID) (*domain.Investment, error) {
	inv, err := s.invRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if inv == nil || inv.UserID != userID {
		return nil, apperror.ErrNotFound("Investment")
	}
	return inv, nil
}

// finalizeDeposit moves the investment's Pending deposit entry to f.Status.
// A missing or already-final deposit is an inconsistency.
func (s *InvestmentServiceImpl) finalizeDeposit(ctx context.Context, dbTx pgx.Tx, investmentID uuid.UUID, f domain.EntryFinalization) error {
	deposit, err := s.ledgerRepo.GetByInvestmentID(ctx, dbTx, investmentID, domain.EntryKindDeposit)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get deposit entry: %w", err))
	}
	if deposit == nil {
		return inconsistent(s.log, errors.New("deposit entry missing"), map[string]any{"investment_id": investmentID.String()})
	}
	if deposit.Status.IsTerminal() {
		return inconsistent(s.log, fmt.Errorf("deposit entry %s is already %s", deposit.ID, deposit.Status),
			map[string]any{"investment_id": investmentID.String(), "entry_id": deposit.ID.String()})
	}

	ok, err := s.ledgerRepo.Finalize(ctx, dbTx, deposit.ID, domain.EntryStatusPending, f)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("finalize deposit entry: %w", err))
	}
	if !ok {
		return inconsistent(s.log, fmt.Errorf("deposit entry %s is %s, expected %s", deposit.ID, deposit.Status, domain.EntryStatusPending),
			map[string]any{"investment_id": investmentID.String(), "entry_id": deposit.ID.String()})
	}
	return nil
}

func precisionOf(c *domain.SupportedCurrency) int32 {
	if c.Precision > 0 {
		return c.Precision
	}
	return money.CryptoPlaces(c.Symbol)
}

func optionalRef(ref *string) *string {
	if ref == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*ref)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
