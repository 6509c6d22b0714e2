package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

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

// WithdrawalServiceImpl implements ports.WithdrawalService.
type WithdrawalServiceImpl struct {
	invRepo        ports.InvestmentRepository
	ledgerRepo     ports.LedgerRepository
	withdrawalRepo ports.WithdrawalRepository
	catalog        ports.PlanCatalog
	identity       ports.IdentityProvider
	notifier       ports.Notifier
	transactor     ports.DBTransactor
	log            zerolog.Logger
	now            func() time.Time
}

// NewWithdrawalService creates a new WithdrawalServiceImpl.
func NewWithdrawalService(
	invRepo ports.InvestmentRepository,
	ledgerRepo ports.LedgerRepository,
	withdrawalRepo ports.WithdrawalRepository,
	catalog ports.PlanCatalog,
	identity ports.IdentityProvider,
	notifier ports.Notifier,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *WithdrawalServiceImpl {
	return &WithdrawalServiceImpl{
		invRepo:        invRepo,
		ledgerRepo:     ledgerRepo,
		withdrawalRepo: withdrawalRepo,
		catalog:        catalog,
		identity:       identity,
		notifier:       notifier,
		transactor:     transactor,
		log:            logger.Component(log, "withdrawal"),
		now:            time.Now,
	}
}

// EligibleBalance returns the unpaid profit of the user's matured
// investments net of every Pending, Verified or Completed withdrawal.
func (s *WithdrawalServiceImpl) EligibleBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return decimal.Zero, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	el, err := computeEligibility(ctx, dbTx, s.invRepo, s.ledgerRepo, userID, domain.ReservingEntryStatuses)
	if err != nil {
		return decimal.Zero, apperror.InternalError(err)
	}
	return el.Balance, nil
}

// Request validates the account, PIN and payout target, then reserves the
// amount against the eligible balance inside one transaction.
func (s *WithdrawalServiceImpl) Request(ctx context.Context, req ports.WithdrawalRequest) (*domain.Withdrawal, error) {
	if !money.IsUSDAmount(req.AmountUSD) {
		return nil, apperror.ErrInvalidAmount()
	}

	if err := s.checkAccount(ctx, req.UserID); err != nil {
		return nil, err
	}

	ok, err := s.identity.VerifyPin(ctx, req.UserID, req.Pin)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperror.InternalError(fmt.Errorf("verify pin: %w", err))
	}
	if !ok {
		return nil, apperror.ErrInvalidPin()
	}

	symbol := strings.ToUpper(strings.TrimSpace(req.Currency))
	address, err := s.identity.GetPayoutAddress(ctx, req.UserID, symbol)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if address == "" {
		return nil, apperror.ErrNotFound("Payout address for " + symbol)
	}
	if supplied := strings.TrimSpace(req.PayoutAddress); supplied != "" && supplied != address {
		return nil, apperror.ErrPayoutAddressMismatch()
	}

	cur, err := s.catalog.GetCurrency(ctx, symbol)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if cur == nil || !cur.ActiveForPayout {
		return nil, apperror.ErrNotFound("Currency")
	}

	now := s.now().UTC()
	w := domain.NewWithdrawal(req.UserID, req.AmountUSD, symbol, address, now)
	entry := domain.NewWithdrawalEntry(w)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	el, err := computeEligibility(ctx, dbTx, s.invRepo, s.ledgerRepo, req.UserID, domain.ReservingEntryStatuses)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if req.AmountUSD.GreaterThan(el.Balance) {
		return nil, apperror.ErrInsufficientBalance(money.FormatUSD(el.Balance))
	}

	if err := s.withdrawalRepo.Create(ctx, dbTx, w); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create withdrawal: %w", err))
	}
	if err := s.ledgerRepo.Create(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create withdrawal entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("withdrawal_id", w.ID.String()).
		Str("user_id", w.UserID.String()).
		Str("amount_usd", money.FormatUSD(w.AmountUSD)).
		Str("currency", symbol).
		Msg("withdrawal requested")

	s.notifier.Notify(ctx, w.UserID, domain.EventWithdrawalRequested, map[string]any{
		"withdrawal_id": w.ID.String(),
		"amount_usd":    money.FormatUSD(w.AmountUSD),
		"currency":      symbol,
	})

	return w, nil
}

// Cancel withdraws the user's own Pending request. The reserved amount
// returns to the eligible balance.
func (s *WithdrawalServiceImpl) Cancel(ctx context.Context, userID, withdrawalID uuid.UUID, reason string) (*domain.Withdrawal, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	w, err := s.withdrawalRepo.GetByIDForUpdate(ctx, dbTx, withdrawalID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if w == nil || w.UserID != userID {
		return nil, apperror.ErrNotFound("Withdrawal")
	}
	if w.Status != domain.WithdrawalStatusPending {
		return nil, apperror.ErrInvalidTransition("Withdrawal", string(w.Status))
	}

	d := domain.WithdrawalDecision{
		WithdrawalID: w.ID,
		Status:       domain.WithdrawalStatusCancelled,
		ActorID:      userID,
		Reason:       optionalRef(&reason),
		At:           s.now().UTC(),
	}
	if err := decideWithdrawal(ctx, dbTx, s.withdrawalRepo, s.ledgerRepo, s.log, d, domain.EntryFinalization{
		Status: domain.EntryStatusCancelled,
		At:     d.At,
	}); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	w.Apply(d)

	s.log.Info().Str("withdrawal_id", w.ID.String()).Str("user_id", userID.String()).Msg("withdrawal cancelled by user")
	s.notifier.Notify(ctx, userID, domain.EventWithdrawalCancelled, map[string]any{
		"withdrawal_id": w.ID.String(),
		"amount_usd":    money.FormatUSD(w.AmountUSD),
	})
	return w, nil
}

func (s *WithdrawalServiceImpl) List(ctx context.Context, userID uuid.UUID, params ports.ListParams) ([]domain.Withdrawal, int64, error) {
	ws, total, err := s.withdrawalRepo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return ws, total, nil
}

func (s *WithdrawalServiceImpl) checkAccount(ctx context.Context, userID uuid.UUID) error {
	active, err := s.identity.IsActive(ctx, userID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("check account: %w", err))
	}
	if !active {
		return apperror.ErrAccountNotEligible("Account is not active")
	}
	verified, err := s.identity.IsEmailVerified(ctx, userID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("check email: %w", err))
	}
	if !verified {
		return apperror.ErrAccountNotEligible("Email address is not verified")
	}
	return nil
}

// decideWithdrawal writes d and moves the withdrawal's Pending ledger entry
// to f.Status in dbTx. Callers commit or roll back both together.
func decideWithdrawal(
	ctx context.Context,
	dbTx pgx.Tx,
	withdrawalRepo ports.WithdrawalRepository,
	ledgerRepo ports.LedgerRepository,
	log zerolog.Logger,
	d domain.WithdrawalDecision,
	f domain.EntryFinalization,
) error {
	ok, err := withdrawalRepo.ApplyDecision(ctx, dbTx, d)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("apply withdrawal decision: %w", err))
	}
	if !ok {
		return apperror.ErrConcurrentUpdate("Withdrawal")
	}

	entry, err := ledgerRepo.GetByWithdrawalID(ctx, dbTx, d.WithdrawalID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get withdrawal entry: %w", err))
	}
	if entry == nil {
		return inconsistent(log, errors.New("withdrawal ledger entry missing"),
			map[string]any{"withdrawal_id": d.WithdrawalID.String(), "decision": string(d.Status)})
	}

	ok, err = ledgerRepo.Finalize(ctx, dbTx, entry.ID, domain.EntryStatusPending, f)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("finalize withdrawal entry: %w", err))
	}
	if !ok {
		return inconsistent(log, fmt.Errorf("withdrawal entry %s is %s, expected %s", entry.ID, entry.Status, domain.EntryStatusPending),
			map[string]any{"withdrawal_id": d.WithdrawalID.String(), "entry_id": entry.ID.String()})
	}
	return nil
}
