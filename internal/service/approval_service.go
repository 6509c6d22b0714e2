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

// ApprovalServiceImpl implements ports.ApprovalService. Each decision moves
// the withdrawal and its ledger entry together in one transaction.
type ApprovalServiceImpl struct {
	invRepo        ports.InvestmentRepository
	ledgerRepo     ports.LedgerRepository
	withdrawalRepo ports.WithdrawalRepository
	catalog        ports.PlanCatalog
	rates          ports.RateOracle
	notifier       ports.Notifier
	transactor     ports.DBTransactor
	log            zerolog.Logger
	now            func() time.Time
}

// NewApprovalService creates a new ApprovalServiceImpl.
func NewApprovalService(
	invRepo ports.InvestmentRepository,
	ledgerRepo ports.LedgerRepository,
	withdrawalRepo ports.WithdrawalRepository,
	catalog ports.PlanCatalog,
	rates ports.RateOracle,
	notifier ports.Notifier,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *ApprovalServiceImpl {
	return &ApprovalServiceImpl{
		invRepo:        invRepo,
		ledgerRepo:     ledgerRepo,
		withdrawalRepo: withdrawalRepo,
		catalog:        catalog,
		rates:          rates,
		notifier:       notifier,
		transactor:     transactor,
		log:            logger.Component(log, "approval"),
		now:            time.Now,
	}
}

// Approve locks a fresh rate, completes the withdrawal and its ledger entry,
// and settles any matured investment whose profit is now fully paid out.
// A rate outage fails the approval; no stale rate is used.
func (s *ApprovalServiceImpl) Approve(ctx context.Context, adminID, withdrawalID uuid.UUID, platformTxRef string) (*domain.Withdrawal, error) {
	ref := strings.TrimSpace(platformTxRef)
	if ref == "" {
		return nil, apperror.Validation("Platform transaction reference is required")
	}

	w, err := s.withdrawalRepo.GetByID(ctx, withdrawalID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if w == nil {
		return nil, apperror.ErrNotFound("Withdrawal")
	}
	if w.Status != domain.WithdrawalStatusPending {
		return nil, apperror.ErrInvalidTransition("Withdrawal", string(w.Status))
	}

	places := money.CryptoPlaces(w.Currency)
	cur, err := s.catalog.GetCurrency(ctx, w.Currency)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if cur != nil {
		places = precisionOf(cur)
	}

	rate, err := s.rates.GetRate(ctx, w.Currency)
	if err != nil {
		return nil, err
	}
	amountCrypto := money.ToCrypto(w.AmountUSD, rate.USDPerUnit, places)
	now := s.now().UTC()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	locked, err := s.lockPending(ctx, dbTx, withdrawalID)
	if err != nil {
		return nil, err
	}

	d := domain.WithdrawalDecision{
		WithdrawalID:  locked.ID,
		Status:        domain.WithdrawalStatusCompleted,
		ActorID:       adminID,
		AmountCrypto:  decimal.NewNullDecimal(amountCrypto),
		RateSnapshot:  decimal.NewNullDecimal(rate.USDPerUnit),
		PlatformTxRef: &ref,
		At:            now,
	}
	if err := decideWithdrawal(ctx, dbTx, s.withdrawalRepo, s.ledgerRepo, s.log, d, domain.EntryFinalization{
		Status:        domain.EntryStatusCompleted,
		AmountCrypto:  d.AmountCrypto,
		RateSnapshot:  d.RateSnapshot,
		PlatformTxRef: &ref,
		ProcessedBy:   &adminID,
		At:            now,
	}); err != nil {
		return nil, err
	}

	settled, err := s.settle(ctx, dbTx, locked.UserID, adminID, now)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	locked.Apply(d)

	s.log.Info().
		Str("withdrawal_id", locked.ID.String()).
		Str("admin_id", adminID.String()).
		Str("amount_usd", money.FormatUSD(locked.AmountUSD)).
		Str("amount_crypto", amountCrypto.String()).
		Str("rate", rate.USDPerUnit.String()).
		Int("investments_settled", settled).
		Msg("withdrawal approved")

	s.notifier.Notify(ctx, locked.UserID, domain.EventWithdrawalApproved, map[string]any{
		"withdrawal_id":   locked.ID.String(),
		"amount_usd":      money.FormatUSD(locked.AmountUSD),
		"amount_crypto":   amountCrypto.String(),
		"currency":        locked.Currency,
		"platform_tx_ref": ref,
	})
	return locked, nil
}

// Reject voids the withdrawal and its ledger entry. The amount becomes
// eligible again because rejected entries never count as debits.
func (s *ApprovalServiceImpl) Reject(ctx context.Context, adminID, withdrawalID uuid.UUID, reason string) (*domain.Withdrawal, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.Validation("Rejection reason is required")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	locked, err := s.lockPending(ctx, dbTx, withdrawalID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	d := domain.WithdrawalDecision{
		WithdrawalID: locked.ID,
		Status:       domain.WithdrawalStatusRejected,
		ActorID:      adminID,
		Reason:       &reason,
		At:           now,
	}
	desc := "Withdrawal rejected: " + reason
	if err := decideWithdrawal(ctx, dbTx, s.withdrawalRepo, s.ledgerRepo, s.log, d, domain.EntryFinalization{
		Status:      domain.EntryStatusRejected,
		ProcessedBy: &adminID,
		Description: &desc,
		At:          now,
	}); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	locked.Apply(d)

	s.log.Info().
		Str("withdrawal_id", locked.ID.String()).
		Str("admin_id", adminID.String()).
		Msg("withdrawal rejected")

	s.notifier.Notify(ctx, locked.UserID, domain.EventWithdrawalRejected, map[string]any{
		"withdrawal_id": locked.ID.String(),
		"amount_usd":    money.FormatUSD(locked.AmountUSD),
		"reason":        reason,
	})
	return locked, nil
}

func (s *ApprovalServiceImpl) ListQueue(ctx context.Context, status *domain.WithdrawalStatus, params ports.ListParams) ([]domain.Withdrawal, int64, error) {
	ws, total, err := s.withdrawalRepo.ListByStatus(ctx, status, params)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return ws, total, nil
}

func (s *ApprovalServiceImpl) lockPending(ctx context.Context, dbTx pgx.Tx, id uuid.UUID) (*domain.Withdrawal, error) {
	w, err := s.withdrawalRepo.GetByIDForUpdate(ctx, dbTx, id)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if w == nil {
		return nil, apperror.ErrNotFound("Withdrawal")
	}
	if w.Status != domain.WithdrawalStatusPending {
		return nil, apperror.ErrInvalidTransition("Withdrawal", string(w.Status))
	}
	return w, nil
}

// settle moves Matured investments whose profit is fully covered by
// Completed withdrawals to Withdrawn and completes their ROI payout entries.
func (s *ApprovalServiceImpl) settle(ctx context.Context, dbTx pgx.Tx, userID, adminID uuid.UUID, now time.Time) (int, error) {
	el, err := computeEligibility(ctx, dbTx, s.invRepo, s.ledgerRepo, userID, []domain.EntryStatus{domain.EntryStatusCompleted})
	if err != nil {
		return 0, apperror.InternalError(err)
	}

	for _, inv := range el.Consumed {
		ok, err := s.invRepo.MarkWithdrawn(ctx, dbTx, inv.ID, now)
		if err != nil {
			return 0, apperror.InternalError(fmt.Errorf("mark withdrawn: %w", err))
		}
		if !ok {
			return 0, apperror.ErrConcurrentUpdate("Investment")
		}

		roi, err := s.ledgerRepo.GetByInvestmentID(ctx, dbTx, inv.ID, domain.EntryKindROIPayout)
		if err != nil {
			return 0, apperror.InternalError(fmt.Errorf("get roi entry: %w", err))
		}
		if roi == nil {
			return 0, inconsistent(s.log, errors.New("matured investment has no roi payout entry"),
				map[string]any{"investment_id": inv.ID.String()})
		}
		if roi.Status != domain.EntryStatusPending {
			continue
		}
		ok, err = s.ledgerRepo.Finalize(ctx, dbTx, roi.ID, domain.EntryStatusPending, domain.EntryFinalization{
			Status:      domain.EntryStatusCompleted,
			ProcessedBy: &adminID,
			At:          now,
		})
		if err != nil {
			return 0, apperror.InternalError(fmt.Errorf("complete roi entry: %w", err))
		}
		if !ok {
			return 0, apperror.ErrConcurrentUpdate("Ledger entry")
		}

		s.log.Info().
			Str("investment_id", inv.ID.String()).
			Str("user_id", userID.String()).
			Msg("investment profit fully withdrawn")
	}
	return len(el.Consumed), nil
}
