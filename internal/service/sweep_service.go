package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"yield-ledger/internal/adapter/metrics"
	"yield-ledger/internal/core/domain"
	"yield-ledger/internal/core/ports"
	"yield-ledger/pkg/logger"
	"yield-ledger/pkg/money"

	"github.com/rs/zerolog"
)

const defaultSweepBatchSize = 100

// SweepServiceImpl implements ports.SweepService. It is safe to run
// concurrently with itself: the Active->Matured update and the one ROI entry
// per investment constraint decide every race.
type SweepServiceImpl struct {
	invRepo    ports.InvestmentRepository
	ledgerRepo ports.LedgerRepository
	identity   ports.IdentityProvider
	notifier   ports.Notifier
	transactor ports.DBTransactor
	batchSize  int
	log        zerolog.Logger
	now        func() time.Time
}

// NewSweepService creates a new SweepServiceImpl.
func NewSweepService(
	invRepo ports.InvestmentRepository,
	ledgerRepo ports.LedgerRepository,
	identity ports.IdentityProvider,
	notifier ports.Notifier,
	transactor ports.DBTransactor,
	batchSize int,
	log zerolog.Logger,
) *SweepServiceImpl {
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}
	return &SweepServiceImpl{
		invRepo:    invRepo,
		ledgerRepo: ledgerRepo,
		identity:   identity,
		notifier:   notifier,
		transactor: transactor,
		batchSize:  batchSize,
		log:        logger.Component(log, "sweep"),
		now:        time.Now,
	}
}

type sweepOutcome int

const (
	outcomeMatured sweepOutcome = iota
	outcomeSkipped
)

// Run matures every Active investment due at the start of the run. Item
// failures are collected in the report and leave the investment Active for
// the next run. Only a failure to list candidates aborts the sweep.
func (s *SweepServiceImpl) Run(ctx context.Context) (*ports.SweepReport, error) {
	started := s.now().UTC()
	report := &ports.SweepReport{StartedAt: started, Errors: []ports.SweepItemError{}}

	var cursor *ports.DueCursor
	for {
		if err := ctx.Err(); err != nil {
			return s.finish(report, err)
		}

		batch, err := s.invRepo.ListDueForMaturity(ctx, started, cursor, s.batchSize)
		if err != nil {
			return s.finish(report, fmt.Errorf("list due investments: %w", err))
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			inv := &batch[i]
			report.Scanned++

			outcome, err := s.matureOne(ctx, inv, started)
			switch {
			case err != nil:
				report.Errors = append(report.Errors, ports.SweepItemError{InvestmentID: inv.ID, Error: err.Error()})
				s.log.Warn().Err(err).Str("investment_id", inv.ID.String()).Msg("failed to mature investment")
			case outcome == outcomeSkipped:
				report.Skipped++
			default:
				report.Processed++
			}
		}

		last := batch[len(batch)-1]
		cursor = &ports.DueCursor{MaturesAt: *last.MaturesAt, ID: last.ID}
		if len(batch) < s.batchSize {
			break
		}
	}

	return s.finish(report, nil)
}

func (s *SweepServiceImpl) finish(report *ports.SweepReport, err error) (*ports.SweepReport, error) {
	report.FinishedAt = s.now().UTC()
	elapsed := report.FinishedAt.Sub(report.StartedAt)
	metrics.ObserveSweep(report.Processed, report.Skipped, len(report.Errors), elapsed, err)

	ev := s.log.Info()
	if err != nil {
		ev = s.log.Error().Err(err)
	}
	ev.Int("scanned", report.Scanned).
		Int("processed", report.Processed).
		Int("skipped", report.Skipped).
		Int("failed", len(report.Errors)).
		Dur("elapsed", elapsed).
		Msg("maturity sweep finished")

	return report, err
}

// matureOne transitions inv to Matured and appends its ROI payout entry in a
// single transaction. An investment another sweep already matured is skipped.
func (s *SweepServiceImpl) matureOne(ctx context.Context, inv *domain.Investment, now time.Time) (sweepOutcome, error) {
	if !inv.IsDue(now) || !inv.Status.CanTransitionTo(domain.InvestmentStatusMatured) {
		return outcomeSkipped, nil
	}
	currency, err := s.identity.PreferredPayoutCurrency(ctx, inv.UserID)
	if err != nil {
		return 0, fmt.Errorf("preferred payout currency: %w", err)
	}
	if currency == "" {
		currency = inv.PaymentCurrency
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	ok, err := s.invRepo.MarkMatured(ctx, dbTx, inv.ID, now)
	if err != nil {
		return 0, fmt.Errorf("mark matured: %w", err)
	}
	if !ok {
		return outcomeSkipped, nil
	}

	existing, err := s.ledgerRepo.GetByInvestmentID(ctx, dbTx, inv.ID, domain.EntryKindROIPayout)
	if err != nil {
		return 0, fmt.Errorf("check roi entry: %w", err)
	}
	if existing == nil {
		roi := domain.NewROIPayoutEntry(inv, currency, now)
		if err := s.ledgerRepo.Create(ctx, dbTx, roi); err != nil && !errors.Is(err, ports.ErrDuplicate) {
			return 0, fmt.Errorf("create roi entry: %w", err)
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	s.log.Info().
		Str("investment_id", inv.ID.String()).
		Str("user_id", inv.UserID.String()).
		Str("profit_usd", money.FormatUSD(inv.ExpectedTotalProfitUSD)).
		Msg("investment matured")

	s.notifier.Notify(ctx, inv.UserID, domain.EventInvestmentMatured, map[string]any{
		"investment_id": inv.ID.String(),
		"plan":          inv.PlanName,
		"profit_usd":    money.FormatUSD(inv.ExpectedTotalProfitUSD),
		"currency":      currency,
	})
	return outcomeMatured, nil
}
