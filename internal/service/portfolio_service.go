package service

import (
	"context"
	"time"

	"yield-ledger/internal/core/accrual"
	"yield-ledger/internal/core/domain"
	"yield-ledger/internal/core/ports"
	"yield-ledger/pkg/apperror"
	"yield-ledger/pkg/logger"
	"yield-ledger/pkg/money"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const maxHistoryWindowDays = 365

var replayStatuses = []domain.EntryStatus{domain.EntryStatusVerified, domain.EntryStatusCompleted}

// PortfolioServiceImpl implements ports.PortfolioService. It never writes.
type PortfolioServiceImpl struct {
	invRepo     ports.InvestmentRepository
	ledgerRepo  ports.LedgerRepository
	withdrawals ports.WithdrawalService
	rates       ports.RateOracle
	log         zerolog.Logger
	now         func() time.Time
}

func NewPortfolioService(
	invRepo ports.InvestmentRepository,
	ledgerRepo ports.LedgerRepository,
	withdrawals ports.WithdrawalService,
	rates ports.RateOracle,
	log zerolog.Logger,
) *PortfolioServiceImpl {
	return &PortfolioServiceImpl{
		invRepo:     invRepo,
		ledgerRepo:  ledgerRepo,
		withdrawals: withdrawals,
		rates:       rates,
		log:         logger.Component(log, "portfolio"),
		now:         time.Now,
	}
}

// ReconstructHistory replays the user's settled ledger into one end-of-day
// balance per day of the window, ending today (UTC), and values the current
// position from the ledger plus live accrual.
func (s *PortfolioServiceImpl) ReconstructHistory(ctx context.Context, userID uuid.UUID, windowDays int) (*ports.PortfolioHistory, error) {
	if windowDays < 1 || windowDays > maxHistoryWindowDays {
		return nil, apperror.Validation("days must be between 1 and 365")
	}
	now := s.now().UTC()

	entries, err := s.ledgerRepo.ListForReplay(ctx, userID, replayStatuses)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	points, balance := replay(entries, now, windowDays)

	active, err := s.invRepo.ListByUserAndStatus(ctx, userID, domain.InvestmentStatusActive)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	matured, err := s.invRepo.ListByUserAndStatus(ctx, userID, domain.InvestmentStatusMatured)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	eligible, err := s.withdrawals.EligibleBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	accrued := decimal.Zero
	for i := range active {
		accrued = accrued.Add(accrual.AccruedProfit(&active[i], now))
	}
	unsettled := decimal.Zero
	for _, inv := range matured {
		unsettled = unsettled.Add(inv.ExpectedTotalProfitUSD)
	}

	return &ports.PortfolioHistory{
		WindowDays:         windowDays,
		Points:             points,
		LedgerBalanceUSD:   money.RoundUSD(balance),
		ActiveAccruedUSD:   money.RoundUSD(accrued),
		EligibleBalanceUSD: eligible,
		UnsettledProfitUSD: money.RoundUSD(unsettled),
		CurrentValueUSD:    money.RoundUSD(balance.Add(accrued).Add(unsettled)),
		Holdings:           s.holdings(ctx, active, now),
		AsOf:               now,
	}, nil
}

func (s *PortfolioServiceImpl) ListLedger(ctx context.Context, userID uuid.UUID, params ports.ListParams) ([]domain.LedgerEntry, int64, error) {
	entries, total, err := s.ledgerRepo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return entries, total, nil
}

// replay samples the running balance at the end of each UTC day of the
// window. entries must be ordered by EffectiveAt. The last point is the
// balance as of now.
func replay(entries []domain.LedgerEntry, now time.Time, windowDays int) ([]ports.PortfolioPoint, decimal.Decimal) {
	today := now.Truncate(domain.Day)
	start := today.Add(-time.Duration(windowDays-1) * domain.Day)

	points := make([]ports.PortfolioPoint, 0, windowDays)
	balance := decimal.Zero
	next := 0
	for day := 0; day < windowDays; day++ {
		date := start.Add(time.Duration(day) * domain.Day)
		cutoff := date.Add(domain.Day)
		if cutoff.After(now) {
			cutoff = now.Add(time.Nanosecond)
		}
		for next < len(entries) && entries[next].EffectiveAt().Before(cutoff) {
			balance = balance.Add(entries[next].SignedAmount())
			next++
		}
		points = append(points, ports.PortfolioPoint{Date: date, BalanceUSD: money.RoundUSD(balance)})
	}
	for ; next < len(entries); next++ {
		balance = balance.Add(entries[next].SignedAmount())
	}
	return points, balance
}

// holdings values each Active investment at the latest rate, falling back
// to a stale cached rate. Holdings whose rate is unavailable carry a zero
// market value and are flagged.
func (s *PortfolioServiceImpl) holdings(ctx context.Context, active []domain.Investment, now time.Time) []ports.Holding {
	rates := make(map[string]*domain.Rate)
	out := make([]ports.Holding, 0, len(active))

	for i := range active {
		inv := &active[i]
		h := ports.Holding{
			InvestmentID:     inv.ID,
			PlanName:         inv.PlanName,
			Currency:         inv.PaymentCurrency,
			PrincipalCrypto:  inv.PrincipalCrypto(),
			PrincipalUSD:     inv.InvestedAmountUSD,
			AccruedProfitUSD: accrual.AccruedProfit(inv, now),
			MarketValueUSD:   decimal.Zero,
			RateUSDPerUnit:   decimal.Zero,
		}

		rate, seen := rates[inv.PaymentCurrency]
		if !seen {
			r, err := s.rates.GetRateAllowStale(ctx, inv.PaymentCurrency)
			if err != nil {
				s.log.Warn().Err(err).Str("currency", inv.PaymentCurrency).Msg("no rate for holding valuation")
			}
			rate = r
			rates[inv.PaymentCurrency] = r
		}

		if rate == nil {
			h.RateUnavailable = true
		} else {
			h.RateUSDPerUnit = rate.USDPerUnit
			h.RateStale = rate.Stale
			h.MarketValueUSD = money.ToUSD(h.PrincipalCrypto, rate.USDPerUnit)
		}
		out = append(out, h)
	}
	return out
}
