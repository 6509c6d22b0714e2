package service

import (
	"context"
	"fmt"

	"yield-ledger/internal/core/domain"
	"yield-ledger/internal/core/ports"
	"yield-ledger/pkg/money"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// eligibility is the outcome of allocating a user's withdrawal debits over
// their matured profit.
type eligibility struct {
	Balance decimal.Decimal
	Debits  decimal.Decimal
	// Consumed lists Matured investments whose profit is fully allocated.
	Consumed []domain.Investment
}

// computeEligibility locks the user's Matured and Withdrawn investments and
// allocates the sum of Withdrawal entries in statuses over them, settled
// investments first and then oldest maturity first. Rejected and cancelled
// withdrawals never appear in statuses, so their amounts flow back
// automatically.
func computeEligibility(
	ctx context.Context,
	dbTx pgx.Tx,
	invRepo ports.InvestmentRepository,
	ledgerRepo ports.LedgerRepository,
	userID uuid.UUID,
	statuses []domain.EntryStatus,
) (*eligibility, error) {
	candidates, err := invRepo.ListSettlementCandidates(ctx, dbTx, userID)
	if err != nil {
		return nil, fmt.Errorf("list settlement candidates: %w", err)
	}
	debits, err := ledgerRepo.SumByKind(ctx, dbTx, userID, domain.EntryKindWithdrawal, statuses)
	if err != nil {
		return nil, fmt.Errorf("sum withdrawals: %w", err)
	}
	return allocate(candidates, debits), nil
}

// allocate expects candidates in maturity order. Withdrawn investments absorb
// debits before Matured ones, so a late sweep of an older investment never
// moves the allocation off an investment already marked Withdrawn.
func allocate(candidates []domain.Investment, debits decimal.Decimal) *eligibility {
	ordered := make([]domain.Investment, 0, len(candidates))
	for _, inv := range candidates {
		if inv.Status == domain.InvestmentStatusWithdrawn {
			ordered = append(ordered, inv)
		}
	}
	for _, inv := range candidates {
		if inv.Status != domain.InvestmentStatusWithdrawn {
			ordered = append(ordered, inv)
		}
	}

	out := &eligibility{Balance: decimal.Zero, Debits: debits}
	left := debits
	for _, inv := range ordered {
		profit := inv.ExpectedTotalProfitUSD
		take := money.Min(left, profit)
		left = left.Sub(take)

		remaining := money.Max(decimal.Zero, profit.Sub(take))
		out.Balance = out.Balance.Add(remaining)
		if remaining.IsZero() && inv.Status == domain.InvestmentStatusMatured {
			out.Consumed = append(out.Consumed, inv)
		}
	}
	out.Balance = money.RoundUSD(out.Balance)
	return out
}
