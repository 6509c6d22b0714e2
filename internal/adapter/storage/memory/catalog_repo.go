package memory

import (
	"context"
	"sort"
	"strings"

	"yield-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Catalog identifiers shared with the PostgreSQL seed migration.
var (
	BasicPlanID     = uuid.MustParse("6f1c2a10-0b1e-4c55-9a43-1f0b5a7c0001")
	GoldPlanID      = uuid.MustParse("6f1c2a10-0b1e-4c55-9a43-1f0b5a7c0002")
	ExecutivePlanID = uuid.MustParse("6f1c2a10-0b1e-4c55-9a43-1f0b5a7c0003")
)

// SeedCatalog loads the default plans and currencies.
func (s *Store) SeedCatalog() {
	d := decimal.RequireFromString
	for _, p := range []domain.Plan{
		{ID: BasicPlanID, Name: "Basic", MinUSD: d("100"), MaxUSD: d("4999.99"), DailyYieldPct: d("3"), DurationDays: 7, IsActive: true},
		{ID: GoldPlanID, Name: "Gold", MinUSD: d("5000"), MaxUSD: d("24999.99"), DailyYieldPct: d("3.5"), DurationDays: 30, IsActive: true},
		{ID: ExecutivePlanID, Name: "Executive", MinUSD: d("25000"), MaxUSD: d("250000"), DailyYieldPct: d("4"), DurationDays: 90, IsActive: true},
	} {
		s.PutPlan(p)
	}
	for _, c := range []domain.SupportedCurrency{
		{Symbol: "BTC", Name: "Bitcoin", DepositAddress: "bc1qyieldledgerplatformdeposit0000000000", ActiveForInvestment: true, ActiveForPayout: true,
			MinInvestmentCrypto: d("0.0001"), MinWithdrawalCrypto: d("0.0001"), ConfirmationsRequired: 3, Precision: 8},
		{Symbol: "ETH", Name: "Ethereum", DepositAddress: "0x0000000000000000000000000000000000Y1e1d", ActiveForInvestment: true, ActiveForPayout: true,
			MinInvestmentCrypto: d("0.001"), MinWithdrawalCrypto: d("0.001"), ConfirmationsRequired: 12, Precision: 8},
		{Symbol: "USDT", Name: "Tether", DepositAddress: "TYieldLedgerPlatformDepositAddress00000", ActiveForInvestment: true, ActiveForPayout: true,
			MinInvestmentCrypto: d("10"), MinWithdrawalCrypto: d("10"), ConfirmationsRequired: 20, Precision: 2},
		{Symbol: "XRP", Name: "XRP", DepositAddress: "rYieldLedgerPlatformDepositAddress0000", ActiveForInvestment: true, ActiveForPayout: true,
			MinInvestmentCrypto: d("20"), MinWithdrawalCrypto: d("20"), ConfirmationsRequired: 1, Precision: 6},
	} {
		s.PutCurrency(c)
	}
}

// PlanRepo implements ports.PlanRepository.
type PlanRepo struct {
	s *Store
}

func NewPlanRepo(s *Store) *PlanRepo {
	return &PlanRepo{s: s}
}

func (r *PlanRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.plans[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *PlanRepo) ListActive(ctx context.Context) ([]domain.Plan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.Plan
	for _, p := range r.s.plans {
		if p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].MinUSD.Equal(out[j].MinUSD) {
			return out[i].MinUSD.LessThan(out[j].MinUSD)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// CurrencyRepo implements ports.CurrencyRepository.
type CurrencyRepo struct {
	s *Store
}

func NewCurrencyRepo(s *Store) *CurrencyRepo {
	return &CurrencyRepo{s: s}
}

func (r *CurrencyRepo) GetBySymbol(ctx context.Context, symbol string) (*domain.SupportedCurrency, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.currencies[strings.ToUpper(symbol)]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *CurrencyRepo) ListActive(ctx context.Context) ([]domain.SupportedCurrency, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.SupportedCurrency
	for _, c := range r.s.currencies {
		if c.ActiveForInvestment || c.ActiveForPayout {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	s *Store
}

func NewAccountRepo(s *Store) *AccountRepo {
	return &AccountRepo{s: s}
}

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *AccountRepo) GetPayoutAddress(ctx context.Context, userID uuid.UUID, currency string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.payouts[payoutKey{userID, strings.ToUpper(currency)}], nil
}

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	s *Store
}

func NewAuditRepo(s *Store) *AuditRepo {
	return &AuditRepo{s: s}
}

func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audit = append(r.s.audit, *log)
	return nil
}
