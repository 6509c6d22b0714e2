package service

import (
	"context"
	"fmt"

	"yield-ledger/internal/core/domain"
	"yield-ledger/internal/core/ports"

	"github.com/google/uuid"
)

// CatalogServiceImpl implements ports.PlanCatalog over the plan and currency
// tables.
type CatalogServiceImpl struct {
	plans      ports.PlanRepository
	currencies ports.CurrencyRepository
}

func NewCatalogService(plans ports.PlanRepository, currencies ports.CurrencyRepository) *CatalogServiceImpl {
	return &CatalogServiceImpl{plans: plans, currencies: currencies}
}

// GetPlan returns the plan or nil when it does not exist. Inactive plans are
// returned so callers can tell "inactive" from "missing".
func (s *CatalogServiceImpl) GetPlan(ctx context.Context, planID uuid.UUID) (*domain.Plan, error) {
	p, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return p, nil
}

func (s *CatalogServiceImpl) ListActivePlans(ctx context.Context) ([]domain.Plan, error) {
	plans, err := s.plans.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}

func (s *CatalogServiceImpl) GetCurrency(ctx context.Context, symbol string) (*domain.SupportedCurrency, error) {
	c, err := s.currencies.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("get currency: %w", err)
	}
	return c, nil
}

// ListCurrencies returns every currency active for investment or payout.
func (s *CatalogServiceImpl) ListCurrencies(ctx context.Context) ([]domain.SupportedCurrency, error) {
	cs, err := s.currencies.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list currencies: %w", err)
	}
	return cs, nil
}
