package rateoracle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"yield-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

// StaticProvider serves prices from a fixed table. Used for development and
// for deployments without an upstream price feed.
type StaticProvider struct {
	prices map[string]decimal.Decimal
	now    func() time.Time
}

// NewStaticProvider parses a symbol → USD price table. Keys are matched
// case-insensitively.
func NewStaticProvider(prices map[string]string) (*StaticProvider, error) {
	p := &StaticProvider{prices: make(map[string]decimal.Decimal, len(prices)), now: time.Now}
	for symbol, raw := range prices {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("static price for %s: %w", symbol, err)
		}
		if !price.IsPositive() {
			return nil, fmt.Errorf("static price for %s must be positive", symbol)
		}
		p.prices[strings.ToUpper(symbol)] = price
	}
	return p, nil
}

func (p *StaticProvider) Name() string { return "static" }

func (p *StaticProvider) FetchRate(ctx context.Context, currency string) (*domain.Rate, error) {
	symbol := strings.ToUpper(currency)
	price, ok := p.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("no static price for %s", symbol)
	}
	return &domain.Rate{Currency: symbol, USDPerUnit: price, AsOf: p.now().UTC()}, nil
}
