package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"yield-ledger/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// RateCache implements ports.RateCache using Redis string keys with expiry.
type RateCache struct {
	client *goredis.Client
	prefix string
}

// NewRateCache creates a new Redis-backed rate cache.
func NewRateCache(client *goredis.Client) *RateCache {
	return &RateCache{
		client: client,
		prefix: "rate:",
	}
}

type cachedRate struct {
	USDPerUnit decimal.Decimal `json:"usd_per_unit"`
	AsOf       time.Time       `json:"as_of"`
}

func (c *RateCache) key(currency string) string {
	return c.prefix + strings.ToUpper(currency)
}

// Get returns the cached rate for currency.
// Returns nil, nil if the key does not exist or has expired.
func (c *RateCache) Get(ctx context.Context, currency string) (*domain.Rate, error) {
	val, err := c.client.Get(ctx, c.key(currency)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis rate get: %w", err)
	}

	var cr cachedRate
	if err := json.Unmarshal(val, &cr); err != nil {
		return nil, fmt.Errorf("decoding cached rate: %w", err)
	}

	return &domain.Rate{
		Currency:   strings.ToUpper(currency),
		USDPerUnit: cr.USDPerUnit,
		AsOf:       cr.AsOf,
	}, nil
}

// Set stores a rate snapshot that expires after ttl.
func (c *RateCache) Set(ctx context.Context, rate *domain.Rate, ttl time.Duration) error {
	payload, err := json.Marshal(cachedRate{USDPerUnit: rate.USDPerUnit, AsOf: rate.AsOf})
	if err != nil {
		return fmt.Errorf("encoding rate: %w", err)
	}
	if err := c.client.Set(ctx, c.key(rate.Currency), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis rate set: %w", err)
	}
	return nil
}

// Delete removes the cached rate for currency.
func (c *RateCache) Delete(ctx context.Context, currency string) error {
	if err := c.client.Del(ctx, c.key(currency)).Err(); err != nil {
		return fmt.Errorf("redis rate delete: %w", err)
	}
	return nil
}
