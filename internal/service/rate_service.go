package service

import (
	"context"
	"strings"
	"time"

	"yield-ledger/internal/adapter/metrics"
	"yield-ledger/internal/core/domain"
	"yield-ledger/internal/core/ports"
	"yield-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

// RateServiceImpl implements ports.RateOracle as a cache-aside layer over a
// RateProvider. A cached rate is fresh while its as-of instant is within
// freshTTL; cache entries live for staleTTL so read paths can fall back to
// them when the provider is down. A nil cache disables caching.
type RateServiceImpl struct {
	provider ports.RateProvider
	cache    ports.RateCache
	freshTTL time.Duration
	staleTTL time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

func NewRateService(provider ports.RateProvider, cache ports.RateCache, freshTTL, staleTTL time.Duration, log zerolog.Logger) *RateServiceImpl {
	return &RateServiceImpl{
		provider: provider,
		cache:    cache,
		freshTTL: freshTTL,
		staleTTL: staleTTL,
		log:      log.With().Str("component", "rate_oracle").Str("provider", provider.Name()).Logger(),
		now:      time.Now,
	}
}

// GetRate returns a fresh rate or fails with SVC_001. It never serves a
// stale value.
func (s *RateServiceImpl) GetRate(ctx context.Context, currency string) (*domain.Rate, error) {
	symbol := strings.ToUpper(currency)
	cached := s.cached(ctx, symbol)
	if cached != nil && s.isFresh(cached) {
		metrics.RateLookup(symbol, metrics.SourceCache)
		return cached, nil
	}

	rate, err := s.fetch(ctx, symbol)
	if err != nil {
		metrics.RateLookup(symbol, metrics.SourceFailed)
		return nil, apperror.ErrRateUnavailable(symbol, err)
	}
	return rate, nil
}

// GetRateAllowStale behaves like GetRate but serves the last cached value,
// marked Stale, when the provider fails.
func (s *RateServiceImpl) GetRateAllowStale(ctx context.Context, currency string) (*domain.Rate, error) {
	symbol := strings.ToUpper(currency)
	cached := s.cached(ctx, symbol)
	if cached != nil && s.isFresh(cached) {
		metrics.RateLookup(symbol, metrics.SourceCache)
		return cached, nil
	}

	rate, err := s.fetch(ctx, symbol)
	if err == nil {
		return rate, nil
	}
	if cached != nil {
		s.log.Warn().Err(err).Str("currency", symbol).Time("as_of", cached.AsOf).Msg("serving stale rate")
		metrics.RateLookup(symbol, metrics.SourceStale)
		stale := *cached
		stale.Stale = true
		return &stale, nil
	}
	metrics.RateLookup(symbol, metrics.SourceFailed)
	return nil, apperror.ErrRateUnavailable(symbol, err)
}

// Invalidate drops the cached rate so the next lookup hits the provider.
func (s *RateServiceImpl) Invalidate(ctx context.Context, currency string) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Delete(ctx, strings.ToUpper(currency)); err != nil {
		return apperror.InternalError(err)
	}
	s.log.Info().Str("currency", strings.ToUpper(currency)).Msg("rate cache invalidated")
	return nil
}

func (s *RateServiceImpl) isFresh(r *domain.Rate) bool {
	return s.now().Before(r.AsOf.Add(s.freshTTL))
}

func (s *RateServiceImpl) cached(ctx context.Context, symbol string) *domain.Rate {
	if s.cache == nil {
		return nil
	}
	r, err := s.cache.Get(ctx, symbol)
	if err != nil {
		s.log.Warn().Err(err).Str("currency", symbol).Msg("rate cache read failed, treating as miss")
		return nil
	}
	return r
}

func (s *RateServiceImpl) fetch(ctx context.Context, symbol string) (*domain.Rate, error) {
	rate, err := s.provider.FetchRate(ctx, symbol)
	if err != nil {
		s.log.Warn().Err(err).Str("currency", symbol).Msg("rate provider failed")
		return nil, err
	}
	if !rate.USDPerUnit.IsPositive() {
		return nil, errNonPositiveRate
	}
	metrics.RateLookup(symbol, metrics.SourceProvider)

	if s.cache != nil {
		if err := s.cache.Set(ctx, rate, s.staleTTL); err != nil {
			s.log.Warn().Err(err).Str("currency", symbol).Msg("failed to cache rate")
		}
	}
	return rate, nil
}
