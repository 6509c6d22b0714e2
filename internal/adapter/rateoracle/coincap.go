// Package rateoracle implements ports.RateProvider against CoinCap and a
// fixed price table.
package rateoracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"yield-ledger/config"
	"yield-ledger/internal/core/domain"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const maxBackoff = 30 * time.Second

var coinCapIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"LTC":   "litecoin",
	"USDT":  "tether",
	"USDC":  "usd-coin",
	"BNB":   "binance-coin",
	"XRP":   "xrp",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"SOL":   "solana",
	"DOT":   "polkadot",
	"MATIC": "polygon",
	"TRX":   "tron",
	"DAI":   "multi-collateral-dai",
}

// CoinCapProvider fetches spot USD prices from the CoinCap assets API.
type CoinCapProvider struct {
	baseURL    string
	apiKey     string
	maxRetries int
	backoff    time.Duration
	httpClient *http.Client
	log        zerolog.Logger
	now        func() time.Time
}

// NewCoinCapProvider creates a provider from the rate oracle configuration.
func NewCoinCapProvider(cfg config.RateOracleConfig, log zerolog.Logger) *CoinCapProvider {
	return &CoinCapProvider{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		log: log.With().Str("component", "coincap_provider").Logger(),
		now: time.Now,
	}
}

// Name returns the provider name.
func (p *CoinCapProvider) Name() string { return "coincap" }

// FetchRate returns the current USD price of one unit of currency. Timeouts,
// 429 and 5xx responses are retried with exponential backoff.
func (p *CoinCapProvider) FetchRate(ctx context.Context, currency string) (*domain.Rate, error) {
	symbol := strings.ToUpper(currency)
	url := p.baseURL + "/assets/" + assetID(symbol)

	for attempt := 0; ; attempt++ {
		rate, retry, err := p.fetch(ctx, url, symbol)
		if err == nil {
			return rate, nil
		}
		if !retry || attempt >= p.maxRetries {
			return nil, err
		}

		wait := backoffFor(attempt, p.backoff)
		p.log.Warn().
			Err(err).
			Str("currency", symbol).
			Int("attempt", attempt+1).
			Dur("backoff", wait).
			Msg("Rate request failed, retrying after backoff")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (p *CoinCapProvider) fetch(ctx context.Context, url, symbol string) (*domain.Rate, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, isTimeout(err), fmt.Errorf("request %s rate: %w", symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, true, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, retryableStatus(resp.StatusCode), errorFromBody(resp.StatusCode, body)
	}

	rate, err := p.parse(body, symbol)
	return rate, false, err
}

type assetResponse struct {
	Data struct {
		ID       string `json:"id"`
		Symbol   string `json:"symbol"`
		PriceUSD string `json:"priceUsd"`
	} `json:"data"`
	Timestamp int64 `json:"timestamp"`
}

func (p *CoinCapProvider) parse(body []byte, symbol string) (*domain.Rate, error) {
	var resp assetResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse rate response: %w", err)
	}

	price, err := decimal.NewFromString(resp.Data.PriceUSD)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q: %w", resp.Data.PriceUSD, err)
	}
	if !price.IsPositive() {
		return nil, fmt.Errorf("non-positive price %s for %s", price, symbol)
	}

	asOf := p.now().UTC()
	if resp.Timestamp > 0 {
		asOf = time.UnixMilli(resp.Timestamp).UTC()
	}

	return &domain.Rate{Currency: symbol, USDPerUnit: price, AsOf: asOf}, nil
}

func errorFromBody(status int, body []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return fmt.Errorf("HTTP error %d: %s", status, e.Error)
	}
	return fmt.Errorf("HTTP error %d: %s", status, strings.TrimSpace(string(body)))
}

func assetID(symbol string) string {
	if id, ok := coinCapIDs[symbol]; ok {
		return id
	}
	return strings.ToLower(symbol)
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout
}

func backoffFor(attempt int, base time.Duration) time.Duration {
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	d := base << attempt
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}
	return d
}
