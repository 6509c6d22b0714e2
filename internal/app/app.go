// Package app assembles the dependency graph shared by the API and sweep
// commands.
package app

import (
	"context"
	"fmt"
	"net/http"

	"yield-ledger/config"
	httpHandler "yield-ledger/internal/adapter/http/handler"
	"yield-ledger/internal/adapter/http/middleware"
	"yield-ledger/internal/adapter/rateoracle"
	"yield-ledger/internal/adapter/storage/memory"
	pgStorage "yield-ledger/internal/adapter/storage/postgres"
	redisStorage "yield-ledger/internal/adapter/storage/redis"
	"yield-ledger/internal/core/ports"
	"yield-ledger/internal/service"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// repositories is the storage half of the graph, backed by either driver.
type repositories struct {
	investments ports.InvestmentRepository
	ledger      ports.LedgerRepository
	withdrawals ports.WithdrawalRepository
	plans       ports.PlanRepository
	currencies  ports.CurrencyRepository
	accounts    ports.AccountRepository
	audit       ports.AuditRepository
	transactor  ports.DBTransactor
	health      []ports.HealthChecker
}

// App holds the wired services. Close releases pools and clients.
type App struct {
	Config *config.Config
	Log    zerolog.Logger

	Catalog     *service.CatalogServiceImpl
	Rates       *service.RateServiceImpl
	Investments *service.InvestmentServiceImpl
	Withdrawals *service.WithdrawalServiceImpl
	Approvals   *service.ApprovalServiceImpl
	Portfolio   *service.PortfolioServiceImpl
	Sweep       *service.SweepServiceImpl
	Audit       ports.AuditService
	Tokens      *service.JWTTokenService

	// Store is set when the memory driver is in use.
	Store *memory.Store

	repos      repositories
	redis      *goredis.Client
	nonceStore ports.NonceStore
	rateLimit  *redisStorage.RateLimitStore
	closers    []func()
}

// New connects storage and collaborators and wires every service.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	if err := a.openStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openRedis(ctx); err != nil {
		a.Close()
		return nil, err
	}

	provider, err := newRateProvider(cfg.RateOracle, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	var rateCache ports.RateCache
	if a.redis != nil {
		rateCache = redisStorage.NewRateCache(a.redis)
	}

	r := a.repos
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()

	a.Tokens = service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	a.Catalog = service.NewCatalogService(r.plans, r.currencies)
	identity := service.NewAccountService(r.accounts, hashSvc)
	a.Rates = service.NewRateService(provider, rateCache, cfg.RateOracle.CacheTTL, cfg.RateOracle.StaleTTL, log)
	notifier := service.NewNotificationService(
		cfg.Notify.WebhookURL,
		cfg.Notify.SigningSecret,
		cfg.Notify.Timeout,
		sigSvc,
		&http.Client{Timeout: cfg.Notify.Timeout},
		log,
	)

	a.Investments = service.NewInvestmentService(r.investments, r.ledger, a.Catalog, identity, a.Rates, notifier, r.transactor, log)
	a.Withdrawals = service.NewWithdrawalService(r.investments, r.ledger, r.withdrawals, a.Catalog, identity, notifier, r.transactor, log)
	a.Approvals = service.NewApprovalService(r.investments, r.ledger, r.withdrawals, a.Catalog, a.Rates, notifier, r.transactor, log)
	a.Portfolio = service.NewPortfolioService(r.investments, r.ledger, a.Withdrawals, a.Rates, log)
	a.Sweep = service.NewSweepService(r.investments, r.ledger, identity, notifier, r.transactor, cfg.Sweep.BatchSize, log)
	a.Audit = service.NewAuditService(r.audit, log)

	return a, nil
}

func (a *App) openStorage(ctx context.Context) error {
	switch a.Config.Database.Driver {
	case "memory":
		store := memory.NewStore()
		store.SeedCatalog()
		a.Store = store
		a.repos = repositories{
			investments: memory.NewInvestmentRepo(store),
			ledger:      memory.NewLedgerRepo(store),
			withdrawals: memory.NewWithdrawalRepo(store),
			plans:       memory.NewPlanRepo(store),
			currencies:  memory.NewCurrencyRepo(store),
			accounts:    memory.NewAccountRepo(store),
			audit:       memory.NewAuditRepo(store),
			transactor:  memory.NewTransactor(store),
		}
		a.Log.Warn().Msg("using in-memory storage; data is lost on exit")
		return nil

	case "postgres":
		pool, err := pgStorage.NewPool(ctx, a.Config.Database, a.Log)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)

		if a.Config.Database.RunMigrations {
			if err := pgStorage.Migrate(ctx, pool, a.Log); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}

		a.repos = repositories{
			investments: pgStorage.NewInvestmentRepo(pool),
			ledger:      pgStorage.NewLedgerRepo(pool),
			withdrawals: pgStorage.NewWithdrawalRepo(pool),
			plans:       pgStorage.NewPlanRepo(pool),
			currencies:  pgStorage.NewCurrencyRepo(pool),
			accounts:    pgStorage.NewAccountRepo(pool),
			audit:       pgStorage.NewAuditRepo(pool),
			transactor:  pgStorage.NewTransactor(pool),
			health:      []ports.HealthChecker{pgStorage.NewHealthCheck(pool)},
		}
		return nil
	}
	return fmt.Errorf("unsupported database driver %q", a.Config.Database.Driver)
}

func (a *App) openRedis(ctx context.Context) error {
	if !a.Config.Redis.Enabled {
		a.Log.Warn().Msg("redis disabled: no rate cache, rate limiting or nonce replay protection")
		return nil
	}
	rdb, err := redisStorage.NewClient(ctx, a.Config.Redis, a.Log)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	a.redis = rdb
	a.closers = append(a.closers, func() { _ = rdb.Close() })
	a.nonceStore = redisStorage.NewNonceStore(rdb)
	a.rateLimit = redisStorage.NewRateLimitStore(rdb)
	a.repos.health = append(a.repos.health, redisStorage.NewHealthCheck(rdb))
	return nil
}

func newRateProvider(cfg config.RateOracleConfig, log zerolog.Logger) (ports.RateProvider, error) {
	switch cfg.Provider {
	case "static":
		p, err := rateoracle.NewStaticProvider(cfg.StaticPrices)
		if err != nil {
			return nil, fmt.Errorf("static rate provider: %w", err)
		}
		return p, nil
	case "coincap":
		return rateoracle.NewCoinCapProvider(cfg, log), nil
	}
	return nil, fmt.Errorf("unsupported rate oracle provider %q", cfg.Provider)
}

// Router builds the HTTP engine over the wired services.
func (a *App) Router() *gin.Engine {
	return httpHandler.SetupRouter(httpHandler.RouterDeps{
		Catalog:     a.Catalog,
		Investments: a.Investments,
		Withdrawals: a.Withdrawals,
		Approvals:   a.Approvals,
		Portfolio:   a.Portfolio,
		Sweep:       a.Sweep,
		Rates:       a.Rates,
		TokenSvc:    a.Tokens,
		SigSvc:      service.NewHMACSignatureService(),
		NonceStore:  a.nonceStore,
		Internal: middleware.InternalCredentials{
			ClientKey:    a.Config.Internal.ClientKey,
			ClientSecret: a.Config.Internal.ClientSecret,
		},
		RateLimitStore: a.rateLimit,
		HealthCheckers: a.repos.health,
		AuditSvc:       a.Audit,
		Paging: httpHandler.Paging{
			DefaultLimit: a.Config.Pagination.DefaultLimit,
			MaxLimit:     a.Config.Pagination.MaxLimit,
		},
		MaxBodyBytes: a.Config.Server.MaxBodyBytes,
		Mode:         a.Config.Server.Mode,
		Logger:       a.Log,
	})
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
