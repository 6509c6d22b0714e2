package handler

import (
	"yield-ledger/internal/adapter/http/middleware"
	redisStore "yield-ledger/internal/adapter/storage/redis"
	"yield-ledger/internal/core/domain"
	"yield-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Catalog        ports.PlanCatalog
	Investments    ports.InvestmentService
	Withdrawals    ports.WithdrawalService
	Approvals      ports.ApprovalService
	Portfolio      ports.PortfolioService
	Sweep          ports.SweepService
	Rates          ports.RateOracle
	TokenSvc       ports.TokenService
	SigSvc         ports.SignatureService
	NonceStore     ports.NonceStore // nil = nonce replay check disabled
	Internal       middleware.InternalCredentials
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Paging         Paging
	MaxBodyBytes   int64
	Mode           string
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Mode != "" {
		gin.SetMode(deps.Mode)
	}
	if deps.Paging.MaxLimit == 0 {
		deps.Paging = DefaultPaging
	}
	if deps.MaxBodyBytes == 0 {
		deps.MaxBodyBytes = 1 << 20
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(deps.MaxBodyBytes))

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	r.GET("/metrics", Metrics())

	docs := r.Group("/docs")
	{
		docs.GET("", DocsUI)
		docs.GET("/openapi.yaml", OpenAPISpec)
	}

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	planHandler := NewPlanHandler(deps.Catalog)
	investmentHandler := NewInvestmentHandler(deps.Investments, deps.Paging)
	withdrawalHandler := NewWithdrawalHandler(deps.Withdrawals, deps.Paging)
	portfolioHandler := NewPortfolioHandler(deps.Portfolio, deps.Paging)
	adminHandler := NewAdminHandler(deps.Investments, deps.Approvals, deps.Sweep, deps.Rates, deps.Paging)

	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	v1.GET("/plans", rl("public"), planHandler.ListPlans)

	// --- Investor routes (JWT) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	user := v1.Group("", jwtAuth, middleware.RequireRole(domain.RoleUser))

	investments := user.Group("/investments")
	{
		investments.POST("", rl("investments_create"), investmentHandler.Create)
		investments.GET("", rl("user_read"), investmentHandler.List)
		investments.GET("/:id", rl("user_read"), investmentHandler.Get)
		investments.PUT("/:id/tx-ref", rl("user_read"), investmentHandler.SubmitTxRef)
	}

	withdrawals := user.Group("/withdrawals")
	{
		withdrawals.GET("/balance", rl("user_read"), withdrawalHandler.Balance)
		withdrawals.POST("", rl("withdrawals_create"), withdrawalHandler.Request)
		withdrawals.GET("", rl("user_read"), withdrawalHandler.List)
		withdrawals.POST("/:id/cancel", rl("user_read"), withdrawalHandler.Cancel)
	}

	user.GET("/ledger", rl("user_read"), portfolioHandler.Ledger)
	user.GET("/portfolio/history", rl("user_read"), portfolioHandler.History)

	// --- Administrator routes (JWT, admin role) ---
	admin := v1.Group("/admin", jwtAuth, middleware.RequireRole(domain.RoleAdmin), rl("admin"))
	{
		admin.POST("/investments/:id/verify", adminHandler.VerifyInvestment)
		admin.POST("/investments/:id/cancel", adminHandler.CancelInvestment)
		admin.GET("/withdrawals", adminHandler.ListWithdrawals)
		admin.POST("/withdrawals/:id/approve", adminHandler.ApproveWithdrawal)
		admin.POST("/withdrawals/:id/reject", adminHandler.RejectWithdrawal)
		admin.POST("/sweep", rl("sweep"), adminHandler.RunSweep)
		admin.POST("/rates/:currency/invalidate", adminHandler.InvalidateRate)
	}

	// --- Machine routes (HMAC) ---
	internalAuth := middleware.InternalAuth(deps.Internal, deps.SigSvc, deps.NonceStore, deps.Logger)
	internal := r.Group("/internal", internalAuth)
	{
		internal.POST("/sweep", rl("sweep"), adminHandler.RunSweep)
	}

	return r
}
