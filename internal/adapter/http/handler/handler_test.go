package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"yield-ledger/internal/core/accrual"
	"yield-ledger/internal/core/domain"
	"yield-ledger/internal/core/ports"
	"yield-ledger/internal/core/ports/mocks"
	"yield-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	userToken  = "user-token"
	adminToken = "admin-token"
)

type testAPI struct {
	router      *gin.Engine
	catalog     *mocks.MockPlanCatalog
	investments *mocks.MockInvestmentService
	withdrawals *mocks.MockWithdrawalService
	approvals   *mocks.MockApprovalService
	portfolio   *mocks.MockPortfolioService
	sweep       *mocks.MockSweepService
	rates       *mocks.MockRateOracle
	userID      uuid.UUID
	adminID     uuid.UUID
}

func newTestAPI(t *testing.T, checkers ...ports.HealthChecker) *testAPI {
	t.Helper()
	ctrl := gomock.NewController(t)

	api := &testAPI{
		catalog:     mocks.NewMockPlanCatalog(ctrl),
		investments: mocks.NewMockInvestmentService(ctrl),
		withdrawals: mocks.NewMockWithdrawalService(ctrl),
		approvals:   mocks.NewMockApprovalService(ctrl),
		portfolio:   mocks.NewMockPortfolioService(ctrl),
		sweep:       mocks.NewMockSweepService(ctrl),
		rates:       mocks.NewMockRateOracle(ctrl),
		userID:      uuid.New(),
		adminID:     uuid.New(),
	}

	tokenSvc := mocks.NewMockTokenService(ctrl)
	tokenSvc.EXPECT().Validate(userToken).Return(&ports.TokenClaims{UserID: api.userID, Role: domain.RoleUser}, nil).AnyTimes()
	tokenSvc.EXPECT().Validate(adminToken).Return(&ports.TokenClaims{UserID: api.adminID, Role: domain.RoleAdmin}, nil).AnyTimes()
	tokenSvc.EXPECT().Validate(gomock.Any()).Return(nil, errors.New("invalid token")).AnyTimes()

	api.router = SetupRouter(RouterDeps{
		Catalog:        api.catalog,
		Investments:    api.investments,
		Withdrawals:    api.withdrawals,
		Approvals:      api.approvals,
		Portfolio:      api.portfolio,
		Sweep:          api.sweep,
		Rates:          api.rates,
		TokenSvc:       tokenSvc,
		SigSvc:         mocks.NewMockSignatureService(ctrl),
		HealthCheckers: checkers,
		Logger:         zerolog.Nop(),
	})
	return api
}

func (a *testAPI) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %s", w.Body.String())
	return data
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	code, _ := resp["error_code"].(string)
	return code
}

// --- Plans ---

func TestListPlans_Public(t *testing.T) {
	api := newTestAPI(t)
	api.catalog.EXPECT().ListActivePlans(gomock.Any()).Return([]domain.Plan{
		{ID: uuid.New(), Name: "Basic", MinUSD: decimal.NewFromInt(100), MaxUSD: decimal.RequireFromString("4999.99"),
			DailyYieldPct: decimal.NewFromInt(3), DurationDays: 7, IsActive: true},
	}, nil)

	w := api.do(http.MethodGet, "/api/v1/plans", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"Basic"`)
}

// --- Authentication ---

func TestUserRoutes_Auth(t *testing.T) {
	api := newTestAPI(t)

	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/v1/investments", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/v1/investments", "forged", nil).Code)
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/api/v1/investments", adminToken, nil).Code)
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, "/api/v1/admin/sweep", userToken, nil).Code)
}

// --- Investments ---

func TestCreateInvestment_Success(t *testing.T) {
	api := newTestAPI(t)
	planID := uuid.New()
	inv := &domain.Investment{ID: uuid.New(), UserID: api.userID, PlanID: planID, Status: domain.InvestmentStatusPendingVerification}

	api.investments.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.CreateInvestmentRequest) (*ports.CreateInvestmentResult, error) {
			assert.Equal(t, api.userID, req.UserID)
			assert.Equal(t, planID, req.PlanID)
			assert.Equal(t, "1000", req.AmountUSD.String())
			assert.Equal(t, "BTC", req.Currency)
			return &ports.CreateInvestmentResult{
				Investment: inv,
				Instructions: ports.PaymentInstructions{
					AmountCrypto:          decimal.RequireFromString("0.02"),
					Currency:              "BTC",
					DepositAddress:        "bc1qplatform",
					ConfirmationsRequired: 3,
				},
			}, nil
		})

	w := api.do(http.MethodPost, "/api/v1/investments", userToken, map[string]string{
		"plan_id":    planID.String(),
		"amount_usd": "1000.00",
		"currency":   "BTC",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	instructions := data["payment_instructions"].(map[string]interface{})
	assert.Equal(t, "0.02", instructions["amount_crypto"])
	assert.Equal(t, "bc1qplatform", instructions["deposit_address"])
}

func TestCreateInvestment_ValidationError(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"empty body", map[string]string{}},
		{"bad plan id", map[string]string{"plan_id": "basic", "amount_usd": "100", "currency": "BTC"}},
		{"non-numeric amount", map[string]string{"plan_id": uuid.NewString(), "amount_usd": "lots", "currency": "BTC"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(http.MethodPost, "/api/v1/investments", userToken, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "VAL_001", errorCode(t, w))
		})
	}
}

func TestCreateInvestment_ServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"out of range", apperror.ErrAmountOutOfPlanRange("50.00", "100.00", "4999.99"), http.StatusBadRequest, "VAL_002"},
		{"rate outage", apperror.ErrRateUnavailable("BTC", errors.New("timeout")), http.StatusServiceUnavailable, "SVC_001"},
		{"suspended", apperror.ErrAccountNotEligible("Account is not active"), http.StatusConflict, "CON_003"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "SYS_000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t)
			api.investments.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, tt.err)

			w := api.do(http.MethodPost, "/api/v1/investments", userToken, map[string]string{
				"plan_id": uuid.NewString(), "amount_usd": "50", "currency": "BTC",
			})
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

func TestGetInvestment(t *testing.T) {
	api := newTestAPI(t)
	id := uuid.New()
	api.investments.EXPECT().Get(gomock.Any(), api.userID, id).Return(&ports.InvestmentView{
		Investment: domain.Investment{ID: id, Status: domain.InvestmentStatusActive},
		Progress:   accrual.Progress{DaysElapsed: 3, AccruedProfitUSD: decimal.NewFromInt(90)},
	}, nil)

	w := api.do(http.MethodGet, "/api/v1/investments/"+id.String(), userToken, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, id.String(), data["id"])
	progress := data["progress"].(map[string]interface{})
	assert.Equal(t, "90", progress["accrued_profit_usd"])
}

func TestGetInvestment_BadID(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/api/v1/investments/not-a-uuid", userToken, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListInvestments_Paging(t *testing.T) {
	api := newTestAPI(t)
	api.investments.EXPECT().List(gomock.Any(), api.userID, ports.ListParams{Page: 2, PageSize: 10}).
		Return([]ports.InvestmentView{}, int64(12), nil)

	w := api.do(http.MethodGet, "/api/v1/investments?page=2&limit=500", userToken, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(2), data["total_pages"])
}

func TestSubmitTxRef(t *testing.T) {
	api := newTestAPI(t)
	id := uuid.New()
	ref := "0xabc"
	api.investments.EXPECT().SubmitUserTxRef(gomock.Any(), api.userID, id, ref).
		Return(&domain.Investment{ID: id, UserTxRef: &ref}, nil)

	w := api.do(http.MethodPut, "/api/v1/investments/"+id.String()+"/tx-ref", userToken, map[string]string{"tx_ref": ref})

	assert.Equal(t, http.StatusOK, w.Code)
}

// --- Withdrawals ---

func TestWithdrawalBalance(t *testing.T) {
	api := newTestAPI(t)
	api.withdrawals.EXPECT().EligibleBalance(gomock.Any(), api.userID).Return(decimal.RequireFromString("210.00"), nil)

	w := api.do(http.MethodGet, "/api/v1/withdrawals/balance", userToken, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "210", decodeData(t, w)["eligible_balance_usd"])
}

func TestRequestWithdrawal_Success(t *testing.T) {
	api := newTestAPI(t)
	api.withdrawals.EXPECT().Request(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.WithdrawalRequest) (*domain.Withdrawal, error) {
			assert.Equal(t, "150", req.AmountUSD.String())
			assert.Equal(t, "1234", req.Pin)
			return &domain.Withdrawal{ID: uuid.New(), Status: domain.WithdrawalStatusPending, AmountUSD: req.AmountUSD}, nil
		})

	w := api.do(http.MethodPost, "/api/v1/withdrawals", userToken, map[string]string{
		"amount_usd": "150.00", "currency": "BTC", "pin": "1234",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "PENDING", decodeData(t, w)["status"])
}

func TestRequestWithdrawal_InsufficientBalance(t *testing.T) {
	api := newTestAPI(t)
	api.withdrawals.EXPECT().Request(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrInsufficientBalance("210.00"))

	w := api.do(http.MethodPost, "/api/v1/withdrawals", userToken, map[string]string{
		"amount_usd": "250", "currency": "BTC", "pin": "1234",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VAL_006", errorCode(t, w))
	assert.Contains(t, w.Body.String(), "$210.00")
}

func TestRequestWithdrawal_PinFormat(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/api/v1/withdrawals", userToken, map[string]string{
		"amount_usd": "100", "currency": "BTC", "pin": "12ab",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelWithdrawal_NoBody(t *testing.T) {
	api := newTestAPI(t)
	id := uuid.New()
	api.withdrawals.EXPECT().Cancel(gomock.Any(), api.userID, id, "").
		Return(&domain.Withdrawal{ID: id, Status: domain.WithdrawalStatusCancelled}, nil)

	w := api.do(http.MethodPost, "/api/v1/withdrawals/"+id.String()+"/cancel", userToken, nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCancelWithdrawal_Conflict(t *testing.T) {
	api := newTestAPI(t)
	id := uuid.New()
	api.withdrawals.EXPECT().Cancel(gomock.Any(), api.userID, id, "changed my mind").
		Return(nil, apperror.ErrInvalidTransition("Withdrawal", "COMPLETED"))

	w := api.do(http.MethodPost, "/api/v1/withdrawals/"+id.String()+"/cancel", userToken,
		map[string]string{"reason": "changed my mind"})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CON_001", errorCode(t, w))
}

// --- Ledger & portfolio ---

func TestLedger(t *testing.T) {
	api := newTestAPI(t)
	api.portfolio.EXPECT().ListLedger(gomock.Any(), api.userID, ports.ListParams{Page: 1, PageSize: 10}).
		Return([]domain.LedgerEntry{{ID: uuid.New(), Kind: domain.EntryKindDeposit}}, int64(1), nil)

	w := api.do(http.MethodGet, "/api/v1/ledger", userToken, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "DEPOSIT")
}

func TestPortfolioHistory(t *testing.T) {
	api := newTestAPI(t)
	api.portfolio.EXPECT().ReconstructHistory(gomock.Any(), api.userID, 7).
		Return(&ports.PortfolioHistory{WindowDays: 7, CurrentValueUSD: decimal.NewFromInt(1210)}, nil)
	api.portfolio.EXPECT().ReconstructHistory(gomock.Any(), api.userID, 30).
		Return(&ports.PortfolioHistory{WindowDays: 30}, nil)
	api.portfolio.EXPECT().ReconstructHistory(gomock.Any(), api.userID, 400).
		Return(nil, apperror.Validation("days must be between 1 and 365"))

	w := api.do(http.MethodGet, "/api/v1/portfolio/history?days=7", userToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1210", decodeData(t, w)["current_value_usd"])

	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/portfolio/history", userToken, nil).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/api/v1/portfolio/history?days=400", userToken, nil).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/api/v1/portfolio/history?days=week", userToken, nil).Code)
}

// --- Admin ---

func TestVerifyInvestment(t *testing.T) {
	api := newTestAPI(t)
	id := uuid.New()
	api.investments.EXPECT().VerifyAndActivate(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.VerifyInvestmentRequest) (*domain.Investment, error) {
			assert.Equal(t, api.adminID, req.AdminID)
			assert.Equal(t, id, req.InvestmentID)
			assert.Equal(t, "0.02", req.ConfirmedAmountCrypto.String())
			return &domain.Investment{ID: id, Status: domain.InvestmentStatusActive}, nil
		})

	w := api.do(http.MethodPost, "/api/v1/admin/investments/"+id.String()+"/verify", adminToken, map[string]string{
		"confirmed_amount_crypto": "0.02", "confirmed_tx_ref": "0xdeposit",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ACTIVE", decodeData(t, w)["status"])
}

func TestCancelInvestment_RequiresReason(t *testing.T) {
	api := newTestAPI(t)
	id := uuid.New()

	w := api.do(http.MethodPost, "/api/v1/admin/investments/"+id.String()+"/cancel", adminToken, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	api.investments.EXPECT().CancelPending(gomock.Any(), api.adminID, id, "no funds &lt;received&gt;").
		Return(&domain.Investment{ID: id, Status: domain.InvestmentStatusCancelled}, nil)
	w = api.do(http.MethodPost, "/api/v1/admin/investments/"+id.String()+"/cancel", adminToken,
		map[string]string{"reason": " no funds <received> "})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListWithdrawalQueue(t *testing.T) {
	api := newTestAPI(t)
	api.approvals.EXPECT().ListQueue(gomock.Any(), gomock.Any(), ports.ListParams{Page: 1, PageSize: 10}).DoAndReturn(
		func(_ context.Context, status *domain.WithdrawalStatus, _ ports.ListParams) ([]domain.Withdrawal, int64, error) {
			require.NotNil(t, status)
			assert.Equal(t, domain.WithdrawalStatusPending, *status)
			return []domain.Withdrawal{}, 0, nil
		})

	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/admin/withdrawals?status=pending", adminToken, nil).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/api/v1/admin/withdrawals?status=lost", adminToken, nil).Code)
}

func TestApproveWithdrawal(t *testing.T) {
	api := newTestAPI(t)
	id := uuid.New()
	api.approvals.EXPECT().Approve(gomock.Any(), api.adminID, id, "0xpayout").
		Return(&domain.Withdrawal{ID: id, Status: domain.WithdrawalStatusCompleted}, nil)

	w := api.do(http.MethodPost, "/api/v1/admin/withdrawals/"+id.String()+"/approve", adminToken,
		map[string]string{"platform_tx_ref": "0xpayout"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "COMPLETED", decodeData(t, w)["status"])
}

func TestApproveWithdrawal_LostRace(t *testing.T) {
	api := newTestAPI(t)
	id := uuid.New()
	api.approvals.EXPECT().Approve(gomock.Any(), api.adminID, id, "0xpayout").
		Return(nil, apperror.ErrConcurrentUpdate("Withdrawal"))

	w := api.do(http.MethodPost, "/api/v1/admin/withdrawals/"+id.String()+"/approve", adminToken,
		map[string]string{"platform_tx_ref": "0xpayout"})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CON_002", errorCode(t, w))
}

func TestRejectWithdrawal(t *testing.T) {
	api := newTestAPI(t)
	id := uuid.New()
	api.approvals.EXPECT().Reject(gomock.Any(), api.adminID, id, "address flagged").
		Return(&domain.Withdrawal{ID: id, Status: domain.WithdrawalStatusRejected}, nil)

	w := api.do(http.MethodPost, "/api/v1/admin/withdrawals/"+id.String()+"/reject", adminToken,
		map[string]string{"reason": "address flagged"})

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRunSweep(t *testing.T) {
	api := newTestAPI(t)
	failed := uuid.New()
	api.sweep.EXPECT().Run(gomock.Any()).Return(&ports.SweepReport{
		Scanned:   3,
		Processed: 2,
		Errors:    []ports.SweepItemError{{InvestmentID: failed, Error: "db timeout"}},
		StartedAt: time.Now(),
	}, nil)

	w := api.do(http.MethodPost, "/api/v1/admin/sweep", adminToken, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(2), data["processed"])
	assert.Len(t, data["errors"], 1)
}

func TestInvalidateRate(t *testing.T) {
	api := newTestAPI(t)
	api.rates.EXPECT().Invalidate(gomock.Any(), "ETH").Return(nil)

	w := api.do(http.MethodPost, "/api/v1/admin/rates/eth/invalidate", adminToken, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ETH", decodeData(t, w)["currency"])
}

func TestInternalSweep_RequiresSignature(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/internal/sweep", "", nil)

	// no internal credentials configured
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// --- Operational ---

func TestHealthCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	pg := mocks.NewMockHealthChecker(ctrl)
	rd := mocks.NewMockHealthChecker(ctrl)
	pg.EXPECT().Name().Return("postgres").AnyTimes()
	rd.EXPECT().Name().Return("redis").AnyTimes()

	pg.EXPECT().Ping(gomock.Any()).Return(nil).Times(2)
	rd.EXPECT().Ping(gomock.Any()).Return(nil)
	rd.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))

	api := newTestAPI(t, pg, rd)

	w := api.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)

	w = api.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestMetricsAndDocs(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodGet, "/docs/openapi.yaml", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/v1/withdrawals/{id}/cancel")

	w = api.do(http.MethodGet, "/docs", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
