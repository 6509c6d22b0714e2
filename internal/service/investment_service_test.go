package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"yield-ledger/internal/core/domain"
	"yield-ledger/internal/core/ports"
	"yield-ledger/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type investmentTestDeps struct {
	svc        *InvestmentServiceImpl
	invRepo    *mocks.MockInvestmentRepository
	ledgerRepo *mocks.MockLedgerRepository
	catalog    *mocks.MockPlanCatalog
	identity   *mocks.MockIdentityProvider
	rates      *mocks.MockRateOracle
	notifier   *mocks.MockNotifier
	transactor *mocks.MockDBTransactor
}

func setupInvestmentService(t *testing.T) *investmentTestDeps {
	ctrl := gomock.NewController(t)
	d := &investmentTestDeps{
		invRepo:    mocks.NewMockInvestmentRepository(ctrl),
		ledgerRepo: mocks.NewMockLedgerRepository(ctrl),
		catalog:    mocks.NewMockPlanCatalog(ctrl),
		identity:   mocks.NewMockIdentityProvider(ctrl),
		rates:      mocks.NewMockRateOracle(ctrl),
		notifier:   mocks.NewMockNotifier(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
	}
	d.svc = NewInvestmentService(d.invRepo, d.ledgerRepo, d.catalog, d.identity, d.rates, d.notifier, d.transactor, newTestLogger())
	d.svc.now = fixedClock(testNow)
	return d
}

func testPlan() *domain.Plan {
	return &domain.Plan{
		ID:            uuid.New(),
		Name:          "Gold",
		MinUSD:        decimal.NewFromInt(500),
		MaxUSD:        decimal.NewFromInt(5000),
		DailyYieldPct: decimal.NewFromInt(3),
		DurationDays:  7,
		IsActive:      true,
	}
}

func testCurrency() *domain.SupportedCurrency {
	return &domain.SupportedCurrency{
		Symbol:                "BTC",
		Name:                  "Bitcoin",
		DepositAddress:        "bc1qplatform",
		ActiveForInvestment:   true,
		ActiveForPayout:       true,
		MinInvestmentCrypto:   decimal.RequireFromString("0.0001"),
		MinWithdrawalCrypto:   decimal.RequireFromString("0.0001"),
		ConfirmationsRequired: 3,
		Precision:             8,
	}
}

func pendingInvestment(userID uuid.UUID) *domain.Investment {
	p := testPlan()
	return domain.NewInvestment(domain.NewInvestmentParams{
		UserID:         userID,
		Plan:           *p,
		AmountUSD:      decimal.NewFromInt(1000),
		Currency:       "BTC",
		AmountCrypto:   decimal.RequireFromString("0.02"),
		Rate:           *btcRate(testNow.Add(-time.Hour)),
		DepositAddress: "bc1qplatform",
		Now:            testNow.Add(-time.Hour),
	})
}

func TestInvestmentService_Create_Success(t *testing.T) {
	d := setupInvestmentService(t)
	ctx := context.Background()
	userID := uuid.New()
	plan := testPlan()
	tx := &mockTx{}
	ref := "  0xabc  "

	d.identity.EXPECT().IsActive(ctx, userID).Return(true, nil)
	d.catalog.EXPECT().GetPlan(ctx, plan.ID).Return(plan, nil)
	d.catalog.EXPECT().GetCurrency(ctx, "BTC").Return(testCurrency(), nil)
	d.rates.EXPECT().GetRate(ctx, "BTC").Return(btcRate(testNow), nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)

	var created *domain.Investment
	d.invRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, inv *domain.Investment) error {
			created = inv
			return nil
		})
	d.ledgerRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, e *domain.LedgerEntry) error {
			assert.Equal(t, domain.EntryKindDeposit, e.Kind)
			assert.Equal(t, domain.EntryStatusPending, e.Status)
			assert.Equal(t, created.ID, *e.InvestmentID)
			assert.Equal(t, "1000", e.AmountUSD.String())
			return nil
		})
	d.notifier.EXPECT().Notify(ctx, userID, domain.EventInvestmentCreated, gomock.Any())

	res, err := d.svc.Create(ctx, ports.CreateInvestmentRequest{
		UserID:    userID,
		PlanID:    plan.ID,
		AmountUSD: decimal.NewFromInt(1000),
		Currency:  "btc",
		UserTxRef: &ref,
	})
	require.NoError(t, err)
	assert.True(t, tx.committed)

	inv := res.Investment
	assert.Equal(t, domain.InvestmentStatusPendingVerification, inv.Status)
	assert.Equal(t, "30", inv.ExpectedDailyProfitUSD.String())
	assert.Equal(t, "210", inv.ExpectedTotalProfitUSD.String())
	assert.Equal(t, "1210", inv.ExpectedTotalReturnUSD.String())
	assert.Equal(t, "0xabc", *inv.UserTxRef)
	assert.Nil(t, inv.ActivatedAt)

	assert.Equal(t, "0.02", res.Instructions.AmountCrypto.String())
	assert.Equal(t, "bc1qplatform", res.Instructions.DepositAddress)
	assert.Equal(t, 3, res.Instructions.ConfirmationsRequired)
	assert.Equal(t, "50000", res.Instructions.RateUSDPerUnit.String())
}

func TestInvestmentService_Create_Rejections(t *testing.T) {
	userID := uuid.New()
	plan := testPlan()

	tests := []struct {
		name   string
		amount string
		setup  func(d *investmentTestDeps)
		code   string
	}{
		{name: "non-positive amount", amount: "0", code: "VAL_001"},
		{name: "sub-cent amount", amount: "1000.001", code: "VAL_001"},
		{
			name:   "inactive account",
			amount: "1000",
			setup: func(d *investmentTestDeps) {
				d.identity.EXPECT().IsActive(gomock.Any(), userID).Return(false, nil)
			},
			code: "CON_003",
		},
		{
			name:   "missing plan",
			amount: "1000",
			setup: func(d *investmentTestDeps) {
				d.identity.EXPECT().IsActive(gomock.Any(), userID).Return(true, nil)
				d.catalog.EXPECT().GetPlan(gomock.Any(), plan.ID).Return(nil, nil)
			},
			code: "NF_001",
		},
		{
			name:   "inactive plan",
			amount: "1000",
			setup: func(d *investmentTestDeps) {
				inactive := *plan
				inactive.IsActive = false
				d.identity.EXPECT().IsActive(gomock.Any(), userID).Return(true, nil)
				d.catalog.EXPECT().GetPlan(gomock.Any(), plan.ID).Return(&inactive, nil)
			},
			code: "NF_001",
		},
		{
			name:   "above plan max",
			amount: "5000.01",
			setup: func(d *investmentTestDeps) {
				d.identity.EXPECT().IsActive(gomock.Any(), userID).Return(true, nil)
				d.catalog.EXPECT().GetPlan(gomock.Any(), plan.ID).Return(plan, nil)
			},
			code: "VAL_002",
		},
		{
			name:   "currency not accepted",
			amount: "1000",
			setup: func(d *investmentTestDeps) {
				c := testCurrency()
				c.ActiveForInvestment = false
				d.identity.EXPECT().IsActive(gomock.Any(), userID).Return(true, nil)
				d.catalog.EXPECT().GetPlan(gomock.Any(), plan.ID).Return(plan, nil)
				d.catalog.EXPECT().GetCurrency(gomock.Any(), "BTC").Return(c, nil)
			},
			code: "NF_001",
		},
		{
			name:   "rate unavailable",
			amount: "1000",
			setup: func(d *investmentTestDeps) {
				d.identity.EXPECT().IsActive(gomock.Any(), userID).Return(true, nil)
				d.catalog.EXPECT().GetPlan(gomock.Any(), plan.ID).Return(plan, nil)
				d.catalog.EXPECT().GetCurrency(gomock.Any(), "BTC").Return(testCurrency(), nil)
				d.rates.EXPECT().GetRate(gomock.Any(), "BTC").Return(nil, apperrorRateUnavailable())
			},
			code: "SVC_001",
		},
		{
			name:   "below minimum crypto",
			amount: "1000",
			setup: func(d *investmentTestDeps) {
				c := testCurrency()
				c.MinInvestmentCrypto = decimal.RequireFromString("0.05")
				d.identity.EXPECT().IsActive(gomock.Any(), userID).Return(true, nil)
				d.catalog.EXPECT().GetPlan(gomock.Any(), plan.ID).Return(plan, nil)
				d.catalog.EXPECT().GetCurrency(gomock.Any(), "BTC").Return(c, nil)
				d.rates.EXPECT().GetRate(gomock.Any(), "BTC").Return(btcRate(testNow), nil)
			},
			code: "VAL_003",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupInvestmentService(t)
			if tt.setup != nil {
				tt.setup(d)
			}
			_, err := d.svc.Create(context.Background(), ports.CreateInvestmentRequest{
				UserID:    userID,
				PlanID:    plan.ID,
				AmountUSD: decimal.RequireFromString(tt.amount),
				Currency:  "BTC",
			})
			assertAppError(t, err, tt.code)
		})
	}
}

func TestInvestmentService_VerifyAndActivate_Success(t *testing.T) {
	d := setupInvestmentService(t)
	ctx := context.Background()
	adminID := uuid.New()
	inv := pendingInvestment(uuid.New())
	deposit := domain.NewDepositEntry(inv)
	tx := &mockTx{}

	d.invRepo.EXPECT().GetByID(ctx, inv.ID).Return(inv, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.invRepo.EXPECT().Activate(ctx, tx, inv.ID, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, _ uuid.UUID, a domain.Activation) (bool, error) {
			assert.Equal(t, testNow, a.ActivatedAt)
			assert.Equal(t, testNow.Add(7*24*time.Hour), a.MaturesAt)
			return true, nil
		})
	d.ledgerRepo.EXPECT().GetByInvestmentID(ctx, tx, inv.ID, domain.EntryKindDeposit).Return(deposit, nil)
	d.ledgerRepo.EXPECT().Finalize(ctx, tx, deposit.ID, domain.EntryStatusPending, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, _ uuid.UUID, _ domain.EntryStatus, f domain.EntryFinalization) (bool, error) {
			assert.Equal(t, domain.EntryStatusVerified, f.Status)
			assert.Equal(t, "0.0199", f.AmountCrypto.Decimal.String())
			assert.Equal(t, "0xconfirmed", *f.UserTxRef)
			assert.Equal(t, adminID, *f.ProcessedBy)
			return true, nil
		})
	d.notifier.EXPECT().Notify(ctx, inv.UserID, domain.EventInvestmentActivated, gomock.Any())

	got, err := d.svc.VerifyAndActivate(ctx, ports.VerifyInvestmentRequest{
		AdminID:               adminID,
		InvestmentID:          inv.ID,
		ConfirmedAmountCrypto: decimal.RequireFromString("0.0199"),
		ConfirmedTxRef:        "0xconfirmed",
	})
	require.NoError(t, err)
	assert.True(t, tx.committed)
	assert.Equal(t, domain.InvestmentStatusActive, got.Status)
	assert.Equal(t, testNow, *got.ActivatedAt)
	assert.Equal(t, adminID, *got.VerifiedBy)
	assert.Equal(t, "0.0199", got.PrincipalCrypto().String())
}

func TestInvestmentService_VerifyAndActivate_Conflicts(t *testing.T) {
	adminID := uuid.New()
	req := func(id uuid.UUID) ports.VerifyInvestmentRequest {
		return ports.VerifyInvestmentRequest{
			AdminID:               adminID,
			InvestmentID:          id,
			ConfirmedAmountCrypto: decimal.RequireFromString("0.02"),
			ConfirmedTxRef:        "0xref",
		}
	}

	t.Run("already active", func(t *testing.T) {
		d := setupInvestmentService(t)
		inv := pendingInvestment(uuid.New())
		inv.Status = domain.InvestmentStatusActive
		d.invRepo.EXPECT().GetByID(gomock.Any(), inv.ID).Return(inv, nil)

		_, err := d.svc.VerifyAndActivate(context.Background(), req(inv.ID))
		assertAppError(t, err, "CON_001")
	})

	t.Run("state machine forbids activation", func(t *testing.T) {
		for _, status := range []domain.InvestmentStatus{
			domain.InvestmentStatusMatured,
			domain.InvestmentStatusWithdrawn,
			domain.InvestmentStatusCancelled,
		} {
			d := setupInvestmentService(t)
			inv := pendingInvestment(uuid.New())
			inv.Status = status
			d.invRepo.EXPECT().GetByID(gomock.Any(), inv.ID).Return(inv, nil)

			_, err := d.svc.VerifyAndActivate(context.Background(), req(inv.ID))
			assertAppError(t, err, "CON_001")
		}
	})

	t.Run("deposit already final", func(t *testing.T) {
		d := setupInvestmentService(t)
		inv := pendingInvestment(uuid.New())
		deposit := domain.NewDepositEntry(inv)
		deposit.Status = domain.EntryStatusCancelled
		tx := &mockTx{}
		d.invRepo.EXPECT().GetByID(gomock.Any(), inv.ID).Return(inv, nil)
		d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
		d.invRepo.EXPECT().Activate(gomock.Any(), tx, inv.ID, gomock.Any()).Return(true, nil)
		d.ledgerRepo.EXPECT().GetByInvestmentID(gomock.Any(), tx, inv.ID, domain.EntryKindDeposit).Return(deposit, nil)

		_, err := d.svc.VerifyAndActivate(context.Background(), req(inv.ID))
		assertAppError(t, err, "INC_001")
		assert.False(t, tx.committed)
		assert.True(t, tx.rolledBack)
	})

	t.Run("lost race", func(t *testing.T) {
		d := setupInvestmentService(t)
		inv := pendingInvestment(uuid.New())
		tx := &mockTx{}
		d.invRepo.EXPECT().GetByID(gomock.Any(), inv.ID).Return(inv, nil)
		d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
		d.invRepo.EXPECT().Activate(gomock.Any(), tx, inv.ID, gomock.Any()).Return(false, nil)

		_, err := d.svc.VerifyAndActivate(context.Background(), req(inv.ID))
		assertAppError(t, err, "CON_002")
		assert.True(t, tx.rolledBack)
	})

	t.Run("deposit missing rolls back", func(t *testing.T) {
		d := setupInvestmentService(t)
		inv := pendingInvestment(uuid.New())
		tx := &mockTx{}
		d.invRepo.EXPECT().GetByID(gomock.Any(), inv.ID).Return(inv, nil)
		d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
		d.invRepo.EXPECT().Activate(gomock.Any(), tx, inv.ID, gomock.Any()).Return(true, nil)
		d.ledgerRepo.EXPECT().GetByInvestmentID(gomock.Any(), tx, inv.ID, domain.EntryKindDeposit).Return(nil, nil)

		_, err := d.svc.VerifyAndActivate(context.Background(), req(inv.ID))
		assertAppError(t, err, "INC_001")
		assert.False(t, tx.committed)
	})

	t.Run("missing investment", func(t *testing.T) {
		d := setupInvestmentService(t)
		id := uuid.New()
		d.invRepo.EXPECT().GetByID(gomock.Any(), id).Return(nil, nil)

		_, err := d.svc.VerifyAndActivate(context.Background(), req(id))
		assertAppError(t, err, "NF_001")
	})

	t.Run("invalid input", func(t *testing.T) {
		d := setupInvestmentService(t)
		bad := req(uuid.New())
		bad.ConfirmedTxRef = " "
		_, err := d.svc.VerifyAndActivate(context.Background(), bad)
		assertAppError(t, err, "VAL_001")
	})
}

func TestInvestmentService_CancelPending(t *testing.T) {
	d := setupInvestmentService(t)
	ctx := context.Background()
	adminID := uuid.New()
	inv := pendingInvestment(uuid.New())
	deposit := domain.NewDepositEntry(inv)
	tx := &mockTx{}
	note := domain.CancellationNote(adminID, "funds never arrived")

	d.invRepo.EXPECT().GetByID(ctx, inv.ID).Return(inv, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.invRepo.EXPECT().Cancel(ctx, tx, inv.ID, note, testNow).Return(true, nil)
	d.ledgerRepo.EXPECT().GetByInvestmentID(ctx, tx, inv.ID, domain.EntryKindDeposit).Return(deposit, nil)
	d.ledgerRepo.EXPECT().Finalize(ctx, tx, deposit.ID, domain.EntryStatusPending, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, _ uuid.UUID, _ domain.EntryStatus, f domain.EntryFinalization) (bool, error) {
			assert.Equal(t, domain.EntryStatusCancelled, f.Status)
			assert.Equal(t, note, *f.Description)
			return true, nil
		})
	d.notifier.EXPECT().Notify(ctx, inv.UserID, domain.EventInvestmentCancelled, gomock.Any())

	got, err := d.svc.CancelPending(ctx, adminID, inv.ID, " funds never arrived ")
	require.NoError(t, err)
	assert.Equal(t, domain.InvestmentStatusCancelled, got.Status)
	assert.Equal(t, note, *got.AdminNotes)
}

func TestInvestmentService_CancelPending_RequiresReasonAndPending(t *testing.T) {
	d := setupInvestmentService(t)
	_, err := d.svc.CancelPending(context.Background(), uuid.New(), uuid.New(), "")
	assertAppError(t, err, "VAL_001")

	inv := pendingInvestment(uuid.New())
	inv.Status = domain.InvestmentStatusMatured
	d.invRepo.EXPECT().GetByID(gomock.Any(), inv.ID).Return(inv, nil)
	_, err = d.svc.CancelPending(context.Background(), uuid.New(), inv.ID, "duplicate")
	assertAppError(t, err, "CON_001")
}

func TestInvestmentService_SubmitUserTxRef(t *testing.T) {
	t.Run("updates investment and deposit", func(t *testing.T) {
		d := setupInvestmentService(t)
		ctx := context.Background()
		inv := pendingInvestment(uuid.New())
		deposit := domain.NewDepositEntry(inv)
		tx := &mockTx{}

		d.invRepo.EXPECT().GetByID(ctx, inv.ID).Return(inv, nil)
		d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
		d.invRepo.EXPECT().UpdateUserTxRef(ctx, tx, inv.ID, "0xuser", testNow).Return(true, nil)
		d.ledgerRepo.EXPECT().GetByInvestmentID(ctx, tx, inv.ID, domain.EntryKindDeposit).Return(deposit, nil)
		d.ledgerRepo.EXPECT().UpdateUserTxRef(ctx, tx, deposit.ID, "0xuser").Return(true, nil)

		got, err := d.svc.SubmitUserTxRef(ctx, inv.UserID, inv.ID, "0xuser")
		require.NoError(t, err)
		assert.Equal(t, "0xuser", *got.UserTxRef)
		assert.Equal(t, domain.InvestmentStatusPendingVerification, got.Status)
		assert.True(t, tx.committed)
	})

	t.Run("other user's investment is not found", func(t *testing.T) {
		d := setupInvestmentService(t)
		inv := pendingInvestment(uuid.New())
		d.invRepo.EXPECT().GetByID(gomock.Any(), inv.ID).Return(inv, nil)

		_, err := d.svc.SubmitUserTxRef(context.Background(), uuid.New(), inv.ID, "0xuser")
		assertAppError(t, err, "NF_001")
	})

	t.Run("active investment is a conflict", func(t *testing.T) {
		d := setupInvestmentService(t)
		inv := pendingInvestment(uuid.New())
		inv.Status = domain.InvestmentStatusActive
		d.invRepo.EXPECT().GetByID(gomock.Any(), inv.ID).Return(inv, nil)

		_, err := d.svc.SubmitUserTxRef(context.Background(), inv.UserID, inv.ID, "0xuser")
		assertAppError(t, err, "CON_001")
	})
}

func TestInvestmentService_GetAndList(t *testing.T) {
	d := setupInvestmentService(t)
	ctx := context.Background()
	inv := pendingInvestment(uuid.New())
	inv.ApplyActivation(inv.PlanActivation(uuid.New(), decimal.RequireFromString("0.02"), "0xref", testNow.Add(-3*24*time.Hour)))

	d.invRepo.EXPECT().GetByID(ctx, inv.ID).Return(inv, nil)
	view, err := d.svc.Get(ctx, inv.UserID, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, view.Progress.DaysElapsed)
	assert.Equal(t, 4, view.Progress.DaysRemaining)
	assert.Equal(t, "90", view.Progress.AccruedProfitUSD.String())

	params := ports.ListParams{Page: 1, PageSize: 10}
	d.invRepo.EXPECT().ListByUser(ctx, inv.UserID, params).Return([]domain.Investment{*inv}, int64(1), nil)
	views, total, err := d.svc.List(ctx, inv.UserID, params)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, views, 1)
	assert.Equal(t, "1090", views[0].Progress.CurrentValueUSD.String())

	d.invRepo.EXPECT().ListByUser(ctx, inv.UserID, params).Return(nil, int64(0), errors.New("db down"))
	_, _, err = d.svc.List(ctx, inv.UserID, params)
	assertAppError(t, err, "SYS_001")
}
