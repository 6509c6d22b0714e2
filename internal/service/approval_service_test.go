package service

import (
	"context"
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

type approvalTestDeps struct {
	svc            *ApprovalServiceImpl
	invRepo        *mocks.MockInvestmentRepository
	ledgerRepo     *mocks.MockLedgerRepository
	withdrawalRepo *mocks.MockWithdrawalRepository
	catalog        *mocks.MockPlanCatalog
	rates          *mocks.MockRateOracle
	notifier       *mocks.MockNotifier
	transactor     *mocks.MockDBTransactor
}

func setupApprovalService(t *testing.T) *approvalTestDeps {
	ctrl := gomock.NewController(t)
	d := &approvalTestDeps{
		invRepo:        mocks.NewMockInvestmentRepository(ctrl),
		ledgerRepo:     mocks.NewMockLedgerRepository(ctrl),
		withdrawalRepo: mocks.NewMockWithdrawalRepository(ctrl),
		catalog:        mocks.NewMockPlanCatalog(ctrl),
		rates:          mocks.NewMockRateOracle(ctrl),
		notifier:       mocks.NewMockNotifier(ctrl),
		transactor:     mocks.NewMockDBTransactor(ctrl),
	}
	d.svc = NewApprovalService(d.invRepo, d.ledgerRepo, d.withdrawalRepo, d.catalog, d.rates, d.notifier, d.transactor, newTestLogger())
	d.svc.now = fixedClock(testNow)
	return d
}

func pendingWithdrawal(amount string) *domain.Withdrawal {
	return domain.NewWithdrawal(uuid.New(), decimal.RequireFromString(amount), "BTC", "bc1quser", testNow.Add(-time.Hour))
}

func TestApprovalService_Approve_LocksRateAndSettles(t *testing.T) {
	d := setupApprovalService(t)
	ctx := context.Background()
	adminID := uuid.New()
	w := pendingWithdrawal("210")
	locked := *w
	entry := domain.NewWithdrawalEntry(w)
	tx := &mockTx{}

	inv := maturedWithProfit("210", domain.InvestmentStatusMatured, testNow.Add(-24*time.Hour))
	inv.UserID = w.UserID
	roi := domain.NewROIPayoutEntry(&inv, "BTC", testNow.Add(-24*time.Hour))

	d.withdrawalRepo.EXPECT().GetByID(ctx, w.ID).Return(w, nil)
	d.catalog.EXPECT().GetCurrency(ctx, "BTC").Return(testCurrency(), nil)
	d.rates.EXPECT().GetRate(ctx, "BTC").Return(btcRate(testNow), nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.withdrawalRepo.EXPECT().GetByIDForUpdate(ctx, tx, w.ID).Return(&locked, nil)
	d.withdrawalRepo.EXPECT().ApplyDecision(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, dec domain.WithdrawalDecision) (bool, error) {
			assert.Equal(t, domain.WithdrawalStatusCompleted, dec.Status)
			assert.Equal(t, "0.0042", dec.AmountCrypto.Decimal.String())
			assert.Equal(t, "50000", dec.RateSnapshot.Decimal.String())
			assert.Equal(t, "0xpayout", *dec.PlatformTxRef)
			return true, nil
		})
	d.ledgerRepo.EXPECT().GetByWithdrawalID(ctx, tx, w.ID).Return(entry, nil)
	d.ledgerRepo.EXPECT().Finalize(ctx, tx, entry.ID, domain.EntryStatusPending, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, _ uuid.UUID, _ domain.EntryStatus, f domain.EntryFinalization) (bool, error) {
			assert.Equal(t, domain.EntryStatusCompleted, f.Status)
			assert.Equal(t, "0.0042", f.AmountCrypto.Decimal.String())
			assert.Equal(t, adminID, *f.ProcessedBy)
			return true, nil
		})

	// settlement: the completed withdrawal consumes the only matured profit
	d.invRepo.EXPECT().ListSettlementCandidates(ctx, tx, w.UserID).Return([]domain.Investment{inv}, nil)
	d.ledgerRepo.EXPECT().SumByKind(ctx, tx, w.UserID, domain.EntryKindWithdrawal, []domain.EntryStatus{domain.EntryStatusCompleted}).
		Return(decimal.NewFromInt(210), nil)
	d.invRepo.EXPECT().MarkWithdrawn(ctx, tx, inv.ID, testNow).Return(true, nil)
	d.ledgerRepo.EXPECT().GetByInvestmentID(ctx, tx, inv.ID, domain.EntryKindROIPayout).Return(roi, nil)
	d.ledgerRepo.EXPECT().Finalize(ctx, tx, roi.ID, domain.EntryStatusPending, gomock.Any()).Return(true, nil)

	d.notifier.EXPECT().Notify(ctx, w.UserID, domain.EventWithdrawalApproved, gomock.Any())

	got, err := d.svc.Approve(ctx, adminID, w.ID, " 0xpayout ")
	require.NoError(t, err)
	assert.True(t, tx.committed)
	assert.Equal(t, domain.WithdrawalStatusCompleted, got.Status)
	assert.Equal(t, adminID, *got.ApprovedBy)
	assert.Equal(t, "0.0042", got.AmountCrypto.Decimal.String())
}

func TestApprovalService_Approve_RateOutageFailsClosed(t *testing.T) {
	d := setupApprovalService(t)
	w := pendingWithdrawal("100")

	d.withdrawalRepo.EXPECT().GetByID(gomock.Any(), w.ID).Return(w, nil)
	d.catalog.EXPECT().GetCurrency(gomock.Any(), "BTC").Return(testCurrency(), nil)
	d.rates.EXPECT().GetRate(gomock.Any(), "BTC").Return(nil, apperrorRateUnavailable())

	_, err := d.svc.Approve(context.Background(), uuid.New(), w.ID, "0xpayout")
	assertAppError(t, err, "SVC_001")
}

func TestApprovalService_Approve_MissingEntryRollsBack(t *testing.T) {
	d := setupApprovalService(t)
	w := pendingWithdrawal("100")
	tx := &mockTx{}

	d.withdrawalRepo.EXPECT().GetByID(gomock.Any(), w.ID).Return(w, nil)
	d.catalog.EXPECT().GetCurrency(gomock.Any(), "BTC").Return(nil, nil)
	d.rates.EXPECT().GetRate(gomock.Any(), "BTC").Return(btcRate(testNow), nil)
	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.withdrawalRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, w.ID).Return(w, nil)
	d.withdrawalRepo.EXPECT().ApplyDecision(gomock.Any(), tx, gomock.Any()).Return(true, nil)
	d.ledgerRepo.EXPECT().GetByWithdrawalID(gomock.Any(), tx, w.ID).Return(nil, nil)

	_, err := d.svc.Approve(context.Background(), uuid.New(), w.ID, "0xpayout")
	assertAppError(t, err, "INC_001")
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}

func TestApprovalService_Approve_Conflicts(t *testing.T) {
	t.Run("not pending", func(t *testing.T) {
		d := setupApprovalService(t)
		w := pendingWithdrawal("100")
		w.Status = domain.WithdrawalStatusRejected
		d.withdrawalRepo.EXPECT().GetByID(gomock.Any(), w.ID).Return(w, nil)

		_, err := d.svc.Approve(context.Background(), uuid.New(), w.ID, "0xpayout")
		assertAppError(t, err, "CON_001")
	})

	t.Run("decided while waiting for the rate", func(t *testing.T) {
		d := setupApprovalService(t)
		w := pendingWithdrawal("100")
		rejected := *w
		rejected.Status = domain.WithdrawalStatusRejected

		d.withdrawalRepo.EXPECT().GetByID(gomock.Any(), w.ID).Return(w, nil)
		d.catalog.EXPECT().GetCurrency(gomock.Any(), "BTC").Return(testCurrency(), nil)
		d.rates.EXPECT().GetRate(gomock.Any(), "BTC").Return(btcRate(testNow), nil)
		d.transactor.EXPECT().Begin(gomock.Any()).Return(&mockTx{}, nil)
		d.withdrawalRepo.EXPECT().GetByIDForUpdate(gomock.Any(), gomock.Any(), w.ID).Return(&rejected, nil)

		_, err := d.svc.Approve(context.Background(), uuid.New(), w.ID, "0xpayout")
		assertAppError(t, err, "CON_001")
	})

	t.Run("missing reference", func(t *testing.T) {
		d := setupApprovalService(t)
		_, err := d.svc.Approve(context.Background(), uuid.New(), uuid.New(), "")
		assertAppError(t, err, "VAL_001")
	})

	t.Run("unknown withdrawal", func(t *testing.T) {
		d := setupApprovalService(t)
		id := uuid.New()
		d.withdrawalRepo.EXPECT().GetByID(gomock.Any(), id).Return(nil, nil)
		_, err := d.svc.Approve(context.Background(), uuid.New(), id, "0xpayout")
		assertAppError(t, err, "NF_001")
	})
}

func TestApprovalService_Reject(t *testing.T) {
	d := setupApprovalService(t)
	ctx := context.Background()
	adminID := uuid.New()
	w := pendingWithdrawal("150")
	entry := domain.NewWithdrawalEntry(w)
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.withdrawalRepo.EXPECT().GetByIDForUpdate(ctx, tx, w.ID).Return(w, nil)
	d.withdrawalRepo.EXPECT().ApplyDecision(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, dec domain.WithdrawalDecision) (bool, error) {
			assert.Equal(t, domain.WithdrawalStatusRejected, dec.Status)
			assert.Equal(t, adminID, dec.ActorID)
			return true, nil
		})
	d.ledgerRepo.EXPECT().GetByWithdrawalID(ctx, tx, w.ID).Return(entry, nil)
	d.ledgerRepo.EXPECT().Finalize(ctx, tx, entry.ID, domain.EntryStatusPending, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, _ uuid.UUID, _ domain.EntryStatus, f domain.EntryFinalization) (bool, error) {
			assert.Equal(t, domain.EntryStatusRejected, f.Status)
			assert.Equal(t, "Withdrawal rejected: address flagged", *f.Description)
			return true, nil
		})
	d.notifier.EXPECT().Notify(ctx, w.UserID, domain.EventWithdrawalRejected, gomock.Any())

	got, err := d.svc.Reject(ctx, adminID, w.ID, "address flagged")
	require.NoError(t, err)
	assert.True(t, tx.committed)
	assert.Equal(t, domain.WithdrawalStatusRejected, got.Status)
	assert.Equal(t, "address flagged", *got.RejectionReason)
}

func TestApprovalService_Reject_LostRace(t *testing.T) {
	d := setupApprovalService(t)
	w := pendingWithdrawal("150")
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.withdrawalRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, w.ID).Return(w, nil)
	d.withdrawalRepo.EXPECT().ApplyDecision(gomock.Any(), tx, gomock.Any()).Return(false, nil)

	_, err := d.svc.Reject(context.Background(), uuid.New(), w.ID, "duplicate")
	assertAppError(t, err, "CON_002")

	_, err = d.svc.Reject(context.Background(), uuid.New(), w.ID, "  ")
	assertAppError(t, err, "VAL_001")
}

func TestApprovalService_ListQueue(t *testing.T) {
	d := setupApprovalService(t)
	status := domain.WithdrawalStatusPending
	params := ports.ListParams{Page: 1, PageSize: 20}

	d.withdrawalRepo.EXPECT().ListByStatus(gomock.Any(), &status, params).Return([]domain.Withdrawal{*pendingWithdrawal("10")}, int64(1), nil)
	ws, total, err := d.svc.ListQueue(context.Background(), &status, params)
	require.NoError(t, err)
	assert.Len(t, ws, 1)
	assert.Equal(t, int64(1), total)
}
