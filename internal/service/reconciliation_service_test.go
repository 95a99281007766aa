package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"amethyst-storefront/internal/clock"
	"amethyst-storefront/internal/core/domain"
	"amethyst-storefront/internal/core/ports"
	"amethyst-storefront/internal/core/ports/mocks"
	"amethyst-storefront/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type reconTestDeps struct {
	svc     *ReconciliationServiceImpl
	orders  *mocks.MockOrderRepository
	scanner *mocks.MockLedgerScanner
	lease   *mocks.MockSweepLease
}

func setupReconciliation(t *testing.T, withLease bool) *reconTestDeps {
	return setupReconciliationWith(t, withLease, false)
}

func setupReconciliationWith(t *testing.T, withLease, exclusive bool) *reconTestDeps {
	ctrl := gomock.NewController(t)
	d := &reconTestDeps{
		orders:  mocks.NewMockOrderRepository(ctrl),
		scanner: mocks.NewMockLedgerScanner(ctrl),
	}
	var lease ports.SweepLease
	if withLease {
		d.lease = mocks.NewMockSweepLease(ctrl)
		lease = d.lease
	}
	d.svc = NewReconciliationService(d.orders, d.scanner, lease, ReconciliationOptions{
		BindingTTL:  24 * time.Hour,
		Concurrency: 2,
		BatchSize:   100,
		LeaseTTL:    5 * time.Minute,
		LeaseOwner:  "replica-test",

		ExclusiveAddresses: exclusive,
	}, clock.NewFixed(testNow), zerolog.Nop())
	return d
}

func boundOrder(currency domain.Currency, boundAgo time.Duration) *domain.Order {
	o := pendingOrder("45")
	o.Binding = &domain.PaymentBinding{
		Currency:       currency,
		Address:        "addr-" + o.ID.String()[:8],
		ExpectedAmount: decimal.RequireFromString("0.0005"),
		Rate:           decimal.NewFromInt(90000),
		RateSource:     "coingecko",
		CreatedAt:      testNow.Add(-boundAgo),
	}
	return o
}

// ==================== CheckPayment Tests ====================

func TestReconciliation_CheckPayment_ConfirmsPaidOrder(t *testing.T) {
	d := setupReconciliation(t, false)
	ctx := context.Background()
	order := boundOrder(domain.CurrencyBitcoin, time.Hour)

	d.orders.EXPECT().GetByID(ctx, order.ID).Return(order, nil)
	d.scanner.EXPECT().IsPaid(ctx, ports.PaymentCheck{
		Currency:       domain.CurrencyBitcoin,
		Address:        order.Binding.Address,
		ExpectedAmount: order.Binding.ExpectedAmount,
		Since:          order.Binding.CreatedAt.Add(-AttributionSkew),
	}).Return(true, nil)
	d.orders.EXPECT().ConfirmIfPending(ctx, order.ID, testNow).Return(nil).Times(1)

	res, err := d.svc.CheckPayment(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, res.Paid)
	assert.Equal(t, domain.PaymentStatusConfirmed, res.Status)
	require.NotNil(t, res.ConfirmedAt)
	assert.Equal(t, testNow, *res.ConfirmedAt)
}

func TestReconciliation_CheckPayment_NotPaidNoWrite(t *testing.T) {
	d := setupReconciliation(t, false)
	order := boundOrder(domain.CurrencyLitecoin, time.Hour)

	d.orders.EXPECT().GetByID(gomock.Any(), order.ID).Return(order, nil)
	d.scanner.EXPECT().IsPaid(gomock.Any(), gomock.Any()).Return(false, nil)

	res, err := d.svc.CheckPayment(context.Background(), order.ID)
	require.NoError(t, err)
	assert.False(t, res.Paid)
	assert.Equal(t, domain.PaymentStatusPending, res.Status)
	assert.Nil(t, res.ConfirmedAt)
}

func TestReconciliation_CheckPayment_AlreadyConfirmedSkipsLedger(t *testing.T) {
	d := setupReconciliation(t, false)
	order := boundOrder(domain.CurrencyBitcoin, time.Hour)
	at := testNow.Add(-time.Minute)
	order.Status = domain.PaymentStatusConfirmed
	order.ConfirmedAt = &at

	d.orders.EXPECT().GetByID(gomock.Any(), order.ID).Return(order, nil).Times(2)
	// no scanner and no ConfirmIfPending expectations

	for i := 0; i < 2; i++ {
		res, err := d.svc.CheckPayment(context.Background(), order.ID)
		require.NoError(t, err)
		assert.True(t, res.Paid)
		assert.Equal(t, &at, res.ConfirmedAt)
	}
}

func TestReconciliation_CheckPayment_ExplorerOutageStaysPending(t *testing.T) {
	d := setupReconciliation(t, false)
	order := boundOrder(domain.CurrencyBitcoin, time.Hour)

	d.orders.EXPECT().GetByID(gomock.Any(), order.ID).Return(order, nil)
	d.scanner.EXPECT().IsPaid(gomock.Any(), gomock.Any()).
		Return(false, apperror.ErrExternalSource(fmt.Errorf("%w: refused", ports.ErrSourceUnavailable)))

	res, err := d.svc.CheckPayment(context.Background(), order.ID)
	require.NoError(t, err, "explorer errors are absorbed")
	assert.False(t, res.Paid)
}

func TestReconciliation_CheckPayment_LostRace(t *testing.T) {
	d := setupReconciliation(t, false)
	order := boundOrder(domain.CurrencyBitcoin, time.Hour)
	winnerAt := testNow.Add(-time.Second)
	confirmed := *order
	confirmed.Status = domain.PaymentStatusConfirmed
	confirmed.ConfirmedAt = &winnerAt

	gomock.InOrder(
		d.orders.EXPECT().GetByID(gomock.Any(), order.ID).Return(order, nil),
		d.scanner.EXPECT().IsPaid(gomock.Any(), gomock.Any()).Return(true, nil),
		d.orders.EXPECT().ConfirmIfPending(gomock.Any(), order.ID, testNow).
			Return(fmt.Errorf("not pending: %w", ports.ErrConflict)),
		d.orders.EXPECT().GetByID(gomock.Any(), order.ID).Return(&confirmed, nil),
	)

	res, err := d.svc.CheckPayment(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, res.Paid)
	assert.Equal(t, &winnerAt, res.ConfirmedAt)
}

func TestReconciliation_CheckPayment_ConflictOnUnconfirmedOrderStaysPending(t *testing.T) {
	d := setupReconciliation(t, false)
	order := boundOrder(domain.CurrencyBitcoin, time.Hour)
	rebound := *order
	rebound.Status = domain.PaymentStatusPending

	gomock.InOrder(
		d.orders.EXPECT().GetByID(gomock.Any(), order.ID).Return(order, nil),
		d.scanner.EXPECT().IsPaid(gomock.Any(), gomock.Any()).Return(true, nil),
		d.orders.EXPECT().ConfirmIfPending(gomock.Any(), order.ID, testNow).
			Return(fmt.Errorf("not pending: %w", ports.ErrConflict)),
		d.orders.EXPECT().GetByID(gomock.Any(), order.ID).Return(&rebound, nil),
	)

	res, err := d.svc.CheckPayment(context.Background(), order.ID)
	require.NoError(t, err)
	assert.False(t, res.Paid)
	assert.Equal(t, domain.PaymentStatusPending, res.Status)
	assert.Nil(t, res.ConfirmedAt)
}

func TestReconciliation_CheckPayment_OrderVanishesBeforeConfirm(t *testing.T) {
	t.Run("confirm reports missing row", func(t *testing.T) {
		d := setupReconciliation(t, false)
		order := boundOrder(domain.CurrencyBitcoin, time.Hour)
		d.orders.EXPECT().GetByID(gomock.Any(), order.ID).Return(order, nil)
		d.scanner.EXPECT().IsPaid(gomock.Any(), gomock.Any()).Return(true, nil)
		d.orders.EXPECT().ConfirmIfPending(gomock.Any(), order.ID, testNow).
			Return(fmt.Errorf("order %s: %w", order.ID, ports.ErrOrderNotFound))

		res, err := d.svc.CheckPayment(context.Background(), order.ID)
		assert.Nil(t, res)
		assert.True(t, apperror.HasCode(err, "PAY_004"))
	})

	t.Run("re-read after conflict finds nothing", func(t *testing.T) {
		d := setupReconciliation(t, false)
		order := boundOrder(domain.CurrencyBitcoin, time.Hour)
		gomock.InOrder(
			d.orders.EXPECT().GetByID(gomock.Any(), order.ID).Return(order, nil),
			d.scanner.EXPECT().IsPaid(gomock.Any(), gomock.Any()).Return(true, nil),
			d.orders.EXPECT().ConfirmIfPending(gomock.Any(), order.ID, testNow).Return(ports.ErrConflict),
			d.orders.EXPECT().GetByID(gomock.Any(), order.ID).Return(nil, nil),
		)

		res, err := d.svc.CheckPayment(context.Background(), order.ID)
		assert.Nil(t, res)
		assert.True(t, apperror.HasCode(err, "PAY_004"))
	})
}

func TestReconciliation_CheckPayment_Errors(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		d := setupReconciliation(t, false)
		d.orders.EXPECT().GetByID(gomock.Any(), gomock.Any()).Return(nil, nil)

		_, err := d.svc.CheckPayment(context.Background(), uuid.New())
		assert.True(t, apperror.HasCode(err, "PAY_004"))
	})

	t.Run("not bound", func(t *testing.T) {
		d := setupReconciliation(t, false)
		order := pendingOrder("45")
		d.orders.EXPECT().GetByID(gomock.Any(), order.ID).Return(order, nil)

		_, err := d.svc.CheckPayment(context.Background(), order.ID)
		assert.True(t, apperror.HasCode(err, "PAY_009"))
	})

	t.Run("read failure", func(t *testing.T) {
		d := setupReconciliation(t, false)
		d.orders.EXPECT().GetByID(gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))

		_, err := d.svc.CheckPayment(context.Background(), uuid.New())
		assert.True(t, apperror.HasCode(err, "SYS_001"))
	})

	t.Run("confirm failure", func(t *testing.T) {
		d := setupReconciliation(t, false)
		order := boundOrder(domain.CurrencyBitcoin, time.Hour)
		d.orders.EXPECT().GetByID(gomock.Any(), order.ID).Return(order, nil)
		d.scanner.EXPECT().IsPaid(gomock.Any(), gomock.Any()).Return(true, nil)
		d.orders.EXPECT().ConfirmIfPending(gomock.Any(), order.ID, gomock.Any()).Return(errors.New("timeout"))

		_, err := d.svc.CheckPayment(context.Background(), order.ID)
		assert.True(t, apperror.HasCode(err, "SYS_001"))
	})
}

func TestReconciliation_CheckPayment_StaleBindingStillChecked(t *testing.T) {
	d := setupReconciliation(t, false)
	order := boundOrder(domain.CurrencyBitcoin, 48*time.Hour)

	d.orders.EXPECT().GetByID(gomock.Any(), order.ID).Return(order, nil)
	d.scanner.EXPECT().IsPaid(gomock.Any(), gomock.Any()).Return(true, nil)
	d.orders.EXPECT().ConfirmIfPending(gomock.Any(), order.ID, testNow).Return(nil)

	res, err := d.svc.CheckPayment(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, res.Paid)
}

func TestReconciliation_CheckPayment_StaleBindingRebound(t *testing.T) {
	d := setupReconciliationWith(t, false, true)
	order := boundOrder(domain.CurrencyBitcoin, 48*time.Hour)

	d.orders.EXPECT().GetByID(gomock.Any(), order.ID).Return(order, nil)
	d.orders.EXPECT().HasLaterBinding(gomock.Any(), domain.CurrencyBitcoin, order.Binding.Address,
		order.Binding.CreatedAt, order.ID).Return(true, nil)
	// no scanner expectation: the address now belongs to a later order

	res, err := d.svc.CheckPayment(context.Background(), order.ID)
	require.NoError(t, err)
	assert.False(t, res.Paid)
	assert.Equal(t, domain.PaymentStatusPending, res.Status)
}

func TestReconciliation_CheckPayment_StaleBindingNotRebound(t *testing.T) {
	d := setupReconciliationWith(t, false, true)
	order := boundOrder(domain.CurrencyBitcoin, 48*time.Hour)

	d.orders.EXPECT().GetByID(gomock.Any(), order.ID).Return(order, nil)
	d.orders.EXPECT().HasLaterBinding(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), order.ID).Return(false, nil)
	d.scanner.EXPECT().IsPaid(gomock.Any(), gomock.Any()).Return(true, nil)
	d.orders.EXPECT().ConfirmIfPending(gomock.Any(), order.ID, testNow).Return(nil)

	res, err := d.svc.CheckPayment(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, res.Paid)
}

func TestReconciliation_CheckPayment_LiveBindingSkipsRebindLookup(t *testing.T) {
	d := setupReconciliationWith(t, false, true)
	order := boundOrder(domain.CurrencyBitcoin, time.Hour)

	d.orders.EXPECT().GetByID(gomock.Any(), order.ID).Return(order, nil)
	// no HasLaterBinding expectation: a live binding still owns its address
	d.scanner.EXPECT().IsPaid(gomock.Any(), gomock.Any()).Return(false, nil)

	res, err := d.svc.CheckPayment(context.Background(), order.ID)
	require.NoError(t, err)
	assert.False(t, res.Paid)
}

// ==================== Sweep Tests ====================

func TestReconciliation_Sweep_MixedBatch(t *testing.T) {
	d := setupReconciliation(t, true)
	ctx := context.Background()

	paid := boundOrder(domain.CurrencyBitcoin, time.Hour)
	unpaid := boundOrder(domain.CurrencyLitecoin, time.Hour)
	broken := boundOrder(domain.CurrencyBitcoin, time.Hour)
	stale := boundOrder(domain.CurrencyBitcoin, 25*time.Hour)

	d.lease.EXPECT().Acquire(ctx, "replica-test", 5*time.Minute).Return(true, nil)
	d.lease.EXPECT().Release(gomock.Any(), "replica-test").Return(nil)
	d.orders.EXPECT().ListPendingBound(ctx, testNow.Add(-24*time.Hour), 100).
		Return([]domain.Order{*paid, *unpaid, *broken, *stale}, nil)

	d.scanner.EXPECT().IsPaid(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, c ports.PaymentCheck) (bool, error) {
			switch c.Address {
			case paid.Binding.Address:
				return true, nil
			case broken.Binding.Address:
				return false, apperror.ErrExternalSource(ports.ErrSourceUnavailable)
			default:
				return false, nil
			}
		}).Times(3)
	d.orders.EXPECT().ConfirmIfPending(gomock.Any(), paid.ID, testNow).Return(nil).Times(1)

	res, err := d.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalChecked)
	assert.Equal(t, 1, res.ConfirmedCount)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, res.SkippedReason)
	assert.Equal(t, "Crypto monitor completed. Confirmed 1 orders out of 3 pending orders.", res.Summary())
}

func TestReconciliation_Sweep_ContinuesPastWriteFailure(t *testing.T) {
	d := setupReconciliation(t, false)
	a := boundOrder(domain.CurrencyBitcoin, time.Hour)
	b := boundOrder(domain.CurrencyBitcoin, time.Hour)

	d.orders.EXPECT().ListPendingBound(gomock.Any(), gomock.Any(), 100).Return([]domain.Order{*a, *b}, nil)
	d.scanner.EXPECT().IsPaid(gomock.Any(), gomock.Any()).Return(true, nil).Times(2)
	d.orders.EXPECT().ConfirmIfPending(gomock.Any(), a.ID, gomock.Any()).Return(errors.New("deadlock"))
	d.orders.EXPECT().ConfirmIfPending(gomock.Any(), b.ID, gomock.Any()).Return(nil)

	res, err := d.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalChecked)
	assert.Equal(t, 1, res.ConfirmedCount)
	assert.Equal(t, 1, res.Failed)
}

func TestReconciliation_Sweep_LeaseHeld(t *testing.T) {
	d := setupReconciliation(t, true)
	d.lease.EXPECT().Acquire(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, nil)
	// no ListPendingBound expectation

	res, err := d.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SkipReasonLeaseHeld, res.SkippedReason)
	assert.Zero(t, res.TotalChecked)
	assert.Equal(t, "Crypto monitor skipped: lease_held.", res.Summary())
}

func TestReconciliation_Sweep_LeaseStoreDown(t *testing.T) {
	d := setupReconciliation(t, true)
	d.lease.EXPECT().Acquire(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errors.New("redis down"))
	d.orders.EXPECT().ListPendingBound(gomock.Any(), gomock.Any(), 100).Return(nil, nil)

	res, err := d.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "No pending orders to check", res.Summary())
}

func TestReconciliation_Sweep_ListError(t *testing.T) {
	d := setupReconciliation(t, false)
	d.orders.EXPECT().ListPendingBound(gomock.Any(), gomock.Any(), 100).Return(nil, errors.New("timeout"))

	_, err := d.svc.Sweep(context.Background())
	assert.True(t, apperror.HasCode(err, "SYS_001"))
}

func TestReconciliation_Sweep_CanceledContextSkipsRemaining(t *testing.T) {
	d := setupReconciliation(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d.orders.EXPECT().ListPendingBound(gomock.Any(), gomock.Any(), 100).
		Return([]domain.Order{*boundOrder(domain.CurrencyBitcoin, time.Hour)}, nil)

	res, err := d.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.TotalChecked)
	assert.Equal(t, 1, res.Skipped)
}
