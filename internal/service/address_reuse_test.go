package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"amethyst-storefront/internal/adapter/storage/memory"
	"amethyst-storefront/internal/clock"
	"amethyst-storefront/internal/core/domain"
	"amethyst-storefront/internal/core/ports"
	"amethyst-storefront/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedOracle struct{ price int64 }

func (o fixedOracle) GetRate(_ context.Context, c domain.Currency) (domain.RateQuote, error) {
	return rateQuote(c, o.price), nil
}

type ledgerOutput struct {
	address string
	amount  decimal.Decimal
	at      time.Time
}

// fakeLedger answers like a block explorer: an output counts when it landed
// at or after the check window and covers the expected amount.
type fakeLedger struct {
	mu      sync.Mutex
	outputs []ledgerOutput
}

func (l *fakeLedger) pay(address, amount string, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outputs = append(l.outputs, ledgerOutput{address: address, amount: decimal.RequireFromString(amount), at: at})
}

func (l *fakeLedger) IsPaid(_ context.Context, c ports.PaymentCheck) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, out := range l.outputs {
		if out.address == c.Address && !out.at.Before(c.Since) && out.amount.GreaterThanOrEqual(c.ExpectedAmount) {
			return true, nil
		}
	}
	return false, nil
}

type reuseHarness struct {
	repo     *memory.OrderRepo
	clk      *clock.Fixed
	ledger   *fakeLedger
	payments *PaymentServiceImpl
	recon    *ReconciliationServiceImpl
}

func newReuseHarness(pool ...string) *reuseHarness {
	h := &reuseHarness{
		repo:   memory.NewOrderRepo(),
		clk:    clock.NewFixed(testNow),
		ledger: &fakeLedger{},
	}
	h.payments = NewPaymentService(h.repo, fixedOracle{price: 90000}, PaymentOptions{
		Addresses:          map[domain.Currency][]string{domain.CurrencyBitcoin: pool},
		ExclusiveAddresses: true,
		BindingTTL:         24 * time.Hour,
	}, h.clk, zerolog.Nop())
	h.recon = NewReconciliationService(h.repo, h.ledger, nil, ReconciliationOptions{
		BindingTTL:         24 * time.Hour,
		Concurrency:        2,
		BatchSize:          10,
		ExclusiveAddresses: true,
	}, h.clk, zerolog.Nop())
	return h
}

func (h *reuseHarness) order(t *testing.T) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, h.repo.Create(context.Background(), &domain.Order{
		ID: id, TotalEUR: decimal.NewFromInt(45), CreatedAt: h.clk.Now(),
	}))
	return id
}

func (h *reuseHarness) quote(id uuid.UUID) (*ports.PaymentQuote, error) {
	return h.payments.CreatePayment(context.Background(), ports.CreatePaymentRequest{
		OrderID: id, FiatAmount: decimal.NewFromInt(45), Currency: domain.CurrencyBitcoin,
	})
}

func TestAddressReuse_ConfirmedPaymentNotCreditedToNextOrder(t *testing.T) {
	h := newReuseHarness("bc1qpool")
	ctx := context.Background()

	first := h.order(t)
	quoteA, err := h.quote(first)
	require.NoError(t, err)
	require.Equal(t, "bc1qpool", quoteA.Address)

	h.ledger.pay("bc1qpool", "0.0005", testNow.Add(5*time.Minute))
	h.clk.Advance(6 * time.Minute)
	res, err := h.recon.CheckPayment(ctx, first)
	require.NoError(t, err)
	require.True(t, res.Paid)

	second := h.order(t)
	h.clk.Advance(2 * time.Minute)
	_, err = h.quote(second)
	assert.True(t, apperror.HasCode(err, "PAY_011"), "address stays held right after confirmation")

	h.clk.Advance(AttributionSkew)
	quoteB, err := h.quote(second)
	require.NoError(t, err)
	assert.Equal(t, "bc1qpool", quoteB.Address)

	res, err = h.recon.CheckPayment(ctx, second)
	require.NoError(t, err)
	assert.False(t, res.Paid, "the earlier order's payment predates this order's window")
}

func TestAddressReuse_StaleBindingReleasedToNextOrder(t *testing.T) {
	h := newReuseHarness("bc1qpool")
	ctx := context.Background()

	abandoned := h.order(t)
	_, err := h.quote(abandoned)
	require.NoError(t, err)

	next := h.order(t)
	h.clk.Advance(24*time.Hour + 5*time.Minute)
	_, err = h.quote(next)
	assert.True(t, apperror.HasCode(err, "PAY_011"), "expired binding holds its address for the skew")

	h.clk.Advance(AttributionSkew)
	quote, err := h.quote(next)
	require.NoError(t, err)
	require.Equal(t, "bc1qpool", quote.Address)

	h.ledger.pay("bc1qpool", "0.0005", h.clk.Now().Add(time.Minute))
	h.clk.Advance(2 * time.Minute)

	res, err := h.recon.CheckPayment(ctx, abandoned)
	require.NoError(t, err)
	assert.False(t, res.Paid, "the new holder's payment is not credited to the expired order")

	res, err = h.recon.CheckPayment(ctx, next)
	require.NoError(t, err)
	assert.True(t, res.Paid)

	o, err := h.repo.GetByID(ctx, abandoned)
	require.NoError(t, err)
	assert.False(t, o.IsConfirmed())
}

func TestAddressReuse_ParallelQuotesNeverShareAddress(t *testing.T) {
	h := newReuseHarness("bc1qonly")

	const n = 12
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = h.order(t)
	}

	var (
		wg        sync.WaitGroup
		bound     atomic.Int32
		exhausted atomic.Int32
	)
	start := make(chan struct{})
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := h.quote(id)
			switch {
			case err == nil:
				bound.Add(1)
			case apperror.HasCode(err, "PAY_011"):
				exhausted.Add(1)
			default:
				t.Errorf("unexpected quote error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), bound.Load())
	assert.Equal(t, int32(n-1), exhausted.Load())

	holders := 0
	for _, id := range ids {
		o, err := h.repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		if o.HasBinding() {
			holders++
		}
	}
	assert.Equal(t, 1, holders)
}
