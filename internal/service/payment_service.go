package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"amethyst-storefront/internal/clock"
	"amethyst-storefront/internal/core/domain"
	"amethyst-storefront/internal/core/ports"
	"amethyst-storefront/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PaymentOptions configures address selection and the payment deadline.
type PaymentOptions struct {
	Addresses          map[domain.Currency][]string
	ExclusiveAddresses bool
	BindingTTL         time.Duration
}

// PaymentServiceImpl implements ports.PaymentService.
type PaymentServiceImpl struct {
	orders ports.OrderRepository
	oracle ports.RateOracle
	opts   PaymentOptions
	clock  clock.Clock
	log    zerolog.Logger
}

// NewPaymentService creates a new PaymentServiceImpl.
func NewPaymentService(
	orders ports.OrderRepository,
	oracle ports.RateOracle,
	opts PaymentOptions,
	clk clock.Clock,
	log zerolog.Logger,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		orders: orders,
		oracle: oracle,
		opts:   opts,
		clock:  clk,
		log:    log,
	}
}

// CreatePayment quotes the order in the requested currency and binds it to a
// receiving address. Re-quoting overwrites the binding and resets the deadline.
func (s *PaymentServiceImpl) CreatePayment(ctx context.Context, req ports.CreatePaymentRequest) (*ports.PaymentQuote, error) {
	if !req.FiatAmount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if !req.Currency.Valid() {
		return nil, apperror.ErrUnsupportedCurrency(string(req.Currency))
	}
	if len(s.opts.Addresses[req.Currency]) == 0 {
		return nil, apperror.ErrConfiguration(currencyName(req.Currency) + " wallet address not configured")
	}

	order, err := s.orders.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("Order")
	}
	if order.IsConfirmed() {
		return nil, apperror.ErrOrderAlreadyConfirmed()
	}
	if order.TotalEUR.IsPositive() && !order.TotalEUR.Equal(req.FiatAmount) {
		return nil, apperror.Validation("Amount does not match order total")
	}

	rate, err := s.oracle.GetRate(ctx, req.Currency)
	if err != nil {
		return nil, err
	}

	if !rate.Price.IsPositive() {
		return nil, apperror.InternalError(fmt.Errorf("non-positive %s rate from %s", req.Currency, rate.Source))
	}
	expected := req.FiatAmount.DivRound(rate.Price, req.Currency.Decimals())
	if !expected.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}

	binding := domain.PaymentBinding{
		Currency:       req.Currency,
		ExpectedAmount: expected,
		Rate:           rate.Price,
		RateSource:     rate.Source,
		CreatedAt:      s.clock.Now(),
	}
	if err := s.bindAddress(ctx, order, &binding); err != nil {
		return nil, err
	}
	address := binding.Address

	s.log.Info().
		Str("order_id", order.ID.String()).
		Str("currency", string(req.Currency)).
		Str("address", address).
		Str("expected_amount", expected.StringFixed(req.Currency.Decimals())).
		Str("rate_source", rate.Source).
		Bool("degraded", rate.Degraded()).
		Msg("payment quoted")

	return &ports.PaymentQuote{
		OrderID:        order.ID,
		Currency:       req.Currency,
		Address:        address,
		ExpectedAmount: expected,
		FiatAmount:     req.FiatAmount,
		Rate:           rate,
		PaymentURI:     PaymentURI(req.Currency, address, expected),
		ExpiresAt:      binding.ExpiresAt(s.opts.BindingTTL),
	}, nil
}

// GetPayment returns the order as persisted, without any explorer call.
func (s *PaymentServiceImpl) GetPayment(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("Order")
	}
	return order, nil
}

// bindAddress picks the receiving address and persists the binding.
// In exclusive mode an address held by another order is never handed out and
// the write itself is conditional, so concurrent quotes cannot share an address;
// a lost race moves on to the next free address. The order keeps its current
// address on re-quote when that address is still free.
func (s *PaymentServiceImpl) bindAddress(ctx context.Context, order *domain.Order, b *domain.PaymentBinding) error {
	pool := s.opts.Addresses[b.Currency]

	if !s.opts.ExclusiveAddresses {
		s.log.Warn().
			Str("order_id", order.ID.String()).
			Str("currency", string(b.Currency)).
			Msg("address exclusivity disabled, reusing first configured address")
		b.Address = pool[0]
		return bindingError(s.orders.SaveBinding(ctx, order.ID, *b, nil))
	}

	hold := s.addressHold(b.CreatedAt)
	taken, err := s.orders.ListBoundAddresses(ctx, b.Currency, hold, order.ID)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("list bound addresses: %w", err))
	}

	var candidates []string
	if cur := order.Binding; cur != nil && cur.Currency == b.Currency &&
		slices.Contains(pool, cur.Address) && !slices.Contains(taken, cur.Address) {
		candidates = append(candidates, cur.Address)
	}
	for _, addr := range pool {
		if !slices.Contains(taken, addr) && !slices.Contains(candidates, addr) {
			candidates = append(candidates, addr)
		}
	}

	for _, addr := range candidates {
		b.Address = addr
		err := s.orders.SaveBinding(ctx, order.ID, *b, &hold)
		if errors.Is(err, ports.ErrAddressHeld) {
			s.log.Debug().
				Str("order_id", order.ID.String()).
				Str("address", addr).
				Msg("address taken by a concurrent quote, trying next")
			continue
		}
		return bindingError(err)
	}
	b.Address = ""
	return apperror.ErrAddressPoolExhausted(string(b.Currency))
}

// addressHold is the reservation rule for exclusive addresses at instant now.
// A pending binding holds its address until its deadline plus AttributionSkew,
// a confirmed order until AttributionSkew after confirmation. The next holder's
// attribution window therefore starts after the previous holder was released.
func (s *PaymentServiceImpl) addressHold(now time.Time) ports.AddressHold {
	hold := ports.AddressHold{ConfirmedSince: now.Add(-AttributionSkew)}
	if s.opts.BindingTTL > 0 {
		hold.PendingSince = now.Add(-s.opts.BindingTTL - AttributionSkew)
	}
	return hold
}

func bindingError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ports.ErrOrderNotFound):
		return apperror.ErrNotFound("Order")
	case errors.Is(err, ports.ErrConflict):
		return apperror.ErrConflict(err)
	default:
		return apperror.ErrDatabaseError(fmt.Errorf("save binding: %w", err))
	}
}

// PaymentURI builds the wallet handoff URI, e.g. bitcoin:bc1q...?amount=0.00050000.
func PaymentURI(currency domain.Currency, address string, amount decimal.Decimal) string {
	return fmt.Sprintf("%s:%s?amount=%s", currency.URIScheme(), address, amount.StringFixed(currency.Decimals()))
}

func currencyName(c domain.Currency) string {
	switch c {
	case domain.CurrencyBitcoin:
		return "Bitcoin"
	case domain.CurrencyLitecoin:
		return "Litecoin"
	default:
		return string(c)
	}
}
