package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"amethyst-storefront/internal/clock"
	"amethyst-storefront/internal/core/domain"
	"amethyst-storefront/internal/core/ports"
	"amethyst-storefront/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// AttributionSkew widens the attribution window before the binding time to
// absorb clock drift between this host and block timestamps.
const AttributionSkew = 10 * time.Minute

// SkipReasonLeaseHeld is reported when another sweep holds the lease.
const SkipReasonLeaseHeld = "lease_held"

// defaultBatchSize caps one sweep pass when no batch size is configured.
const defaultBatchSize = 500

// ReconciliationOptions tunes the batch sweep.
type ReconciliationOptions struct {
	BindingTTL  time.Duration
	Concurrency int
	BatchSize   int
	LeaseTTL    time.Duration
	// LeaseOwner identifies this replica when holding the sweep lease.
	LeaseOwner string
	// ExclusiveAddresses matches PaymentOptions.ExclusiveAddresses. When set, a
	// stale binding whose address was handed to a later order is no longer checked.
	ExclusiveAddresses bool
}

type outcome int

const (
	outcomeUnpaid outcome = iota
	outcomeConfirmed
	outcomeAlreadyConfirmed
	outcomeUnreachable
)

// ReconciliationServiceImpl implements ports.ReconciliationService.
type ReconciliationServiceImpl struct {
	orders  ports.OrderRepository
	scanner ports.LedgerScanner
	lease   ports.SweepLease
	opts    ReconciliationOptions
	clock   clock.Clock
	log     zerolog.Logger
}

// NewReconciliationService creates a new ReconciliationServiceImpl. lease may be nil.
func NewReconciliationService(
	orders ports.OrderRepository,
	scanner ports.LedgerScanner,
	lease ports.SweepLease,
	opts ReconciliationOptions,
	clk clock.Clock,
	log zerolog.Logger,
) *ReconciliationServiceImpl {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.LeaseOwner == "" {
		opts.LeaseOwner = uuid.NewString()
	}
	return &ReconciliationServiceImpl{
		orders:  orders,
		scanner: scanner,
		lease:   lease,
		opts:    opts,
		clock:   clk,
		log:     log,
	}
}

// CheckPayment checks one order against the ledger and confirms it when paid.
// A confirmed order short-circuits without any explorer call or write.
func (s *ReconciliationServiceImpl) CheckPayment(ctx context.Context, orderID uuid.UUID) (*ports.CheckResult, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("Order")
	}
	if order.IsConfirmed() {
		return confirmedResult(order.ID, order.ConfirmedAt), nil
	}
	if !order.HasBinding() {
		return nil, apperror.ErrPaymentNotBound()
	}

	released, err := s.addressReleased(ctx, order)
	if err != nil {
		return nil, err
	}
	if released {
		return &ports.CheckResult{OrderID: order.ID, Paid: false, Status: domain.PaymentStatusPending}, nil
	}

	res, _, err := s.reconcile(ctx, order)
	return res, err
}

// addressReleased reports whether a stale binding's address has since been
// bound to another order. Funds on that address may belong to the new holder,
// so the stale order is no longer attributed anything from it.
func (s *ReconciliationServiceImpl) addressReleased(ctx context.Context, order *domain.Order) (bool, error) {
	b := order.Binding
	if !s.opts.ExclusiveAddresses || !b.IsStale(s.opts.BindingTTL, s.clock.Now()) {
		return false, nil
	}
	later, err := s.orders.HasLaterBinding(ctx, b.Currency, b.Address, b.CreatedAt, order.ID)
	if err != nil {
		return false, apperror.ErrDatabaseError(fmt.Errorf("check address rebinding: %w", err))
	}
	if later {
		s.log.Info().
			Str("order_id", order.ID.String()).
			Str("address", b.Address).
			Msg("stale binding address rebound to a later order, not checking ledger")
	}
	return later, nil
}

// reconcile scans the ledger for a bound pending order and applies the
// conditional pending -> confirmed transition. Explorer outages are absorbed
// into an unpaid result.
func (s *ReconciliationServiceImpl) reconcile(ctx context.Context, order *domain.Order) (*ports.CheckResult, outcome, error) {
	b := order.Binding
	log := s.log.With().Str("order_id", order.ID.String()).Str("currency", string(b.Currency)).Logger()

	pending := &ports.CheckResult{OrderID: order.ID, Paid: false, Status: domain.PaymentStatusPending}

	paid, err := s.scanner.IsPaid(ctx, ports.PaymentCheck{
		Currency:       b.Currency,
		Address:        b.Address,
		ExpectedAmount: b.ExpectedAmount,
		Since:          b.CreatedAt.Add(-AttributionSkew),
	})
	if err != nil {
		log.Warn().Err(err).Str("address", b.Address).Msg("ledger unavailable, payment stays pending")
		return pending, outcomeUnreachable, nil
	}
	if !paid {
		return pending, outcomeUnpaid, nil
	}

	now := s.clock.Now()
	if err := s.orders.ConfirmIfPending(ctx, order.ID, now); err != nil {
		switch {
		case errors.Is(err, ports.ErrOrderNotFound):
			return nil, outcomeUnreachable, apperror.ErrNotFound("Order")
		case errors.Is(err, ports.ErrConflict):
			return s.afterConflict(ctx, order.ID, pending)
		}
		return nil, outcomeUnreachable, apperror.ErrDatabaseError(fmt.Errorf("confirm order: %w", err))
	}

	log.Info().
		Str("address", b.Address).
		Str("expected_amount", b.ExpectedAmount.StringFixed(b.Currency.Decimals())).
		Msg("order payment confirmed")
	return confirmedResult(order.ID, &now), outcomeConfirmed, nil
}

// afterConflict re-reads an order whose confirm matched no pending row.
// Only an order that is actually confirmed is reported paid.
func (s *ReconciliationServiceImpl) afterConflict(ctx context.Context, id uuid.UUID, pending *ports.CheckResult) (*ports.CheckResult, outcome, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, outcomeUnreachable, apperror.ErrDatabaseError(fmt.Errorf("re-read order: %w", err))
	}
	if o == nil {
		return nil, outcomeUnreachable, apperror.ErrNotFound("Order")
	}
	if !o.IsConfirmed() {
		s.log.Warn().
			Str("order_id", id.String()).
			Str("status", string(o.Status)).
			Msg("confirm lost to a non-confirming update, payment stays pending")
		return pending, outcomeUnpaid, nil
	}
	s.log.Debug().Str("order_id", id.String()).Msg("order already confirmed by a concurrent check")
	return confirmedResult(id, o.ConfirmedAt), outcomeAlreadyConfirmed, nil
}

// Sweep reconciles pending bound orders, continuing past per-order failures.
// Stale bindings are filtered out in the query so they never crowd live ones
// out of the batch; they can still be confirmed by an on-demand check.
func (s *ReconciliationServiceImpl) Sweep(ctx context.Context) (*domain.SweepResult, error) {
	if s.lease != nil {
		ok, err := s.lease.Acquire(ctx, s.opts.LeaseOwner, s.opts.LeaseTTL)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Msg("sweep lease unavailable, sweeping without it")
		case !ok:
			s.log.Info().Msg("sweep lease held elsewhere, skipping")
			return &domain.SweepResult{SkippedReason: SkipReasonLeaseHeld}, nil
		default:
			defer func() {
				if err := s.lease.Release(context.WithoutCancel(ctx), s.opts.LeaseOwner); err != nil {
					s.log.Warn().Err(err).Msg("sweep lease release failed")
				}
			}()
		}
	}

	now := s.clock.Now()
	var since time.Time
	if s.opts.BindingTTL > 0 {
		since = now.Add(-s.opts.BindingTTL)
	}
	orders, err := s.orders.ListPendingBound(ctx, since, s.opts.BatchSize)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list pending orders: %w", err))
	}

	var (
		checked, confirmed, failed, skipped atomic.Int64
		g                                   errgroup.Group
	)
	g.SetLimit(s.opts.Concurrency)

	for i := range orders {
		order := &orders[i]
		if !order.Checkable() || order.Binding.IsStale(s.opts.BindingTTL, now) {
			skipped.Add(1)
			continue
		}
		if ctx.Err() != nil {
			skipped.Add(1)
			continue
		}

		g.Go(func() error {
			checked.Add(1)
			_, out, err := s.reconcile(ctx, order)
			if err != nil {
				failed.Add(1)
				s.log.Error().Err(err).Str("order_id", order.ID.String()).Msg("sweep: order check failed")
				return nil
			}
			switch out {
			case outcomeConfirmed:
				confirmed.Add(1)
			case outcomeUnreachable:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res := &domain.SweepResult{
		TotalChecked:   int(checked.Load()),
		ConfirmedCount: int(confirmed.Load()),
		Failed:         int(failed.Load()),
		Skipped:        int(skipped.Load()),
	}
	s.log.Info().
		Int("total_checked", res.TotalChecked).
		Int("confirmed", res.ConfirmedCount).
		Int("failed", res.Failed).
		Int("skipped", res.Skipped).
		Msg(res.Summary())
	return res, nil
}

func confirmedResult(id uuid.UUID, at *time.Time) *ports.CheckResult {
	return &ports.CheckResult{
		OrderID:     id,
		Paid:        true,
		Status:      domain.PaymentStatusConfirmed,
		ConfirmedAt: at,
	}
}
