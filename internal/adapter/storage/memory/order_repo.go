// Package memory holds a process-local order store for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"amethyst-storefront/internal/core/domain"
	"amethyst-storefront/internal/core/ports"

	"github.com/google/uuid"
)

// OrderRepo implements ports.OrderRepository over a mutex-guarded map.
// Orders are copied on the way in and out so callers never share state.
type OrderRepo struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*domain.Order
	writes int
}

func NewOrderRepo() *OrderRepo {
	return &OrderRepo{orders: make(map[uuid.UUID]*domain.Order)}
}

// Create stores a new order. Orders normally come from checkout; this seeds the store.
func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.ID]; ok {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	if o.Status == "" {
		o.Status = domain.PaymentStatusPending
	}
	r.orders[o.ID] = cloneOrder(o)
	return nil
}

func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	return cloneOrder(o), nil
}

// SaveBinding mirrors the conditional write of the SQL store: the hold check
// and the write happen under one lock.
func (r *OrderRepo) SaveBinding(ctx context.Context, id uuid.UUID, b domain.PaymentBinding, hold *ports.AddressHold) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order %s: %w", id, ports.ErrOrderNotFound)
	}
	if o.IsConfirmed() {
		return fmt.Errorf("order %s already confirmed: %w", id, ports.ErrConflict)
	}
	if hold != nil && r.heldLocked(b.Currency, b.Address, *hold, id) {
		return fmt.Errorf("address %s: %w", b.Address, ports.ErrAddressHeld)
	}
	o.Binding = &b
	o.Status = domain.PaymentStatusPending
	r.writes++
	return nil
}

func (r *OrderRepo) ConfirmIfPending(ctx context.Context, id uuid.UUID, confirmedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order %s: %w", id, ports.ErrOrderNotFound)
	}
	if o.Status != domain.PaymentStatusPending {
		return fmt.Errorf("order %s not pending: %w", id, ports.ErrConflict)
	}
	o.Status = domain.PaymentStatusConfirmed
	at := confirmedAt
	o.ConfirmedAt = &at
	r.writes++
	return nil
}

func (r *OrderRepo) ListPendingBound(ctx context.Context, since time.Time, limit int) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Order
	for _, o := range r.orders {
		if o.Status != domain.PaymentStatusPending || o.Binding == nil || o.Binding.Address == "" {
			continue
		}
		if o.Binding.CreatedAt.Before(since) {
			continue
		}
		out = append(out, *cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Binding.CreatedAt.Before(out[j].Binding.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *OrderRepo) ListBoundAddresses(ctx context.Context, currency domain.Currency, hold ports.AddressHold, exclude uuid.UUID) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []string
	for id, o := range r.orders {
		if id == exclude || !holds(o, currency, hold) {
			continue
		}
		if _, dup := seen[o.Binding.Address]; !dup {
			seen[o.Binding.Address] = struct{}{}
			out = append(out, o.Binding.Address)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *OrderRepo) HasLaterBinding(ctx context.Context, currency domain.Currency, address string, after time.Time, exclude uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, o := range r.orders {
		if id == exclude || o.Binding == nil {
			continue
		}
		if o.Binding.Currency == currency && o.Binding.Address == address && o.Binding.CreatedAt.After(after) {
			return true, nil
		}
	}
	return false, nil
}

func (r *OrderRepo) heldLocked(currency domain.Currency, address string, hold ports.AddressHold, exclude uuid.UUID) bool {
	for id, o := range r.orders {
		if id != exclude && holds(o, currency, hold) && o.Binding.Address == address {
			return true
		}
	}
	return false
}

// holds reports whether o keeps its receiving address reserved under hold.
func holds(o *domain.Order, currency domain.Currency, hold ports.AddressHold) bool {
	b := o.Binding
	if b == nil || b.Currency != currency || b.Address == "" {
		return false
	}
	switch o.Status {
	case domain.PaymentStatusPending:
		return !b.CreatedAt.Before(hold.PendingSince)
	case domain.PaymentStatusConfirmed:
		return o.ConfirmedAt != nil && !o.ConfirmedAt.Before(hold.ConfirmedSince)
	default:
		return false
	}
}

// Writes returns the number of successful mutations since creation.
func (r *OrderRepo) Writes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.writes
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	if o.Binding != nil {
		b := *o.Binding
		c.Binding = &b
	}
	if o.ConfirmedAt != nil {
		at := *o.ConfirmedAt
		c.ConfirmedAt = &at
	}
	return &c
}
