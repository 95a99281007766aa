package ports

import (
	"context"
	"errors"
	"time"

	"amethyst-storefront/internal/core/domain"

	"github.com/google/uuid"
)

var (
	// ErrConflict is returned when a conditional update matched no row in the expected state.
	ErrConflict = errors.New("order is not in the expected payment state")
	// ErrOrderNotFound is returned by conditional updates when the order row does not exist.
	ErrOrderNotFound = errors.New("order not found")
	// ErrAddressHeld is returned when a receiving address is still held by another order.
	ErrAddressHeld = errors.New("receiving address held by another order")
)

// AddressHold describes which other orders still reserve a receiving address:
// pending bindings created at or after PendingSince, and confirmed orders
// confirmed at or after ConfirmedSince.
type AddressHold struct {
	PendingSince   time.Time
	ConfirmedSince time.Time
}

// OrderRepository is the Order Gateway: the read/update contract into persisted order storage.
// Get methods return nil, nil when the order does not exist.
type OrderRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	// SaveBinding overwrites the payment binding and sets status pending.
	// With a non-nil hold the write is conditional on no other order holding
	// the address and returns ErrAddressHeld otherwise.
	// Returns ErrOrderNotFound if the order is missing, ErrConflict if it is confirmed.
	SaveBinding(ctx context.Context, id uuid.UUID, binding domain.PaymentBinding, hold *AddressHold) error
	// ConfirmIfPending performs the pending -> confirmed compare-and-set.
	// Returns ErrOrderNotFound if the order is missing, ErrConflict if it was not pending.
	ConfirmIfPending(ctx context.Context, id uuid.UUID, confirmedAt time.Time) error
	// ListPendingBound returns pending orders bound at or after since, oldest binding first.
	ListPendingBound(ctx context.Context, since time.Time, limit int) ([]domain.Order, error)
	// ListBoundAddresses returns the addresses of currency held under hold, excluding the given order.
	ListBoundAddresses(ctx context.Context, currency domain.Currency, hold AddressHold, exclude uuid.UUID) ([]string, error)
	// HasLaterBinding reports whether another order bound address after the given instant.
	HasLaterBinding(ctx context.Context, currency domain.Currency, address string, after time.Time, exclude uuid.UUID) (bool, error)
}
