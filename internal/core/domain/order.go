package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle state of an order's crypto payment.
// pending -> confirmed is the only legal transition.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
)

// PaymentBinding ties an order to one currency, one receiving address and one expected amount.
type PaymentBinding struct {
	Currency       Currency        `json:"currency"`
	Address        string          `json:"address"`
	ExpectedAmount decimal.Decimal `json:"expected_amount"`
	Rate           decimal.Decimal `json:"rate"`
	RateSource     string          `json:"rate_source"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ExpectedMinorUnits returns the expected amount in satoshi-equivalent units.
func (b *PaymentBinding) ExpectedMinorUnits() int64 {
	return b.Currency.ToMinorUnits(b.ExpectedAmount)
}

// ExpiresAt is the payment deadline of the binding for a given TTL.
func (b *PaymentBinding) ExpiresAt(ttl time.Duration) time.Time {
	return b.CreatedAt.Add(ttl)
}

// IsStale reports whether the binding outlived its TTL at instant now.
// A non-positive TTL disables staleness.
func (b *PaymentBinding) IsStale(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return false
	}
	return !now.Before(b.ExpiresAt(ttl))
}

// Order is the persisted unit of work as seen by the payment subsystem.
type Order struct {
	ID          uuid.UUID       `json:"id"`
	TotalEUR    decimal.Decimal `json:"total_eur"`
	Status      PaymentStatus   `json:"payment_status"`
	Binding     *PaymentBinding `json:"binding,omitempty"`
	ConfirmedAt *time.Time      `json:"payment_confirmed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// IsConfirmed returns true once the order reached its terminal state.
func (o *Order) IsConfirmed() bool {
	return o.Status == PaymentStatusConfirmed
}

// HasBinding returns true if a complete payment binding is attached.
func (o *Order) HasBinding() bool {
	return o.Binding != nil &&
		o.Binding.Currency.Valid() &&
		o.Binding.Address != "" &&
		o.Binding.ExpectedAmount.IsPositive()
}

// Checkable reports whether the ledger should be consulted for this order.
func (o *Order) Checkable() bool {
	return !o.IsConfirmed() && o.HasBinding()
}
