package ports

import (
	"context"
	"errors"
	"time"

	"amethyst-storefront/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Outbound source failure classes. Adapters wrap one of these.
var (
	// ErrSourceUnavailable covers transport failures: refused connections, DNS, timeouts.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrSourceResponse covers non-2xx statuses and unparsable or incomplete payloads.
	ErrSourceResponse = errors.New("unusable source response")
)

// RateSource fetches a fiat price per coin from one price feed.
type RateSource interface {
	Name() string
	FetchRate(ctx context.Context, currency domain.Currency) (decimal.Decimal, error)
}

// RateCache holds recently fetched quotes. Get returns nil, nil on a miss.
type RateCache interface {
	Get(ctx context.Context, currency domain.Currency) (*domain.RateQuote, error)
	Set(ctx context.Context, quote domain.RateQuote, ttl time.Duration) error
}

// RateOracle produces a price with a fallback chain; it never fails for a supported currency.
type RateOracle interface {
	GetRate(ctx context.Context, currency domain.Currency) (domain.RateQuote, error)
}

// Explorer queries one blockchain explorer API for confirmed inflow to an address.
type Explorer interface {
	Name() string
	Currency() domain.Currency
	ReceivedSince(ctx context.Context, address string, since time.Time) (*domain.AddressSnapshot, error)
}

// ExplorerBudget rations outbound explorer calls.
type ExplorerBudget interface {
	Allow(ctx context.Context, explorer string) (bool, error)
}

// PaymentCheck is the input of a ledger scan.
type PaymentCheck struct {
	Currency       domain.Currency
	Address        string
	ExpectedAmount decimal.Decimal
	Since          time.Time
}

// LedgerScanner decides whether an expected amount arrived at an address.
// Ordinary non-payment is (false, nil); an error means no explorer could be reached.
type LedgerScanner interface {
	IsPaid(ctx context.Context, check PaymentCheck) (bool, error)
}

// --- Service Ports (Business Logic) ---

// CreatePaymentRequest holds validated input for payment quoting.
type CreatePaymentRequest struct {
	OrderID    uuid.UUID
	FiatAmount decimal.Decimal
	Currency   domain.Currency
}

// PaymentQuote is what the checkout shows the customer.
type PaymentQuote struct {
	OrderID        uuid.UUID
	Currency       domain.Currency
	Address        string
	ExpectedAmount decimal.Decimal
	FiatAmount     decimal.Decimal
	Rate           domain.RateQuote
	PaymentURI     string
	ExpiresAt      time.Time
}

// PaymentService binds orders to a receiving address and an expected crypto amount.
type PaymentService interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*PaymentQuote, error)
	GetPayment(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
}

// CheckResult is the outcome of one check-payment call.
type CheckResult struct {
	OrderID     uuid.UUID
	Paid        bool
	Status      domain.PaymentStatus
	ConfirmedAt *time.Time
}

// ReconciliationService owns the pending -> confirmed state machine.
type ReconciliationService interface {
	CheckPayment(ctx context.Context, orderID uuid.UUID) (*CheckResult, error)
	Sweep(ctx context.Context) (*domain.SweepResult, error)
}

// SweepLease ensures a single sweep runs at a time across replicas.
type SweepLease interface {
	Acquire(ctx context.Context, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, owner string) error
}

// TokenService handles operator JWTs that guard the sweep trigger.
type TokenService interface {
	Generate(subject string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Subject string
	Role    string
}
