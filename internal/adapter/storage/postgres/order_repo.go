package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"amethyst-storefront/internal/core/domain"
	"amethyst-storefront/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Numeric columns are read as text so decimals round-trip without float conversion.
const orderColumns = `id, total_eur::text, payment_status, pay_currency, pay_address,
	pay_amount::text, pay_rate::text, pay_rate_source, payment_created_at, confirmed_at, created_at`

// OrderRepo implements ports.OrderRepository on the storefront orders table.
type OrderRepo struct {
	pool Pool
}

// NewOrderRepo creates a new OrderRepo.
func NewOrderRepo(pool Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

// GetByID fetches an order by UUID. Returns nil, nil when it does not exist.
func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	o, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// heldPredicate matches another order that still holds the address bound to $3.
// Pending bindings hold from payment_created_at, confirmed orders from confirmed_at.
const heldPredicate = `o2.id <> $8 AND o2.pay_currency = $2 AND o2.pay_address = $3
	AND ((o2.payment_status = $1 AND o2.payment_created_at >= $10)
		OR (o2.payment_status = $9 AND o2.confirmed_at >= $11))`

// rowQuerier is satisfied by both Pool and pgx.Tx.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SaveBinding overwrites the payment binding and sets the order pending.
// Confirmed orders are never rebound. With a hold, the write runs under a
// per-address advisory lock and only lands while no other order holds the address.
func (r *OrderRepo) SaveBinding(ctx context.Context, id uuid.UUID, b domain.PaymentBinding, hold *ports.AddressHold) error {
	query := `UPDATE orders SET payment_status = $1, pay_currency = $2, pay_address = $3,
		pay_amount = $4::numeric, pay_rate = $5::numeric, pay_rate_source = $6, payment_created_at = $7
		WHERE id = $8 AND payment_status <> $9`
	args := []any{
		string(domain.PaymentStatusPending), string(b.Currency), b.Address,
		b.ExpectedAmount.String(), b.Rate.String(), b.RateSource, b.CreatedAt,
		id, string(domain.PaymentStatusConfirmed),
	}

	if hold == nil {
		tag, err := r.pool.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("save payment binding: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return missedBinding(ctx, r.pool, id, b.Address)
		}
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin binding tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, addressLockKey(b.Currency, b.Address)); err != nil {
		return fmt.Errorf("lock address: %w", err)
	}

	query += ` AND NOT EXISTS (SELECT 1 FROM orders o2 WHERE ` + heldPredicate + `)`
	args = append(args, hold.PendingSince, hold.ConfirmedSince)

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("save payment binding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return missedBinding(ctx, tx, id, b.Address)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit binding tx: %w", err)
	}
	return nil
}

// missedBinding explains a binding update that matched no row.
func missedBinding(ctx context.Context, q rowQuerier, id uuid.UUID, address string) error {
	status, found, err := paymentStatus(ctx, q, id)
	switch {
	case err != nil:
		return err
	case !found:
		return fmt.Errorf("order %s: %w", id, ports.ErrOrderNotFound)
	case status == domain.PaymentStatusConfirmed:
		return fmt.Errorf("order %s already confirmed: %w", id, ports.ErrConflict)
	default:
		return fmt.Errorf("address %s: %w", address, ports.ErrAddressHeld)
	}
}

// ConfirmIfPending moves a pending order to confirmed in a single conditional update.
func (r *OrderRepo) ConfirmIfPending(ctx context.Context, id uuid.UUID, confirmedAt time.Time) error {
	query := `UPDATE orders SET payment_status = $1, confirmed_at = $2
		WHERE id = $3 AND payment_status = $4`

	tag, err := r.pool.Exec(ctx, query,
		string(domain.PaymentStatusConfirmed), confirmedAt,
		id, string(domain.PaymentStatusPending),
	)
	if err != nil {
		return fmt.Errorf("confirm order: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	_, found, err := paymentStatus(ctx, r.pool, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("order %s: %w", id, ports.ErrOrderNotFound)
	}
	return fmt.Errorf("order %s not pending: %w", id, ports.ErrConflict)
}

func paymentStatus(ctx context.Context, q rowQuerier, id uuid.UUID) (domain.PaymentStatus, bool, error) {
	var status string
	err := q.QueryRow(ctx, `SELECT payment_status FROM orders WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read payment status: %w", err)
	}
	return domain.PaymentStatus(status), true, nil
}

// ListPendingBound returns pending orders bound at or after since, oldest binding first.
func (r *OrderRepo) ListPendingBound(ctx context.Context, since time.Time, limit int) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE payment_status = $1 AND pay_address IS NOT NULL AND pay_address <> ''
		AND payment_created_at >= $2
		ORDER BY payment_created_at ASC LIMIT $3`

	rows, err := r.pool.Query(ctx, query, string(domain.PaymentStatusPending), since, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, nil
}

// ListBoundAddresses returns addresses held by other orders under hold.
func (r *OrderRepo) ListBoundAddresses(ctx context.Context, currency domain.Currency, hold ports.AddressHold, exclude uuid.UUID) ([]string, error) {
	query := `SELECT DISTINCT pay_address FROM orders
		WHERE pay_currency = $1 AND id <> $2 AND pay_address IS NOT NULL
		AND ((payment_status = $3 AND payment_created_at >= $4)
			OR (payment_status = $5 AND confirmed_at >= $6))`

	rows, err := r.pool.Query(ctx, query,
		string(currency), exclude,
		string(domain.PaymentStatusPending), hold.PendingSince,
		string(domain.PaymentStatusConfirmed), hold.ConfirmedSince,
	)
	if err != nil {
		return nil, fmt.Errorf("list bound addresses: %w", err)
	}
	defer rows.Close()

	var addrs []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scan bound address: %w", err)
		}
		addrs = append(addrs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bound addresses: %w", err)
	}
	return addrs, nil
}

// HasLaterBinding reports whether another order was bound to address after the given instant.
func (r *OrderRepo) HasLaterBinding(ctx context.Context, currency domain.Currency, address string, after time.Time, exclude uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM orders
		WHERE pay_currency = $1 AND pay_address = $2 AND payment_created_at > $3 AND id <> $4)`

	var later bool
	if err := r.pool.QueryRow(ctx, query, string(currency), address, after, exclude).Scan(&later); err != nil {
		return false, fmt.Errorf("check address rebinding: %w", err)
	}
	return later, nil
}

func addressLockKey(c domain.Currency, address string) string {
	return "pay_address:" + string(c) + ":" + address
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                             domain.Order
		total, status                 string
		currency, address, amount     *string
		rate, rateSource              *string
		bindingCreatedAt, confirmedAt *time.Time
	)
	err := row.Scan(
		&o.ID, &total, &status, &currency, &address,
		&amount, &rate, &rateSource, &bindingCreatedAt, &confirmedAt, &o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if o.TotalEUR, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse total_eur: %w", err)
	}
	o.Status = domain.PaymentStatus(status)
	o.ConfirmedAt = confirmedAt

	if address == nil || currency == nil {
		return &o, nil
	}
	b := &domain.PaymentBinding{
		Currency: domain.Currency(*currency),
		Address:  *address,
	}
	if amount != nil {
		if b.ExpectedAmount, err = decimal.NewFromString(*amount); err != nil {
			return nil, fmt.Errorf("parse pay_amount: %w", err)
		}
	}
	if rate != nil {
		if b.Rate, err = decimal.NewFromString(*rate); err != nil {
			return nil, fmt.Errorf("parse pay_rate: %w", err)
		}
	}
	if rateSource != nil {
		b.RateSource = *rateSource
	}
	if bindingCreatedAt != nil {
		b.CreatedAt = *bindingCreatedAt
	}
	o.Binding = b
	return &o, nil
}
