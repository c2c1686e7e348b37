package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-checkout/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders
	(id, payment_intent_id, client_id, mode, amount, platform_fee, seller_payout, currency, status, items, total, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	setOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = now()
	WHERE payment_intent_id = $1 AND status = ANY($3)`

	orderStatusSQL = `SELECT status FROM orders WHERE payment_intent_id = $1`

	getOrderSQL = `SELECT id, payment_intent_id, client_id, mode, amount, platform_fee, seller_payout,
	currency, status, items, total, created_at, updated_at
	FROM orders WHERE payment_intent_id = $1`
)

// uniqueViolation is the SQLSTATE of unique constraint violations.
const uniqueViolation = "23505"

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. The order items are serialized to JSON for
// storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.PaymentIntentID, o.ClientID, o.Mode,
		o.Amount, o.PlatformFee, o.SellerPayout, o.Currency,
		string(o.Status), itemsJSON, o.Total, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("order for payment intent %q already exists: %w", o.PaymentIntentID, err)
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	return nil
}

// SetStatus implements order.Repository.
func (r *OrderRepository) SetStatus(ctx context.Context, paymentIntentID string, status order.Status, from []order.Status) (order.Transition, error) {
	sources := make([]string, len(from))
	for i, s := range from {
		sources[i] = string(s)
	}
	tag, err := r.pool.Exec(ctx, setOrderStatusSQL, paymentIntentID, string(status), sources)
	if err != nil {
		return 0, fmt.Errorf("updating order %q: %w", paymentIntentID, err)
	}
	if tag.RowsAffected() > 0 {
		return order.TransitionApplied, nil
	}

	// Zero rows: no such order, or its status is not one of from.
	var current string
	if err := r.pool.QueryRow(ctx, orderStatusSQL, paymentIntentID).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, order.ErrNotFound
		}
		return 0, fmt.Errorf("checking order %q: %w", paymentIntentID, err)
	}
	if order.Status(current) == status {
		return order.TransitionUnchanged, nil
	}
	return order.TransitionSkipped, nil
}

// GetByPaymentIntent implements order.Repository.
func (r *OrderRepository) GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*order.Order, error) {
	var (
		o         order.Order
		status    string
		itemsJSON []byte
		createdAt time.Time
		updatedAt time.Time
	)
	err := r.pool.QueryRow(ctx, getOrderSQL, paymentIntentID).Scan(
		&o.ID, &o.PaymentIntentID, &o.ClientID, &o.Mode,
		&o.Amount, &o.PlatformFee, &o.SellerPayout,
		&o.Currency, &status, &itemsJSON, &o.Total, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", paymentIntentID, err)
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshaling order items: %w", err)
	}
	o.Status = order.Status(status)
	o.CreatedAt = createdAt.UTC()
	o.UpdatedAt = updatedAt.UTC()
	return &o, nil
}
