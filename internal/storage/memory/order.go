// Package memory implements in-process storage used when no database is
// configured. State is lost on restart.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront-checkout/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository keeps orders in a map keyed by payment intent id.
type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]order.Order
	now    func() time.Time
}

// NewOrderRepository creates an empty OrderRepository.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders: make(map[string]order.Order),
		now:    time.Now,
	}
}

// Create stores o. A second order for the same payment intent is rejected.
func (r *OrderRepository) Create(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[o.PaymentIntentID]; ok {
		return errors.Errorf("order for payment intent %q already exists", o.PaymentIntentID)
	}
	r.orders[o.PaymentIntentID] = clone(*o)
	return nil
}

// SetStatus implements order.Repository.
func (r *OrderRepository) SetStatus(_ context.Context, paymentIntentID string, status order.Status, from []order.Status) (order.Transition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[paymentIntentID]
	switch {
	case !ok:
		return 0, order.ErrNotFound
	case o.Status == status:
		return order.TransitionUnchanged, nil
	case !slices.Contains(from, o.Status):
		return order.TransitionSkipped, nil
	}
	o.Status = status
	o.UpdatedAt = r.now().UTC()
	r.orders[paymentIntentID] = o
	return order.TransitionApplied, nil
}

// GetByPaymentIntent implements order.Repository.
func (r *OrderRepository) GetByPaymentIntent(_ context.Context, paymentIntentID string) (*order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[paymentIntentID]
	if !ok {
		return nil, order.ErrNotFound
	}
	out := clone(o)
	return &out, nil
}

func clone(o order.Order) order.Order {
	o.Items = append([]order.Item(nil), o.Items...)
	return o
}
