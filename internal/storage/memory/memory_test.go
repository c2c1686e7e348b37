package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-checkout/internal/domain/order"
)

func newTestOrder(pi string) *order.Order {
	return &order.Order{
		ID:              "ord-" + pi,
		PaymentIntentID: pi,
		Amount:          5000,
		Currency:        "usd",
		Status:          order.StatusPending,
		Items: []order.Item{
			{ProductID: "prod-1", Name: "Lace Bodysuit", Quantity: 2, UnitPrice: decimal.NewFromInt(25)},
		},
	}
}

func TestOrderRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	require.NoError(t, repo.Create(ctx, newTestOrder("pi_1")))
	require.Error(t, repo.Create(ctx, newTestOrder("pi_1")), "duplicate intent")

	tr, err := repo.SetStatus(ctx, "pi_1", order.StatusPaid, order.StatusPaid.Sources())
	require.NoError(t, err)
	assert.Equal(t, order.TransitionApplied, tr)
	tr, err = repo.SetStatus(ctx, "pi_1", order.StatusPaid, order.StatusPaid.Sources())
	require.NoError(t, err)
	assert.Equal(t, order.TransitionUnchanged, tr)

	repo.now = func() time.Time { return fixed.Add(time.Hour) }
	tr, err = repo.SetStatus(ctx, "pi_1", order.StatusFailed, order.StatusFailed.Sources())
	require.NoError(t, err)
	assert.Equal(t, order.TransitionSkipped, tr)

	got, err := repo.GetByPaymentIntent(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaid, got.Status)
	assert.Equal(t, fixed, got.UpdatedAt)

	// Returned orders are copies.
	got.Items[0].Quantity = 99
	again, err := repo.GetByPaymentIntent(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), again.Items[0].Quantity)

	_, err = repo.SetStatus(ctx, "pi_missing", order.StatusPaid, order.StatusPaid.Sources())
	require.ErrorIs(t, err, order.ErrNotFound)
	_, err = repo.GetByPaymentIntent(ctx, "pi_missing")
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestEventStore_ClaimOnce(t *testing.T) {
	ctx := context.Background()
	s := NewEventStore()

	ok, err := s.Claim(ctx, "evt_1", "payment_intent.succeeded")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Claim(ctx, "evt_1", "payment_intent.succeeded")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Forget(ctx, "evt_1"))
	ok, err = s.Claim(ctx, "evt_1", "payment_intent.succeeded")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEventStore_ConcurrentClaims(t *testing.T) {
	ctx := context.Background()
	s := NewEventStore()

	var (
		wg  sync.WaitGroup
		won atomic.Int32
	)
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Claim(ctx, "evt_1", "charge.refunded")
			assert.NoError(t, err)
			if ok {
				won.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), won.Load())
	assert.Equal(t, 1, s.Len())
}

func TestEventStore_Expire(t *testing.T) {
	ctx := context.Background()
	s := NewEventStore()
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return start }

	ok, err := s.Claim(ctx, "evt_old", "payment_intent.succeeded")
	require.NoError(t, err)
	require.True(t, ok)

	s.now = func() time.Time { return start.Add(DefaultEventRetention) }
	ok, err = s.Claim(ctx, "evt_new", "payment_intent.succeeded")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, 1, s.Expire(start.Add(time.Hour)))
	assert.Equal(t, 1, s.Len())

	ok, err = s.Claim(ctx, "evt_new", "payment_intent.succeeded")
	require.NoError(t, err)
	assert.False(t, ok, "recent claims survive")
}

func TestEventStore_Run(t *testing.T) {
	s := NewEventStore()
	_, err := s.Claim(context.Background(), "evt_1", "charge.refunded")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx, time.Millisecond, time.Nanosecond)
	}()

	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, time.Millisecond)
	cancel()
	<-done
}
