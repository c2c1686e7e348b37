//go:build integration

package app

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/storage/postgres"
)

func TestServer_Postgres(t *testing.T) {
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("storefront"),
		tcpostgres.WithUsername("storefront"),
		tcpostgres.WithPassword("storefront"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	e := startServer(t, map[string]string{"STORE_DATABASE_URL": dsn})

	pool, err := postgres.NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	orders := postgres.NewOrderRepository(pool)

	status, body := e.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, status, body)

	status, body = e.do(t, http.MethodPost, "/api/create-payment-intent",
		`{"cartItems":[{"id":"lace-1","quantity":1},{"id":"hoops-1","quantity":2}]}`,
		map[string]string{"X-Session-ID": "sess-pg"})
	require.Equal(t, http.StatusOK, status, body)
	assert.JSONEq(t, `{"success":true,"clientSecret":"pi_e2e_1_secret","amount":6498,"currency":"usd"}`, body)

	o, err := orders.GetByPaymentIntent(ctx, "pi_e2e_1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, "sess-pg", o.ClientID)
	assert.Equal(t, int64(6498), o.Amount)
	assert.Len(t, o.Items, 2)

	t.Run("Paid", func(t *testing.T) {
		status, body := e.sendEvent(t, paymentEvent("evt_pg_1", "payment_intent.succeeded", "pi_e2e_1"))
		require.Equal(t, http.StatusOK, status, body)

		o, err := orders.GetByPaymentIntent(ctx, "pi_e2e_1")
		require.NoError(t, err)
		assert.Equal(t, order.StatusPaid, o.Status)
	})

	t.Run("RedeliveryAfterRestart", func(t *testing.T) {
		// A second instance shares the event log through the database.
		other := startServer(t, map[string]string{"STORE_DATABASE_URL": dsn})
		status, body := other.sendEvent(t, paymentEvent("evt_pg_1", "payment_intent.succeeded", "pi_e2e_1"))
		require.Equal(t, http.StatusOK, status, body)
		assert.JSONEq(t, `{"received":true,"duplicate":true}`, body)
	})

	t.Run("Refunded", func(t *testing.T) {
		charge := `{"id":"evt_pg_2","object":"event","created":1700000300,"type":"charge.refunded",
			"data":{"object":{"id":"ch_1","object":"charge","payment_intent":"pi_e2e_1","amount":6498,"amount_refunded":6498,"refunded":true}}}`
		status, body := e.sendEvent(t, charge)
		require.Equal(t, http.StatusOK, status, body)

		o, err := orders.GetByPaymentIntent(ctx, "pi_e2e_1")
		require.NoError(t, err)
		assert.Equal(t, order.StatusRefunded, o.Status)
	})
}
