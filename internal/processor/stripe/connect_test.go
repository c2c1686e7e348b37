package stripe

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-checkout/internal/domain/payment"
)

type stubRequest struct {
	method  string
	path    string
	query   string
	account string
}

func connectStub(t *testing.T, body string, got *stubRequest) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		*got = stubRequest{
			method:  r.Method,
			path:    r.URL.Path,
			query:   r.URL.RawQuery,
			account: r.Header.Get("Stripe-Account"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func TestClient_Account(t *testing.T) {
	var got stubRequest
	c := newTestClient(t, connectStub(t, `{
  "id": "acct_seller",
  "object": "account",
  "email": "seller@example.com",
  "charges_enabled": true,
  "payouts_enabled": false,
  "details_submitted": true,
  "created": 1700000000,
  "business_profile": {"name": "Kart Parts"},
  "requirements": {"currently_due": ["external_account"]}
}`, &got))

	a, err := c.Account(context.Background(), "acct_seller")
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, got.method)
	assert.Equal(t, "/v1/accounts/acct_seller", got.path)
	assert.Equal(t, "acct_seller", a.ID)
	assert.Equal(t, "seller@example.com", a.Email)
	assert.Equal(t, "Kart Parts", a.BusinessName)
	assert.True(t, a.ChargesEnabled)
	assert.False(t, a.PayoutsEnabled)
	assert.True(t, a.DetailsSubmitted)
	assert.Equal(t, []string{"external_account"}, a.CurrentlyDue)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), a.Created)
}

func TestClient_Balance(t *testing.T) {
	var got stubRequest
	c := newTestClient(t, connectStub(t, `{
  "object": "balance",
  "available": [{"amount": 1200, "currency": "usd"}],
  "pending": [{"amount": 300, "currency": "usd"}],
  "connect_reserved": [{"amount": 0, "currency": "usd"}],
  "livemode": false
}`, &got))

	b, err := c.Balance(context.Background(), "acct_seller")
	require.NoError(t, err)

	assert.Equal(t, "/v1/balance", got.path)
	assert.Equal(t, "acct_seller", got.account)
	require.Len(t, b.Available, 1)
	assert.Equal(t, int64(1200), b.Available[0].Amount)
	assert.Equal(t, "usd", b.Available[0].Currency)
	require.Len(t, b.Pending, 1)
	assert.Equal(t, int64(300), b.Pending[0].Amount)
	assert.Len(t, b.ConnectReserved, 1)
}

func TestClient_Transfers(t *testing.T) {
	var got stubRequest
	c := newTestClient(t, connectStub(t, `{
  "object": "list",
  "url": "/v1/transfers",
  "has_more": true,
  "data": [
    {"id": "tr_2", "object": "transfer", "amount": 4500, "currency": "usd", "created": 1700000200, "description": "Order 2"},
    {"id": "tr_1", "object": "transfer", "amount": 900, "currency": "usd", "created": 1700000100}
  ]
}`, &got))

	out, err := c.Transfers(context.Background(), "acct_seller", 10)
	require.NoError(t, err)

	assert.Equal(t, "/v1/transfers", got.path)
	assert.Contains(t, got.query, "destination=acct_seller")
	assert.Contains(t, got.query, "limit=10")
	assert.Empty(t, got.account)
	require.Len(t, out, 2)
	assert.Equal(t, "tr_2", out[0].ID)
	assert.Equal(t, int64(4500), out[0].Amount)
	assert.Equal(t, "Order 2", out[0].Description)
	assert.Equal(t, time.Unix(1700000200, 0).UTC(), out[0].Created)
}

func TestClient_Payouts(t *testing.T) {
	var got stubRequest
	c := newTestClient(t, connectStub(t, `{
  "object": "list",
  "url": "/v1/payouts",
  "has_more": false,
  "data": [
    {"id": "po_1", "object": "payout", "amount": 4500, "currency": "usd", "arrival_date": 1700086400, "status": "in_transit"}
  ]
}`, &got))

	out, err := c.Payouts(context.Background(), "acct_seller", 10)
	require.NoError(t, err)

	assert.Equal(t, "/v1/payouts", got.path)
	assert.Equal(t, "acct_seller", got.account)
	require.Len(t, out, 1)
	assert.Equal(t, "in_transit", out[0].Status)
	assert.Equal(t, time.Unix(1700086400, 0).UTC(), out[0].ArrivalDate)
}

func TestClient_LoginLink(t *testing.T) {
	var got stubRequest
	c := newTestClient(t, connectStub(t, `{
  "object": "login_link",
  "created": 1700000000,
  "url": "https://connect.stripe.com/express/Ln7FYnMzKkqf"
}`, &got))

	url, created, err := c.LoginLink(context.Background(), "acct_seller")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/v1/accounts/acct_seller/login_links", got.path)
	assert.Equal(t, "https://connect.stripe.com/express/Ln7FYnMzKkqf", url)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), created)
}

func TestClient_ConnectErrorsShareBreaker(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"type": "api_error", "message": "boom"}}`))
	})

	ctx := context.Background()
	for range 3 {
		_, err := c.Account(ctx, "acct_seller")
		require.Error(t, err)
	}

	_, err := c.CreatePaymentIntent(ctx, payment.ProcessorRequest{
		Amount:   5000,
		Currency: "usd",
		Mode:     payment.ModeStandard,
	})
	var perr *payment.ProcessorError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, payment.KindUnavailable, perr.Kind)
}
