// Package handler implements the storefront HTTP API on a net/http
// ServeMux.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/xenking/storefront-checkout/internal/domain/catalog"
	"github.com/xenking/storefront-checkout/internal/domain/payment"
	"github.com/xenking/storefront-checkout/internal/domain/webhook"
	"github.com/xenking/storefront-checkout/pkg/httpmiddleware"
)

// DefaultMaxBodyBytes bounds request bodies, webhooks included.
const DefaultMaxBodyBytes = 64 << 10

// Catalog lists and looks up products.
type Catalog interface {
	List() []catalog.Product
	Get(id string) (catalog.Product, error)
}

// Issuer creates payment intents.
type Issuer interface {
	CreateIntent(ctx context.Context, req payment.Request) (*payment.Intent, error)
	ConnectEnabled() bool
}

// Dispatcher handles signed webhook deliveries.
type Dispatcher interface {
	Handle(ctx context.Context, body []byte, signature string) (webhook.Ack, error)
}

// Readiness reports failing dependency checks.
type Readiness interface {
	Failures() map[string]string
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// PublishableKey is returned by /api/config for the browser SDK.
	PublishableKey string
	// RequireSession rejects payment requests without X-Session-ID.
	RequireSession bool
	// PaymentRateLimit applies to the payment routes in addition to the
	// global limiter.
	PaymentRateLimit httpmiddleware.RateLimitConfig
	MaxBodyBytes     int64
	// SellerKey is the Bearer token of the seller dashboard routes. Empty
	// leaves them open.
	SellerKey string
}

// Handler serves the storefront API.
type Handler struct {
	cfg        Config
	catalog    Catalog
	issuer     Issuer
	dispatcher Dispatcher
	sellers    Sellers
	readiness  Readiness
	limiter    *httpmiddleware.Limiter
	now        func() time.Time
}

// New creates a Handler. sellers and readiness may be nil; without sellers
// the seller routes answer SELLER_NOT_CONFIGURED.
func New(cfg Config, cat Catalog, issuer Issuer, dispatcher Dispatcher, sellers Sellers, readiness Readiness) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	limit := cfg.PaymentRateLimit
	if limit.Max <= 0 {
		limit.Max = 10
	}
	if limit.Window <= 0 {
		limit.Window = time.Minute
	}
	limit.Name = "payment"
	limit.KeyFunc = func(r *http.Request) string {
		id, _ := ClientID(r)
		return id
	}
	return &Handler{
		cfg:        cfg,
		catalog:    cat,
		issuer:     issuer,
		dispatcher: dispatcher,
		sellers:    sellers,
		readiness:  readiness,
		limiter:    httpmiddleware.NewLimiter(limit),
		now:        time.Now,
	}
}

// PaymentLimiter returns the limiter guarding the payment routes so the
// caller can run its cleanup loop.
func (h *Handler) PaymentLimiter() *httpmiddleware.Limiter {
	return h.limiter
}

// Register adds all API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	limited := h.limiter.Middleware()
	for _, route := range []struct {
		pattern string
		policy  RoutePolicy
	}{
		{"POST /api/create-payment-intent", RoutePolicy{Mode: payment.ModeStandard}},
		{"POST /api/connect/payment-intent", RoutePolicy{Mode: payment.ModeDestination}},
		{"POST /api/stripe-connect/create-payment-intent", RoutePolicy{Mode: payment.ModeApplicationFee, AcceptAmount: true}},
	} {
		route.policy.RequireSession = h.cfg.RequireSession
		mux.Handle(route.pattern, limited(h.createIntent(route.policy)))
	}

	mux.HandleFunc("POST /api/webhook", h.webhook)
	mux.HandleFunc("POST /api/webhooks/stripe", h.webhook)

	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)
	mux.HandleFunc("GET /api/health", h.health)
	mux.HandleFunc("GET /api/config", h.config)

	for pattern, fn := range map[string]http.HandlerFunc{
		"GET /api/connect/account-status":                    h.sellerAccount,
		"GET /api/connect/balance":                           h.sellerBalance,
		"GET /api/connect/transfers":                         h.sellerTransfers,
		"GET /api/connect/payouts":                           h.sellerPayouts,
		"GET /api/connect/dashboard-url":                     h.sellerDashboard,
		"GET /api/stripe-connect/account-status/{accountId}": h.sellerAccount,
		"GET /api/stripe-connect/balance/{accountId}":        h.sellerBalance,
		"GET /api/stripe-connect/dashboard-link/{accountId}": h.sellerDashboard,
	} {
		mux.HandleFunc(pattern, h.requireSellerKey(fn))
	}
}
