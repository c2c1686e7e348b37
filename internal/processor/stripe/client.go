// Package stripe adapts the Stripe API to the payment and webhook domains.
package stripe

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/sony/gobreaker/v2"
	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/account"
	"github.com/stripe/stripe-go/v76/balance"
	"github.com/stripe/stripe-go/v76/loginlink"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/payout"
	"github.com/stripe/stripe-go/v76/transfer"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/payment"
)

// Config configures the Stripe client.
type Config struct {
	SecretKey string
	// Timeout bounds a single API call, retries included.
	Timeout time.Duration
	// MaxNetworkRetries is passed to stripe-go's retry loop.
	MaxNetworkRetries int64
	// BaseURL overrides the API endpoint. Empty means api.stripe.com.
	BaseURL string
	Breaker BreakerConfig
}

// BreakerConfig configures the circuit breaker around API calls.
type BreakerConfig struct {
	// Failures is the number of consecutive failures that opens the circuit.
	Failures uint32
	// OpenTimeout is how long the circuit stays open before probing.
	OpenTimeout time.Duration
	// Interval resets failure counts while closed.
	Interval time.Duration
	// HalfOpenRequests is the number of probes allowed while half-open.
	HalfOpenRequests uint32
}

func (c *Config) setDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.Breaker.Failures == 0 {
		c.Breaker.Failures = 5
	}
	if c.Breaker.OpenTimeout <= 0 {
		c.Breaker.OpenTimeout = 30 * time.Second
	}
	if c.Breaker.Interval <= 0 {
		c.Breaker.Interval = time.Minute
	}
	if c.Breaker.HalfOpenRequests == 0 {
		c.Breaker.HalfOpenRequests = 1
	}
}

// Client creates payment intents and reads connected account data through
// the Stripe API. All calls share one circuit breaker.
type Client struct {
	intents    paymentintent.Client
	accounts   account.Client
	balances   balance.Client
	transfers  transfer.Client
	payouts    payout.Client
	loginLinks loginlink.Client
	breaker    *gobreaker.CircuitBreaker[any]
	timeout    time.Duration
}

var _ payment.Processor = (*Client)(nil)

// New creates a Client.
func New(cfg Config, lg *zap.Logger) (*Client, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	cfg.setDefaults()

	backendCfg := &stripeapi.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripeapi.Int64(cfg.MaxNetworkRetries),
		LeveledLogger:     lg.Named("stripe").Sugar(),
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripeapi.String(cfg.BaseURL)
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "stripe",
		MaxRequests: cfg.Breaker.HalfOpenRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Breaker.Failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			lg.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
		// Declines and invalid requests prove Stripe is reachable.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			kind := classify(err).Kind
			return kind == payment.KindCard || kind == payment.KindRequest
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
	})

	b := stripeapi.GetBackendWithConfig(stripeapi.APIBackend, backendCfg)
	return &Client{
		intents:    paymentintent.Client{B: b, Key: cfg.SecretKey},
		accounts:   account.Client{B: b, Key: cfg.SecretKey},
		balances:   balance.Client{B: b, Key: cfg.SecretKey},
		transfers:  transfer.Client{B: b, Key: cfg.SecretKey},
		payouts:    payout.Client{B: b, Key: cfg.SecretKey},
		loginLinks: loginlink.Client{B: b, Key: cfg.SecretKey},
		breaker:    breaker,
		timeout:    cfg.Timeout,
	}, nil
}

// execute runs fn through the breaker and classifies its error.
func execute[T any](cb *gobreaker.CircuitBreaker[any], fn func() (T, error)) (T, error) {
	v, err := cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, classify(err)
	}
	return v.(T), nil
}

// CreatePaymentIntent implements payment.Processor.
func (c *Client) CreatePaymentIntent(ctx context.Context, req payment.ProcessorRequest) (*payment.ProcessorIntent, error) {
	params, err := intentParams(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	params.Context = ctx

	pi, err := execute(c.breaker, func() (*stripeapi.PaymentIntent, error) {
		return c.intents.New(params)
	})
	if err != nil {
		return nil, err
	}
	return &payment.ProcessorIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Status:       string(pi.Status),
	}, nil
}

func intentParams(req payment.ProcessorRequest) (*stripeapi.PaymentIntentParams, error) {
	params := &stripeapi.PaymentIntentParams{
		Amount:   stripeapi.Int64(req.Amount),
		Currency: stripeapi.String(req.Currency),
		AutomaticPaymentMethods: &stripeapi.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripeapi.Bool(true),
		},
	}
	switch req.Mode {
	case payment.ModeStandard:
	case payment.ModeDestination:
		params.TransferData = &stripeapi.PaymentIntentTransferDataParams{
			Destination: stripeapi.String(req.DestinationAccountID),
			Amount:      stripeapi.Int64(req.TransferAmount),
		}
	case payment.ModeApplicationFee:
		params.ApplicationFeeAmount = stripeapi.Int64(req.PlatformFee)
		params.TransferData = &stripeapi.PaymentIntentTransferDataParams{
			Destination: stripeapi.String(req.DestinationAccountID),
		}
	default:
		return nil, errors.Errorf("unsupported charge mode %q", req.Mode)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	return params, nil
}

// classify converts Stripe and breaker errors into payment.ProcessorError.
func classify(err error) *payment.ProcessorError {
	var perr *payment.ProcessorError
	if errors.As(err, &perr) {
		return perr
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &payment.ProcessorError{Kind: payment.KindUnavailable, Err: err}
	}

	var serr *stripeapi.Error
	if !errors.As(err, &serr) {
		return &payment.ProcessorError{Kind: payment.KindInfrastructure, Err: err}
	}

	out := &payment.ProcessorError{
		Code:        string(serr.Code),
		DeclineCode: string(serr.DeclineCode),
		RequestID:   serr.RequestID,
		StatusCode:  serr.HTTPStatusCode,
		Err:         errors.New(serr.Msg),
	}
	switch serr.Type {
	case stripeapi.ErrorTypeCard:
		out.Kind = payment.KindCard
		out.Message = serr.Msg
	case stripeapi.ErrorTypeInvalidRequest, stripeapi.ErrorTypeIdempotency:
		out.Kind = payment.KindRequest
	default:
		out.Kind = payment.KindInfrastructure
	}
	// Authentication and permission failures are platform configuration
	// problems, never the customer's.
	if serr.HTTPStatusCode == http.StatusUnauthorized || serr.HTTPStatusCode == http.StatusForbidden {
		out.Kind = payment.KindInfrastructure
	}
	return out
}
