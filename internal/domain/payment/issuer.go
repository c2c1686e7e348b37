package payment

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/paylock"
)

// metadataValueLimit is the processor's maximum metadata value length.
const metadataValueLimit = 500

// Locker serialises checkouts per client.
type Locker interface {
	Acquire(ctx context.Context, key string) (paylock.Token, error)
	Release(ctx context.Context, tok paylock.Token) error
}

// CartValidator prices untrusted cart lines.
type CartValidator interface {
	Validate(lines []cart.Line) cart.Result
}

// OrderRecorder stores a pending order for a created intent.
type OrderRecorder interface {
	Record(ctx context.Context, req order.RecordRequest) (*order.Order, error)
}

// Config holds issuer settings.
type Config struct {
	Fees FeePolicy
	// SellerAccountID is the connected account marketplace charges go to.
	SellerAccountID string
	// IdempotencyWindow is the time bucket of idempotency keys.
	IdempotencyWindow time.Duration
}

// Deps are the collaborators of an Issuer. Orders may be nil.
type Deps struct {
	Locks          Locker
	Carts          CartValidator
	Processor      Processor
	Orders         OrderRecorder
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

// Issuer runs the checkout pipeline: lock, validate, price, split, create
// the intent at the processor, unlock.
type Issuer struct {
	cfg       Config
	locks     Locker
	carts     CartValidator
	processor Processor
	orders    OrderRecorder
	metrics   *Metrics
	tracer    trace.Tracer
	now       func() time.Time
}

// NewIssuer creates an Issuer.
func NewIssuer(cfg Config, deps Deps) (*Issuer, error) {
	if deps.Locks == nil || deps.Carts == nil || deps.Processor == nil {
		return nil, errors.New("locks, carts and processor are required")
	}
	if deps.MeterProvider == nil || deps.TracerProvider == nil {
		return nil, errors.New("meter and tracer providers are required")
	}
	if err := cfg.Fees.Validate(); err != nil {
		return nil, errors.Wrap(err, "fee policy")
	}
	if cfg.IdempotencyWindow <= 0 {
		cfg.IdempotencyWindow = DefaultIdempotencyWindow
	}
	m, err := NewMetrics(deps.MeterProvider)
	if err != nil {
		return nil, errors.Wrap(err, "metrics")
	}
	return &Issuer{
		cfg:       cfg,
		locks:     deps.Locks,
		carts:     deps.Carts,
		processor: deps.Processor,
		orders:    deps.Orders,
		metrics:   m,
		tracer:    deps.TracerProvider.Tracer(instrumentationName),
		now:       time.Now,
	}, nil
}

// ConnectEnabled reports whether marketplace charges can be issued.
func (i *Issuer) ConnectEnabled() bool {
	return i.cfg.SellerAccountID != ""
}

// CreateIntent validates the cart and creates a payment intent for it. The
// client's payment lock is held for the whole call and always released.
//
// Errors: paylock.ErrLockHeld, ErrEmptyCart, ErrZeroAmount,
// *InvalidCartError, *AmountMismatchError, ErrSellerNotConfigured,
// ErrUnknownSeller, ErrFeeExceedsAmount, *ProcessorError.
func (i *Issuer) CreateIntent(ctx context.Context, req Request) (_ *Intent, rerr error) {
	ctx, span := i.tracer.Start(ctx, "payment.CreateIntent",
		trace.WithAttributes(attribute.String("payment.mode", string(req.Mode))),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	lg := zctx.From(ctx).With(
		zap.String("client_id", req.ClientID),
		zap.String("mode", string(req.Mode)),
	)

	if !req.Mode.Valid() {
		return nil, errors.Errorf("unknown charge mode %q", req.Mode)
	}
	destination, err := i.destination(req)
	if err != nil {
		i.metrics.reject(ctx, req.Mode, "seller")
		return nil, err
	}

	tok, err := i.locks.Acquire(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, paylock.ErrLockHeld) {
			i.metrics.contended(ctx)
			lg.Info("Payment already in progress")
			return nil, paylock.ErrLockHeld
		}
		return nil, errors.Wrap(err, "acquire payment lock")
	}
	defer func() {
		// The request context may already be cancelled; the lock must still go.
		if err := i.locks.Release(context.WithoutCancel(ctx), tok); err != nil {
			lg.Warn("Release payment lock", zap.Error(err))
		}
	}()

	if len(req.Lines) == 0 {
		i.metrics.reject(ctx, req.Mode, "empty")
		return nil, ErrEmptyCart
	}
	res := i.carts.Validate(req.Lines)
	if !res.Accepted {
		i.metrics.reject(ctx, req.Mode, "invalid_cart")
		lg.Info("Cart rejected", zap.Int("rejected", len(res.Rejected)))
		return nil, &InvalidCartError{Rejected: res.Rejected}
	}

	amount := ToMinorUnits(res.Total)
	if amount <= 0 {
		i.metrics.reject(ctx, req.Mode, "zero_amount")
		return nil, ErrZeroAmount
	}
	if req.ExpectedAmount != nil && *req.ExpectedAmount != amount {
		i.metrics.reject(ctx, req.Mode, "amount_mismatch")
		return nil, &AmountMismatchError{Expected: *req.ExpectedAmount, Computed: amount}
	}

	split, err := i.cfg.Fees.Split(amount, req.Mode)
	if err != nil {
		i.metrics.reject(ctx, req.Mode, "fee")
		return nil, err
	}

	// A reordered retry must produce byte-identical parameters.
	res.Valid = SortLines(res.Valid)
	preq := ProcessorRequest{
		Amount:         amount,
		Currency:       Currency,
		Mode:           req.Mode,
		IdempotencyKey: IdempotencyKey(req.ClientID, req.Mode, destination, res.Valid, i.now(), i.cfg.IdempotencyWindow),
		Metadata:       i.metadata(req, res, split),
	}
	switch req.Mode {
	case ModeDestination:
		preq.DestinationAccountID = destination
		preq.TransferAmount = split.SellerPayout
	case ModeApplicationFee:
		preq.DestinationAccountID = destination
		preq.PlatformFee = split.PlatformFee
	}
	span.SetAttributes(
		attribute.Int64("payment.amount", amount),
		attribute.Int64("payment.platform_fee", split.PlatformFee),
	)

	start := time.Now()
	pi, err := i.processor.CreatePaymentIntent(ctx, preq)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		perr := asProcessorError(err)
		i.metrics.processorCall(ctx, elapsed, string(perr.Kind))
		i.metrics.reject(ctx, req.Mode, "processor_"+string(perr.Kind))
		lg.Error("Create payment intent failed",
			zap.String("kind", string(perr.Kind)),
			zap.String("code", perr.Code),
			zap.String("decline_code", perr.DeclineCode),
			zap.String("request_id", perr.RequestID),
			zap.Int("status", perr.StatusCode),
			zap.Error(perr.Err),
		)
		return nil, perr
	}
	i.metrics.processorCall(ctx, elapsed, "ok")
	i.metrics.created(ctx, req.Mode)

	intent := &Intent{
		PaymentIntentID: pi.ID,
		ClientSecret:    pi.ClientSecret,
		Amount:          amount,
		Currency:        Currency,
		PlatformFee:     split.PlatformFee,
		SellerPayout:    split.SellerPayout,
		Mode:            req.Mode,
		IdempotencyKey:  preq.IdempotencyKey,
		Lines:           res.Valid,
		Total:           res.Total,
	}
	lg.Info("Payment intent created",
		zap.String("payment_intent", pi.ID),
		zap.Int64("amount", amount),
		zap.Int64("platform_fee", split.PlatformFee),
	)

	i.record(ctx, lg, req.ClientID, intent)
	return intent, nil
}

func (i *Issuer) destination(req Request) (string, error) {
	if !req.Mode.Marketplace() {
		return "", nil
	}
	if i.cfg.SellerAccountID == "" {
		return "", ErrSellerNotConfigured
	}
	if req.SellerAccountID != "" && req.SellerAccountID != i.cfg.SellerAccountID {
		return "", ErrUnknownSeller
	}
	return i.cfg.SellerAccountID, nil
}

// record stores the pending order. The intent already exists at the
// processor, so failures are only logged; the webhook settles the status.
func (i *Issuer) record(ctx context.Context, lg *zap.Logger, clientID string, intent *Intent) {
	if i.orders == nil {
		return
	}
	items := make([]order.Item, len(intent.Lines))
	for n, l := range intent.Lines {
		items[n] = order.Item{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		}
	}
	_, err := i.orders.Record(context.WithoutCancel(ctx), order.RecordRequest{
		PaymentIntentID: intent.PaymentIntentID,
		ClientID:        clientID,
		Mode:            string(intent.Mode),
		Amount:          intent.Amount,
		PlatformFee:     intent.PlatformFee,
		SellerPayout:    intent.SellerPayout,
		Currency:        intent.Currency,
		Items:           items,
		Total:           intent.Total,
	})
	if err != nil {
		lg.Warn("Record order", zap.String("payment_intent", intent.PaymentIntentID), zap.Error(err))
	}
}

func (i *Issuer) metadata(req Request, res cart.Result, split Split) map[string]string {
	md := map[string]string{
		"sessionId":  req.ClientID,
		"orderTotal": res.Total.StringFixed(2),
		"itemCount":  strconv.Itoa(len(res.Valid)),
		"chargeMode": string(req.Mode),
	}
	if req.Mode.Marketplace() {
		md["platformFee"] = strconv.FormatInt(split.PlatformFee, 10)
		md["sellerPayout"] = strconv.FormatInt(split.SellerPayout, 10)
	}
	if items := itemsSummary(res.Valid); len(items) <= metadataValueLimit {
		md["items"] = items
	} else {
		md["itemsTruncated"] = "true"
	}
	return md
}

// itemsSummary encodes lines as a compact JSON array for processor metadata.
func itemsSummary(lines []cart.ValidLine) string {
	var e jx.Encoder
	e.ArrStart()
	for _, l := range lines {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(l.ProductID)
		e.FieldStart("quantity")
		e.Int64(l.Quantity)
		e.FieldStart("price")
		e.Str(l.UnitPrice.StringFixed(2))
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.String()
}

func asProcessorError(err error) *ProcessorError {
	var perr *ProcessorError
	if errors.As(err, &perr) {
		return perr
	}
	return &ProcessorError{Kind: KindInfrastructure, Err: err}
}
