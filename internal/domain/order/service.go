package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sentinel errors for order recording.
var (
	ErrMissingPaymentIntent = fmt.Errorf("payment intent id required")
	ErrEmptyItems           = fmt.Errorf("items required")
)

// InvalidStatusError indicates an unknown status value.
type InvalidStatusError struct {
	Status Status
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid order status %q", e.Status)
}

// RecordRequest holds what is known about an order when its payment intent
// has just been created.
type RecordRequest struct {
	PaymentIntentID string
	ClientID        string
	Mode            string
	Amount          int64
	PlatformFee     int64
	SellerPayout    int64
	Currency        string
	Items           []Item
	Total           decimal.Decimal
}

// Service encapsulates order ledger rules.
type Service struct {
	orders Repository
	now    func() time.Time
}

// NewService creates an order Service over the given repository.
func NewService(orders Repository) *Service {
	return &Service{orders: orders, now: time.Now}
}

// Record persists a pending order for a freshly created payment intent.
func (s *Service) Record(ctx context.Context, req RecordRequest) (*Order, error) {
	if req.PaymentIntentID == "" {
		return nil, ErrMissingPaymentIntent
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	now := s.now().UTC()
	o := &Order{
		ID:              uuid.New().String(),
		PaymentIntentID: req.PaymentIntentID,
		ClientID:        req.ClientID,
		Mode:            req.Mode,
		Amount:          req.Amount,
		PlatformFee:     req.PlatformFee,
		SellerPayout:    req.SellerPayout,
		Currency:        req.Currency,
		Status:          StatusPending,
		Items:           req.Items,
		Total:           req.Total.Round(2),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return o, nil
}

// UpdateStatus moves the order of a payment intent to status when the
// transition is allowed by Status.Sources. Disallowed transitions are
// reported as TransitionSkipped, not as errors. It returns ErrNotFound when
// the intent has no ledger entry.
func (s *Service) UpdateStatus(ctx context.Context, paymentIntentID string, status Status) (Transition, error) {
	if paymentIntentID == "" {
		return 0, ErrMissingPaymentIntent
	}
	from := status.Sources()
	if !status.Valid() || len(from) == 0 {
		return 0, &InvalidStatusError{Status: status}
	}
	t, err := s.orders.SetStatus(ctx, paymentIntentID, status, from)
	if err != nil {
		return 0, fmt.Errorf("set order status: %w", err)
	}
	return t, nil
}

// Get returns the order of a payment intent.
func (s *Service) Get(ctx context.Context, paymentIntentID string) (*Order, error) {
	o, err := s.orders.GetByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}
