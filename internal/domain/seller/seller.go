// Package seller reports the state of the marketplace's connected seller
// account: onboarding status, balance, transfers, payouts and the Express
// dashboard link.
package seller

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront-checkout/internal/domain/payment"
)

// DashboardLinkTTL is how long a dashboard login link stays usable.
const DashboardLinkTTL = 5 * time.Minute

// ListLimit is the number of transfers or payouts returned per request.
const ListLimit = 10

// Account is the onboarding state of a connected account.
type Account struct {
	ID               string
	Email            string
	BusinessName     string
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
	// CurrentlyDue lists requirements that must be provided now.
	CurrentlyDue []string
	Created      time.Time
}

// Active reports whether the account can both accept charges and receive
// payouts.
func (a Account) Active() bool {
	return a.ChargesEnabled && a.PayoutsEnabled
}

// RequiresInfo reports whether onboarding is waiting on the seller.
func (a Account) RequiresInfo() bool {
	return len(a.CurrentlyDue) > 0
}

// Money is an amount in the smallest currency unit.
type Money struct {
	Amount   int64
	Currency string
}

// Balance of a connected account.
type Balance struct {
	Available       []Money
	Pending         []Money
	ConnectReserved []Money
}

// Transfer from the platform to the seller.
type Transfer struct {
	ID          string
	Amount      int64
	Currency    string
	Description string
	Created     time.Time
}

// Payout from the seller's balance to their bank.
type Payout struct {
	ID          string
	Amount      int64
	Currency    string
	Status      string
	ArrivalDate time.Time
}

// DashboardLink is a single-use login link to the Express dashboard.
type DashboardLink struct {
	URL       string
	ExpiresAt time.Time
}

// Gateway reads connected account data from the processor.
type Gateway interface {
	Account(ctx context.Context, accountID string) (*Account, error)
	Balance(ctx context.Context, accountID string) (*Balance, error)
	Transfers(ctx context.Context, destination string, limit int64) ([]Transfer, error)
	Payouts(ctx context.Context, accountID string, limit int64) ([]Payout, error)
	LoginLink(ctx context.Context, accountID string) (url string, created time.Time, err error)
}

// Service answers seller queries for the single configured seller account.
type Service struct {
	accountID string
	gateway   Gateway
}

// NewService creates a Service. An empty accountID is allowed: every call
// then fails with payment.ErrSellerNotConfigured.
func NewService(accountID string, gateway Gateway) (*Service, error) {
	if gateway == nil {
		return nil, errors.New("gateway is required")
	}
	return &Service{accountID: accountID, gateway: gateway}, nil
}

// Resolve returns the account id a request may read. An empty requested id
// means the configured seller. Any other account is refused with
// payment.ErrUnknownSeller.
func (s *Service) Resolve(requested string) (string, error) {
	if s.accountID == "" {
		return "", payment.ErrSellerNotConfigured
	}
	if requested != "" && requested != s.accountID {
		return "", payment.ErrUnknownSeller
	}
	return s.accountID, nil
}

// Account returns the onboarding state of the seller.
func (s *Service) Account(ctx context.Context, requested string) (*Account, error) {
	id, err := s.Resolve(requested)
	if err != nil {
		return nil, err
	}
	a, err := s.gateway.Account(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get account")
	}
	return a, nil
}

// Balance returns the seller's balance.
func (s *Service) Balance(ctx context.Context, requested string) (*Balance, error) {
	id, err := s.Resolve(requested)
	if err != nil {
		return nil, err
	}
	b, err := s.gateway.Balance(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get balance")
	}
	return b, nil
}

// Transfers returns the latest transfers to the seller.
func (s *Service) Transfers(ctx context.Context) ([]Transfer, error) {
	id, err := s.Resolve("")
	if err != nil {
		return nil, err
	}
	out, err := s.gateway.Transfers(ctx, id, ListLimit)
	if err != nil {
		return nil, errors.Wrap(err, "list transfers")
	}
	return out, nil
}

// Payouts returns the latest payouts of the seller.
func (s *Service) Payouts(ctx context.Context) ([]Payout, error) {
	id, err := s.Resolve("")
	if err != nil {
		return nil, err
	}
	out, err := s.gateway.Payouts(ctx, id, ListLimit)
	if err != nil {
		return nil, errors.Wrap(err, "list payouts")
	}
	return out, nil
}

// DashboardLink creates a login link to the seller's Express dashboard.
func (s *Service) DashboardLink(ctx context.Context, requested string) (*DashboardLink, error) {
	id, err := s.Resolve(requested)
	if err != nil {
		return nil, err
	}
	url, created, err := s.gateway.LoginLink(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "create login link")
	}
	return &DashboardLink{URL: url, ExpiresAt: created.Add(DashboardLinkTTL)}, nil
}
