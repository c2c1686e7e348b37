package stripe

import (
	"context"
	"time"

	stripeapi "github.com/stripe/stripe-go/v76"

	"github.com/xenking/storefront-checkout/internal/domain/seller"
)

var _ seller.Gateway = (*Client)(nil)

// Account implements seller.Gateway.
func (c *Client) Account(ctx context.Context, accountID string) (*seller.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripeapi.AccountParams{}
	params.Context = ctx
	a, err := execute(c.breaker, func() (*stripeapi.Account, error) {
		return c.accounts.GetByID(accountID, params)
	})
	if err != nil {
		return nil, err
	}

	out := &seller.Account{
		ID:               a.ID,
		Email:            a.Email,
		ChargesEnabled:   a.ChargesEnabled,
		PayoutsEnabled:   a.PayoutsEnabled,
		DetailsSubmitted: a.DetailsSubmitted,
		Created:          unix(a.Created),
	}
	if a.BusinessProfile != nil {
		out.BusinessName = a.BusinessProfile.Name
	}
	if a.Requirements != nil {
		out.CurrentlyDue = a.Requirements.CurrentlyDue
	}
	return out, nil
}

// Balance implements seller.Gateway.
func (c *Client) Balance(ctx context.Context, accountID string) (*seller.Balance, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripeapi.BalanceParams{}
	params.Context = ctx
	params.SetStripeAccount(accountID)
	b, err := execute(c.breaker, func() (*stripeapi.Balance, error) {
		return c.balances.Get(params)
	})
	if err != nil {
		return nil, err
	}
	return &seller.Balance{
		Available:       money(b.Available),
		Pending:         money(b.Pending),
		ConnectReserved: money(b.ConnectReserved),
	}, nil
}

// Transfers implements seller.Gateway.
func (c *Client) Transfers(ctx context.Context, destination string, limit int64) ([]seller.Transfer, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripeapi.TransferListParams{Destination: stripeapi.String(destination)}
	params.Context = ctx
	params.Limit = stripeapi.Int64(limit)
	params.Single = true
	return execute(c.breaker, func() ([]seller.Transfer, error) {
		it := c.transfers.List(params)
		out := make([]seller.Transfer, 0, limit)
		for it.Next() {
			t := it.Transfer()
			out = append(out, seller.Transfer{
				ID:          t.ID,
				Amount:      t.Amount,
				Currency:    string(t.Currency),
				Description: t.Description,
				Created:     unix(t.Created),
			})
		}
		return out, it.Err()
	})
}

// Payouts implements seller.Gateway.
func (c *Client) Payouts(ctx context.Context, accountID string, limit int64) ([]seller.Payout, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripeapi.PayoutListParams{}
	params.Context = ctx
	params.Limit = stripeapi.Int64(limit)
	params.Single = true
	params.SetStripeAccount(accountID)
	return execute(c.breaker, func() ([]seller.Payout, error) {
		it := c.payouts.List(params)
		out := make([]seller.Payout, 0, limit)
		for it.Next() {
			p := it.Payout()
			out = append(out, seller.Payout{
				ID:          p.ID,
				Amount:      p.Amount,
				Currency:    string(p.Currency),
				Status:      string(p.Status),
				ArrivalDate: unix(p.ArrivalDate),
			})
		}
		return out, it.Err()
	})
}

// LoginLink implements seller.Gateway.
func (c *Client) LoginLink(ctx context.Context, accountID string) (string, time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripeapi.LoginLinkParams{Account: stripeapi.String(accountID)}
	params.Context = ctx
	l, err := execute(c.breaker, func() (*stripeapi.LoginLink, error) {
		return c.loginLinks.New(params)
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return l.URL, unix(l.Created), nil
}

func money(amounts []*stripeapi.Amount) []seller.Money {
	out := make([]seller.Money, 0, len(amounts))
	for _, a := range amounts {
		out = append(out, seller.Money{Amount: a.Amount, Currency: string(a.Currency)})
	}
	return out
}

func unix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
