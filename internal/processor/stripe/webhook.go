package stripe

import (
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	stripeapi "github.com/stripe/stripe-go/v76"
	stripewebhook "github.com/stripe/stripe-go/v76/webhook"

	"github.com/xenking/storefront-checkout/internal/domain/webhook"
)

// DefaultTolerance is the accepted age of a signed payload.
const DefaultTolerance = stripewebhook.DefaultTolerance

var _ webhook.Verifier = (*Verifier)(nil)

// Verifier checks Stripe-Signature headers against an endpoint secret.
type Verifier struct {
	secret    string
	tolerance time.Duration
}

// NewVerifier creates a Verifier. A zero tolerance means DefaultTolerance.
func NewVerifier(secret string, tolerance time.Duration) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("webhook secret is required")
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{secret: secret, tolerance: tolerance}, nil
}

// Verify implements webhook.Verifier.
func (v *Verifier) Verify(payload []byte, signature string) (*webhook.Envelope, error) {
	ev, err := stripewebhook.ConstructEventWithOptions(payload, signature, v.secret, stripewebhook.ConstructEventOptions{
		Tolerance: v.tolerance,
		// Objects are decoded by id and type only, so older API versions are fine.
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "construct event")
	}
	return envelope(ev), nil
}

// ParseEvent decodes an event exported from the Stripe API without checking
// a signature. Only use it for events fetched with the secret key.
func ParseEvent(b []byte) (*webhook.Envelope, error) {
	var ev stripeapi.Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return nil, errors.Wrap(err, "decode event")
	}
	if ev.ID == "" || ev.Type == "" {
		return nil, errors.New("event without id or type")
	}
	return envelope(ev), nil
}

func envelope(ev stripeapi.Event) *webhook.Envelope {
	env := &webhook.Envelope{
		ID:       ev.ID,
		Type:     string(ev.Type),
		Created:  time.Unix(ev.Created, 0).UTC(),
		Account:  ev.Account,
		Livemode: ev.Livemode,
	}
	if ev.Data != nil {
		env.Object = ev.Data.Raw
	}
	return env
}
