package webhook

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Decode resolves the kind of env and decodes its data object into the
// matching payload variant. Unrecognised kinds get an UnknownPayload and
// their object is not inspected.
func Decode(env Envelope) (Event, error) {
	ev := Event{
		ID:      env.ID,
		Type:    env.Type,
		Kind:    KindOf(env.Type),
		Created: env.Created,
		Account: env.Account,
	}

	var (
		p   Payload
		err error
	)
	switch ev.Kind {
	case KindPaymentSucceeded, KindPaymentFailed:
		p, err = decodePaymentIntent(env.Object)
	case KindChargeSucceeded, KindChargeRefunded:
		p, err = decodeCharge(env.Object)
	case KindTransferCreated, KindTransferPaid:
		p, err = decodeTransfer(env.Object)
	case KindPayoutCreated, KindPayoutPaid, KindPayoutFailed:
		p, err = decodePayout(env.Object)
	case KindAccountUpdated:
		p, err = decodeAccount(env.Object)
	case KindCheckoutCompleted:
		p, err = decodeCheckoutSession(env.Object)
	default:
		p = &UnknownPayload{Type: env.Type}
	}
	if err != nil {
		return Event{}, errors.Wrapf(err, "decode %s object", env.Type)
	}
	ev.Payload = p
	return ev, nil
}

func decodePaymentIntent(b []byte) (*PaymentIntentPayload, error) {
	p := &PaymentIntentPayload{}
	err := jx.DecodeBytes(b).ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			p.ID, err = d.Str()
		case "status":
			p.Status, err = optStr(d)
		case "amount":
			p.Amount, err = d.Int64()
		case "currency":
			p.Currency, err = optStr(d)
		case "metadata":
			p.Metadata, err = decodeMetadata(d)
		case "last_payment_error":
			if d.Next() == jx.Null {
				return d.Null()
			}
			err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				var err error
				switch string(key) {
				case "code":
					p.FailureCode, err = optStr(d)
				case "message":
					p.FailureMessage, err = optStr(d)
				default:
					err = d.Skip()
				}
				return err
			})
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, errors.New("payment intent without id")
	}
	return p, nil
}

func decodeCharge(b []byte) (*ChargePayload, error) {
	p := &ChargePayload{}
	err := jx.DecodeBytes(b).ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			p.ID, err = d.Str()
		case "payment_intent":
			p.PaymentIntentID, err = expandableID(d)
		case "amount":
			p.Amount, err = d.Int64()
		case "amount_refunded":
			p.AmountRefunded, err = d.Int64()
		case "refunded":
			p.Refunded, err = d.Bool()
		case "currency":
			p.Currency, err = optStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func decodeTransfer(b []byte) (*TransferPayload, error) {
	p := &TransferPayload{}
	err := jx.DecodeBytes(b).ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			p.ID, err = d.Str()
		case "destination":
			p.Destination, err = expandableID(d)
		case "amount":
			p.Amount, err = d.Int64()
		case "currency":
			p.Currency, err = optStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func decodePayout(b []byte) (*PayoutPayload, error) {
	p := &PayoutPayload{}
	err := jx.DecodeBytes(b).ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			p.ID, err = d.Str()
		case "status":
			p.Status, err = optStr(d)
		case "amount":
			p.Amount, err = d.Int64()
		case "currency":
			p.Currency, err = optStr(d)
		case "arrival_date":
			var sec int64
			sec, err = d.Int64()
			p.ArrivalDate = time.Unix(sec, 0).UTC()
		case "failure_message":
			p.FailureMessage, err = optStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func decodeAccount(b []byte) (*AccountPayload, error) {
	p := &AccountPayload{}
	err := jx.DecodeBytes(b).ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			p.ID, err = d.Str()
		case "charges_enabled":
			p.ChargesEnabled, err = d.Bool()
		case "payouts_enabled":
			p.PayoutsEnabled, err = d.Bool()
		case "details_submitted":
			p.DetailsSubmitted, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func decodeCheckoutSession(b []byte) (*CheckoutSessionPayload, error) {
	p := &CheckoutSessionPayload{}
	err := jx.DecodeBytes(b).ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			p.ID, err = d.Str()
		case "payment_intent":
			p.PaymentIntentID, err = expandableID(d)
		case "payment_status":
			p.PaymentStatus, err = optStr(d)
		case "amount_total":
			if d.Next() == jx.Null {
				return d.Null()
			}
			p.AmountTotal, err = d.Int64()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// optStr reads a string that may be null.
func optStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

// expandableID reads a field that is either an id string, an expanded
// object with an "id" field, or null.
func expandableID(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Null:
		return "", d.Null()
	case jx.Object:
		var id string
		err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			if string(key) != "id" {
				return d.Skip()
			}
			var err error
			id, err = d.Str()
			return err
		})
		return id, err
	default:
		return d.Str()
	}
}

func decodeMetadata(d *jx.Decoder) (map[string]string, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	md := make(map[string]string)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		v, err := optStr(d)
		if err != nil {
			return err
		}
		md[string(key)] = v
		return nil
	})
	return md, err
}
