package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/payment"
)

// RoutePolicy holds the per-route differences of the payment routes.
type RoutePolicy struct {
	Mode payment.ChargeMode
	// RequireSession rejects callers identified only by IP.
	RequireSession bool
	// AcceptAmount reads the optional amount and sellerAccountId fields.
	AcceptAmount bool
}

// intentRequest is the decoded body of a payment route.
type intentRequest struct {
	Lines           []cart.Line
	Amount          *int64
	SellerAccountID string
}

func (h *Handler) createIntent(policy RoutePolicy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		clientID, session := ClientID(r)
		if policy.RequireSession && !session {
			writeError(w, http.StatusUnauthorized, "SESSION_REQUIRED", "A checkout session is required", nil)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes))
		if err != nil {
			writeBodyError(w, err)
			return
		}
		req, err := decodeIntentRequest(body, policy.AcceptAmount)
		if err != nil {
			zctx.From(ctx).Debug("Malformed payment request", zap.Error(err))
			writeError(w, http.StatusBadRequest, "MALFORMED_INPUT", "Invalid request body", nil)
			return
		}

		intent, err := h.issuer.CreateIntent(ctx, payment.Request{
			ClientID:        clientID,
			Lines:           req.Lines,
			Mode:            policy.Mode,
			ExpectedAmount:  req.Amount,
			SellerAccountID: req.SellerAccountID,
		})
		if err != nil {
			writePaymentError(ctx, w, err)
			return
		}

		var e jx.Encoder
		e.ObjStart()
		e.FieldStart("success")
		e.Bool(true)
		e.FieldStart("clientSecret")
		e.Str(intent.ClientSecret)
		e.FieldStart("amount")
		e.Int64(intent.Amount)
		e.FieldStart("currency")
		e.Str(intent.Currency)
		if policy.Mode.Marketplace() {
			e.FieldStart("platformFee")
			e.Int64(intent.PlatformFee)
			e.FieldStart("sellerPayout")
			e.Int64(intent.SellerPayout)
		}
		if policy.Mode == payment.ModeApplicationFee {
			e.FieldStart("paymentIntentId")
			e.Str(intent.PaymentIntentID)
		}
		e.ObjEnd()
		writeJSON(w, http.StatusOK, e.Bytes())
	}
}

// decodeIntentRequest parses {cartItems:[{id,quantity}], amount?,
// sellerAccountId?}. Lines with a wrong shape are kept with an empty id or
// zero quantity so the validator reports them per line.
func decodeIntentRequest(body []byte, acceptAmount bool) (*intentRequest, error) {
	req := &intentRequest{}
	sawItems := false
	err := jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "cartItems":
			sawItems = true
			if d.Next() != jx.Array {
				return errors.New("cartItems must be an array")
			}
			return d.Arr(func(d *jx.Decoder) error {
				l, err := decodeLine(d)
				if err != nil {
					return err
				}
				req.Lines = append(req.Lines, l)
				return nil
			})
		case "amount":
			if !acceptAmount || d.Next() == jx.Null {
				return d.Skip()
			}
			v, err := d.Int64()
			if err != nil {
				return errors.Wrap(err, "amount")
			}
			req.Amount = &v
			return nil
		case "sellerAccountId":
			if !acceptAmount || d.Next() != jx.String {
				return d.Skip()
			}
			v, err := d.Str()
			req.SellerAccountID = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}
	if !sawItems {
		return nil, errors.New("cartItems is required")
	}
	return req, nil
}

func decodeLine(d *jx.Decoder) (cart.Line, error) {
	var l cart.Line
	if d.Next() != jx.Object {
		return l, d.Skip()
	}
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "id":
			if d.Next() != jx.String {
				return d.Skip()
			}
			v, err := d.Str()
			l.ProductID = v
			return err
		case "quantity":
			q, err := decodeQuantity(d)
			l.Quantity = q
			return err
		default:
			return d.Skip()
		}
	})
	return l, err
}

// decodeQuantity accepts a JSON number or a numeric string. Anything else
// yields zero, which the validator rejects as malformed.
func decodeQuantity(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		q, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Zero, nil
		}
		return q, nil
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		q, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, nil
		}
		return q, nil
	default:
		return decimal.Zero, d.Skip()
	}
}
