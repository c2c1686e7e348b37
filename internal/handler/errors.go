package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/paylock"
	"github.com/xenking/storefront-checkout/internal/domain/payment"
)

// Messages shown to clients. Processor text is only passed through for card
// declines.
const (
	msgLockHeld       = "A payment is already in progress, please try again shortly"
	msgRestricted     = "Products from restricted collections cannot be purchased"
	msgInvalidCart    = "Invalid cart items"
	msgPaymentFailed  = "Payment could not be processed, please try again later"
	msgPaymentOffline = "Payments are temporarily unavailable, please try again shortly"
)

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeError writes {success:false, error, code, details?}.
func writeError(w http.ResponseWriter, status int, code, msg string, details func(e *jx.Encoder)) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(false)
	e.FieldStart("error")
	e.Str(msg)
	e.FieldStart("code")
	e.Str(code)
	if details != nil {
		e.FieldStart("details")
		e.ObjStart()
		details(&e)
		e.ObjEnd()
	}
	e.ObjEnd()
	writeJSON(w, status, e.Bytes())
}

func writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "Request body too large", nil)
		return
	}
	writeError(w, http.StatusBadRequest, "MALFORMED_INPUT", "Invalid request body", nil)
}

// writePaymentError maps issuer errors to responses.
func writePaymentError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		cartErr     *payment.InvalidCartError
		mismatchErr *payment.AmountMismatchError
		procErr     *payment.ProcessorError
	)
	switch {
	case errors.Is(err, paylock.ErrLockHeld):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusConflict, "LOCK_HELD", msgLockHeld, nil)
	case errors.Is(err, payment.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "EMPTY_CART", "Cart is empty", nil)
	case errors.As(err, &cartErr):
		writeInvalidCart(w, cartErr)
	case errors.Is(err, payment.ErrZeroAmount):
		writeError(w, http.StatusBadRequest, "ZERO_AMOUNT", "Cart total must be greater than zero", nil)
	case errors.As(err, &mismatchErr):
		writeError(w, http.StatusBadRequest, "AMOUNT_MISMATCH", "Amount does not match the cart total", func(e *jx.Encoder) {
			e.FieldStart("expected")
			e.Int64(mismatchErr.Expected)
			e.FieldStart("computed")
			e.Int64(mismatchErr.Computed)
		})
	case errors.Is(err, payment.ErrUnknownSeller):
		writeError(w, http.StatusBadRequest, "UNKNOWN_SELLER", "Unknown seller account", nil)
	case errors.Is(err, payment.ErrSellerNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "SELLER_NOT_CONFIGURED", "Marketplace payments are not available", nil)
	case errors.Is(err, payment.ErrFeeExceedsAmount):
		writeError(w, http.StatusUnprocessableEntity, "FEE_EXCEEDS_AMOUNT", "Order total is below the minimum for this payment type", nil)
	case errors.As(err, &procErr):
		writeProcessorError(w, procErr)
	default:
		zctx.From(ctx).Error("Create payment intent", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Internal server error", nil)
	}
}

func writeInvalidCart(w http.ResponseWriter, err *payment.InvalidCartError) {
	restricted := err.RestrictedNames()
	msg := msgInvalidCart
	if len(restricted) > 0 {
		msg = msgRestricted
	}
	writeError(w, http.StatusBadRequest, "INVALID_CART", msg, func(e *jx.Encoder) {
		e.FieldStart("restrictedItems")
		e.ArrStart()
		for _, name := range restricted {
			e.Str(name)
		}
		e.ArrEnd()

		e.FieldStart("rejected")
		e.ArrStart()
		for _, l := range err.Rejected {
			e.ObjStart()
			e.FieldStart("index")
			e.Int(l.Index)
			e.FieldStart("productId")
			e.Str(l.ProductID)
			e.FieldStart("reason")
			e.Str(string(l.Reason))
			if l.Name != "" {
				e.FieldStart("name")
				e.Str(l.Name)
			}
			if l.Collection != "" {
				e.FieldStart("collection")
				e.Str(l.Collection)
			}
			e.ObjEnd()
		}
		e.ArrEnd()
	})
}

// writeProcessorError shows card decline text and the failure class only.
// Everything else the processor said has already been logged by the issuer.
func writeProcessorError(w http.ResponseWriter, err *payment.ProcessorError) {
	classification := func(e *jx.Encoder) {
		e.FieldStart("classification")
		e.Str(string(err.Kind))
		if err.DeclineCode != "" {
			e.FieldStart("declineCode")
			e.Str(err.DeclineCode)
		}
	}
	switch err.Kind {
	case payment.KindCard:
		msg := err.Message
		if msg == "" {
			msg = "Your card was declined"
		}
		writeError(w, http.StatusPaymentRequired, "PROCESSOR_ERROR", msg, classification)
	case payment.KindUnavailable:
		w.Header().Set("Retry-After", strconv.Itoa(30))
		writeError(w, http.StatusServiceUnavailable, "PROCESSOR_ERROR", msgPaymentOffline, classification)
	default:
		writeError(w, http.StatusBadGateway, "PROCESSOR_ERROR", msgPaymentFailed, func(e *jx.Encoder) {
			e.FieldStart("classification")
			e.Str(string(err.Kind))
		})
	}
}
