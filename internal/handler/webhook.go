package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/webhook"
)

// SignatureHeader carries the webhook signature.
const SignatureHeader = "Stripe-Signature"

// webhook passes the raw body to the dispatcher untouched; nothing is
// parsed before the signature is verified.
func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes))
	if err != nil {
		zctx.From(r.Context()).Warn("Read webhook body", zap.Error(err))
		writeBodyError(w, err)
		return
	}

	ack, err := h.dispatcher.Handle(r.Context(), body, r.Header.Get(SignatureHeader))
	switch {
	case errors.Is(err, webhook.ErrBadSignature):
		writeError(w, http.StatusBadRequest, "BAD_SIGNATURE", "Invalid webhook signature", nil)
		return
	case err != nil:
		zctx.From(r.Context()).Error("Webhook failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "WEBHOOK_FAILED", "Webhook processing failed", nil)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("received")
	e.Bool(true)
	if ack.Duplicate {
		e.FieldStart("duplicate")
		e.Bool(true)
	}
	e.ObjEnd()
	writeJSON(w, http.StatusOK, e.Bytes())
}
