package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront-checkout/internal/domain/payment"
)

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	var failures map[string]string
	if h.readiness != nil {
		failures = h.readiness.Failures()
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	e.FieldStart("status")
	if len(failures) == 0 {
		e.Str("healthy")
	} else {
		e.Str("degraded")
	}
	e.FieldStart("timestamp")
	e.Str(h.now().UTC().Format(time.RFC3339))
	e.ObjEnd()
	writeJSON(w, http.StatusOK, e.Bytes())
}

func (h *Handler) config(w http.ResponseWriter, _ *http.Request) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("publishableKey")
	e.Str(h.cfg.PublishableKey)
	e.FieldStart("currency")
	e.Str(payment.Currency)
	e.FieldStart("connectEnabled")
	e.Bool(h.issuer.ConnectEnabled())
	e.ObjEnd()
	writeJSON(w, http.StatusOK, e.Bytes())
}
