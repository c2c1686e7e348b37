package handler

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/payment"
	"github.com/xenking/storefront-checkout/internal/domain/seller"
)

// Sellers answers seller dashboard queries. An empty account id means the
// configured seller.
type Sellers interface {
	Account(ctx context.Context, accountID string) (*seller.Account, error)
	Balance(ctx context.Context, accountID string) (*seller.Balance, error)
	Transfers(ctx context.Context) ([]seller.Transfer, error)
	Payouts(ctx context.Context) ([]seller.Payout, error)
	DashboardLink(ctx context.Context, accountID string) (*seller.DashboardLink, error)
}

// requireSellerKey checks the Bearer token of seller routes against
// Config.SellerKey. An empty key leaves the routes open.
func (h *Handler) requireSellerKey(next http.HandlerFunc) http.HandlerFunc {
	if h.cfg.SellerKey == "" {
		return next
	}
	want := sha256.Sum256([]byte(h.cfg.SellerKey))
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		got := sha256.Sum256([]byte(token))
		if !ok || subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid seller key", nil)
			return
		}
		next(w, r)
	}
}

func (h *Handler) sellerAccount(w http.ResponseWriter, r *http.Request) {
	if h.sellers == nil {
		writeSellerError(r.Context(), w, payment.ErrSellerNotConfigured)
		return
	}
	a, err := h.sellers.Account(r.Context(), r.PathValue("accountId"))
	if err != nil {
		writeSellerError(r.Context(), w, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	e.FieldStart("account")
	e.ObjStart()
	e.FieldStart("id")
	e.Str(a.ID)
	if a.Email != "" {
		e.FieldStart("email")
		e.Str(a.Email)
	}
	if a.BusinessName != "" {
		e.FieldStart("businessName")
		e.Str(a.BusinessName)
	}
	e.FieldStart("chargesEnabled")
	e.Bool(a.ChargesEnabled)
	e.FieldStart("payoutsEnabled")
	e.Bool(a.PayoutsEnabled)
	e.FieldStart("detailsSubmitted")
	e.Bool(a.DetailsSubmitted)
	e.FieldStart("isActive")
	e.Bool(a.Active())
	e.FieldStart("requiresInfo")
	e.Bool(a.RequiresInfo())
	e.FieldStart("currentlyDue")
	e.ArrStart()
	for _, req := range a.CurrentlyDue {
		e.Str(req)
	}
	e.ArrEnd()
	if !a.Created.IsZero() {
		e.FieldStart("created")
		e.Str(a.Created.Format(time.RFC3339))
	}
	e.ObjEnd()
	e.ObjEnd()
	writeJSON(w, http.StatusOK, e.Bytes())
}

func (h *Handler) sellerBalance(w http.ResponseWriter, r *http.Request) {
	if h.sellers == nil {
		writeSellerError(r.Context(), w, payment.ErrSellerNotConfigured)
		return
	}
	b, err := h.sellers.Balance(r.Context(), r.PathValue("accountId"))
	if err != nil {
		writeSellerError(r.Context(), w, err)
		return
	}

	amounts := func(e *jx.Encoder, name string, list []seller.Money) {
		e.FieldStart(name)
		e.ArrStart()
		for _, m := range list {
			e.ObjStart()
			e.FieldStart("amount")
			e.Int64(m.Amount)
			e.FieldStart("currency")
			e.Str(m.Currency)
			e.ObjEnd()
		}
		e.ArrEnd()
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	e.FieldStart("balance")
	e.ObjStart()
	amounts(&e, "available", b.Available)
	amounts(&e, "pending", b.Pending)
	amounts(&e, "connectReserved", b.ConnectReserved)
	e.ObjEnd()
	e.ObjEnd()
	writeJSON(w, http.StatusOK, e.Bytes())
}

func (h *Handler) sellerTransfers(w http.ResponseWriter, r *http.Request) {
	if h.sellers == nil {
		writeSellerError(r.Context(), w, payment.ErrSellerNotConfigured)
		return
	}
	list, err := h.sellers.Transfers(r.Context())
	if err != nil {
		writeSellerError(r.Context(), w, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	e.FieldStart("transfers")
	e.ArrStart()
	for _, t := range list {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(t.ID)
		e.FieldStart("amount")
		e.Int64(t.Amount)
		e.FieldStart("currency")
		e.Str(t.Currency)
		e.FieldStart("created")
		e.Str(t.Created.Format(time.RFC3339))
		if t.Description != "" {
			e.FieldStart("description")
			e.Str(t.Description)
		}
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
	writeJSON(w, http.StatusOK, e.Bytes())
}

func (h *Handler) sellerPayouts(w http.ResponseWriter, r *http.Request) {
	if h.sellers == nil {
		writeSellerError(r.Context(), w, payment.ErrSellerNotConfigured)
		return
	}
	list, err := h.sellers.Payouts(r.Context())
	if err != nil {
		writeSellerError(r.Context(), w, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	e.FieldStart("payouts")
	e.ArrStart()
	for _, p := range list {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(p.ID)
		e.FieldStart("amount")
		e.Int64(p.Amount)
		e.FieldStart("currency")
		e.Str(p.Currency)
		e.FieldStart("arrivalDate")
		e.Str(p.ArrivalDate.Format(time.RFC3339))
		e.FieldStart("status")
		e.Str(p.Status)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
	writeJSON(w, http.StatusOK, e.Bytes())
}

func (h *Handler) sellerDashboard(w http.ResponseWriter, r *http.Request) {
	if h.sellers == nil {
		writeSellerError(r.Context(), w, payment.ErrSellerNotConfigured)
		return
	}
	link, err := h.sellers.DashboardLink(r.Context(), r.PathValue("accountId"))
	if err != nil {
		writeSellerError(r.Context(), w, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	e.FieldStart("url")
	e.Str(link.URL)
	e.FieldStart("expiresAt")
	e.Str(link.ExpiresAt.Format(time.RFC3339))
	e.ObjEnd()
	writeJSON(w, http.StatusOK, e.Bytes())
}

// writeSellerError maps seller service errors to responses. Only the
// configured seller can be read, so other accounts look absent.
func writeSellerError(ctx context.Context, w http.ResponseWriter, err error) {
	var procErr *payment.ProcessorError
	switch {
	case errors.Is(err, payment.ErrSellerNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "SELLER_NOT_CONFIGURED", "Marketplace payments are not available", nil)
	case errors.Is(err, payment.ErrUnknownSeller):
		writeError(w, http.StatusNotFound, "UNKNOWN_SELLER", "Unknown seller account", nil)
	case errors.As(err, &procErr):
		zctx.From(ctx).Warn("Seller query failed",
			zap.String("kind", string(procErr.Kind)),
			zap.String("request_id", procErr.RequestID),
			zap.Error(err),
		)
		writeProcessorError(w, procErr)
	default:
		zctx.From(ctx).Error("Seller query", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Internal server error", nil)
	}
}
