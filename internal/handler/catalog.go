package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-checkout/internal/domain/catalog"
)

func (h *Handler) listProducts(w http.ResponseWriter, _ *http.Request) {
	products := h.catalog.List()

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	e.FieldStart("products")
	e.ArrStart()
	for _, p := range products {
		encodeProduct(&e, p)
	}
	e.ArrEnd()
	e.FieldStart("collections")
	e.ArrStart()
	for _, c := range catalog.Collections() {
		e.ObjStart()
		e.FieldStart("name")
		e.Str(c.Name)
		e.FieldStart("purchasable")
		e.Bool(c.Purchasable)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
	writeJSON(w, http.StatusOK, e.Bytes())
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Get(r.PathValue("id"))
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Internal server error", nil)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	e.FieldStart("product")
	encodeProduct(&e, p)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, e.Bytes())
}

func encodeProduct(e *jx.Encoder, p catalog.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("price")
	e.Num(jx.Num(p.Price.StringFixed(2)))
	e.FieldStart("category")
	e.Str(p.Category)
	if p.Collection != "" {
		e.FieldStart("collection")
		e.Str(p.Collection)
	}
	e.FieldStart("purchasable")
	e.Bool(p.Purchasable)
	e.FieldStart("inStock")
	e.Bool(p.InStock)
	if p.Description != "" {
		e.FieldStart("description")
		e.Str(p.Description)
	}
	if p.Image != "" {
		e.FieldStart("image")
		e.Str(p.Image)
	}
	e.ObjEnd()
}
