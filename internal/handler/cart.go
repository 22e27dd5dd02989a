package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/rastalife/storefront/internal/domain/cart"
)

func (h *Handler) createCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.Carts.Create(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/carts/"+c.ID)
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		h.encodeCart(e, c)
	})
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.Carts.Get(r.Context(), chi.URLParam(r, "cartID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		h.encodeCart(e, c)
	})
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.Carts.Clear(r.Context(), chi.URLParam(r, "cartID")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	h.mutateCart(w, r, h.Carts.AddItem)
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	h.mutateCart(w, r, h.Carts.UpdateQuantity)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	h.mutateCart(w, r, h.Carts.RemoveItem)
}

type cartMutation func(ctx context.Context, cartID string, sel cart.Selection) (*cart.Cart, error)

func (h *Handler) mutateCart(w http.ResponseWriter, r *http.Request, apply cartMutation) {
	sel, err := h.decodeSelection(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := apply(r.Context(), chi.URLParam(r, "cartID"), sel)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		h.encodeCart(e, c)
	})
}

func (h *Handler) decodeSelection(w http.ResponseWriter, r *http.Request) (cart.Selection, error) {
	var sel cart.Selection
	err := h.readObject(w, r, func(d *jx.Decoder, key string) error {
		return decodeSelectionField(d, key, &sel)
	})
	if err != nil {
		return sel, err
	}
	if sel.ProductID == "" {
		return sel, badRequest("product_id is required")
	}
	return sel, nil
}

func decodeSelectionField(d *jx.Decoder, key string, sel *cart.Selection) error {
	var err error
	switch key {
	case "product_id":
		sel.ProductID, err = d.Str()
		sel.ProductID = strings.TrimSpace(sel.ProductID)
	case "size":
		sel.Size, err = d.Str()
	case "colors":
		sel.Colors, err = decodeStrings(d)
	case "quantity":
		sel.Quantity, err = d.Int()
	default:
		return d.Skip()
	}
	return err
}

func (h *Handler) encodeCart(e *jx.Encoder, c *cart.Cart) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	e.FieldStart("lines")
	e.ArrStart()
	for _, l := range c.Lines {
		h.encodeLine(e, l)
	}
	e.ArrEnd()
	e.FieldStart("count")
	e.Int(c.Count())
	e.FieldStart("subtotal")
	encodeMoney(e, c.Subtotal())
	e.FieldStart("updated_at")
	encodeTime(e, c.UpdatedAt)
	e.ObjEnd()
}

func (h *Handler) encodeLine(e *jx.Encoder, l cart.Line) {
	e.ObjStart()
	e.FieldStart("product_id")
	e.Str(l.ProductID)
	e.FieldStart("title")
	e.Str(l.Title)
	e.FieldStart("unit_price")
	encodeMoney(e, l.UnitPrice)
	e.FieldStart("quantity")
	e.Int(l.Quantity)
	e.FieldStart("size")
	e.Str(l.Size)
	e.FieldStart("colors")
	encodeStrings(e, l.Colors)
	e.FieldStart("image")
	e.Str(h.imageURL(l.Image))
	e.FieldStart("line_total")
	encodeMoney(e, l.Total())
	e.ObjEnd()
}
