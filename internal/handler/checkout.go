package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rastalife/storefront/internal/domain/cart"
	"github.com/rastalife/storefront/internal/domain/coupon"
	"github.com/rastalife/storefront/internal/domain/order"
)

// checkoutRequest is the body of the quote and order endpoints. Exactly one of
// CartID and Items selects what is being bought.
type checkoutRequest struct {
	CartID     string
	Items      []cart.Selection
	Area       order.Area
	CouponCode string
	Customer   order.Customer
}

func (h *Handler) decodeCheckout(w http.ResponseWriter, r *http.Request) (checkoutRequest, error) {
	var req checkoutRequest
	err := h.readObject(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "cart_id":
			req.CartID, err = d.Str()
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				var sel cart.Selection
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					return decodeSelectionField(d, key, &sel)
				}); err != nil {
					return err
				}
				req.Items = append(req.Items, sel)
				return nil
			})
		case "delivery_area":
			var s string
			s, err = d.Str()
			req.Area = order.Area(strings.ToLower(strings.TrimSpace(s)))
		case "coupon_code":
			req.CouponCode, err = d.Str()
		case "customer_name":
			req.Customer.Name, err = d.Str()
		case "customer_phone":
			req.Customer.Phone, err = d.Str()
		case "customer_address":
			req.Customer.Address, err = d.Str()
		case "note":
			req.Customer.Note, err = d.Str()
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		return req, err
	}

	req.CartID = strings.TrimSpace(req.CartID)
	if req.CartID != "" && len(req.Items) > 0 {
		return req, badRequest("provide either cart_id or items, not both")
	}
	req.Customer.Name = strings.TrimSpace(req.Customer.Name)
	req.Customer.Phone = strings.TrimSpace(req.Customer.Phone)
	req.Customer.Address = strings.TrimSpace(req.Customer.Address)
	return req, nil
}

// orderItems resolves the request into priced order items. Cart lines keep the
// price captured when they were added; inline selections are priced from the
// catalog now.
func (h *Handler) orderItems(ctx context.Context, req checkoutRequest) ([]order.Item, error) {
	var lines []cart.Line
	switch {
	case req.CartID != "":
		c, err := h.Carts.Get(ctx, req.CartID)
		if err != nil {
			return nil, err
		}
		lines = c.Lines
	case len(req.Items) > 0:
		resolved, err := h.Carts.Lines(ctx, req.Items)
		if err != nil {
			return nil, err
		}
		lines = resolved
	}
	if len(lines) == 0 {
		return nil, order.ErrEmptyItems
	}

	items := make([]order.Item, 0, len(lines))
	for _, l := range lines {
		items = append(items, order.Item{
			ProductID: l.ProductID,
			Title:     l.Title,
			Price:     l.UnitPrice,
			Quantity:  l.Quantity,
			Size:      l.Size,
			Colors:    l.Colors,
			Image:     l.Image,
		})
	}
	return items, nil
}

func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	var (
		code     string
		subtotal decimal.Decimal
	)
	err := h.readObject(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			code, err = d.Str()
		case "subtotal":
			subtotal, err = decodeMoney(d)
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if strings.TrimSpace(code) == "" {
		h.fail(w, r, badRequest("code is required"))
		return
	}
	if subtotal.IsNegative() {
		h.fail(w, r, badRequest("subtotal must not be negative"))
		return
	}

	res, err := h.Validator.Validate(r.Context(), code, subtotal)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("discount")
		encodeMoney(e, res.Discount)
		e.FieldStart("coupon")
		encodeCoupon(e, &res.Coupon)
		e.ObjEnd()
	})
}

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := h.decodeCheckout(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	items, err := h.orderItems(ctx, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	q, err := h.Orders.Quote(ctx, order.QuoteRequest{
		Items:      items,
		Area:       req.Area,
		CouponCode: req.CouponCode,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		encodeAmounts(e, q.Subtotal, q.DeliveryCharge, q.Discount, q.Total)
		e.FieldStart("coupon_code")
		encodeNullStr(e, q.CouponCode)
		e.ObjEnd()
	})
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := h.decodeCheckout(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	items, err := h.orderItems(ctx, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	o, err := h.Orders.PlaceOrder(ctx, order.PlaceOrderRequest{
		Items:      items,
		Customer:   req.Customer,
		Area:       req.Area,
		CouponCode: req.CouponCode,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if req.CartID != "" {
		if err := h.Carts.Clear(ctx, req.CartID); err != nil {
			zctx.From(ctx).Warn("Cart not cleared after checkout",
				zap.String("cart", req.CartID),
				zap.String("order", o.Number),
				zap.Error(err),
			)
		}
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		h.encodeOrder(e, o)
	})
}

func encodeAmounts(e *jx.Encoder, subtotal, delivery, discount, total decimal.Decimal) {
	e.FieldStart("subtotal")
	encodeMoney(e, subtotal)
	e.FieldStart("delivery_charge")
	encodeMoney(e, delivery)
	e.FieldStart("discount")
	encodeMoney(e, discount)
	e.FieldStart("total")
	encodeMoney(e, total)
}

func (h *Handler) encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("order_number")
	e.Str(o.Number)
	e.FieldStart("customer_name")
	e.Str(o.Customer.Name)
	e.FieldStart("customer_phone")
	e.Str(o.Customer.Phone)
	e.FieldStart("customer_address")
	e.Str(o.Customer.Address)
	e.FieldStart("note")
	encodeNullStr(e, o.Customer.Note)
	e.FieldStart("delivery_area")
	e.Str(string(o.Area))
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Str(it.ProductID)
		e.FieldStart("title")
		e.Str(it.Title)
		e.FieldStart("price")
		encodeMoney(e, it.Price)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("size")
		e.Str(it.Size)
		e.FieldStart("colors")
		encodeStrings(e, it.Colors)
		e.FieldStart("image")
		e.Str(h.imageURL(it.Image))
		e.ObjEnd()
	}
	e.ArrEnd()
	encodeAmounts(e, o.Subtotal, o.DeliveryCharge, o.Discount, o.Total)
	e.FieldStart("coupon_code")
	encodeNullStr(e, o.CouponCode)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("created_at")
	encodeTime(e, o.CreatedAt)
	e.FieldStart("updated_at")
	encodeTime(e, o.UpdatedAt)
	e.ObjEnd()
}

func encodeCoupon(e *jx.Encoder, c *coupon.Coupon) {
	e.ObjStart()
	e.FieldStart("code")
	e.Str(c.Code)
	e.FieldStart("discount_type")
	e.Str(string(c.DiscountType))
	e.FieldStart("discount_value")
	encodeMoney(e, c.Value)
	e.FieldStart("min_order_value")
	encodeMoney(e, c.MinOrderValue)
	e.FieldStart("max_uses")
	if c.MaxUses != nil {
		e.Int(*c.MaxUses)
	} else {
		e.Null()
	}
	e.FieldStart("used_count")
	e.Int(c.UsedCount)
	e.FieldStart("expires_at")
	encodeNullTime(e, c.ExpiresAt)
	e.FieldStart("active")
	e.Bool(c.Active)
	e.ObjEnd()
}
