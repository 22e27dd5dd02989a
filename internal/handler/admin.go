package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rastalife/storefront/internal/domain/admin"
	"github.com/rastalife/storefront/internal/domain/coupon"
	"github.com/rastalife/storefront/internal/domain/order"
	"github.com/rastalife/storefront/internal/domain/settings"
)

type claimsKey struct{}

// AdminFromContext returns the verified session claims of the current request.
func AdminFromContext(ctx context.Context) (*admin.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*admin.Claims)
	return c, ok
}

// requireAdmin rejects requests without a valid bearer session token.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		claims, err := h.Auth.Verify(strings.TrimSpace(token))
		if err != nil {
			zctx.From(r.Context()).Debug("Admin token rejected", zap.Error(err))
			w.Header().Set("WWW-Authenticate", `Bearer realm="admin", error="invalid_token"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		ctx = zctx.With(ctx, zap.String("admin", claims.Username))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=256"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	err := h.readObject(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "username":
			req.Username, err = d.Str()
		case "password":
			req.Password, err = d.Str()
		default:
			return d.Skip()
		}
		return err
	})
	if err == nil {
		err = h.checkStruct(req)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	s, err := h.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	zctx.From(r.Context()).Info("Admin logged in", zap.String("admin", req.Username))

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("token")
		e.Str(s.Token)
		e.FieldStart("expires_at")
		encodeTime(e, s.ExpiresAt)
		e.ObjEnd()
	})
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	s, err := h.Dashboard.Stats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("total_products")
		e.Int(s.TotalProducts)
		e.FieldStart("total_orders")
		e.Int(s.TotalOrders)
		e.FieldStart("pending_orders")
		e.Int(s.PendingOrders)
		e.FieldStart("delivered_orders")
		e.Int(s.DeliveredOrders)
		e.FieldStart("total_sales")
		encodeMoney(e, s.TotalSales)
		e.ObjEnd()
	})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.List(r.Context(), order.Status(r.URL.Query().Get("status")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range orders {
			h.encodeOrder(e, &orders[i])
		}
		e.ArrEnd()
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.Get(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		h.encodeOrder(e, o)
	})
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending approved delivered cancelled"`
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	err := h.readObject(w, r, func(d *jx.Decoder, key string) error {
		if key != "status" {
			return d.Skip()
		}
		s, err := d.Str()
		req.Status = strings.ToLower(strings.TrimSpace(s))
		return err
	})
	if err == nil {
		err = h.checkStruct(req)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	o, err := h.Orders.UpdateStatus(r.Context(), chi.URLParam(r, "number"), order.Status(req.Status))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		h.encodeOrder(e, o)
	})
}

func (h *Handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.Coupons.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range coupons {
			encodeCoupon(e, &coupons[i])
		}
		e.ArrEnd()
	})
}

func (h *Handler) upsertCoupon(w http.ResponseWriter, r *http.Request) {
	c := coupon.Coupon{Active: true}
	err := h.readObject(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			c.Code, err = d.Str()
		case "discount_type":
			var s string
			s, err = d.Str()
			c.DiscountType = coupon.DiscountType(strings.ToLower(s))
		case "discount_value":
			c.Value, err = decodeMoney(d)
		case "min_order_value":
			c.MinOrderValue, err = decodeMoney(d)
		case "max_uses":
			c.MaxUses, err = decodeNullInt(d)
		case "expires_at":
			c.ExpiresAt, err = decodeNullTime(d)
		case "active":
			c.Active, err = d.Bool()
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	c.Code = coupon.NormalizeCode(c.Code)
	if err := c.Validate(); err != nil {
		h.fail(w, r, invalid(err))
		return
	}
	if err := h.Coupons.Upsert(r.Context(), &c); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeCoupon(e, &c)
	})
}

func (h *Handler) updateDeliveryCharges(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	current, err := h.Settings.Load(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	inside, outside := current.InsideCharge, current.OutsideCharge
	err = h.readObject(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "inside_dhaka_charge":
			inside, err = decodeMoney(d)
		case "outside_dhaka_charge":
			outside, err = decodeMoney(d)
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := settings.ValidateCharges(inside, outside); err != nil {
		h.fail(w, r, invalid(err))
		return
	}

	if err := h.Settings.SaveDeliveryCharges(ctx, inside, outside); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeCharges(e, inside, outside)
	})
}

func encodeCharges(e *jx.Encoder, inside, outside decimal.Decimal) {
	e.ObjStart()
	e.FieldStart("inside_dhaka_charge")
	encodeMoney(e, inside)
	e.FieldStart("outside_dhaka_charge")
	encodeMoney(e, outside)
	e.ObjEnd()
}

func (h *Handler) updatePixel(w http.ResponseWriter, r *http.Request) {
	var p settings.Pixel
	err := h.readObject(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "fb_pixel_id":
			if d.Next() == jx.Null {
				return d.Null()
			}
			p.ID, err = d.Str()
		case "fb_pixel_active":
			p.Active, err = d.Bool()
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p.ID = strings.TrimSpace(p.ID)
	if p.Active && p.ID == "" {
		h.fail(w, r, badRequest("fb_pixel_id is required to activate the pixel"))
		return
	}

	if err := h.Settings.SavePixel(r.Context(), p); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("fb_pixel_id")
		encodeNullStr(e, p.ID)
		e.FieldStart("fb_pixel_active")
		e.Bool(p.Active)
		e.ObjEnd()
	})
}
