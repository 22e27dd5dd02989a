// Package handler implements the storefront and back-office HTTP API.
package handler

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/rastalife/storefront/internal/domain/admin"
	"github.com/rastalife/storefront/internal/domain/cart"
	"github.com/rastalife/storefront/internal/domain/catalog"
	"github.com/rastalife/storefront/internal/domain/coupon"
	"github.com/rastalife/storefront/internal/domain/order"
	"github.com/rastalife/storefront/internal/domain/settings"
	"github.com/rastalife/storefront/pkg/httpmiddleware"
)

// CartService applies shopper actions to carts.
type CartService interface {
	Create(ctx context.Context) (*cart.Cart, error)
	Get(ctx context.Context, id string) (*cart.Cart, error)
	AddItem(ctx context.Context, cartID string, sel cart.Selection) (*cart.Cart, error)
	UpdateQuantity(ctx context.Context, cartID string, sel cart.Selection) (*cart.Cart, error)
	RemoveItem(ctx context.Context, cartID string, sel cart.Selection) (*cart.Cart, error)
	Clear(ctx context.Context, cartID string) error
	Lines(ctx context.Context, sels []cart.Selection) ([]cart.Line, error)
}

// OrderService prices, places and administers orders.
type OrderService interface {
	Quote(ctx context.Context, req order.QuoteRequest) (*order.Quote, error)
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.Order, error)
	Get(ctx context.Context, number string) (*order.Order, error)
	List(ctx context.Context, status order.Status) ([]order.Order, error)
	UpdateStatus(ctx context.Context, number string, to order.Status) (*order.Order, error)
}

// Authenticator logs admins in and verifies their session tokens.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*admin.Session, error)
	Verify(token string) (*admin.Claims, error)
}

// StatsProvider computes the back-office dashboard.
type StatsProvider interface {
	Stats(ctx context.Context) (*admin.Stats, error)
}

// Deps are the domain dependencies of the Handler.
type Deps struct {
	Products   catalog.ProductRepository
	Categories catalog.CategoryRepository
	Settings   settings.Repository
	Coupons    coupon.Repository
	Validator  coupon.Validator
	Carts      CartService
	Orders     OrderService
	Auth       Authenticator
	Dashboard  StatsProvider
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
	// Idempotency, when set, wraps order placement.
	Idempotency httpmiddleware.Middleware
	// LoginLimit, when set, throttles admin login attempts.
	LoginLimit httpmiddleware.Middleware
	// MaxBodyBytes limits request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64
}

// Handler serves the JSON API.
type Handler struct {
	Deps

	imageBaseURL string
	idempotency  httpmiddleware.Middleware
	loginLimit   httpmiddleware.Middleware
	maxBody      int64
	validate     *validator.Validate
}

// New constructs a Handler.
func New(cfg Config, deps Deps) *Handler {
	h := &Handler{
		Deps:         deps,
		imageBaseURL: strings.TrimRight(cfg.ImageBaseURL, "/"),
		idempotency:  cfg.Idempotency,
		loginLimit:   cfg.LoginLimit,
		maxBody:      cfg.MaxBodyBytes,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
	h.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	if h.maxBody <= 0 {
		h.maxBody = defaultMaxBody
	}
	if h.idempotency == nil {
		h.idempotency = passthrough
	}
	if h.loginLimit == nil {
		h.loginLimit = passthrough
	}
	return h
}

func passthrough(next http.Handler) http.Handler { return next }

// Routes mounts the API under /api on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.listProducts)
		r.Get("/products/{slug}", h.getProduct)
		r.Get("/categories", h.listCategories)
		r.Get("/settings", h.getSettings)

		r.Post("/coupons/validate", h.validateCoupon)
		r.Post("/checkout/quote", h.quote)
		r.With(h.idempotency).Post("/orders", h.placeOrder)

		r.Route("/carts", func(r chi.Router) {
			r.Post("/", h.createCart)
			r.Route("/{cartID}", func(r chi.Router) {
				r.Get("/", h.getCart)
				r.Delete("/", h.clearCart)
				r.Post("/items", h.addCartItem)
				r.Patch("/items", h.updateCartItem)
				r.Delete("/items", h.removeCartItem)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.With(h.loginLimit).Post("/login", h.login)

			r.Group(func(r chi.Router) {
				r.Use(h.requireAdmin)

				r.Get("/dashboard", h.dashboard)

				r.Route("/products", func(r chi.Router) {
					r.Get("/", h.adminListProducts)
					r.Post("/", h.createProduct)
					r.Get("/{id}", h.adminGetProduct)
					r.Put("/{id}", h.updateProduct)
					r.Delete("/{id}", h.deleteProduct)
				})
				r.Route("/categories", func(r chi.Router) {
					r.Get("/", h.listCategories)
					r.Post("/", h.createCategory)
					r.Put("/{id}", h.updateCategory)
					r.Delete("/{id}", h.deleteCategory)
				})
				r.Route("/orders", func(r chi.Router) {
					r.Get("/", h.listOrders)
					r.Get("/{number}", h.getOrder)
					r.Patch("/{number}", h.updateOrderStatus)
				})
				r.Route("/coupons", func(r chi.Router) {
					r.Get("/", h.listCoupons)
					r.Post("/", h.upsertCoupon)
				})
				r.Put("/settings", h.updateDeliveryCharges)
				r.Put("/settings/pixel", h.updatePixel)
			})
		})
	})
}

// fail maps a domain error to a status code and writes it. Unexpected
// errors are logged and reported as a generic server error.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("route", httpmiddleware.RoutePattern(r)),
			zap.Error(err),
		)
	}
	writeError(w, status, msg)
}

func classify(err error) (int, string) {
	var (
		bad         *badRequestError
		validation  *order.ValidationError
		orderQty    *order.InvalidQuantityError
		cartQty     *cart.InvalidQuantityError
		selection   *catalog.SelectionError
		minimum     *coupon.MinimumOrderError
		transition  *order.InvalidTransitionError
		invalidData *invalidInputError
	)

	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest, bad.msg
	case errors.As(err, &invalidData):
		return http.StatusBadRequest, invalidData.Error()
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Error()
	case errors.As(err, &orderQty):
		return http.StatusBadRequest, orderQty.Error()
	case errors.As(err, &cartQty):
		return http.StatusBadRequest, cartQty.Error()
	case errors.As(err, &selection):
		return http.StatusBadRequest, selection.Error()
	case errors.As(err, &minimum):
		return http.StatusBadRequest, minimum.Error()
	case errors.Is(err, order.ErrEmptyItems):
		return http.StatusBadRequest, order.ErrEmptyItems.Error()
	case errors.Is(err, coupon.ErrCouponNotFound),
		errors.Is(err, coupon.ErrCouponExpired),
		errors.Is(err, coupon.ErrCouponExhausted):
		return http.StatusBadRequest, couponMessage(err)

	case errors.Is(err, admin.ErrInvalidCredentials):
		return http.StatusUnauthorized, admin.ErrInvalidCredentials.Error()
	case errors.Is(err, admin.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthorized"

	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound, "product not found"
	case errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound, order.ErrNotFound.Error()
	case errors.Is(err, cart.ErrNotFound):
		return http.StatusNotFound, cart.ErrNotFound.Error()
	case errors.Is(err, cart.ErrLineNotFound):
		return http.StatusNotFound, cart.ErrLineNotFound.Error()
	case errors.Is(err, errCategoryNotFound):
		return http.StatusNotFound, errCategoryNotFound.Error()

	case errors.As(err, &transition):
		return http.StatusConflict, transition.Error()
	case errors.Is(err, order.ErrStatusChanged):
		return http.StatusConflict, order.ErrStatusChanged.Error()
	case errors.Is(err, catalog.ErrSlugTaken):
		return http.StatusConflict, catalog.ErrSlugTaken.Error()

	case errors.Is(err, cart.ErrProductUnavailable):
		return http.StatusUnprocessableEntity, cart.ErrProductUnavailable.Error()
	}
	return http.StatusInternalServerError, "server error"
}

func couponMessage(err error) string {
	for _, target := range []error{coupon.ErrCouponNotFound, coupon.ErrCouponExpired, coupon.ErrCouponExhausted} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return err.Error()
}

// invalidInputError reports a well-formed request with invalid values.
type invalidInputError struct {
	err error
}

func (e *invalidInputError) Error() string { return e.err.Error() }

func (e *invalidInputError) Unwrap() error { return e.err }

func invalid(err error) error {
	return &invalidInputError{err: err}
}

var errCategoryNotFound = errors.New("category not found")

// checkStruct runs struct tag validation and reports the first failing field.
func (h *Handler) checkStruct(v any) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errors.Wrap(err, "validate request")
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return badRequest("%s is required", fe.Field())
	case "oneof":
		return badRequest("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return badRequest("%s is invalid", fe.Field())
	}
}

func (h *Handler) imageURL(path string) string {
	if h.imageBaseURL == "" || path == "" ||
		strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return h.imageBaseURL + "/" + strings.TrimLeft(path, "/")
}
