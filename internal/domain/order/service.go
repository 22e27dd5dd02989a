package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/rastalife/storefront/internal/domain/coupon"
	"github.com/rastalife/storefront/internal/domain/settings"
)

const maxNumberAttempts = 3

// ValidationError describes a missing or malformed checkout field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	Items      []Item
	Customer   Customer
	Area       Area
	CouponCode string
}

// QuoteRequest holds the input for pricing a prospective order.
type QuoteRequest struct {
	Items      []Item
	Area       Area
	CouponCode string
}

// SettingsLoader provides the current storefront settings.
type SettingsLoader interface {
	Load(ctx context.Context) (settings.Settings, error)
}

// Service encapsulates order placement and administration.
type Service struct {
	settings SettingsLoader
	coupons  coupon.Validator
	usage    coupon.UsageRecorder
	orders   Repository
	validate *validator.Validate

	now       func() time.Time
	newNumber func(time.Time) string

	placed        metric.Int64Counter
	usageFailures metric.Int64Counter
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	meterProvider metric.MeterProvider
}

// WithMeterProvider sets the meter provider used for order metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *serviceOptions) {
		o.meterProvider = mp
	}
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	settingsLoader SettingsLoader,
	coupons coupon.Validator,
	usage coupon.UsageRecorder,
	orders Repository,
	opts ...Option,
) (*Service, error) {
	o := serviceOptions{meterProvider: noop.NewMeterProvider()}
	for _, opt := range opts {
		opt(&o)
	}

	meter := o.meterProvider.Meter("github.com/rastalife/storefront/internal/domain/order")
	placed, err := meter.Int64Counter("storefront.orders.placed",
		metric.WithDescription("Orders successfully stored"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create placed counter")
	}
	usageFailures, err := meter.Int64Counter("storefront.coupon.usage_failures",
		metric.WithDescription("Coupon usage increments that failed after an order was stored"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create usage failure counter")
	}

	return &Service{
		settings:      settingsLoader,
		coupons:       coupons,
		usage:         usage,
		orders:        orders,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		now:           time.Now,
		newNumber:     NewNumber,
		placed:        placed,
		usageFailures: usageFailures,
	}, nil
}

// Quote prices items for area with an optional coupon without storing anything.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if err := checkItems(req.Items, req.Area); err != nil {
		return nil, err
	}

	st, err := s.settings.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load settings")
	}

	discount, code, err := s.discount(ctx, req.CouponCode, ComputeSubtotal(req.Items))
	if err != nil {
		return nil, err
	}

	q := Price(req.Items, req.Area, st, discount, code)
	return &q, nil
}

// PlaceOrder validates the request, prices it, stores the order and then
// records coupon usage. A failure to record usage is logged and does not fail
// the placed order.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	if err := checkItems(req.Items, req.Area); err != nil {
		return nil, err
	}
	if err := s.checkCustomer(req.Customer); err != nil {
		return nil, err
	}

	st, err := s.settings.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load settings")
	}

	discount, code, err := s.discount(ctx, req.CouponCode, ComputeSubtotal(req.Items))
	if err != nil {
		return nil, err
	}

	var o *Order
	for attempt := 1; ; attempt++ {
		now := s.now()
		o = BuildOrder(BuildInput{
			Items:      req.Items,
			Customer:   req.Customer,
			Area:       req.Area,
			Discount:   discount,
			CouponCode: code,
			Settings:   st,
			Number:     s.newNumber(now),
			Now:        now,
		})

		err := s.orders.Create(ctx, o)
		if err == nil {
			break
		}
		if errors.Is(err, ErrDuplicateNumber) && attempt < maxNumberAttempts {
			zctx.From(ctx).Debug("Order number collision, retrying", zap.String("number", o.Number))
			continue
		}
		return nil, errors.Wrap(err, "create order")
	}

	s.placed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("delivery_area", string(o.Area)),
		attribute.Bool("coupon", o.CouponCode != ""),
	))

	if o.CouponCode != "" {
		s.recordUsage(ctx, o)
	}

	return o, nil
}

func (s *Service) recordUsage(ctx context.Context, o *Order) {
	lg := zctx.From(ctx).With(
		zap.String("coupon", o.CouponCode),
		zap.String("order", o.Number),
	)

	counted, err := s.usage.IncrementUsage(ctx, o.CouponCode, o.ID)
	if err != nil {
		s.usageFailures.Add(ctx, 1)
		lg.Warn("Coupon usage not recorded", zap.Error(err))
		return
	}
	if !counted {
		lg.Info("Coupon usage not incremented: limit reached or already recorded")
	}
}

func (s *Service) discount(ctx context.Context, code string, subtotal decimal.Decimal) (decimal.Decimal, string, error) {
	if strings.TrimSpace(code) == "" {
		return decimal.Zero, "", nil
	}
	res, err := s.coupons.Validate(ctx, code, subtotal)
	if err != nil {
		return decimal.Zero, "", errors.Wrap(err, "validate coupon")
	}
	return res.Discount, res.Coupon.Code, nil
}

// Get returns the order with the given number.
func (s *Service) Get(ctx context.Context, number string) (*Order, error) {
	o, err := s.orders.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

// List returns orders newest first. An empty status lists all orders.
func (s *Service) List(ctx context.Context, status Status) ([]Order, error) {
	if status != "" && !status.IsValid() {
		return nil, &ValidationError{Field: "status", Reason: "is not a known status"}
	}
	orders, err := s.orders.List(ctx, status)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// UpdateStatus moves an order to a new status if the transition is allowed.
func (s *Service) UpdateStatus(ctx context.Context, number string, to Status) (*Order, error) {
	if !to.IsValid() {
		return nil, &ValidationError{Field: "status", Reason: "is not a known status"}
	}

	o, err := s.Get(ctx, number)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransitionTo(to) {
		return nil, &InvalidTransitionError{From: o.Status, To: to}
	}

	if err := s.orders.UpdateStatus(ctx, number, o.Status, to); err != nil {
		return nil, errors.Wrap(err, "update order status")
	}

	zctx.From(ctx).Info("Order status changed",
		zap.String("order", number),
		zap.String("from", string(o.Status)),
		zap.String("to", string(to)),
	)

	o.Status = to
	o.UpdatedAt = s.now()
	return o, nil
}

func checkItems(items []Item, area Area) error {
	if len(items) == 0 {
		return ErrEmptyItems
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return &InvalidQuantityError{ProductID: it.ProductID}
		}
		if it.Size == "" {
			return &ValidationError{Field: "size", Reason: "is required"}
		}
		if it.Price.IsNegative() {
			return &ValidationError{Field: "price", Reason: "must not be negative"}
		}
	}
	if !area.IsValid() {
		return &ValidationError{Field: "delivery_area", Reason: "must be inside or outside"}
	}
	return nil
}

func (s *Service) checkCustomer(c Customer) error {
	err := s.validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errors.Wrap(err, "validate customer")
	}

	fe := fieldErrs[0]
	field := "customer_" + strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return &ValidationError{Field: field, Reason: "is required"}
	case "max":
		return &ValidationError{Field: field, Reason: "is too long"}
	default:
		return &ValidationError{Field: field, Reason: "is invalid"}
	}
}
