package coupon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage takes a percentage of the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed takes a fixed amount off the subtotal.
	DiscountFixed DiscountType = "fixed"
)

// IsValid reports whether t is a supported discount type.
func (t DiscountType) IsValid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

var (
	// ErrCouponNotFound is returned when no active coupon matches the code.
	ErrCouponNotFound = errors.New("invalid coupon code")
	// ErrCouponExpired is returned when the coupon's expiry has passed.
	ErrCouponExpired = errors.New("coupon has expired")
	// ErrCouponExhausted is returned when the coupon has reached its usage limit.
	ErrCouponExhausted = errors.New("coupon usage limit reached")
)

// MinimumOrderError is returned when the subtotal is below the coupon's
// minimum order value.
type MinimumOrderError struct {
	Minimum decimal.Decimal
}

func (e *MinimumOrderError) Error() string {
	return fmt.Sprintf("minimum order value is %s BDT", e.Minimum.StringFixed(0))
}

// Coupon is a discount code and its eligibility rules.
type Coupon struct {
	Code          string
	DiscountType  DiscountType
	Value         decimal.Decimal
	MinOrderValue decimal.Decimal
	// MaxUses is nil for unlimited coupons.
	MaxUses   *int
	UsedCount int
	ExpiresAt *time.Time
	Active    bool
	CreatedAt time.Time
}

// NormalizeCode returns the canonical, upper-case form of a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks the coupon definition an admin submits.
func (c *Coupon) Validate() error {
	switch {
	case c.Code == "":
		return errors.New("code is required")
	case !c.DiscountType.IsValid():
		return errors.Errorf("unsupported discount type %q", c.DiscountType)
	case c.Value.IsNegative():
		return errors.New("discount value must not be negative")
	case c.DiscountType == DiscountPercentage && c.Value.GreaterThan(hundred):
		return errors.New("percentage discount must not exceed 100")
	case c.MinOrderValue.IsNegative():
		return errors.New("minimum order value must not be negative")
	case c.MaxUses != nil && *c.MaxUses < 0:
		return errors.New("max uses must not be negative")
	}
	return nil
}

// Result is the outcome of a successful validation.
type Result struct {
	Coupon   Coupon
	Discount decimal.Decimal
}

// Repository provides lookup and mutation of coupons.
type Repository interface {
	// FindActiveByCode returns the active coupon matching code
	// case-insensitively, or ErrCouponNotFound.
	FindActiveByCode(ctx context.Context, code string) (*Coupon, error)
	List(ctx context.Context) ([]Coupon, error)
	Upsert(ctx context.Context, c *Coupon) error
	UsageRecorder
}

// UsageRecorder commits one redemption of a coupon for an order. Recording the
// same order twice counts once. It reports whether the count was incremented.
type UsageRecorder interface {
	IncrementUsage(ctx context.Context, code, orderID string) (bool, error)
}
