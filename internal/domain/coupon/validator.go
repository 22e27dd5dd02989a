package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Validator checks a coupon code against a subtotal and returns the discount.
type Validator interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Result, error)
}

// RepoValidator implements Validator on top of a Repository. It never
// changes the coupon's usage count.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate looks up the coupon, then checks expiry, usage limit and minimum
// order value in that order.
func (v *RepoValidator) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Result, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrCouponNotFound
	}

	c, err := v.repo.FindActiveByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrCouponNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if c.ExpiresAt != nil && v.now().After(*c.ExpiresAt) {
		return nil, ErrCouponExpired
	}
	if c.MaxUses != nil && c.UsedCount >= *c.MaxUses {
		return nil, ErrCouponExhausted
	}
	if subtotal.LessThan(c.MinOrderValue) {
		return nil, &MinimumOrderError{Minimum: c.MinOrderValue}
	}

	amount, err := Apply(c, subtotal)
	if err != nil {
		return nil, err
	}
	return &Result{Coupon: *c, Discount: amount}, nil
}
