package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Apply calculates the discount c grants on subtotal. The result is rounded
// to whole taka and never exceeds the subtotal.
func Apply(c *Coupon, subtotal decimal.Decimal) (decimal.Decimal, error) {
	var amount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		amount = subtotal.Mul(c.Value).Div(hundred)
	case DiscountFixed:
		amount = c.Value
	default:
		return decimal.Zero, errors.Errorf("unsupported discount type: %q", c.DiscountType)
	}
	return Clamp(amount.Round(0), subtotal), nil
}

// Clamp limits a discount to the range [0, subtotal].
func Clamp(discount, subtotal decimal.Decimal) decimal.Decimal {
	if discount.IsNegative() {
		return decimal.Zero
	}
	if subtotal.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(discount, subtotal)
}
