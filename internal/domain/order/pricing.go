package order

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rastalife/storefront/internal/domain/coupon"
	"github.com/rastalife/storefront/internal/domain/settings"
)

// NumberPrefix starts every order number.
const NumberPrefix = "RL"

// Quote is the price breakdown of a prospective order.
type Quote struct {
	Subtotal       decimal.Decimal
	DeliveryCharge decimal.Decimal
	Discount       decimal.Decimal
	Total          decimal.Decimal
	CouponCode     string
}

// LineTotal returns price * quantity rounded to whole taka.
func LineTotal(it Item) decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(0)
}

// ComputeSubtotal returns the sum of the rounded line totals of items.
func ComputeSubtotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(LineTotal(it))
	}
	return sum
}

// ResolveDeliveryCharge picks the charge for area from s.
func ResolveDeliveryCharge(area Area, s settings.Settings) decimal.Decimal {
	if area == AreaInside {
		return s.InsideCharge.Round(0)
	}
	return s.OutsideCharge.Round(0)
}

// Price computes the breakdown for items delivered to area. The discount is
// limited to the subtotal, so the total is never below the delivery charge.
func Price(items []Item, area Area, s settings.Settings, discount decimal.Decimal, couponCode string) Quote {
	subtotal := ComputeSubtotal(items)
	delivery := ResolveDeliveryCharge(area, s)
	discount = coupon.Clamp(discount.Round(0), subtotal)

	total := subtotal.Add(delivery).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	if discount.IsZero() {
		couponCode = ""
	}

	return Quote{
		Subtotal:       subtotal,
		DeliveryCharge: delivery,
		Discount:       discount,
		Total:          total,
		CouponCode:     couponCode,
	}
}

// BuildInput carries everything BuildOrder needs.
type BuildInput struct {
	Items      []Item
	Customer   Customer
	Area       Area
	Discount   decimal.Decimal
	CouponCode string
	Settings   settings.Settings
	Number     string
	Now        time.Time
}

// BuildOrder prices in and returns a pending order ready to be stored.
func BuildOrder(in BuildInput) *Order {
	q := Price(in.Items, in.Area, in.Settings, in.Discount, in.CouponCode)
	return &Order{
		Number:         in.Number,
		Customer:       in.Customer,
		Area:           in.Area,
		Items:          in.Items,
		Subtotal:       q.Subtotal,
		DeliveryCharge: q.DeliveryCharge,
		Discount:       q.Discount,
		Total:          q.Total,
		CouponCode:     q.CouponCode,
		Status:         StatusPending,
		CreatedAt:      in.Now,
		UpdatedAt:      in.Now,
	}
}

// NewNumber returns an order number made of NumberPrefix, the millisecond
// timestamp and a random suffix below 1000.
func NewNumber(now time.Time) string {
	return fmt.Sprintf("%s%d%d", NumberPrefix, now.UnixMilli(), rand.IntN(1000))
}
