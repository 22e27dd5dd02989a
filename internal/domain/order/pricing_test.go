package order

import (
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/rastalife/storefront/internal/domain/settings"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func item(id, price string, qty int) Item {
	return Item{ProductID: id, Title: id, Price: d(price), Quantity: qty, Size: "M"}
}

func TestComputeSubtotal(t *testing.T) {
	tests := []struct {
		name  string
		items []Item
		want  decimal.Decimal
	}{
		{name: "single line", items: []Item{item("a", "500", 2)}, want: d("1000")},
		{name: "multiple lines", items: []Item{item("a", "450", 1), item("b", "275", 2)}, want: d("1000")},
		{name: "fractional prices round to taka", items: []Item{item("a", "99.5", 1)}, want: d("100")},
		{name: "each line rounds before summing", items: []Item{item("a", "10.50", 1), item("b", "20.50", 1)}, want: d("32")},
		{name: "quantity applies before rounding", items: []Item{item("a", "10.25", 2)}, want: d("21")},
		{name: "no lines", items: nil, want: d("0")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeSubtotal(tt.items)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestResolveDeliveryCharge(t *testing.T) {
	defaults := settings.Defaults()
	custom := settings.Settings{InsideCharge: d("80"), OutsideCharge: d("150")}

	assert.True(t, d("60").Equal(ResolveDeliveryCharge(AreaInside, defaults)))
	assert.True(t, d("100").Equal(ResolveDeliveryCharge(AreaOutside, defaults)))
	assert.True(t, d("80").Equal(ResolveDeliveryCharge(AreaInside, custom)))
	assert.True(t, d("150").Equal(ResolveDeliveryCharge(AreaOutside, custom)))
}

func TestBuildOrder(t *testing.T) {
	now := time.Date(2025, 2, 1, 9, 30, 0, 0, time.UTC)

	o := BuildOrder(BuildInput{
		Items:      []Item{item("a", "500", 2)},
		Customer:   Customer{Name: "Rahim", Phone: "01700000000", Address: "Dhanmondi"},
		Area:       AreaInside,
		Discount:   d("100"),
		CouponCode: "SAVE10",
		Settings:   settings.Defaults(),
		Number:     "RL1",
		Now:        now,
	})

	assert.True(t, d("1000").Equal(o.Subtotal))
	assert.True(t, d("60").Equal(o.DeliveryCharge))
	assert.True(t, d("100").Equal(o.Discount))
	assert.True(t, d("960").Equal(o.Total))
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, "SAVE10", o.CouponCode)
	assert.Equal(t, "RL1", o.Number)
	assert.Equal(t, now, o.CreatedAt)
}

func TestBuildOrder_NoCoupon(t *testing.T) {
	o := BuildOrder(BuildInput{
		Items:    []Item{item("a", "700", 1)},
		Area:     AreaOutside,
		Settings: settings.Defaults(),
	})

	assert.True(t, o.Discount.IsZero())
	assert.True(t, d("800").Equal(o.Total))
	assert.Empty(t, o.CouponCode)
}

// A discount larger than the subtotal is limited to the subtotal; the buyer
// still pays the delivery charge.
func TestBuildOrder_DiscountAboveSubtotal(t *testing.T) {
	o := BuildOrder(BuildInput{
		Items:      []Item{item("a", "1000", 1)},
		Area:       AreaInside,
		Discount:   d("1200"),
		CouponCode: "BIGFIX",
		Settings:   settings.Defaults(),
	})

	assert.True(t, d("1000").Equal(o.Discount), "got %s", o.Discount)
	assert.True(t, d("60").Equal(o.Total), "got %s", o.Total)
	assert.False(t, o.Total.IsNegative())
}

func TestPrice_ZeroDiscountDropsCouponCode(t *testing.T) {
	q := Price([]Item{item("a", "100", 1)}, AreaInside, settings.Defaults(), decimal.Zero, "ZERO")

	assert.Empty(t, q.CouponCode)
	assert.True(t, d("160").Equal(q.Total))
}

func TestNewNumber(t *testing.T) {
	now := time.UnixMilli(1735689600123)

	n := NewNumber(now)

	assert.Regexp(t, regexp.MustCompile(`^RL1735689600123\d{1,3}$`), n)
}

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusDelivered, false},
		{StatusApproved, StatusDelivered, true},
		{StatusApproved, StatusCancelled, true},
		{StatusApproved, StatusPending, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}
