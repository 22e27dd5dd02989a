package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tee(qty int, size string, colors ...string) Line {
	return Line{
		ProductID: "tee",
		Title:     "Oversized Tee",
		UnitPrice: decimal.NewFromInt(650),
		Quantity:  qty,
		Size:      size,
		Colors:    colors,
	}
}

func TestCart_AddMergesSameSelection(t *testing.T) {
	c := New("c1")

	require.NoError(t, c.Add(tee(1, "M", "Red", "Blue")))
	require.NoError(t, c.Add(tee(2, "M", "Blue", "Red")))

	require.Len(t, c.Lines, 1)
	assert.Equal(t, 3, c.Lines[0].Quantity)
	assert.Equal(t, []string{"Blue", "Red"}, c.Lines[0].Colors)
}

func TestCart_AddKeepsDifferentSizesApart(t *testing.T) {
	c := New("c1")

	require.NoError(t, c.Add(tee(1, "M", "Red", "Blue")))
	require.NoError(t, c.Add(tee(1, "L", "Red", "Blue")))

	require.Len(t, c.Lines, 2)
	assert.Equal(t, "M", c.Lines[0].Size)
	assert.Equal(t, "L", c.Lines[1].Size)
}

func TestCart_AddRejectsNonPositiveQuantity(t *testing.T) {
	c := New("c1")

	err := c.Add(tee(0, "M"))

	var qErr *InvalidQuantityError
	require.ErrorAs(t, err, &qErr)
	assert.Equal(t, "tee", qErr.ProductID)
	assert.True(t, c.Empty())
}

func TestCart_SetQuantity(t *testing.T) {
	c := New("c1")
	require.NoError(t, c.Add(tee(1, "M", "Red")))
	key := KeyOf("tee", "M", []string{"Red"})

	require.NoError(t, c.SetQuantity(key, 5))
	assert.Equal(t, 5, c.Count())

	require.NoError(t, c.SetQuantity(key, 0))
	assert.True(t, c.Empty())

	assert.ErrorIs(t, c.SetQuantity(key, 1), ErrLineNotFound)
}

func TestCart_NegativeQuantityRemovesLine(t *testing.T) {
	c := New("c1")
	require.NoError(t, c.Add(tee(2, "M", "Red")))
	require.NoError(t, c.Add(tee(1, "L", "Red")))

	require.NoError(t, c.SetQuantity(KeyOf("tee", "M", []string{"Red"}), -1))

	require.Len(t, c.Lines, 1)
	assert.Equal(t, "L", c.Lines[0].Size)
}

func TestCart_SubtotalAndCount(t *testing.T) {
	c := New("c1")
	require.NoError(t, c.Add(tee(2, "M", "Red")))
	require.NoError(t, c.Add(Line{
		ProductID: "polo",
		UnitPrice: decimal.RequireFromString("1190.50"),
		Quantity:  1,
		Size:      "L",
	}))

	assert.True(t, decimal.RequireFromString("2490.50").Equal(c.Subtotal()))
	assert.Equal(t, 3, c.Count())

	c.Clear()
	assert.True(t, c.Subtotal().IsZero())
	assert.Zero(t, c.Count())
}

func TestKeyOf_IgnoresColorOrder(t *testing.T) {
	colors := []string{"Red", "Blue"}
	a := KeyOf("p", "M", colors)
	b := KeyOf("p", "M", []string{"Blue", "Red"})

	assert.Equal(t, a, b)
	assert.Equal(t, []string{"Red", "Blue"}, colors, "input must not be reordered")
	assert.NotEqual(t, a, KeyOf("p", "L", colors))
	assert.NotEqual(t, a, KeyOf("q", "M", colors))
}

func TestKeyOf_SeparatorsInValues(t *testing.T) {
	tests := []struct {
		name string
		a, b Key
	}{
		{"comma in color", KeyOf("p", "M", []string{"Black,White"}), KeyOf("p", "M", []string{"Black", "White"})},
		{"pipe in size", KeyOf("p", "M|Red", nil), KeyOf("p", "M", []string{"Red"})},
		{"empty color", KeyOf("p", "M", []string{""}), KeyOf("p", "M", nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, tt.a, tt.b)
		})
	}
}

func TestCart_CommaColorDoesNotMerge(t *testing.T) {
	c := New("c1")
	require.NoError(t, c.Add(Line{ProductID: "combo", Size: "M", Colors: []string{"Black,White"}, UnitPrice: decimal.NewFromInt(100), Quantity: 1}))
	require.NoError(t, c.Add(Line{ProductID: "combo", Size: "M", Colors: []string{"White", "Black"}, UnitPrice: decimal.NewFromInt(100), Quantity: 1}))

	assert.Len(t, c.Lines, 2)
}
