package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestProduct_UnitPrice(t *testing.T) {
	tests := []struct {
		name    string
		regular decimal.Decimal
		sale    decimal.NullDecimal
		want    decimal.Decimal
	}{
		{
			name:    "no sale price",
			regular: d("1200"),
			want:    d("1200"),
		},
		{
			name:    "lower sale price wins",
			regular: d("1200"),
			sale:    decimal.NewNullDecimal(d("950")),
			want:    d("950"),
		},
		{
			name:    "sale price above regular is ignored",
			regular: d("1200"),
			sale:    decimal.NewNullDecimal(d("1500")),
			want:    d("1200"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Product{RegularPrice: tt.regular, SalePrice: tt.sale}
			assert.True(t, tt.want.Equal(p.UnitPrice()), "want %s, got %s", tt.want, p.UnitPrice())
		})
	}
}

func TestProduct_ValidateSelection(t *testing.T) {
	single := Product{
		ID:     "p1",
		Sizes:  []string{"M", "L"},
		Colors: ColorPolicy{Options: []string{"Red", "Blue", "Black"}},
	}
	multi := Product{
		ID:     "p2",
		Sizes:  []string{"M", "L"},
		Colors: ColorPolicy{Options: []string{"Red", "Blue", "Black"}, Multiple: true, MaxSelection: 2},
	}
	plain := Product{ID: "p3", Sizes: []string{"Free"}}

	tests := []struct {
		name    string
		product Product
		size    string
		colors  []string
		wantErr bool
	}{
		{name: "single color ok", product: single, size: "M", colors: []string{"Red"}},
		{name: "missing size", product: single, size: "", colors: []string{"Red"}, wantErr: true},
		{name: "unknown size", product: single, size: "XXL", colors: []string{"Red"}, wantErr: true},
		{name: "no color picked", product: single, size: "M", wantErr: true},
		{name: "two colors on single select", product: single, size: "M", colors: []string{"Red", "Blue"}, wantErr: true},
		{name: "unknown color", product: single, size: "M", colors: []string{"Green"}, wantErr: true},
		{name: "multi exact count", product: multi, size: "L", colors: []string{"Blue", "Red"}},
		{name: "multi too few", product: multi, size: "L", colors: []string{"Blue"}, wantErr: true},
		{name: "multi duplicate", product: multi, size: "L", colors: []string{"Blue", "Blue"}, wantErr: true},
		{name: "no color options", product: plain, size: "Free"},
		{name: "color on product without options", product: plain, size: "Free", colors: []string{"Red"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.product.ValidateSelection(tt.size, tt.colors)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			var selErr *SelectionError
			require.ErrorAs(t, err, &selErr)
			assert.Equal(t, tt.product.ID, selErr.ProductID)
		})
	}
}

func TestProduct_Validate(t *testing.T) {
	valid := func() Product {
		return Product{
			Title:        "Drop Shoulder Tee",
			Slug:         "drop-shoulder-tee",
			RegularPrice: d("850"),
			Status:       StatusPublished,
		}
	}

	p := valid()
	require.NoError(t, p.Validate())

	p = valid()
	p.Title = "  "
	assert.Error(t, p.Validate())

	p = valid()
	p.RegularPrice = decimal.Zero
	assert.Error(t, p.Validate())

	p = valid()
	p.Status = "archived"
	assert.Error(t, p.Validate())

	p = valid()
	p.Colors = ColorPolicy{Options: []string{"Red"}, Multiple: true, MaxSelection: 2}
	assert.Error(t, p.Validate())
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Drop Shoulder Tee":      "drop-shoulder-tee",
		"  Summer -- Collection ": "summer-collection",
		"Polo (2025)":            "polo-2025",
		"":                       "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}
