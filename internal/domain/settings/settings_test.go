package settings

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromValues(t *testing.T) {
	tests := []struct {
		name        string
		values      map[string]string
		wantInside  int64
		wantOutside int64
	}{
		{name: "empty store uses defaults", values: nil, wantInside: 60, wantOutside: 100},
		{
			name:        "explicit values win",
			values:      map[string]string{KeyInsideDhakaCharge: "80", KeyOutsideDhakaCharge: "150"},
			wantInside:  80,
			wantOutside: 150,
		},
		{
			name:        "partial override",
			values:      map[string]string{KeyOutsideDhakaCharge: "120", "site_title": "x"},
			wantInside:  60,
			wantOutside: 120,
		},
		{
			name:        "blank value falls back",
			values:      map[string]string{KeyInsideDhakaCharge: ""},
			wantInside:  60,
			wantOutside: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := FromValues(tt.values, Pixel{})
			require.NoError(t, err)
			assert.True(t, decimal.NewFromInt(tt.wantInside).Equal(s.InsideCharge))
			assert.True(t, decimal.NewFromInt(tt.wantOutside).Equal(s.OutsideCharge))
		})
	}
}

func TestFromValues_InvalidAmount(t *testing.T) {
	_, err := FromValues(map[string]string{KeyInsideDhakaCharge: "sixty"}, Pixel{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), KeyInsideDhakaCharge)
}

func TestFromValues_KeepsPixel(t *testing.T) {
	s, err := FromValues(nil, Pixel{ID: "123456", Active: true})
	require.NoError(t, err)
	assert.Equal(t, Pixel{ID: "123456", Active: true}, s.Pixel)
}

func TestValidateCharges(t *testing.T) {
	assert.NoError(t, ValidateCharges(decimal.Zero, decimal.NewFromInt(100)))
	assert.Error(t, ValidateCharges(decimal.NewFromInt(-1), decimal.NewFromInt(100)))
}
