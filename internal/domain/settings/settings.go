// Package settings holds the admin-editable storefront settings.
package settings

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Keys of the key/value settings rows.
const (
	KeyInsideDhakaCharge  = "inside_dhaka_charge"
	KeyOutsideDhakaCharge = "outside_dhaka_charge"
)

var (
	DefaultInsideCharge  = decimal.NewFromInt(60)
	DefaultOutsideCharge = decimal.NewFromInt(100)
)

// Pixel is the advertising pixel configuration served to the storefront.
type Pixel struct {
	ID     string
	Active bool
}

// Settings is the typed view over the settings store.
type Settings struct {
	InsideCharge  decimal.Decimal
	OutsideCharge decimal.Decimal
	Pixel         Pixel
}

// Defaults returns the settings used when nothing has been saved.
func Defaults() Settings {
	return Settings{
		InsideCharge:  DefaultInsideCharge,
		OutsideCharge: DefaultOutsideCharge,
	}
}

// FromValues overlays stored key/value rows on the defaults. Unknown keys are
// ignored; an unparsable amount is an error.
func FromValues(values map[string]string, pixel Pixel) (Settings, error) {
	s := Defaults()
	s.Pixel = pixel

	for key, dst := range map[string]*decimal.Decimal{
		KeyInsideDhakaCharge:  &s.InsideCharge,
		KeyOutsideDhakaCharge: &s.OutsideCharge,
	} {
		raw, ok := values[key]
		if !ok || raw == "" {
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return Settings{}, errors.Wrapf(err, "parse %s", key)
		}
		*dst = v
	}
	return s, nil
}

// ValidateCharges checks delivery charges before they are saved.
func ValidateCharges(inside, outside decimal.Decimal) error {
	if inside.IsNegative() || outside.IsNegative() {
		return errors.New("delivery charges must not be negative")
	}
	return nil
}

// Repository loads and saves settings.
type Repository interface {
	Load(ctx context.Context) (Settings, error)
	SaveDeliveryCharges(ctx context.Context, inside, outside decimal.Decimal) error
	SavePixel(ctx context.Context, p Pixel) error
}
