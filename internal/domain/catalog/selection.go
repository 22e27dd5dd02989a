package catalog

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/go-faster/errors"
)

// SelectionError reports a size or color choice that the product does not allow.
type SelectionError struct {
	ProductID string
	Reason    string
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("product %s: %s", e.ProductID, e.Reason)
}

// ValidateSelection checks a buyer's size and color choice against the
// product's options.
func (p *Product) ValidateSelection(size string, colors []string) error {
	fail := func(format string, args ...any) error {
		return &SelectionError{ProductID: p.ID, Reason: fmt.Sprintf(format, args...)}
	}

	if size == "" {
		return fail("please select a size")
	}
	if len(p.Sizes) > 0 && !slices.Contains(p.Sizes, size) {
		return fail("size %q is not available", size)
	}

	opts := p.Colors.Options
	if len(opts) == 0 {
		if len(colors) > 0 {
			return fail("product has no color options")
		}
		return nil
	}

	seen := make(map[string]struct{}, len(colors))
	for _, c := range colors {
		if !slices.Contains(opts, c) {
			return fail("color %q is not available", c)
		}
		if _, dup := seen[c]; dup {
			return fail("color %q selected twice", c)
		}
		seen[c] = struct{}{}
	}

	if p.Colors.Multiple {
		if len(colors) != p.Colors.MaxSelection {
			return fail("please select %d colors", p.Colors.MaxSelection)
		}
		return nil
	}
	if len(colors) != 1 {
		return fail("please select a color")
	}
	return nil
}

// Validate checks the product fields an admin submits.
func (p *Product) Validate() error {
	switch {
	case strings.TrimSpace(p.Title) == "":
		return errors.New("title is required")
	case p.Slug == "":
		return errors.New("slug is required")
	case !p.RegularPrice.IsPositive():
		return errors.New("regular price must be positive")
	case p.SalePrice.Valid && p.SalePrice.Decimal.IsNegative():
		return errors.New("sale price must not be negative")
	case !p.Status.IsValid():
		return errors.Errorf("unknown status %q", p.Status)
	case p.Colors.Multiple && p.Colors.MaxSelection < 1:
		return errors.New("max color selection must be at least 1")
	case p.Colors.Multiple && p.Colors.MaxSelection > len(p.Colors.Options):
		return errors.New("max color selection exceeds available colors")
	case p.Stock != nil && *p.Stock < 0:
		return errors.New("stock must not be negative")
	}
	return nil
}

// Slugify turns a title into a URL slug: lower-case ASCII letters and digits
// separated by single dashes.
func Slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
