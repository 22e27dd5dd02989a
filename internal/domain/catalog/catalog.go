// Package catalog defines the storefront's products and categories.
package catalog

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a product or category does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSlugTaken is returned when a slug is already used by another record.
	ErrSlugTaken = errors.New("slug already in use")
)

// Status controls whether a product is visible in the public storefront.
type Status string

const (
	StatusPublished Status = "published"
	StatusDraft     Status = "draft"
)

// IsValid reports whether s is a known product status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPublished, StatusDraft:
		return true
	default:
		return false
	}
}

// ColorPolicy describes which colors a buyer may pick for a product.
// When Multiple is set the buyer must pick exactly MaxSelection colors,
// otherwise a single color.
type ColorPolicy struct {
	Options      []string
	Multiple     bool
	MaxSelection int
}

// Product is a catalog item.
type Product struct {
	ID               string
	Title            string
	Slug             string
	Description      string
	RegularPrice     decimal.Decimal
	SalePrice        decimal.NullDecimal
	FeatureImage     string
	AdditionalImages []string
	Sizes            []string
	Colors           ColorPolicy
	Category         string
	Conditions       []string
	Stock            *int
	OfferEndDate     *time.Time
	Status           Status
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// UnitPrice returns the price a buyer pays for one unit: the sale price when
// it is set and lower than the regular price, otherwise the regular price.
func (p *Product) UnitPrice() decimal.Decimal {
	if p.SalePrice.Valid && p.SalePrice.Decimal.LessThan(p.RegularPrice) {
		return p.SalePrice.Decimal
	}
	return p.RegularPrice
}

// Published reports whether the product is visible to shoppers.
func (p *Product) Published() bool {
	return p.Status == StatusPublished
}

// Category groups products in the storefront navigation.
type Category struct {
	ID          string
	Name        string
	Slug        string
	Description string
	CreatedAt   time.Time
}

// Filter narrows a product listing. Zero-valued fields do not filter.
type Filter struct {
	Category  string
	Condition string
	// Search matches a case-insensitive substring of the title.
	Search string
	Status Status
	Limit  int
}

// ProductRepository persists products.
type ProductRepository interface {
	List(ctx context.Context, f Filter) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetBySlug(ctx context.Context, slug string) (*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// CategoryRepository persists categories.
type CategoryRepository interface {
	List(ctx context.Context) ([]Category, error)
	Create(ctx context.Context, c *Category) error
	Update(ctx context.Context, c *Category) error
	Delete(ctx context.Context, id string) error
}
