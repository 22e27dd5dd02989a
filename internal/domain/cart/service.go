package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/rastalife/storefront/internal/domain/catalog"
)

// ErrProductUnavailable is returned when a selection refers to a product that
// is missing or not published.
var ErrProductUnavailable = errors.New("product is not available")

// Selection is a shopper's choice of product, size, colors and quantity.
type Selection struct {
	ProductID string
	Size      string
	Colors    []string
	Quantity  int
}

// ProductReader is the subset of the catalog the cart needs.
type ProductReader interface {
	GetByID(ctx context.Context, id string) (*catalog.Product, error)
}

// Service applies shopper actions to stored carts.
type Service struct {
	products ProductReader
	store    Store
	now      func() time.Time
}

// NewService creates a cart Service.
func NewService(products ProductReader, store Store) *Service {
	return &Service{products: products, store: store, now: time.Now}
}

// Create starts a new empty cart and returns it.
func (s *Service) Create(ctx context.Context) (*Cart, error) {
	c := New(uuid.NewString())
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the stored cart.
func (s *Service) Get(ctx context.Context, id string) (*Cart, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get cart")
	}
	return c, nil
}

// AddItem validates sel against the product's options, snapshots its current
// unit price and merges it into the cart.
func (s *Service) AddItem(ctx context.Context, cartID string, sel Selection) (*Cart, error) {
	c, err := s.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}

	l, err := s.resolve(ctx, sel)
	if err != nil {
		return nil, err
	}
	if err := c.Add(l); err != nil {
		return nil, err
	}

	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Lines resolves selections into priced lines without a stored cart, merging
// repeated selections the same way a cart does.
func (s *Service) Lines(ctx context.Context, sels []Selection) ([]Line, error) {
	c := New("")
	for _, sel := range sels {
		l, err := s.resolve(ctx, sel)
		if err != nil {
			return nil, err
		}
		if err := c.Add(l); err != nil {
			return nil, err
		}
	}
	return c.Lines, nil
}

func (s *Service) resolve(ctx context.Context, sel Selection) (Line, error) {
	if sel.Quantity <= 0 {
		return Line{}, &InvalidQuantityError{ProductID: sel.ProductID, Quantity: sel.Quantity}
	}

	p, err := s.products.GetByID(ctx, sel.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return Line{}, ErrProductUnavailable
		}
		return Line{}, errors.Wrap(err, "get product")
	}
	if !p.Published() {
		return Line{}, ErrProductUnavailable
	}
	if err := p.ValidateSelection(sel.Size, sel.Colors); err != nil {
		return Line{}, err
	}

	return Line{
		ProductID: p.ID,
		Title:     p.Title,
		UnitPrice: p.UnitPrice(),
		Quantity:  sel.Quantity,
		Size:      sel.Size,
		Colors:    sel.Colors,
		Image:     p.FeatureImage,
	}, nil
}

// UpdateQuantity sets the quantity of the matching line; zero or less removes it.
func (s *Service) UpdateQuantity(ctx context.Context, cartID string, sel Selection) (*Cart, error) {
	c, err := s.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if err := c.SetQuantity(KeyOf(sel.ProductID, sel.Size, sel.Colors), sel.Quantity); err != nil {
		return nil, err
	}
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// RemoveItem deletes the matching line.
func (s *Service) RemoveItem(ctx context.Context, cartID string, sel Selection) (*Cart, error) {
	sel.Quantity = 0
	return s.UpdateQuantity(ctx, cartID, sel)
}

// Clear deletes the cart.
func (s *Service) Clear(ctx context.Context, cartID string) error {
	if err := s.store.Delete(ctx, cartID); err != nil {
		return errors.Wrap(err, "delete cart")
	}
	return nil
}

func (s *Service) save(ctx context.Context, c *Cart) error {
	c.UpdatedAt = s.now()
	if err := s.store.Save(ctx, c); err != nil {
		return errors.Wrap(err, "save cart")
	}
	return nil
}
