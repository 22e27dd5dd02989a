// Package cart implements the shopper's cart aggregate and its persistence
// contract.
package cart

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a cart does not exist or has expired.
	ErrNotFound = errors.New("cart not found")
	// ErrLineNotFound is returned when a cart has no line with the given key.
	ErrLineNotFound = errors.New("cart line not found")
)

// InvalidQuantityError indicates a line was added with a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s, got %d", e.ProductID, e.Quantity)
}

// Line is one product selection in a cart. UnitPrice is captured when the
// line is first added and is not refreshed from the catalog afterwards.
type Line struct {
	ProductID string
	Title     string
	UnitPrice decimal.Decimal
	Quantity  int
	Size      string
	Colors    []string
	Image     string
}

// Key identifies the line a selection merges into.
func (l Line) Key() Key {
	return KeyOf(l.ProductID, l.Size, l.Colors)
}

// Total returns UnitPrice * Quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Key is the merge identity of a cart line: product, size and the color set.
type Key string

// KeyOf builds the Key for a selection. Color order does not matter. Every
// field is length-prefixed, so option values may contain any character.
func KeyOf(productID, size string, colors []string) Key {
	sorted := slices.Clone(colors)
	slices.Sort(sorted)

	var b strings.Builder
	for _, f := range append([]string{productID, size}, sorted...) {
		b.WriteString(strconv.Itoa(len(f)))
		b.WriteByte(':')
		b.WriteString(f)
	}
	return Key(b.String())
}

// Cart is an ordered collection of lines with unique keys.
type Cart struct {
	ID        string
	Lines     []Line
	UpdatedAt time.Time
}

// New returns an empty cart.
func New(id string) *Cart {
	return &Cart{ID: id}
}

// Add merges l into the cart. A line with the same key has its quantity
// increased, otherwise l is appended.
func (c *Cart) Add(l Line) error {
	if l.Quantity <= 0 {
		return &InvalidQuantityError{ProductID: l.ProductID, Quantity: l.Quantity}
	}
	l.Colors = slices.Clone(l.Colors)
	slices.Sort(l.Colors)

	key := l.Key()
	if i := c.index(key); i >= 0 {
		c.Lines[i].Quantity += l.Quantity
		return nil
	}
	c.Lines = append(c.Lines, l)
	return nil
}

// SetQuantity replaces the quantity of the line with key. A quantity of zero
// or less removes the line.
func (c *Cart) SetQuantity(key Key, qty int) error {
	i := c.index(key)
	if i < 0 {
		return ErrLineNotFound
	}
	if qty <= 0 {
		c.Lines = slices.Delete(c.Lines, i, i+1)
		return nil
	}
	c.Lines[i].Quantity = qty
	return nil
}

// Remove deletes the line with key.
func (c *Cart) Remove(key Key) error {
	return c.SetQuantity(key, 0)
}

// Clear removes every line.
func (c *Cart) Clear() {
	c.Lines = nil
}

// Subtotal returns the sum of all line totals.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.Lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

// Count returns the number of units across all lines.
func (c *Cart) Count() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	return len(c.Lines) == 0
}

func (c *Cart) index(key Key) int {
	return slices.IndexFunc(c.Lines, func(l Line) bool { return l.Key() == key })
}

// Store persists carts between requests.
type Store interface {
	Get(ctx context.Context, id string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Delete(ctx context.Context, id string) error
}
