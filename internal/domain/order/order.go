package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// IsValid reports whether s is a known order status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusCancelled},
	StatusApproved: {StatusDelivered, StatusCancelled},
}

// CanTransitionTo reports whether an admin may move an order from s to next.
// Delivered and cancelled orders are final.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Area is the delivery zone that selects the delivery charge.
type Area string

const (
	AreaInside  Area = "inside"
	AreaOutside Area = "outside"
)

// IsValid reports whether a is a known delivery area.
func (a Area) IsValid() bool {
	return a == AreaInside || a == AreaOutside
}

var (
	ErrNotFound   = errors.New("order not found")
	ErrEmptyItems = errors.New("items required")

	// ErrDuplicateNumber is returned by a Repository when the order number is
	// already taken.
	ErrDuplicateNumber = errors.New("duplicate order number")

	// ErrStatusChanged is returned by a Repository when the stored status no
	// longer matches the expected one.
	ErrStatusChanged = errors.New("order status changed concurrently")
)

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// InvalidTransitionError indicates a status change that is not allowed.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}

// Customer holds the buyer's contact and delivery details.
type Customer struct {
	Name    string `validate:"required,max=200"`
	Phone   string `validate:"required,max=32"`
	Address string `validate:"required,max=1000"`
	Note    string `validate:"max=2000"`
}

// Item is the priced snapshot of a cart line stored with an order.
type Item struct {
	ProductID string          `json:"product_id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size"`
	Colors    []string        `json:"colors"`
	Image     string          `json:"image"`
}

// Order is a placed customer order. Items and amounts do not change after
// creation; only Status does.
type Order struct {
	ID             string
	Number         string
	Customer       Customer
	Area           Area
	Items          []Item
	Subtotal       decimal.Decimal
	DeliveryCharge decimal.Decimal
	Discount       decimal.Decimal
	Total          decimal.Decimal
	CouponCode     string
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create stores o and fills in its ID and CreatedAt. It returns
	// ErrDuplicateNumber when o.Number is taken.
	Create(ctx context.Context, o *Order) error
	GetByNumber(ctx context.Context, number string) (*Order, error)
	// List returns orders newest first, optionally filtered by status.
	List(ctx context.Context, status Status) ([]Order, error)
	// UpdateStatus changes the status only if it still equals from.
	UpdateStatus(ctx context.Context, number string, from, to Status) error
}
