package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rastalife/storefront/internal/domain/admin"
	"github.com/rastalife/storefront/internal/domain/order"
)

const orderColumns = `id, order_number, customer_name, customer_phone, customer_address,
	customer_note, delivery_area, items, subtotal, delivery_charge, discount, total,
	coupon_code, status, created_at, updated_at`

const (
	createOrderSQL = `INSERT INTO orders (order_number, customer_name, customer_phone,
		customer_address, customer_note, delivery_area, items, subtotal, delivery_charge,
		discount, total, coupon_code, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`

	getOrderByNumberSQL = `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE ($1::text = '' OR status = $1)
		ORDER BY created_at DESC`

	updateOrderStatusSQL = `UPDATE orders SET status = $3, updated_at = now()
		WHERE order_number = $1 AND status = $2`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE order_number = $1)`

	countOrdersByStatusSQL = `SELECT status, count(*) FROM orders GROUP BY status`
	sumOrderTotalsSQL      = `SELECT COALESCE(sum(total), 0) FROM orders WHERE status = $1`
)

var (
	_ order.Repository = (*OrderRepository)(nil)
	_ admin.OrderStats = (*OrderRepository)(nil)
)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order and fills in its ID and timestamps. The order
// items are serialized to JSON for storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	var couponCode *string
	if o.CouponCode != "" {
		couponCode = &o.CouponCode
	}

	err = r.pool.QueryRow(ctx, createOrderSQL,
		o.Number, o.Customer.Name, o.Customer.Phone, o.Customer.Address, o.Customer.Note,
		string(o.Area), itemsJSON, o.Subtotal, o.DeliveryCharge, o.Discount, o.Total,
		couponCode, string(o.Status),
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return order.ErrDuplicateNumber
		}
		return fmt.Errorf("creating order %q: %w", o.Number, err)
	}

	return nil
}

// GetByNumber returns the order with the given public number.
func (r *OrderRepository) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByNumberSQL, number)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", number, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", number, err)
	}
	return &o, nil
}

// List returns orders newest first. An empty status matches every order.
func (r *OrderRepository) List(ctx context.Context, status order.Status) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, string(status))
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// UpdateStatus moves the order from one status to another. It fails with
// order.ErrStatusChanged if the stored status is no longer from.
func (r *OrderRepository) UpdateStatus(ctx context.Context, number string, from, to order.Status) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, number, string(from), string(to))
	if err != nil {
		return fmt.Errorf("updating status of order %q: %w", number, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, orderExistsSQL, number).Scan(&exists); err != nil {
		return fmt.Errorf("checking order %q: %w", number, err)
	}
	if !exists {
		return order.ErrNotFound
	}
	return order.ErrStatusChanged
}

// CountByStatus returns the number of orders per status.
func (r *OrderRepository) CountByStatus(ctx context.Context) (map[order.Status]int, error) {
	rows, err := r.pool.Query(ctx, countOrdersByStatusSQL)
	if err != nil {
		return nil, fmt.Errorf("counting orders: %w", err)
	}

	counts := make(map[order.Status]int)
	var (
		status string
		n      int
	)
	_, err = pgx.ForEachRow(rows, []any{&status, &n}, func() error {
		counts[order.Status(status)] = n
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("counting orders: %w", err)
	}
	return counts, nil
}

// SumTotals returns the sum of order totals with the given status.
func (r *OrderRepository) SumTotals(ctx context.Context, status order.Status) (decimal.Decimal, error) {
	var sum decimal.Decimal
	if err := r.pool.QueryRow(ctx, sumOrderTotalsSQL, string(status)).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("summing %s orders: %w", status, err)
	}
	return sum, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o          order.Order
		area       string
		status     string
		itemsJSON  []byte
		couponCode *string
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.Customer.Name, &o.Customer.Phone, &o.Customer.Address,
		&o.Customer.Note, &area, &itemsJSON, &o.Subtotal, &o.DeliveryCharge, &o.Discount, &o.Total,
		&couponCode, &status, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}

	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling items of order %q: %w", o.Number, err)
	}
	o.Area = order.Area(area)
	o.Status = order.Status(status)
	if couponCode != nil {
		o.CouponCode = *couponCode
	}
	return o, nil
}
