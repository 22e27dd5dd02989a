package admin

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/rastalife/storefront/internal/domain/order"
)

// Stats is the dashboard summary.
type Stats struct {
	TotalProducts   int
	TotalOrders     int
	PendingOrders   int
	DeliveredOrders int
	// TotalSales is the sum of delivered order totals.
	TotalSales decimal.Decimal
}

// ProductCounter counts catalog products.
type ProductCounter interface {
	Count(ctx context.Context) (int, error)
}

// OrderStats aggregates stored orders.
type OrderStats interface {
	CountByStatus(ctx context.Context) (map[order.Status]int, error)
	SumTotals(ctx context.Context, status order.Status) (decimal.Decimal, error)
}

// Dashboard computes the back-office summary.
type Dashboard struct {
	products ProductCounter
	orders   OrderStats
}

// NewDashboard creates a Dashboard.
func NewDashboard(products ProductCounter, orders OrderStats) *Dashboard {
	return &Dashboard{products: products, orders: orders}
}

// Stats runs the summary queries concurrently.
func (d *Dashboard) Stats(ctx context.Context) (*Stats, error) {
	var (
		s        Stats
		byStatus map[order.Status]int
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := d.products.Count(ctx)
		if err != nil {
			return errors.Wrap(err, "count products")
		}
		s.TotalProducts = n
		return nil
	})
	g.Go(func() error {
		m, err := d.orders.CountByStatus(ctx)
		if err != nil {
			return errors.Wrap(err, "count orders")
		}
		byStatus = m
		return nil
	})
	g.Go(func() error {
		sum, err := d.orders.SumTotals(ctx, order.StatusDelivered)
		if err != nil {
			return errors.Wrap(err, "sum delivered sales")
		}
		s.TotalSales = sum.Round(0)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, n := range byStatus {
		s.TotalOrders += n
	}
	s.PendingOrders = byStatus[order.StatusPending]
	s.DeliveredOrders = byStatus[order.StatusDelivered]
	return &s, nil
}
