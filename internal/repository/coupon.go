package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rastalife/storefront/internal/domain/coupon"
)

const couponColumns = `code, discount_type, discount_value, min_order_value, max_uses,
	used_count, expires_at, active, created_at`

const (
	findActiveCouponSQL = `SELECT ` + couponColumns + `
		FROM coupons WHERE code = UPPER($1) AND active = TRUE`

	listCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons ORDER BY created_at DESC`

	upsertCouponSQL = `INSERT INTO coupons (code, discount_type, discount_value, min_order_value,
		max_uses, expires_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (code) DO UPDATE SET
			discount_type = EXCLUDED.discount_type,
			discount_value = EXCLUDED.discount_value,
			min_order_value = EXCLUDED.min_order_value,
			max_uses = EXCLUDED.max_uses,
			expires_at = EXCLUDED.expires_at,
			active = EXCLUDED.active
		RETURNING used_count, created_at`

	// The redemption row is keyed by order id, so a replay hits the primary
	// key and the whole statement, including the counter bump, rolls back.
	incrementCouponUsageSQL = `WITH bumped AS (
			UPDATE coupons SET used_count = used_count + 1
			WHERE code = $1 AND (max_uses IS NULL OR used_count < max_uses)
			RETURNING code
		)
		INSERT INTO coupon_redemptions (order_id, coupon_code)
		SELECT $2::uuid, code FROM bumped`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindActiveByCode looks up an active coupon by its code (case-insensitive).
// Returns coupon.ErrCouponNotFound when no matching active coupon exists.
func (r *CouponRepository) FindActiveByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, findActiveCouponSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrCouponNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// List returns every coupon, newest first.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// Upsert creates the coupon or replaces its terms. The usage counter is
// never overwritten.
func (r *CouponRepository) Upsert(ctx context.Context, c *coupon.Coupon) error {
	c.Code = coupon.NormalizeCode(c.Code)
	err := r.pool.QueryRow(ctx, upsertCouponSQL,
		c.Code, string(c.DiscountType), c.Value, c.MinOrderValue, c.MaxUses, c.ExpiresAt, c.Active,
	).Scan(&c.UsedCount, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", c.Code, err)
	}
	return nil
}

// IncrementUsage counts one redemption of code for orderID. It reports false
// when the order was already counted or the usage limit is reached.
func (r *CouponRepository) IncrementUsage(ctx context.Context, code, orderID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, incrementCouponUsageSQL, coupon.NormalizeCode(code), orderID)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("incrementing usage for coupon %q: %w", code, err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
		maxUses      *int32
		usedCount    int32
		expiresAt    *time.Time
	)
	err := row.Scan(
		&c.Code, &discountType, &c.Value, &c.MinOrderValue, &maxUses,
		&usedCount, &expiresAt, &c.Active, &c.CreatedAt,
	)
	c.DiscountType = coupon.DiscountType(discountType)
	if maxUses != nil {
		n := int(*maxUses)
		c.MaxUses = &n
	}
	c.UsedCount = int(usedCount)
	c.ExpiresAt = expiresAt
	return c, err
}
