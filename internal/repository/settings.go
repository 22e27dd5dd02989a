package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rastalife/storefront/internal/domain/settings"
)

const (
	listSettingsSQL = `SELECT key, value FROM settings`
	getPixelSQL     = `SELECT pixel_id, active FROM fb_pixel_settings WHERE id`

	upsertSettingSQL = `INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

	upsertPixelSQL = `INSERT INTO fb_pixel_settings (id, pixel_id, active) VALUES (TRUE, $1, $2)
		ON CONFLICT (id) DO UPDATE SET
			pixel_id = EXCLUDED.pixel_id,
			active = EXCLUDED.active,
			updated_at = now()`
)

var _ settings.Repository = (*SettingsRepository)(nil)

// SettingsRepository implements settings.Repository backed by PostgreSQL.
type SettingsRepository struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository returns a SettingsRepository that uses the given pool.
func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

// Load reads the key/value settings and the pixel row. Missing values fall
// back to defaults.
func (r *SettingsRepository) Load(ctx context.Context) (settings.Settings, error) {
	rows, err := r.pool.Query(ctx, listSettingsSQL)
	if err != nil {
		return settings.Settings{}, fmt.Errorf("loading settings: %w", err)
	}

	values := make(map[string]string)
	var key, value string
	if _, err := pgx.ForEachRow(rows, []any{&key, &value}, func() error {
		values[key] = value
		return nil
	}); err != nil {
		return settings.Settings{}, fmt.Errorf("loading settings: %w", err)
	}

	var pixel settings.Pixel
	err = r.pool.QueryRow(ctx, getPixelSQL).Scan(&pixel.ID, &pixel.Active)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return settings.Settings{}, fmt.Errorf("loading pixel settings: %w", err)
	}

	return settings.FromValues(values, pixel)
}

// SaveDeliveryCharges stores both delivery charges in one transaction.
func (r *SettingsRepository) SaveDeliveryCharges(ctx context.Context, inside, outside decimal.Decimal) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertSettingSQL, settings.KeyInsideDhakaCharge, inside.String()); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, upsertSettingSQL, settings.KeyOutsideDhakaCharge, outside.String())
		return err
	})
	if err != nil {
		return fmt.Errorf("saving delivery charges: %w", err)
	}
	return nil
}

// SavePixel stores the tracking pixel configuration.
func (r *SettingsRepository) SavePixel(ctx context.Context, p settings.Pixel) error {
	if _, err := r.pool.Exec(ctx, upsertPixelSQL, p.ID, p.Active); err != nil {
		return fmt.Errorf("saving pixel settings: %w", err)
	}
	return nil
}
