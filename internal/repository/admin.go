package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rastalife/storefront/internal/domain/admin"
)

const (
	findAdminUserSQL = `SELECT id, username, password_hash, created_at
		FROM admin_users WHERE username = $1`

	upsertAdminUserSQL = `INSERT INTO admin_users (username, password_hash) VALUES ($1, $2)
		ON CONFLICT (username) DO UPDATE SET password_hash = EXCLUDED.password_hash
		RETURNING id, created_at`
)

var _ admin.UserRepository = (*AdminUserRepository)(nil)

// AdminUserRepository implements admin.UserRepository backed by PostgreSQL.
type AdminUserRepository struct {
	pool *pgxpool.Pool
}

// NewAdminUserRepository returns an AdminUserRepository that uses the given pool.
func NewAdminUserRepository(pool *pgxpool.Pool) *AdminUserRepository {
	return &AdminUserRepository{pool: pool}
}

// FindByUsername returns admin.ErrUserNotFound for an unknown username.
func (r *AdminUserRepository) FindByUsername(ctx context.Context, username string) (*admin.User, error) {
	var u admin.User
	err := r.pool.QueryRow(ctx, findAdminUserSQL, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, admin.ErrUserNotFound
		}
		return nil, fmt.Errorf("finding admin user %q: %w", username, err)
	}
	return &u, nil
}

// Upsert creates the user or replaces its password hash.
func (r *AdminUserRepository) Upsert(ctx context.Context, u *admin.User) error {
	if err := r.pool.QueryRow(ctx, upsertAdminUserSQL, u.Username, u.PasswordHash).Scan(&u.ID, &u.CreatedAt); err != nil {
		return fmt.Errorf("upserting admin user %q: %w", u.Username, err)
	}
	return nil
}
