package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rastalife/storefront/internal/domain/catalog"
)

const productColumns = `id, title, slug, description, regular_price, sale_price, feature_image,
	additional_images, sizes, color_options, color_multiple, color_max, category, conditions,
	stock, offer_end_date, status, created_at, updated_at`

const (
	getProductByIDSQL   = `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	getProductBySlugSQL = `SELECT ` + productColumns + ` FROM products WHERE slug = $1`

	createProductSQL = `INSERT INTO products (title, slug, description, regular_price, sale_price,
		feature_image, additional_images, sizes, color_options, color_multiple, color_max,
		category, conditions, stock, offer_end_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at`

	updateProductSQL = `UPDATE products SET title = $2, slug = $3, description = $4,
		regular_price = $5, sale_price = $6, feature_image = $7, additional_images = $8,
		sizes = $9, color_options = $10, color_multiple = $11, color_max = $12,
		category = $13, conditions = $14, stock = $15, offer_end_date = $16, status = $17,
		updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`
	countProductsSQL = `SELECT count(*) FROM products`

	listCategoriesSQL  = `SELECT id, name, slug, description, created_at FROM categories ORDER BY name ASC`
	createCategorySQL  = `INSERT INTO categories (name, slug, description) VALUES ($1, $2, $3) RETURNING id, created_at`
	updateCategorySQL  = `UPDATE categories SET name = $2, slug = $3, description = $4 WHERE id = $1 RETURNING created_at`
	deleteCategorySQL  = `DELETE FROM categories WHERE id = $1`
	defaultProductList = 100
)

var (
	_ catalog.ProductRepository  = (*ProductRepository)(nil)
	_ catalog.CategoryRepository = (*CategoryRepository)(nil)
)

// ProductRepository implements catalog.ProductRepository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns products matching f, newest first.
func (r *ProductRepository) List(ctx context.Context, f catalog.Filter) ([]catalog.Product, error) {
	query, args := buildProductList(f)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

func buildProductList(f catalog.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	if f.Condition != "" {
		add("$%d = ANY(conditions)", f.Condition)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		add(`title ILIKE '%%' || $%d || '%%'`, escapeLike(s))
	}

	limit := f.Limit
	if limit <= 0 || limit > defaultProductList {
		limit = defaultProductList
	}

	var b strings.Builder
	b.WriteString("SELECT " + productColumns + " FROM products")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	args = append(args, limit)
	fmt.Fprintf(&b, " ORDER BY created_at DESC LIMIT $%d", len(args))
	return b.String(), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	if uuid.Validate(id) != nil {
		return nil, catalog.ErrNotFound
	}
	return r.getOne(ctx, getProductByIDSQL, id)
}

// GetBySlug returns a single product by its slug.
func (r *ProductRepository) GetBySlug(ctx context.Context, slug string) (*catalog.Product, error) {
	return r.getOne(ctx, getProductBySlugSQL, slug)
}

func (r *ProductRepository) getOne(ctx context.Context, query, arg string) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", arg, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", arg, err)
	}
	return &p, nil
}

// Create inserts p and fills in its generated fields.
func (r *ProductRepository) Create(ctx context.Context, p *catalog.Product) error {
	err := r.pool.QueryRow(ctx, createProductSQL,
		p.Title, p.Slug, p.Description, p.RegularPrice, p.SalePrice, p.FeatureImage,
		nonNil(p.AdditionalImages), nonNil(p.Sizes), nonNil(p.Colors.Options), p.Colors.Multiple,
		p.Colors.MaxSelection, p.Category, nonNil(p.Conditions), p.Stock, p.OfferEndDate, string(p.Status),
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return catalog.ErrSlugTaken
		}
		return fmt.Errorf("creating product %q: %w", p.Slug, err)
	}
	return nil
}

// Update overwrites the stored product with p.
func (r *ProductRepository) Update(ctx context.Context, p *catalog.Product) error {
	if uuid.Validate(p.ID) != nil {
		return catalog.ErrNotFound
	}
	err := r.pool.QueryRow(ctx, updateProductSQL,
		p.ID, p.Title, p.Slug, p.Description, p.RegularPrice, p.SalePrice, p.FeatureImage,
		nonNil(p.AdditionalImages), nonNil(p.Sizes), nonNil(p.Colors.Options), p.Colors.Multiple,
		p.Colors.MaxSelection, p.Category, nonNil(p.Conditions), p.Stock, p.OfferEndDate, string(p.Status),
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return catalog.ErrNotFound
	case isUniqueViolation(err):
		return catalog.ErrSlugTaken
	case err != nil:
		return fmt.Errorf("updating product %q: %w", p.ID, err)
	}
	return nil
}

// Delete removes the product with the given id.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return catalog.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// Count returns the number of stored products.
func (r *ProductRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countProductsSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting products: %w", err)
	}
	return n, nil
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var (
		p      catalog.Product
		status string
	)
	err := row.Scan(
		&p.ID, &p.Title, &p.Slug, &p.Description, &p.RegularPrice, &p.SalePrice, &p.FeatureImage,
		&p.AdditionalImages, &p.Sizes, &p.Colors.Options, &p.Colors.Multiple, &p.Colors.MaxSelection,
		&p.Category, &p.Conditions, &p.Stock, &p.OfferEndDate, &status, &p.CreatedAt, &p.UpdatedAt,
	)
	p.Status = catalog.Status(status)
	return p, err
}

// CategoryRepository implements catalog.CategoryRepository backed by PostgreSQL.
type CategoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository returns a CategoryRepository that uses the given pool.
func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

// List returns all categories ordered by name.
func (r *CategoryRepository) List(ctx context.Context) ([]catalog.Category, error) {
	rows, err := r.pool.Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Category, error) {
		var c catalog.Category
		err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt)
		return c, err
	})
}

// Create inserts c and fills in its generated fields.
func (r *CategoryRepository) Create(ctx context.Context, c *catalog.Category) error {
	err := r.pool.QueryRow(ctx, createCategorySQL, c.Name, c.Slug, c.Description).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return catalog.ErrSlugTaken
		}
		return fmt.Errorf("creating category %q: %w", c.Slug, err)
	}
	return nil
}

// Update overwrites the stored category with c.
func (r *CategoryRepository) Update(ctx context.Context, c *catalog.Category) error {
	if uuid.Validate(c.ID) != nil {
		return catalog.ErrNotFound
	}
	err := r.pool.QueryRow(ctx, updateCategorySQL, c.ID, c.Name, c.Slug, c.Description).Scan(&c.CreatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return catalog.ErrNotFound
	case isUniqueViolation(err):
		return catalog.ErrSlugTaken
	case err != nil:
		return fmt.Errorf("updating category %q: %w", c.ID, err)
	}
	return nil
}

// Delete removes the category with the given id.
func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return catalog.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, deleteCategorySQL, id)
	if err != nil {
		return fmt.Errorf("deleting category %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
