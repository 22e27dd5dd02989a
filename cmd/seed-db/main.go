// Command seed-db prepares a database for local development: it applies
// migrations and loads default settings, categories, an admin account,
// sample coupons and the product catalog. Running it twice is safe.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/rastalife/storefront/internal/domain/admin"
	"github.com/rastalife/storefront/internal/domain/catalog"
	"github.com/rastalife/storefront/internal/domain/coupon"
	"github.com/rastalife/storefront/internal/domain/settings"
	"github.com/rastalife/storefront/internal/repository"
)

type productJSON struct {
	Title            string              `json:"title"`
	Slug             string              `json:"slug"`
	Description      string              `json:"description"`
	RegularPrice     decimal.Decimal     `json:"regular_price"`
	SalePrice        decimal.NullDecimal `json:"sale_price"`
	FeatureImage     string              `json:"feature_image"`
	AdditionalImages []string            `json:"additional_images"`
	Sizes            []string            `json:"sizes"`
	Colors           []string            `json:"colors"`
	MultipleColors   bool                `json:"multiple_colors"`
	MaxColors        int                 `json:"max_color_selection"`
	Category         string              `json:"category"`
	Conditions       []string            `json:"conditions"`
	Stock            *int                `json:"stock"`
	Status           string              `json:"status"`
}

func (p productJSON) toProduct() catalog.Product {
	out := catalog.Product{
		Title:            p.Title,
		Slug:             p.Slug,
		Description:      p.Description,
		RegularPrice:     p.RegularPrice,
		SalePrice:        p.SalePrice,
		FeatureImage:     p.FeatureImage,
		AdditionalImages: p.AdditionalImages,
		Sizes:            p.Sizes,
		Colors: catalog.ColorPolicy{
			Options:      p.Colors,
			Multiple:     p.MultipleColors,
			MaxSelection: max(p.MaxColors, 1),
		},
		Category:   p.Category,
		Conditions: p.Conditions,
		Stock:      p.Stock,
		Status:     catalog.Status(p.Status),
	}
	if out.Slug == "" {
		out.Slug = catalog.Slugify(out.Title)
	}
	if out.Status == "" {
		out.Status = catalog.StatusPublished
	}
	return out
}

var defaultCategories = []catalog.Category{
	{Name: "T-Shirts", Slug: "t-shirts", Description: "Everyday cotton tees"},
	{Name: "Polo Shirts", Slug: "polo-shirts", Description: "Collared polos"},
	{Name: "Hoodies", Slug: "hoodies", Description: "Winter hoodies and sweatshirts"},
	{Name: "Combo Packs", Slug: "combo-packs", Description: "Multi-color bundles"},
}

func sampleCoupons() []coupon.Coupon {
	limited := 100
	expires := time.Now().AddDate(0, 3, 0).UTC().Truncate(time.Second)
	return []coupon.Coupon{
		{
			Code:          "SAVE10",
			DiscountType:  coupon.DiscountPercentage,
			Value:         decimal.NewFromInt(10),
			MinOrderValue: decimal.NewFromInt(500),
			Active:        true,
		},
		{
			Code:          "FLAT100",
			DiscountType:  coupon.DiscountFixed,
			Value:         decimal.NewFromInt(100),
			MinOrderValue: decimal.NewFromInt(1500),
			MaxUses:       &limited,
			ExpiresAt:     &expires,
			Active:        true,
		},
	}
}

func main() {
	var (
		databaseURL   string
		productsFile  string
		adminUser     string
		adminPassword string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&adminUser, "admin-user", "admin", "admin username to create or update")
	flag.StringVar(&adminPassword, "admin-password", "", "admin password (or STORE_SEED_ADMIN_PASSWORD env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if adminPassword == "" {
		adminPassword = os.Getenv("STORE_SEED_ADMIN_PASSWORD")
	}
	if adminPassword == "" {
		slog.Error("admin password is required: set --admin-password or STORE_SEED_ADMIN_PASSWORD")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, adminUser, adminPassword); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, adminUser, adminPassword string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	applied, err := repository.RunMigrations(ctx, pool)
	if err != nil {
		return errors.Wrap(err, "run migrations")
	}
	slog.Info("migrations applied", slog.Int("count", applied))

	if err := seedSettings(ctx, repository.NewSettingsRepository(pool)); err != nil {
		return errors.Wrap(err, "seed settings")
	}
	if err := seedCategories(ctx, repository.NewCategoryRepository(pool)); err != nil {
		return errors.Wrap(err, "seed categories")
	}
	if err := seedAdmin(ctx, repository.NewAdminUserRepository(pool), adminUser, adminPassword); err != nil {
		return errors.Wrap(err, "seed admin user")
	}
	if err := seedCoupons(ctx, repository.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := seedProducts(ctx, repository.NewProductRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	return nil
}

func seedSettings(ctx context.Context, repo settings.Repository) error {
	current, err := repo.Load(ctx)
	if err != nil {
		return errors.Wrap(err, "load settings")
	}
	// Re-saving keeps admin edits and fills in missing rows with defaults.
	if err := repo.SaveDeliveryCharges(ctx, current.InsideCharge, current.OutsideCharge); err != nil {
		return errors.Wrap(err, "save delivery charges")
	}

	slog.Info("delivery charges",
		slog.String("inside", current.InsideCharge.String()),
		slog.String("outside", current.OutsideCharge.String()),
	)
	return nil
}

func seedCategories(ctx context.Context, repo catalog.CategoryRepository) error {
	for _, c := range defaultCategories {
		err := repo.Create(ctx, &c)
		switch {
		case errors.Is(err, catalog.ErrSlugTaken):
			slog.Info("category exists", slog.String("slug", c.Slug))
		case err != nil:
			return errors.Wrapf(err, "create category %s", c.Slug)
		default:
			slog.Info("created category", slog.String("slug", c.Slug))
		}
	}
	return nil
}

func seedAdmin(ctx context.Context, repo admin.UserRepository, username, password string) error {
	hash, err := admin.HashPassword(password)
	if err != nil {
		return err
	}
	u := &admin.User{Username: username, PasswordHash: hash}
	if err := repo.Upsert(ctx, u); err != nil {
		return errors.Wrapf(err, "upsert admin %s", username)
	}

	slog.Info("upserted admin user", slog.String("username", username))
	return nil
}

func seedCoupons(ctx context.Context, repo coupon.Repository) error {
	for _, c := range sampleCoupons() {
		if err := c.Validate(); err != nil {
			return errors.Wrapf(err, "coupon %s", c.Code)
		}
		if err := repo.Upsert(ctx, &c); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}

		slog.Info("upserted coupon", slog.String("code", c.Code), slog.Int("used", c.UsedCount))
	}
	return nil
}

func seedProducts(ctx context.Context, repo catalog.ProductRepository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, raw := range products {
		p := raw.toProduct()
		if err := p.Validate(); err != nil {
			return errors.Wrapf(err, "product %s", p.Slug)
		}

		if err := upsertProduct(ctx, repo, &p); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.Slug)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("slug", p.Slug))
	}
	return nil
}

func upsertProduct(ctx context.Context, repo catalog.ProductRepository, p *catalog.Product) error {
	err := repo.Create(ctx, p)
	if !errors.Is(err, catalog.ErrSlugTaken) {
		return err
	}

	existing, err := repo.GetBySlug(ctx, p.Slug)
	if err != nil {
		return errors.Wrap(err, "get existing")
	}
	p.ID = existing.ID
	return repo.Update(ctx, p)
}
