// Command coupon-import loads coupon definitions from gzip-compressed CSV
// exports into the coupons table.
//
// Each file holds rows of
//
//	code,discount_type,discount_value,min_order_value,max_uses,expires_at
//
// with an optional header row. Empty max_uses means unlimited and empty
// expires_at means the coupon never expires. When a code appears more than
// once across the inputs, the first occurrence in argument order wins.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/rastalife/storefront/internal/domain/coupon"
	"github.com/rastalife/storefront/internal/repository"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	progressEvery = 1000
)

// couponWriter is the subset of the coupon repository the import needs.
type couponWriter interface {
	Upsert(ctx context.Context, c *coupon.Coupon) error
}

// rowError points at a rejected CSV row.
type rowError struct {
	file string
	line int
	err  error
}

func (e *rowError) Error() string {
	return e.file + ":" + strconv.Itoa(e.line) + ": " + e.err.Error()
}

func (e *rowError) Unwrap() error { return e.err }

// fileResult holds the coupons parsed from one file, in file order.
type fileResult struct {
	coupons []coupon.Coupon
	skipped []error
}

func main() {
	var (
		databaseURL string
		strict      bool
		dryRun      bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.BoolVar(&strict, "strict", false, "fail on the first invalid row instead of skipping it")
	flag.BoolVar(&dryRun, "dry-run", false, "parse and deduplicate without writing to the database")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		slog.Error("usage: coupon-import [flags] coupons1.csv.gz [coupons2.csv.gz ...]")
		os.Exit(2)
	}

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, files, databaseURL, strict, dryRun); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed successfully")
}

func run(ctx context.Context, files []string, databaseURL string, strict, dryRun bool) error {
	slog.Info("parsing coupon files", slog.Int("files", len(files)))

	results, err := parseFiles(ctx, files, strict)
	if err != nil {
		return errors.Wrap(err, "parse files")
	}

	var skipped int
	for _, r := range results {
		for _, err := range r.skipped {
			slog.Warn("skipped row", slog.String("error", err.Error()))
		}
		skipped += len(r.skipped)
	}

	coupons, duplicates := dedupe(results)
	slog.Info("coupons parsed",
		slog.Int("unique", len(coupons)),
		slog.Int("duplicates", duplicates),
		slog.Int("skipped", skipped),
	)

	if dryRun || len(coupons) == 0 {
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeCoupons(ctx, repository.NewCouponRepository(pool), coupons); err != nil {
		return errors.Wrap(err, "write coupons to database")
	}
	return nil
}

// parseFiles reads every file concurrently. Results keep argument order.
func parseFiles(ctx context.Context, files []string, strict bool) ([]fileResult, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			r, err := parseFile(ctx, path, strict)
			if err != nil {
				return errors.Wrapf(err, "file %s", path)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func parseFile(ctx context.Context, path string, strict bool) (fileResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return fileResult{}, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return fileResult{}, errors.Wrap(err, "create gzip reader")
	}
	defer func() { _ = gz.Close() }()

	return parseCSV(ctx, path, gz, strict, time.Now())
}

func parseCSV(ctx context.Context, name string, r io.Reader, strict bool, now time.Time) (fileResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var res fileResult
	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, errors.Wrapf(err, "read line %d", line)
		}
		if line == 1 && isHeader(rec) {
			continue
		}

		c, err := parseRecord(rec, now)
		if err != nil {
			rowErr := &rowError{file: name, line: line, err: err}
			if strict {
				return res, rowErr
			}
			res.skipped = append(res.skipped, rowErr)
			continue
		}
		res.coupons = append(res.coupons, c)
	}
	return res, nil
}

func isHeader(rec []string) bool {
	return len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "code")
}

// parseRecord turns one CSV row into a validated coupon. Coupons that already
// expired are rejected.
func parseRecord(rec []string, now time.Time) (coupon.Coupon, error) {
	if len(rec) < 3 {
		return coupon.Coupon{}, errors.Errorf("want at least 3 columns, got %d", len(rec))
	}
	field := func(i int) string {
		if i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	c := coupon.Coupon{
		Code:          coupon.NormalizeCode(field(0)),
		DiscountType:  coupon.DiscountType(strings.ToLower(field(1))),
		MinOrderValue: decimal.Zero,
		Active:        true,
	}

	value, err := decimal.NewFromString(field(2))
	if err != nil {
		return coupon.Coupon{}, errors.Errorf("invalid discount_value %q", field(2))
	}
	c.Value = value

	if raw := field(3); raw != "" {
		minimum, err := decimal.NewFromString(raw)
		if err != nil {
			return coupon.Coupon{}, errors.Errorf("invalid min_order_value %q", raw)
		}
		c.MinOrderValue = minimum
	}
	if raw := field(4); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return coupon.Coupon{}, errors.Errorf("invalid max_uses %q", raw)
		}
		c.MaxUses = &n
	}
	if raw := field(5); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return coupon.Coupon{}, errors.Errorf("invalid expires_at %q", raw)
		}
		if !t.After(now) {
			return coupon.Coupon{}, errors.Errorf("coupon %s expired at %s", c.Code, raw)
		}
		c.ExpiresAt = &t
	}

	if err := c.Validate(); err != nil {
		return coupon.Coupon{}, err
	}
	return c, nil
}

// dedupe keeps the first occurrence of every code. The bloom filter answers
// most "never seen" lookups so the exact set is only consulted on a hit.
func dedupe(results []fileResult) ([]coupon.Coupon, int) {
	filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	seen := make(map[string]struct{})

	var (
		out        []coupon.Coupon
		duplicates int
	)
	for _, r := range results {
		for _, c := range r.coupons {
			if filter.TestString(c.Code) {
				if _, dup := seen[c.Code]; dup {
					duplicates++
					continue
				}
			}
			filter.AddString(c.Code)
			seen[c.Code] = struct{}{}
			out = append(out, c)
		}
	}
	return out, duplicates
}

// writeCoupons upserts coupons one by one. Usage counts of existing coupons
// are preserved by the upsert.
func writeCoupons(ctx context.Context, w couponWriter, coupons []coupon.Coupon) error {
	slog.Info("writing coupons to database", slog.Int("count", len(coupons)))

	for i := range coupons {
		if err := w.Upsert(ctx, &coupons[i]); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", coupons[i].Code)
		}
		if (i+1)%progressEvery == 0 || i+1 == len(coupons) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(coupons)))
		}
	}
	return nil
}
