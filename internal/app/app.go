package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rastalife/storefront/internal/domain/admin"
	"github.com/rastalife/storefront/internal/domain/cart"
	"github.com/rastalife/storefront/internal/domain/coupon"
	"github.com/rastalife/storefront/internal/domain/order"
	"github.com/rastalife/storefront/internal/handler"
	"github.com/rastalife/storefront/internal/redisstore"
	"github.com/rastalife/storefront/internal/repository"
	"github.com/rastalife/storefront/pkg/health"
	"github.com/rastalife/storefront/pkg/httpmiddleware"
)

const serviceName = "storefront-api"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	applied, err := repository.RunMigrations(ctx, pool)
	if err != nil {
		return errors.Wrap(err, "run migrations")
	}
	lg.Info("Migrations applied", zap.Int("count", applied))

	// Redis for carts and idempotency records.
	rdb, err := redisstore.NewClient(ctx, cfg.Redis.URL)
	if err != nil {
		return errors.Wrap(err, "connect redis")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			lg.Warn("Close redis", zap.Error(err))
		}
	}()

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck("postgres", pool))
	healthSvc.AddReadinessCheck("redis", 2*time.Second, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second), health.FailureThreshold(5))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	productRepo := repository.NewProductRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool)
	adminRepo := repository.NewAdminUserRepository(pool)

	// Domain services.
	couponValidator := coupon.NewRepoValidator(couponRepo)
	orderService, err := order.NewService(settingsRepo, couponValidator, couponRepo, orderRepo,
		order.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}
	cartService := cart.NewService(productRepo, redisstore.NewCartStore(rdb, cfg.Redis.CartTTL))
	authenticator, err := admin.NewAuthenticator(adminRepo, admin.TokenConfig{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.Issuer,
		TTL:    cfg.Auth.SessionTTL,
	})
	if err != nil {
		return errors.Wrap(err, "create authenticator")
	}

	// HTTP handlers.
	h := handler.New(
		handler.Config{
			ImageBaseURL: cfg.ImageBaseURL,
			Idempotency: httpmiddleware.Idempotency(httpmiddleware.IdempotencyConfig{
				Store: redisstore.NewIdempotencyStore(rdb),
				TTL:   cfg.Redis.IdempotencyTTL,
			}),
			LoginLimit: httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
				Scope:   "login",
				Limiter: redisstore.NewRateLimiter(rdb, cfg.RateLimit.LoginMax, cfg.RateLimit.LoginWindow),
			}),
		},
		handler.Deps{
			Products:   productRepo,
			Categories: categoryRepo,
			Settings:   settingsRepo,
			Coupons:    couponRepo,
			Validator:  couponValidator,
			Carts:      cartService,
			Orders:     orderService,
			Auth:       authenticator,
			Dashboard:  admin.NewDashboard(productRepo, orderRepo),
		},
	)

	apiLimiter, err := newAPILimiter(ctx, cfg.RateLimit, rdb)
	if err != nil {
		return err
	}

	// Router: health endpoints + API routes on one server.
	router := chi.NewRouter()
	healthSvc.Routes(router)
	h.Routes(router)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(lg),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", httpmiddleware.IdempotencyHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
				Scope:   "api",
				Limiter: apiLimiter,
				Skip:    isProbe,
			}),
			httpmiddleware.RouteContext(),
			httpmiddleware.Instrument(serviceName, m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// newAPILimiter picks the global request limiter. The redis backend shares
// counts across replicas; memory keeps them per process.
func newAPILimiter(ctx context.Context, cfg RateLimitConfig, rdb redis.Cmdable) (httpmiddleware.Limiter, error) {
	switch cfg.Backend {
	case "memory":
		sw := httpmiddleware.NewSlidingWindow(cfg.Max, cfg.Window)
		sw.StartEviction(ctx)
		return sw, nil
	case "redis":
		return redisstore.NewRateLimiter(rdb, cfg.Max, cfg.Window), nil
	default:
		return nil, errors.Errorf("unknown rate limit backend %q", cfg.Backend)
	}
}

func isProbe(r *http.Request) bool {
	return r.URL.Path == "/livez" || r.URL.Path == "/readyz"
}
