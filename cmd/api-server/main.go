// Command api-server runs the storefront HTTP API: the public catalog, cart
// and checkout endpoints plus the admin back office.
package main

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	storefront "github.com/rastalife/storefront/internal/app"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := storefront.LoadConfig()
		if err != nil {
			return errors.Wrap(err, "config")
		}
		lg.Info("Configuration loaded",
			zap.String("addr", cfg.Addr),
			zap.String("rate_limit_backend", cfg.RateLimit.Backend),
			zap.Duration("cart_ttl", cfg.Redis.CartTTL),
			zap.Duration("session_ttl", cfg.Auth.SessionTTL),
		)
		return storefront.Run(ctx, lg, m, cfg)
	})
}
