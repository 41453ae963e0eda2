package reconciler

import (
	"context"

	"github.com/milkroute/ledger/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval: cfg.ReconcileInterval,
		BatchSize:   cfg.ReconcileBatchSize,
	}.withDefaults()
}

// ProvideLocker returns nil when no redis address is configured; the
// reconciler then runs unlocked, which is fine for single-process setups.
func ProvideLocker(lc fx.Lifecycle, cfg config.Config) *Locker {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = ctx
			return client.Close()
		},
	})
	return NewLocker(client)
}

func runReconciler(lc fx.Lifecycle, r *Reconciler) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			_ = startCtx
			go r.RunForever(ctx)
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			_ = stopCtx
			cancel()
			return nil
		},
	})
}

var Module = fx.Module("reconciler",
	fx.Provide(ProvideConfig),
	fx.Provide(ProvideLocker),
	fx.Provide(New),
	fx.Invoke(runReconciler),
)
