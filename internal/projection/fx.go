package projection

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func runApplier(lc fx.Lifecycle, a *Applier, log *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			_ = startCtx
			go func() {
				defer close(done)
				if err := a.Run(ctx); err != nil && ctx.Err() == nil {
					log.Error("projection applier stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

var Module = fx.Module("projection",
	fx.Provide(NewProjection),
	fx.Provide(NewApplier),
	fx.Invoke(runApplier),
)
