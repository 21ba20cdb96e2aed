package server

import (
	"context"

	"github.com/fxnlabs/kernel-jit/internal/gpu"
	"github.com/fxnlabs/kernel-jit/internal/jit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ProvideRuntimeCache returns an fx constructor for a *jit.RuntimeCache backed
// by a driver the app owns. The driver is cleaned up on stop, after every hook
// registered by the cache's dependents.
func ProvideRuntimeCache(newDriver func(*zap.Logger) gpu.Driver, opts ...jit.Option) func(fx.Lifecycle, *zap.Logger) *jit.RuntimeCache {
	return func(lc fx.Lifecycle, logger *zap.Logger) *jit.RuntimeCache {
		log := logger.Named("gpu")
		driver := newDriver(log)
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				if err := driver.Cleanup(); err != nil {
					log.Warn("Failed to clean up GPU driver", zap.String("driver", driver.Name()), zap.Error(err))
					return err
				}
				return nil
			},
		})
		return jit.NewRuntimeCache(append(opts, jit.WithDriver(driver))...)
	}
}
