package jit

import (
	"sync"

	"github.com/fxnlabs/kernel-jit/internal/config"
	"github.com/fxnlabs/kernel-jit/internal/gpu"
	"github.com/fxnlabs/kernel-jit/internal/logger"
	"github.com/fxnlabs/kernel-jit/internal/symbols"
	"go.uber.org/zap"
)

// Option configures a Runtime or a RuntimeCache. Options given to a cache are
// applied to every Runtime it constructs.
type Option func(*options)

type options struct {
	driver    gpu.Driver
	inspector symbols.Inspector
	logger    *zap.Logger
	flags     func() config.Flags
}

// WithDriver sets the native driver. The default is a process-wide driver
// created on first use with the global zap logger; it is never cleaned up, so
// long-lived callers pass their own driver and call Cleanup on it.
func WithDriver(d gpu.Driver) Option {
	return func(o *options) { o.driver = d }
}

// WithInspector sets the symbol inspector. The default runs cuobjdump from
// the resolved CUDA home.
func WithInspector(i symbols.Inspector) Option {
	return func(o *options) { o.inspector = i }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithFlags replaces the environment switch source. It is called once per
// decision point, never cached.
func WithFlags(f func() config.Flags) Option {
	return func(o *options) { o.flags = f }
}

var (
	defaultDriverOnce sync.Once
	defaultDriver     gpu.Driver
)

func newOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logger.OrNop(o.logger)
	if o.flags == nil {
		o.flags = config.LoadFlagsOrDefault
	}
	if o.driver == nil {
		defaultDriverOnce.Do(func() {
			defaultDriver = gpu.NewDriver(zap.L().Named("gpu"))
		})
		o.driver = defaultDriver
	}
	return o
}

func (o *options) symbolInspector() symbols.Inspector {
	if o.inspector != nil {
		return o.inspector
	}
	return symbols.NewCuobjdump(o.flags().ResolveCUDAHome(), o.logger)
}
