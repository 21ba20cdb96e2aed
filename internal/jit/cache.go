package jit

import (
	"sort"

	"github.com/fxnlabs/kernel-jit/internal/launch"
	"github.com/fxnlabs/kernel-jit/internal/metrics"
	"go.uber.org/zap"
)

// RuntimeCache maps artifact directories to Runtimes. Entries live as long as
// the cache; there is no eviction. The cache does not own its Runtimes and
// never closes them.
type RuntimeCache struct {
	entries map[string]*Runtime
	opts    options
	rtOpts  []Option
	logger  *zap.Logger
}

// NewRuntimeCache returns an empty cache. opts are applied to every Runtime
// the cache constructs.
func NewRuntimeCache(opts ...Option) *RuntimeCache {
	o := newOptions(opts)
	return &RuntimeCache{
		entries: make(map[string]*Runtime),
		opts:    o,
		// Pin the resolved driver so every runtime shares it.
		rtOpts: append(append([]Option(nil), opts...), WithDriver(o.driver)),
		logger: o.logger.Named("cache"),
	}
}

// Get returns the Runtime registered for path. If there is none and the cache
// is enabled (forceEnableCache, or DG_JIT_DISABLE_CACHE unset), a valid
// artifact at path is wrapped in a new Runtime of family and registered.
// Otherwise it reports false and the caller is expected to generate the
// artifact and retry.
//
// name and args are only used for the DG_JIT_DEBUG / DG_PRINT_CONFIGS report.
func (c *RuntimeCache) Get(path string, family Family, name string, args *launch.Args, forceEnableCache bool) (*Runtime, bool) {
	if rt, ok := c.entries[path]; ok {
		metrics.CacheLookups.WithLabelValues(metrics.LookupHit).Inc()
		return rt, true
	}

	flags := c.opts.flags()
	useCache := forceEnableCache || !flags.DisableCache.On()
	if !useCache || !IsPathValid(path) {
		metrics.CacheLookups.WithLabelValues(metrics.LookupMiss).Inc()
		return nil, false
	}

	if name != "" && flags.ReportConfigs() {
		c.logger.Info("Put kernel into runtime cache",
			zap.String("kernel", name),
			zap.Stringer("args", args))
	}

	rt, err := NewRuntime(path, family, c.rtOpts...)
	if err != nil {
		// The directory changed between the check and the construction.
		c.logger.Warn("Failed to create runtime", zap.String("path", path), zap.Error(err))
		metrics.CacheLookups.WithLabelValues(metrics.LookupMiss).Inc()
		return nil, false
	}
	c.entries[path] = rt
	metrics.CacheLookups.WithLabelValues(metrics.LookupDisk).Inc()
	return rt, true
}

// Set registers rt under path, replacing any previous entry.
func (c *RuntimeCache) Set(path string, rt *Runtime) {
	c.entries[path] = rt
}

func (c *RuntimeCache) Len() int { return len(c.entries) }

// Paths returns the registered directories in lexical order.
func (c *RuntimeCache) Paths() []string {
	paths := make([]string, 0, len(c.entries))
	for p := range c.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// GetOrGenerate returns a Runtime for args, generating the artifact when the
// cache has none. Families implementing Locator are looked up before
// generating; after generating, the new directory is trusted regardless of
// DG_JIT_DISABLE_CACHE.
func (c *RuntimeCache) GetOrGenerate(family Family, name string, args *launch.Args) (*Runtime, error) {
	if locator, ok := family.(Locator); ok {
		path, err := locator.Locate(args)
		if err != nil {
			return nil, err
		}
		if rt, ok := c.Get(path, family, name, args, false); ok {
			return rt, nil
		}
	}

	path, err := family.Generate(args)
	if err != nil {
		return nil, err
	}
	if rt, ok := c.Get(path, family, name, args, true); ok {
		return rt, nil
	}
	return nil, &Error{Kind: ErrInvalidArtifact, Op: "generate", Path: path, Detail: family.Name() + " produced no " + ArtifactFile}
}
