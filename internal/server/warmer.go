// Package server exposes warmed kernel runtimes over HTTP for monitoring.
package server

import (
	"errors"

	"github.com/fxnlabs/kernel-jit/internal/config"
	"github.com/fxnlabs/kernel-jit/internal/jit"
	"go.uber.org/zap"
)

// Warmer loads the configured artifact directories at startup and owns the
// resulting runtimes until Close.
type Warmer struct {
	cache    *jit.RuntimeCache
	paths    []string
	runtimes []*jit.Runtime
	logger   *zap.Logger
}

func NewWarmer(cfg *config.Config, cache *jit.RuntimeCache, logger *zap.Logger) *Warmer {
	return &Warmer{
		cache:  cache,
		paths:  cfg.Serve.Artifacts,
		logger: logger.Named("warmer"),
	}
}

// Warm loads every configured artifact. It stops at the first failure,
// closing what it already loaded.
func (w *Warmer) Warm() error {
	for _, path := range w.paths {
		rt, ok := w.cache.Get(path, nil, "", nil, true)
		if !ok {
			err := &jit.Error{Kind: jit.ErrInvalidArtifact, Op: "warm", Path: path, Detail: "not a directory containing " + jit.ArtifactFile}
			return errors.Join(err, w.Close())
		}
		if err := rt.Load(); err != nil {
			return errors.Join(err, w.Close())
		}
		w.runtimes = append(w.runtimes, rt)
		w.logger.Info("Warmed kernel runtime", zap.String("path", path), zap.String("kernel", rt.KernelName()))
	}
	return nil
}

// Runtimes returns the runtimes loaded by Warm.
func (w *Warmer) Runtimes() []*jit.Runtime { return w.runtimes }

// Close unloads every warmed runtime and reports all failures.
func (w *Warmer) Close() error {
	var errs []error
	for _, rt := range w.runtimes {
		if err := rt.Close(); err != nil {
			w.logger.Error("Failed to close runtime", zap.String("path", rt.Path()), zap.Error(err))
			errs = append(errs, err)
		}
	}
	w.runtimes = nil
	return errors.Join(errs...)
}
