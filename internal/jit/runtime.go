// Package jit loads precompiled device binaries on demand and caches the
// resulting runtimes by artifact directory.
//
// A Runtime is bound to one artifact directory. Its first Call loads
// kernel.cubin into the driver, finds the single kernel it exports and keeps
// both handles until Close. Runtimes and RuntimeCaches are not safe for
// concurrent use; callers serialize around Get and the first Call of a
// Runtime.
package jit

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/fxnlabs/kernel-jit/internal/gpu"
	"github.com/fxnlabs/kernel-jit/internal/launch"
	"github.com/fxnlabs/kernel-jit/internal/metrics"
	"github.com/fxnlabs/kernel-jit/internal/symbols"
	"github.com/janpfeifer/must"
	"go.uber.org/zap"
)

// ArtifactFile is the compiled binary every artifact directory must contain.
const ArtifactFile = "kernel.cubin"

// IsPathValid reports whether path is a directory containing ArtifactFile as
// a regular file. It never modifies the filesystem.
func IsPathValid(path string) bool {
	fi, err := os.Stat(path)
	if err != nil || !fi.IsDir() {
		return false
	}
	fi, err = os.Stat(filepath.Join(path, ArtifactFile))
	return err == nil && fi.Mode().IsRegular()
}

// Runtime owns at most one loaded library and the kernel resolved from it.
type Runtime struct {
	path   string
	family Family
	opts   options
	logger *zap.Logger

	// library and kernel are set together on first use.
	library    gpu.Library
	kernel     gpu.Kernel
	kernelName string
	loaded     bool
	closed     bool
}

// NewRuntime binds a Runtime to the artifact directory at path. Nothing is
// loaded until the first Call or Load.
func NewRuntime(path string, family Family, opts ...Option) (*Runtime, error) {
	if !IsPathValid(path) {
		return nil, &Error{Kind: ErrInvalidArtifact, Op: "open", Path: path, Detail: "not a directory containing " + ArtifactFile}
	}
	if family == nil {
		family = UnimplementedFamily{}
	}
	o := newOptions(opts)
	return &Runtime{
		path:   path,
		family: family,
		opts:   o,
		logger: o.logger.Named("runtime"),
	}, nil
}

// MustNewRuntime is NewRuntime that panics on an invalid path.
func MustNewRuntime(path string, family Family, opts ...Option) *Runtime {
	return must.M1(NewRuntime(path, family, opts...))
}

func (r *Runtime) Path() string { return r.path }

func (r *Runtime) Family() Family { return r.family }

// ArtifactPath is the binary loaded by this runtime.
func (r *Runtime) ArtifactPath() string { return filepath.Join(r.path, ArtifactFile) }

// Loaded reports whether the library and kernel are resident.
func (r *Runtime) Loaded() bool { return r.loaded }

// KernelName is the resolved symbol, empty before the first load.
func (r *Runtime) KernelName() string { return r.kernelName }

// Load performs the one-time load and symbol resolution. Later calls return
// nil without touching the driver.
func (r *Runtime) Load() error {
	if r.closed {
		return &Error{Kind: ErrClosed, Op: "load", Path: r.path}
	}
	if r.loaded {
		return nil
	}

	start := time.Now()
	artifact := r.ArtifactPath()
	lib, err := r.opts.driver.LoadLibrary(artifact)
	if err != nil {
		metrics.RuntimeLoads.WithLabelValues(metrics.ResultFailure).Inc()
		return &Error{Kind: ErrNativeLoad, Op: "load", Path: r.path, Detail: "failed to load library", Cause: err}
	}

	name, kernel, err := r.resolve(lib, artifact)
	if err != nil {
		metrics.RuntimeLoads.WithLabelValues(metrics.ResultFailure).Inc()
		if unloadErr := r.opts.driver.UnloadLibrary(lib); unloadErr != nil {
			r.logger.Error("Failed to unload library after resolution failure",
				zap.String("path", r.path), zap.Error(unloadErr))
			return errors.Join(err, &Error{Kind: ErrNativeLoad, Op: "unload", Path: r.path, Cause: unloadErr})
		}
		return err
	}

	r.library, r.kernel, r.kernelName, r.loaded = lib, kernel, name, true

	elapsed := float64(time.Since(start).Microseconds()) / 1e3
	metrics.RuntimeLoads.WithLabelValues(metrics.ResultSuccess).Inc()
	metrics.RuntimeLoadDuration.Observe(elapsed)
	metrics.LoadedRuntimes.Inc()
	if r.opts.flags().Debug.On() {
		r.logger.Info("Loaded JIT runtime",
			zap.String("path", r.path),
			zap.String("kernel", name),
			zap.Float64("elapsed_ms", elapsed))
	}
	return nil
}

func (r *Runtime) resolve(lib gpu.Library, artifact string) (string, gpu.Kernel, error) {
	listing, err := r.opts.symbolInspector().Inspect(artifact)
	if err != nil {
		return "", 0, &Error{Kind: ErrToolFailure, Op: "inspect", Path: artifact, Cause: err}
	}
	name, err := symbols.SelectKernel(listing)
	if errors.Is(err, symbols.ErrUnparseable) {
		return "", 0, &Error{Kind: ErrToolFailure, Op: "inspect", Path: artifact, Cause: err}
	}
	if err != nil {
		return "", 0, &Error{Kind: ErrInvalidArtifact, Op: "inspect", Path: artifact, Detail: "expected exactly one kernel", Cause: err}
	}

	kernel, err := r.opts.driver.GetKernel(lib, name)
	if err != nil {
		return "", 0, &Error{Kind: ErrNativeLoad, Op: "resolve", Path: r.path, Detail: "failed to get kernel " + name, Cause: err}
	}
	return name, kernel, nil
}

// Call loads the runtime if needed, then launches its kernel through the
// family with args.
func (r *Runtime) Call(args *launch.Args) error {
	if err := r.Load(); err != nil {
		return err
	}
	err := r.family.Launch(r.opts.driver, r.kernel, args)
	metrics.KernelLaunches.WithLabelValues(r.family.Name(), metrics.Result(err)).Inc()
	return err
}

// Close unloads the library if one was loaded. Only the first call does any
// work; a failed unload is reported and not retried.
func (r *Runtime) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if !r.loaded {
		return nil
	}

	lib := r.library
	r.library, r.kernel, r.loaded = 0, 0, false
	metrics.LoadedRuntimes.Dec()

	err := r.opts.driver.UnloadLibrary(lib)
	metrics.RuntimeUnloads.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return &Error{Kind: ErrNativeLoad, Op: "unload", Path: r.path, Detail: "failed to unload library", Cause: err}
	}
	r.logger.Debug("Unloaded JIT runtime", zap.String("path", r.path))
	return nil
}
