// Package gemm is the FP8 x FP8 -> BF16 GEMM kernel family with NT layout.
package gemm

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"

	"github.com/fxnlabs/kernel-jit/internal/config"
	"github.com/fxnlabs/kernel-jit/internal/gpu"
	"github.com/fxnlabs/kernel-jit/internal/jit"
	"github.com/fxnlabs/kernel-jit/internal/launch"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// Name is the family name and the middle part of its artifact directories.
const Name = "gemm_fp8_fp8_bf16_nt"

// Launch configuration arguments.
const (
	ArgNumSMs          = "num_sms"
	ArgNumThreads      = "num_threads"
	ArgSmemSize        = "smem_size"
	ArgNumTMAMulticast = "num_tma_multicast"
	ArgStream          = "stream"
	ArgM               = "m"
)

// Params are the kernel parameters in declaration order.
var Params = []string{
	"scales_b",
	"grouped_layout",
	ArgM,
	"tensor_map_a",
	"tensor_map_b",
	"tensor_map_scales_a",
	"tensor_map_d",
}

// runtimeArgs vary per call and never select a different binary.
var runtimeArgs = map[string]bool{
	ArgM:      true,
	ArgStream: true,
	ArgNumSMs: true,
}

// Builder compiles the kernel for args into dir, leaving dir/kernel.cubin.
type Builder interface {
	Build(dir string, args *launch.Args) error
}

// Family implements jit.Family and jit.Locator.
type Family struct {
	Builder Builder
	// CacheDir defaults to DG_JIT_CACHE_DIR, then ~/.deep_gemm.
	CacheDir string
	// Flags defaults to config.LoadFlagsOrDefault.
	Flags func() config.Flags
}

var (
	_ jit.Family  = (*Family)(nil)
	_ jit.Locator = (*Family)(nil)
)

func (f *Family) Name() string { return Name }

func (f *Family) flags() config.Flags {
	if f.Flags != nil {
		return f.Flags()
	}
	return config.LoadFlagsOrDefault()
}

func (f *Family) cacheDir() string {
	if f.CacheDir != "" {
		return f.CacheDir
	}
	return f.flags().ResolveCacheDir()
}

// Locate returns <cacheDir>/cache/kernel.<name>.<key> for the compile-time
// scalars of args. It does not touch the filesystem.
func (f *Family) Locate(args *launch.Args) (string, error) {
	key, err := Key(args)
	if err != nil {
		return "", err
	}
	return filepath.Join(f.cacheDir(), "cache", "kernel."+Name+"."+key), nil
}

// Generate returns the artifact directory for args, building it when it does
// not hold a valid artifact yet. With DG_JIT_DISABLE_CACHE set it always
// builds, overwriting what is on disk.
func (f *Family) Generate(args *launch.Args) (string, error) {
	dir, err := f.Locate(args)
	if err != nil {
		return "", err
	}
	if jit.IsPathValid(dir) && !f.flags().DisableCache.On() {
		return dir, nil
	}
	if f.Builder == nil {
		return "", &jit.Error{Kind: jit.ErrUnsupported, Op: "generate", Path: dir, Detail: "no builder configured for " + Name}
	}
	if err := f.Builder.Build(dir, args); err != nil {
		return "", errors.Wrapf(err, "failed to build %s", dir)
	}
	return dir, nil
}

// Launch dispatches k on a grid of num_sms blocks of num_threads threads,
// with num_tma_multicast blocks per cluster.
func (f *Family) Launch(l gpu.Launcher, k gpu.Kernel, args *launch.Args) error {
	cfg, err := LaunchConfig(args)
	if err != nil {
		return err
	}
	params, err := args.Encode(Params...)
	if err != nil {
		return errors.Wrap(err, Name)
	}
	if err := l.Launch(k, cfg, params); err != nil {
		return errors.Wrapf(err, "failed to launch %s", Name)
	}
	return nil
}

// LaunchConfig derives the native launch configuration from args.
func LaunchConfig(args *launch.Args) (gpu.LaunchConfig, error) {
	var cfg gpu.LaunchConfig
	required := []struct {
		key string
		dst *uint32
	}{
		{ArgNumSMs, &cfg.Grid.X},
		{ArgNumThreads, &cfg.Block.X},
		{ArgSmemSize, &cfg.SharedMemBytes},
	}
	for _, r := range required {
		v, err := args.Uint32(r.key)
		if err != nil {
			return gpu.LaunchConfig{}, errors.Wrap(err, Name)
		}
		*r.dst = v
	}
	if cfg.Grid.X == 0 || cfg.Block.X == 0 {
		return gpu.LaunchConfig{}, errors.Errorf("%s: %s and %s must be positive", Name, ArgNumSMs, ArgNumThreads)
	}
	if _, err := args.Uint32(ArgM); err != nil {
		return gpu.LaunchConfig{}, errors.Wrap(err, Name)
	}

	cfg.Cluster.X = 1
	if args.Has(ArgNumTMAMulticast) {
		v, err := args.Uint32(ArgNumTMAMulticast)
		if err != nil {
			return gpu.LaunchConfig{}, errors.Wrap(err, Name)
		}
		cfg.Cluster.X = v
	}
	if args.Has(ArgStream) {
		s, err := args.Scalar(ArgStream)
		if err != nil {
			return gpu.LaunchConfig{}, errors.Wrap(err, Name)
		}
		stream, ok := s.Uint()
		if !ok {
			return gpu.LaunchConfig{}, errors.Wrapf(launch.ErrArgKind, "%s: %q must be unsigned", Name, ArgStream)
		}
		cfg.Stream = stream
	}
	cfg.Grid = cfg.Grid.Normalize()
	cfg.Block = cfg.Block.Normalize()
	cfg.Cluster = cfg.Cluster.Normalize()
	return cfg, nil
}

// Key hashes the compile-time scalars of args: every scalar except m, stream
// and num_sms. Buffers and tensor maps never take part.
func Key(args *launch.Args) (string, error) {
	fields := make(map[string]string)
	for _, k := range args.Keys() {
		if runtimeArgs[k] {
			continue
		}
		v, _ := args.Get(k)
		s, ok := v.(launch.Scalar)
		if !ok {
			continue
		}
		fields[k] = s.DType().String() + ":" + s.Render()
	}
	// Map keys are marshaled in sorted order.
	b, err := json.Marshal(struct {
		Name string            `json:"name"`
		Args map[string]string `json:"args"`
	}{Name, fields})
	if err != nil {
		return "", errors.Wrap(err, "failed to encode kernel key")
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:16], nil
}
