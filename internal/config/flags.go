package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Switch is an integer-valued environment toggle. Any non-zero value turns
// it on; "true"/"false" are accepted too.
type Switch int

// Decode implements envconfig.Decoder.
func (s *Switch) Decode(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		*s = 0
		return nil
	}
	if n, err := strconv.Atoi(value); err == nil {
		*s = Switch(n)
		return nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid switch value %q", value)
	}
	if b {
		*s = 1
	} else {
		*s = 0
	}
	return nil
}

func (s Switch) On() bool { return s != 0 }

// Flags are the environment switches recognized by the JIT runtime.
type Flags struct {
	Debug        Switch `ignored:"true"`
	DisableCache Switch `ignored:"true"`
	PrintConfigs Switch `ignored:"true"`
	CacheDir     string `envconfig:"DG_JIT_CACHE_DIR"`
	CUDAHome     string `envconfig:"CUDA_HOME"`
	CUDADir      string `envconfig:"CUDA_DIR"`
}

// switches are decoded one by one: envconfig.Process stops at the first bad
// field, and one malformed switch must not turn the others off.
var switches = []struct {
	key   string
	field func(*Flags) *Switch
}{
	{"DG_JIT_DEBUG", func(f *Flags) *Switch { return &f.Debug }},
	{"DG_JIT_DISABLE_CACHE", func(f *Flags) *Switch { return &f.DisableCache }},
	{"DG_PRINT_CONFIGS", func(f *Flags) *Switch { return &f.PrintConfigs }},
}

// LoadFlags reads the switches from the environment. A malformed switch is
// reported and left off; every other field is still filled in.
func LoadFlags() (Flags, error) {
	var flags Flags
	var errs []error
	if err := envconfig.Process("", &flags); err != nil {
		errs = append(errs, err)
	}
	for _, s := range switches {
		if err := s.field(&flags).Decode(os.Getenv(s.key)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.key, err))
		}
	}
	if len(errs) > 0 {
		return flags, fmt.Errorf("failed to load flags: %w", errors.Join(errs...))
	}
	return flags, nil
}

// LoadFlagsOrDefault is LoadFlags ignoring the error: malformed switches are
// off, the rest keep their values.
func LoadFlagsOrDefault() Flags {
	flags, _ := LoadFlags()
	return flags
}

// ReportConfigs reports whether kernel configurations should be printed
// when they enter a runtime cache.
func (f Flags) ReportConfigs() bool {
	return f.Debug.On() || f.PrintConfigs.On()
}

// ResolveCacheDir returns DG_JIT_CACHE_DIR, falling back to ~/.deep_gemm.
func (f Flags) ResolveCacheDir() string {
	if f.CacheDir != "" {
		return f.CacheDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".deep_gemm")
	}
	return filepath.Join(home, ".deep_gemm")
}

// ResolveCUDAHome returns CUDA_HOME, then CUDA_DIR, then the newest
// /usr/local/cuda* directory that ships cuobjdump. It returns "" if none
// is found.
func (f Flags) ResolveCUDAHome() string {
	if f.CUDAHome != "" {
		return f.CUDAHome
	}
	if f.CUDADir != "" {
		return f.CUDADir
	}
	return findCUDAHome("/usr/local")
}

func findCUDAHome(root string) string {
	if dir := filepath.Join(root, "cuda"); HasCuobjdump(dir) {
		return dir
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return ""
	}
	var candidate string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || !strings.HasPrefix(name, "cuda-") {
			continue
		}
		if !HasCuobjdump(filepath.Join(root, name)) {
			continue
		}
		// Take the last one in lexical order.
		if name > candidate {
			candidate = name
		}
	}
	if candidate == "" {
		return ""
	}
	return filepath.Join(root, candidate)
}

// HasCuobjdump checks whether dir/bin/cuobjdump exists.
func HasCuobjdump(dir string) bool {
	fi, err := os.Stat(filepath.Join(dir, "bin", "cuobjdump"))
	if err != nil {
		return false
	}
	return !fi.IsDir()
}
