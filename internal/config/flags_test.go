package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearFlagEnv(t *testing.T) {
	for _, key := range []string{"DG_JIT_DEBUG", "DG_JIT_DISABLE_CACHE", "DG_PRINT_CONFIGS", "DG_JIT_CACHE_DIR", "CUDA_HOME", "CUDA_DIR"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadFlags(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		clearFlagEnv(t)
		flags, err := LoadFlags()
		require.NoError(t, err)
		assert.False(t, flags.Debug.On())
		assert.False(t, flags.DisableCache.On())
		assert.False(t, flags.PrintConfigs.On())
		assert.False(t, flags.ReportConfigs())
	})

	t.Run("integer switches", func(t *testing.T) {
		clearFlagEnv(t)
		t.Setenv("DG_JIT_DEBUG", "1")
		t.Setenv("DG_JIT_DISABLE_CACHE", "2")
		t.Setenv("DG_PRINT_CONFIGS", "0")
		flags, err := LoadFlags()
		require.NoError(t, err)
		assert.True(t, flags.Debug.On())
		assert.True(t, flags.DisableCache.On())
		assert.False(t, flags.PrintConfigs.On())
		assert.True(t, flags.ReportConfigs())
	})

	t.Run("boolean switches", func(t *testing.T) {
		clearFlagEnv(t)
		t.Setenv("DG_PRINT_CONFIGS", "true")
		flags, err := LoadFlags()
		require.NoError(t, err)
		assert.True(t, flags.PrintConfigs.On())
		assert.True(t, flags.ReportConfigs())
	})

	t.Run("invalid switch", func(t *testing.T) {
		clearFlagEnv(t)
		t.Setenv("DG_JIT_DISABLE_CACHE", "sometimes")
		_, err := LoadFlags()
		assert.Error(t, err)

		flags := LoadFlagsOrDefault()
		assert.False(t, flags.DisableCache.On())
	})

	t.Run("invalid switch leaves the others set", func(t *testing.T) {
		clearFlagEnv(t)
		t.Setenv("DG_JIT_DISABLE_CACHE", "1")
		t.Setenv("DG_JIT_DEBUG", "yes")
		t.Setenv("DG_PRINT_CONFIGS", "1")
		t.Setenv("DG_JIT_CACHE_DIR", "/data/jit")

		flags, err := LoadFlags()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DG_JIT_DEBUG")
		assert.NotContains(t, err.Error(), "DG_JIT_DISABLE_CACHE")
		assert.False(t, flags.Debug.On())
		assert.True(t, flags.DisableCache.On())
		assert.True(t, flags.PrintConfigs.On())
		assert.Equal(t, "/data/jit", flags.CacheDir)

		assert.Equal(t, flags, LoadFlagsOrDefault())
	})

	t.Run("every invalid switch is reported", func(t *testing.T) {
		clearFlagEnv(t)
		t.Setenv("DG_JIT_DEBUG", "yes")
		t.Setenv("DG_PRINT_CONFIGS", "no")
		_, err := LoadFlags()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DG_JIT_DEBUG")
		assert.Contains(t, err.Error(), "DG_PRINT_CONFIGS")
	})
}

func TestResolveCacheDir(t *testing.T) {
	assert.Equal(t, "/data/jit", Flags{CacheDir: "/data/jit"}.ResolveCacheDir())
	assert.Equal(t, ".deep_gemm", filepath.Base(Flags{}.ResolveCacheDir()))
}

func TestResolveCUDAHome(t *testing.T) {
	assert.Equal(t, "/opt/cuda", Flags{CUDAHome: "/opt/cuda", CUDADir: "/other"}.ResolveCUDAHome())
	assert.Equal(t, "/other", Flags{CUDADir: "/other"}.ResolveCUDAHome())
}

func TestFindCUDAHome(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"cuda-12.4", "cuda-12.8", "cuda-13.0-nobin"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0755))
	}
	for _, dir := range []string{"cuda-12.4", "cuda-12.8"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir, "bin"), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(root, dir, "bin", "cuobjdump"), nil, 0755))
	}

	assert.Equal(t, filepath.Join(root, "cuda-12.8"), findCUDAHome(root))
	assert.Equal(t, "", findCUDAHome(filepath.Join(root, "missing")))

	require.NoError(t, os.MkdirAll(filepath.Join(root, "cuda", "bin"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "cuda", "bin", "cuobjdump"), nil, 0755))
	assert.Equal(t, filepath.Join(root, "cuda"), findCUDAHome(root))
}
