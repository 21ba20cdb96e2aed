//go:build integration

package integration

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/fxnlabs/kernel-jit/internal/config"
	"github.com/fxnlabs/kernel-jit/internal/gpu/gputest"
	"github.com/fxnlabs/kernel-jit/internal/jit"
	"github.com/fxnlabs/kernel-jit/internal/kernels/gemm"
	"github.com/fxnlabs/kernel-jit/internal/launch"
	"github.com/fxnlabs/kernel-jit/internal/logger"
	"github.com/fxnlabs/kernel-jit/internal/server"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

const listing = `
Fatbin elf code:
================
arch = sm_90a
code version = [1,8]
host = linux
compile_size = 64bit

symbols:
STT_OBJECT       STB_LOCAL  .nv.constant0._ZN9deep_gemm12fp8_gemm_kernelILj7168ELj4096EEEvPfPij
STT_FUNC         STB_GLOBAL STO_ENTRY      _ZN9deep_gemm12fp8_gemm_kernelILj7168ELj4096EEEvPfPij
STT_FUNC         STB_GLOBAL U              vprintf
STT_FUNC         STB_LOCAL  U              __internal_trig_reduction_slowpathd
`

type listingInspector struct{ calls int }

func (l *listingInspector) Inspect(string) (string, error) {
	l.calls++
	return listing, nil
}

// touchBuilder stands in for the compiler.
type touchBuilder struct{ builds int }

func (b *touchBuilder) Build(dir string, _ *launch.Args) error {
	b.builds++
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, jit.ArtifactFile), []byte("\x7fELF"), 0644)
}

func gemmArgs(m int32) *launch.Args {
	return launch.NewArgs().
		Set("n", launch.Int32(7168)).
		Set("k", launch.Int32(4096)).
		Set(gemm.ArgNumSMs, launch.Int32(132)).
		Set(gemm.ArgNumThreads, launch.Int32(384)).
		Set(gemm.ArgSmemSize, launch.Int32(200000)).
		Set(gemm.ArgM, launch.Int32(m)).
		Set("scales_b", launch.Buffer{Ptr: 0x1000, DType: dtypes.Float32, Shape: []int{56, 32}}).
		Set("grouped_layout", launch.Buffer{DType: dtypes.Int32}).
		Set("tensor_map_a", launch.TensorMap{}).
		Set("tensor_map_b", launch.TensorMap{}).
		Set("tensor_map_scales_a", launch.TensorMap{}).
		Set("tensor_map_d", launch.TensorMap{})
}

func TestGemmPipeline_EndToEnd(t *testing.T) {
	cacheDir := t.TempDir()
	t.Setenv("DG_JIT_CACHE_DIR", cacheDir)
	t.Setenv("DG_JIT_DISABLE_CACHE", "0")
	t.Setenv("DG_PRINT_CONFIGS", "1")

	driver := gputest.New()
	inspector := &listingInspector{}
	builder := &touchBuilder{}
	family := &gemm.Family{Builder: builder}

	log, err := logger.New("debug")
	require.NoError(t, err)

	// Generate the artifact the server will warm.
	generator := jit.NewRuntimeCache(jit.WithDriver(driver), jit.WithInspector(inspector), jit.WithLogger(log))
	rt, err := generator.GetOrGenerate(family, gemm.Name, gemmArgs(4096))
	require.NoError(t, err)
	require.Equal(t, 1, builder.builds)
	assert.Equal(t, filepath.Join(cacheDir, "cache"), filepath.Dir(rt.Path()))

	cfg := config.Default()
	cfg.Serve.ListenAddress = "127.0.0.1:0"
	cfg.Serve.Artifacts = []string{rt.Path()}

	var cache *jit.RuntimeCache
	var warmer *server.Warmer
	var srv *server.Server
	app := fxtest.New(t,
		fx.Supply(cfg, log),
		fx.Provide(func(log *zap.Logger) *jit.RuntimeCache {
			return jit.NewRuntimeCache(jit.WithDriver(driver), jit.WithInspector(inspector), jit.WithLogger(log))
		}),
		server.Module,
		fx.Populate(&cache, &warmer, &srv),
	)
	app.RequireStart()

	require.Len(t, warmer.Runtimes(), 1)
	warmed := warmer.Runtimes()[0]
	assert.True(t, warmed.Loaded())

	// Lookups by the family reuse the warmed runtime without rebuilding.
	got, err := cache.GetOrGenerate(family, gemm.Name, gemmArgs(8192))
	require.NoError(t, err)
	assert.Same(t, warmed, got)
	assert.Equal(t, 1, builder.builds)

	// The warmed runtime was registered without a family; bind gemm to it.
	bound := jit.MustNewRuntime(warmed.Path(), family, jit.WithDriver(driver), jit.WithInspector(inspector))
	cache.Set(warmed.Path(), bound)
	require.NoError(t, bound.Call(gemmArgs(4096)))
	require.NoError(t, bound.Call(gemmArgs(8192)))
	require.Len(t, driver.Launches, 2)
	assert.Equal(t, uint32(132), driver.Launches[0].Config.Grid.X)

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `jit_kernel_launches_total{family="gemm_fp8_fp8_bf16_nt",result="success"}`)
	assert.Contains(t, string(body), "jit_runtime_load_duration_ms_bucket")

	app.RequireStop()
	assert.False(t, warmed.Loaded())
	require.NoError(t, bound.Close())
	require.NoError(t, rt.Close())
	assert.Zero(t, driver.Live())
}

func TestGemmPipeline_DisabledCache(t *testing.T) {
	t.Setenv("DG_JIT_CACHE_DIR", t.TempDir())
	t.Setenv("DG_JIT_DISABLE_CACHE", "1")

	driver := gputest.New()
	builder := &touchBuilder{}
	family := &gemm.Family{Builder: builder}

	// A fresh cache in each "process" rebuilds even though the artifact is
	// already on disk.
	for i := 1; i <= 2; i++ {
		cache := jit.NewRuntimeCache(jit.WithDriver(driver), jit.WithInspector(&listingInspector{}))
		rt, err := cache.GetOrGenerate(family, gemm.Name, gemmArgs(128))
		require.NoError(t, err)
		assert.Equal(t, i, builder.builds)
		require.NoError(t, rt.Call(gemmArgs(128)))
		require.NoError(t, rt.Close())
	}
	assert.Equal(t, 2, driver.Loads)
	assert.Zero(t, driver.Live())
}
