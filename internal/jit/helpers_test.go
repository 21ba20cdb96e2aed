package jit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fxnlabs/kernel-jit/internal/config"
	"github.com/fxnlabs/kernel-jit/internal/gpu"
	"github.com/fxnlabs/kernel-jit/internal/gpu/gputest"
	"github.com/fxnlabs/kernel-jit/internal/launch"
	"github.com/stretchr/testify/require"
)

const (
	kernelSymbol  = "_ZN9deep_gemm12fp8_gemm_kernelILj128ELj128EEEvPfPij"
	singleListing = `
symbols:
STT_SECTION      STB_LOCAL  .text._ZN9deep_gemm12fp8_gemm_kernelILj128ELj128EEEvPfPij
STT_FUNC         STB_GLOBAL STO_ENTRY      _ZN9deep_gemm12fp8_gemm_kernelILj128ELj128EEEvPfPij
STT_FUNC         STB_GLOBAL U              vprintf
STT_FUNC         STB_GLOBAL U              __assertfail
`
	ambiguousListing = `
symbols:
STT_FUNC         STB_GLOBAL STO_ENTRY      kernel_a
STT_FUNC         STB_GLOBAL STO_ENTRY      kernel_b
`
)

// fakeInspector returns a fixed listing and counts calls.
type fakeInspector struct {
	listing string
	err     error
	paths   []string
}

func (f *fakeInspector) Inspect(path string) (string, error) {
	f.paths = append(f.paths, path)
	return f.listing, f.err
}

// recordingFamily keeps a copy of the args of every launch.
type recordingFamily struct {
	UnimplementedFamily
	launches []*launch.Args
	kernels  []gpu.Kernel
	err      error
}

func newRecordingFamily() *recordingFamily {
	return &recordingFamily{UnimplementedFamily: UnimplementedFamily{FamilyName: "recording"}}
}

func (f *recordingFamily) Launch(l gpu.Launcher, k gpu.Kernel, args *launch.Args) error {
	f.launches = append(f.launches, args.Clone())
	f.kernels = append(f.kernels, k)
	if f.err != nil {
		return f.err
	}
	return l.Launch(k, gpu.LaunchConfig{Grid: gpu.Dim3{X: 1}, Block: gpu.Dim3{X: 128}}, nil)
}

// harness bundles the fakes behind one Runtime or RuntimeCache.
type harness struct {
	driver    *gputest.Driver
	inspector *fakeInspector
	flags     config.Flags
}

func newHarness() *harness {
	return &harness{
		driver:    gputest.New(),
		inspector: &fakeInspector{listing: singleListing},
	}
}

func (h *harness) options(extra ...Option) []Option {
	return append([]Option{
		WithDriver(h.driver),
		WithInspector(h.inspector),
		WithFlags(func() config.Flags { return h.flags }),
	}, extra...)
}

// makeArtifact creates a valid artifact directory under t.TempDir.
func makeArtifact(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "kernel.gemm.0123456789abcdef")
	writeArtifact(t, dir)
	return dir
}

func writeArtifact(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ArtifactFile), []byte("\x7fELF"), 0644))
}
