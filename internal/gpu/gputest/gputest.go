// Package gputest provides an in-memory gpu.Driver that counts native calls.
package gputest

import (
	"fmt"

	"github.com/fxnlabs/kernel-jit/internal/gpu"
)

// Launch records one call to Driver.Launch.
type Launch struct {
	Kernel gpu.Kernel
	Config gpu.LaunchConfig
	Params [][]byte
}

// Driver is a fake gpu.Driver. A non-zero *Status field makes the matching
// call fail with a gpu.StatusError.
type Driver struct {
	LoadStatus      gpu.Status
	GetKernelStatus gpu.Status
	UnloadStatus    gpu.Status
	LaunchStatus    gpu.Status

	Loads      int
	GetKernels int
	Unloads    int
	Launches   []Launch

	LoadedPaths []string
	KernelNames []string

	live    map[gpu.Library]string
	kernels map[gpu.Kernel]gpu.Library
	next    uintptr
	cleaned bool
}

// New returns a driver whose calls all succeed.
func New() *Driver {
	return &Driver{
		live:    make(map[gpu.Library]string),
		kernels: make(map[gpu.Kernel]gpu.Library),
		next:    0x1000,
	}
}

func (d *Driver) Name() string { return "fake" }

func (d *Driver) IsAvailable() bool { return !d.cleaned }

func (d *Driver) LoadLibrary(path string) (gpu.Library, error) {
	d.Loads++
	if err := gpu.CheckStatus("cuLibraryLoadFromFile", d.LoadStatus); err != nil {
		return 0, err
	}
	d.next += 0x10
	lib := gpu.Library(d.next)
	d.live[lib] = path
	d.LoadedPaths = append(d.LoadedPaths, path)
	return lib, nil
}

func (d *Driver) GetKernel(lib gpu.Library, name string) (gpu.Kernel, error) {
	d.GetKernels++
	if _, ok := d.live[lib]; !ok {
		return 0, gpu.CheckStatus("cuLibraryGetKernel", gpu.StatusInvalidHandle)
	}
	if err := gpu.CheckStatus("cuLibraryGetKernel", d.GetKernelStatus); err != nil {
		return 0, err
	}
	d.next += 0x10
	kernel := gpu.Kernel(d.next)
	d.kernels[kernel] = lib
	d.KernelNames = append(d.KernelNames, name)
	return kernel, nil
}

func (d *Driver) UnloadLibrary(lib gpu.Library) error {
	d.Unloads++
	if _, ok := d.live[lib]; !ok {
		return gpu.CheckStatus("cuLibraryUnload", gpu.StatusInvalidHandle)
	}
	if err := gpu.CheckStatus("cuLibraryUnload", d.UnloadStatus); err != nil {
		return err
	}
	delete(d.live, lib)
	for k, owner := range d.kernels {
		if owner == lib {
			delete(d.kernels, k)
		}
	}
	return nil
}

func (d *Driver) Launch(k gpu.Kernel, cfg gpu.LaunchConfig, params [][]byte) error {
	if _, ok := d.kernels[k]; !ok {
		return fmt.Errorf("launch of unknown kernel %#x: %w", uintptr(k), gpu.CheckStatus("cuLaunchKernelEx", gpu.StatusInvalidHandle))
	}
	copied := make([][]byte, len(params))
	for i, p := range params {
		copied[i] = append([]byte(nil), p...)
	}
	d.Launches = append(d.Launches, Launch{Kernel: k, Config: cfg, Params: copied})
	return gpu.CheckStatus("cuLaunchKernelEx", d.LaunchStatus)
}

func (d *Driver) Cleanup() error {
	d.cleaned = true
	return nil
}

// Live is the number of libraries loaded and not yet unloaded.
func (d *Driver) Live() int { return len(d.live) }
