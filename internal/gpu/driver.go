package gpu

import (
	"errors"
	"fmt"
)

// ErrDriverUnavailable is returned by every operation of a driver that could
// not reach a device.
var ErrDriverUnavailable = errors.New("GPU driver not available")

// Library is an opaque handle to a device binary loaded into the driver.
type Library uintptr

// Kernel is an opaque handle to one entry point inside a Library.
type Kernel uintptr

// Dim3 is a grid, block or cluster extent. Zero components are treated as 1.
type Dim3 struct {
	X, Y, Z uint32
}

// Normalize replaces zero components with 1.
func (d Dim3) Normalize() Dim3 {
	if d.X == 0 {
		d.X = 1
	}
	if d.Y == 0 {
		d.Y = 1
	}
	if d.Z == 0 {
		d.Z = 1
	}
	return d
}

// Volume is X*Y*Z after normalization.
func (d Dim3) Volume() uint64 {
	n := d.Normalize()
	return uint64(n.X) * uint64(n.Y) * uint64(n.Z)
}

func (d Dim3) String() string {
	n := d.Normalize()
	return fmt.Sprintf("(%d, %d, %d)", n.X, n.Y, n.Z)
}

// LaunchConfig describes how a kernel is dispatched.
type LaunchConfig struct {
	Grid           Dim3
	Block          Dim3
	Cluster        Dim3
	SharedMemBytes uint32
	// Stream is the raw CUstream handle; 0 is the default stream.
	Stream uint64
}

// Launcher dispatches a resolved kernel. Kernel families only see this part
// of the driver.
type Launcher interface {
	// Launch runs k with params, each one the raw little-endian bytes of a
	// kernel parameter in declaration order.
	Launch(k Kernel, cfg LaunchConfig, params [][]byte) error
}

// Driver is the native boundary used by the JIT runtime. Implementations are
// not required to be safe for concurrent use.
//
// Every handle returned by LoadLibrary must be released with UnloadLibrary
// exactly once. Kernels are owned by their library and become invalid once it
// is unloaded.
type Driver interface {
	Launcher

	// Name identifies the implementation, e.g. "cuda".
	Name() string

	// IsAvailable reports whether a device is reachable.
	IsAvailable() bool

	// LoadLibrary loads the device binary at path in a single call.
	LoadLibrary(path string) (Library, error)

	// GetKernel resolves the named entry point inside lib.
	GetKernel(lib Library, name string) (Kernel, error)

	// UnloadLibrary releases lib.
	UnloadLibrary(lib Library) error

	// Cleanup releases driver-level resources such as a retained context.
	Cleanup() error
}

// StatusError is a failed native call.
type StatusError struct {
	Op     string
	Status Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.Status)
}

// CheckStatus returns nil for StatusSuccess and a *StatusError otherwise.
func CheckStatus(op string, status Status) error {
	if status == StatusSuccess {
		return nil
	}
	return &StatusError{Op: op, Status: status}
}
