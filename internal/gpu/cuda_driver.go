//go:build cuda
// +build cuda

package gpu

/*
#cgo LDFLAGS: -lcuda
#include <cuda.h>
#include <stdlib.h>
#include <string.h>

static CUresult jit_init(CUdevice* dev, CUcontext* ctx, int* retained) {
	*retained = 0;
	CUresult res = cuInit(0);
	if (res != CUDA_SUCCESS) {
		return res;
	}
	res = cuCtxGetCurrent(ctx);
	if (res == CUDA_SUCCESS && *ctx != NULL) {
		return cuCtxGetDevice(dev);
	}
	res = cuDeviceGet(dev, 0);
	if (res != CUDA_SUCCESS) {
		return res;
	}
	res = cuDevicePrimaryCtxRetain(ctx, *dev);
	if (res == CUDA_SUCCESS) {
		*retained = 1;
	}
	return res;
}

static CUresult jit_library_load(CUlibrary* lib, const char* path) {
	return cuLibraryLoadFromFile(lib, path, NULL, NULL, 0, NULL, NULL, 0);
}

static CUresult jit_launch(CUcontext ctx, CUdevice dev, CUkernel kernel,
		unsigned int gx, unsigned int gy, unsigned int gz,
		unsigned int bx, unsigned int by, unsigned int bz,
		unsigned int cx, unsigned int cy, unsigned int cz,
		unsigned int smem, CUstream stream, void** params) {
	CUresult res = cuCtxSetCurrent(ctx);
	if (res != CUDA_SUCCESS) {
		return res;
	}
	if (smem > 0) {
		res = cuKernelSetAttribute(CU_FUNC_ATTRIBUTE_MAX_DYNAMIC_SHARED_SIZE_BYTES, (int)smem, kernel, dev);
		if (res != CUDA_SUCCESS) {
			return res;
		}
	}

	CUlaunchConfig config;
	CUlaunchAttribute attr;
	memset(&config, 0, sizeof(config));
	config.gridDimX = gx;
	config.gridDimY = gy;
	config.gridDimZ = gz;
	config.blockDimX = bx;
	config.blockDimY = by;
	config.blockDimZ = bz;
	config.sharedMemBytes = smem;
	config.hStream = stream;
	if (cx * cy * cz > 1) {
		memset(&attr, 0, sizeof(attr));
		attr.id = CU_LAUNCH_ATTRIBUTE_CLUSTER_DIMENSION;
		attr.value.clusterDim.x = cx;
		attr.value.clusterDim.y = cy;
		attr.value.clusterDim.z = cz;
		config.attrs = &attr;
		config.numAttrs = 1;
	}
	return cuLaunchKernelEx(&config, (CUfunction)kernel, params, NULL);
}
*/
import "C"
import (
	"unsafe"

	"go.uber.org/zap"
)

// paramAlign covers CUtensorMap, the most strictly aligned parameter type.
const paramAlign = 64

// CUDADriver implements Driver on top of the CUDA driver API (libcuda).
type CUDADriver struct {
	logger    *zap.Logger
	device    C.CUdevice
	context   C.CUcontext
	retained  bool
	available bool
}

// NewCUDADriver initializes the driver API and binds to the calling thread's
// current context, or retains the primary context of device 0 if there is
// none.
func NewCUDADriver(logger *zap.Logger) (*CUDADriver, error) {
	d := &CUDADriver{logger: logger}

	var retained C.int
	if err := CheckStatus("cuInit", Status(C.jit_init(&d.device, &d.context, &retained))); err != nil {
		return nil, err
	}
	d.retained = retained != 0
	d.available = true

	logger.Debug("CUDA driver initialized",
		zap.Int("device", int(d.device)),
		zap.Bool("retained_primary_context", d.retained))
	return d, nil
}

func (d *CUDADriver) Name() string { return "cuda" }

func (d *CUDADriver) IsAvailable() bool { return d.available }

// LoadLibrary implements Driver.
func (d *CUDADriver) LoadLibrary(path string) (Library, error) {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	var lib C.CUlibrary
	if err := CheckStatus("cuLibraryLoadFromFile", Status(C.jit_library_load(&lib, cPath))); err != nil {
		return 0, err
	}
	return Library(uintptr(unsafe.Pointer(lib))), nil
}

// GetKernel implements Driver.
func (d *CUDADriver) GetKernel(lib Library, name string) (Kernel, error) {
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))

	var kernel C.CUkernel
	res := C.cuLibraryGetKernel(&kernel, cLibrary(lib), cName)
	if err := CheckStatus("cuLibraryGetKernel", Status(res)); err != nil {
		return 0, err
	}
	return Kernel(uintptr(unsafe.Pointer(kernel))), nil
}

// UnloadLibrary implements Driver.
func (d *CUDADriver) UnloadLibrary(lib Library) error {
	return CheckStatus("cuLibraryUnload", Status(C.cuLibraryUnload(cLibrary(lib))))
}

// Launch implements Launcher. Parameters are copied to C memory so the
// driver never sees Go pointers.
func (d *CUDADriver) Launch(k Kernel, cfg LaunchConfig, params [][]byte) error {
	var (
		argv   *unsafe.Pointer
		blocks []unsafe.Pointer
	)
	if len(params) > 0 {
		argv = (*unsafe.Pointer)(C.malloc(C.size_t(len(params)) * C.size_t(unsafe.Sizeof(uintptr(0)))))
		defer C.free(unsafe.Pointer(argv))

		slots := unsafe.Slice(argv, len(params))
		for i, p := range params {
			size := (len(p) + paramAlign - 1) / paramAlign * paramAlign
			if size == 0 {
				size = paramAlign
			}
			block := C.aligned_alloc(paramAlign, C.size_t(size))
			if block == nil {
				for _, b := range blocks {
					C.free(b)
				}
				return CheckStatus("aligned_alloc", StatusOutOfMemory)
			}
			blocks = append(blocks, block)
			if len(p) > 0 {
				C.memcpy(block, unsafe.Pointer(&p[0]), C.size_t(len(p)))
			}
			slots[i] = block
		}
		defer func() {
			for _, b := range blocks {
				C.free(b)
			}
		}()
	}

	grid, block, cluster := cfg.Grid.Normalize(), cfg.Block.Normalize(), cfg.Cluster.Normalize()
	res := C.jit_launch(d.context, d.device, cKernel(k),
		C.uint(grid.X), C.uint(grid.Y), C.uint(grid.Z),
		C.uint(block.X), C.uint(block.Y), C.uint(block.Z),
		C.uint(cluster.X), C.uint(cluster.Y), C.uint(cluster.Z),
		C.uint(cfg.SharedMemBytes), C.CUstream(unsafe.Pointer(uintptr(cfg.Stream))), argv)
	return CheckStatus("cuLaunchKernelEx", Status(res))
}

// Cleanup releases the primary context if this driver retained it.
func (d *CUDADriver) Cleanup() error {
	if !d.retained {
		return nil
	}
	d.logger.Debug("Releasing CUDA primary context")
	if err := CheckStatus("cuDevicePrimaryCtxRelease", Status(C.cuDevicePrimaryCtxRelease(d.device))); err != nil {
		return err
	}
	d.retained = false
	d.available = false
	return nil
}

func cLibrary(lib Library) C.CUlibrary {
	return C.CUlibrary(unsafe.Pointer(uintptr(lib)))
}

func cKernel(k Kernel) C.CUkernel {
	return C.CUkernel(unsafe.Pointer(uintptr(k)))
}
