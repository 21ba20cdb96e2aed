package gpu

import "fmt"

// Status is a CUDA driver API result code (CUresult).
type Status int

const (
	StatusSuccess              Status = 0
	StatusInvalidValue         Status = 1
	StatusOutOfMemory          Status = 2
	StatusNotInitialized       Status = 3
	StatusDeinitialized        Status = 4
	StatusNoDevice             Status = 100
	StatusInvalidDevice        Status = 101
	StatusInvalidImage         Status = 200
	StatusInvalidContext       Status = 201
	StatusNoBinaryForGPU       Status = 209
	StatusInvalidSource        Status = 300
	StatusFileNotFound         Status = 301
	StatusInvalidHandle        Status = 400
	StatusNotFound             Status = 500
	StatusLaunchOutOfResources Status = 701
	StatusLaunchFailed         Status = 719
	StatusNotSupported         Status = 801
	StatusUnknown              Status = 999
)

var statusNames = map[Status]string{
	StatusSuccess:              "CUDA_SUCCESS",
	StatusInvalidValue:         "CUDA_ERROR_INVALID_VALUE",
	StatusOutOfMemory:          "CUDA_ERROR_OUT_OF_MEMORY",
	StatusNotInitialized:       "CUDA_ERROR_NOT_INITIALIZED",
	StatusDeinitialized:        "CUDA_ERROR_DEINITIALIZED",
	StatusNoDevice:             "CUDA_ERROR_NO_DEVICE",
	StatusInvalidDevice:        "CUDA_ERROR_INVALID_DEVICE",
	StatusInvalidImage:         "CUDA_ERROR_INVALID_IMAGE",
	StatusInvalidContext:       "CUDA_ERROR_INVALID_CONTEXT",
	StatusNoBinaryForGPU:       "CUDA_ERROR_NO_BINARY_FOR_GPU",
	StatusInvalidSource:        "CUDA_ERROR_INVALID_SOURCE",
	StatusFileNotFound:         "CUDA_ERROR_FILE_NOT_FOUND",
	StatusInvalidHandle:        "CUDA_ERROR_INVALID_HANDLE",
	StatusNotFound:             "CUDA_ERROR_NOT_FOUND",
	StatusLaunchOutOfResources: "CUDA_ERROR_LAUNCH_OUT_OF_RESOURCES",
	StatusLaunchFailed:         "CUDA_ERROR_LAUNCH_FAILED",
	StatusNotSupported:         "CUDA_ERROR_NOT_SUPPORTED",
	StatusUnknown:              "CUDA_ERROR_UNKNOWN",
}

// String renders the status as NAME (code).
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return fmt.Sprintf("%s (%d)", name, int(s))
	}
	return fmt.Sprintf("CUresult(%d)", int(s))
}
