//go:build cuda
// +build cuda

package gpu

import (
	"go.uber.org/zap"
)

// NewDriver returns the CUDA driver, or an unavailable driver if no device
// could be initialized.
func NewDriver(logger *zap.Logger) Driver {
	driver, err := NewCUDADriver(logger)
	if err != nil {
		logger.Warn("CUDA device not available", zap.Error(err))
		return &unavailableDriver{reason: err.Error()}
	}
	logger.Info("Using CUDA driver")
	return driver
}
