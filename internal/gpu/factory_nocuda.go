//go:build !cuda
// +build !cuda

package gpu

import (
	"go.uber.org/zap"
)

// NewDriver returns an unavailable driver: the binary was built without the
// cuda tag.
func NewDriver(logger *zap.Logger) Driver {
	logger.Info("No GPU driver (compiled without CUDA support)")
	return &unavailableDriver{reason: "compiled without CUDA support"}
}
