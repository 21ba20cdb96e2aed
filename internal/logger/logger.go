package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the JSON production logger at the given verbosity.
func New(verbosity string) (*zap.Logger, error) {
	return build(zap.NewProductionConfig(), verbosity)
}

// NewConsole builds a human readable logger for interactive commands.
func NewConsole(verbosity string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true
	return build(config, verbosity)
}

// OrNop returns log, or a no-op logger if log is nil.
func OrNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

func build(config zap.Config, verbosity string) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(verbosity)
	if err != nil {
		return nil, err
	}
	config.Level = level
	return config.Build()
}
