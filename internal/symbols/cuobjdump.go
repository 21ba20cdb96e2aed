package symbols

import (
	"bytes"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fxnlabs/kernel-jit/internal/logger"
	"github.com/fxnlabs/kernel-jit/internal/metrics"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ToolError is a cuobjdump run that exited non-zero or could not start.
type ToolError struct {
	Command  []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	msg := strings.Join(e.Command, " ")
	if e.ExitCode >= 0 {
		msg += " exited with status " + strconv.Itoa(e.ExitCode)
	} else {
		msg += " failed"
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	if e.Err != nil && e.ExitCode < 0 {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

// Cuobjdump runs `<cudaHome>/bin/cuobjdump -symbols <path>`.
type Cuobjdump struct {
	Executable string
	logger     *zap.Logger
}

// NewCuobjdump locates cuobjdump under cudaHome. An empty cudaHome falls back
// to whatever cuobjdump is on PATH.
func NewCuobjdump(cudaHome string, log *zap.Logger) *Cuobjdump {
	executable := "cuobjdump"
	if cudaHome != "" {
		executable = filepath.Join(cudaHome, "bin", "cuobjdump")
	}
	return &Cuobjdump{Executable: executable, logger: logger.OrNop(log)}
}

// Inspect implements Inspector. It blocks until the tool exits.
func (c *Cuobjdump) Inspect(path string) (string, error) {
	command := []string{c.Executable, "-symbols", path}
	cmd := exec.Command(command[0], command[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.Debug("Inspecting device binary", zap.Strings("command", command))
	err := cmd.Run()
	metrics.SymbolInspections.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		toolErr := &ToolError{Command: command, ExitCode: -1, Stderr: stderr.String(), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			toolErr.ExitCode = exitErr.ExitCode()
		}
		return "", toolErr
	}
	return stdout.String(), nil
}
