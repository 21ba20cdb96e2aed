package jit

import "strings"

// Kind classifies JIT failures. Kinds are errors themselves, so callers test
// with errors.Is(err, jit.ErrNativeLoad).
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	// ErrInvalidArtifact: the directory or its binary is missing, malformed,
	// or does not export exactly one kernel.
	ErrInvalidArtifact Kind = "invalid artifact"
	// ErrNativeLoad: the driver failed to load, resolve or unload. The cause
	// carries the native status.
	ErrNativeLoad Kind = "native load failure"
	// ErrUnsupported: a kernel family hook has no implementation.
	ErrUnsupported Kind = "unsupported operation"
	// ErrToolFailure: the binary inspection tool failed or printed output
	// that could not be parsed.
	ErrToolFailure Kind = "tool failure"
	// ErrClosed: the runtime was used after Close.
	ErrClosed Kind = "runtime closed"
)

// Error is a classified JIT failure.
type Error struct {
	Kind   Kind
	Op     string
	Path   string
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("jit")
	if e.Op != "" {
		b.WriteByte(' ')
		b.WriteString(e.Op)
	}
	if e.Path != "" {
		b.WriteByte(' ')
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	b.WriteString(string(e.Kind))
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Is matches the error's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

func (e *Error) Unwrap() error { return e.Cause }
