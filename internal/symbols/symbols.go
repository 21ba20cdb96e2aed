// Package symbols lists the exported kernels of a compiled device binary by
// running cuobjdump and parsing its symbol table.
package symbols

import (
	"strings"

	"github.com/pkg/errors"
)

// FunctionMarker starts every function line of `cuobjdump -symbols`.
const FunctionMarker = "STT_FUNC"

// Denylist holds substrings of compiler-generated function symbols that are
// never kernel entry points: printf and assert shims, template instantiation
// thunks and runtime internals.
//
// Matching is by substring, so a kernel whose name contains one of these is
// dropped too.
var Denylist = []string{
	"vprintf",
	"__instantiate_kernel",
	"__internal",
	"__assertfail",
}

var (
	// ErrNoKernel means no candidate symbol survived filtering.
	ErrNoKernel = errors.New("no kernel symbol found")
	// ErrAmbiguousKernel means more than one candidate survived filtering.
	ErrAmbiguousKernel = errors.New("more than one kernel symbol found")
	// ErrUnparseable means a function line carried no symbol name.
	ErrUnparseable = errors.New("unparseable symbol line")
)

// Inspector produces the symbol listing of a device binary.
type Inspector interface {
	Inspect(path string) (string, error)
}

// IsNoise reports whether line matches the denylist.
func IsNoise(line string) bool {
	for _, name := range Denylist {
		if strings.Contains(line, name) {
			return true
		}
	}
	return false
}

// Functions returns the name of every function symbol in listing, noise
// included.
func Functions(listing string) ([]string, error) {
	return scan(listing, false)
}

// Candidates returns the function symbols of listing that are not noise.
func Candidates(listing string) ([]string, error) {
	return scan(listing, true)
}

func scan(listing string, dropNoise bool) ([]string, error) {
	var names []string
	for i, line := range strings.Split(listing, "\n") {
		line = strings.TrimRight(line, "\r")
		if !strings.HasPrefix(line, FunctionMarker) {
			continue
		}
		if dropNoise && IsNoise(line) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, errors.Wrapf(ErrUnparseable, "line %d: %q", i+1, line)
		}
		names = append(names, fields[len(fields)-1])
	}
	return names, nil
}

// SelectKernel returns the only candidate of listing.
func SelectKernel(listing string) (string, error) {
	names, err := Candidates(listing)
	if err != nil {
		return "", err
	}
	switch len(names) {
	case 1:
		return names[0], nil
	case 0:
		return "", ErrNoKernel
	default:
		return "", errors.Wrapf(ErrAmbiguousKernel, "candidates %v", names)
	}
}
