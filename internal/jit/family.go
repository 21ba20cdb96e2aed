package jit

import (
	"github.com/fxnlabs/kernel-jit/internal/gpu"
	"github.com/fxnlabs/kernel-jit/internal/launch"
)

// Family is one kind of kernel (e.g. a GEMM shape class). It decides how an
// artifact is produced and how its kernel is launched; Runtime decides when.
type Family interface {
	Name() string

	// Generate produces the artifact directory for args and returns its path.
	Generate(args *launch.Args) (string, error)

	// Launch marshals args into a native launch of k.
	Launch(l gpu.Launcher, k gpu.Kernel, args *launch.Args) error
}

// Locator is implemented by families that can name the artifact directory
// for args without producing it. RuntimeCache.GetOrGenerate uses it to try
// the cache before generating.
type Locator interface {
	Locate(args *launch.Args) (string, error)
}

// UnimplementedFamily fails every hook with ErrUnsupported. Embed it and
// override the hooks a family supports.
type UnimplementedFamily struct {
	FamilyName string
}

func (f UnimplementedFamily) Name() string {
	if f.FamilyName == "" {
		return "unimplemented"
	}
	return f.FamilyName
}

func (f UnimplementedFamily) Generate(*launch.Args) (string, error) {
	return "", &Error{Kind: ErrUnsupported, Op: "generate", Detail: f.Name() + " does not implement Generate"}
}

func (f UnimplementedFamily) Launch(gpu.Launcher, gpu.Kernel, *launch.Args) error {
	return &Error{Kind: ErrUnsupported, Op: "launch", Detail: f.Name() + " does not implement Launch"}
}
