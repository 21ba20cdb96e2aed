package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fxnlabs/kernel-jit/internal/config"
	"github.com/fxnlabs/kernel-jit/internal/jit"
	"github.com/fxnlabs/kernel-jit/internal/kernels/gemm"
	"github.com/fxnlabs/kernel-jit/internal/launch"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

// cacheDir prefers jit.cacheDir from the config file over the environment.
func cacheDir(cfg *config.Config) string {
	if cfg.JIT.CacheDir != "" {
		return cfg.JIT.CacheDir
	}
	return config.LoadFlagsOrDefault().ResolveCacheDir()
}

type cacheEntry struct {
	Dir   string
	Valid bool
	Size  int64
}

// listCache returns the artifact directories under <root>/cache, sorted by
// name. A missing cache directory is empty.
func listCache(root string) ([]cacheEntry, error) {
	base := filepath.Join(root, "cache")
	entries, err := os.ReadDir(base)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", base)
	}
	var out []cacheEntry
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "kernel.") {
			continue
		}
		dir := filepath.Join(base, e.Name())
		entry := cacheEntry{Dir: dir, Valid: jit.IsPathValid(dir)}
		if fi, err := os.Stat(filepath.Join(dir, jit.ArtifactFile)); err == nil {
			entry.Size = fi.Size()
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dir < out[j].Dir })
	return out, nil
}

var scalarParsers = map[string]func(string) (launch.Scalar, error){
	"int32": func(s string) (launch.Scalar, error) {
		v, err := strconv.ParseInt(s, 0, 32)
		return launch.Int32(int32(v)), err
	},
	"uint32": func(s string) (launch.Scalar, error) {
		v, err := strconv.ParseUint(s, 0, 32)
		return launch.Uint32(uint32(v)), err
	},
	"int64": func(s string) (launch.Scalar, error) {
		v, err := strconv.ParseInt(s, 0, 64)
		return launch.Int64(v), err
	},
	"uint64": func(s string) (launch.Scalar, error) {
		v, err := strconv.ParseUint(s, 0, 64)
		return launch.Uint64(v), err
	},
	"float32": func(s string) (launch.Scalar, error) {
		v, err := strconv.ParseFloat(s, 32)
		return launch.Float32(float32(v)), err
	},
	"float64": func(s string) (launch.Scalar, error) {
		v, err := strconv.ParseFloat(s, 64)
		return launch.Float64(v), err
	},
	"bool": func(s string) (launch.Scalar, error) {
		v, err := strconv.ParseBool(s)
		return launch.Bool(v), err
	},
}

// parseScalar reads "v" or "type:v". Untyped integers are int32 when they fit
// and int64 otherwise; true and false are bools.
func parseScalar(s string) (launch.Scalar, error) {
	if typ, v, ok := strings.Cut(s, ":"); ok {
		parse, known := scalarParsers[typ]
		if !known {
			return launch.Scalar{}, errors.Errorf("unknown scalar type %q", typ)
		}
		return parse(v)
	}
	if s == "true" || s == "false" {
		return launch.Bool(s == "true"), nil
	}
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return launch.Scalar{}, errors.Errorf("%q is not an integer; use type:value for other scalars", s)
	}
	if v >= math.MinInt32 && v <= math.MaxInt32 {
		return launch.Int32(int32(v)), nil
	}
	return launch.Int64(v), nil
}

// parseArgs builds a bag from key=value pairs.
func parseArgs(pairs []string) (*launch.Args, error) {
	args := launch.NewArgs()
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, errors.Errorf("argument %q is not key=value", p)
		}
		s, err := parseScalar(v)
		if err != nil {
			return nil, errors.Wrapf(err, "argument %q", k)
		}
		args.Set(k, s)
	}
	return args, nil
}

func cacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect the generated artifact cache (jit.cacheDir)",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List the artifact directories in the cache",
				Action: func(c *cli.Context) error {
					root := cacheDir(appConfig(c))
					entries, err := listCache(root)
					if err != nil {
						return err
					}
					w := c.App.Writer
					fmt.Fprintf(w, "Cache: %s\n", root)
					var total int64
					for _, e := range entries {
						status := "ok"
						if !e.Valid {
							status = "invalid"
						}
						fmt.Fprintf(w, "  %-7s %9s  %s\n", status, humanize.IBytes(uint64(e.Size)), filepath.Base(e.Dir))
						total += e.Size
					}
					fmt.Fprintf(w, "%s artifacts, %s\n", humanize.Comma(int64(len(entries))), humanize.IBytes(uint64(total)))
					return nil
				},
			},
			{
				Name:      "locate",
				Usage:     "Print the " + gemm.Name + " artifact directory for a set of arguments",
				ArgsUsage: "key=value...",
				Action: func(c *cli.Context) error {
					args, err := parseArgs(c.Args().Slice())
					if err != nil {
						return cli.Exit(err.Error(), 2)
					}
					family := &gemm.Family{CacheDir: cacheDir(appConfig(c))}
					dir, err := family.Locate(args)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "Path:  %s\nValid: %t\n", dir, jit.IsPathValid(dir))
					return nil
				},
			},
		},
	}
}
