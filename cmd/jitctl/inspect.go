package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/fxnlabs/kernel-jit/internal/jit"
	"github.com/fxnlabs/kernel-jit/internal/symbols"
	"github.com/goccy/go-json"
	"github.com/urfave/cli/v2"
)

type inspectReport struct {
	Path       string   `json:"path"`
	Valid      bool     `json:"valid"`
	Artifact   string   `json:"artifact,omitempty"`
	Size       int64    `json:"size,omitempty"`
	Symbols    []string `json:"symbols,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
	Kernel     string   `json:"kernel,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// inspectArtifact never loads anything into the driver.
func inspectArtifact(dir string, insp symbols.Inspector) inspectReport {
	r := inspectReport{Path: dir, Valid: jit.IsPathValid(dir)}
	if !r.Valid {
		r.Error = "not a directory containing " + jit.ArtifactFile
		return r
	}
	r.Artifact = filepath.Join(dir, jit.ArtifactFile)
	if fi, err := os.Stat(r.Artifact); err == nil {
		r.Size = fi.Size()
	}

	listing, err := insp.Inspect(r.Artifact)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	if r.Symbols, err = symbols.Functions(listing); err != nil {
		r.Error = err.Error()
		return r
	}
	r.Candidates, _ = symbols.Candidates(listing)
	if r.Kernel, err = symbols.SelectKernel(listing); err != nil {
		r.Error = err.Error()
	}
	return r
}

func printReport(c *cli.Context, r inspectReport) {
	w := c.App.Writer
	fmt.Fprintf(w, "Path:       %s\n", r.Path)
	fmt.Fprintf(w, "Valid:      %t\n", r.Valid)
	if r.Artifact != "" {
		fmt.Fprintf(w, "Artifact:   %s (%s)\n", r.Artifact, humanize.IBytes(uint64(r.Size)))
	}
	if len(r.Symbols) > 0 {
		fmt.Fprintln(w, "Symbols:")
		for _, s := range r.Symbols {
			marker := " "
			if s == r.Kernel {
				marker = "*"
			}
			fmt.Fprintf(w, "  %s %s\n", marker, s)
		}
	}
	if r.Kernel != "" {
		fmt.Fprintf(w, "Kernel:     %s\n", r.Kernel)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "Error:      %s\n", r.Error)
	}
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Validate an artifact directory and list its kernel symbols",
		ArgsUsage: "<dir>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Print the report as JSON"},
		},
		Action: func(c *cli.Context) error {
			dir, err := requireDir(c)
			if err != nil {
				return err
			}
			r := inspectArtifact(dir, inspector(c))
			if c.Bool("json") {
				b, err := json.MarshalIndent(r, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(c.App.Writer, string(b))
			} else {
				printReport(c, r)
			}
			if r.Error != "" {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}
