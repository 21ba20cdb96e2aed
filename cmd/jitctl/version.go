package main

import (
	"fmt"
	"runtime/debug"

	"github.com/common-nighthawk/go-figure"
	"github.com/urfave/cli/v2"
)

func version() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(devel)"
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the version and the compiled-in GPU driver",
		Action: func(c *cli.Context) error {
			fmt.Fprintln(c.App.Writer, figure.NewFigure("kernel-jit", "", true).String())
			driver := newDriver(appLogger(c).Named("gpu"))
			defer driver.Cleanup()
			fmt.Fprintf(c.App.Writer, "Version: %s\nDriver:  %s (available: %t)\n", version(), driver.Name(), driver.IsAvailable())
			return nil
		},
	}
}
