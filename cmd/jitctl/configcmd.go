package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxnlabs/kernel-jit/fixtures"
	"github.com/urfave/cli/v2"
)

func writeConfigTemplate(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, fixtures.ConfigTemplate, 0644)
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the configuration file",
		Subcommands: []*cli.Command{
			{
				Name:      "init",
				Usage:     "Write the default configuration",
				ArgsUsage: "<path>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing file"},
				},
				Action: func(c *cli.Context) error {
					path := c.Args().First()
					if path == "" {
						path = "config.yaml"
					}
					if err := writeConfigTemplate(path, c.Bool("force")); err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "Wrote %s\n", path)
					return nil
				},
			},
		},
	}
}
