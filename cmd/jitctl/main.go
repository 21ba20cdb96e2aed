package main

import (
	"fmt"
	"os"

	"github.com/fxnlabs/kernel-jit/internal/config"
	"github.com/fxnlabs/kernel-jit/internal/gpu"
	"github.com/fxnlabs/kernel-jit/internal/jit"
	"github.com/fxnlabs/kernel-jit/internal/logger"
	"github.com/fxnlabs/kernel-jit/internal/symbols"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		if log, ok := app.Metadata["logger"].(*zap.Logger); ok {
			log.Fatal("failed to run app", zap.Error(err))
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "jitctl",
		Usage: "Inspect, load and serve precompiled GPU kernels",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Load configuration from `FILE`",
				EnvVars: []string{"JITCTL_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "verbosity",
				Usage: "Override logger.verbosity (debug, info, warn, error)",
			},
		},
		Before: func(c *cli.Context) error {
			cfg := config.Default()
			if path := c.String("config"); path != "" {
				var err error
				cfg, err = config.LoadConfig(path)
				if err != nil {
					return err
				}
			}
			if v := c.String("verbosity"); v != "" {
				cfg.Logger.Verbosity = v
			}
			zapLogger, err := logger.NewConsole(cfg.Logger.Verbosity)
			if err != nil {
				return err
			}
			c.App.Metadata["config"] = cfg
			c.App.Metadata["logger"] = zapLogger.Named("jitctl")
			return nil
		},
		Commands: []*cli.Command{
			inspectCommand(),
			loadCommand(),
			benchCommand(),
			serveCommand(),
			cacheCommand(),
			configCommand(),
			versionCommand(),
		},
	}
}

func appConfig(c *cli.Context) *config.Config {
	return c.App.Metadata["config"].(*config.Config)
}

func appLogger(c *cli.Context) *zap.Logger {
	return c.App.Metadata["logger"].(*zap.Logger)
}

// cudaHome prefers jit.cudaHome from the config file over the environment.
func cudaHome(cfg *config.Config) string {
	if cfg.JIT.CUDAHome != "" {
		return cfg.JIT.CUDAHome
	}
	return config.LoadFlagsOrDefault().ResolveCUDAHome()
}

func inspector(c *cli.Context) symbols.Inspector {
	return symbols.NewCuobjdump(cudaHome(appConfig(c)), appLogger(c))
}

// runtimeOptions are shared by every command that loads kernels.
func runtimeOptions(c *cli.Context) []jit.Option {
	return []jit.Option{
		jit.WithLogger(appLogger(c)),
		jit.WithInspector(inspector(c)),
	}
}

// newDriver is replaced in tests.
var newDriver = gpu.NewDriver

// withDriver runs fn with a driver that is cleaned up when fn returns.
func withDriver(c *cli.Context, fn func(opts []jit.Option) error) error {
	log := appLogger(c).Named("gpu")
	driver := newDriver(log)
	defer func() {
		if err := driver.Cleanup(); err != nil {
			log.Warn("Failed to clean up GPU driver", zap.String("driver", driver.Name()), zap.Error(err))
		}
	}()
	return fn(append(runtimeOptions(c), jit.WithDriver(driver)))
}

func requireDir(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", cli.Exit(fmt.Sprintf("usage: jitctl %s %s", c.Command.Name, c.Command.ArgsUsage), 2)
	}
	return c.Args().First(), nil
}
