package main

import (
	"github.com/fxnlabs/kernel-jit/internal/server"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Warm the configured artifacts and serve /metrics and /healthz",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "Override serve.listenAddress"},
			&cli.StringSliceFlag{Name: "artifact", Usage: "Additional artifact `DIR` to warm"},
		},
		Action: func(c *cli.Context) error {
			cfg := appConfig(c)
			if addr := c.String("listen"); addr != "" {
				cfg.Serve.ListenAddress = addr
			}
			cfg.Serve.Artifacts = append(cfg.Serve.Artifacts, c.StringSlice("artifact")...)

			log := appLogger(c)
			opts := runtimeOptions(c)
			app := fx.New(
				fx.Supply(cfg, log),
				fx.WithLogger(func() fxevent.Logger { return &fxevent.ZapLogger{Logger: log.Named("fx")} }),
				fx.Provide(server.ProvideRuntimeCache(newDriver, opts...)),
				server.Module,
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}
