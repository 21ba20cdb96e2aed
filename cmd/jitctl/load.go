package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fxnlabs/kernel-jit/internal/jit"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func loadCommand() *cli.Command {
	return &cli.Command{
		Name:      "load",
		Usage:     "Load an artifact into the driver, resolve its kernel and unload it",
		ArgsUsage: "<dir>",
		Action: func(c *cli.Context) error {
			dir, err := requireDir(c)
			if err != nil {
				return err
			}
			return withDriver(c, func(opts []jit.Option) error {
				elapsed, rt, err := timeLoad(dir, opts)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "Loaded %s\nKernel: %s\nTook:   %s\n", rt.ArtifactPath(), rt.KernelName(), elapsed)
				return nil
			})
		},
	}
}

// timeLoad constructs a runtime for dir, loads it and closes it again.
func timeLoad(dir string, opts []jit.Option) (time.Duration, *jit.Runtime, error) {
	rt, err := jit.NewRuntime(dir, nil, opts...)
	if err != nil {
		return 0, nil, err
	}
	start := time.Now()
	if err := rt.Load(); err != nil {
		return 0, nil, err
	}
	elapsed := time.Since(start)
	return elapsed, rt, rt.Close()
}

type benchResult struct {
	Samples []float64
	Mean    float64
	StdDev  float64
	Min     float64
	Max     float64
}

// bench runs n load/close cycles and summarizes the load latency in
// milliseconds.
func bench(dir string, n int, opts []jit.Option, onIteration func()) (benchResult, error) {
	var res benchResult
	for i := 0; i < n; i++ {
		elapsed, _, err := timeLoad(dir, opts)
		if err != nil {
			return res, fmt.Errorf("iteration %d: %w", i+1, err)
		}
		res.Samples = append(res.Samples, float64(elapsed.Microseconds())/1e3)
		if onIteration != nil {
			onIteration()
		}
	}
	if len(res.Samples) == 0 {
		return res, nil
	}
	res.Mean, res.StdDev = stat.MeanStdDev(res.Samples, nil)
	res.Min = floats.Min(res.Samples)
	res.Max = floats.Max(res.Samples)
	return res, nil
}

func benchCommand() *cli.Command {
	return &cli.Command{
		Name:      "bench",
		Usage:     "Measure the one-time load cost of an artifact",
		ArgsUsage: "<dir>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "iterations", Aliases: []string{"n"}, Value: 20, Usage: "Number of load/close cycles"},
		},
		Action: func(c *cli.Context) error {
			dir, err := requireDir(c)
			if err != nil {
				return err
			}
			n := c.Int("iterations")
			if n <= 0 {
				return cli.Exit("--iterations must be positive", 2)
			}

			var res benchResult
			err = withDriver(c, func(opts []jit.Option) (err error) {
				bar := progressbar.Default(int64(n), "loading")
				defer func() { _ = bar.Finish() }()
				res, err = bench(dir, n, opts, func() { _ = bar.Add(1) })
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s loads of %s\n", humanize.Comma(int64(len(res.Samples))), dir)
			fmt.Fprintf(c.App.Writer, "mean %.3f ms  stddev %.3f ms  min %.3f ms  max %.3f ms\n",
				res.Mean, res.StdDev, res.Min, res.Max)
			return nil
		},
	}
}
