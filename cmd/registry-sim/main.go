// Command registry-sim replays a YAML scenario of signed registry transactions against
// the configured store and exits non-zero if any step misses its expectation.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"verification/config"
	"verification/sim"
)

type options struct {
	config.Simulator
	JSON bool
}

func parseOptions(fs *flag.FlagSet, args []string) (options, error) {
	var opts options
	if err := config.ParseEnv(&opts.Simulator); err != nil {
		return options{}, err
	}
	fs.StringVar(&opts.Store, "store", opts.Store, "record store: memory, sqlite, redis or postgres")
	fs.StringVar(&opts.SQLitePath, "sqlite-path", opts.SQLitePath, "sqlite database path")
	fs.StringVar(&opts.RedisURL, "redis-url", opts.RedisURL, "redis URL")
	fs.StringVar(&opts.PostgresURL, "postgres-url", opts.PostgresURL, "postgres connection string")
	fs.StringVar(&opts.ProgramID, "program-id", opts.ProgramID, "base58 program ID used for address derivation")
	fs.StringVar(&opts.Scenario, "scenario", opts.Scenario, "path to scenario YAML file")
	fs.BoolVar(&opts.JSON, "json", false, "print the report as JSON")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.Scenario == "" && fs.NArg() > 0 {
		opts.Scenario = fs.Arg(0)
	}
	if opts.Scenario == "" {
		return options{}, fmt.Errorf("scenario path is required")
	}
	if err := opts.Validate(); err != nil {
		return options{}, err
	}
	return opts, nil
}

func run(ctx context.Context, opts options, out io.Writer) (bool, error) {
	programID, err := config.ProgramID(opts.ProgramID)
	if err != nil {
		return false, err
	}
	sc, err := sim.Load(opts.Scenario)
	if err != nil {
		return false, err
	}
	store, closeStore, err := sim.OpenStore(ctx, opts.Simulator)
	if err != nil {
		return false, err
	}
	defer closeStore()

	report, err := sim.NewRunner(store, programID).Run(ctx, sc)
	if err != nil {
		return false, err
	}
	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return false, err
		}
	} else if err := report.WriteText(out); err != nil {
		return false, err
	}
	return report.OK(), nil
}

func main() {
	opts, err := parseOptions(flag.NewFlagSet("registry-sim", flag.ExitOnError), os.Args[1:])
	if err != nil {
		config.Exitf("registry-sim: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ok, err := run(ctx, opts, os.Stdout)
	if err != nil {
		config.Exitf("registry-sim: %v", err)
	}
	if !ok {
		os.Exit(1)
	}
}
