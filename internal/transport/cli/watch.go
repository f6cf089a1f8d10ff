package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/KotFed0t/portfolio_tracker/utils"
	"github.com/google/subcommands"
)

type watchCmd struct {
	deps  Deps
	input inputFlags
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "keep the portfolio priced and serve it over HTTP" }
func (*watchCmd) Usage() string {
	return `watch -input <file> [-sheet name] [-start-row n] [-start-col A]

  Loads the portfolio, refreshes it on the configured interval and serves
  /summary, /metrics and /healthz until interrupted.
`
}

func (c *watchCmd) SetFlags(f *flag.FlagSet) {
	c.input.register(f)
}

func (c *watchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.input.path == "" {
		fmt.Fprintln(c.deps.Err, "Error: -input is required")
		return subcommands.ExitUsageError
	}
	if c.deps.Serve == nil {
		fmt.Fprintln(c.deps.Err, "Error: watch mode is not available")
		return subcommands.ExitFailure
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	removed, err := c.deps.Tracker.Load(utils.CreateCtxWithRqID(ctx), c.input.path, c.input.options())
	if err != nil {
		fmt.Fprintf(c.deps.Err, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if len(removed) > 0 {
		fmt.Fprintf(c.deps.Err, "Warning: removed, no market data: %v\n", removed)
	}

	if err = c.deps.Serve(ctx); err != nil {
		fmt.Fprintf(c.deps.Err, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	return subcommands.ExitSuccess
}
