package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/portfolio"
	"github.com/KotFed0t/portfolio_tracker/utils"
	"github.com/google/subcommands"
)

const (
	formatText     = "text"
	formatMarkdown = "markdown"
	formatJSON     = "json"
)

type jsonSummary struct {
	model.PortfolioFullInfo
	Removed []string `json:"removed"`
}

type summaryCmd struct {
	deps   Deps
	input  inputFlags
	add    lotFlags
	remove stringFlags
	format string
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "value the holdings file and print the portfolio summary" }
func (*summaryCmd) Usage() string {
	return `summary -input <file> [-sheet name] [-start-row n] [-start-col A] [-add SYMBOL:QTY:COST]... [-remove SYMBOL]... [-format text|markdown|json]

  Reads the holdings, fetches market data in one batch and prints every
  holding followed by the portfolio summary. Symbols without market data
  are removed and listed.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	c.input.register(f)
	f.Var(&c.add, "add", "add a lot as SYMBOL:QTY:COST (repeatable)")
	f.Var(&c.remove, "remove", "remove a holding by symbol (repeatable)")
	f.StringVar(&c.format, "format", formatText, "output format: text, markdown or json")
}

func (c *summaryCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ctx = utils.CreateCtxWithRqID(ctx)
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "summaryCmd.Execute"

	if c.input.path == "" {
		fmt.Fprintln(c.deps.Err, "Error: -input is required")
		return subcommands.ExitUsageError
	}
	if c.format != formatText && c.format != formatMarkdown && c.format != formatJSON {
		fmt.Fprintf(c.deps.Err, "Error: unknown format %q\n", c.format)
		return subcommands.ExitUsageError
	}

	removed, err := c.deps.Tracker.Load(ctx, c.input.path, c.input.options())
	if err != nil {
		fmt.Fprintf(c.deps.Err, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	for _, lot := range c.add {
		err = c.deps.Tracker.AddHolding(ctx, lot.symbol, lot.quantity, lot.costPerShare)
		if errors.Is(err, portfolio.ErrSymbolUnavailable) {
			removed = append(removed, portfolio.NormalizeSymbol(lot.symbol))
			continue
		}
		if err != nil {
			fmt.Fprintf(c.deps.Err, "Error: add %s: %v\n", lot.symbol, err)
			return subcommands.ExitFailure
		}
	}

	for _, symbol := range c.remove {
		if err = c.deps.Tracker.RemoveHolding(ctx, symbol); err != nil {
			fmt.Fprintf(c.deps.Err, "Error: remove %s: %v\n", symbol, err)
			return subcommands.ExitFailure
		}
	}

	info, err := c.deps.Tracker.FullInfo(ctx)
	if err != nil {
		fmt.Fprintf(c.deps.Err, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	slog.Debug("summary ready", slog.String("rqID", rqID), slog.String("op", op), slog.Int("holdings", len(info.Holdings)), slog.Any("removed", removed))

	switch c.format {
	case formatJSON:
		b, err := json.MarshalIndent(jsonSummary{PortfolioFullInfo: info, Removed: removed}, "", "  ")
		if err != nil {
			fmt.Fprintf(c.deps.Err, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Fprintln(c.deps.Out, string(b))
	case formatMarkdown:
		rendered, err := c.deps.Converter.Render(c.deps.Converter.PortfolioMarkdown(info, removed))
		if err != nil {
			fmt.Fprintf(c.deps.Err, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Fprint(c.deps.Out, rendered)
	default:
		fmt.Fprint(c.deps.Out, c.deps.Converter.PortfolioText(info, removed))
	}

	return subcommands.ExitSuccess
}
