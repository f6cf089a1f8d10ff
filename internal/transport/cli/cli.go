package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/KotFed0t/portfolio_tracker/internal/converter/consoleConverter"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/service/trackerService"
	"github.com/google/subcommands"
)

type TrackerService interface {
	Load(ctx context.Context, path string, opts trackerService.ReadOptions) (removed []string, err error)
	AddHolding(ctx context.Context, symbol string, quantity, costPerShare float64) error
	RemoveHolding(ctx context.Context, symbol string) error
	FullInfo(ctx context.Context) (model.PortfolioFullInfo, error)
	Report(ctx context.Context) (fileBytes []byte, fileExtension string, err error)
	UploadReport(ctx context.Context) (downloadLink string, err error)
}

// ServeFunc runs the long-lived part of watch mode until ctx is done.
type ServeFunc func(ctx context.Context) error

type Deps struct {
	Tracker   TrackerService
	Converter *consoleConverter.Converter
	Serve     ServeFunc
	Out       io.Writer
	Err       io.Writer
}

// Register adds every portfolio subcommand to the commander.
func Register(c *subcommands.Commander, deps Deps) {
	c.Register(&summaryCmd{deps: deps}, "portfolio")
	c.Register(&reportCmd{deps: deps}, "portfolio")
	c.Register(&watchCmd{deps: deps}, "portfolio")
}

// inputFlags locate the holdings table in the input file.
type inputFlags struct {
	path     string
	sheet    string
	startRow int
	startCol string
}

func (i *inputFlags) register(f *flag.FlagSet) {
	f.StringVar(&i.path, "input", "", "holdings file (.csv or .xlsx)")
	f.StringVar(&i.sheet, "sheet", "", "xlsx sheet name (defaults to the active sheet)")
	f.IntVar(&i.startRow, "start-row", 2, "row number of the first holding")
	f.StringVar(&i.startCol, "start-col", "A", "xlsx column of the Company Name cell")
}

func (i *inputFlags) options() trackerService.ReadOptions {
	return trackerService.ReadOptions{
		Sheet:       i.sheet,
		StartRow:    i.startRow,
		StartColumn: i.startCol,
	}
}

type lotArg struct {
	symbol       string
	quantity     float64
	costPerShare float64
}

// lotFlags collects repeated -add SYMBOL:QTY:COST values.
type lotFlags []lotArg

func (l *lotFlags) String() string {
	parts := make([]string, 0, len(*l))
	for _, a := range *l {
		parts = append(parts, fmt.Sprintf("%s:%v:%v", a.symbol, a.quantity, a.costPerShare))
	}
	return strings.Join(parts, ", ")
}

func (l *lotFlags) Set(value string) error {
	a, err := parseLot(value)
	if err != nil {
		return err
	}
	*l = append(*l, a)
	return nil
}

func parseLot(value string) (lotArg, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return lotArg{}, fmt.Errorf("want SYMBOL:QTY:COST, got %q", value)
	}

	qty, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return lotArg{}, fmt.Errorf("quantity %q: %w", parts[1], err)
	}

	cost, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return lotArg{}, fmt.Errorf("cost %q: %w", parts[2], err)
	}

	return lotArg{symbol: strings.TrimSpace(parts[0]), quantity: qty, costPerShare: cost}, nil
}

type stringFlags []string

func (s *stringFlags) String() string {
	return strings.Join(*s, ", ")
}

func (s *stringFlags) Set(value string) error {
	*s = append(*s, value)
	return nil
}
