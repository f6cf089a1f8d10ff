package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/KotFed0t/portfolio_tracker/internal/service/trackerService"
	"github.com/KotFed0t/portfolio_tracker/utils"
	"github.com/google/subcommands"
)

type reportCmd struct {
	deps   Deps
	input  inputFlags
	out    string
	upload bool
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "write the valued portfolio to an xlsx workbook" }
func (*reportCmd) Usage() string {
	return `report -input <file> [-sheet name] [-start-row n] [-start-col A] [-out file.xlsx] [-upload]

  Writes holdings, summary and lots to a workbook. With -upload the workbook
  is also shared through Google Drive and the link is printed.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	c.input.register(f)
	f.StringVar(&c.out, "out", "", "output file (defaults to <input name>_report.xlsx)")
	f.BoolVar(&c.upload, "upload", false, "upload the report to Google Drive")
}

func (c *reportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ctx = utils.CreateCtxWithRqID(ctx)

	if c.input.path == "" {
		fmt.Fprintln(c.deps.Err, "Error: -input is required")
		return subcommands.ExitUsageError
	}

	removed, err := c.deps.Tracker.Load(ctx, c.input.path, c.input.options())
	if err != nil {
		fmt.Fprintf(c.deps.Err, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if len(removed) > 0 {
		fmt.Fprintf(c.deps.Err, "Warning: removed, no market data: %v\n", removed)
	}

	fileBytes, fileExtension, err := c.deps.Tracker.Report(ctx)
	if err != nil {
		fmt.Fprintf(c.deps.Err, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	out := c.out
	if out == "" {
		out = DefaultReportPath(c.input.path, fileExtension)
	}
	if samePath(out, c.input.path) {
		fmt.Fprintf(c.deps.Err, "Error: report path %s is the input file\n", out)
		return subcommands.ExitUsageError
	}
	if err = os.WriteFile(out, fileBytes, 0o644); err != nil {
		fmt.Fprintf(c.deps.Err, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(c.deps.Out, "report written to %s\n", out)

	if c.upload {
		link, err := c.deps.Tracker.UploadReport(ctx)
		if err != nil {
			fmt.Fprintf(c.deps.Err, "Error: upload: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(c.deps.Out, "report uploaded: %s\n", link)
	}

	return subcommands.ExitSuccess
}

// DefaultReportPath names the report after the input file with a _report
// suffix, in the current directory.
func DefaultReportPath(inputPath, fileExtension string) string {
	return trackerService.PortfolioName(inputPath) + "_report" + fileExtension
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
