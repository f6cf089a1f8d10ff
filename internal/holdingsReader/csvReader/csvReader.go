package csvReader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/KotFed0t/portfolio_tracker/internal/holdingsReader"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/utils"
)

type Options struct {
	// StartRow is the file row of the first holding; the header is row 1.
	StartRow int
}

type CsvReader struct {
	opts Options
}

func New(opts Options) *CsvReader {
	if opts.StartRow < 2 {
		opts.StartRow = 2
	}
	return &CsvReader{opts: opts}
}

func (r *CsvReader) ReadFile(ctx context.Context, path string) ([]model.RawHolding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return r.Read(ctx, f)
}

// Read expects a header row naming at least Symbol, Qty and Cost/share.
func (r *CsvReader) Read(ctx context.Context, in io.Reader) ([]model.RawHolding, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "CsvReader.Read"

	slog.Debug("Read start", slog.String("rqID", rqID), slog.String("op", op))

	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns, err := headerIndex(header)
	if err != nil {
		return nil, err
	}

	var holdings []model.RawHolding
	for rowNum := 2; ; rowNum++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", rowNum, err)
		}

		if rowNum < r.opts.StartRow {
			continue
		}

		holding, err := holdingsReader.ParseRow(
			cell(record, columns[holdingsReader.ColumnCompanyName]),
			cell(record, columns[holdingsReader.ColumnSymbol]),
			cell(record, columns[holdingsReader.ColumnQty]),
			cell(record, columns[holdingsReader.ColumnCostShare]),
		)
		if errors.Is(err, holdingsReader.ErrEndOfData) {
			slog.Debug("end of data", slog.String("rqID", rqID), slog.String("op", op), slog.Int("row", rowNum))
			break
		}
		if err != nil {
			slog.Warn("error parsing row, skipped", slog.String("rqID", rqID), slog.String("op", op), slog.Int("row", rowNum), slog.String("err", err.Error()))
			continue
		}

		holdings = append(holdings, holding)
	}

	slog.Debug("Read finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int("holdings", len(holdings)))

	return holdings, nil
}

// headerIndex maps column names to their position; a missing optional column
// maps to -1.
func headerIndex(header []string) (map[string]int, error) {
	columns := map[string]int{
		holdingsReader.ColumnCompanyName: -1,
		holdingsReader.ColumnSymbol:      -1,
		holdingsReader.ColumnQty:         -1,
		holdingsReader.ColumnCostShare:   -1,
	}

	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		for col := range columns {
			if strings.EqualFold(name, col) {
				columns[col] = i
			}
		}
	}

	for _, required := range []string{holdingsReader.ColumnSymbol, holdingsReader.ColumnQty, holdingsReader.ColumnCostShare} {
		if columns[required] < 0 {
			return nil, fmt.Errorf("%w: %s", holdingsReader.ErrMissingColumn, required)
		}
	}

	return columns, nil
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}
