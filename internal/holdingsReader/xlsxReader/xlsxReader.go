package xlsxReader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/KotFed0t/portfolio_tracker/internal/holdingsReader"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/utils"
	"github.com/xuri/excelize/v2"
)

// Options locate the holdings table. Starting at StartColumn the columns are
// Company Name, Symbol, Qty and Cost/share.
type Options struct {
	// Sheet defaults to the active sheet.
	Sheet       string
	StartRow    int
	StartColumn string
}

type XlsxReader struct {
	opts Options
}

func New(opts Options) *XlsxReader {
	if opts.StartRow < 1 {
		opts.StartRow = 2
	}
	if opts.StartColumn == "" {
		opts.StartColumn = "A"
	}
	return &XlsxReader{opts: opts}
}

func (r *XlsxReader) ReadFile(ctx context.Context, path string) ([]model.RawHolding, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return r.readWorkbook(ctx, f)
}

func (r *XlsxReader) Read(ctx context.Context, in io.Reader) ([]model.RawHolding, error) {
	f, err := excelize.OpenReader(in)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return r.readWorkbook(ctx, f)
}

func (r *XlsxReader) readWorkbook(ctx context.Context, f *excelize.File) ([]model.RawHolding, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XlsxReader.readWorkbook"

	sheet := r.opts.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(f.GetActiveSheetIndex())
	}

	slog.Debug("readWorkbook start", slog.String("rqID", rqID), slog.String("op", op), slog.String("sheet", sheet))

	firstCol, err := ColumnIndex(r.opts.StartColumn)
	if err != nil {
		return nil, err
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	var holdings []model.RawHolding
	for rowNum := r.opts.StartRow; rowNum <= len(rows); rowNum++ {
		row := rows[rowNum-1]

		holding, err := holdingsReader.ParseRow(
			cell(row, firstCol),
			cell(row, firstCol+1),
			cell(row, firstCol+2),
			cell(row, firstCol+3),
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

	slog.Debug("readWorkbook finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int("holdings", len(holdings)))

	return holdings, nil
}

// ColumnIndex converts a column name like "A" or "AB" to a zero-based index.
func ColumnIndex(column string) (int, error) {
	n, err := excelize.ColumnNameToNumber(strings.ToUpper(strings.TrimSpace(column)))
	if err != nil {
		return 0, fmt.Errorf("start column %q: %w", column, err)
	}
	return n - 1, nil
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return row[idx]
}
