package xlsxReader

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, sheet, origin string, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
	}

	for i, row := range rows {
		col, startRow, err := excelize.CellNameToCoordinates(origin)
		require.NoError(t, err)
		cellName, err := excelize.CoordinatesToCellName(col, startRow+i)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellName, &row))
	}

	path := filepath.Join(t.TempDir(), "holdings.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestReadFile(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", "A1", [][]any{
		{"Company Name", "Symbol", "Qty", "Cost/share", "Cost"},
		{"Apple Inc", "AAPL", 10, 150.25, 1502.5},
		{"Broken", "BRK", "n/a", 100, nil},
		{"Microsoft", "msft", 2.5, 0, 0},
		{nil, nil, nil, nil, nil},
		{"Late", "LATE", 1, 1, 1},
	})

	holdings, err := New(Options{}).ReadFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []model.RawHolding{
		{CompanyName: "Apple Inc", Symbol: "AAPL", Quantity: 10, CostPerShare: 150.25},
		{CompanyName: "Microsoft", Symbol: "MSFT", Quantity: 2.5, CostPerShare: 0},
	}, holdings)
}

func TestReadFile_OffsetTable(t *testing.T) {
	path := writeWorkbook(t, "Portfolio", "C3", [][]any{
		{"Company Name", "Symbol", "Qty", "Cost/share"},
		{"Alpha", "AAA", 3, 10},
		{"Beta", "BBB", 4, 20},
	})

	holdings, err := New(Options{Sheet: "Portfolio", StartRow: 4, StartColumn: "c"}).ReadFile(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, holdings, 2)
	assert.Equal(t, "AAA", holdings[0].Symbol)
	assert.Equal(t, "Beta", holdings[1].CompanyName)
	assert.Equal(t, 20.0, holdings[1].CostPerShare)
}

func TestReadFile_UnknownSheet(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", "A1", [][]any{{"Company Name", "Symbol", "Qty", "Cost/share"}})

	_, err := New(Options{Sheet: "Nope"}).ReadFile(context.Background(), path)
	assert.Error(t, err)
}

func TestColumnIndex(t *testing.T) {
	idx, err := ColumnIndex("A")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	idx, err = ColumnIndex("ab")
	require.NoError(t, err)
	assert.Equal(t, 27, idx)

	_, err = ColumnIndex("1")
	assert.Error(t, err)
}
