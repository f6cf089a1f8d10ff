package xslsxGenerator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	colorHoldings = "#cfe2f3"
	colorSummary  = "#d9ead3"
	colorLots     = "#cccccc"

	// excelize rejects sheet names longer than 31 characters
	maxSheetNameLen = 31
)

var holdingColumns = []string{
	"Company Name", "Symbol", "Qty", "Avg cost/share", "Cost basis", "Price", "Past price",
	"Market value", "Total change", "Gain/Loss %", "Weekly change %", "P/E",
}

type XSLSXGenerator struct{}

func New() *XSLSXGenerator {
	return &XSLSXGenerator{}
}

func (g *XSLSXGenerator) Generate(ctx context.Context, portfolios []model.PortfolioFullInfo) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XSLSXGenerator.Generate"

	if len(portfolios) == 0 {
		return nil, "", errors.New("empty portfolios")
	}

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	for i, portfolio := range portfolios {
		err := g.fillSheet(ctx, f, portfolio, i+1)
		if err != nil {
			return nil, "", err
		}
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		slog.Error("got error while deleting Sheet1", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while Saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

func SheetName(ordinal int, portfolioName string) string {
	if portfolioName == "" {
		portfolioName = "Portfolio"
	}
	name := fmt.Sprintf("%d. %s", ordinal, portfolioName)
	if r := []rune(name); len(r) > maxSheetNameLen {
		name = string(r[:maxSheetNameLen])
	}
	return name
}

func (g *XSLSXGenerator) fillSheet(ctx context.Context, f *excelize.File, portfolio model.PortfolioFullInfo, ordinal int) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XSLSXGenerator.fillSheet"

	sheetName := SheetName(ordinal, portfolio.PortfolioName)
	_, err := f.NewSheet(sheetName)
	if err != nil {
		slog.Error("got error while creating NewSheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	// holdings
	lastCol, _ := excelize.ColumnNumberToName(len(holdingColumns))
	if err = g.sectionTitle(f, sheetName, "A1", lastCol+"1", "Holdings", colorHoldings); err != nil {
		return err
	}

	header := make([]any, len(holdingColumns))
	for i, c := range holdingColumns {
		header[i] = c
	}
	if err = f.SetSheetRow(sheetName, "A2", &header); err != nil {
		return err
	}

	for i, h := range portfolio.Holdings {
		row := []any{
			h.CompanyName,
			h.Symbol,
			h.TotalQuantity.InexactFloat64(),
			h.AverageCostPerShare.InexactFloat64(),
			h.TotalCostBasis.InexactFloat64(),
		}
		if h.Priced {
			v := h.Valuation
			row = append(row,
				v.CurrentPrice.InexactFloat64(),
				v.PastPrice.InexactFloat64(),
				v.MarketValue.InexactFloat64(),
				v.TotalChange.InexactFloat64(),
				nullable(v.GainLossPct),
				nullable(v.WeeklyChangePct),
				nullable(v.PERatio),
			)
		}
		if err = f.SetSheetRow(sheetName, fmt.Sprintf("A%d", i+3), &row); err != nil {
			return err
		}
	}

	// summary
	rowNum := len(portfolio.Holdings) + 5
	if err = g.sectionTitle(f, sheetName, fmt.Sprintf("A%d", rowNum), fmt.Sprintf("B%d", rowNum), "Summary", colorSummary); err != nil {
		return err
	}

	s := portfolio.Summary
	summaryRows := [][]any{
		{"Holdings", s.HoldingsCount},
		{"Market value", s.TotalMarketValue.InexactFloat64()},
		{"Cost basis", s.TotalCostBasis.InexactFloat64()},
		{"Total change", s.TotalChange.InexactFloat64()},
		{"Gain/Loss %", nullable(s.GainLossPct)},
		{"Weekly change %", nullable(s.WeeklyChangePct)},
		{"Mean P/E", nullable(s.MeanPERatio)},
	}
	if !s.PricedAt.IsZero() {
		summaryRows = append(summaryRows, []any{"Priced at", s.PricedAt.UTC().Format("2006-01-02 15:04:05 UTC")})
	}
	if !portfolio.Priced {
		summaryRows = [][]any{{"Holdings", len(portfolio.Holdings)}, {"Status", "not priced"}}
	}
	for _, r := range summaryRows {
		rowNum++
		if err = f.SetSheetRow(sheetName, fmt.Sprintf("A%d", rowNum), &r); err != nil {
			return err
		}
	}

	// lots
	rowNum += 3
	if err = g.sectionTitle(f, sheetName, fmt.Sprintf("A%d", rowNum), fmt.Sprintf("D%d", rowNum), "Lots", colorLots); err != nil {
		return err
	}

	rowNum++
	_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", rowNum), "Symbol")
	_ = f.SetCellStr(sheetName, fmt.Sprintf("B%d", rowNum), "Qty")
	_ = f.SetCellStr(sheetName, fmt.Sprintf("C%d", rowNum), "Cost/share")
	_ = f.SetCellStr(sheetName, fmt.Sprintf("D%d", rowNum), "Cost")

	for _, h := range portfolio.Holdings {
		for _, lot := range h.Lots {
			rowNum++
			_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", rowNum), h.Symbol)
			_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", rowNum), lot.Quantity.InexactFloat64())
			_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", rowNum), lot.CostPerShare.InexactFloat64())
			_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", rowNum), lot.Quantity.Mul(lot.CostPerShare).InexactFloat64())
		}
	}

	return nil
}

func (g *XSLSXGenerator) sectionTitle(f *excelize.File, sheetName, fromCell, toCell, title, color string) error {
	if err := f.MergeCell(sheetName, fromCell, toCell); err != nil {
		return err
	}

	_ = f.SetCellStr(sheetName, fromCell, title)

	styleID, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{color},
		},
	})
	if err != nil {
		return err
	}

	if err := f.SetCellStyle(sheetName, fromCell, fromCell, styleID); err != nil {
		return fmt.Errorf("apply style: %w", err)
	}

	return nil
}

// nullable leaves the cell empty for an undefined value.
func nullable(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.InexactFloat64()
}
