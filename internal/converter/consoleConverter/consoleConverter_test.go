package consoleConverter

import (
	"testing"

	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoney(t *testing.T) {
	c := New("usd", 0)

	assert.Equal(t, "$1,800.00", c.Money(decimal.NewFromInt(1800)))
	assert.Equal(t, "$106.67", c.Money(decimal.NewFromInt(1600).Div(decimal.NewFromInt(15))))
	assert.Equal(t, "$0.00", c.Money(decimal.Zero))
}

func TestPercentAndRatio(t *testing.T) {
	assert.Equal(t, "12.50%", Percent(decimal.NewNullDecimal(decimal.NewFromFloat(12.5))))
	assert.Equal(t, "n/a", Percent(decimal.NullDecimal{}))
	assert.Equal(t, "0.00%", Percent(decimal.NewNullDecimal(decimal.Zero)))
	assert.Equal(t, "n/a", Ratio(decimal.NullDecimal{}))
	assert.Equal(t, "25.40", Ratio(decimal.NewNullDecimal(decimal.NewFromFloat(25.4))))
}

func testInfo() model.PortfolioFullInfo {
	return model.PortfolioFullInfo{
		PortfolioName: "main",
		Priced:        true,
		Summary: model.PortfolioSummary{
			HoldingsCount:    2,
			TotalMarketValue: decimal.NewFromInt(1800),
			TotalCostBasis:   decimal.NewFromInt(1600),
			TotalChange:      decimal.NewFromInt(200),
			GainLossPct:      decimal.NewNullDecimal(decimal.NewFromFloat(12.5)),
		},
		Holdings: []model.HoldingSummary{
			{
				Symbol:              "AAA",
				CompanyName:         "Alpha",
				TotalQuantity:       decimal.NewFromInt(15),
				TotalCostBasis:      decimal.NewFromInt(1600),
				AverageCostPerShare: decimal.NewFromInt(1600).Div(decimal.NewFromInt(15)),
				Priced:              true,
				Valuation: model.Valuation{
					CurrentPrice: decimal.NewFromInt(120),
					MarketValue:  decimal.NewFromInt(1800),
					TotalChange:  decimal.NewFromInt(200),
					GainLossPct:  decimal.NewNullDecimal(decimal.NewFromFloat(12.5)),
				},
			},
			{
				Symbol:         "BBB",
				TotalQuantity:  decimal.NewFromInt(1),
				TotalCostBasis: decimal.Zero,
			},
		},
	}
}

func TestPortfolioText(t *testing.T) {
	out := New("USD", 0).PortfolioText(testInfo(), []string{"ZZZ"})

	assert.Contains(t, out, "Company: Alpha (AAA)")
	assert.Contains(t, out, "Cost per Share: $106.67")
	assert.Contains(t, out, "Market Value: $1,800.00")
	assert.Contains(t, out, "Weekly Change: n/a")
	assert.Contains(t, out, "Company: BBB (BBB)")
	assert.Contains(t, out, "Price: not available")
	assert.Contains(t, out, "Removed (no market data): ZZZ")
	assert.Contains(t, out, "Portfolio Summary:")
	assert.Contains(t, out, "Gain/Loss: 12.50%")
	assert.Contains(t, out, "PE Ratio: n/a")
}

func TestPortfolioMarkdownRender(t *testing.T) {
	c := New("USD", 120)

	md := c.PortfolioMarkdown(testInfo(), nil)
	assert.Contains(t, md, "# main")
	assert.Contains(t, md, "| AAA | Alpha | 15 | $106.67 | $120.00 | $1,800.00 | 12.50% | n/a | n/a |")
	assert.NotContains(t, md, "Removed")

	out, err := c.Render(md)
	require.NoError(t, err)
	assert.Contains(t, out, "main")
	assert.Contains(t, out, "AAA")
}

func TestPortfolioNotPriced(t *testing.T) {
	info := testInfo()
	info.Priced = false
	info.Summary = model.PortfolioSummary{}
	c := New("USD", 0)

	out := c.PortfolioText(info, nil)
	assert.Contains(t, out, "Portfolio Summary: not priced")
	assert.NotContains(t, out, "Holdings: ")

	md := c.PortfolioMarkdown(info, nil)
	assert.Contains(t, md, "_Not priced yet._")
	assert.NotContains(t, md, "| Market Value | Cost Basis |")
}
