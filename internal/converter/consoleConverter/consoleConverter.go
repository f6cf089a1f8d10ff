package consoleConverter

import (
	"fmt"
	"strings"

	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/Rhymond/go-money"
	"github.com/charmbracelet/glamour"
	"github.com/shopspring/decimal"
)

const notAvailable = "n/a"

type Converter struct {
	currency string
	wordWrap int
}

func New(currency string, wordWrap int) *Converter {
	if currency == "" {
		currency = money.USD
	}
	return &Converter{currency: strings.ToUpper(currency), wordWrap: wordWrap}
}

// Money formats an amount in the display currency, e.g. "$1,800.00".
func (c *Converter) Money(amount decimal.Decimal) string {
	cur := money.New(0, c.currency).Currency()
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

func Percent(d decimal.NullDecimal) string {
	if !d.Valid {
		return notAvailable
	}
	return d.Decimal.StringFixed(2) + "%"
}

func Ratio(d decimal.NullDecimal) string {
	if !d.Valid {
		return notAvailable
	}
	return d.Decimal.StringFixed(2)
}

func (c *Converter) HoldingText(h model.HoldingSummary) string {
	var sb strings.Builder

	name := h.CompanyName
	if name == "" {
		name = h.Symbol
	}

	sb.WriteString(fmt.Sprintf("Company: %s (%s)\n", name, h.Symbol))
	sb.WriteString(fmt.Sprintf("Shares: %s\n", h.TotalQuantity.String()))
	sb.WriteString(fmt.Sprintf("Cost per Share: %s\n", c.Money(h.AverageCostPerShare)))
	sb.WriteString(fmt.Sprintf("Cost Basis: %s\n", c.Money(h.TotalCostBasis)))

	if !h.Priced {
		sb.WriteString("Price: not available\n")
		return sb.String()
	}

	v := h.Valuation
	sb.WriteString(fmt.Sprintf("Current Price: %s\n", c.Money(v.CurrentPrice)))
	sb.WriteString(fmt.Sprintf("Market Value: %s\n", c.Money(v.MarketValue)))
	sb.WriteString(fmt.Sprintf("Total Change: %s\n", c.Money(v.TotalChange)))
	sb.WriteString(fmt.Sprintf("Gain/Loss: %s\n", Percent(v.GainLossPct)))
	sb.WriteString(fmt.Sprintf("Weekly Change: %s\n", Percent(v.WeeklyChangePct)))
	sb.WriteString(fmt.Sprintf("PE Ratio: %s\n", Ratio(v.PERatio)))

	return sb.String()
}

func (c *Converter) SummaryText(s model.PortfolioSummary) string {
	var sb strings.Builder

	sb.WriteString("Portfolio Summary:\n")
	sb.WriteString(fmt.Sprintf("Holdings: %d\n", s.HoldingsCount))
	sb.WriteString(fmt.Sprintf("Market Value: %s\n", c.Money(s.TotalMarketValue)))
	sb.WriteString(fmt.Sprintf("Cost Basis: %s\n", c.Money(s.TotalCostBasis)))
	sb.WriteString(fmt.Sprintf("Total Change: %s\n", c.Money(s.TotalChange)))
	sb.WriteString(fmt.Sprintf("Gain/Loss: %s\n", Percent(s.GainLossPct)))
	sb.WriteString(fmt.Sprintf("Weekly Change: %s\n", Percent(s.WeeklyChangePct)))
	sb.WriteString(fmt.Sprintf("PE Ratio: %s\n", Ratio(s.MeanPERatio)))

	return sb.String()
}

// PortfolioText prints every holding followed by the portfolio summary.
func (c *Converter) PortfolioText(info model.PortfolioFullInfo, removed []string) string {
	var sb strings.Builder

	for _, h := range info.Holdings {
		sb.WriteString(c.HoldingText(h))
		sb.WriteString("\n")
	}

	if len(removed) > 0 {
		sb.WriteString(fmt.Sprintf("Removed (no market data): %s\n\n", strings.Join(removed, ", ")))
	}

	if !info.Priced {
		sb.WriteString("Portfolio Summary: not priced\n")
		return sb.String()
	}

	sb.WriteString(c.SummaryText(info.Summary))

	return sb.String()
}

func (c *Converter) PortfolioMarkdown(info model.PortfolioFullInfo, removed []string) string {
	var b strings.Builder

	title := info.PortfolioName
	if title == "" {
		title = "Portfolio"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	if info.Priced {
		s := info.Summary
		fmt.Fprintln(&b, "| Market Value | Cost Basis | Total Change | Gain/Loss | Weekly Change | Mean P/E |")
		fmt.Fprintln(&b, "|---:|---:|---:|---:|---:|---:|")
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n\n",
			c.Money(s.TotalMarketValue),
			c.Money(s.TotalCostBasis),
			c.Money(s.TotalChange),
			Percent(s.GainLossPct),
			Percent(s.WeeklyChangePct),
			Ratio(s.MeanPERatio),
		)
	} else {
		fmt.Fprint(&b, "_Not priced yet._\n\n")
	}

	fmt.Fprintf(&b, "## Holdings (%d)\n\n", len(info.Holdings))
	fmt.Fprintln(&b, "| Symbol | Company | Shares | Avg Cost | Price | Market Value | Gain/Loss | Weekly | P/E |")
	fmt.Fprintln(&b, "|:---|:---|---:|---:|---:|---:|---:|---:|---:|")

	for _, h := range info.Holdings {
		price, mv, gain, weekly, pe := notAvailable, notAvailable, notAvailable, notAvailable, notAvailable
		if h.Priced {
			price = c.Money(h.Valuation.CurrentPrice)
			mv = c.Money(h.Valuation.MarketValue)
			gain = Percent(h.Valuation.GainLossPct)
			weekly = Percent(h.Valuation.WeeklyChangePct)
			pe = Ratio(h.Valuation.PERatio)
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %s | %s |\n",
			h.Symbol,
			h.CompanyName,
			h.TotalQuantity.String(),
			c.Money(h.AverageCostPerShare),
			price, mv, gain, weekly, pe,
		)
	}

	if len(removed) > 0 {
		fmt.Fprintf(&b, "\n> Removed, no market data: %s\n", strings.Join(removed, ", "))
	}

	return b.String()
}

// Render draws markdown for a terminal without colors.
func (c *Converter) Render(markdown string) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithStandardStyle("notty")}
	if c.wordWrap > 0 {
		opts = append(opts, glamour.WithWordWrap(c.wordWrap))
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", err
	}

	return r.Render(markdown)
}
