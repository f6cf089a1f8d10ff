package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PortfolioSummary struct {
	HoldingsCount    int                 `json:"holdings_count"`
	TotalMarketValue decimal.Decimal     `json:"total_market_value"`
	TotalCostBasis   decimal.Decimal     `json:"total_cost_basis"`
	TotalChange      decimal.Decimal     `json:"total_change"`
	PastMarketValue  decimal.Decimal     `json:"past_market_value"`
	GainLossPct      decimal.NullDecimal `json:"gain_loss_pct"`
	WeeklyChangePct  decimal.NullDecimal `json:"weekly_change_pct"`
	MeanPERatio      decimal.NullDecimal `json:"mean_pe_ratio"`
	PricedAt         time.Time           `json:"priced_at"`
}

// PortfolioFullInfo is a snapshot of the portfolio. Summary is undefined
// while Priced is false.
type PortfolioFullInfo struct {
	PortfolioName string           `json:"portfolio_name"`
	Priced        bool             `json:"priced"`
	Summary       PortfolioSummary `json:"summary"`
	Holdings      []HoldingSummary `json:"holdings"`
}
