package model

import (
	"github.com/shopspring/decimal"
)

// RawHolding is one normalized input row.
type RawHolding struct {
	CompanyName  string
	Symbol       string
	Quantity     float64
	CostPerShare float64
}

type Lot struct {
	Quantity     decimal.Decimal `json:"quantity"`
	CostPerShare decimal.Decimal `json:"cost_per_share"`
}

// Valuation holds the price-dependent fields of a holding. Nullable
// percentages are invalid when their denominator is zero.
type Valuation struct {
	CurrentPrice    decimal.Decimal     `json:"current_price"`
	PastPrice       decimal.Decimal     `json:"past_price"`
	MarketValue     decimal.Decimal     `json:"market_value"`
	PastMarketValue decimal.Decimal     `json:"past_market_value"`
	TotalChange     decimal.Decimal     `json:"total_change"`
	GainLossPct     decimal.NullDecimal `json:"gain_loss_pct"`
	WeeklyChangePct decimal.NullDecimal `json:"weekly_change_pct"`
	PERatio         decimal.NullDecimal `json:"pe_ratio"`
}

type HoldingSummary struct {
	Symbol              string          `json:"symbol"`
	CompanyName         string          `json:"company_name"`
	Lots                []Lot           `json:"lots"`
	TotalQuantity       decimal.Decimal `json:"total_quantity"`
	TotalCostBasis      decimal.Decimal `json:"total_cost_basis"`
	AverageCostPerShare decimal.Decimal `json:"average_cost_per_share"`
	Priced              bool            `json:"priced"`
	Valuation           Valuation       `json:"valuation"`
}
