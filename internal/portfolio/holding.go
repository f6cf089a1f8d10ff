package portfolio

import (
	"fmt"
	"math"
	"strings"

	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type pricing struct {
	currentPrice decimal.Decimal
	pastPrice    decimal.Decimal
	peRatio      decimal.NullDecimal
}

// Holding is a position in one symbol made of one or more lots. The cost
// aggregates are recomputed on every mutation; the valuation exists only
// after ApplyPricing succeeded.
type Holding struct {
	symbol      string
	companyName string
	lots        []model.Lot

	totalQuantity       decimal.Decimal
	totalCostBasis      decimal.Decimal
	averageCostPerShare decimal.Decimal

	pricing   *pricing
	valuation *model.Valuation
}

func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func NewHolding(symbol string, quantity, costPerShare float64) (*Holding, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, ErrInvalidSymbol
	}

	lot, err := newLot(quantity, costPerShare)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", symbol, err)
	}

	h := &Holding{symbol: symbol, lots: []model.Lot{lot}}
	h.recalculate()

	return h, nil
}

func (h *Holding) Symbol() string { return h.symbol }

func (h *Holding) CompanyName() string { return h.companyName }

func (h *Holding) TotalQuantity() decimal.Decimal { return h.totalQuantity }

func (h *Holding) TotalCostBasis() decimal.Decimal { return h.totalCostBasis }

func (h *Holding) AverageCostPerShare() decimal.Decimal { return h.averageCostPerShare }

func (h *Holding) Priced() bool { return h.valuation != nil }

// Lots returns a copy of the lots in acquisition order.
func (h *Holding) Lots() []model.Lot {
	lots := make([]model.Lot, len(h.lots))
	copy(lots, h.lots)
	return lots
}

// Valuation reports false while the holding is unpriced.
func (h *Holding) Valuation() (model.Valuation, bool) {
	if h.valuation == nil {
		return model.Valuation{}, false
	}
	return *h.valuation, true
}

func (h *Holding) AddLot(quantity, costPerShare float64) error {
	lot, err := newLot(quantity, costPerShare)
	if err != nil {
		return fmt.Errorf("%s: %w", h.symbol, err)
	}

	h.lots = append(h.lots, lot)
	h.recalculate()

	return nil
}

// AddLots appends all lots or none of them.
func (h *Holding) AddLots(quantities, costs []float64) error {
	if len(quantities) != len(costs) {
		return fmt.Errorf("%s: %w: %d quantities, %d costs", h.symbol, ErrLengthMismatch, len(quantities), len(costs))
	}

	lots := make([]model.Lot, 0, len(quantities))
	for i := range quantities {
		lot, err := newLot(quantities[i], costs[i])
		if err != nil {
			return fmt.Errorf("%s: lot %d: %w", h.symbol, i, err)
		}
		lots = append(lots, lot)
	}

	h.lots = append(h.lots, lots...)
	h.recalculate()

	return nil
}

// ApplyPricing values the holding. A non-finite or non-positive current
// price, or a non-finite or negative past price, leaves the holding unpriced.
// A past price of zero keeps the holding priced with a null weekly change.
func (h *Holding) ApplyPricing(currentPrice, pastPrice float64, peRatio *float64) error {
	if !isFinite(currentPrice) || currentPrice <= 0 {
		h.clearPricing()
		return fmt.Errorf("%w: %s current price %v", ErrUnusablePrice, h.symbol, currentPrice)
	}

	if !isFinite(pastPrice) || pastPrice < 0 {
		h.clearPricing()
		return fmt.Errorf("%w: %s past price %v", ErrUnusablePrice, h.symbol, pastPrice)
	}

	p := &pricing{
		currentPrice: decimal.NewFromFloat(currentPrice),
		pastPrice:    decimal.NewFromFloat(pastPrice),
	}
	if peRatio != nil && isFinite(*peRatio) {
		p.peRatio = decimal.NewNullDecimal(decimal.NewFromFloat(*peRatio))
	}

	h.pricing = p
	h.recalculate()

	return nil
}

func (h *Holding) Summary() model.HoldingSummary {
	s := model.HoldingSummary{
		Symbol:              h.symbol,
		CompanyName:         h.companyName,
		Lots:                h.Lots(),
		TotalQuantity:       h.totalQuantity,
		TotalCostBasis:      h.totalCostBasis,
		AverageCostPerShare: h.averageCostPerShare,
	}

	if v, ok := h.Valuation(); ok {
		s.Priced = true
		s.Valuation = v
	}

	return s
}

// setCompanyName keeps the first non-empty name.
func (h *Holding) setCompanyName(name string) {
	name = strings.TrimSpace(name)
	if h.companyName == "" && name != "" {
		h.companyName = name
	}
}

func (h *Holding) clearPricing() {
	h.pricing = nil
	h.valuation = nil
}

func (h *Holding) recalculate() {
	quantity := decimal.Zero
	costBasis := decimal.Zero
	for _, lot := range h.lots {
		quantity = quantity.Add(lot.Quantity)
		costBasis = costBasis.Add(lot.Quantity.Mul(lot.CostPerShare))
	}

	h.totalQuantity = quantity
	h.totalCostBasis = costBasis
	h.averageCostPerShare = decimal.Zero
	if quantity.IsPositive() {
		h.averageCostPerShare = costBasis.Div(quantity)
	}

	if h.pricing == nil {
		h.valuation = nil
		return
	}

	v := h.pricing.valuate(quantity, costBasis)
	h.valuation = &v
}

func (p *pricing) valuate(quantity, costBasis decimal.Decimal) model.Valuation {
	marketValue := quantity.Mul(p.currentPrice)
	totalChange := marketValue.Sub(costBasis)

	v := model.Valuation{
		CurrentPrice:    p.currentPrice,
		PastPrice:       p.pastPrice,
		MarketValue:     marketValue,
		PastMarketValue: quantity.Mul(p.pastPrice),
		TotalChange:     totalChange,
		PERatio:         p.peRatio,
	}

	if !costBasis.IsZero() {
		v.GainLossPct = decimal.NewNullDecimal(totalChange.Div(costBasis).Mul(hundred))
	}

	if !p.pastPrice.IsZero() {
		v.WeeklyChangePct = decimal.NewNullDecimal(p.currentPrice.Sub(p.pastPrice).Div(p.pastPrice).Mul(hundred))
	}

	return v
}

func newLot(quantity, costPerShare float64) (model.Lot, error) {
	if !isFinite(quantity) || quantity <= 0 {
		return model.Lot{}, fmt.Errorf("%w: quantity %v must be a positive number", ErrInvalidLot, quantity)
	}

	if !isFinite(costPerShare) || costPerShare < 0 {
		return model.Lot{}, fmt.Errorf("%w: cost per share %v must be a non-negative number", ErrInvalidLot, costPerShare)
	}

	return model.Lot{
		Quantity:     decimal.NewFromFloat(quantity),
		CostPerShare: decimal.NewFromFloat(costPerShare),
	}, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
