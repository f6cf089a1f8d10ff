// Package portfolio merges holding lots, values them with one batched market
// data request and rolls the holdings up into a portfolio summary.
//
// A symbol the market data provider cannot value is REMOVED from the
// portfolio during FetchAndPrice and AddHolding; it is not kept as an unpriced
// placeholder. A provider outage or fetch timeout therefore empties the
// portfolio of every requested symbol. The removed symbols are returned and
// logged at warn level.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/utils"
	"github.com/shopspring/decimal"
)

const defaultFetchTimeout = 15 * time.Second

type MarketData interface {
	FetchBatch(ctx context.Context, symbols []string) (model.QuoteBatch, error)
}

type Metrics interface {
	ObserveFetch(duration time.Duration, requested, removed int)
	ObserveSummary(summary model.PortfolioSummary)
}

type State int

const (
	StateUninitialized State = iota
	StatePriced
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StatePriced:
		return "priced"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Option func(*Portfolio)

func WithName(name string) Option {
	return func(p *Portfolio) {
		p.name = name
	}
}

func WithFetchTimeout(timeout time.Duration) Option {
	return func(p *Portfolio) {
		if timeout > 0 {
			p.fetchTimeout = timeout
		}
	}
}

func WithMetrics(metrics Metrics) Option {
	return func(p *Portfolio) {
		if metrics != nil {
			p.metrics = metrics
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(p *Portfolio) {
		p.now = now
	}
}

// Portfolio is safe for concurrent use: every public method holds one lock
// for its whole mutate, fetch and aggregate sequence.
type Portfolio struct {
	mu sync.Mutex

	name         string
	marketData   MarketData
	metrics      Metrics
	fetchTimeout time.Duration
	now          func() time.Time

	order    []string
	holdings map[string]*Holding

	state    State
	pricedAt time.Time
	summary  model.PortfolioSummary
}

// New merges raw holdings by symbol, keeping first-seen order. It does not
// fetch prices; the portfolio stays uninitialized until FetchAndPrice.
func New(rawHoldings []model.RawHolding, marketData MarketData, opts ...Option) (*Portfolio, error) {
	p := &Portfolio{
		marketData:   marketData,
		metrics:      noopMetrics{},
		fetchTimeout: defaultFetchTimeout,
		now:          time.Now,
		holdings:     make(map[string]*Holding),
	}

	for _, opt := range opts {
		opt(p)
	}

	type pending struct {
		quantities []float64
		costs      []float64
	}
	merges := make(map[string]*pending)

	for i, raw := range rawHoldings {
		symbol := NormalizeSymbol(raw.Symbol)
		if symbol == "" {
			return nil, fmt.Errorf("raw holding %d: %w", i, ErrInvalidSymbol)
		}

		h, ok := p.holdings[symbol]
		if !ok {
			var err error
			h, err = NewHolding(symbol, raw.Quantity, raw.CostPerShare)
			if err != nil {
				return nil, fmt.Errorf("raw holding %d: %w", i, err)
			}
			p.holdings[symbol] = h
			p.order = append(p.order, symbol)
			merges[symbol] = &pending{}
		} else {
			merges[symbol].quantities = append(merges[symbol].quantities, raw.Quantity)
			merges[symbol].costs = append(merges[symbol].costs, raw.CostPerShare)
		}

		h.setCompanyName(raw.CompanyName)
	}

	for _, symbol := range p.order {
		m := merges[symbol]
		if len(m.quantities) == 0 {
			continue
		}
		if err := p.holdings[symbol].AddLots(m.quantities, m.costs); err != nil {
			return nil, err
		}
	}

	if len(p.order) == 0 {
		return nil, ErrEmptyPortfolio
	}

	return p, nil
}

// Load builds the portfolio and prices it with one batch request.
func Load(ctx context.Context, rawHoldings []model.RawHolding, marketData MarketData, opts ...Option) (*Portfolio, error) {
	p, err := New(rawHoldings, marketData, opts...)
	if err != nil {
		return nil, err
	}

	if _, err = p.FetchAndPrice(ctx); err != nil {
		return nil, err
	}

	return p, nil
}

// FetchAndPrice requests every held symbol in one batch and removes the
// symbols that could not be valued. It returns the removed symbols. The only
// error is the cancellation of ctx itself, in which case nothing changes.
func (p *Portfolio) FetchAndPrice(ctx context.Context) (removed []string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed, err = p.fetchAndPrice(ctx, slices.Clone(p.order))
	if err != nil {
		return nil, err
	}

	p.state = StatePriced
	p.aggregate()
	p.metrics.ObserveSummary(p.summary)

	return removed, nil
}

// AddHolding adds a lot. A known symbol is revalued from its stored prices
// without a fetch. A new symbol is fetched on its own while the other
// holdings keep their prices; if it cannot be valued it is dropped again and
// ErrSymbolUnavailable is returned with the portfolio already re-aggregated.
// On an uninitialized portfolio the whole symbol set is fetched.
func (p *Portfolio) AddHolding(ctx context.Context, symbol string, quantity, costPerShare float64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Portfolio.AddHolding"

	p.mu.Lock()
	defer p.mu.Unlock()

	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return ErrInvalidSymbol
	}

	if h, ok := p.holdings[symbol]; ok {
		if err := h.AddLot(quantity, costPerShare); err != nil {
			return err
		}
		slog.Debug("lot added to existing holding", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
		p.aggregate()
		p.metrics.ObserveSummary(p.summary)
		return nil
	}

	h, err := NewHolding(symbol, quantity, costPerShare)
	if err != nil {
		return err
	}

	toFetch := []string{symbol}
	if p.state == StateUninitialized {
		toFetch = append(slices.Clone(p.order), symbol)
	}

	p.holdings[symbol] = h
	p.order = append(p.order, symbol)

	removed, err := p.fetchAndPrice(ctx, toFetch)
	if err != nil {
		p.remove(symbol)
		return err
	}

	p.state = StatePriced
	p.aggregate()
	p.metrics.ObserveSummary(p.summary)

	if slices.Contains(removed, symbol) {
		return fmt.Errorf("%w: %q", ErrSymbolUnavailable, symbol)
	}

	return nil
}

// RemoveHolding deletes symbol and re-aggregates from the prices already held.
func (p *Portfolio) RemoveHolding(symbol string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	symbol = NormalizeSymbol(symbol)
	if _, ok := p.holdings[symbol]; !ok {
		return fmt.Errorf("%w: %q", ErrSymbolNotFound, symbol)
	}

	p.remove(symbol)
	p.aggregate()
	p.metrics.ObserveSummary(p.summary)

	return nil
}

// Aggregate recomputes the portfolio fields from the current holdings.
func (p *Portfolio) Aggregate() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.aggregate()
}

// Summary reports false until the first FetchAndPrice. A priced portfolio
// whose holdings were all removed has a defined zero summary.
func (p *Portfolio) Summary() (model.PortfolioSummary, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StatePriced {
		return model.PortfolioSummary{}, false
	}
	return p.summary, true
}

func (p *Portfolio) Holdings() []model.HoldingSummary {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.holdingSummaries()
}

func (p *Portfolio) Holding(symbol string) (model.HoldingSummary, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	h, ok := p.holdings[NormalizeSymbol(symbol)]
	if !ok {
		return model.HoldingSummary{}, false
	}
	return h.Summary(), true
}

func (p *Portfolio) Has(symbol string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.holdings[NormalizeSymbol(symbol)]
	return ok
}

func (p *Portfolio) Symbols() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return slices.Clone(p.order)
}

func (p *Portfolio) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.order)
}

func (p *Portfolio) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state
}

func (p *Portfolio) Name() string {
	return p.name
}

func (p *Portfolio) FullInfo() model.PortfolioFullInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	return model.PortfolioFullInfo{
		PortfolioName: p.name,
		Priced:        p.state == StatePriced,
		Summary:       p.summary,
		Holdings:      p.holdingSummaries(),
	}
}

func (p *Portfolio) fetchAndPrice(ctx context.Context, symbols []string) (removed []string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Portfolio.fetchAndPrice"

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	if len(symbols) == 0 {
		return nil, nil
	}

	slog.Debug("fetchAndPrice start", slog.String("rqID", rqID), slog.String("op", op), slog.Any("symbols", symbols))
	start := time.Now()

	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	batch, err := p.marketData.FetchBatch(fetchCtx, symbols)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			slog.Error("batch fetch timed out, all requested symbols unavailable", slog.String("rqID", rqID), slog.String("op", op), slog.Duration("timeout", p.fetchTimeout))
		} else {
			slog.Error("batch fetch failed, all requested symbols unavailable", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
		batch = model.QuoteBatch{Unavailable: symbols}
	}

	unavailable := make(map[string]struct{}, len(batch.Unavailable))
	for _, symbol := range batch.Unavailable {
		unavailable[NormalizeSymbol(symbol)] = struct{}{}
	}

	for _, symbol := range symbols {
		h, ok := p.holdings[symbol]
		if !ok {
			continue
		}

		quote, found := batch.Quotes[symbol]
		if _, gone := unavailable[symbol]; gone || !found {
			slog.Warn("no market data for symbol, removing holding", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
			p.remove(symbol)
			removed = append(removed, symbol)
			continue
		}

		if err := h.ApplyPricing(quote.CurrentPrice, quote.PastPrice, quote.PERatio); err != nil {
			slog.Warn("unusable market data for symbol, removing holding", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("err", err.Error()))
			p.remove(symbol)
			removed = append(removed, symbol)
			continue
		}

		h.setCompanyName(quote.CompanyName)
	}

	p.pricedAt = p.now()
	p.metrics.ObserveFetch(time.Since(start), len(symbols), len(removed))

	slog.Debug("fetchAndPrice finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int("requested", len(symbols)), slog.Any("removed", removed))

	return removed, nil
}

// aggregate only writes p.summary.
func (p *Portfolio) aggregate() {
	if p.state != StatePriced {
		return
	}

	s := model.PortfolioSummary{
		TotalMarketValue: decimal.Zero,
		TotalCostBasis:   decimal.Zero,
		PastMarketValue:  decimal.Zero,
		PricedAt:         p.pricedAt,
	}

	weeklyMarketValue := decimal.Zero
	peSum := decimal.Zero
	peCount := int64(0)

	for _, symbol := range p.order {
		h := p.holdings[symbol]
		v, ok := h.Valuation()
		if !ok {
			continue
		}

		s.HoldingsCount++
		s.TotalMarketValue = s.TotalMarketValue.Add(v.MarketValue)
		s.TotalCostBasis = s.TotalCostBasis.Add(h.TotalCostBasis())

		if v.WeeklyChangePct.Valid {
			weeklyMarketValue = weeklyMarketValue.Add(v.MarketValue)
			s.PastMarketValue = s.PastMarketValue.Add(v.PastMarketValue)
		}

		if v.PERatio.Valid {
			peSum = peSum.Add(v.PERatio.Decimal)
			peCount++
		}
	}

	s.TotalChange = s.TotalMarketValue.Sub(s.TotalCostBasis)

	if !s.TotalCostBasis.IsZero() {
		s.GainLossPct = decimal.NewNullDecimal(s.TotalChange.Div(s.TotalCostBasis).Mul(hundred))
	}

	if !s.PastMarketValue.IsZero() {
		s.WeeklyChangePct = decimal.NewNullDecimal(weeklyMarketValue.Sub(s.PastMarketValue).Div(s.PastMarketValue).Mul(hundred))
	}

	if peCount > 0 {
		s.MeanPERatio = decimal.NewNullDecimal(peSum.Div(decimal.NewFromInt(peCount)))
	}

	p.summary = s
}

func (p *Portfolio) remove(symbol string) {
	delete(p.holdings, symbol)
	if i := slices.Index(p.order, symbol); i >= 0 {
		p.order = slices.Delete(p.order, i, i+1)
	}
}

func (p *Portfolio) holdingSummaries() []model.HoldingSummary {
	res := make([]model.HoldingSummary, 0, len(p.order))
	for _, symbol := range p.order {
		res = append(res, p.holdings[symbol].Summary())
	}
	return res
}

type noopMetrics struct{}

func (noopMetrics) ObserveFetch(time.Duration, int, int) {}

func (noopMetrics) ObserveSummary(model.PortfolioSummary) {}
