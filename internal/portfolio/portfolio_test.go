package portfolio

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMarketData struct {
	mu          sync.Mutex
	quotes      map[string]model.Quote
	unavailable map[string]bool
	err         error
	block       bool
	calls       [][]string
}

func newFakeMarketData(quotes ...model.Quote) *fakeMarketData {
	f := &fakeMarketData{
		quotes:      make(map[string]model.Quote),
		unavailable: make(map[string]bool),
	}
	for _, q := range quotes {
		f.quotes[q.Symbol] = q
	}
	return f
}

func (f *fakeMarketData) FetchBatch(ctx context.Context, symbols []string) (model.QuoteBatch, error) {
	f.mu.Lock()
	f.calls = append(f.calls, slices.Clone(symbols))
	block, err := f.block, f.err
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return model.QuoteBatch{}, ctx.Err()
	}
	if err != nil {
		return model.QuoteBatch{}, err
	}

	batch := model.NewQuoteBatch(len(symbols))
	for _, symbol := range symbols {
		q, ok := f.quotes[symbol]
		if !ok || f.unavailable[symbol] {
			batch.Unavailable = append(batch.Unavailable, symbol)
			continue
		}
		batch.Quotes[symbol] = q
	}
	return batch, nil
}

func (f *fakeMarketData) lastCall() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

type recordingMetrics struct {
	fetches   int
	removed   int
	summaries int
}

func (m *recordingMetrics) ObserveFetch(_ time.Duration, _ int, removed int) {
	m.fetches++
	m.removed += removed
}

func (m *recordingMetrics) ObserveSummary(model.PortfolioSummary) {
	m.summaries++
}

func quote(symbol string, current, past float64, pe *float64) model.Quote {
	return model.Quote{Symbol: symbol, CompanyName: symbol + " Corp", CurrentPrice: current, PastPrice: past, PERatio: pe}
}

var fixedNow = time.Date(2024, 3, 8, 16, 0, 0, 0, time.UTC)

func testOpts(extra ...Option) []Option {
	return append([]Option{withClock(func() time.Time { return fixedNow })}, extra...)
}

func TestNew_MergesDuplicateSymbols(t *testing.T) {
	md := newFakeMarketData()

	p, err := New([]model.RawHolding{
		{Symbol: "AAA", Quantity: 10, CostPerShare: 100},
		{Symbol: "bbb", Quantity: 1, CostPerShare: 5},
		{Symbol: " aaa ", Quantity: 5, CostPerShare: 120, CompanyName: "Triple A"},
	}, md, testOpts()...)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAA", "BBB"}, p.Symbols())
	assert.Equal(t, StateUninitialized, p.State())
	assert.Empty(t, md.calls)

	h, ok := p.Holding("AAA")
	require.True(t, ok)
	assert.Len(t, h.Lots, 2)
	assert.True(t, h.TotalQuantity.Equal(decimal.NewFromInt(15)))
	assert.True(t, h.TotalCostBasis.Equal(decimal.NewFromInt(1600)))
	assert.Equal(t, "Triple A", h.CompanyName)
	assert.False(t, h.Priced)

	_, ok = p.Summary()
	assert.False(t, ok)
}

func TestNew_Errors(t *testing.T) {
	md := newFakeMarketData()

	_, err := New(nil, md)
	assert.ErrorIs(t, err, ErrEmptyPortfolio)

	_, err = New([]model.RawHolding{{Symbol: "", Quantity: 1, CostPerShare: 1}}, md)
	assert.ErrorIs(t, err, ErrInvalidSymbol)

	_, err = New([]model.RawHolding{
		{Symbol: "AAA", Quantity: 1, CostPerShare: 1},
		{Symbol: "AAA", Quantity: -1, CostPerShare: 1},
	}, md)
	assert.ErrorIs(t, err, ErrInvalidLot)
}

func TestLoad_MergedScenario(t *testing.T) {
	md := newFakeMarketData(quote("AAA", 120, 110, ptr(20)))

	p, err := Load(context.Background(), []model.RawHolding{
		{Symbol: "AAA", Quantity: 10, CostPerShare: 100},
		{Symbol: "AAA", Quantity: 5, CostPerShare: 120},
	}, md, testOpts(WithName("main"))...)
	require.NoError(t, err)

	require.Len(t, md.calls, 1)
	assert.Equal(t, []string{"AAA"}, md.calls[0])

	h, ok := p.Holding("AAA")
	require.True(t, ok)
	require.True(t, h.Priced)
	assert.Equal(t, "AAA Corp", h.CompanyName)
	assert.True(t, h.TotalQuantity.Equal(decimal.NewFromInt(15)))
	assert.True(t, h.TotalCostBasis.Equal(decimal.NewFromInt(1600)))
	assert.InDelta(t, 106.667, h.AverageCostPerShare.InexactFloat64(), 0.001)
	assert.True(t, h.Valuation.MarketValue.Equal(decimal.NewFromInt(1800)))
	assert.True(t, h.Valuation.TotalChange.Equal(decimal.NewFromInt(200)))
	assert.InDelta(t, 12.5, h.Valuation.GainLossPct.Decimal.InexactFloat64(), 1e-9)
	assert.InDelta(t, 9.09, h.Valuation.WeeklyChangePct.Decimal.InexactFloat64(), 0.01)

	s, ok := p.Summary()
	require.True(t, ok)
	assert.Equal(t, 1, s.HoldingsCount)
	assert.True(t, s.TotalMarketValue.Equal(decimal.NewFromInt(1800)))
	assert.True(t, s.TotalCostBasis.Equal(decimal.NewFromInt(1600)))
	assert.True(t, s.TotalChange.Equal(decimal.NewFromInt(200)))
	assert.InDelta(t, 12.5, s.GainLossPct.Decimal.InexactFloat64(), 1e-9)
	assert.InDelta(t, 9.09, s.WeeklyChangePct.Decimal.InexactFloat64(), 0.01)
	assert.True(t, s.MeanPERatio.Decimal.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, fixedNow, s.PricedAt)

	info := p.FullInfo()
	assert.Equal(t, "main", info.PortfolioName)
	assert.Len(t, info.Holdings, 1)
}

func TestFetchAndPrice_RemovesUnavailableSymbol(t *testing.T) {
	md := newFakeMarketData(quote("AAA", 50, 40, ptr(10)))
	metrics := &recordingMetrics{}

	p, err := New([]model.RawHolding{
		{Symbol: "AAA", Quantity: 2, CostPerShare: 30},
		{Symbol: "ZZZ", Quantity: 7, CostPerShare: 1},
	}, md, testOpts(WithMetrics(metrics))...)
	require.NoError(t, err)

	removed, err := p.FetchAndPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ZZZ"}, removed)
	assert.Equal(t, []string{"AAA"}, p.Symbols())
	assert.False(t, p.Has("ZZZ"))

	h, _ := p.Holding("AAA")
	s, ok := p.Summary()
	require.True(t, ok)
	assert.Equal(t, 1, s.HoldingsCount)
	assert.True(t, s.TotalMarketValue.Equal(h.Valuation.MarketValue))
	assert.True(t, s.TotalCostBasis.Equal(h.TotalCostBasis))
	assert.True(t, s.TotalChange.Equal(h.Valuation.TotalChange))
	assert.True(t, s.GainLossPct.Decimal.Equal(h.Valuation.GainLossPct.Decimal))
	assert.True(t, s.WeeklyChangePct.Decimal.Equal(h.Valuation.WeeklyChangePct.Decimal))
	assert.True(t, s.MeanPERatio.Decimal.Equal(h.Valuation.PERatio.Decimal))

	assert.Equal(t, 1, metrics.fetches)
	assert.Equal(t, 1, metrics.removed)
	assert.Equal(t, 1, metrics.summaries)
}

func TestFetchAndPrice_RemovesUnusablePrice(t *testing.T) {
	md := newFakeMarketData(quote("AAA", 50, 40, nil), quote("BAD", -3, 40, nil))

	p, err := Load(context.Background(), []model.RawHolding{
		{Symbol: "AAA", Quantity: 2, CostPerShare: 30},
		{Symbol: "BAD", Quantity: 1, CostPerShare: 1},
	}, md, testOpts()...)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAA"}, p.Symbols())
}

func TestFetchAndPrice_ProviderErrorRemovesAll(t *testing.T) {
	md := newFakeMarketData()
	md.err = errors.New("connection refused")

	p, err := New([]model.RawHolding{
		{Symbol: "AAA", Quantity: 1, CostPerShare: 1},
		{Symbol: "BBB", Quantity: 1, CostPerShare: 1},
	}, md, testOpts()...)
	require.NoError(t, err)

	removed, err := p.FetchAndPrice(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"AAA", "BBB"}, removed)
	assert.Zero(t, p.Len())

	s, ok := p.Summary()
	require.True(t, ok)
	assert.Zero(t, s.HoldingsCount)
	assert.True(t, s.TotalMarketValue.IsZero())
	assert.False(t, s.GainLossPct.Valid)
	assert.False(t, s.WeeklyChangePct.Valid)
	assert.False(t, s.MeanPERatio.Valid)
}

func TestFetchAndPrice_TimeoutRemovesAll(t *testing.T) {
	md := newFakeMarketData(quote("AAA", 1, 1, nil))
	md.block = true

	p, err := New([]model.RawHolding{{Symbol: "AAA", Quantity: 1, CostPerShare: 1}}, md,
		testOpts(WithFetchTimeout(20*time.Millisecond))...)
	require.NoError(t, err)

	removed, err := p.FetchAndPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA"}, removed)
	assert.Zero(t, p.Len())
	assert.Equal(t, StatePriced, p.State())
}

func TestFetchAndPrice_CallerCancelLeavesPortfolioUnchanged(t *testing.T) {
	md := newFakeMarketData(quote("AAA", 1, 1, nil))

	p, err := New([]model.RawHolding{{Symbol: "AAA", Quantity: 1, CostPerShare: 1}}, md, testOpts()...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	removed, err := p.FetchAndPrice(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, removed)
	assert.Equal(t, []string{"AAA"}, p.Symbols())
	assert.Equal(t, StateUninitialized, p.State())
}

func TestAddHolding_ExistingSymbolDoesNotFetch(t *testing.T) {
	md := newFakeMarketData(quote("AAA", 120, 110, nil))

	p, err := Load(context.Background(), []model.RawHolding{{Symbol: "AAA", Quantity: 10, CostPerShare: 100}}, md, testOpts()...)
	require.NoError(t, err)

	require.NoError(t, p.AddHolding(context.Background(), "aaa", 5, 120))
	assert.Len(t, md.calls, 1)

	s, ok := p.Summary()
	require.True(t, ok)
	assert.True(t, s.TotalMarketValue.Equal(decimal.NewFromInt(1800)))
	assert.True(t, s.TotalCostBasis.Equal(decimal.NewFromInt(1600)))
}

func TestAddHolding_NewSymbolFetchesOnlyThatSymbol(t *testing.T) {
	md := newFakeMarketData(quote("AAA", 10, 10, ptr(10)), quote("BBB", 20, 10, ptr(30)), quote("CCC", 5, 4, nil))

	p, err := Load(context.Background(), []model.RawHolding{
		{Symbol: "AAA", Quantity: 1, CostPerShare: 8},
		{Symbol: "BBB", Quantity: 1, CostPerShare: 8},
	}, md, testOpts()...)
	require.NoError(t, err)

	require.NoError(t, p.AddHolding(context.Background(), "ccc", 2, 3))
	assert.Equal(t, []string{"CCC"}, md.lastCall())
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, p.Symbols())

	s, ok := p.Summary()
	require.True(t, ok)
	assert.Equal(t, 3, s.HoldingsCount)
	assert.True(t, s.TotalMarketValue.Equal(decimal.NewFromInt(40)))
	assert.True(t, s.MeanPERatio.Decimal.Equal(decimal.NewFromInt(20)))
}

func TestAddHolding_UninitializedFetchesEverything(t *testing.T) {
	md := newFakeMarketData(quote("AAA", 10, 10, nil), quote("BBB", 20, 10, nil))

	p, err := New([]model.RawHolding{{Symbol: "AAA", Quantity: 1, CostPerShare: 8}}, md, testOpts()...)
	require.NoError(t, err)

	require.NoError(t, p.AddHolding(context.Background(), "BBB", 1, 1))
	assert.Equal(t, []string{"AAA", "BBB"}, md.lastCall())
	assert.Equal(t, StatePriced, p.State())
}

func TestAddHolding_UnavailableNewSymbol(t *testing.T) {
	md := newFakeMarketData(quote("AAA", 10, 10, nil))

	p, err := Load(context.Background(), []model.RawHolding{{Symbol: "AAA", Quantity: 1, CostPerShare: 8}}, md, testOpts()...)
	require.NoError(t, err)
	before, _ := p.Summary()

	err = p.AddHolding(context.Background(), "NOPE", 1, 1)
	assert.ErrorIs(t, err, ErrSymbolUnavailable)
	assert.Equal(t, []string{"AAA"}, p.Symbols())

	after, _ := p.Summary()
	assert.True(t, before.TotalMarketValue.Equal(after.TotalMarketValue))
}

func TestAddHolding_InvalidLotChangesNothing(t *testing.T) {
	md := newFakeMarketData(quote("AAA", 10, 10, nil))

	p, err := Load(context.Background(), []model.RawHolding{{Symbol: "AAA", Quantity: 1, CostPerShare: 8}}, md, testOpts()...)
	require.NoError(t, err)

	assert.ErrorIs(t, p.AddHolding(context.Background(), "AAA", 0, 8), ErrInvalidLot)
	assert.ErrorIs(t, p.AddHolding(context.Background(), "NEW", 1, -8), ErrInvalidLot)
	assert.ErrorIs(t, p.AddHolding(context.Background(), " ", 1, 8), ErrInvalidSymbol)
	assert.Equal(t, []string{"AAA"}, p.Symbols())
	assert.Len(t, md.calls, 1)
}

func TestRemoveHolding_NotFoundLeavesSnapshot(t *testing.T) {
	md := newFakeMarketData(quote("AAA", 10, 9, ptr(12)), quote("BBB", 20, 21, nil))

	p, err := Load(context.Background(), []model.RawHolding{
		{Symbol: "AAA", Quantity: 3, CostPerShare: 8},
		{Symbol: "BBB", Quantity: 4, CostPerShare: 25},
	}, md, testOpts()...)
	require.NoError(t, err)

	before := p.FullInfo()

	err = p.RemoveHolding("QQQ")
	assert.ErrorIs(t, err, ErrSymbolNotFound)
	assert.Equal(t, before, p.FullInfo())
}

func TestRemoveHolding_ReaggregatesWithoutFetch(t *testing.T) {
	md := newFakeMarketData(quote("AAA", 10, 9, ptr(12)), quote("BBB", 20, 21, ptr(30)))

	p, err := Load(context.Background(), []model.RawHolding{
		{Symbol: "AAA", Quantity: 3, CostPerShare: 8},
		{Symbol: "BBB", Quantity: 4, CostPerShare: 25},
	}, md, testOpts()...)
	require.NoError(t, err)

	require.NoError(t, p.RemoveHolding("bbb"))
	assert.Len(t, md.calls, 1)

	s, ok := p.Summary()
	require.True(t, ok)
	assert.Equal(t, 1, s.HoldingsCount)
	assert.True(t, s.TotalMarketValue.Equal(decimal.NewFromInt(30)))
	assert.True(t, s.MeanPERatio.Decimal.Equal(decimal.NewFromInt(12)))

	require.NoError(t, p.RemoveHolding("AAA"))
	s, ok = p.Summary()
	require.True(t, ok)
	assert.Zero(t, s.HoldingsCount)
	assert.True(t, s.TotalCostBasis.IsZero())
	assert.False(t, s.MeanPERatio.Valid)
}

func TestRemoveThenAddRestoresHolding(t *testing.T) {
	md := newFakeMarketData(quote("AAA", 10, 9, ptr(12)), quote("BBB", 20, 21, ptr(30)))

	p, err := Load(context.Background(), []model.RawHolding{
		{Symbol: "AAA", Quantity: 3, CostPerShare: 8},
		{Symbol: "BBB", Quantity: 4, CostPerShare: 25},
	}, md, testOpts()...)
	require.NoError(t, err)

	original, _ := p.Holding("BBB")
	summaryBefore, _ := p.Summary()

	require.NoError(t, p.RemoveHolding("BBB"))
	require.NoError(t, p.AddHolding(context.Background(), "BBB", 4, 25))

	restored, ok := p.Holding("BBB")
	require.True(t, ok)
	assert.Equal(t, original, restored)

	summaryAfter, _ := p.Summary()
	assert.True(t, summaryBefore.TotalMarketValue.Equal(summaryAfter.TotalMarketValue))
	assert.True(t, summaryBefore.MeanPERatio.Decimal.Equal(summaryAfter.MeanPERatio.Decimal))
}

func TestAggregate_Idempotent(t *testing.T) {
	md := newFakeMarketData(quote("AAA", 10.37, 9.11, ptr(12.2)), quote("BBB", 20.01, 21.5, nil))

	p, err := Load(context.Background(), []model.RawHolding{
		{Symbol: "AAA", Quantity: 3.3, CostPerShare: 8.1},
		{Symbol: "BBB", Quantity: 4, CostPerShare: 25.7},
	}, md, testOpts()...)
	require.NoError(t, err)

	p.Aggregate()
	first, _ := p.Summary()
	p.Aggregate()
	second, _ := p.Summary()

	assert.Equal(t, first, second)
}

func TestAggregate_WeeklyChangeUsesSummedPastValue(t *testing.T) {
	md := newFakeMarketData(quote("AAA", 110, 100, nil), quote("BBB", 10, 20, nil), quote("NEW", 5, 0, nil))

	p, err := Load(context.Background(), []model.RawHolding{
		{Symbol: "AAA", Quantity: 10, CostPerShare: 100},
		{Symbol: "BBB", Quantity: 10, CostPerShare: 20},
		{Symbol: "NEW", Quantity: 10, CostPerShare: 5},
	}, md, testOpts()...)
	require.NoError(t, err)

	s, ok := p.Summary()
	require.True(t, ok)
	// (1100+100) vs (1000+200); NEW has no past price and is left out.
	assert.InDelta(t, 0, s.WeeklyChangePct.Decimal.InexactFloat64(), 1e-9)
	assert.True(t, s.PastMarketValue.Equal(decimal.NewFromInt(1200)))
	assert.True(t, s.TotalMarketValue.Equal(decimal.NewFromInt(1250)))
	assert.False(t, s.MeanPERatio.Valid)
}

func TestAggregate_ZeroCostBasisGivesNullGain(t *testing.T) {
	md := newFakeMarketData(quote("FREE", 10, 10, nil))

	p, err := Load(context.Background(), []model.RawHolding{{Symbol: "FREE", Quantity: 10, CostPerShare: 0}}, md, testOpts()...)
	require.NoError(t, err)

	s, ok := p.Summary()
	require.True(t, ok)
	assert.False(t, s.GainLossPct.Valid)
	assert.True(t, s.TotalChange.Equal(decimal.NewFromInt(100)))
}

func TestPortfolio_ConcurrentAccess(t *testing.T) {
	md := newFakeMarketData(quote("AAA", 10, 10, nil), quote("BBB", 10, 10, nil))

	p, err := Load(context.Background(), []model.RawHolding{{Symbol: "AAA", Quantity: 1, CostPerShare: 1}}, md, testOpts()...)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = p.AddHolding(context.Background(), "AAA", 1, 1)
		}()
		go func() {
			defer wg.Done()
			p.Summary()
			p.Holdings()
		}()
	}
	wg.Wait()

	h, ok := p.Holding("AAA")
	require.True(t, ok)
	assert.True(t, h.TotalQuantity.Equal(decimal.NewFromInt(21)))
	s, _ := p.Summary()
	assert.True(t, s.TotalMarketValue.Equal(decimal.NewFromInt(210)))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "priced", StatePriced.String())
	assert.Equal(t, "State(7)", State(7).String())
}

func TestFullInfo_PricedFlag(t *testing.T) {
	md := newFakeMarketData(quote("AAA", 10, 9, ptr(12)))

	p, err := New([]model.RawHolding{{Symbol: "AAA", Quantity: 3, CostPerShare: 8}}, md, testOpts()...)
	require.NoError(t, err)

	info := p.FullInfo()
	assert.False(t, info.Priced)
	assert.Len(t, info.Holdings, 1)

	_, err = p.FetchAndPrice(context.Background())
	require.NoError(t, err)
	assert.True(t, p.FullInfo().Priced)

	require.NoError(t, p.RemoveHolding("AAA"))
	info = p.FullInfo()
	assert.True(t, info.Priced)
	assert.Empty(t, info.Holdings)
	assert.Zero(t, info.Summary.HoldingsCount)
	assert.True(t, info.Summary.TotalMarketValue.IsZero())
}
