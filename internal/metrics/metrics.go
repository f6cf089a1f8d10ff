package metrics

import (
	"net/http"
	"time"

	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the tracker.
type Metrics struct {
	registry *prometheus.Registry

	FetchTotal       prometheus.Counter
	FetchDuration    prometheus.Histogram
	SymbolsRequested prometheus.Counter
	SymbolsRemoved   prometheus.Counter
	CacheLookups     *prometheus.CounterVec // labels: result=hit|miss

	Holdings         prometheus.Gauge
	MarketValue      prometheus.Gauge
	CostBasis        prometheus.Gauge
	GainLossPct      prometheus.Gauge
	WeeklyChangePct  prometheus.Gauge
	MeanPERatio      prometheus.Gauge
	LastPricedSecond prometheus.Gauge
}

// New registers every collector on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FetchTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portfolio_fetch_total",
			Help: "Total batch market data fetches",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "portfolio_fetch_duration_seconds",
			Help:    "Batch market data fetch latency",
			Buckets: prometheus.DefBuckets,
		}),
		SymbolsRequested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portfolio_symbols_requested_total",
			Help: "Symbols requested from the market data provider",
		}),
		SymbolsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portfolio_symbols_removed_total",
			Help: "Holdings removed because no market data was available",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_quote_cache_lookups_total",
			Help: "Quote cache lookups by result",
		}, []string{"result"}),
		Holdings: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portfolio_holdings",
			Help: "Priced holdings in the portfolio",
		}),
		MarketValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portfolio_market_value",
			Help: "Total market value",
		}),
		CostBasis: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portfolio_cost_basis",
			Help: "Total cost basis",
		}),
		GainLossPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portfolio_gain_loss_percent",
			Help: "Portfolio gain/loss in percent, NaN when undefined",
		}),
		WeeklyChangePct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portfolio_weekly_change_percent",
			Help: "Portfolio change over the lookback window in percent, NaN when undefined",
		}),
		MeanPERatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portfolio_mean_pe_ratio",
			Help: "Mean trailing P/E over holdings reporting one, NaN when undefined",
		}),
		LastPricedSecond: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portfolio_last_priced_timestamp_seconds",
			Help: "Unix time of the last successful pricing",
		}),
	}

	m.registry.MustRegister(
		m.FetchTotal,
		m.FetchDuration,
		m.SymbolsRequested,
		m.SymbolsRemoved,
		m.CacheLookups,
		m.Holdings,
		m.MarketValue,
		m.CostBasis,
		m.GainLossPct,
		m.WeeklyChangePct,
		m.MeanPERatio,
		m.LastPricedSecond,
	)

	return m
}

func (m *Metrics) ObserveFetch(duration time.Duration, requested, removed int) {
	m.FetchTotal.Inc()
	m.FetchDuration.Observe(duration.Seconds())
	m.SymbolsRequested.Add(float64(requested))
	m.SymbolsRemoved.Add(float64(removed))
}

func (m *Metrics) ObserveSummary(s model.PortfolioSummary) {
	m.Holdings.Set(float64(s.HoldingsCount))
	m.MarketValue.Set(s.TotalMarketValue.InexactFloat64())
	m.CostBasis.Set(s.TotalCostBasis.InexactFloat64())
	m.GainLossPct.Set(nullableFloat(s.GainLossPct.Valid, s.GainLossPct.Decimal.InexactFloat64()))
	m.WeeklyChangePct.Set(nullableFloat(s.WeeklyChangePct.Valid, s.WeeklyChangePct.Decimal.InexactFloat64()))
	m.MeanPERatio.Set(nullableFloat(s.MeanPERatio.Valid, s.MeanPERatio.Decimal.InexactFloat64()))
	if !s.PricedAt.IsZero() {
		m.LastPricedSecond.Set(float64(s.PricedAt.Unix()))
	}
}

func (m *Metrics) ObserveCache(hits, misses int) {
	m.CacheLookups.WithLabelValues("hit").Add(float64(hits))
	m.CacheLookups.WithLabelValues("miss").Add(float64(misses))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
