package quoteService

import (
	"context"
	"log/slog"

	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/utils"
)

type MarketDataApi interface {
	FetchBatch(ctx context.Context, symbols []string) (model.QuoteBatch, error)
}

type Cache interface {
	GetQuotes(ctx context.Context, symbols []string) (found map[string]model.Quote, missed []string, err error)
	SetQuotes(ctx context.Context, quotes []model.Quote) error
	FlushQuotes(ctx context.Context, symbols []string) error
}

type Metrics interface {
	ObserveCache(hits, misses int)
}

// QuoteService serves quotes from the cache and asks the provider for the
// rest in one batch. A nil cache disables caching.
type QuoteService struct {
	api     MarketDataApi
	cache   Cache
	metrics Metrics
}

func New(api MarketDataApi, cache Cache, metrics Metrics) *QuoteService {
	return &QuoteService{api: api, cache: cache, metrics: metrics}
}

func (s *QuoteService) FetchBatch(ctx context.Context, symbols []string) (model.QuoteBatch, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "QuoteService.FetchBatch"

	if s.cache == nil {
		return s.api.FetchBatch(ctx, symbols)
	}

	found, missed, err := s.cache.GetQuotes(ctx, symbols)
	if err != nil {
		slog.Warn("quote cache unavailable, fetching all symbols", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		found, missed = nil, symbols
	}

	if s.metrics != nil {
		s.metrics.ObserveCache(len(found), len(missed))
	}

	batch := model.NewQuoteBatch(len(symbols))
	for symbol, q := range found {
		batch.Quotes[symbol] = q
	}

	if len(missed) == 0 {
		return batch, nil
	}

	fetched, err := s.api.FetchBatch(ctx, missed)
	if err != nil {
		return model.QuoteBatch{}, err
	}

	toCache := make([]model.Quote, 0, len(fetched.Quotes))
	for symbol, q := range fetched.Quotes {
		batch.Quotes[symbol] = q
		toCache = append(toCache, q)
	}
	batch.Unavailable = append(batch.Unavailable, fetched.Unavailable...)

	if err = s.cache.SetQuotes(ctx, toCache); err != nil {
		slog.Warn("can't cache quotes", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	return batch, nil
}

// Invalidate drops cached quotes so the next FetchBatch asks the provider.
func (s *QuoteService) Invalidate(ctx context.Context, symbols []string) error {
	if s.cache == nil || len(symbols) == 0 {
		return nil
	}
	return s.cache.FlushQuotes(ctx, symbols)
}
