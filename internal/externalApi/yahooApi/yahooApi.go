package yahooApi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/KotFed0t/portfolio_tracker/config"
	"github.com/KotFed0t/portfolio_tracker/internal/externalApi"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/model/yahooModel"
	"github.com/KotFed0t/portfolio_tracker/utils"
	"github.com/go-resty/resty/v2"
)

const (
	providerName = "yahoo"

	// spark accepts at most 20 symbols per request
	sparkChunkSize = 20
)

type YahooApi struct {
	client   *resty.Client
	lookback int
}

func New(cfg *config.Config) *YahooApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.YahooApi.Url).
		SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36").
		SetHeader("Accept", "application/json")
	return &YahooApi{client: client, lookback: cfg.Provider.LookbackPeriods}
}

// FetchBatch returns one record per symbol whatever the batch size. Symbols
// without a current price are reported as unavailable.
func (a *YahooApi) FetchBatch(ctx context.Context, symbols []string) (model.QuoteBatch, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "YahooApi.FetchBatch"

	slog.Debug("FetchBatch start", slog.String("rqID", rqID), slog.String("op", op), slog.Int("symbols", len(symbols)))
	defer slog.Debug("FetchBatch finished", slog.String("rqID", rqID), slog.String("op", op))

	batch := model.NewQuoteBatch(len(symbols))
	if len(symbols) == 0 {
		return batch, nil
	}

	quotes, err := a.getQuotes(ctx, symbols)
	if err != nil {
		return model.QuoteBatch{}, err
	}

	closes := make(map[string][]float64, len(symbols))
	for start := 0; start < len(symbols); start += sparkChunkSize {
		end := min(start+sparkChunkSize, len(symbols))
		chunk, err := a.getCloses(ctx, symbols[start:end])
		if err != nil {
			if ctx.Err() != nil {
				return model.QuoteBatch{}, err
			}
			// past price falls back to 0 for this chunk
			slog.Warn("spark chunk failed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("chunkStart", start), slog.String("err", err.Error()))
			continue
		}
		for symbol, c := range chunk {
			closes[symbol] = c
		}
	}

	for _, symbol := range symbols {
		q, ok := quotes[strings.ToUpper(symbol)]
		if !ok || q.RegularMarketPrice == nil {
			batch.Unavailable = append(batch.Unavailable, symbol)
			continue
		}

		name := q.LongName
		if name == "" {
			name = q.ShortName
		}

		batch.Quotes[symbol] = model.Quote{
			Symbol:       symbol,
			CompanyName:  name,
			CurrentPrice: *q.RegularMarketPrice,
			PastPrice:    PastClose(closes[strings.ToUpper(symbol)], a.lookback),
			PERatio:      q.TrailingPE,
		}
	}

	if len(batch.Unavailable) > 0 {
		slog.Warn("symbols missing from quote response", slog.String("rqID", rqID), slog.String("op", op), slog.Any("symbols", batch.Unavailable))
	}

	return batch, nil
}

// PastClose picks the close lookback trading periods before the latest one,
// falling back to the oldest close when the series is shorter. It returns 0
// for an empty series.
func PastClose(closes []float64, lookback int) float64 {
	if len(closes) == 0 {
		return 0
	}
	idx := len(closes) - 1 - lookback
	if idx < 0 {
		idx = 0
	}
	return closes[idx]
}

func (a *YahooApi) getQuotes(ctx context.Context, symbols []string) (map[string]yahooModel.QuoteResult, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "YahooApi.getQuotes"
	url := "/v7/finance/quote"

	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("symbols", strings.Join(symbols, ",")).
		Get(url)
	if err != nil {
		slog.Error("error while dialing YahooApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	if resp.IsError() {
		return nil, &externalApi.APIError{Provider: providerName, StatusCode: resp.StatusCode(), Message: resp.Status(), Endpoint: url}
	}

	raw := yahooModel.QuoteResponse{}
	if err = json.Unmarshal(resp.Body(), &raw); err != nil {
		slog.Error("can't unmarshal response into yahooModel.QuoteResponse", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, fmt.Errorf("%w: %w", externalApi.ErrBadResponse, err)
	}

	if e := raw.QuoteResponse.Error; e != nil {
		return nil, &externalApi.APIError{Provider: providerName, StatusCode: resp.StatusCode(), Message: e.Description, Endpoint: url}
	}

	res := make(map[string]yahooModel.QuoteResult, len(raw.QuoteResponse.Result))
	for _, q := range raw.QuoteResponse.Result {
		res[strings.ToUpper(q.Symbol)] = q
	}

	return res, nil
}

func (a *YahooApi) getCloses(ctx context.Context, symbols []string) (map[string][]float64, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "YahooApi.getCloses"
	url := "/v7/finance/spark"

	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbols":  strings.Join(symbols, ","),
			"range":    "1mo",
			"interval": "1d",
		}).
		Get(url)
	if err != nil {
		slog.Error("error while dialing YahooApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	if resp.IsError() {
		return nil, &externalApi.APIError{Provider: providerName, StatusCode: resp.StatusCode(), Message: resp.Status(), Endpoint: url}
	}

	raw := yahooModel.SparkResponse{}
	if err = json.Unmarshal(resp.Body(), &raw); err != nil {
		slog.Error("can't unmarshal response into yahooModel.SparkResponse", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, fmt.Errorf("%w: %w", externalApi.ErrBadResponse, err)
	}

	if e := raw.Spark.Error; e != nil {
		return nil, &externalApi.APIError{Provider: providerName, StatusCode: resp.StatusCode(), Message: e.Description, Endpoint: url}
	}

	res := make(map[string][]float64, len(raw.Spark.Result))
	for _, r := range raw.Spark.Result {
		res[strings.ToUpper(r.Symbol)] = r.Closes()
	}

	return res, nil
}
