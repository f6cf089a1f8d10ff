package eodhdApi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/KotFed0t/portfolio_tracker/config"
	"github.com/KotFed0t/portfolio_tracker/internal/externalApi"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/model/eodhdModel"
	"github.com/KotFed0t/portfolio_tracker/utils"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const providerName = "eodhd"

type EodhdApi struct {
	client   *resty.Client
	limiter  *rate.Limiter
	exchange string
	lookback int
	now      func() time.Time
}

func New(cfg *config.Config) *EodhdApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.EodhdApi.Url).
		SetHeader("Accept", "application/json").
		SetQueryParams(map[string]string{
			"api_token": cfg.API.EodhdApi.Token,
			"fmt":       "json",
		})

	limit := cfg.API.EodhdApi.RateLimit
	if limit <= 0 {
		limit = 10
	}

	return &EodhdApi{
		client:   client,
		limiter:  rate.NewLimiter(rate.Limit(limit), limit),
		exchange: strings.ToUpper(cfg.API.EodhdApi.Exchange),
		lookback: cfg.Provider.LookbackPeriods,
		now:      time.Now,
	}
}

// FetchBatch issues three requests whatever the number of symbols: real-time
// prices, bulk end-of-day closes for the lookback date and bulk fundamentals.
// Closes and fundamentals are optional per symbol.
func (a *EodhdApi) FetchBatch(ctx context.Context, symbols []string) (model.QuoteBatch, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "EodhdApi.FetchBatch"

	slog.Debug("FetchBatch start", slog.String("rqID", rqID), slog.String("op", op), slog.Int("symbols", len(symbols)))
	defer slog.Debug("FetchBatch finished", slog.String("rqID", rqID), slog.String("op", op))

	batch := model.NewQuoteBatch(len(symbols))
	if len(symbols) == 0 {
		return batch, nil
	}

	prices, err := a.getRealTime(ctx, symbols)
	if err != nil {
		return model.QuoteBatch{}, err
	}

	pastCloses, err := a.getBulkEOD(ctx, symbols, LookbackDate(a.now(), a.lookback))
	if err != nil {
		return model.QuoteBatch{}, err
	}

	fundamentals, err := a.getBulkFundamentals(ctx, symbols)
	if err != nil {
		// names and P/E are optional
		slog.Warn("bulk fundamentals unavailable", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		fundamentals = map[string]eodhdModel.Fundamentals{}
	}

	for _, symbol := range symbols {
		key := strings.ToUpper(symbol)

		price, ok := prices[key]
		if !ok || price <= 0 {
			batch.Unavailable = append(batch.Unavailable, symbol)
			continue
		}

		q := model.Quote{
			Symbol:       symbol,
			CurrentPrice: price,
			PastPrice:    pastCloses[key],
		}

		if f, ok := fundamentals[key]; ok {
			q.CompanyName = f.General.Name
			if pe := float64(f.Highlights.PERatio); pe != 0 {
				q.PERatio = &pe
			}
		}

		batch.Quotes[symbol] = q
	}

	return batch, nil
}

// LookbackDate steps back the given number of weekdays from now.
func LookbackDate(now time.Time, weekdays int) time.Time {
	d := now
	for weekdays > 0 {
		d = d.AddDate(0, 0, -1)
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			weekdays--
		}
	}
	return d
}

func (a *EodhdApi) ticker(symbol string) string {
	return strings.ToUpper(symbol) + "." + a.exchange
}

// symbolFromCode strips the exchange suffix of a ticker code.
func (a *EodhdApi) symbolFromCode(code string) string {
	return strings.TrimSuffix(strings.ToUpper(code), "."+a.exchange)
}

func (a *EodhdApi) getRealTime(ctx context.Context, symbols []string) (map[string]float64, error) {
	tickers := make([]string, len(symbols))
	for i, s := range symbols {
		tickers[i] = a.ticker(s)
	}

	params := map[string]string{}
	if len(tickers) > 1 {
		params["s"] = strings.Join(tickers[1:], ",")
	}

	var list eodhdModel.RealTimeList
	if err := a.get(ctx, "/real-time/"+tickers[0], params, &list); err != nil {
		return nil, err
	}

	res := make(map[string]float64, len(list))
	for _, rt := range list {
		res[a.symbolFromCode(rt.Code)] = float64(rt.Close)
	}
	return res, nil
}

func (a *EodhdApi) getBulkEOD(ctx context.Context, symbols []string, date time.Time) (map[string]float64, error) {
	params := map[string]string{
		"symbols": strings.Join(symbols, ","),
		"date":    date.Format(time.DateOnly),
	}

	var rows []eodhdModel.BulkEOD
	if err := a.get(ctx, "/eod-bulk-last-day/"+a.exchange, params, &rows); err != nil {
		return nil, err
	}

	res := make(map[string]float64, len(rows))
	for _, row := range rows {
		closePrice := row.AdjustedClose
		if closePrice == 0 {
			closePrice = row.Close
		}
		res[a.symbolFromCode(row.Code)] = float64(closePrice)
	}
	return res, nil
}

func (a *EodhdApi) getBulkFundamentals(ctx context.Context, symbols []string) (map[string]eodhdModel.Fundamentals, error) {
	params := map[string]string{
		"symbols": strings.Join(symbols, ","),
	}

	// keyed by position: {"0": {...}, "1": {...}}
	var raw map[string]eodhdModel.Fundamentals
	if err := a.get(ctx, "/bulk-fundamentals/"+a.exchange, params, &raw); err != nil {
		return nil, err
	}

	res := make(map[string]eodhdModel.Fundamentals, len(raw))
	for _, f := range raw {
		res[a.symbolFromCode(f.General.Code)] = f
	}
	return res, nil
}

func (a *EodhdApi) get(ctx context.Context, path string, params map[string]string, result any) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "EodhdApi.get"

	if err := a.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		slog.Error("error while dialing EodhdApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("path", path), slog.String("err", err.Error()))
		return err
	}

	if resp.IsError() {
		return &externalApi.APIError{Provider: providerName, StatusCode: resp.StatusCode(), Message: strings.TrimSpace(string(resp.Body())), Endpoint: path}
	}

	if err = json.Unmarshal(resp.Body(), result); err != nil {
		slog.Error("can't unmarshal EodhdApi response", slog.String("rqID", rqID), slog.String("op", op), slog.String("path", path), slog.String("err", err.Error()))
		return fmt.Errorf("%w: %w", externalApi.ErrBadResponse, err)
	}

	return nil
}
