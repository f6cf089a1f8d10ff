package yahooApi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KotFed0t/portfolio_tracker/config"
	"github.com/KotFed0t/portfolio_tracker/internal/externalApi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quoteBody = `{"quoteResponse":{"result":[
	{"symbol":"AAPL","longName":"Apple Inc.","shortName":"Apple","regularMarketPrice":190.5,"trailingPE":29.4},
	{"symbol":"XYZ","shortName":"Xyz Co","regularMarketPrice":12}
],"error":null}}`

const sparkBody = `{"spark":{"result":[
	{"symbol":"AAPL","response":[{"meta":{"symbol":"AAPL","regularMarketPrice":190.5},
		"timestamp":[1,2,3,4,5],
		"indicators":{"quote":[{"close":[180,null,185,188,190.5]}]}}]},
	{"symbol":"XYZ","response":[{"meta":{"symbol":"XYZ","regularMarketPrice":12},
		"timestamp":[1],
		"indicators":{"quote":[{"close":[11]}]}}]}
],"error":null}}`

func newTestApi(t *testing.T, handler http.HandlerFunc) *YahooApi {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		Provider: config.Provider{LookbackPeriods: 2},
		API: config.API{
			Timeout:  5 * time.Second,
			YahooApi: config.YahooApi{Url: srv.URL},
		},
	}
	return New(cfg)
}

func TestFetchBatch_MultipleSymbols(t *testing.T) {
	var quoteCalls, sparkCalls atomic.Int32

	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v7/finance/quote":
			quoteCalls.Add(1)
			assert.Equal(t, "AAPL,XYZ,NOPE", r.URL.Query().Get("symbols"))
			_, _ = w.Write([]byte(quoteBody))
		case "/v7/finance/spark":
			sparkCalls.Add(1)
			assert.Equal(t, "1d", r.URL.Query().Get("interval"))
			_, _ = w.Write([]byte(sparkBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	batch, err := api.FetchBatch(context.Background(), []string{"AAPL", "XYZ", "NOPE"})
	require.NoError(t, err)

	assert.Equal(t, int32(1), quoteCalls.Load())
	assert.Equal(t, int32(1), sparkCalls.Load())
	assert.Equal(t, []string{"NOPE"}, batch.Unavailable)
	require.Len(t, batch.Quotes, 2)

	aapl := batch.Quotes["AAPL"]
	assert.Equal(t, "Apple Inc.", aapl.CompanyName)
	assert.Equal(t, 190.5, aapl.CurrentPrice)
	// closes without the null: 180 185 188 190.5, two periods back is 185
	assert.Equal(t, 185.0, aapl.PastPrice)
	require.NotNil(t, aapl.PERatio)
	assert.Equal(t, 29.4, *aapl.PERatio)

	xyz := batch.Quotes["XYZ"]
	assert.Equal(t, "Xyz Co", xyz.CompanyName)
	assert.Equal(t, 11.0, xyz.PastPrice)
	assert.Nil(t, xyz.PERatio)
}

func TestFetchBatch_SingleSymbolSameShape(t *testing.T) {
	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v7/finance/quote":
			_, _ = w.Write([]byte(`{"quoteResponse":{"result":[{"symbol":"AAPL","longName":"Apple Inc.","regularMarketPrice":190.5}],"error":null}}`))
		case "/v7/finance/spark":
			_, _ = w.Write([]byte(`{"spark":{"result":[],"error":null}}`))
		}
	})

	batch, err := api.FetchBatch(context.Background(), []string{"aapl"})
	require.NoError(t, err)

	require.Contains(t, batch.Quotes, "aapl")
	assert.Equal(t, 190.5, batch.Quotes["aapl"].CurrentPrice)
	assert.Zero(t, batch.Quotes["aapl"].PastPrice)
	assert.Empty(t, batch.Unavailable)
}

func TestFetchBatch_ChunksSparkRequests(t *testing.T) {
	var sparkCalls atomic.Int32

	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v7/finance/quote":
			_, _ = w.Write([]byte(`{"quoteResponse":{"result":[],"error":null}}`))
		case "/v7/finance/spark":
			sparkCalls.Add(1)
			assert.LessOrEqual(t, len(strings.Split(r.URL.Query().Get("symbols"), ",")), sparkChunkSize)
			_, _ = w.Write([]byte(`{"spark":{"result":[],"error":null}}`))
		}
	})

	symbols := make([]string, 45)
	for i := range symbols {
		symbols[i] = "S" + strings.Repeat("X", i+1)
	}

	batch, err := api.FetchBatch(context.Background(), symbols)
	require.NoError(t, err)
	assert.Equal(t, int32(3), sparkCalls.Load())
	assert.Len(t, batch.Unavailable, 45)
}

func TestFetchBatch_SparkFailureKeepsQuotes(t *testing.T) {
	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v7/finance/quote":
			_, _ = w.Write([]byte(quoteBody))
		case "/v7/finance/spark":
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	batch, err := api.FetchBatch(context.Background(), []string{"AAPL", "XYZ"})
	require.NoError(t, err)

	assert.Empty(t, batch.Unavailable)
	require.Len(t, batch.Quotes, 2)
	assert.Equal(t, 190.5, batch.Quotes["AAPL"].CurrentPrice)
	assert.Zero(t, batch.Quotes["AAPL"].PastPrice)
	assert.Zero(t, batch.Quotes["XYZ"].PastPrice)
}

func TestFetchBatch_HTTPError(t *testing.T) {
	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := api.FetchBatch(context.Background(), []string{"AAPL"})
	require.Error(t, err)

	var apiErr *externalApi.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}

func TestFetchBatch_BadJSON(t *testing.T) {
	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})

	_, err := api.FetchBatch(context.Background(), []string{"AAPL"})
	assert.ErrorIs(t, err, externalApi.ErrBadResponse)
}

func TestFetchBatch_Empty(t *testing.T) {
	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	batch, err := api.FetchBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, batch.Quotes)
}

func TestPastClose(t *testing.T) {
	assert.Zero(t, PastClose(nil, 5))
	assert.Equal(t, 1.0, PastClose([]float64{1, 2, 3}, 5))
	assert.Equal(t, 2.0, PastClose([]float64{1, 2, 3, 4, 5, 6, 7}, 5))
	assert.Equal(t, 7.0, PastClose([]float64{1, 2, 3, 4, 5, 6, 7}, 0))
}
