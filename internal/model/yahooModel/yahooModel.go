package yahooModel

// QuoteResponse is the /v7/finance/quote payload.
type QuoteResponse struct {
	QuoteResponse struct {
		Result []QuoteResult `json:"result"`
		Error  *Error        `json:"error"`
	} `json:"quoteResponse"`
}

type QuoteResult struct {
	Symbol             string   `json:"symbol"`
	LongName           string   `json:"longName"`
	ShortName          string   `json:"shortName"`
	Currency           string   `json:"currency"`
	RegularMarketPrice *float64 `json:"regularMarketPrice"`
	TrailingPE         *float64 `json:"trailingPE"`
}

// SparkResponse is the /v7/finance/spark payload. Closes may contain nulls
// for days without trades.
type SparkResponse struct {
	Spark struct {
		Result []SparkResult `json:"result"`
		Error  *Error        `json:"error"`
	} `json:"spark"`
}

type SparkResult struct {
	Symbol   string `json:"symbol"`
	Response []struct {
		Meta struct {
			Symbol             string  `json:"symbol"`
			RegularMarketPrice float64 `json:"regularMarketPrice"`
		} `json:"meta"`
		Timestamp  []int64 `json:"timestamp"`
		Indicators struct {
			Quote []struct {
				Close []*float64 `json:"close"`
			} `json:"quote"`
		} `json:"indicators"`
	} `json:"response"`
}

type Error struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Closes returns the non-null daily closes in chronological order.
func (r SparkResult) Closes() []float64 {
	if len(r.Response) == 0 || len(r.Response[0].Indicators.Quote) == 0 {
		return nil
	}

	raw := r.Response[0].Indicators.Quote[0].Close
	closes := make([]float64, 0, len(raw))
	for _, c := range raw {
		if c != nil {
			closes = append(closes, *c)
		}
	}
	return closes
}
