package model

// Quote is the single per-symbol record every market data provider returns,
// whatever the batch size. PastPrice is 0 when no historical point exists.
type Quote struct {
	Symbol       string   `json:"symbol"`
	CompanyName  string   `json:"company_name"`
	CurrentPrice float64  `json:"current_price"`
	PastPrice    float64  `json:"past_price"`
	PERatio      *float64 `json:"pe_ratio,omitempty"`
}

type QuoteBatch struct {
	Quotes      map[string]Quote
	Unavailable []string
}

func NewQuoteBatch(size int) QuoteBatch {
	return QuoteBatch{Quotes: make(map[string]Quote, size)}
}
