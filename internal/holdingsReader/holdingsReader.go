// Package holdingsReader holds what the csv and xlsx readers share: the
// column layout and the row rules.
//
// A row whose quantity or cost is not a usable number is skipped with a
// warning. A row missing the symbol, quantity or cost ends the data.
package holdingsReader

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/KotFed0t/portfolio_tracker/internal/model"
)

const (
	ColumnCompanyName = "Company Name"
	ColumnSymbol      = "Symbol"
	ColumnQty         = "Qty"
	ColumnCostShare   = "Cost/share"
)

var (
	ErrMalformedRow  = errors.New("malformed row")
	ErrEndOfData     = errors.New("end of data")
	ErrMissingColumn = errors.New("missing column")
)

// ParseRow turns raw cell values into a holding. It returns ErrEndOfData when
// a required cell is empty and ErrMalformedRow when a number is unusable.
func ParseRow(companyName, symbol, qty, cost string) (model.RawHolding, error) {
	symbol = strings.TrimSpace(symbol)
	qty = strings.TrimSpace(qty)
	cost = strings.TrimSpace(cost)

	if symbol == "" || qty == "" || cost == "" {
		return model.RawHolding{}, ErrEndOfData
	}

	quantity, err := ParseNumber(qty)
	if err != nil {
		return model.RawHolding{}, fmt.Errorf("%w: quantity %q: %w", ErrMalformedRow, qty, err)
	}
	if quantity <= 0 {
		return model.RawHolding{}, fmt.Errorf("%w: quantity %v must be positive", ErrMalformedRow, quantity)
	}

	costPerShare, err := ParseNumber(cost)
	if err != nil {
		return model.RawHolding{}, fmt.Errorf("%w: cost per share %q: %w", ErrMalformedRow, cost, err)
	}
	if costPerShare < 0 {
		return model.RawHolding{}, fmt.Errorf("%w: cost per share %v must not be negative", ErrMalformedRow, costPerShare)
	}

	return model.RawHolding{
		CompanyName:  strings.TrimSpace(companyName),
		Symbol:       strings.ToUpper(symbol),
		Quantity:     quantity,
		CostPerShare: costPerShare,
	}, nil
}

// ParseNumber accepts plain and currency formatted numbers like "$1,234.50".
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not finite", s)
	}
	return f, nil
}
