package portfolio

import "errors"

var (
	ErrInvalidSymbol  = errors.New("invalid symbol")
	ErrInvalidLot     = errors.New("invalid lot")
	ErrLengthMismatch = errors.New("quantities and costs length mismatch")
	ErrSymbolNotFound = errors.New("symbol not found")
	ErrEmptyPortfolio = errors.New("portfolio has no holdings")
	ErrUnusablePrice  = errors.New("unusable price")

	ErrSymbolUnavailable = errors.New("no market data for symbol")
)
