package externalApi

import (
	"errors"
	"fmt"
)

var ErrBadResponse = errors.New("bad response")

type APIError struct {
	Provider   string
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error: %s (status: %d, endpoint: %s)", e.Provider, e.Message, e.StatusCode, e.Endpoint)
}
