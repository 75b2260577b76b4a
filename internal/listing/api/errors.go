package api

import (
	"errors"
	"net/http"

	"listingwatcher/internal/listing/gateway"
	"listingwatcher/internal/listing/lifecycle"
)

type CustomError struct {
	StatusCode int
	Message    string
}

func NewCError(statusCode int, message string) CustomError {
	return CustomError{StatusCode: statusCode, Message: message}
}

func (err CustomError) Error() string {
	return err.Message
}

var (
	ErrSymbolExists = NewCError(http.StatusConflict, "symbol already exists")
	ErrBadOrderID   = NewCError(http.StatusBadRequest, "order id must be a positive integer")
)

var statusByCause = []struct {
	cause  error
	status int
}{
	{lifecycle.ErrSymbolNotFound, http.StatusNotFound},
	{lifecycle.ErrOrderNotFound, http.StatusNotFound},
	{lifecycle.ErrInvalidSymbol, http.StatusBadRequest},
	{lifecycle.ErrInvalidDate, http.StatusBadRequest},
	{lifecycle.ErrInvalidQty, http.StatusBadRequest},
	{lifecycle.ErrNotBuy, http.StatusBadRequest},
	{lifecycle.ErrNotListed, http.StatusConflict},
	{lifecycle.ErrOpenBuy, http.StatusConflict},
	{lifecycle.ErrAlreadySold, http.StatusConflict},
	{lifecycle.ErrSellInProgress, http.StatusConflict},
	{gateway.ErrOrderFailed, http.StatusBadGateway},
	{gateway.ErrOrderUnrecorded, http.StatusInternalServerError},
}

// toCustomError maps lifecycle failures onto HTTP statuses. Unknown errors
// are returned unchanged and end up as 500.
func toCustomError(err error) error {
	if errors.Is(err, lifecycle.ErrSymbolExists) {
		return ErrSymbolExists
	}
	for _, m := range statusByCause {
		if errors.Is(err, m.cause) {
			return NewCError(m.status, err.Error())
		}
	}
	return err
}
