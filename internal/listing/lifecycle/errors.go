package lifecycle

import "errors"

var (
	ErrSymbolExists   = errors.New("symbol already exists")
	ErrSymbolNotFound = errors.New("symbol not found")
	ErrOrderNotFound  = errors.New("order not found")
	ErrInvalidSymbol  = errors.New("invalid symbol name")
	ErrInvalidDate    = errors.New("invalid listing date")
	ErrInvalidQty     = errors.New("invalid quote quantity")
	ErrNotListed      = errors.New("symbol is not listed yet")
	ErrOpenBuy        = errors.New("symbol already has an open buy")
	ErrNotBuy         = errors.New("order is not a buy")
	ErrAlreadySold    = errors.New("buy is already sold")
	ErrSellInProgress = errors.New("sell is already executing")
)
