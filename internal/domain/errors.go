package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrUnknownExchange  = errors.New("unknown exchange")
	ErrSymbolNotListed  = errors.New("symbol not listed")
	ErrRateLimited      = errors.New("rate limited")
	ErrUnknownStrategy  = errors.New("unknown strategy")
	ErrEmptySeries      = errors.New("empty price series")
	ErrOutOfOrderSeries = errors.New("price series out of order")
)
