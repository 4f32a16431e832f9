package domain

import "context"

// Exchange fetches order books from one venue. Instruments use the
// "BASE/QUOTE" form (e.g. "BTC/USDT"); adapters translate to venue symbols.
type Exchange interface {
	Name() string
	FetchOrderBook(ctx context.Context, instrument string, depth int) (OrderBookSnapshot, error)
	Close() error
}
