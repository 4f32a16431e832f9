package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel is a single price+volume entry on one side of a book.
// A level with a non-positive price is treated as absent liquidity.
type PriceLevel struct {
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"volume"`
}

// Usable reports whether the level can take part in a calculation.
func (l PriceLevel) Usable() bool {
	return l.Price.IsPositive()
}

// Ladder is one side of an order book, best price first: bids descending,
// asks ascending. Ordering is the caller's responsibility.
type Ladder []PriceLevel

// Best returns the top-of-book level. ok is false for an empty ladder.
func (l Ladder) Best() (PriceLevel, bool) {
	if len(l) == 0 {
		return PriceLevel{}, false
	}
	return l[0], true
}

// DepthVolume sums the volume of the first n levels (or all of them when the
// ladder is shorter).
func (l Ladder) DepthVolume(n int) decimal.Decimal {
	total := decimal.Zero
	for i := 0; i < n && i < len(l); i++ {
		total = total.Add(l[i].Volume)
	}
	return total
}

// TotalVolume sums every level's volume.
func (l Ladder) TotalVolume() decimal.Decimal {
	return l.DepthVolume(len(l))
}

// Truncate returns at most the first n levels.
func (l Ladder) Truncate(n int) Ladder {
	if n < 0 || n >= len(l) {
		return l
	}
	return l[:n]
}

// OrderBookSnapshot is an immutable point-in-time view of one exchange's book
// for one instrument. A newer snapshot replaces the previous one; it is never
// mutated in place.
type OrderBookSnapshot struct {
	ExchangeID string    `json:"exchange_id"`
	Instrument string    `json:"instrument"`
	Bids       Ladder    `json:"bids"`
	Asks       Ladder    `json:"asks"`
	ObservedAt time.Time `json:"observed_at"`
}

// BestBid returns the highest bid level.
func (s OrderBookSnapshot) BestBid() (PriceLevel, bool) { return s.Bids.Best() }

// BestAsk returns the lowest ask level.
func (s OrderBookSnapshot) BestAsk() (PriceLevel, bool) { return s.Asks.Best() }

// Mid returns (best_bid + best_ask) / 2. ok is false when either side is empty.
func (s OrderBookSnapshot) Mid() (decimal.Decimal, bool) {
	return MidPrice(s.Bids, s.Asks)
}

var two = decimal.NewFromInt(2)

// MidPrice returns the midpoint of the best bid and best ask.
func MidPrice(bids, asks Ladder) (decimal.Decimal, bool) {
	bid, okBid := bids.Best()
	ask, okAsk := asks.Best()
	if !okBid || !okAsk {
		return decimal.Zero, false
	}
	return bid.Price.Add(ask.Price).Div(two), true
}

// BookEvent is the compact top-of-book summary published for dashboards.
type BookEvent struct {
	ExchangeID string          `json:"exchange_id"`
	Instrument string          `json:"instrument"`
	BestBid    decimal.Decimal `json:"best_bid"`
	BestAsk    decimal.Decimal `json:"best_ask"`
	BidLevels  int             `json:"bid_levels"`
	AskLevels  int             `json:"ask_levels"`
	ObservedAt time.Time       `json:"observed_at"`
}

// Event summarises the snapshot for publication.
func (s OrderBookSnapshot) Event() BookEvent {
	ev := BookEvent{
		ExchangeID: s.ExchangeID,
		Instrument: s.Instrument,
		BidLevels:  len(s.Bids),
		AskLevels:  len(s.Asks),
		ObservedAt: s.ObservedAt,
	}
	if b, ok := s.BestBid(); ok {
		ev.BestBid = b.Price
	}
	if a, ok := s.BestAsk(); ok {
		ev.BestAsk = a.Price
	}
	return ev
}
