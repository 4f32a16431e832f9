package arbitrage

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// ladder builds a ladder from alternating price, volume strings.
func ladder(pv ...string) domain.Ladder {
	out := make(domain.Ladder, 0, len(pv)/2)
	for i := 0; i+1 < len(pv); i += 2 {
		out = append(out, domain.PriceLevel{Price: dec(pv[i]), Volume: dec(pv[i+1])})
	}
	return out
}

func book(ex string, bids, asks domain.Ladder) domain.OrderBookSnapshot {
	return domain.OrderBookSnapshot{
		ExchangeID: ex,
		Instrument: "BTC/USDT",
		Bids:       bids,
		Asks:       asks,
		ObservedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}
