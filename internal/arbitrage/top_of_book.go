package arbitrage

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// TopOfBook compares only the best level of each exchange's book.
//
// Exchanges are visited in ascending exchange-ID order and a later exchange
// replaces the current extreme only when its price is strictly better, so on a
// tie the lexicographically first exchange wins. Both sides use the same
// rule, so when several exchanges quote an identical crossed book the first
// one takes both sides and the cycle reports ReasonSameExchange instead of a
// cross-exchange opportunity between the tied venues.
type TopOfBook struct {
	thresholdPercent decimal.Decimal
}

// NewTopOfBook returns a top-of-book detector that reports edges of at least
// thresholdPercent (2 means 2%).
func NewTopOfBook(thresholdPercent decimal.Decimal) (*TopOfBook, error) {
	if thresholdPercent.IsNegative() {
		return nil, fmt.Errorf("arbitrage: top_of_book: threshold_percent must be >= 0: %w", domain.ErrInvalidConfig)
	}
	return &TopOfBook{thresholdPercent: thresholdPercent}, nil
}

// Name returns the strategy identifier.
func (t *TopOfBook) Name() string { return "top_of_book" }

// quote is the best level seen on one side and where it came from.
type quote struct {
	exchange string
	level    domain.PriceLevel
	found    bool
}

// Detect implements Strategy.
func (t *TopOfBook) Detect(instrument string, books map[string]domain.OrderBookSnapshot, now time.Time) domain.DetectResult {
	var buy, sell quote
	for _, ex := range sortedExchanges(books) {
		snap := books[ex]
		if bid, ok := snap.BestBid(); ok && bid.Usable() {
			if !sell.found || bid.Price.GreaterThan(sell.level.Price) {
				sell = quote{exchange: ex, level: bid, found: true}
			}
		}
		if ask, ok := snap.BestAsk(); ok && ask.Usable() {
			if !buy.found || ask.Price.LessThan(buy.level.Price) {
				buy = quote{exchange: ex, level: ask, found: true}
			}
		}
	}

	return evaluate(instrument, t.Name(), buy, sell, t.thresholdPercent, decimal.Min(sell.level.Volume, buy.level.Volume), now)
}

// evaluate applies the shared rejection rules and builds the opportunity.
func evaluate(instrument, strategy string, buy, sell quote, thresholdPercent, volume decimal.Decimal, now time.Time) domain.DetectResult {
	if !buy.found || !sell.found {
		return domain.NoOpportunity(domain.ReasonNoCandidates)
	}
	if buy.exchange == sell.exchange {
		return domain.NoOpportunity(domain.ReasonSameExchange)
	}
	buyPrice, sellPrice := buy.level.Price, sell.level.Price
	if !sellPrice.GreaterThan(buyPrice) {
		return domain.NoOpportunity(domain.ReasonNoEdge)
	}
	if !buyPrice.IsPositive() {
		return domain.NoOpportunity(domain.ReasonZeroPrice)
	}

	edge := sellPrice.Sub(buyPrice)
	edgePct := edge.Div(buyPrice).Mul(hundred)
	if edgePct.LessThan(thresholdPercent) {
		return domain.NoOpportunity(domain.ReasonBelowThreshold)
	}

	return domain.Opportunity(domain.ArbitrageOpportunity{
		Instrument:      instrument,
		Strategy:        strategy,
		BuyExchange:     buy.exchange,
		SellExchange:    sell.exchange,
		BuyPrice:        buyPrice,
		SellPrice:       sellPrice,
		BuyVolume:       buy.level.Volume,
		SellVolume:      sell.level.Volume,
		TradableVolume:  volume,
		EdgePerUnit:     edge,
		EdgePercent:     edgePct,
		PotentialProfit: edge.Mul(volume),
		DetectedAt:      now,
	})
}

func sortedExchanges(books map[string]domain.OrderBookSnapshot) []string {
	ids := make([]string, 0, len(books))
	for id := range books {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
