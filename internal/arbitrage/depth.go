package arbitrage

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

// DepthWeighted prices a fixed trade size through each exchange's ladder with
// WeightedFill instead of trusting the top level. An exchange whose book cannot
// absorb the full size contributes no candidate on that side. Tie-break rules
// match TopOfBook.
type DepthWeighted struct {
	thresholdPercent decimal.Decimal
	volume           decimal.Decimal
}

// NewDepthWeighted returns a detector that sizes every fill at volume units.
func NewDepthWeighted(thresholdPercent, volume decimal.Decimal) (*DepthWeighted, error) {
	if thresholdPercent.IsNegative() {
		return nil, fmt.Errorf("arbitrage: depth_weighted: threshold_percent must be >= 0: %w", domain.ErrInvalidConfig)
	}
	if !volume.IsPositive() {
		return nil, fmt.Errorf("arbitrage: depth_weighted: fill volume must be > 0: %w", domain.ErrInvalidConfig)
	}
	return &DepthWeighted{thresholdPercent: thresholdPercent, volume: volume}, nil
}

// Name returns the strategy identifier.
func (d *DepthWeighted) Name() string { return "depth_weighted" }

// Detect implements Strategy.
func (d *DepthWeighted) Detect(instrument string, books map[string]domain.OrderBookSnapshot, now time.Time) domain.DetectResult {
	var buy, sell quote
	thin := false
	for _, ex := range sortedExchanges(books) {
		snap := books[ex]
		if len(snap.Bids) > 0 {
			if fill := WeightedFill(snap.Bids, d.volume); fill.Filled() {
				if !sell.found || fill.Price.GreaterThan(sell.level.Price) {
					sell = quote{exchange: ex, level: domain.PriceLevel{Price: fill.Price, Volume: fill.Volume}, found: true}
				}
			} else {
				thin = true
			}
		}
		if len(snap.Asks) > 0 {
			if fill := WeightedFill(snap.Asks, d.volume); fill.Filled() {
				if !buy.found || fill.Price.LessThan(buy.level.Price) {
					buy = quote{exchange: ex, level: domain.PriceLevel{Price: fill.Price, Volume: fill.Volume}, found: true}
				}
			} else {
				thin = true
			}
		}
	}

	if (!buy.found || !sell.found) && thin {
		return domain.NoOpportunity(domain.ReasonInsufficientFill)
	}
	return evaluate(instrument, d.Name(), buy, sell, d.thresholdPercent, d.volume, now)
}
