package arbitrage

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

// FillStatus classifies the outcome of a weighted fill.
type FillStatus int

const (
	FillFilled FillStatus = iota
	FillInsufficientLiquidity
	FillInvalidTarget
	FillEmptyLadder
)

func (s FillStatus) String() string {
	switch s {
	case FillFilled:
		return "filled"
	case FillInsufficientLiquidity:
		return "insufficient_liquidity"
	case FillInvalidTarget:
		return "invalid_target"
	case FillEmptyLadder:
		return "empty_ladder"
	}
	return "unknown"
}

// FillResult is the volume-weighted price of a full market fill. Price and
// Volume are only meaningful when Status is FillFilled.
type FillResult struct {
	Status FillStatus
	Price  decimal.Decimal
	Volume decimal.Decimal
}

// Filled reports whether the full target volume was priced.
func (r FillResult) Filled() bool { return r.Status == FillFilled }

// WeightedFill walks ladder best-first and returns the volume-weighted average
// price for filling exactly target units. A partial fill never yields a price.
// Levels with a non-positive price or volume are skipped as absent liquidity.
func WeightedFill(ladder domain.Ladder, target decimal.Decimal) FillResult {
	if !target.IsPositive() {
		return FillResult{Status: FillInvalidTarget}
	}
	if len(ladder) == 0 {
		return FillResult{Status: FillEmptyLadder}
	}

	remaining := target
	cost := decimal.Zero
	for _, lvl := range ladder {
		if !lvl.Usable() || !lvl.Volume.IsPositive() {
			continue
		}
		take := decimal.Min(remaining, lvl.Volume)
		cost = cost.Add(take.Mul(lvl.Price))
		remaining = remaining.Sub(take)
		if remaining.IsZero() {
			break
		}
	}
	if remaining.IsPositive() {
		return FillResult{Status: FillInsufficientLiquidity}
	}
	return FillResult{
		Status: FillFilled,
		Price:  cost.Div(target),
		Volume: target,
	}
}
