package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ArbitrageOpportunity is a cross-exchange edge for one instrument. It only
// exists when SellPrice > BuyPrice and BuyExchange != SellExchange.
type ArbitrageOpportunity struct {
	ID              string          `json:"id"`
	Instrument      string          `json:"instrument"`
	Strategy        string          `json:"strategy"`
	BuyExchange     string          `json:"buy_exchange"`
	SellExchange    string          `json:"sell_exchange"`
	BuyPrice        decimal.Decimal `json:"buy_price"`
	SellPrice       decimal.Decimal `json:"sell_price"`
	BuyVolume       decimal.Decimal `json:"buy_volume"`
	SellVolume      decimal.Decimal `json:"sell_volume"`
	TradableVolume  decimal.Decimal `json:"tradable_volume"`
	EdgePerUnit     decimal.Decimal `json:"edge_per_unit"`
	EdgePercent     decimal.Decimal `json:"edge_percent"`
	PotentialProfit decimal.Decimal `json:"potential_profit"`
	DetectedAt      time.Time       `json:"detected_at"`
}

// Route identifies the (instrument, buy, sell) triple used for alert throttling.
func (o ArbitrageOpportunity) Route() string {
	return o.Instrument + ":" + o.BuyExchange + ">" + o.SellExchange
}

// NoOpportunityReason explains why a detector produced nothing.
type NoOpportunityReason string

const (
	ReasonNoCandidates     NoOpportunityReason = "no_candidates"
	ReasonSameExchange     NoOpportunityReason = "same_exchange"
	ReasonNoEdge           NoOpportunityReason = "no_edge"
	ReasonZeroPrice        NoOpportunityReason = "zero_price"
	ReasonBelowThreshold   NoOpportunityReason = "below_threshold"
	ReasonInsufficientFill NoOpportunityReason = "insufficient_liquidity"
)

// DetectResult is either an Opportunity or NoOpportunity with a reason.
type DetectResult struct {
	Opportunity *ArbitrageOpportunity
	Reason      NoOpportunityReason
}

// Found reports whether the result carries an opportunity.
func (r DetectResult) Found() bool { return r.Opportunity != nil }

// Opportunity wraps a detected opportunity.
func Opportunity(o ArbitrageOpportunity) DetectResult {
	return DetectResult{Opportunity: &o}
}

// NoOpportunity builds an empty result with a reason.
func NoOpportunity(reason NoOpportunityReason) DetectResult {
	return DetectResult{Reason: reason}
}
