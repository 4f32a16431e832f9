package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EquityPoint is one bar's mark-to-market state during a replay.
type EquityPoint struct {
	Timestamp     time.Time       `json:"timestamp"`
	Capital       decimal.Decimal `json:"capital"`
	PositionValue decimal.Decimal `json:"position_value"`
	TotalEquity   decimal.Decimal `json:"total_equity"`
}

// BacktestReport is derived from a run's ledger and equity curve.
// TotalReturn and MaxDrawdown are fractions; the *Percent fields scale them by 100.
type BacktestReport struct {
	ID                 string          `json:"id"`
	Strategy           string          `json:"strategy"`
	Symbol             string          `json:"symbol"`
	InitialCapital     decimal.Decimal `json:"initial_capital"`
	FinalEquity        decimal.Decimal `json:"final_equity"`
	Commission         decimal.Decimal `json:"commission"`
	TotalReturn        decimal.Decimal `json:"total_return"`
	TotalReturnPercent decimal.Decimal `json:"total_return_percent"`
	MaxDrawdown        decimal.Decimal `json:"max_drawdown"`
	MaxDrawdownPercent decimal.Decimal `json:"max_drawdown_percent"`
	TradeCount         int             `json:"trade_count"`
	Trades             []Trade         `json:"trades"`
	EquityCurve        []EquityPoint   `json:"equity_curve"`
	StartedAt          time.Time       `json:"started_at"`
	EndedAt            time.Time       `json:"ended_at"`
	CreatedAt          time.Time       `json:"created_at"`
}

// BacktestSummary is a report without its ledger and curve, used for listings.
type BacktestSummary struct {
	ID                 string          `json:"id"`
	Strategy           string          `json:"strategy"`
	Symbol             string          `json:"symbol"`
	InitialCapital     decimal.Decimal `json:"initial_capital"`
	FinalEquity        decimal.Decimal `json:"final_equity"`
	TotalReturnPercent decimal.Decimal `json:"total_return_percent"`
	MaxDrawdownPercent decimal.Decimal `json:"max_drawdown_percent"`
	TradeCount         int             `json:"trade_count"`
	CreatedAt          time.Time       `json:"created_at"`
}

// Summary drops the ledger and curve.
func (r BacktestReport) Summary() BacktestSummary {
	return BacktestSummary{
		ID:                 r.ID,
		Strategy:           r.Strategy,
		Symbol:             r.Symbol,
		InitialCapital:     r.InitialCapital,
		FinalEquity:        r.FinalEquity,
		TotalReturnPercent: r.TotalReturnPercent,
		MaxDrawdownPercent: r.MaxDrawdownPercent,
		TradeCount:         r.TradeCount,
		CreatedAt:          r.CreatedAt,
	}
}

// StrategyComparison is one row of a side-by-side backtest comparison.
type StrategyComparison struct {
	Strategy           string          `json:"strategy"`
	TotalReturnPercent decimal.Decimal `json:"total_return_percent"`
	MaxDrawdownPercent decimal.Decimal `json:"max_drawdown_percent"`
	TradeCount         int             `json:"trade_count"`
	FinalEquity        decimal.Decimal `json:"final_equity"`
}
