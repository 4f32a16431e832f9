package backtest

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// BuildReport derives the summary statistics from a ledger and equity curve.
// An empty curve reports final equity equal to the initial capital.
func BuildReport(initial decimal.Decimal, trades []domain.Trade, curve []domain.EquityPoint) domain.BacktestReport {
	final := initial
	if n := len(curve); n > 0 {
		final = curve[n-1].TotalEquity
	}
	ret := decimal.Zero
	if initial.IsPositive() {
		ret = final.Sub(initial).Div(initial)
	}
	dd := MaxDrawdown(curve)
	return domain.BacktestReport{
		InitialCapital:     initial,
		FinalEquity:        final,
		TotalReturn:        ret,
		TotalReturnPercent: ret.Mul(hundred),
		MaxDrawdown:        dd,
		MaxDrawdownPercent: dd.Mul(hundred),
		TradeCount:         len(trades),
		Trades:             trades,
		EquityCurve:        curve,
	}
}

// MaxDrawdown returns the most negative (equity - peak) / peak over the curve,
// where peak is the running maximum. It is 0 for a curve that never dips
// below its peak and never positive.
func MaxDrawdown(curve []domain.EquityPoint) decimal.Decimal {
	worst := decimal.Zero
	var peak decimal.Decimal
	for i, p := range curve {
		if i == 0 || p.TotalEquity.GreaterThan(peak) {
			peak = p.TotalEquity
		}
		if !peak.IsPositive() {
			continue
		}
		dd := p.TotalEquity.Sub(peak).Div(peak)
		if dd.LessThan(worst) {
			worst = dd
		}
	}
	return worst
}
