package notify

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

// FormatOpportunity renders an arbitrage alert.
func FormatOpportunity(o domain.ArbitrageOpportunity) (title, message string) {
	title = fmt.Sprintf("Arbitrage %s: %s -> %s", o.Instrument, o.BuyExchange, o.SellExchange)
	var b strings.Builder
	fmt.Fprintf(&b, "Buy %s @ %s\n", o.BuyExchange, o.BuyPrice.String())
	fmt.Fprintf(&b, "Sell %s @ %s\n", o.SellExchange, o.SellPrice.String())
	fmt.Fprintf(&b, "Edge %s%% (%s/unit)\n", o.EdgePercent.StringFixed(4), o.EdgePerUnit.String())
	fmt.Fprintf(&b, "Volume %s, potential profit %s", o.TradableVolume.String(), o.PotentialProfit.StringFixed(4))
	return title, b.String()
}

// FormatSignal renders a live signal alert.
func FormatSignal(ev domain.SignalEvent) (title, message string) {
	title = fmt.Sprintf("%s %s on %s %s", strings.ToUpper(ev.Signal.String()), ev.Instrument, ev.Exchange, ev.Strategy)
	var b strings.Builder
	fmt.Fprintf(&b, "Price %s", ev.Price.String())
	if !ev.Position.IsFlat() {
		fmt.Fprintf(&b, "\nOpened %s @ %s, TP %s, SL %s",
			ev.Position.Side, ev.Position.EntryPrice.String(),
			ev.Position.TakeProfitPrice.String(), ev.Position.StopLossPrice.String())
	}
	if ev.SuggestedSize.IsPositive() {
		fmt.Fprintf(&b, "\nSuggested size %s", ev.SuggestedSize.StringFixed(6))
	}
	return title, b.String()
}

// FormatBacktest renders a completed-backtest summary.
func FormatBacktest(r domain.BacktestReport) (title, message string) {
	title = fmt.Sprintf("Backtest %s on %s finished", r.Strategy, r.Symbol)
	message = fmt.Sprintf("Return %s%%, max drawdown %s%%, %d trades, final equity %s",
		r.TotalReturnPercent.StringFixed(2), r.MaxDrawdownPercent.StringFixed(2),
		r.TradeCount, r.FinalEquity.StringFixed(2))
	return title, message
}
