package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

// RSI is a mean-reversion strategy on the relative strength index computed
// from simple averages of close-to-close gains and losses.
type RSI struct {
	Window     int
	Overbought decimal.Decimal
	Oversold   decimal.Decimal
}

// NewRSI validates the window and bands.
func NewRSI(window int, overbought, oversold decimal.Decimal) (*RSI, error) {
	if window <= 0 {
		return nil, fmt.Errorf("strategy: rsi: window must be > 0, got %d: %w", window, domain.ErrInvalidConfig)
	}
	if !oversold.LessThan(overbought) {
		return nil, fmt.Errorf("strategy: rsi: oversold %s must be below overbought %s: %w", oversold, overbought, domain.ErrInvalidConfig)
	}
	return &RSI{Window: window, Overbought: overbought, Oversold: oversold}, nil
}

// Name returns the strategy identifier.
func (r *RSI) Name() string { return "rsi" }

// SignalFor implements BarStrategy. It needs Window+1 bars.
func (r *RSI) SignalFor(history []domain.Bar) domain.Signal {
	value, ok := RSIValue(history, r.Window)
	if !ok {
		return domain.SignalHold
	}
	switch {
	case value.LessThan(r.Oversold):
		return domain.SignalBuy
	case value.GreaterThan(r.Overbought):
		return domain.SignalSell
	}
	return domain.SignalHold
}

var hundred = decimal.NewFromInt(100)

// RSIValue returns the RSI over the last window close-to-close deltas. ok is
// false when there are too few bars or the window is completely flat.
func RSIValue(history []domain.Bar, window int) (decimal.Decimal, bool) {
	n := len(history)
	if window <= 0 || n < window+1 {
		return decimal.Zero, false
	}
	gain, loss := decimal.Zero, decimal.Zero
	for i := n - window; i < n; i++ {
		delta := history[i].Close.Sub(history[i-1].Close)
		if delta.IsPositive() {
			gain = gain.Add(delta)
		} else {
			loss = loss.Sub(delta)
		}
	}
	if loss.IsZero() {
		if gain.IsZero() {
			return decimal.Zero, false
		}
		return hundred, true
	}
	// The window length cancels out of avgGain/avgLoss.
	rs := gain.Div(loss)
	return hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs))), true
}
