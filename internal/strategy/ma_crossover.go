package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

// MovingAverageCrossover signals when the short simple moving average of
// closes crosses the long one between the previous and the latest bar.
type MovingAverageCrossover struct {
	ShortWindow int
	LongWindow  int
}

// NewMovingAverageCrossover validates the windows.
func NewMovingAverageCrossover(short, long int) (*MovingAverageCrossover, error) {
	if short <= 0 || long <= 0 {
		return nil, fmt.Errorf("strategy: ma_crossover: windows must be > 0 (short=%d long=%d): %w", short, long, domain.ErrInvalidConfig)
	}
	if short >= long {
		return nil, fmt.Errorf("strategy: ma_crossover: short window %d must be < long window %d: %w", short, long, domain.ErrInvalidConfig)
	}
	return &MovingAverageCrossover{ShortWindow: short, LongWindow: long}, nil
}

// Name returns the strategy identifier.
func (m *MovingAverageCrossover) Name() string { return "ma_crossover" }

// SignalFor implements BarStrategy. It needs LongWindow+1 bars.
func (m *MovingAverageCrossover) SignalFor(history []domain.Bar) domain.Signal {
	n := len(history)
	if n < m.LongWindow+1 {
		return domain.SignalHold
	}
	prev := history[:n-1]
	shortPrev := smaClose(prev, m.ShortWindow)
	longPrev := smaClose(prev, m.LongWindow)
	shortNow := smaClose(history, m.ShortWindow)
	longNow := smaClose(history, m.LongWindow)

	switch {
	case shortPrev.LessThanOrEqual(longPrev) && shortNow.GreaterThan(longNow):
		return domain.SignalBuy
	case shortPrev.GreaterThanOrEqual(longPrev) && shortNow.LessThan(longNow):
		return domain.SignalSell
	}
	return domain.SignalHold
}

// smaClose averages the closes of the last window bars.
func smaClose(bars []domain.Bar, window int) decimal.Decimal {
	sum := decimal.Zero
	for _, b := range bars[len(bars)-window:] {
		sum = sum.Add(b.Close)
	}
	return sum.Div(decimal.NewFromInt(int64(window)))
}
