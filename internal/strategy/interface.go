// Package strategy holds the signal-producing strategies: the order-book
// imbalance state machine used live, and bar strategies used in backtests.
package strategy

import (
	"time"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

// BookStrategy turns one exchange's ladder pair into a decision. Instances own
// their position state and must not be shared between goroutines.
type BookStrategy interface {
	Name() string
	Evaluate(bids, asks domain.Ladder, now time.Time) domain.Signal
}

// BarStrategy decides from the bar history visible at the current step
// (every bar up to and including the current one). history has no spare
// capacity past the current bar.
type BarStrategy interface {
	Name() string
	SignalFor(history []domain.Bar) domain.Signal
}

// BarFunc adapts a plain function to BarStrategy.
type BarFunc struct {
	Label string
	Fn    func(history []domain.Bar) domain.Signal
}

// Name returns the label.
func (f BarFunc) Name() string { return f.Label }

// SignalFor calls Fn.
func (f BarFunc) SignalFor(history []domain.Bar) domain.Signal { return f.Fn(history) }
