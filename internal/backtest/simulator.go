// Package backtest replays a time-ordered bar series through a BarStrategy
// and produces a deterministic ledger, equity curve and report.
package backtest

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/mmsignal/internal/domain"
	"github.com/alanyoungcy/mmsignal/internal/strategy"
)

// Simulator holds the account parameters shared by every run. It keeps no
// per-run state, so one Simulator can drive many concurrent runs.
type Simulator struct {
	initialCapital decimal.Decimal
	commission     decimal.Decimal
	logger         *slog.Logger
}

// NewSimulator validates the account parameters.
func NewSimulator(initialCapital, commission decimal.Decimal, logger *slog.Logger) (*Simulator, error) {
	if !initialCapital.IsPositive() {
		return nil, fmt.Errorf("backtest: initial capital must be > 0, got %s: %w", initialCapital, domain.ErrInvalidConfig)
	}
	if commission.IsNegative() {
		return nil, fmt.Errorf("backtest: commission must be >= 0, got %s: %w", commission, domain.ErrInvalidConfig)
	}
	return &Simulator{
		initialCapital: initialCapital,
		commission:     commission,
		logger:         logger.With(slog.String("component", "backtest")),
	}, nil
}

// InitialCapital returns the starting capital of every run.
func (s *Simulator) InitialCapital() decimal.Decimal { return s.initialCapital }

// Commission returns the per-trade commission rate.
func (s *Simulator) Commission() decimal.Decimal { return s.commission }

// Run replays series through strat in a single pass. At step i the strategy
// sees bars[0..i]; a Buy while flat converts all capital into units, a Sell
// while holding converts all units back, and every other signal only marks
// the position to market. Bars with a non-positive close are marked but never
// traded.
//
// The buy-side fee is recorded in the ledger but not charged; the sell-side
// fee is deducted from proceeds.
func (s *Simulator) Run(strat strategy.BarStrategy, series []domain.Bar) domain.BacktestReport {
	capital := s.initialCapital
	var pos holding
	trades := make([]domain.Trade, 0)
	curve := make([]domain.EquityPoint, 0, len(series))

	for i, bar := range series {
		price := bar.Close
		sig := strat.SignalFor(series[:i+1:i+1])

		switch {
		case sig == domain.SignalBuy && !pos.open() && price.IsPositive() && capital.IsPositive():
			pos = holding{committed: capital, entryPrice: price, units: capital.Div(price)}
			capital = decimal.Zero
			trades = append(trades, domain.Trade{
				Timestamp: bar.Timestamp,
				Action:    domain.ActionBuy,
				Price:     price,
				Amount:    pos.units,
				Fee:       pos.value(price).Mul(s.commission),
			})
		case sig == domain.SignalSell && pos.open() && price.IsPositive():
			gross := pos.value(price)
			fee := gross.Mul(s.commission)
			capital = gross.Sub(fee)
			trades = append(trades, domain.Trade{
				Timestamp: bar.Timestamp,
				Action:    domain.ActionSell,
				Price:     price,
				Amount:    pos.units,
				Fee:       fee,
			})
			pos = holding{}
		}

		positionValue := pos.value(price)
		curve = append(curve, domain.EquityPoint{
			Timestamp:     bar.Timestamp,
			Capital:       capital,
			PositionValue: positionValue,
			TotalEquity:   capital.Add(positionValue),
		})
	}

	report := BuildReport(s.initialCapital, trades, curve)
	report.Strategy = strat.Name()
	report.Commission = s.commission
	if len(series) > 0 {
		report.StartedAt = series[0].Timestamp
		report.EndedAt = series[len(series)-1].Timestamp
	}

	s.logger.Debug("backtest finished",
		slog.String("strategy", report.Strategy),
		slog.Int("bars", len(series)),
		slog.Int("trades", report.TradeCount),
		slog.String("total_return_pct", report.TotalReturnPercent.StringFixed(4)),
	)
	return report
}

// holding is an open long position. Its value is derived from the capital
// committed at entry (committed * price / entryPrice) rather than from the
// rounded unit count, so a round trip at the entry price returns exactly the
// committed capital.
type holding struct {
	committed  decimal.Decimal
	entryPrice decimal.Decimal
	units      decimal.Decimal
}

func (h holding) open() bool { return h.entryPrice.IsPositive() }

func (h holding) value(price decimal.Decimal) decimal.Decimal {
	if !h.open() {
		return decimal.Zero
	}
	return h.committed.Mul(price).Div(h.entryPrice)
}
