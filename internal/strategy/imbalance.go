package strategy

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

// ImbalanceConfig is fixed at construction. Percent-like fields are fractions
// (0.001 = 0.1%).
type ImbalanceConfig struct {
	ProfitTarget   decimal.Decimal
	StopLossPct    decimal.Decimal
	Depth          int
	MinSpread      decimal.Decimal
	ImbalanceRatio decimal.Decimal
	EntryFraction  decimal.Decimal
	Cooldown       time.Duration
}

// DefaultImbalanceConfig returns the scalping defaults.
func DefaultImbalanceConfig() ImbalanceConfig {
	return ImbalanceConfig{
		ProfitTarget:   decimal.RequireFromString("0.001"),
		StopLossPct:    decimal.RequireFromString("0.0005"),
		Depth:          10,
		MinSpread:      decimal.RequireFromString("0.0001"),
		ImbalanceRatio: decimal.RequireFromString("1.5"),
		EntryFraction:  decimal.RequireFromString("0.1"),
		Cooldown:       5 * time.Second,
	}
}

// Validate rejects parameter sets that would break the take-profit/stop-loss
// ordering or make the entry rule meaningless.
func (c ImbalanceConfig) Validate() error {
	var errs []string
	one := decimal.NewFromInt(1)
	if !c.ProfitTarget.IsPositive() || !c.ProfitTarget.LessThan(one) {
		errs = append(errs, fmt.Sprintf("profit_target must be in (0, 1), got %s", c.ProfitTarget))
	}
	if !c.StopLossPct.IsPositive() || !c.StopLossPct.LessThan(one) {
		errs = append(errs, fmt.Sprintf("stop_loss_pct must be in (0, 1), got %s", c.StopLossPct))
	}
	if c.Depth < 1 {
		errs = append(errs, fmt.Sprintf("depth must be >= 1, got %d", c.Depth))
	}
	if c.MinSpread.IsNegative() {
		errs = append(errs, fmt.Sprintf("min_spread must be >= 0, got %s", c.MinSpread))
	}
	if !c.ImbalanceRatio.IsPositive() {
		errs = append(errs, fmt.Sprintf("imbalance_ratio must be > 0, got %s", c.ImbalanceRatio))
	}
	if c.EntryFraction.IsNegative() || c.EntryFraction.GreaterThan(one) {
		errs = append(errs, fmt.Sprintf("entry_fraction must be in [0, 1], got %s", c.EntryFraction))
	}
	if c.Cooldown < 0 {
		errs = append(errs, fmt.Sprintf("cooldown must be >= 0, got %s", c.Cooldown))
	}
	if len(errs) > 0 {
		return fmt.Errorf("strategy: imbalance: %s: %w", strings.Join(errs, "; "), domain.ErrInvalidConfig)
	}
	return nil
}

// ImbalanceState is everything StepImbalance carries between calls.
type ImbalanceState struct {
	Position domain.Position `json:"position"`
	// LastSignalAt is when the last Buy or Sell was emitted; zero means never.
	LastSignalAt time.Time `json:"last_signal_at"`
}

// coolingDown reports whether now falls inside the cooldown window.
func (s ImbalanceState) coolingDown(cooldown time.Duration, now time.Time) bool {
	return !s.LastSignalAt.IsZero() && now.Sub(s.LastSignalAt) < cooldown
}

// StepImbalance advances the imbalance state machine by one observation. It
// is pure: the returned state replaces the input state.
//
// A Flat state opens Long when bid depth outweighs ask depth by ImbalanceRatio
// (and Short in the mirror case); an open position only closes on its
// take-profit or stop-loss. Every Buy or Sell starts a cooldown during which
// all calls return Hold.
func StepImbalance(cfg ImbalanceConfig, state ImbalanceState, bids, asks domain.Ladder, now time.Time) (domain.Signal, ImbalanceState) {
	if state.coolingDown(cfg.Cooldown, now) {
		return domain.SignalHold, state
	}

	var sig domain.Signal
	if state.Position.IsFlat() {
		sig, state.Position = seekEntry(cfg, bids, asks, now)
	} else {
		sig, state.Position = manage(state.Position, bids, asks)
	}
	if sig != domain.SignalHold {
		state.LastSignalAt = now
	}
	return sig, state
}

// manage checks an open position against its exit thresholds at the mid price.
func manage(pos domain.Position, bids, asks domain.Ladder) (domain.Signal, domain.Position) {
	mark, ok := domain.MidPrice(bids, asks)
	if !ok || !mark.IsPositive() {
		return domain.SignalHold, pos
	}
	switch pos.Side {
	case domain.SideLong:
		if mark.GreaterThanOrEqual(pos.TakeProfitPrice) || mark.LessThanOrEqual(pos.StopLossPrice) {
			return domain.SignalSell, domain.FlatPosition()
		}
	case domain.SideShort:
		if mark.LessThanOrEqual(pos.TakeProfitPrice) || mark.GreaterThanOrEqual(pos.StopLossPrice) {
			return domain.SignalBuy, domain.FlatPosition()
		}
	}
	return domain.SignalHold, pos
}

// seekEntry looks for a depth imbalance wide enough to open a position.
func seekEntry(cfg ImbalanceConfig, bids, asks domain.Ladder, now time.Time) (domain.Signal, domain.Position) {
	flat := domain.FlatPosition()
	if len(bids) < cfg.Depth || len(asks) < cfg.Depth {
		return domain.SignalHold, flat
	}
	bestBid, bestAsk := bids[0].Price, asks[0].Price
	if !bestBid.IsPositive() || !bestAsk.IsPositive() {
		return domain.SignalHold, flat
	}

	spread := bestAsk.Sub(bestBid)
	if spread.Div(bestBid).LessThan(cfg.MinSpread) {
		return domain.SignalHold, flat
	}

	bidVol := bids.DepthVolume(cfg.Depth)
	askVol := asks.DepthVolume(cfg.Depth)
	one := decimal.NewFromInt(1)
	offset := spread.Mul(cfg.EntryFraction)

	switch {
	case bidVol.GreaterThan(askVol.Mul(cfg.ImbalanceRatio)):
		entry := bestAsk.Sub(offset)
		return domain.SignalBuy, domain.Position{
			Side:            domain.SideLong,
			EntryPrice:      entry,
			TakeProfitPrice: entry.Mul(one.Add(cfg.ProfitTarget)),
			StopLossPrice:   entry.Mul(one.Sub(cfg.StopLossPct)),
			OpenedAt:        now,
		}
	case askVol.GreaterThan(bidVol.Mul(cfg.ImbalanceRatio)):
		entry := bestBid.Add(offset)
		return domain.SignalSell, domain.Position{
			Side:            domain.SideShort,
			EntryPrice:      entry,
			TakeProfitPrice: entry.Mul(one.Sub(cfg.ProfitTarget)),
			StopLossPrice:   entry.Mul(one.Add(cfg.StopLossPct)),
			OpenedAt:        now,
		}
	}
	return domain.SignalHold, flat
}

// ImbalanceEngine is a stateful wrapper around StepImbalance for one
// (exchange, instrument) stream. It is not safe for concurrent use.
type ImbalanceEngine struct {
	cfg   ImbalanceConfig
	state ImbalanceState
}

// NewImbalanceEngine validates cfg and returns a Flat engine.
func NewImbalanceEngine(cfg ImbalanceConfig) (*ImbalanceEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ImbalanceEngine{
		cfg:   cfg,
		state: ImbalanceState{Position: domain.FlatPosition()},
	}, nil
}

// Name returns the strategy identifier.
func (e *ImbalanceEngine) Name() string { return "imbalance" }

// Evaluate implements BookStrategy.
func (e *ImbalanceEngine) Evaluate(bids, asks domain.Ladder, now time.Time) domain.Signal {
	sig, next := StepImbalance(e.cfg, e.state, bids, asks, now)
	e.state = next
	return sig
}

// State returns a copy of the current state.
func (e *ImbalanceEngine) State() ImbalanceState { return e.state }

// Config returns the construction-time configuration.
func (e *ImbalanceEngine) Config() ImbalanceConfig { return e.cfg }

// ClosePosition force-resets the position to Flat without emitting a signal
// or touching the cooldown.
func (e *ImbalanceEngine) ClosePosition() {
	e.state.Position = domain.FlatPosition()
}
