package service

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

// RiskConfig holds position-sizing limits. Fractions are of current capital
// (MaxRiskPerTrade, MaxPositionSize) or of entry price (the percents).
type RiskConfig struct {
	InitialCapital    decimal.Decimal
	MaxRiskPerTrade   decimal.Decimal
	MaxPositionSize   decimal.Decimal
	StopLossPercent   decimal.Decimal
	TakeProfitPercent decimal.Decimal
}

// DefaultRiskConfig returns 10000 capital, 2% risk per trade, 10% max
// position, 5% stop loss and 10% take profit.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		InitialCapital:    decimal.NewFromInt(10000),
		MaxRiskPerTrade:   decimal.RequireFromString("0.02"),
		MaxPositionSize:   decimal.RequireFromString("0.10"),
		StopLossPercent:   decimal.RequireFromString("0.05"),
		TakeProfitPercent: decimal.RequireFromString("0.10"),
	}
}

// Validate checks that every limit is usable.
func (c RiskConfig) Validate() error {
	switch {
	case !c.InitialCapital.IsPositive():
		return fmt.Errorf("risk: initial capital must be positive: %w", domain.ErrInvalidConfig)
	case !c.MaxRiskPerTrade.IsPositive() || c.MaxRiskPerTrade.GreaterThan(decimal.NewFromInt(1)):
		return fmt.Errorf("risk: max risk per trade must be in (0, 1]: %w", domain.ErrInvalidConfig)
	case !c.MaxPositionSize.IsPositive() || c.MaxPositionSize.GreaterThan(decimal.NewFromInt(1)):
		return fmt.Errorf("risk: max position size must be in (0, 1]: %w", domain.ErrInvalidConfig)
	case c.StopLossPercent.IsNegative() || c.TakeProfitPercent.IsNegative():
		return fmt.Errorf("risk: stop loss and take profit percents must be >= 0: %w", domain.ErrInvalidConfig)
	}
	return nil
}

// RiskMetrics is a snapshot of the manager's limits against current capital.
type RiskMetrics struct {
	CurrentCapital     decimal.Decimal `json:"current_capital"`
	MaxRiskPerTrade    decimal.Decimal `json:"max_risk_per_trade"`
	MaxPositionSize    decimal.Decimal `json:"max_position_size"`
	StopLossPercent    decimal.Decimal `json:"stop_loss_percent"`
	TakeProfitPercent  decimal.Decimal `json:"take_profit_percent"`
	RiskAmountPerTrade decimal.Decimal `json:"risk_amount_per_trade"`
	MaxPositionValue   decimal.Decimal `json:"max_position_value"`
}

// RiskManager sizes new positions from the capital at risk. It implements
// strategy.Sizer and is safe for concurrent use.
type RiskManager struct {
	cfg    RiskConfig
	logger *slog.Logger

	mu      sync.RWMutex
	capital decimal.Decimal
}

// NewRiskManager validates cfg and starts at its initial capital.
func NewRiskManager(cfg RiskConfig, logger *slog.Logger) (*RiskManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rm := &RiskManager{
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "risk_manager")),
		capital: cfg.InitialCapital,
	}
	rm.logger.Info("risk manager initialised", slog.String("capital", cfg.InitialCapital.StringFixed(2)))
	return rm, nil
}

// PositionSize returns the units to buy at entry. With a stop distance the
// size risks MaxRiskPerTrade of capital; without one it spends
// MaxPositionSize of capital. The result never exceeds what capital can buy.
// A non-positive entry yields zero.
func (r *RiskManager) PositionSize(entry, stopLoss decimal.Decimal) decimal.Decimal {
	if !entry.IsPositive() {
		return decimal.Zero
	}
	capital := r.Capital()

	var size decimal.Decimal
	perUnit := entry.Sub(stopLoss).Abs()
	if stopLoss.IsPositive() && perUnit.IsPositive() {
		size = capital.Mul(r.cfg.MaxRiskPerTrade).Div(perUnit)
	} else {
		size = capital.Mul(r.cfg.MaxPositionSize).Div(entry)
	}

	if affordable := capital.Div(entry); size.GreaterThan(affordable) {
		size = affordable
	}
	if size.IsNegative() {
		return decimal.Zero
	}
	return size
}

// StopLoss returns the stop price for a position on side.
func (r *RiskManager) StopLoss(entry decimal.Decimal, side domain.Side) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if side == domain.SideShort {
		return entry.Mul(one.Add(r.cfg.StopLossPercent))
	}
	return entry.Mul(one.Sub(r.cfg.StopLossPercent))
}

// TakeProfit returns the target price for a position on side.
func (r *RiskManager) TakeProfit(entry decimal.Decimal, side domain.Side) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if side == domain.SideShort {
		return entry.Mul(one.Sub(r.cfg.TakeProfitPercent))
	}
	return entry.Mul(one.Add(r.cfg.TakeProfitPercent))
}

// Capital returns the current capital.
func (r *RiskManager) Capital() decimal.Decimal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.capital
}

// UpdateCapital replaces the current capital.
func (r *RiskManager) UpdateCapital(capital decimal.Decimal) {
	r.mu.Lock()
	r.capital = capital
	r.mu.Unlock()
	r.logger.Info("capital updated", slog.String("capital", capital.StringFixed(2)))
}

// Metrics snapshots the limits against current capital.
func (r *RiskManager) Metrics() RiskMetrics {
	capital := r.Capital()
	return RiskMetrics{
		CurrentCapital:     capital,
		MaxRiskPerTrade:    r.cfg.MaxRiskPerTrade,
		MaxPositionSize:    r.cfg.MaxPositionSize,
		StopLossPercent:    r.cfg.StopLossPercent,
		TakeProfitPercent:  r.cfg.TakeProfitPercent,
		RiskAmountPerTrade: capital.Mul(r.cfg.MaxRiskPerTrade),
		MaxPositionValue:   capital.Mul(r.cfg.MaxPositionSize),
	}
}
