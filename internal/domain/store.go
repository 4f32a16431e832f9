package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// OpportunityStore persists arbitrage opportunity history.
type OpportunityStore interface {
	Insert(ctx context.Context, opp ArbitrageOpportunity) error
	ListRecent(ctx context.Context, limit int) ([]ArbitrageOpportunity, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]ArbitrageOpportunity, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// SignalStore persists emitted live signals.
type SignalStore interface {
	Insert(ctx context.Context, ev SignalEvent) error
	ListRecent(ctx context.Context, opts ListOpts) ([]SignalEvent, error)
}

// BacktestStore persists backtest reports with their ledger and equity curve.
type BacktestStore interface {
	Save(ctx context.Context, report BacktestReport) error
	GetByID(ctx context.Context, id string) (BacktestReport, error)
	List(ctx context.Context, opts ListOpts) ([]BacktestSummary, error)
}
