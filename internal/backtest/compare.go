package backtest

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/mmsignal/internal/domain"
	"github.com/alanyoungcy/mmsignal/internal/strategy"
)

// Compare runs one independent backtest per factory concurrently over the same
// series. Results keep the order of factories.
func Compare(ctx context.Context, sim *Simulator, factories []strategy.Factory, series []domain.Bar) ([]domain.BacktestReport, error) {
	reports := make([]domain.BacktestReport, len(factories))

	g, gctx := errgroup.WithContext(ctx)
	for i, factory := range factories {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			strat, err := factory()
			if err != nil {
				return fmt.Errorf("backtest: compare: build strategy %d: %w", i, err)
			}
			reports[i] = sim.Run(strat, series)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// Comparisons reduces reports to comparison rows.
func Comparisons(reports []domain.BacktestReport) []domain.StrategyComparison {
	out := make([]domain.StrategyComparison, len(reports))
	for i, r := range reports {
		out[i] = domain.StrategyComparison{
			Strategy:           r.Strategy,
			TotalReturnPercent: r.TotalReturnPercent,
			MaxDrawdownPercent: r.MaxDrawdownPercent,
			TradeCount:         r.TradeCount,
			FinalEquity:        r.FinalEquity,
		}
	}
	return out
}
