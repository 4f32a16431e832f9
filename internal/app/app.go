// Package app wires the configured backends into the detector, the signal
// engine and the backtest service and runs them for the selected mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/mmsignal/internal/config"
)

// modeFunc runs one operating mode until ctx ends or, for backtests, until
// the run completes.
type modeFunc func(a *App, ctx context.Context, deps *Dependencies) error

var modes = map[string]modeFunc{
	config.ModeMonitor:  (*App).MonitorMode,
	config.ModeSignal:   (*App).SignalMode,
	config.ModeBacktest: (*App).BacktestMode,
	config.ModeServer:   (*App).ServerMode,
	config.ModeFull:     (*App).FullMode,
}

// App owns the configuration and the teardown functions of everything Run
// connected.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run connects the backends the mode needs and blocks in the mode.
func (a *App) Run(ctx context.Context) error {
	run, ok := modes[strings.ToLower(a.cfg.Mode)]
	if !ok {
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}

	a.logger.InfoContext(ctx, "starting",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	return run(a, ctx, deps)
}

// Close runs the registered teardown functions newest first. Calling it again
// does nothing.
func (a *App) Close() {
	if len(a.closers) == 0 {
		return
	}
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
