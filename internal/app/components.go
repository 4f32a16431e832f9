package app

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/mmsignal/internal/arbitrage"
	"github.com/alanyoungcy/mmsignal/internal/config"
	"github.com/alanyoungcy/mmsignal/internal/feed"
	"github.com/alanyoungcy/mmsignal/internal/service"
	"github.com/alanyoungcy/mmsignal/internal/strategy"
)

// components holds the engine pieces a mode runs. Nil fields are not part of
// the mode.
type components struct {
	poller    *feed.Poller
	detector  *arbitrage.Detector
	arbSvc    *service.ArbService
	engine    *strategy.Engine
	signalSvc *service.SignalService
	backtests *service.BacktestService
}

// dec converts a config number to a decimal.
func dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func imbalanceConfig(c config.ImbalanceConfig) strategy.ImbalanceConfig {
	return strategy.ImbalanceConfig{
		ProfitTarget:   dec(c.ProfitTarget),
		StopLossPct:    dec(c.StopLossPct),
		Depth:          c.Depth,
		MinSpread:      dec(c.MinSpread),
		ImbalanceRatio: dec(c.ImbalanceRatio),
		EntryFraction:  dec(c.EntryFraction),
		Cooldown:       c.Cooldown.Duration,
	}
}

func riskConfig(c config.RiskConfig) service.RiskConfig {
	return service.RiskConfig{
		InitialCapital:    dec(c.Capital),
		MaxRiskPerTrade:   dec(c.MaxRiskPerTrade),
		MaxPositionSize:   dec(c.MaxPositionSize),
		StopLossPercent:   dec(c.StopLossPercent),
		TakeProfitPercent: dec(c.TakeProfitPercent),
	}
}

func barParams(c config.BacktestConfig) strategy.BarParams {
	return strategy.BarParams{
		ShortWindow:   c.ShortWindow,
		LongWindow:    c.LongWindow,
		RSIWindow:     c.RSIWindow,
		RSIOverbought: dec(c.RSIOverbought),
		RSIOversold:   dec(c.RSIOversold),
	}
}

func backtestConfig(c config.BacktestConfig) service.BacktestConfig {
	return service.BacktestConfig{
		Symbol:         c.Symbol,
		DataPath:       c.DataPath,
		DataKey:        c.DataKey,
		InitialCapital: dec(c.InitialCapital),
		Commission:     dec(c.Commission),
		Archive:        c.Archive,
	}
}

// newArbStrategy builds the detector strategy named by monitor.detector.
func newArbStrategy(m config.MonitorConfig) (arbitrage.Strategy, error) {
	name := m.Detector
	if name == "" {
		name = config.DetectorTopOfBook
	}
	s, err := arbitrage.New(name, arbitrage.Params{
		ThresholdPercent: dec(m.ThresholdPercent),
		FillVolume:       dec(m.FillVolume),
	})
	if err != nil {
		return nil, fmt.Errorf("app: detector: %w", err)
	}
	return s, nil
}

// newPoller builds the order-book poller over the wired exchange adapters.
func (a *App) newPoller(deps *Dependencies) (*feed.Poller, error) {
	var observer feed.FetchObserver
	if deps.Metrics != nil {
		observer = deps.Metrics
	}
	m := a.cfg.Monitor
	p, err := feed.NewPoller(feed.PollerConfig{
		Exchanges:    deps.Exchanges,
		Instruments:  m.Instruments,
		Depth:        m.BookDepth,
		Interval:     m.RefreshInterval.Duration,
		FetchTimeout: m.FetchTimeout.Duration,
		MaxInFlight:  m.MaxInFlight,
		Cache:        deps.SnapshotCache,
		Bus:          deps.SignalBus,
		Observer:     observer,
		Logger:       a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("app: poller: %w", err)
	}
	return p, nil
}

// newArbService builds the opportunity recorder. It also backs the history
// endpoints when no detector runs.
func (a *App) newArbService(deps *Dependencies) *service.ArbService {
	var m service.ArbMetrics
	if deps.Metrics != nil {
		m = deps.Metrics
	}
	return service.NewArbService(
		deps.OpportunityStore,
		deps.SignalBus,
		deps.AlertThrottle,
		deps.Notifier,
		m,
		service.ArbConfig{
			MinPotentialProfit: dec(a.cfg.Monitor.MinPotentialProfit),
			AlertCooldown:      a.cfg.Monitor.AlertCooldown.Duration,
		},
		a.logger,
	)
}

func (a *App) newDetector(recorder arbitrage.Recorder) (*arbitrage.Detector, error) {
	strat, err := newArbStrategy(a.cfg.Monitor)
	if err != nil {
		return nil, err
	}
	return arbitrage.NewDetector(arbitrage.DetectorConfig{
		Strategy: strat,
		Recorder: recorder,
		Logger:   a.logger,
	}), nil
}

func (a *App) newSignalService(deps *Dependencies) *service.SignalService {
	var m service.SignalMetrics
	if deps.Metrics != nil {
		m = deps.Metrics
	}
	return service.NewSignalService(deps.SignalStore, deps.SignalBus, deps.Notifier, m, a.logger)
}

// newSignalEngine builds the live imbalance engine with the risk manager as
// its sizer and the signal service as its sink.
func (a *App) newSignalEngine(signals *service.SignalService) (*strategy.Engine, error) {
	risk, err := service.NewRiskManager(riskConfig(a.cfg.Risk), a.logger)
	if err != nil {
		return nil, fmt.Errorf("app: risk manager: %w", err)
	}
	engine, err := strategy.NewEngine(imbalanceConfig(a.cfg.Imbalance), signals, risk, a.logger)
	if err != nil {
		return nil, fmt.Errorf("app: signal engine: %w", err)
	}
	signals.TrackPositions(engine)

	a.logger.Info("signal engine configured",
		slog.Float64("profit_target", a.cfg.Imbalance.ProfitTarget),
		slog.Int("depth", a.cfg.Imbalance.Depth),
		slog.Duration("cooldown", a.cfg.Imbalance.Cooldown.Duration),
	)
	return engine, nil
}

func (a *App) newBacktestService(deps *Dependencies) *service.BacktestService {
	bd := service.BacktestDeps{
		Store:    deps.BacktestStore,
		Blobs:    deps.BlobReader,
		Bus:      deps.SignalBus,
		Notifier: deps.Notifier,
	}
	if deps.Archiver != nil {
		bd.Archiver = deps.Archiver
	}
	if deps.Metrics != nil {
		bd.Metrics = deps.Metrics
	}
	return service.NewBacktestService(
		strategy.NewBarRegistry(barParams(a.cfg.Backtest)),
		bd,
		backtestConfig(a.cfg.Backtest),
		a.logger,
	)
}
