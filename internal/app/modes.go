package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/mmsignal/internal/backtest"
	"github.com/alanyoungcy/mmsignal/internal/domain"
	"github.com/alanyoungcy/mmsignal/internal/feed"
	"github.com/alanyoungcy/mmsignal/internal/server"
	"github.com/alanyoungcy/mmsignal/internal/server/handler"
	"github.com/alanyoungcy/mmsignal/internal/server/ws"
	"github.com/alanyoungcy/mmsignal/internal/service"
	"github.com/alanyoungcy/mmsignal/internal/strategy"
)

// MonitorMode polls the configured exchanges and runs the arbitrage detector
// on every cycle. The HTTP server starts when server.enabled is set.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode",
		slog.String("detector", a.cfg.Monitor.Detector),
		slog.Any("instruments", a.cfg.Monitor.Instruments),
	)

	c := &components{backtests: a.newBacktestService(deps)}
	if err := a.addPoller(c, deps); err != nil {
		return fmt.Errorf("monitor mode: %w", err)
	}
	if err := a.addDetector(c, deps); err != nil {
		return fmt.Errorf("monitor mode: %w", err)
	}
	return a.run(ctx, deps, c)
}

// SignalMode polls the configured exchanges and runs the live imbalance
// engine on every book.
func (a *App) SignalMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting signal mode",
		slog.Any("instruments", a.cfg.Monitor.Instruments),
	)

	c := &components{backtests: a.newBacktestService(deps)}
	if err := a.addPoller(c, deps); err != nil {
		return fmt.Errorf("signal mode: %w", err)
	}
	if err := a.addSignalEngine(c, deps); err != nil {
		return fmt.Errorf("signal mode: %w", err)
	}
	return a.run(ctx, deps, c)
}

// ServerMode serves history and on-demand backtests without polling.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode", slog.Int("port", a.cfg.Server.Port))

	c := &components{
		arbSvc:    a.newArbService(deps),
		signalSvc: a.newSignalService(deps),
		backtests: a.newBacktestService(deps),
	}
	return a.run(ctx, deps, c)
}

// FullMode feeds one poller into both the detector and the signal engine and
// serves the HTTP surface.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	c := &components{backtests: a.newBacktestService(deps)}
	if err := a.addPoller(c, deps); err != nil {
		return fmt.Errorf("full mode: %w", err)
	}
	if err := a.addDetector(c, deps); err != nil {
		return fmt.Errorf("full mode: %w", err)
	}
	if err := a.addSignalEngine(c, deps); err != nil {
		return fmt.Errorf("full mode: %w", err)
	}
	return a.run(ctx, deps, c)
}

// BacktestMode runs one backtest, or a comparison when backtest.strategies is
// set, logs the result and returns.
func (a *App) BacktestMode(ctx context.Context, deps *Dependencies) error {
	svc := a.newBacktestService(deps)
	req := service.BacktestRequest{
		Strategy:   a.cfg.Backtest.Strategy,
		Strategies: a.cfg.Backtest.Strategies,
	}

	a.logger.InfoContext(ctx, "starting backtest mode",
		slog.String("strategy", req.Strategy),
		slog.Any("strategies", req.Strategies),
		slog.String("data_path", a.cfg.Backtest.DataPath),
		slog.String("data_key", a.cfg.Backtest.DataKey),
	)

	if len(req.Strategies) > 0 {
		reports, err := svc.Compare(ctx, req)
		if err != nil {
			return fmt.Errorf("backtest mode: %w", err)
		}
		for _, row := range backtest.Comparisons(reports) {
			a.logger.InfoContext(ctx, "strategy comparison",
				slog.String("strategy", row.Strategy),
				slog.String("total_return_percent", row.TotalReturnPercent.StringFixed(2)),
				slog.String("max_drawdown_percent", row.MaxDrawdownPercent.StringFixed(2)),
				slog.Int("trade_count", row.TradeCount),
			)
		}
		return nil
	}

	report, err := svc.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("backtest mode: %w", err)
	}
	summary, err := json.Marshal(report.Summary())
	if err != nil {
		return fmt.Errorf("backtest mode: encode report: %w", err)
	}
	a.logger.InfoContext(ctx, "backtest report",
		slog.String("id", report.ID),
		slog.Any("report", json.RawMessage(summary)),
	)
	return nil
}

func (a *App) addPoller(c *components, deps *Dependencies) error {
	p, err := a.newPoller(deps)
	if err != nil {
		return err
	}
	c.poller = p
	return nil
}

func (a *App) addDetector(c *components, deps *Dependencies) error {
	c.arbSvc = a.newArbService(deps)
	det, err := a.newDetector(c.arbSvc)
	if err != nil {
		return err
	}
	c.detector = det
	return nil
}

func (a *App) addSignalEngine(c *components, deps *Dependencies) error {
	c.signalSvc = a.newSignalService(deps)
	engine, err := a.newSignalEngine(c.signalSvc)
	if err != nil {
		return err
	}
	c.engine = engine
	return nil
}

// run starts every component in c under one errgroup and blocks until the
// context is cancelled or a component fails.
func (a *App) run(ctx context.Context, deps *Dependencies, c *components) error {
	g, ctx := errgroup.WithContext(ctx)

	if c.poller != nil {
		var sinks []chan<- domain.Cycle
		if c.detector != nil {
			ch := make(chan domain.Cycle, 1)
			sinks = append(sinks, ch)
			g.Go(func() error {
				return c.detector.Run(ctx, ch)
			})
		}
		if c.engine != nil {
			ch := make(chan domain.Cycle, 1)
			sinks = append(sinks, ch)
			g.Go(func() error {
				return c.engine.Run(ctx, ch)
			})
		}
		g.Go(func() error {
			return c.poller.Run(ctx, sinks...)
		})
	}

	if c.arbSvc != nil && deps.Archiver != nil && a.cfg.S3.OpportunityRetention.Duration > 0 {
		g.Go(func() error {
			a.archiveLoop(ctx, c.arbSvc, deps.Archiver)
			return nil
		})
	}

	if a.cfg.ServesHTTP() {
		a.startHTTPServer(ctx, g, deps, c)
	}

	return g.Wait()
}

// archiveLoop moves old opportunities to object storage every
// s3.archive_interval. Failures are logged and retried on the next tick.
func (a *App) archiveLoop(ctx context.Context, arbSvc *service.ArbService, archiver domain.Archiver) {
	retention := a.cfg.S3.OpportunityRetention.Duration
	ticker := time.NewTicker(a.cfg.S3.ArchiveInterval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := arbSvc.Archive(ctx, archiver, retention); err != nil {
				a.logger.WarnContext(ctx, "opportunity archive failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// engineProbe reports progress to the status endpoint and the WebSocket
// status frame. Either field may be nil.
type engineProbe struct {
	poller *feed.Poller
	engine *strategy.Engine
}

func (p engineProbe) LastCycle() uint64 {
	if p.poller == nil {
		return 0
	}
	return p.poller.LastCycle().Seq
}

func (p engineProbe) OpenPositions() int {
	if p.engine == nil {
		return 0
	}
	return p.engine.OpenPositions()
}

// healthChecks returns a probe for every wired backend.
func healthChecks(deps *Dependencies) map[string]handler.CheckFunc {
	checks := make(map[string]handler.CheckFunc)
	if deps.Postgres != nil {
		checks["postgres"] = deps.Postgres.Ping
	}
	if deps.Redis != nil {
		checks["redis"] = deps.Redis.Ping
	}
	if deps.S3 != nil {
		checks["s3"] = deps.S3.Health
	}
	return checks
}

// buildHandlers creates the REST handlers for the components of the mode.
func (a *App) buildHandlers(deps *Dependencies, c *components, status *handler.StatusHandler) server.Handlers {
	h := server.Handlers{
		Health: handler.NewHealthHandler(healthChecks(deps), a.logger),
		Status: status,
	}
	if c.arbSvc != nil {
		var latest handler.LatestSource
		if c.detector != nil {
			latest = c.detector
		}
		h.Opportunities = handler.NewOpportunityHandler(c.arbSvc, latest, a.logger)
	}
	if c.signalSvc != nil {
		var engine handler.SignalEngine
		if c.engine != nil {
			engine = c.engine
		}
		h.Signals = handler.NewSignalHandler(c.signalSvc, engine, a.logger)
	}
	if c.backtests != nil {
		h.Backtests = handler.NewBacktestHandler(c.backtests, a.logger)
	}
	if deps.Metrics != nil {
		h.Metrics = deps.Metrics.Handler()
	}
	return h
}

// startHTTPServer adds the HTTP server and, when the bus is wired, the
// WebSocket hub to the errgroup. The server is shut down gracefully when the
// context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, c *components) {
	exchanges := make([]string, 0, len(deps.Exchanges))
	for _, ex := range deps.Exchanges {
		exchanges = append(exchanges, ex.Name())
	}
	var instruments []string
	if c.poller != nil {
		instruments = a.cfg.Monitor.Instruments
	}
	status := handler.NewStatusHandler(a.cfg.Mode, instruments, exchanges, time.Now().UTC(),
		engineProbe{poller: c.poller, engine: c.engine})

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, ws.DefaultChannels, a.cfg.Server.CORSOrigins, status.Status, a.logger)
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	srv := server.NewServer(server.Config{
		Port:           a.cfg.Server.Port,
		CORSOrigins:    a.cfg.Server.CORSOrigins,
		APIKey:         a.cfg.Server.APIKey,
		RateLimitRPS:   a.cfg.Server.RateLimitRPS,
		RateLimitBurst: a.cfg.Server.RateLimitBurst,
	}, a.buildHandlers(deps, c, status), hub, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
