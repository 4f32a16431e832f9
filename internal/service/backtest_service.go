package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/mmsignal/internal/backtest"
	"github.com/alanyoungcy/mmsignal/internal/domain"
	"github.com/alanyoungcy/mmsignal/internal/notify"
	"github.com/alanyoungcy/mmsignal/internal/strategy"
)

// BacktestConfig holds defaults applied to requests that leave fields empty.
type BacktestConfig struct {
	Symbol         string
	DataPath       string
	DataKey        string
	InitialCapital decimal.Decimal
	Commission     decimal.Decimal
	Archive        bool
}

// BacktestRequest describes one run, or a comparison when Strategies is set.
// Bars take precedence over DataKey, which takes precedence over DataPath.
// Signals feed the signal_replay strategy.
type BacktestRequest struct {
	Strategy       string               `json:"strategy"`
	Strategies     []string             `json:"strategies,omitempty"`
	Symbol         string               `json:"symbol,omitempty"`
	DataPath       string               `json:"data_path,omitempty"`
	DataKey        string               `json:"data_key,omitempty"`
	Bars           []domain.Bar         `json:"bars,omitempty"`
	Signals        []domain.SignalEvent `json:"signals,omitempty"`
	InitialCapital *decimal.Decimal     `json:"initial_capital,omitempty"`
	Commission     *decimal.Decimal     `json:"commission,omitempty"`
}

// BacktestMetrics is the part of the metrics package BacktestService updates.
type BacktestMetrics interface {
	BacktestCompleted(strategy string)
}

// BacktestService runs simulations on demand and keeps their reports.
type BacktestService struct {
	strategies *strategy.Registry
	store      domain.BacktestStore
	blobs      domain.BlobReader
	archiver   BacktestArchiver
	bus        domain.SignalBus
	notifier   *notify.Notifier
	metrics    BacktestMetrics
	cfg        BacktestConfig
	logger     *slog.Logger

	mu     sync.RWMutex
	memory map[string]domain.BacktestReport
}

// BacktestArchiver is the archive side BacktestService needs.
type BacktestArchiver interface {
	ArchiveBacktest(ctx context.Context, report domain.BacktestReport) (string, error)
	LoadBacktest(ctx context.Context, id string) (domain.BacktestReport, error)
}

// BacktestDeps groups the optional collaborators of BacktestService.
type BacktestDeps struct {
	Store    domain.BacktestStore
	Blobs    domain.BlobReader
	Archiver BacktestArchiver
	Bus      domain.SignalBus
	Notifier *notify.Notifier
	Metrics  BacktestMetrics
}

// NewBacktestService creates a BacktestService. Reports are kept in memory
// when no store is configured.
func NewBacktestService(strategies *strategy.Registry, deps BacktestDeps, cfg BacktestConfig, logger *slog.Logger) *BacktestService {
	return &BacktestService{
		strategies: strategies,
		store:      deps.Store,
		blobs:      deps.Blobs,
		archiver:   deps.Archiver,
		bus:        deps.Bus,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "backtest_service")),
		memory:     make(map[string]domain.BacktestReport),
	}
}

// Strategies lists the registered bar strategies plus signal_replay.
func (s *BacktestService) Strategies() []string {
	names := append(s.strategies.List(), strategy.SignalReplayName)
	sort.Strings(names)
	return names
}

// factory resolves name against the registry. signal_replay is built from
// the request's recorded signals.
func (s *BacktestService) factory(name string, req BacktestRequest) (strategy.Factory, error) {
	if name != strategy.SignalReplayName {
		f, err := s.strategies.Factory(name)
		if err != nil {
			return nil, fmt.Errorf("backtest_service: %w", err)
		}
		return f, nil
	}
	if len(req.Signals) == 0 {
		return nil, fmt.Errorf("backtest_service: %s needs signals: %w", name, domain.ErrInvalidConfig)
	}
	return func() (strategy.BarStrategy, error) {
		return strategy.NewSignalReplay(req.Signals), nil
	}, nil
}

// Run executes a single backtest and records its report.
func (s *BacktestService) Run(ctx context.Context, req BacktestRequest) (domain.BacktestReport, error) {
	if req.Strategy == "" {
		return domain.BacktestReport{}, fmt.Errorf("backtest_service: strategy is required: %w", domain.ErrUnknownStrategy)
	}
	f, err := s.factory(req.Strategy, req)
	if err != nil {
		return domain.BacktestReport{}, err
	}
	strat, err := f()
	if err != nil {
		return domain.BacktestReport{}, fmt.Errorf("backtest_service: %w", err)
	}
	sim, err := s.simulator(req)
	if err != nil {
		return domain.BacktestReport{}, err
	}
	bars, err := s.loadBars(ctx, req)
	if err != nil {
		return domain.BacktestReport{}, err
	}

	report := sim.Run(strat, bars)
	s.finish(ctx, &report, req)
	return report, nil
}

// Compare runs every strategy in req.Strategies over the same bars
// concurrently. Reports keep the requested order.
func (s *BacktestService) Compare(ctx context.Context, req BacktestRequest) ([]domain.BacktestReport, error) {
	names := req.Strategies
	if len(names) == 0 {
		return nil, fmt.Errorf("backtest_service: compare needs strategies: %w", domain.ErrUnknownStrategy)
	}
	factories := make([]strategy.Factory, len(names))
	for i, name := range names {
		f, err := s.factory(name, req)
		if err != nil {
			return nil, err
		}
		factories[i] = f
	}
	sim, err := s.simulator(req)
	if err != nil {
		return nil, err
	}
	bars, err := s.loadBars(ctx, req)
	if err != nil {
		return nil, err
	}

	reports, err := backtest.Compare(ctx, sim, factories, bars)
	if err != nil {
		return nil, fmt.Errorf("backtest_service: compare: %w", err)
	}
	for i := range reports {
		s.finish(ctx, &reports[i], req)
	}
	return reports, nil
}

// Get returns a report from the store, the archive or memory, in that order.
func (s *BacktestService) Get(ctx context.Context, id string) (domain.BacktestReport, error) {
	if s.store != nil {
		r, err := s.store.GetByID(ctx, id)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.BacktestReport{}, fmt.Errorf("backtest_service: get %s: %w", id, err)
		}
	}
	if s.archiver != nil {
		r, err := s.archiver.LoadBacktest(ctx, id)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "load archived backtest failed",
				slog.String("id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.memory[id]; ok {
		return r, nil
	}
	return domain.BacktestReport{}, fmt.Errorf("backtest_service: %s: %w", id, domain.ErrNotFound)
}

// List returns summaries newest first.
func (s *BacktestService) List(ctx context.Context, opts domain.ListOpts) ([]domain.BacktestSummary, error) {
	if s.store != nil {
		out, err := s.store.List(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("backtest_service: list: %w", err)
		}
		return out, nil
	}

	s.mu.RLock()
	out := make([]domain.BacktestSummary, 0, len(s.memory))
	for _, r := range s.memory {
		out = append(out, r.Summary())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []domain.BacktestSummary{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *BacktestService) simulator(req BacktestRequest) (*backtest.Simulator, error) {
	capital := s.cfg.InitialCapital
	if req.InitialCapital != nil {
		capital = *req.InitialCapital
	}
	commission := s.cfg.Commission
	if req.Commission != nil {
		commission = *req.Commission
	}
	sim, err := backtest.NewSimulator(capital, commission, s.logger)
	if err != nil {
		return nil, fmt.Errorf("backtest_service: %w", err)
	}
	return sim, nil
}

func (s *BacktestService) loadBars(ctx context.Context, req BacktestRequest) ([]domain.Bar, error) {
	if len(req.Bars) > 0 {
		return req.Bars, nil
	}

	key, path := req.DataKey, req.DataPath
	if key == "" && path == "" {
		key, path = s.cfg.DataKey, s.cfg.DataPath
	}

	var (
		src    io.ReadCloser
		origin string
		err    error
	)
	switch {
	case key != "":
		if s.blobs == nil {
			return nil, fmt.Errorf("backtest_service: data key %q given but object storage is not configured: %w", key, domain.ErrInvalidConfig)
		}
		origin = "s3://" + key
		src, err = s.blobs.Get(ctx, key)
	case path != "":
		origin = path
		src, err = os.Open(path)
	default:
		return nil, fmt.Errorf("backtest_service: no bars, data_path or data_key: %w", domain.ErrEmptySeries)
	}
	if err != nil {
		return nil, fmt.Errorf("backtest_service: open %s: %w", origin, err)
	}
	defer src.Close()

	bars, err := backtest.LoadBarsCSV(src)
	if err != nil {
		return nil, fmt.Errorf("backtest_service: load %s: %w", origin, err)
	}
	s.logger.DebugContext(ctx, "bars loaded", slog.String("source", origin), slog.Int("bars", len(bars)))
	return bars, nil
}

// finish stamps identity onto a report and fans it out. Storage and
// notification failures are logged; the report is always kept in memory.
func (s *BacktestService) finish(ctx context.Context, report *domain.BacktestReport, req BacktestRequest) {
	report.ID = uuid.NewString()
	report.Symbol = firstNonEmpty(req.Symbol, s.cfg.Symbol)
	report.CreatedAt = time.Now().UTC()

	s.mu.Lock()
	s.memory[report.ID] = *report
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "backtest completed",
		slog.String("id", report.ID),
		slog.String("strategy", report.Strategy),
		slog.String("symbol", report.Symbol),
		slog.String("final_equity", report.FinalEquity.StringFixed(2)),
		slog.String("total_return_pct", report.TotalReturnPercent.StringFixed(2)),
		slog.String("max_drawdown_pct", report.MaxDrawdownPercent.StringFixed(2)),
		slog.Int("trades", report.TradeCount),
	)

	if s.metrics != nil {
		s.metrics.BacktestCompleted(report.Strategy)
	}
	if s.store != nil {
		if err := s.store.Save(ctx, *report); err != nil {
			s.logger.ErrorContext(ctx, "persist backtest failed", slog.String("error", err.Error()))
		}
	}
	if s.archiver != nil && s.cfg.Archive {
		if prefix, err := s.archiver.ArchiveBacktest(ctx, *report); err != nil {
			s.logger.ErrorContext(ctx, "archive backtest failed", slog.String("error", err.Error()))
		} else {
			s.logger.InfoContext(ctx, "backtest archived", slog.String("prefix", prefix))
		}
	}
	if s.bus != nil {
		if payload, err := json.Marshal(report.Summary()); err == nil {
			if err := s.bus.Publish(ctx, domain.ChannelBacktests, payload); err != nil {
				s.logger.WarnContext(ctx, "publish backtest failed", slog.String("error", err.Error()))
			}
		}
	}
	title, msg := notify.FormatBacktest(*report)
	if err := s.notifier.Notify(ctx, notify.EventBacktestCompleted, title, msg); err != nil {
		s.logger.WarnContext(ctx, "backtest alert failed", slog.String("error", err.Error()))
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
