package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/mmsignal/internal/domain"
	"github.com/alanyoungcy/mmsignal/internal/notify"
)

// SignalMetrics is the part of the metrics package SignalService updates.
type SignalMetrics interface {
	SignalEmitted(ev domain.SignalEvent)
	SetOpenPositions(n int)
}

// PositionCounter reports how many strategy instances hold a position.
type PositionCounter interface {
	OpenPositions() int
}

// SignalService implements strategy.SignalSink: it persists, publishes,
// counts and alerts on every emitted signal.
type SignalService struct {
	store    domain.SignalStore
	bus      domain.SignalBus
	notifier *notify.Notifier
	metrics  SignalMetrics
	logger   *slog.Logger

	mu        sync.RWMutex
	positions PositionCounter
}

// NewSignalService creates a SignalService. Every dependency except the
// logger is optional.
func NewSignalService(
	store domain.SignalStore,
	bus domain.SignalBus,
	notifier *notify.Notifier,
	metrics SignalMetrics,
	logger *slog.Logger,
) *SignalService {
	return &SignalService{
		store:    store,
		bus:      bus,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger.With(slog.String("component", "signal_service")),
	}
}

// TrackPositions attaches the engine whose open positions feed the gauge.
// The engine takes the service as its sink, so this is set after both exist.
func (s *SignalService) TrackPositions(p PositionCounter) {
	s.mu.Lock()
	s.positions = p
	s.mu.Unlock()
}

// Emit implements strategy.SignalSink.
func (s *SignalService) Emit(ctx context.Context, ev domain.SignalEvent) error {
	s.logger.InfoContext(ctx, "signal emitted",
		slog.String("strategy", ev.Strategy),
		slog.String("exchange", ev.Exchange),
		slog.String("instrument", ev.Instrument),
		slog.String("signal", ev.Signal.String()),
		slog.String("price", ev.Price.String()),
		slog.String("side", string(ev.Position.Side)),
	)

	if s.metrics != nil {
		s.metrics.SignalEmitted(ev)
		s.mu.RLock()
		p := s.positions
		s.mu.RUnlock()
		if p != nil {
			s.metrics.SetOpenPositions(p.OpenPositions())
		}
	}

	var storeErr error
	if s.store != nil {
		if err := s.store.Insert(ctx, ev); err != nil {
			storeErr = fmt.Errorf("signal_service: persist %s: %w", ev.ID, err)
			s.logger.ErrorContext(ctx, "persist signal failed", slog.String("error", err.Error()))
		}
	}

	if s.bus != nil {
		if payload, err := json.Marshal(ev); err == nil {
			if err := s.bus.Publish(ctx, domain.ChannelSignals, payload); err != nil {
				s.logger.WarnContext(ctx, "publish signal failed", slog.String("error", err.Error()))
			}
			if err := s.bus.StreamAppend(ctx, domain.StreamSignals, payload); err != nil {
				s.logger.WarnContext(ctx, "stream signal failed", slog.String("error", err.Error()))
			}
		}
	}

	title, msg := notify.FormatSignal(ev)
	if err := s.notifier.Notify(ctx, notify.EventSignal, title, msg); err != nil {
		s.logger.WarnContext(ctx, "signal alert failed", slog.String("error", err.Error()))
	}
	return storeErr
}

// History returns persisted signals; without a store it returns nil.
func (s *SignalService) History(ctx context.Context, opts domain.ListOpts) ([]domain.SignalEvent, error) {
	if s.store == nil {
		return nil, nil
	}
	evs, err := s.store.ListRecent(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("signal_service: history: %w", err)
	}
	return evs, nil
}
