package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/mmsignal/internal/domain"
	"github.com/alanyoungcy/mmsignal/internal/notify"
)

// ArbConfig holds the gates applied to detected opportunities.
type ArbConfig struct {
	// MinPotentialProfit drops opportunities below this profit.
	MinPotentialProfit decimal.Decimal
	// AlertCooldown suppresses repeat alerts for one route.
	AlertCooldown time.Duration
}

// ArbMetrics is the part of the metrics package ArbService updates.
type ArbMetrics interface {
	OpportunityDetected(o domain.ArbitrageOpportunity)
	AlertSuppressed()
}

// ArbService records opportunities from the detector: persist, publish,
// count and alert. Every dependency except the logger is optional.
type ArbService struct {
	store    domain.OpportunityStore
	bus      domain.SignalBus
	throttle domain.AlertThrottle
	notifier *notify.Notifier
	metrics  ArbMetrics
	cfg      ArbConfig
	logger   *slog.Logger

	mu     sync.Mutex
	recent []domain.ArbitrageOpportunity
}

// recentCap bounds the in-memory history kept when no store is configured.
const recentCap = 200

// NewArbService creates an ArbService.
func NewArbService(
	store domain.OpportunityStore,
	bus domain.SignalBus,
	throttle domain.AlertThrottle,
	notifier *notify.Notifier,
	metrics ArbMetrics,
	cfg ArbConfig,
	logger *slog.Logger,
) *ArbService {
	return &ArbService{
		store:    store,
		bus:      bus,
		throttle: throttle,
		notifier: notifier,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "arb_service")),
	}
}

// Record implements arbitrage.Recorder. Only a persistence failure is
// returned; bus and notification failures are logged.
func (s *ArbService) Record(ctx context.Context, opp domain.ArbitrageOpportunity) error {
	if opp.PotentialProfit.LessThan(s.cfg.MinPotentialProfit) {
		s.logger.DebugContext(ctx, "opportunity below minimum profit",
			slog.String("route", opp.Route()),
			slog.String("potential_profit", opp.PotentialProfit.String()),
		)
		return nil
	}
	if opp.ID == "" {
		opp.ID = uuid.NewString()
	}

	s.logger.InfoContext(ctx, "arbitrage opportunity",
		slog.String("id", opp.ID),
		slog.String("instrument", opp.Instrument),
		slog.String("buy_exchange", opp.BuyExchange),
		slog.String("buy_price", opp.BuyPrice.String()),
		slog.String("sell_exchange", opp.SellExchange),
		slog.String("sell_price", opp.SellPrice.String()),
		slog.String("edge_percent", opp.EdgePercent.StringFixed(4)),
		slog.String("potential_profit", opp.PotentialProfit.StringFixed(4)),
	)

	s.remember(opp)
	if s.metrics != nil {
		s.metrics.OpportunityDetected(opp)
	}

	var storeErr error
	if s.store != nil {
		if err := s.store.Insert(ctx, opp); err != nil {
			storeErr = fmt.Errorf("arb_service: persist %s: %w", opp.ID, err)
			s.logger.ErrorContext(ctx, "persist opportunity failed", slog.String("error", err.Error()))
		}
	}

	s.publish(ctx, opp)
	s.alert(ctx, opp)
	return storeErr
}

func (s *ArbService) publish(ctx context.Context, opp domain.ArbitrageOpportunity) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(opp)
	if err != nil {
		s.logger.ErrorContext(ctx, "encode opportunity failed", slog.String("error", err.Error()))
		return
	}
	if err := s.bus.Publish(ctx, domain.ChannelOpportunities, payload); err != nil {
		s.logger.WarnContext(ctx, "publish opportunity failed", slog.String("error", err.Error()))
	}
	if err := s.bus.StreamAppend(ctx, domain.StreamOpportunities, payload); err != nil {
		s.logger.WarnContext(ctx, "stream opportunity failed", slog.String("error", err.Error()))
	}
}

func (s *ArbService) alert(ctx context.Context, opp domain.ArbitrageOpportunity) {
	if !s.notifier.Enabled() {
		return
	}
	if s.throttle != nil {
		ok, err := s.throttle.Allow(ctx, opp.Route(), s.cfg.AlertCooldown)
		if err != nil {
			// Redis trouble should not silence alerts.
			s.logger.WarnContext(ctx, "alert throttle failed", slog.String("error", err.Error()))
		} else if !ok {
			if s.metrics != nil {
				s.metrics.AlertSuppressed()
			}
			s.logger.DebugContext(ctx, "alert suppressed", slog.String("route", opp.Route()))
			return
		}
	}
	title, msg := notify.FormatOpportunity(opp)
	if err := s.notifier.Notify(ctx, notify.EventArbDetected, title, msg); err != nil {
		s.logger.WarnContext(ctx, "opportunity alert failed", slog.String("error", err.Error()))
	}
}

func (s *ArbService) remember(opp domain.ArbitrageOpportunity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = append(s.recent, opp)
	if len(s.recent) > recentCap {
		s.recent = s.recent[len(s.recent)-recentCap:]
	}
}

// Recent returns up to limit opportunities, newest first, from the store
// when configured and from memory otherwise.
func (s *ArbService) Recent(ctx context.Context, limit int) ([]domain.ArbitrageOpportunity, error) {
	if s.store != nil {
		opps, err := s.store.ListRecent(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("arb_service: list recent: %w", err)
		}
		return opps, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.recent)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.ArbitrageOpportunity, 0, n)
	for i := len(s.recent) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.recent[i])
	}
	return out, nil
}

// Archive moves opportunities older than retention to cold storage.
func (s *ArbService) Archive(ctx context.Context, archiver domain.Archiver, retention time.Duration) (int64, error) {
	if archiver == nil || retention <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-retention)
	n, err := archiver.ArchiveOpportunities(ctx, cutoff)
	if err != nil {
		return n, fmt.Errorf("arb_service: archive: %w", err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "opportunities archived",
			slog.Int64("count", n),
			slog.Time("before", cutoff),
		)
	}
	return n, nil
}
