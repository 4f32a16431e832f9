package arbitrage

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

// Recorder accepts detected opportunities for persistence and alerting.
type Recorder interface {
	Record(ctx context.Context, opp domain.ArbitrageOpportunity) error
}

// LatestResult is the most recent detector outcome for one instrument.
type LatestResult struct {
	Instrument  string                       `json:"instrument"`
	Cycle       uint64                       `json:"cycle"`
	Exchanges   int                          `json:"exchanges"`
	Opportunity *domain.ArbitrageOpportunity `json:"opportunity,omitempty"`
	Reason      domain.NoOpportunityReason   `json:"reason,omitempty"`
	EvaluatedAt time.Time                    `json:"evaluated_at"`
}

// Detector runs the selected arbitrage strategy on every polling cycle and
// hands opportunities to the Recorder.
type Detector struct {
	strategy Strategy
	recorder Recorder
	logger   *slog.Logger

	mu     sync.RWMutex
	latest map[string]LatestResult
}

// DetectorConfig configures the detector.
type DetectorConfig struct {
	Strategy Strategy
	Recorder Recorder
	Logger   *slog.Logger
}

// NewDetector creates a detector that runs the given strategy.
func NewDetector(cfg DetectorConfig) *Detector {
	return &Detector{
		strategy: cfg.Strategy,
		recorder: cfg.Recorder,
		logger:   cfg.Logger.With(slog.String("component", "arb_detector")),
		latest:   make(map[string]LatestResult),
	}
}

// Run consumes cycles until ctx is cancelled or the channel is closed.
func (d *Detector) Run(ctx context.Context, cycles <-chan domain.Cycle) error {
	d.logger.InfoContext(ctx, "arb detector started", slog.String("strategy", d.strategy.Name()))
	defer d.logger.Info("arb detector stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cycle, ok := <-cycles:
			if !ok {
				return nil
			}
			d.HandleCycle(ctx, cycle)
		}
	}
}

// HandleCycle evaluates every instrument in the cycle and returns the
// opportunities found.
func (d *Detector) HandleCycle(ctx context.Context, cycle domain.Cycle) []domain.ArbitrageOpportunity {
	var found []domain.ArbitrageOpportunity
	for _, inst := range cycle.Instruments() {
		books := cycle.Snapshots(inst)
		res := d.strategy.Detect(inst, books, cycle.CompletedAt)

		d.mu.Lock()
		d.latest[inst] = LatestResult{
			Instrument:  inst,
			Cycle:       cycle.Seq,
			Exchanges:   len(books),
			Opportunity: res.Opportunity,
			Reason:      res.Reason,
			EvaluatedAt: cycle.CompletedAt,
		}
		d.mu.Unlock()

		if !res.Found() {
			d.logger.DebugContext(ctx, "no opportunity",
				slog.String("instrument", inst),
				slog.String("reason", string(res.Reason)),
				slog.Int("exchanges", len(books)),
			)
			continue
		}
		opp := *res.Opportunity
		found = append(found, opp)
		if d.recorder == nil {
			continue
		}
		if err := d.recorder.Record(ctx, opp); err != nil {
			d.logger.WarnContext(ctx, "arb record failed",
				slog.String("instrument", inst),
				slog.String("error", err.Error()),
			)
		}
	}
	return found
}

// Latest returns the most recent result per instrument.
func (d *Detector) Latest() []LatestResult {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]LatestResult, 0, len(d.latest))
	for _, r := range d.latest {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })
	return out
}
