package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

// SignalSink receives every non-Hold decision the engine makes.
type SignalSink interface {
	Emit(ctx context.Context, ev domain.SignalEvent) error
}

// Sizer suggests a position size for a new entry.
type Sizer interface {
	PositionSize(entry, stopLoss decimal.Decimal) decimal.Decimal
}

// PositionView is the state of one (exchange, instrument) imbalance engine.
type PositionView struct {
	Exchange   string         `json:"exchange"`
	Instrument string         `json:"instrument"`
	State      ImbalanceState `json:"state"`
}

type streamKey struct {
	exchange   string
	instrument string
}

// Engine runs one ImbalanceEngine per (exchange, instrument) over polling
// cycles. Engines are created lazily from the shared config; each is only
// ever stepped from the goroutine calling HandleCycle.
type Engine struct {
	cfg    ImbalanceConfig
	sink   SignalSink
	sizer  Sizer
	logger *slog.Logger

	mu          sync.Mutex
	engines     map[streamKey]*ImbalanceEngine
	recent      []domain.SignalEvent
	recentLimit int
	lastCycle   uint64
}

// NewEngine validates cfg and returns an engine with no open positions. sink
// and sizer may be nil.
func NewEngine(cfg ImbalanceConfig, sink SignalSink, sizer Sizer, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:         cfg,
		sink:        sink,
		sizer:       sizer,
		logger:      logger.With(slog.String("component", "signal_engine")),
		engines:     make(map[streamKey]*ImbalanceEngine),
		recentLimit: 500,
	}, nil
}

// Run consumes cycles until ctx is cancelled or the channel is closed.
func (e *Engine) Run(ctx context.Context, cycles <-chan domain.Cycle) error {
	e.logger.InfoContext(ctx, "signal engine started")
	defer e.logger.Info("signal engine stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cycle, ok := <-cycles:
			if !ok {
				return nil
			}
			e.HandleCycle(ctx, cycle)
		}
	}
}

// HandleCycle evaluates every book in the cycle in (instrument, exchange)
// order and returns the emitted events.
func (e *Engine) HandleCycle(ctx context.Context, cycle domain.Cycle) []domain.SignalEvent {
	var emitted []domain.SignalEvent
	for _, inst := range cycle.Instruments() {
		books := cycle.Snapshots(inst)
		exchanges := make([]string, 0, len(books))
		for ex := range books {
			exchanges = append(exchanges, ex)
		}
		sort.Strings(exchanges)

		for _, ex := range exchanges {
			snap := books[ex]
			now := snap.ObservedAt
			if now.IsZero() {
				now = cycle.CompletedAt
			}
			ev, ok := e.step(ex, inst, snap, now)
			if !ok {
				continue
			}
			emitted = append(emitted, ev)
			e.publish(ctx, ev)
		}
	}

	e.mu.Lock()
	e.lastCycle = cycle.Seq
	e.mu.Unlock()
	return emitted
}

// step advances one stream and builds an event for a non-Hold result.
func (e *Engine) step(exchange, instrument string, snap domain.OrderBookSnapshot, now time.Time) (domain.SignalEvent, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := streamKey{exchange: exchange, instrument: instrument}
	eng, ok := e.engines[key]
	if !ok {
		// cfg was validated in NewEngine.
		eng = &ImbalanceEngine{cfg: e.cfg, state: ImbalanceState{Position: domain.FlatPosition()}}
		e.engines[key] = eng
	}

	before := eng.State().Position
	sig := eng.Evaluate(snap.Bids, snap.Asks, now)
	if sig == domain.SignalHold {
		return domain.SignalEvent{}, false
	}

	after := eng.State().Position
	ev := domain.SignalEvent{
		ID:         uuid.NewString(),
		Strategy:   eng.Name(),
		Exchange:   exchange,
		Instrument: instrument,
		Signal:     sig,
		CreatedAt:  now,
	}
	if after.IsFlat() {
		// Exit: report the closed position at the mark.
		mark, _ := snap.Mid()
		ev.Price = mark
		ev.Position = before
	} else {
		ev.Price = after.EntryPrice
		ev.Position = after
		if e.sizer != nil {
			ev.SuggestedSize = e.sizer.PositionSize(after.EntryPrice, after.StopLossPrice)
		}
	}

	e.recent = append(e.recent, ev)
	if overflow := len(e.recent) - e.recentLimit; overflow > 0 {
		e.recent = append([]domain.SignalEvent(nil), e.recent[overflow:]...)
	}
	return ev, true
}

func (e *Engine) publish(ctx context.Context, ev domain.SignalEvent) {
	e.logger.InfoContext(ctx, "signal emitted",
		slog.String("signal_id", ev.ID),
		slog.String("exchange", ev.Exchange),
		slog.String("instrument", ev.Instrument),
		slog.String("signal", ev.Signal.String()),
		slog.String("price", ev.Price.String()),
		slog.String("side", string(ev.Position.Side)),
	)
	if e.sink == nil {
		return
	}
	if err := e.sink.Emit(ctx, ev); err != nil {
		e.logger.WarnContext(ctx, "signal sink failed",
			slog.String("signal_id", ev.ID),
			slog.String("error", err.Error()),
		)
	}
}

// RecentSignals returns up to limit most recent emitted signals, newest first.
func (e *Engine) RecentSignals(limit int) []domain.SignalEvent {
	if limit <= 0 {
		limit = 20
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.recent)
	if limit > n {
		limit = n
	}
	out := make([]domain.SignalEvent, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, e.recent[i])
	}
	return out
}

// Positions returns the state of every stream seen so far, sorted.
func (e *Engine) Positions() []PositionView {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]PositionView, 0, len(e.engines))
	for k, eng := range e.engines {
		out = append(out, PositionView{Exchange: k.exchange, Instrument: k.instrument, State: eng.State()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Instrument != out[j].Instrument {
			return out[i].Instrument < out[j].Instrument
		}
		return out[i].Exchange < out[j].Exchange
	})
	return out
}

// OpenPositions counts streams that are not Flat.
func (e *Engine) OpenPositions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, eng := range e.engines {
		if !eng.State().Position.IsFlat() {
			n++
		}
	}
	return n
}

// ClosePosition flattens one stream without emitting a signal.
func (e *Engine) ClosePosition(exchange, instrument string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	eng, ok := e.engines[streamKey{exchange: exchange, instrument: instrument}]
	if !ok {
		return fmt.Errorf("strategy: position %s/%s: %w", exchange, instrument, domain.ErrNotFound)
	}
	eng.ClosePosition()
	return nil
}

// LastCycle returns the sequence number of the last handled cycle.
func (e *Engine) LastCycle() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastCycle
}
