// Package feed polls exchange order books on a fixed interval and publishes
// each completed round as a domain.Cycle.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

// FetchObserver receives per-fetch and per-cycle timings. Implemented by the
// metrics package; nil disables it.
type FetchObserver interface {
	ObserveFetch(exchange string, elapsed time.Duration, err error)
	ObserveCycle(elapsed time.Duration)
}

// PollerConfig configures a Poller.
type PollerConfig struct {
	Exchanges    []domain.Exchange
	Instruments  []string
	Depth        int
	Interval     time.Duration
	FetchTimeout time.Duration
	// MaxInFlight bounds concurrent fetches; <= 0 means unbounded.
	MaxInFlight int

	Cache    domain.SnapshotCache
	Bus      domain.SignalBus
	Observer FetchObserver
	Logger   *slog.Logger
}

// Poller fetches every (exchange, instrument) pair concurrently each interval.
// A cycle is only emitted once every fetch has succeeded, failed or timed
// out, so downstream consumers always see one consistent round.
type Poller struct {
	cfg    PollerConfig
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	seq  uint64
	last domain.Cycle
}

// NewPoller validates cfg and creates a Poller.
func NewPoller(cfg PollerConfig) (*Poller, error) {
	if len(cfg.Exchanges) == 0 {
		return nil, fmt.Errorf("feed: no exchanges: %w", domain.ErrInvalidConfig)
	}
	if len(cfg.Instruments) == 0 {
		return nil, fmt.Errorf("feed: no instruments: %w", domain.ErrInvalidConfig)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("feed: interval must be positive: %w", domain.ErrInvalidConfig)
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = cfg.Interval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "poller")),
		now:    time.Now,
	}, nil
}

// Run polls immediately and then every interval, delivering each cycle to
// every sink. Sinks are closed when Run returns. A slow sink delays the next
// round rather than dropping cycles.
func (p *Poller) Run(ctx context.Context, sinks ...chan<- domain.Cycle) error {
	defer func() {
		for _, s := range sinks {
			close(s)
		}
	}()

	p.logger.InfoContext(ctx, "poller started",
		slog.Int("exchanges", len(p.cfg.Exchanges)),
		slog.Int("instruments", len(p.cfg.Instruments)),
		slog.Duration("interval", p.cfg.Interval),
	)
	defer p.logger.Info("poller stopped")

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		cycle := p.Poll(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		for _, s := range sinks {
			select {
			case s <- cycle:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

type fetchResult struct {
	exchange   string
	instrument string
	snap       domain.OrderBookSnapshot
	err        error
}

// Poll runs one round and returns the resulting cycle.
func (p *Poller) Poll(ctx context.Context) domain.Cycle {
	started := p.now()

	var (
		mu      sync.Mutex
		results = make([]fetchResult, 0, len(p.cfg.Exchanges)*len(p.cfg.Instruments))
	)
	var g errgroup.Group
	if p.cfg.MaxInFlight > 0 {
		g.SetLimit(p.cfg.MaxInFlight)
	}
	for _, ex := range p.cfg.Exchanges {
		for _, inst := range p.cfg.Instruments {
			g.Go(func() error {
				r := p.fetch(ctx, ex, inst)
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
				return nil
			})
		}
	}
	_ = g.Wait()

	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	cycle := domain.Cycle{
		Seq:       seq,
		StartedAt: started,
		Books:     make(map[string]map[string]domain.OrderBookSnapshot, len(p.cfg.Instruments)),
		Failures:  make(map[string]string),
	}
	for _, r := range results {
		if r.err != nil {
			cycle.Failures[r.exchange+"/"+r.instrument] = r.err.Error()
			continue
		}
		byEx, ok := cycle.Books[r.instrument]
		if !ok {
			byEx = make(map[string]domain.OrderBookSnapshot, len(p.cfg.Exchanges))
			cycle.Books[r.instrument] = byEx
		}
		byEx[r.exchange] = r.snap
	}
	cycle.CompletedAt = p.now()

	elapsed := cycle.CompletedAt.Sub(started)
	if p.cfg.Observer != nil {
		p.cfg.Observer.ObserveCycle(elapsed)
	}
	if len(cycle.Failures) > 0 {
		p.logger.WarnContext(ctx, "cycle completed with failures",
			slog.Uint64("seq", seq),
			slog.Int("failures", len(cycle.Failures)),
			slog.Duration("elapsed", elapsed),
		)
	} else {
		p.logger.DebugContext(ctx, "cycle completed",
			slog.Uint64("seq", seq),
			slog.Duration("elapsed", elapsed),
		)
	}

	p.mu.Lock()
	p.last = cycle
	p.mu.Unlock()
	return cycle
}

// LastCycle returns the most recent completed cycle.
func (p *Poller) LastCycle() domain.Cycle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *Poller) fetch(ctx context.Context, ex domain.Exchange, instrument string) fetchResult {
	name := ex.Name()
	fctx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	defer cancel()

	t0 := time.Now()
	snap, err := ex.FetchOrderBook(fctx, instrument, p.cfg.Depth)
	elapsed := time.Since(t0)
	if err == nil && fctx.Err() != nil {
		// Adapter ignored the deadline; its result is discarded.
		err = fctx.Err()
	}
	if p.cfg.Observer != nil {
		p.cfg.Observer.ObserveFetch(name, elapsed, err)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("fetch timed out after %s: %w", p.cfg.FetchTimeout, err)
		}
		p.logger.WarnContext(ctx, "order book fetch failed",
			slog.String("exchange", name),
			slog.String("instrument", instrument),
			slog.String("error", err.Error()),
		)
		return fetchResult{exchange: name, instrument: instrument, err: err}
	}

	snap.ExchangeID = name
	snap.Instrument = instrument
	if snap.ObservedAt.IsZero() {
		snap.ObservedAt = p.now()
	}
	p.share(ctx, snap)
	return fetchResult{exchange: name, instrument: instrument, snap: snap}
}

// share writes the snapshot to the cache and publishes its top-of-book
// summary. Failures are logged, never fatal to the cycle.
func (p *Poller) share(ctx context.Context, snap domain.OrderBookSnapshot) {
	if p.cfg.Cache != nil {
		if err := p.cfg.Cache.SetSnapshot(ctx, snap); err != nil {
			p.logger.WarnContext(ctx, "cache snapshot failed",
				slog.String("exchange", snap.ExchangeID),
				slog.String("instrument", snap.Instrument),
				slog.String("error", err.Error()),
			)
		}
	}
	if p.cfg.Bus != nil {
		payload, err := json.Marshal(snap.Event())
		if err != nil {
			return
		}
		if err := p.cfg.Bus.Publish(ctx, domain.ChannelBooksPrefix+snap.Instrument, payload); err != nil {
			p.logger.DebugContext(ctx, "publish book event failed",
				slog.String("instrument", snap.Instrument),
				slog.String("error", err.Error()),
			)
		}
	}
}
