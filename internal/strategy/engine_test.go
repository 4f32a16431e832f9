package strategy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

type fakeSink struct {
	mu     sync.Mutex
	events []domain.SignalEvent
	err    error
}

func (f *fakeSink) Emit(_ context.Context, ev domain.SignalEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

type fixedSizer struct{ size decimal.Decimal }

func (s fixedSizer) PositionSize(_, _ decimal.Decimal) decimal.Decimal { return s.size }

func cycleWith(seq uint64, at time.Time, books map[string]domain.OrderBookSnapshot) domain.Cycle {
	for ex, b := range books {
		b.ExchangeID = ex
		b.Instrument = "BTC/USDT"
		b.ObservedAt = at
		books[ex] = b
	}
	return domain.Cycle{
		Seq:         seq,
		CompletedAt: at,
		Books:       map[string]map[string]domain.OrderBookSnapshot{"BTC/USDT": books},
	}
}

func TestEngineEmitsEntryAndExit(t *testing.T) {
	sink := &fakeSink{}
	eng, err := NewEngine(testConfig(), sink, fixedSizer{size: dec("2.5")}, testLogger())
	require.NoError(t, err)

	lb, la := longEntryBook()
	sb, sa := balancedBook()
	events := eng.HandleCycle(context.Background(), cycleWith(1, t0, map[string]domain.OrderBookSnapshot{
		"binance": {Bids: lb, Asks: la},
		"okx":     {Bids: sb, Asks: sa},
	}))
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, "binance", ev.Exchange)
	assert.Equal(t, "imbalance", ev.Strategy)
	assert.Equal(t, domain.SignalBuy, ev.Signal)
	assert.True(t, ev.Price.Equal(dec("100.09")))
	assert.True(t, ev.SuggestedSize.Equal(dec("2.5")))
	assert.Equal(t, domain.SideLong, ev.Position.Side)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, 1, eng.OpenPositions())

	events = eng.HandleCycle(context.Background(), cycleWith(2, t0.Add(10*time.Second), map[string]domain.OrderBookSnapshot{
		"binance": {Bids: ladder("100.19", "1"), Asks: ladder("100.21", "1")},
	}))
	require.Len(t, events, 1)
	exit := events[0]
	assert.Equal(t, domain.SignalSell, exit.Signal)
	assert.True(t, exit.Price.Equal(dec("100.2")))
	assert.Equal(t, domain.SideLong, exit.Position.Side)
	assert.True(t, exit.SuggestedSize.IsZero())
	assert.Equal(t, 0, eng.OpenPositions())
	assert.Equal(t, uint64(2), eng.LastCycle())

	sink.mu.Lock()
	assert.Len(t, sink.events, 2)
	sink.mu.Unlock()

	recent := eng.RecentSignals(10)
	require.Len(t, recent, 2)
	assert.Equal(t, exit.ID, recent[0].ID)
}

func TestEngineStreamsAreIndependent(t *testing.T) {
	eng, err := NewEngine(testConfig(), nil, nil, testLogger())
	require.NoError(t, err)

	lb, la := longEntryBook()
	sb, sa := shortEntryBook()
	events := eng.HandleCycle(context.Background(), cycleWith(1, t0, map[string]domain.OrderBookSnapshot{
		"binance": {Bids: lb, Asks: la},
		"okx":     {Bids: sb, Asks: sa},
	}))
	require.Len(t, events, 2)
	assert.Equal(t, "binance", events[0].Exchange)
	assert.Equal(t, domain.SignalBuy, events[0].Signal)
	assert.Equal(t, "okx", events[1].Exchange)
	assert.Equal(t, domain.SignalSell, events[1].Signal)

	positions := eng.Positions()
	require.Len(t, positions, 2)
	assert.Equal(t, domain.SideLong, positions[0].State.Position.Side)
	assert.Equal(t, domain.SideShort, positions[1].State.Position.Side)

	require.NoError(t, eng.ClosePosition("okx", "BTC/USDT"))
	assert.Equal(t, 1, eng.OpenPositions())
	assert.ErrorIs(t, eng.ClosePosition("kraken", "BTC/USDT"), domain.ErrNotFound)
}

func TestEngineSinkErrorIsAbsorbed(t *testing.T) {
	eng, err := NewEngine(testConfig(), &fakeSink{err: errors.New("redis down")}, nil, testLogger())
	require.NoError(t, err)

	lb, la := longEntryBook()
	events := eng.HandleCycle(context.Background(), cycleWith(1, t0, map[string]domain.OrderBookSnapshot{
		"binance": {Bids: lb, Asks: la},
	}))
	assert.Len(t, events, 1)
}

func TestEngineRun(t *testing.T) {
	sink := &fakeSink{}
	eng, err := NewEngine(testConfig(), sink, nil, testLogger())
	require.NoError(t, err)

	lb, la := longEntryBook()
	cycles := make(chan domain.Cycle, 1)
	cycles <- cycleWith(1, t0, map[string]domain.OrderBookSnapshot{"binance": {Bids: lb, Asks: la}})
	close(cycles)

	require.NoError(t, eng.Run(context.Background(), cycles))
	assert.Len(t, eng.RecentSignals(0), 1)
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Depth = 0
	_, err := NewEngine(cfg, nil, nil, testLogger())
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}
