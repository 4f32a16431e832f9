package backtest

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mmsignal/internal/domain"
	"github.com/alanyoungcy/mmsignal/internal/strategy"
)

var t0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func series(closes ...string) []domain.Bar {
	out := make([]domain.Bar, len(closes))
	for i, c := range closes {
		p := dec(c)
		out[i] = domain.Bar{Timestamp: t0.Add(time.Duration(i) * time.Hour), Open: p, High: p, Low: p, Close: p}
	}
	return out
}

// scripted returns the signal at each step index, Hold past the script.
func scripted(sigs ...domain.Signal) strategy.BarStrategy {
	return strategy.BarFunc{Label: "scripted", Fn: func(h []domain.Bar) domain.Signal {
		if i := len(h) - 1; i < len(sigs) {
			return sigs[i]
		}
		return domain.SignalHold
	}}
}

func newSim(t *testing.T, capital, commission string) *Simulator {
	t.Helper()
	sim, err := NewSimulator(dec(capital), dec(commission), testLogger())
	require.NoError(t, err)
	return sim
}

const (
	hold = domain.SignalHold
	buy  = domain.SignalBuy
	sell = domain.SignalSell
)

func TestRoundTripConservesCapital(t *testing.T) {
	sim := newSim(t, "10000", "0")

	for _, price := range []string{"100", "3", "0.07", "12345.6789"} {
		rep := sim.Run(scripted(buy, sell), series(price, price))
		assert.True(t, rep.FinalEquity.Equal(dec("10000")), "price %s final %s", price, rep.FinalEquity)
		assert.True(t, rep.TotalReturn.IsZero())
		assert.Equal(t, 2, rep.TradeCount)
	}
}

func TestRunWithCommission(t *testing.T) {
	sim := newSim(t, "10000", "0.001")
	rep := sim.Run(scripted(buy, hold, sell), series("100", "105", "110"))

	require.Len(t, rep.Trades, 2)
	b, s := rep.Trades[0], rep.Trades[1]
	assert.Equal(t, domain.ActionBuy, b.Action)
	assert.True(t, b.Amount.Equal(dec("100")))
	assert.True(t, b.Fee.Equal(dec("10")))
	assert.Equal(t, domain.ActionSell, s.Action)
	assert.True(t, s.Amount.Equal(dec("100")))
	assert.True(t, s.Fee.Equal(dec("11")))

	require.Len(t, rep.EquityCurve, 3)
	assert.True(t, rep.EquityCurve[0].Capital.IsZero())
	assert.True(t, rep.EquityCurve[0].PositionValue.Equal(dec("10000")))
	assert.True(t, rep.EquityCurve[1].TotalEquity.Equal(dec("10500")))
	assert.True(t, rep.EquityCurve[2].Capital.Equal(dec("10989")))
	assert.True(t, rep.EquityCurve[2].PositionValue.IsZero())

	assert.True(t, rep.FinalEquity.Equal(dec("10989")))
	assert.True(t, rep.TotalReturn.Equal(dec("0.0989")))
	assert.True(t, rep.TotalReturnPercent.Equal(dec("9.89")))
	assert.True(t, rep.MaxDrawdown.IsZero())
	assert.Equal(t, "scripted", rep.Strategy)
	assert.Equal(t, t0, rep.StartedAt)
	assert.Equal(t, t0.Add(2*time.Hour), rep.EndedAt)
}

func TestDrawdown(t *testing.T) {
	sim := newSim(t, "10000", "0")
	rep := sim.Run(scripted(buy), series("100", "120", "90", "150"))

	assert.True(t, rep.MaxDrawdown.Equal(dec("-0.25")), "drawdown %s", rep.MaxDrawdown)
	assert.True(t, rep.MaxDrawdownPercent.Equal(dec("-25")))
	assert.True(t, rep.FinalEquity.Equal(dec("15000")))
}

func TestMonotonicCurveHasNoDrawdown(t *testing.T) {
	sim := newSim(t, "10000", "0")
	rep := sim.Run(scripted(buy), series("100", "100", "101", "150", "150", "200"))
	assert.True(t, rep.MaxDrawdown.IsZero())

	rep = sim.Run(scripted(), series("100", "50", "10"))
	assert.True(t, rep.MaxDrawdown.IsZero(), "flat capital never draws down")
}

func TestMismatchedSignalsAreNoOps(t *testing.T) {
	sim := newSim(t, "1000", "0")
	rep := sim.Run(scripted(sell, buy, buy, sell, sell), series("10", "10", "20", "20", "5"))

	require.Len(t, rep.Trades, 2)
	assert.Equal(t, domain.ActionBuy, rep.Trades[0].Action)
	assert.Equal(t, t0.Add(time.Hour), rep.Trades[0].Timestamp)
	assert.Equal(t, domain.ActionSell, rep.Trades[1].Action)
	assert.True(t, rep.FinalEquity.Equal(dec("2000")))
	assert.Len(t, rep.EquityCurve, 5)
}

func TestNonPositivePriceIsNotTraded(t *testing.T) {
	sim := newSim(t, "1000", "0")
	rep := sim.Run(scripted(buy, buy), series("0", "10"))

	require.Len(t, rep.Trades, 1)
	assert.Equal(t, t0.Add(time.Hour), rep.Trades[0].Timestamp)
}

func TestEmptySeries(t *testing.T) {
	sim := newSim(t, "10000", "0.001")
	rep := sim.Run(scripted(buy), nil)

	assert.True(t, rep.FinalEquity.Equal(dec("10000")))
	assert.True(t, rep.TotalReturn.IsZero())
	assert.True(t, rep.MaxDrawdown.IsZero())
	assert.Empty(t, rep.EquityCurve)
	assert.Zero(t, rep.TradeCount)
}

func TestNoLookAhead(t *testing.T) {
	var seen, caps []int
	var lastClose, visible []string
	strat := strategy.BarFunc{Label: "spy", Fn: func(h []domain.Bar) domain.Signal {
		seen = append(seen, len(h))
		caps = append(caps, cap(h))
		lastClose = append(lastClose, h[len(h)-1].Close.String())
		// reslicing to capacity must not expose later bars
		full := h[:cap(h)]
		visible = append(visible, full[len(full)-1].Close.String())
		return domain.SignalHold
	}}

	newSim(t, "100", "0").Run(strat, series("1", "2", "3", "4"))
	assert.Equal(t, []int{1, 2, 3, 4}, seen)
	assert.Equal(t, seen, caps)
	assert.Equal(t, []string{"1", "2", "3", "4"}, lastClose)
	assert.Equal(t, lastClose, visible)
}

func TestRunReplaysRecordedSignals(t *testing.T) {
	events := []domain.SignalEvent{
		{Strategy: "imbalance", Signal: domain.SignalBuy, CreatedAt: t0.Add(30 * time.Minute)},
		{Strategy: "imbalance", Signal: domain.SignalSell, CreatedAt: t0.Add(2 * time.Hour)},
	}
	rep := newSim(t, "1000", "0").Run(strategy.NewSignalReplay(events), series("100", "100", "125", "90"))

	assert.Equal(t, strategy.SignalReplayName, rep.Strategy)
	require.Len(t, rep.Trades, 2)
	assert.Equal(t, domain.ActionBuy, rep.Trades[0].Action)
	assert.Equal(t, t0.Add(time.Hour), rep.Trades[0].Timestamp)
	assert.Equal(t, domain.ActionSell, rep.Trades[1].Action)
	assert.Equal(t, t0.Add(2*time.Hour), rep.Trades[1].Timestamp)
	assert.True(t, rep.FinalEquity.Equal(dec("1250")), "final %s", rep.FinalEquity)
}

func TestRunIsDeterministic(t *testing.T) {
	closes := make([]string, 0, 300)
	for i := 0; i < 300; i++ {
		v := 100 + (i*37)%23 - (i*11)%17 + i/10
		closes = append(closes, decimal.NewFromInt(int64(v)).String())
	}
	bars := series(closes...)
	sim := newSim(t, "10000", "0.001")

	run := func() []byte {
		ma, err := strategy.NewMovingAverageCrossover(5, 20)
		require.NoError(t, err)
		b, err := json.Marshal(sim.Run(ma, bars))
		require.NoError(t, err)
		return b
	}
	first := run()
	assert.Equal(t, first, run())
}

func TestNewSimulatorValidation(t *testing.T) {
	_, err := NewSimulator(dec("0"), dec("0"), testLogger())
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	_, err = NewSimulator(dec("100"), dec("-0.01"), testLogger())
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestMaxDrawdownFromCurve(t *testing.T) {
	curve := []domain.EquityPoint{
		{TotalEquity: dec("100")},
		{TotalEquity: dec("80")},
		{TotalEquity: dec("200")},
		{TotalEquity: dec("150")},
		{TotalEquity: dec("190")},
	}
	assert.True(t, MaxDrawdown(curve).Equal(dec("-0.25")))
	assert.True(t, MaxDrawdown(nil).IsZero())
}
