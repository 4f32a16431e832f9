package backtest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mmsignal/internal/domain"
	"github.com/alanyoungcy/mmsignal/internal/strategy"
)

func TestCompareKeepsOrder(t *testing.T) {
	sim := newSim(t, "1000", "0")
	factories := []strategy.Factory{
		func() (strategy.BarStrategy, error) { return scripted(buy, hold, sell), nil },
		func() (strategy.BarStrategy, error) {
			return strategy.BarFunc{Label: "never", Fn: func([]domain.Bar) domain.Signal { return hold }}, nil
		},
	}

	reports, err := Compare(context.Background(), sim, factories, series("10", "15", "20"))
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "scripted", reports[0].Strategy)
	assert.True(t, reports[0].FinalEquity.Equal(dec("2000")))
	assert.Equal(t, "never", reports[1].Strategy)
	assert.True(t, reports[1].FinalEquity.Equal(dec("1000")))

	rows := Comparisons(reports)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].TotalReturnPercent.Equal(dec("100")))
	assert.Equal(t, 2, rows[0].TradeCount)
	assert.Zero(t, rows[1].TradeCount)
}

func TestCompareFactoryError(t *testing.T) {
	sim := newSim(t, "1000", "0")
	boom := errors.New("bad params")
	factories := []strategy.Factory{
		func() (strategy.BarStrategy, error) { return nil, boom },
	}
	_, err := Compare(context.Background(), sim, factories, series("10"))
	assert.ErrorIs(t, err, boom)
}

func TestCompareBuiltinStrategies(t *testing.T) {
	sim := newSim(t, "10000", "0.001")
	reg := strategy.NewBarRegistry(strategy.DefaultBarParams())
	var factories []strategy.Factory
	for _, name := range reg.List() {
		f, err := reg.Factory(name)
		require.NoError(t, err)
		factories = append(factories, f)
	}

	closes := make([]string, 0, 120)
	for i := 0; i < 120; i++ {
		closes = append(closes, dec("100").Add(dec("0.5").Mul(dec(itoa(i%40)))).String())
	}
	reports, err := Compare(context.Background(), sim, factories, series(closes...))
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "ma_crossover", reports[0].Strategy)
	assert.Equal(t, "rsi", reports[1].Strategy)
	for _, r := range reports {
		assert.Len(t, r.EquityCurve, 120)
		assert.False(t, r.MaxDrawdown.IsPositive())
	}
}
