package backtest

import (
	"bytes"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

func itoa(i int) string { return strconv.Itoa(i) }

func TestLoadBarsCSV(t *testing.T) {
	in := `timestamp,open,high,low,close,volume
2024-01-02T00:00:00Z,100,101,99,100.5,12.5
1704157200,100.5,102,100,101.25,8
`
	bars, err := LoadBarsCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), bars[0].Timestamp)
	assert.True(t, bars[0].Close.Equal(dec("100.5")))
	assert.True(t, bars[0].Volume.Equal(dec("12.5")))
	assert.Equal(t, time.Date(2024, 1, 2, 1, 0, 0, 0, time.UTC), bars[1].Timestamp)
	assert.True(t, bars[1].Close.Equal(dec("101.25")))
}

func TestLoadBarsCSVWithoutHeader(t *testing.T) {
	bars, err := LoadBarsCSV(strings.NewReader("1704153600,1,1,1,1,0\n"))
	require.NoError(t, err)
	assert.Len(t, bars, 1)
}

func TestLoadBarsCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		is   error
	}{
		{"empty", "timestamp,open,high,low,close,volume\n", domain.ErrEmptySeries},
		{"out of order", "1704157200,1,1,1,1,0\n1704153600,1,1,1,1,0\n", domain.ErrOutOfOrderSeries},
		{"duplicate timestamp", "1704153600,1,1,1,1,0\n1704153600,1,1,1,1,0\n", domain.ErrOutOfOrderSeries},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBarsCSV(strings.NewReader(tt.in))
			assert.ErrorIs(t, err, tt.is)
		})
	}

	_, err := LoadBarsCSV(strings.NewReader("1704153600,1,1,1,abc,0\n"))
	assert.ErrorContains(t, err, "close")
	_, err = LoadBarsCSV(strings.NewReader("yesterday,1,1,1,1,0\n"))
	assert.ErrorContains(t, err, "timestamp")
	_, err = LoadBarsCSV(strings.NewReader("1704153600,1,1,1\n"))
	assert.Error(t, err)
}

func TestWriteBarsCSVIsReadable(t *testing.T) {
	in := series("100", "101.5", "99")
	var buf bytes.Buffer
	require.NoError(t, WriteBarsCSV(&buf, in))

	out, err := LoadBarsCSV(&buf)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.True(t, out[1].Close.Equal(dec("101.5")))
	assert.Equal(t, in[2].Timestamp, out[2].Timestamp)
}
