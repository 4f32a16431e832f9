package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ladder(pv ...string) Ladder {
	out := make(Ladder, 0, len(pv)/2)
	for i := 0; i+1 < len(pv); i += 2 {
		out = append(out, PriceLevel{Price: dec(pv[i]), Volume: dec(pv[i+1])})
	}
	return out
}

func TestLadderDepthVolume(t *testing.T) {
	l := ladder("100", "1.5", "99", "2", "98", "0.25")

	tests := []struct {
		name  string
		l     Ladder
		depth int
		want  string
	}{
		{"top level", l, 1, "1.5"},
		{"two levels", l, 2, "3.5"},
		{"exact length", l, 3, "3.75"},
		{"deeper than ladder", l, 10, "3.75"},
		{"zero depth", l, 0, "0"},
		{"negative depth", l, -1, "0"},
		{"empty ladder", nil, 5, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.l.DepthVolume(tt.depth)
			assert.True(t, got.Equal(dec(tt.want)), "got %s", got)
		})
	}
	assert.True(t, l.TotalVolume().Equal(dec("3.75")))
}

func TestLadderTruncate(t *testing.T) {
	l := ladder("100", "1", "99", "2", "98", "3")

	tests := []struct {
		name string
		n    int
		want int
	}{
		{"shorter", 2, 2},
		{"zero", 0, 0},
		{"exact", 3, 3},
		{"longer", 5, 3},
		{"negative keeps all", -1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := l.Truncate(tt.n)
			require.Len(t, got, tt.want)
			if tt.want > 0 {
				assert.True(t, got[0].Price.Equal(dec("100")))
			}
		})
	}
}

func TestMidPrice(t *testing.T) {
	tests := []struct {
		name   string
		bids   Ladder
		asks   Ladder
		want   string
		wantOK bool
	}{
		{"normal book", ladder("99", "1"), ladder("101", "1"), "100", true},
		{"odd spread", ladder("100", "1", "99", "1"), ladder("100.5", "1"), "100.25", true},
		{"crossed book", ladder("102", "1"), ladder("100", "1"), "101", true},
		{"no bids", nil, ladder("101", "1"), "0", false},
		{"no asks", ladder("99", "1"), nil, "0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MidPrice(tt.bids, tt.asks)
			assert.Equal(t, tt.wantOK, ok)
			assert.True(t, got.Equal(dec(tt.want)), "got %s", got)

			snap := OrderBookSnapshot{Bids: tt.bids, Asks: tt.asks}
			mid, ok := snap.Mid()
			assert.Equal(t, tt.wantOK, ok)
			assert.True(t, mid.Equal(got))
		})
	}
}

func TestSignalText(t *testing.T) {
	tests := []struct {
		sig  Signal
		text string
	}{
		{SignalHold, "hold"},
		{SignalBuy, "buy"},
		{SignalSell, "sell"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			b, err := tt.sig.MarshalText()
			require.NoError(t, err)
			assert.Equal(t, tt.text, string(b))

			var got Signal
			require.NoError(t, got.UnmarshalText(b))
			assert.Equal(t, tt.sig, got)
		})
	}

	var s Signal
	assert.Error(t, s.UnmarshalText([]byte("BUY")))
	assert.Equal(t, "hold", Signal(42).String())

	// Signal fields travel as names inside JSON payloads.
	raw, err := json.Marshal(SignalEvent{Signal: SignalSell})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"signal":"sell"`)
	var ev SignalEvent
	require.NoError(t, json.Unmarshal(raw, &ev))
	assert.Equal(t, SignalSell, ev.Signal)
}
