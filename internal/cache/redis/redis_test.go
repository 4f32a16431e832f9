package redis

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

func TestSnapshotKey(t *testing.T) {
	assert.Equal(t, "book:binance:BTC/USDT", snapshotKey("binance", "BTC/USDT"))
	assert.Equal(t, "alert:BTC/USDT:okx->binance", throttleKey("BTC/USDT:okx->binance"))
}

func TestDecodeSnapshot_RoundTripsDecimals(t *testing.T) {
	snap := domain.OrderBookSnapshot{
		ExchangeID: "okx",
		Instrument: "BTC/USDT",
		Bids:       domain.Ladder{{Price: decimal.RequireFromString("100.123456789"), Volume: decimal.NewFromInt(2)}},
		Asks:       domain.Ladder{{Price: decimal.RequireFromString("100.2"), Volume: decimal.RequireFromString("0.5")}},
		ObservedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	raw, err := json.Marshal(snap)
	require.NoError(t, err)

	got, err := decodeSnapshot(raw)
	require.NoError(t, err)
	assert.True(t, got.Bids[0].Price.Equal(snap.Bids[0].Price))
	assert.True(t, got.Asks[0].Volume.Equal(snap.Asks[0].Volume))
	assert.Equal(t, snap.ObservedAt, got.ObservedAt)

	_, err = decodeSnapshot([]byte("not json"))
	assert.Error(t, err)
}

func TestToStreamMessage(t *testing.T) {
	m, ok := toStreamMessage(goredis.XMessage{ID: "1-0", Values: map[string]interface{}{"payload": "hi"}})
	require.True(t, ok)
	assert.Equal(t, "1-0", m.ID)
	assert.Equal(t, []byte("hi"), m.Payload)

	_, ok = toStreamMessage(goredis.XMessage{ID: "2-0", Values: map[string]interface{}{"other": "x"}})
	assert.False(t, ok)
}

func TestHasPattern(t *testing.T) {
	assert.True(t, hasPattern("books:*"))
	assert.False(t, hasPattern("opportunities"))
}

func TestAlertThrottle_ZeroTTLAlwaysAllows(t *testing.T) {
	// No Redis round-trip happens for a zero window.
	at := &AlertThrottle{}
	ok, err := at.Allow(context.Background(), "k", 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewSignalBus_DefaultMaxLen(t *testing.T) {
	c := &Client{rdb: goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"})}
	defer c.Close()
	assert.Equal(t, defaultStreamMaxLen, NewSignalBus(c, 0).maxLen)
	assert.Equal(t, int64(50), NewSignalBus(c, 50).maxLen)
}

func TestClientConfigOptions(t *testing.T) {
	o := ClientConfig{Addr: "cache:6379", DB: 2, PoolSize: 8}.options()
	assert.Equal(t, "cache:6379", o.Addr)
	assert.Equal(t, 2, o.DB)
	assert.Equal(t, 8, o.PoolSize)
	assert.Nil(t, o.TLSConfig)

	o = ClientConfig{Addr: "cache:6380", TLSEnabled: true}.options()
	require.NotNil(t, o.TLSConfig)
	assert.Equal(t, uint16(tls.VersionTLS12), o.TLSConfig.MinVersion)
}

func TestToStreamMessageBytes(t *testing.T) {
	m, ok := toStreamMessage(goredis.XMessage{ID: "3-0", Values: map[string]interface{}{"payload": []byte("raw")}})
	require.True(t, ok)
	assert.Equal(t, []byte("raw"), m.Payload)

	_, ok = toStreamMessage(goredis.XMessage{ID: "4-0", Values: map[string]interface{}{"payload": 7}})
	assert.False(t, ok)
}
