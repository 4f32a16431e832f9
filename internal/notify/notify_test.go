package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingSender struct {
	name   string
	err    error
	titles []string
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.titles = append(r.titles, title)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func TestNotifier_FiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventArbDetected, " "}, testLogger)

	require.NoError(t, n.Notify(context.Background(), EventArbDetected, "a", "m"))
	require.NoError(t, n.Notify(context.Background(), EventSignal, "b", "m"))
	assert.Equal(t, []string{"a"}, s.titles)
	assert.True(t, n.Allows(EventArbDetected))
	assert.False(t, n.Allows(EventSignal))
}

func TestNotifier_EmptyFilterAllowsAll(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, nil, testLogger)
	require.NoError(t, n.Notify(context.Background(), EventSignal, "b", "m"))
	assert.Len(t, s.titles, 1)
}

func TestNotifier_OneFailureDoesNotStopOthers(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("down")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, testLogger)

	err := n.Notify(context.Background(), EventSignal, "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: down")
	assert.Len(t, good.titles, 1)
}

func TestNotifier_NilAndEmptyAreNoops(t *testing.T) {
	var n *Notifier
	assert.False(t, n.Enabled())
	assert.NoError(t, n.Notify(context.Background(), EventSignal, "t", "m"))

	empty := NewNotifier(nil, nil, testLogger)
	assert.False(t, empty.Enabled())
	assert.NoError(t, empty.Notify(context.Background(), EventSignal, "t", "m"))
}

func TestTelegramSender(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42")
	s.apiBase = srv.URL
	require.NoError(t, s.Send(context.Background(), "Title", "Body"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "*Title*\nBody", got["text"])
}

func TestDiscordSender(t *testing.T) {
	var got struct {
		Embeds []discordEmbed `json:"embeds"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewDiscordSender(srv.URL).Send(context.Background(), "Title", "Body"))
	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "Title", got.Embeds[0].Title)
	assert.Equal(t, "Body", got.Embeds[0].Description)
}

func TestDiscordSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream down")
}

func TestPostJSON_RetriesOnceAfterTooManyRequests(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewDiscordSender(srv.URL).Send(context.Background(), "t", "m"))
	assert.Equal(t, 2, calls)
}

func TestPostJSON_GivesUpAfterSecondTooManyRequests(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Equal(t, 2, calls)
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, time.Second, retryAfter(""))
	assert.Equal(t, time.Second, retryAfter("Wed, 21 Oct 2015 07:28:00 GMT"))
	assert.Equal(t, 1500*time.Millisecond, retryAfter("1.5"))
	assert.Equal(t, maxRetryWait, retryAfter("60"))
}

func TestFormatOpportunity(t *testing.T) {
	title, msg := FormatOpportunity(domain.ArbitrageOpportunity{
		Instrument:      "BTC/USDT",
		BuyExchange:     "okx",
		SellExchange:    "binance",
		BuyPrice:        decimal.RequireFromString("100.0"),
		SellPrice:       decimal.RequireFromString("101.0"),
		EdgePerUnit:     decimal.NewFromInt(1),
		EdgePercent:     decimal.NewFromInt(1),
		TradableVolume:  decimal.NewFromInt(2),
		PotentialProfit: decimal.NewFromInt(2),
	})
	assert.Equal(t, "Arbitrage BTC/USDT: okx -> binance", title)
	assert.Contains(t, msg, "Edge 1.0000%")
	assert.Contains(t, msg, "potential profit 2.0000")
}

func TestFormatSignal(t *testing.T) {
	title, msg := FormatSignal(domain.SignalEvent{
		Strategy:   "imbalance",
		Exchange:   "binance",
		Instrument: "BTC/USDT",
		Signal:     domain.SignalBuy,
		Price:      decimal.RequireFromString("100.09"),
		Position: domain.Position{
			Side:            domain.SideLong,
			EntryPrice:      decimal.RequireFromString("100.09"),
			TakeProfitPrice: decimal.RequireFromString("100.19009"),
			StopLossPrice:   decimal.RequireFromString("100.039955"),
			OpenedAt:        time.Now(),
		},
	})
	assert.Equal(t, "BUY BTC/USDT on binance imbalance", title)
	assert.Contains(t, msg, "Opened long @ 100.09")
	assert.NotContains(t, msg, "Suggested size")
}

func TestFormatBacktest(t *testing.T) {
	title, msg := FormatBacktest(domain.BacktestReport{
		Strategy:           "rsi",
		Symbol:             "BTC/USDT",
		TotalReturnPercent: decimal.RequireFromString("9.89"),
		MaxDrawdownPercent: decimal.RequireFromString("-2.5"),
		TradeCount:         4,
		FinalEquity:        decimal.NewFromInt(10989),
	})
	assert.Equal(t, "Backtest rsi on BTC/USDT finished", title)
	assert.Equal(t, "Return 9.89%, max drawdown -2.50%, 4 trades, final equity 10989.00", msg)
}
