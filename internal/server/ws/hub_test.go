package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

// chanBus hands out one channel per subscribed name.
type chanBus struct {
	mu   sync.Mutex
	subs map[string]chan []byte
	subd chan string
}

func newChanBus() *chanBus {
	return &chanBus{subs: map[string]chan []byte{}, subd: make(chan string, 16)}
}

func (b *chanBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	ch, ok := b.subs[channel]
	b.mu.Unlock()
	if ok {
		ch <- payload
	}
	return nil
}

func (b *chanBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 8)
	b.mu.Lock()
	b.subs[channel] = ch
	b.mu.Unlock()
	b.subd <- channel
	return ch, nil
}

func (b *chanBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *chanBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func TestIsSubscribed(t *testing.T) {
	c := &client{subs: map[string]bool{"signals": true, "books:*": true}}
	assert.True(t, c.isSubscribed("signals"))
	assert.True(t, c.isSubscribed("books:BTC/USDT"))
	assert.False(t, c.isSubscribed("opportunities"))

	c.handleSubscription(subscribeMsg{Action: "unsubscribe", Channels: []string{"books:*"}})
	c.handleSubscription(subscribeMsg{Action: "subscribe", Channels: []string{"opportunities"}})
	assert.False(t, c.isSubscribed("books:BTC/USDT"))
	assert.True(t, c.isSubscribed("opportunities"))
}

func TestResolveChannel(t *testing.T) {
	assert.Equal(t, "signals", resolveChannel("signals", []byte(`{}`)))
	assert.Equal(t, "books:ETH/USDT", resolveChannel("books:*", []byte(`{"instrument":"ETH/USDT"}`)))
	assert.Equal(t, "books:*", resolveChannel("books:*", []byte(`not json`)))
}

func TestEncodeEnvelope(t *testing.T) {
	frame, err := encodeEnvelope("books:BTC/USDT", []byte(`{"best_bid":"1"}`))
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	assert.Equal(t, "book", env.Type)
	assert.Equal(t, "books:BTC/USDT", env.Channel)
	assert.JSONEq(t, `{"best_bid":"1"}`, string(env.Payload))

	_, err = encodeEnvelope("signals", []byte("{"))
	assert.Error(t, err)
}

func TestOriginAllowed(t *testing.T) {
	assert.True(t, originAllowed(nil, "https://a.example"))
	assert.True(t, originAllowed([]string{"https://a.example"}, "https://A.example"))
	assert.False(t, originAllowed([]string{"https://a.example"}, "https://b.example"))
	assert.True(t, originAllowed([]string{"https://a.example"}, ""))
}

func TestHubRelaysToClient(t *testing.T) {
	bus := newChanBus()
	status := func() domain.EngineStatus { return domain.EngineStatus{Mode: "monitor"} }
	hub := NewHub(bus, []string{domain.ChannelSignals}, nil, status, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	select {
	case <-bus.subd:
	case <-time.After(2 * time.Second):
		t.Fatal("hub never subscribed")
	}

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var first Envelope
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "status", first.Type)
	assert.Contains(t, string(first.Payload), `"mode":"monitor"`)

	require.NoError(t, bus.Publish(ctx, domain.ChannelSignals, []byte(`{"id":"s1"}`)))

	var next Envelope
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, "signal", next.Type)
	assert.Equal(t, domain.ChannelSignals, next.Channel)
	assert.JSONEq(t, `{"id":"s1"}`, string(next.Payload))
}

func TestHubRejectsClientsAfterShutdown(t *testing.T) {
	hub := NewHub(newChanBus(), []string{domain.ChannelSignals}, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, hub.Run(ctx), context.Canceled)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
	assert.Zero(t, hub.ClientCount())
}

func TestStatusFrame(t *testing.T) {
	frame, err := statusFrame(domain.EngineStatus{Mode: "full"})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	assert.Equal(t, "status", env.Type)
	assert.Empty(t, env.Channel)
	assert.Contains(t, string(env.Payload), `"mode":"full"`)
}
