package domain

import (
	"context"
	"time"
)

// SnapshotCache stores the latest order book per (exchange, instrument).
type SnapshotCache interface {
	SetSnapshot(ctx context.Context, snap OrderBookSnapshot) error
	GetSnapshot(ctx context.Context, exchange, instrument string) (OrderBookSnapshot, error)
}

// AlertThrottle suppresses repeat alerts for the same key within a window.
type AlertThrottle interface {
	// Allow returns true the first time key is seen within ttl.
	Allow(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// StreamMessage represents a single entry from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// Bus channel names.
const (
	ChannelOpportunities = "opportunities"
	ChannelSignals       = "signals"
	ChannelBacktests     = "backtests"
	ChannelBooksPrefix   = "books:"

	StreamOpportunities = "stream:opportunities"
	StreamSignals       = "stream:signals"
)
