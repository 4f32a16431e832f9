package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

// SnapshotCache implements domain.SnapshotCache. Each book is stored as one
// JSON value so readers never see a half-replaced ladder.
//
// Key schema:
//
//	book:{exchange}:{instrument}  - JSON-encoded domain.OrderBookSnapshot
type SnapshotCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSnapshotCache creates a SnapshotCache. A ttl <= 0 keeps entries until
// they are overwritten.
func NewSnapshotCache(c *Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{rdb: c.rdb, ttl: ttl}
}

func snapshotKey(exchange, instrument string) string {
	return "book:" + exchange + ":" + instrument
}

// SetSnapshot replaces the cached book for the snapshot's exchange and instrument.
func (sc *SnapshotCache) SetSnapshot(ctx context.Context, snap domain.OrderBookSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: encode snapshot %s/%s: %w", snap.ExchangeID, snap.Instrument, err)
	}
	ttl := sc.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := sc.rdb.Set(ctx, snapshotKey(snap.ExchangeID, snap.Instrument), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot %s/%s: %w", snap.ExchangeID, snap.Instrument, err)
	}
	return nil
}

// GetSnapshot returns domain.ErrNotFound when no book is cached.
func (sc *SnapshotCache) GetSnapshot(ctx context.Context, exchange, instrument string) (domain.OrderBookSnapshot, error) {
	raw, err := sc.rdb.Get(ctx, snapshotKey(exchange, instrument)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.OrderBookSnapshot{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("redis: get snapshot %s/%s: %w", exchange, instrument, err)
	}
	return decodeSnapshot(raw)
}

func decodeSnapshot(raw []byte) (domain.OrderBookSnapshot, error) {
	var snap domain.OrderBookSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("redis: decode snapshot: %w", err)
	}
	return snap, nil
}

// Compile-time interface check.
var _ domain.SnapshotCache = (*SnapshotCache)(nil)
