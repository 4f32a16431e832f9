package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

// AlertThrottle implements domain.AlertThrottle with SET NX and a TTL, so
// several processes share one suppression window per key.
type AlertThrottle struct {
	rdb *redis.Client
	// owner tags keys with the process that claimed them.
	owner string
}

// NewAlertThrottle creates an AlertThrottle backed by the given Client.
func NewAlertThrottle(c *Client) *AlertThrottle {
	return &AlertThrottle{rdb: c.rdb, owner: uuid.NewString()}
}

func throttleKey(key string) string {
	return "alert:" + key
}

// Allow claims key for ttl. It reports false while an earlier claim is live.
func (at *AlertThrottle) Allow(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return true, nil
	}
	ok, err := at.rdb.SetNX(ctx, throttleKey(key), at.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: throttle %s: %w", key, err)
	}
	return ok, nil
}

// Compile-time interface check.
var _ domain.AlertThrottle = (*AlertThrottle)(nil)
