// Package arbitrage detects cross-exchange arbitrage opportunities from
// per-cycle order book snapshots. Strategies are pure queries over a snapshot
// map; the Detector feeds them polling cycles and hands results to a Recorder.
package arbitrage

import (
	"time"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

// Strategy detects at most one opportunity for one instrument from a
// consistent exchange_id -> snapshot map.
type Strategy interface {
	Name() string
	Detect(instrument string, books map[string]domain.OrderBookSnapshot, now time.Time) domain.DetectResult
}
