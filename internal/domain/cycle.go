package domain

import (
	"sort"
	"time"
)

// Cycle is the consistent result of one polling round across every configured
// exchange. It is only built after every fetch for the round has resolved.
type Cycle struct {
	Seq         uint64
	StartedAt   time.Time
	CompletedAt time.Time
	// Books maps instrument -> exchange -> snapshot.
	Books map[string]map[string]OrderBookSnapshot
	// Failures maps "exchange/instrument" -> error text for fetches that
	// failed or timed out this round.
	Failures map[string]string
}

// Instruments returns the instruments present in the cycle, sorted.
func (c Cycle) Instruments() []string {
	out := make([]string, 0, len(c.Books))
	for inst := range c.Books {
		out = append(out, inst)
	}
	sort.Strings(out)
	return out
}

// Snapshots returns the per-exchange books for one instrument.
func (c Cycle) Snapshots(instrument string) map[string]OrderBookSnapshot {
	return c.Books[instrument]
}
