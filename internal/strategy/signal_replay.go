package strategy

import (
	"sort"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

// SignalReplayName is the strategy name reported by replayed signal runs.
const SignalReplayName = "signal_replay"

// SignalReplay is a BarStrategy that replays recorded signal events against a
// bar series. A bar covers the interval (previous bar timestamp, bar
// timestamp]; the first bar also takes every event at or before its own
// timestamp. The latest non-hold event in a bar's interval decides the
// signal, otherwise the bar holds. It keeps no state between calls.
type SignalReplay struct {
	events []domain.SignalEvent
}

// NewSignalReplay copies and orders events by CreatedAt. Events with an
// unknown signal are dropped.
func NewSignalReplay(events []domain.SignalEvent) *SignalReplay {
	evs := make([]domain.SignalEvent, 0, len(events))
	for _, ev := range events {
		if ev.Signal == domain.SignalBuy || ev.Signal == domain.SignalSell {
			evs = append(evs, ev)
		}
	}
	sort.SliceStable(evs, func(i, j int) bool {
		return evs[i].CreatedAt.Before(evs[j].CreatedAt)
	})
	return &SignalReplay{events: evs}
}

// Name returns SignalReplayName.
func (r *SignalReplay) Name() string { return SignalReplayName }

// Len reports how many actionable events are loaded.
func (r *SignalReplay) Len() int { return len(r.events) }

// SignalFor returns the replayed signal for the last bar in history.
func (r *SignalReplay) SignalFor(history []domain.Bar) domain.Signal {
	if len(history) == 0 || len(r.events) == 0 {
		return domain.SignalHold
	}
	end := history[len(history)-1].Timestamp
	// first index strictly after the bar
	hi := sort.Search(len(r.events), func(i int) bool {
		return r.events[i].CreatedAt.After(end)
	})
	if hi == 0 {
		return domain.SignalHold
	}
	if len(history) > 1 {
		start := history[len(history)-2].Timestamp
		if !r.events[hi-1].CreatedAt.After(start) {
			return domain.SignalHold
		}
	}
	return r.events[hi-1].Signal
}

var _ BarStrategy = (*SignalReplay)(nil)
