package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Signal is a pure trading decision.
type Signal int

const (
	SignalHold Signal = iota
	SignalBuy
	SignalSell
)

// String returns the lowercase name of the signal.
func (s Signal) String() string {
	switch s {
	case SignalBuy:
		return "buy"
	case SignalSell:
		return "sell"
	default:
		return "hold"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Signal) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Signal) UnmarshalText(b []byte) error {
	sig, err := ParseSignal(string(b))
	if err != nil {
		return err
	}
	*s = sig
	return nil
}

// ParseSignal converts a name back into a Signal.
func ParseSignal(v string) (Signal, error) {
	switch v {
	case "hold":
		return SignalHold, nil
	case "buy":
		return SignalBuy, nil
	case "sell":
		return SignalSell, nil
	}
	return SignalHold, fmt.Errorf("domain: unknown signal %q", v)
}

// SignalEvent is a non-Hold decision emitted by a live strategy engine.
type SignalEvent struct {
	ID            string          `json:"id"`
	Strategy      string          `json:"strategy"`
	Exchange      string          `json:"exchange"`
	Instrument    string          `json:"instrument"`
	Signal        Signal          `json:"signal"`
	Price         decimal.Decimal `json:"price"`
	Position      Position        `json:"position"`
	SuggestedSize decimal.Decimal `json:"suggested_size"`
	CreatedAt     time.Time       `json:"created_at"`
}

// EngineStatus is a summary of the running engine.
type EngineStatus struct {
	Mode          string   `json:"mode"`
	Instruments   []string `json:"instruments"`
	Exchanges     []string `json:"exchanges"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	LastCycle     uint64   `json:"last_cycle"`
	OpenPositions int      `json:"open_positions"`
}
