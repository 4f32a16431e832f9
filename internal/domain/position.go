package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a strategy's single position.
type Side string

const (
	SideFlat  Side = "flat"
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Position is the one open position a strategy instance may hold. The zero
// value is Flat.
type Position struct {
	Side            Side            `json:"side"`
	EntryPrice      decimal.Decimal `json:"entry_price"`
	TakeProfitPrice decimal.Decimal `json:"take_profit_price"`
	StopLossPrice   decimal.Decimal `json:"stop_loss_price"`
	OpenedAt        time.Time       `json:"opened_at"`
}

// IsFlat reports whether no position is open.
func (p Position) IsFlat() bool {
	return p.Side == "" || p.Side == SideFlat
}

// FlatPosition returns a cleared position.
func FlatPosition() Position {
	return Position{Side: SideFlat}
}
