package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action is the direction of a ledger trade.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Trade is one immutable entry in a backtest ledger.
type Trade struct {
	Timestamp time.Time       `json:"timestamp"`
	Action    Action          `json:"action"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	Fee       decimal.Decimal `json:"fee"`
}

// Bar is one OHLCV observation of a price series.
type Bar struct {
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}
