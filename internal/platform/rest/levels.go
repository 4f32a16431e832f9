package rest

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

// ParseLevels converts venue [price, size, ...] string arrays into a ladder,
// keeping venue order and dropping anything past depth (depth <= 0 keeps all).
func ParseLevels(raw [][]json.RawMessage, depth int) (domain.Ladder, error) {
	n := len(raw)
	if depth > 0 && depth < n {
		n = depth
	}
	out := make(domain.Ladder, 0, n)
	for i := 0; i < n; i++ {
		row := raw[i]
		if len(row) < 2 {
			return nil, fmt.Errorf("level %d: expected at least 2 fields, got %d", i, len(row))
		}
		price, err := decimalField(row[0])
		if err != nil {
			return nil, fmt.Errorf("level %d price: %w", i, err)
		}
		size, err := decimalField(row[1])
		if err != nil {
			return nil, fmt.Errorf("level %d size: %w", i, err)
		}
		out = append(out, domain.PriceLevel{Price: price, Volume: size})
	}
	return out, nil
}

// decimalField accepts both "123.4" and 123.4.
func decimalField(raw json.RawMessage) (decimal.Decimal, error) {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(raw); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}
