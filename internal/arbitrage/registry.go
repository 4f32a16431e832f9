package arbitrage

import (
	"fmt"
	"maps"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

// Params are the detector settings shared by the built-in strategies.
// FillVolume is ignored by top_of_book.
type Params struct {
	ThresholdPercent decimal.Decimal
	FillVolume       decimal.Decimal
}

type constructor func(Params) (Strategy, error)

var constructors = map[string]constructor{
	"top_of_book": func(p Params) (Strategy, error) {
		return NewTopOfBook(p.ThresholdPercent)
	},
	"depth_weighted": func(p Params) (Strategy, error) {
		return NewDepthWeighted(p.ThresholdPercent, p.FillVolume)
	},
}

// New builds the strategy registered under name.
func New(name string, p Params) (Strategy, error) {
	build, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("arbitrage: strategy %q: %w", name, domain.ErrUnknownStrategy)
	}
	s, err := build(p)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Names lists the built-in strategies in sorted order.
func Names() []string {
	return slices.Sorted(maps.Keys(constructors))
}
