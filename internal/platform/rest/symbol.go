package rest

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

// SplitInstrument splits "BTC/USDT" into its upper-cased base and quote.
func SplitInstrument(instrument string) (base, quote string, err error) {
	parts := strings.Split(strings.TrimSpace(instrument), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("instrument %q is not BASE/QUOTE: %w", instrument, domain.ErrSymbolNotListed)
	}
	return strings.ToUpper(parts[0]), strings.ToUpper(parts[1]), nil
}
