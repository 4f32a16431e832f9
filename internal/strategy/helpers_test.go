package strategy

import (
	"io"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

var t0 = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ladder(pv ...string) domain.Ladder {
	out := make(domain.Ladder, 0, len(pv)/2)
	for i := 0; i+1 < len(pv); i += 2 {
		out = append(out, domain.PriceLevel{Price: dec(pv[i]), Volume: dec(pv[i+1])})
	}
	return out
}

func testConfig() ImbalanceConfig {
	cfg := DefaultImbalanceConfig()
	cfg.Depth = 3
	return cfg
}

// Bid-heavy book: spread 0.1, bid depth 15 vs ask depth 3.
func longEntryBook() (domain.Ladder, domain.Ladder) {
	return ladder("100", "5", "99.9", "5", "99.8", "5"),
		ladder("100.1", "1", "100.2", "1", "100.3", "1")
}

// Ask-heavy book: spread 0.1, ask depth 15 vs bid depth 3.
func shortEntryBook() (domain.Ladder, domain.Ladder) {
	return ladder("100", "1", "99.9", "1", "99.8", "1"),
		ladder("100.1", "5", "100.2", "5", "100.3", "5")
}

func balancedBook() (domain.Ladder, domain.Ladder) {
	return ladder("100", "2", "99.9", "2", "99.8", "2"),
		ladder("100.1", "2", "100.2", "2", "100.3", "2")
}

func bars(closes ...string) []domain.Bar {
	out := make([]domain.Bar, len(closes))
	for i, c := range closes {
		out[i] = domain.Bar{Timestamp: t0.Add(time.Duration(i) * time.Minute), Close: dec(c)}
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
