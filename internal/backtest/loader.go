package backtest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

var barColumns = []string{"timestamp", "open", "high", "low", "close", "volume"}

// LoadBarsCSV reads timestamp,open,high,low,close,volume rows. A header row is
// optional. Timestamps are RFC3339 or unix seconds and must strictly increase.
func LoadBarsCSV(r io.Reader) ([]domain.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(barColumns)
	cr.TrimLeadingSpace = true

	var out []domain.Bar
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("backtest: read csv: %w", err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), barColumns[0]) {
			continue
		}
		bar, err := parseBar(rec)
		if err != nil {
			return nil, fmt.Errorf("backtest: csv line %d: %w", line, err)
		}
		if n := len(out); n > 0 && !bar.Timestamp.After(out[n-1].Timestamp) {
			return nil, fmt.Errorf("backtest: csv line %d: %w", line, domain.ErrOutOfOrderSeries)
		}
		out = append(out, bar)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("backtest: load bars: %w", domain.ErrEmptySeries)
	}
	return out, nil
}

func parseBar(rec []string) (domain.Bar, error) {
	ts, err := parseTimestamp(strings.TrimSpace(rec[0]))
	if err != nil {
		return domain.Bar{}, err
	}
	vals := make([]decimal.Decimal, 5)
	for i := 1; i < len(barColumns); i++ {
		v, err := decimal.NewFromString(strings.TrimSpace(rec[i]))
		if err != nil {
			return domain.Bar{}, fmt.Errorf("%s: %w", barColumns[i], err)
		}
		vals[i-1] = v
	}
	return domain.Bar{
		Timestamp: ts,
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// WriteBarsCSV writes bars in the format LoadBarsCSV reads, with a header.
func WriteBarsCSV(w io.Writer, bars []domain.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(barColumns); err != nil {
		return err
	}
	for _, b := range bars {
		rec := []string{
			b.Timestamp.UTC().Format(time.RFC3339),
			b.Open.String(), b.High.String(), b.Low.String(), b.Close.String(), b.Volume.String(),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
