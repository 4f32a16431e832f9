package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

const (
	contentTypeJSON  = "application/json"
	contentTypeJSONL = "application/x-ndjson"

	backtestPrefix    = "backtests/"
	opportunityPrefix = "archive/opportunities/"
)

// OpportunityArchiveStore is the slice of domain.OpportunityStore the
// archiver needs.
type OpportunityArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.ArbitrageOpportunity, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ArchiveImpl implements domain.Archiver on top of a blob writer and reader.
//
// Layout:
//
//	backtests/{id}/report.json     - report summary and metrics
//	backtests/{id}/trades.jsonl    - trade ledger, one trade per line
//	backtests/{id}/equity.jsonl    - equity curve, one point per line
//	archive/opportunities/{cutoff}.jsonl
type ArchiveImpl struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	opps   OpportunityArchiveStore
	// largeAbove switches curve uploads to PutLarge.
	largeAbove int
}

// NewArchiver creates an ArchiveImpl. opps may be nil when opportunity
// history is not persisted.
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader, opps OpportunityArchiveStore) *ArchiveImpl {
	return &ArchiveImpl{
		writer:         writer,
		reader:         reader,
		opps:           opps,
		largeAbove:     int(minPartSize),
	}
}

// BacktestPath returns the object prefix for one backtest.
func BacktestPath(id string) string {
	return backtestPrefix + id + "/"
}

// ArchiveBacktest uploads the report, its ledger and its curve, returning the
// object prefix they were written under.
func (a *ArchiveImpl) ArchiveBacktest(ctx context.Context, report domain.BacktestReport) (string, error) {
	if report.ID == "" {
		return "", fmt.Errorf("s3blob: archive backtest: empty id")
	}
	prefix := BacktestPath(report.ID)

	header := report
	header.Trades = nil
	header.EquityCurve = nil
	body, err := json.MarshalIndent(header, "", "  ")
	if err != nil {
		return "", fmt.Errorf("s3blob: archive backtest %s marshal report: %w", report.ID, err)
	}
	if err := a.writer.Put(ctx, prefix+"report.json", bytes.NewReader(body), contentTypeJSON); err != nil {
		return "", fmt.Errorf("s3blob: archive backtest %s report: %w", report.ID, err)
	}

	trades, err := marshalJSONL(report.Trades)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive backtest %s marshal trades: %w", report.ID, err)
	}
	if err := a.writer.Put(ctx, prefix+"trades.jsonl", bytes.NewReader(trades), contentTypeJSONL); err != nil {
		return "", fmt.Errorf("s3blob: archive backtest %s trades: %w", report.ID, err)
	}

	curve, err := marshalJSONL(report.EquityCurve)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive backtest %s marshal equity: %w", report.ID, err)
	}
	if len(curve) > a.largeAbove {
		err = a.writer.PutLarge(ctx, prefix+"equity.jsonl", bytes.NewReader(curve), contentTypeJSONL)
	} else {
		err = a.writer.Put(ctx, prefix+"equity.jsonl", bytes.NewReader(curve), contentTypeJSONL)
	}
	if err != nil {
		return "", fmt.Errorf("s3blob: archive backtest %s equity: %w", report.ID, err)
	}
	return prefix, nil
}

// LoadBacktest reassembles an archived report. A missing report yields
// domain.ErrNotFound.
func (a *ArchiveImpl) LoadBacktest(ctx context.Context, id string) (domain.BacktestReport, error) {
	prefix := BacktestPath(id)

	var report domain.BacktestReport
	if err := a.readJSON(ctx, prefix+"report.json", &report); err != nil {
		return domain.BacktestReport{}, fmt.Errorf("s3blob: load backtest %s: %w", id, err)
	}
	trades, err := readJSONL[domain.Trade](ctx, a.reader, prefix+"trades.jsonl")
	if err != nil {
		return domain.BacktestReport{}, fmt.Errorf("s3blob: load backtest %s trades: %w", id, err)
	}
	curve, err := readJSONL[domain.EquityPoint](ctx, a.reader, prefix+"equity.jsonl")
	if err != nil {
		return domain.BacktestReport{}, fmt.Errorf("s3blob: load backtest %s equity: %w", id, err)
	}
	report.Trades = trades
	report.EquityCurve = curve
	return report, nil
}

// ListBacktests returns the IDs of archived backtests.
func (a *ArchiveImpl) ListBacktests(ctx context.Context) ([]string, error) {
	infos, err := a.reader.List(ctx, backtestPrefix)
	if err != nil {
		return nil, fmt.Errorf("s3blob: list backtests: %w", err)
	}
	var ids []string
	for _, info := range infos {
		if path.Base(info.Key) != "report.json" {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(info.Key, backtestPrefix), "/report.json")
		ids = append(ids, id)
	}
	return ids, nil
}

// ArchiveOpportunities uploads every opportunity detected before the cutoff
// as JSONL and then removes them from the primary store. Nothing is deleted
// when the upload fails.
func (a *ArchiveImpl) ArchiveOpportunities(ctx context.Context, before time.Time) (int64, error) {
	if a.opps == nil {
		return 0, nil
	}
	opps, err := a.opps.ListBefore(ctx, before, 0)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities query: %w", err)
	}
	if len(opps) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(opps)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities marshal: %w", err)
	}
	key := opportunityArchivePath(before)
	if err := a.writer.Put(ctx, key, bytes.NewReader(buf), contentTypeJSONL); err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities upload: %w", err)
	}

	if _, err := a.opps.DeleteBefore(ctx, before); err != nil {
		return int64(len(opps)), fmt.Errorf("s3blob: archive opportunities prune: %w", err)
	}
	return int64(len(opps)), nil
}

// opportunityArchivePath partitions archives by the cutoff instant:
//
//	archive/opportunities/2025-01-31T000000Z.jsonl
func opportunityArchivePath(before time.Time) string {
	return opportunityPrefix + before.UTC().Format("2006-01-02T150405Z") + ".jsonl"
}

func (a *ArchiveImpl) readJSON(ctx context.Context, key string, out any) error {
	rc, err := a.reader.Get(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()
	return json.NewDecoder(rc).Decode(out)
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

func readJSONL[T any](ctx context.Context, r domain.BlobReader, key string) ([]T, error) {
	rc, err := r.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var out []T
	dec := json.NewDecoder(rc)
	for {
		var rec T
		if err := dec.Decode(&rec); err == io.EOF {
			return out, nil
		} else if err != nil {
			return nil, fmt.Errorf("jsonl decode record %d: %w", len(out), err)
		}
		out = append(out, rec)
	}
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
