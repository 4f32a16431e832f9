package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a new OpportunityStore backed by the given pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const opportunitySelectCols = `id, instrument, strategy, buy_exchange, sell_exchange,
	buy_price::text, sell_price::text, buy_volume::text, sell_volume::text,
	tradable_volume::text, edge_per_unit::text, edge_percent::text,
	potential_profit::text, detected_at`

// Insert stores an opportunity. Re-inserting the same ID is a no-op.
func (s *OpportunityStore) Insert(ctx context.Context, opp domain.ArbitrageOpportunity) error {
	const query = `
		INSERT INTO opportunities (
			id, instrument, strategy, buy_exchange, sell_exchange,
			buy_price, sell_price, buy_volume, sell_volume,
			tradable_volume, edge_per_unit, edge_percent,
			potential_profit, detected_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12,
			$13, $14
		) ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		opp.ID, opp.Instrument, opp.Strategy, opp.BuyExchange, opp.SellExchange,
		num(opp.BuyPrice), num(opp.SellPrice), num(opp.BuyVolume), num(opp.SellVolume),
		num(opp.TradableVolume), num(opp.EdgePerUnit), num(opp.EdgePercent),
		num(opp.PotentialProfit), opp.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// ListRecent returns the newest opportunities first.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.ArbitrageOpportunity, error) {
	q := newListQuery(`SELECT ` + opportunitySelectCols + ` FROM opportunities`)
	q.orderBy("detected_at DESC")
	q.page(limit, 0)
	return s.query(ctx, "list recent opportunities", q)
}

// ListBefore returns opportunities detected before the cutoff, oldest first.
func (s *OpportunityStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.ArbitrageOpportunity, error) {
	q := newListQuery(`SELECT ` + opportunitySelectCols + ` FROM opportunities`)
	q.where("detected_at < $%d", before)
	q.orderBy("detected_at ASC")
	q.page(limit, 0)
	return s.query(ctx, "list opportunities before", q)
}

// DeleteBefore removes opportunities detected before the cutoff.
func (s *OpportunityStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM opportunities WHERE detected_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete opportunities before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

func (s *OpportunityStore) query(ctx context.Context, op string, q *listQuery) ([]domain.ArbitrageOpportunity, error) {
	rows, err := s.pool.Query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	defer rows.Close()

	var out []domain.ArbitrageOpportunity
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s rows: %w", op, err)
	}
	return out, nil
}

func scanOpportunity(row pgx.Row) (domain.ArbitrageOpportunity, error) {
	var (
		opp                                  domain.ArbitrageOpportunity
		buyPrice, sellPrice, buyVol, sellVol string
		tradable, edgeUnit, edgePct, profit  string
	)
	if err := row.Scan(
		&opp.ID, &opp.Instrument, &opp.Strategy, &opp.BuyExchange, &opp.SellExchange,
		&buyPrice, &sellPrice, &buyVol, &sellVol,
		&tradable, &edgeUnit, &edgePct,
		&profit, &opp.DetectedAt,
	); err != nil {
		return domain.ArbitrageOpportunity{}, fmt.Errorf("postgres: scan opportunity: %w", err)
	}
	var n numScanner
	n.to(&opp.BuyPrice, "buy_price", buyPrice)
	n.to(&opp.SellPrice, "sell_price", sellPrice)
	n.to(&opp.BuyVolume, "buy_volume", buyVol)
	n.to(&opp.SellVolume, "sell_volume", sellVol)
	n.to(&opp.TradableVolume, "tradable_volume", tradable)
	n.to(&opp.EdgePerUnit, "edge_per_unit", edgeUnit)
	n.to(&opp.EdgePercent, "edge_percent", edgePct)
	n.to(&opp.PotentialProfit, "potential_profit", profit)
	if n.err != nil {
		return domain.ArbitrageOpportunity{}, n.err
	}
	return opp, nil
}

// Compile-time interface check.
var _ domain.OpportunityStore = (*OpportunityStore)(nil)
