package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

// BacktestStore implements domain.BacktestStore. A report is stored as one
// header row plus its trade ledger and equity curve in child tables.
type BacktestStore struct {
	pool *pgxpool.Pool
}

// NewBacktestStore creates a new BacktestStore backed by the given pool.
func NewBacktestStore(pool *pgxpool.Pool) *BacktestStore {
	return &BacktestStore{pool: pool}
}

const backtestSummaryCols = `id, strategy, symbol, initial_capital::text, final_equity::text,
	total_return_percent::text, max_drawdown_percent::text, trade_count, created_at`

// Save writes the report, its trades and its equity curve in one transaction.
// Saving an existing ID replaces it.
func (s *BacktestStore) Save(ctx context.Context, r domain.BacktestReport) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin save backtest %s: %w", r.ID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM backtests WHERE id = $1`, r.ID); err != nil {
		return fmt.Errorf("postgres: clear backtest %s: %w", r.ID, err)
	}

	const header = `
		INSERT INTO backtests (
			id, strategy, symbol, initial_capital, final_equity, commission,
			total_return, total_return_percent, max_drawdown, max_drawdown_percent,
			trade_count, started_at, ended_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	if _, err := tx.Exec(ctx, header,
		r.ID, r.Strategy, r.Symbol, num(r.InitialCapital), num(r.FinalEquity), num(r.Commission),
		num(r.TotalReturn), num(r.TotalReturnPercent), num(r.MaxDrawdown), num(r.MaxDrawdownPercent),
		r.TradeCount, nullTime(r.StartedAt), nullTime(r.EndedAt), r.CreatedAt,
	); err != nil {
		return fmt.Errorf("postgres: insert backtest %s: %w", r.ID, err)
	}

	batch := &pgx.Batch{}
	const tradeQuery = `
		INSERT INTO backtest_trades (backtest_id, seq, ts, action, price, amount, fee)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for i, t := range r.Trades {
		batch.Queue(tradeQuery, r.ID, i, t.Timestamp, string(t.Action), num(t.Price), num(t.Amount), num(t.Fee))
	}
	const equityQuery = `
		INSERT INTO backtest_equity (backtest_id, seq, ts, capital, position_value, total_equity)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for i, p := range r.EquityCurve {
		batch.Queue(equityQuery, r.ID, i, p.Timestamp, num(p.Capital), num(p.PositionValue), num(p.TotalEquity))
	}

	if batch.Len() > 0 {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("postgres: insert backtest %s batch item %d: %w", r.ID, i, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("postgres: close backtest %s batch: %w", r.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit backtest %s: %w", r.ID, err)
	}
	return nil
}

// GetByID loads a full report. It returns domain.ErrNotFound for unknown IDs.
func (s *BacktestStore) GetByID(ctx context.Context, id string) (domain.BacktestReport, error) {
	const query = `SELECT id, strategy, symbol, initial_capital::text, final_equity::text,
		commission::text, total_return::text, total_return_percent::text,
		max_drawdown::text, max_drawdown_percent::text, trade_count,
		started_at, ended_at, created_at
		FROM backtests WHERE id = $1`

	var (
		r                               domain.BacktestReport
		initial, final, commission, ret string
		retPct, drawdown, drawdownPct   string
		startedAt, endedAt              *time.Time
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&r.ID, &r.Strategy, &r.Symbol, &initial, &final,
		&commission, &ret, &retPct,
		&drawdown, &drawdownPct, &r.TradeCount,
		&startedAt, &endedAt, &r.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.BacktestReport{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.BacktestReport{}, fmt.Errorf("postgres: get backtest %s: %w", id, err)
	}
	if startedAt != nil {
		r.StartedAt = *startedAt
	}
	if endedAt != nil {
		r.EndedAt = *endedAt
	}

	var n numScanner
	n.to(&r.InitialCapital, "initial_capital", initial)
	n.to(&r.FinalEquity, "final_equity", final)
	n.to(&r.Commission, "commission", commission)
	n.to(&r.TotalReturn, "total_return", ret)
	n.to(&r.TotalReturnPercent, "total_return_percent", retPct)
	n.to(&r.MaxDrawdown, "max_drawdown", drawdown)
	n.to(&r.MaxDrawdownPercent, "max_drawdown_percent", drawdownPct)
	if n.err != nil {
		return domain.BacktestReport{}, n.err
	}

	if r.Trades, err = s.trades(ctx, id); err != nil {
		return domain.BacktestReport{}, err
	}
	if r.EquityCurve, err = s.equity(ctx, id); err != nil {
		return domain.BacktestReport{}, err
	}
	return r, nil
}

// List returns report summaries newest first.
func (s *BacktestStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.BacktestSummary, error) {
	q := newListQuery(`SELECT ` + backtestSummaryCols + ` FROM backtests`)
	if opts.Since != nil {
		q.where("created_at >= $%d", *opts.Since)
	}
	if opts.Until != nil {
		q.where("created_at <= $%d", *opts.Until)
	}
	q.orderBy("created_at DESC")
	q.page(opts.Limit, opts.Offset)

	rows, err := s.pool.Query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list backtests: %w", err)
	}
	defer rows.Close()

	var out []domain.BacktestSummary
	for rows.Next() {
		var (
			sum                           domain.BacktestSummary
			initial, final, ret, drawdown string
		)
		if err := rows.Scan(
			&sum.ID, &sum.Strategy, &sum.Symbol, &initial, &final,
			&ret, &drawdown, &sum.TradeCount, &sum.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan backtest summary: %w", err)
		}
		var n numScanner
		n.to(&sum.InitialCapital, "initial_capital", initial)
		n.to(&sum.FinalEquity, "final_equity", final)
		n.to(&sum.TotalReturnPercent, "total_return_percent", ret)
		n.to(&sum.MaxDrawdownPercent, "max_drawdown_percent", drawdown)
		if n.err != nil {
			return nil, n.err
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list backtests rows: %w", err)
	}
	return out, nil
}

func (s *BacktestStore) trades(ctx context.Context, id string) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ts, action, price::text, amount::text, fee::text
		FROM backtest_trades WHERE backtest_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("postgres: list backtest trades %s: %w", id, err)
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		var (
			t                  domain.Trade
			action             string
			price, amount, fee string
		)
		if err := rows.Scan(&t.Timestamp, &action, &price, &amount, &fee); err != nil {
			return nil, fmt.Errorf("postgres: scan backtest trade: %w", err)
		}
		t.Action = domain.Action(action)
		var n numScanner
		n.to(&t.Price, "price", price)
		n.to(&t.Amount, "amount", amount)
		n.to(&t.Fee, "fee", fee)
		if n.err != nil {
			return nil, n.err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *BacktestStore) equity(ctx context.Context, id string) ([]domain.EquityPoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ts, capital::text, position_value::text, total_equity::text
		FROM backtest_equity WHERE backtest_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("postgres: list backtest equity %s: %w", id, err)
	}
	defer rows.Close()

	var out []domain.EquityPoint
	for rows.Next() {
		var (
			p                        domain.EquityPoint
			capital, position, total string
		)
		if err := rows.Scan(&p.Timestamp, &capital, &position, &total); err != nil {
			return nil, fmt.Errorf("postgres: scan backtest equity: %w", err)
		}
		var n numScanner
		n.to(&p.Capital, "capital", capital)
		n.to(&p.PositionValue, "position_value", position)
		n.to(&p.TotalEquity, "total_equity", total)
		if n.err != nil {
			return nil, n.err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Compile-time interface check.
var _ domain.BacktestStore = (*BacktestStore)(nil)
