package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

// SignalStore implements domain.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *pgxpool.Pool
}

// NewSignalStore creates a new SignalStore backed by the given pool.
func NewSignalStore(pool *pgxpool.Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

const signalSelectCols = `id, strategy, exchange, instrument, signal,
	price::text, position, suggested_size::text, created_at`

// Insert stores an emitted signal.
func (s *SignalStore) Insert(ctx context.Context, ev domain.SignalEvent) error {
	position, err := json.Marshal(ev.Position)
	if err != nil {
		return fmt.Errorf("postgres: encode signal position %s: %w", ev.ID, err)
	}
	const query = `
		INSERT INTO signals (
			id, strategy, exchange, instrument, signal,
			price, position, suggested_size, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`

	_, err = s.pool.Exec(ctx, query,
		ev.ID, ev.Strategy, ev.Exchange, ev.Instrument, ev.Signal.String(),
		num(ev.Price), position, num(ev.SuggestedSize), ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert signal %s: %w", ev.ID, err)
	}
	return nil
}

// ListRecent returns signals newest first, filtered by opts.
func (s *SignalStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.SignalEvent, error) {
	q := newListQuery(`SELECT ` + signalSelectCols + ` FROM signals`)
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
		return nil, fmt.Errorf("postgres: list signals: %w", err)
	}
	defer rows.Close()

	var out []domain.SignalEvent
	for rows.Next() {
		var (
			ev                  domain.SignalEvent
			signal, price, size string
			position            []byte
		)
		if err := rows.Scan(
			&ev.ID, &ev.Strategy, &ev.Exchange, &ev.Instrument, &signal,
			&price, &position, &size, &ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan signal: %w", err)
		}
		if ev.Signal, err = domain.ParseSignal(signal); err != nil {
			return nil, fmt.Errorf("postgres: signal %s: %w", ev.ID, err)
		}
		if err := json.Unmarshal(position, &ev.Position); err != nil {
			return nil, fmt.Errorf("postgres: decode signal position %s: %w", ev.ID, err)
		}
		var n numScanner
		n.to(&ev.Price, "price", price)
		n.to(&ev.SuggestedSize, "suggested_size", size)
		if n.err != nil {
			return nil, n.err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list signals rows: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.SignalStore = (*SignalStore)(nil)
