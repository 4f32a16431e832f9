package postgres

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// listQuery appends optional time filters, ordering and paging to a SELECT.
type listQuery struct {
	sb     strings.Builder
	args   []any
	hasWhr bool
}

func newListQuery(base string) *listQuery {
	q := &listQuery{}
	q.sb.WriteString(base)
	return q
}

func (q *listQuery) where(cond string, arg any) {
	q.args = append(q.args, arg)
	if q.hasWhr {
		q.sb.WriteString(" AND ")
	} else {
		q.sb.WriteString(" WHERE ")
		q.hasWhr = true
	}
	q.sb.WriteString(fmt.Sprintf(cond, len(q.args)))
}

func (q *listQuery) orderBy(clause string) {
	q.sb.WriteString(" ORDER BY ")
	q.sb.WriteString(clause)
}

func (q *listQuery) page(limit, offset int) {
	if limit > 0 {
		q.args = append(q.args, limit)
		q.sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(q.args)))
	}
	if offset > 0 {
		q.args = append(q.args, offset)
		q.sb.WriteString(fmt.Sprintf(" OFFSET $%d", len(q.args)))
	}
}

func (q *listQuery) String() string { return q.sb.String() }

// NUMERIC columns travel as text so no precision is lost in either direction.

func num(d decimal.Decimal) string { return d.String() }

func parseNum(col, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("postgres: column %s: %w", col, err)
	}
	return d, nil
}

// numScanner collects text-cast NUMERIC columns during a row scan and
// converts them afterwards, remembering the first failure.
type numScanner struct {
	err error
}

func (n *numScanner) to(dst *decimal.Decimal, col, raw string) {
	if n.err != nil {
		return
	}
	d, err := parseNum(col, raw)
	if err != nil {
		n.err = err
		return
	}
	*dst = d
}

// nullTime maps the zero time to SQL NULL.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
