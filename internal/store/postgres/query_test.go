package postgres

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListQuery(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	until := since.Add(time.Hour)

	q := newListQuery("SELECT id FROM signals")
	q.where("created_at >= $%d", since)
	q.where("created_at <= $%d", until)
	q.orderBy("created_at DESC")
	q.page(50, 100)

	assert.Equal(t,
		"SELECT id FROM signals WHERE created_at >= $1 AND created_at <= $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4",
		q.String())
	assert.Equal(t, []any{since, until, 50, 100}, q.args)
}

func TestListQuery_NoFilters(t *testing.T) {
	q := newListQuery("SELECT id FROM backtests")
	q.orderBy("created_at DESC")
	q.page(0, 0)
	assert.Equal(t, "SELECT id FROM backtests ORDER BY created_at DESC", q.String())
	assert.Empty(t, q.args)
}

func TestNumScanner(t *testing.T) {
	var a, b decimal.Decimal
	var n numScanner
	n.to(&a, "a", "100.123456789012345678")
	n.to(&b, "b", "not-a-number")
	require.Error(t, n.err)
	assert.Contains(t, n.err.Error(), "column b")
	assert.Equal(t, "100.123456789012345678", a.String())
	assert.Equal(t, "100.123456789012345678", num(a))
}

func TestNullTime(t *testing.T) {
	assert.Nil(t, nullTime(time.Time{}))
	now := time.Now()
	require.NotNil(t, nullTime(now))
	assert.True(t, nullTime(now).Equal(now))
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/mm?sslmode=disable",
		DSN(ClientConfig{Host: "db", Database: "mm", User: "u", Password: "p"}))
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x"}))
	assert.Equal(t, "postgres://u:p%40ss@db:6543/mm?sslmode=require",
		DSN(ClientConfig{Host: "db", Port: 6543, Database: "mm", User: "u", Password: "p@ss", SSLMode: "require"}))
}

func TestMigrationNames(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_init.sql", names[0])
	assert.IsNonDecreasing(t, names)
}

func TestMigrationsEmbedded(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/001_init.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "CREATE TABLE IF NOT EXISTS opportunities")
	assert.Contains(t, string(data), "CREATE TABLE IF NOT EXISTS backtest_equity")
}
