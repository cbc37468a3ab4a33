// Copyright (c) 2024 Neomantra Corp

// Package query implements the Query Builder: symbol-scoped range
// queries over the storage loaders' hypertables, with a fallback symbol
// resolution path when the definitions table is absent.
package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SymbolResolutionError is returned by GetAvailableSymbols when its
// symbol query fails. The Builder does not catch it; the choice between
// definitions_data and the daily OHLCV hypertable is made beforehand
// from the cached table-existence check.
type SymbolResolutionError struct {
	Err error
}

func (e *SymbolResolutionError) Error() string {
	return fmt.Sprintf("query: symbol resolution failed: %v", e.Err)
}

func (e *SymbolResolutionError) Unwrap() error { return e.Err }

// Row is one result row, keyed by column name; decimal-valued columns
// are preserved as the driver's native numeric type rather than
// pre-converted to float64, so callers choose their own precision.
type Row map[string]any

// Builder runs range/symbol queries against the ingestion pipeline's
// hypertables.
type Builder struct {
	pool *pgxpool.Pool

	once              sync.Once
	definitionsExists bool
}

// NewBuilder constructs a Builder over an existing connection pool.
func NewBuilder(pool *pgxpool.Pool) *Builder {
	return &Builder{pool: pool}
}

// hasDefinitionsTable checks once per Builder lifetime (cached) whether
// definitions_data exists, falling back to hypertable-direct symbol
// columns when it does not.
func (b *Builder) hasDefinitionsTable(ctx context.Context) bool {
	b.once.Do(func() {
		var exists bool
		err := b.pool.QueryRow(ctx, `SELECT EXISTS (
			SELECT 1 FROM information_schema.tables WHERE table_name = 'definitions_data'
		)`).Scan(&exists)
		b.definitionsExists = err == nil && exists
	})
	return b.definitionsExists
}

func rowsToMaps(rows pgx.Rows) ([]Row, error) {
	defer rows.Close()
	fields := rows.FieldDescriptions()
	var out []Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("query: scan row: %w", err)
		}
		row := make(Row, len(fields))
		for i, f := range fields {
			row[string(f.Name)] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query: iterate rows: %w", err)
	}
	return out, nil
}

// QueryDailyOhlcv returns OHLCV bars for symbols in [start, end), at the
// given granularity (defaults to "1d" when empty), limited to limit rows
// when limit > 0.
func (b *Builder) QueryDailyOhlcv(ctx context.Context, symbols []string, start, end time.Time, granularity string, limit int) ([]Row, error) {
	if granularity == "" {
		granularity = "1d"
	}
	sql := `SELECT * FROM daily_ohlcv_data WHERE symbol = ANY($1) AND ts_event >= $2 AND ts_event < $3 AND granularity = $4 ORDER BY ts_event`
	args := []any{symbols, start.UnixNano(), end.UnixNano(), granularity}
	sql, args = applyLimit(sql, args, limit)

	rows, err := b.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query: QueryDailyOhlcv: %w", err)
	}
	return rowsToMaps(rows)
}

// QueryTrades returns trades for symbols in [start, end), optionally
// filtered by side and a minimum size.
func (b *Builder) QueryTrades(ctx context.Context, symbols []string, start, end time.Time, side string, minVolume int64, limit int) ([]Row, error) {
	sql := `SELECT * FROM trades_data WHERE symbol = ANY($1) AND ts_event >= $2 AND ts_event < $3`
	args := []any{symbols, start.UnixNano(), end.UnixNano()}
	if side != "" {
		sql += fmt.Sprintf(" AND side = $%d", len(args)+1)
		args = append(args, side)
	}
	if minVolume > 0 {
		sql += fmt.Sprintf(" AND size >= $%d", len(args)+1)
		args = append(args, minVolume)
	}
	sql += " ORDER BY ts_event"
	sql, args = applyLimit(sql, args, limit)

	rows, err := b.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query: QueryTrades: %w", err)
	}
	return rowsToMaps(rows)
}

// QueryTbbo returns top-of-book snapshots for symbols in [start, end).
func (b *Builder) QueryTbbo(ctx context.Context, symbols []string, start, end time.Time, limit int) ([]Row, error) {
	sql := `SELECT * FROM tbbo_data WHERE symbol = ANY($1) AND ts_event >= $2 AND ts_event < $3 ORDER BY ts_event`
	args := []any{symbols, start.UnixNano(), end.UnixNano()}
	sql, args = applyLimit(sql, args, limit)

	rows, err := b.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query: QueryTbbo: %w", err)
	}
	return rowsToMaps(rows)
}

// QueryStatistics returns statistics for symbols in [start, end),
// optionally filtered by stat_type.
func (b *Builder) QueryStatistics(ctx context.Context, symbols []string, start, end time.Time, statType int, limit int) ([]Row, error) {
	sql := `SELECT * FROM statistics_data WHERE symbol = ANY($1) AND ts_event >= $2 AND ts_event < $3`
	args := []any{symbols, start.UnixNano(), end.UnixNano()}
	if statType > 0 {
		sql += fmt.Sprintf(" AND stat_type = $%d", len(args)+1)
		args = append(args, statType)
	}
	sql += " ORDER BY ts_event"
	sql, args = applyLimit(sql, args, limit)

	rows, err := b.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query: QueryStatistics: %w", err)
	}
	return rowsToMaps(rows)
}

// QueryDefinitions returns instrument definitions for symbols whose
// ts_event falls in [start, end), optionally filtered by asset or
// exchange.
func (b *Builder) QueryDefinitions(ctx context.Context, symbols []string, start, end time.Time, asset, exchange string, limit int) ([]Row, error) {
	sql := `SELECT * FROM definitions_data WHERE symbol = ANY($1) AND ts_event >= $2 AND ts_event < $3`
	args := []any{symbols, start.UnixNano(), end.UnixNano()}
	if asset != "" {
		sql += fmt.Sprintf(" AND asset = $%d", len(args)+1)
		args = append(args, asset)
	}
	if exchange != "" {
		sql += fmt.Sprintf(" AND exchange = $%d", len(args)+1)
		args = append(args, exchange)
	}
	sql += " ORDER BY ts_event"
	sql, args = applyLimit(sql, args, limit)

	rows, err := b.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query: QueryDefinitions: %w", err)
	}
	return rowsToMaps(rows)
}

// GetAvailableSymbols lists distinct symbols, preferring the
// definitions table and falling back to scanning the daily OHLCV
// hypertable directly when definitions_data is absent.
func (b *Builder) GetAvailableSymbols(ctx context.Context, asset, exchange string, limit int) ([]string, error) {
	var sql string
	var args []any
	if b.hasDefinitionsTable(ctx) {
		sql = `SELECT DISTINCT symbol FROM definitions_data WHERE ($1 = '' OR asset = $1) AND ($2 = '' OR exchange = $2) ORDER BY symbol`
		args = []any{asset, exchange}
	} else {
		sql = `SELECT DISTINCT symbol FROM daily_ohlcv_data ORDER BY symbol`
	}
	sql, args = applyLimit(sql, args, limit)

	rows, err := b.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, &SymbolResolutionError{Err: err}
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("query: scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

func applyLimit(sql string, args []any, limit int) (string, []any) {
	if limit <= 0 {
		return sql, args
	}
	return sql + fmt.Sprintf(" LIMIT $%d", len(args)+1), append(args, limit)
}
