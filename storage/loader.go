// Copyright (c) 2024 Neomantra Corp

package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marketdata-eng/histfeed/models"
)

// Loader is the capability set every storage loader provides: idempotent
// DDL on first use, and batched, transactional loading of validated rows.
type Loader interface {
	// EnsureSchema creates the loader's table and hypertable if they do
	// not already exist. It is safe to call repeatedly.
	EnsureSchema(ctx context.Context) error

	// LoadBatch writes rows inside one transaction, applying the
	// schema's conflict policy. Returns the number of rows written.
	LoadBatch(ctx context.Context, rows []models.Record) (int, error)
}

// BatchSize returns the target batch row count for schema, per the
// loaders' sizing table.
func BatchSize(schema models.Schema) int {
	switch {
	case schema.IsOhlcv():
		return 5000
	case schema == models.SchemaTrades:
		return 10000
	case schema == models.SchemaTbbo:
		return 15000
	case schema == models.SchemaStatistics:
		return 1000
	case schema == models.SchemaDefinition:
		return 100
	default:
		return 1000
	}
}

// PreLoadSetup disables autovacuum on tbl for the duration of a bulk
// load; callers must pair it with PostLoadCleanup.
func PreLoadSetup(ctx context.Context, pool *pgxpool.Pool, tbl string) error {
	_, err := pool.Exec(ctx, fmt.Sprintf(`ALTER TABLE %s SET (autovacuum_enabled = FALSE)`, tbl))
	if err != nil {
		return fmt.Errorf("storage: disable autovacuum on %s: %w", tbl, err)
	}
	return nil
}

// PostLoadCleanup re-enables autovacuum and runs ANALYZE on tbl after a
// bulk load finishes.
func PostLoadCleanup(ctx context.Context, pool *pgxpool.Pool, tbl string) error {
	if _, err := pool.Exec(ctx, fmt.Sprintf(`ALTER TABLE %s RESET (autovacuum_enabled)`, tbl)); err != nil {
		return fmt.Errorf("storage: re-enable autovacuum on %s: %w", tbl, err)
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf(`ANALYZE %s`, tbl)); err != nil {
		return fmt.Errorf("storage: analyze %s: %w", tbl, err)
	}
	return nil
}

// copyInto bulk-loads rows into a staging table via the binary COPY
// protocol, inside the given transaction.
func copyInto(ctx context.Context, tx pgx.Tx, table string, columns []string, rows [][]any) (int64, error) {
	return tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
}

func createHypertableSQL(table, timeColumn string) string {
	return fmt.Sprintf(
		`SELECT create_hypertable('%s', by_range('%s'), if_not_exists => TRUE)`,
		table, timeColumn,
	)
}
