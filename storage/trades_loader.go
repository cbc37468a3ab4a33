// Copyright (c) 2024 Neomantra Corp

package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marketdata-eng/histfeed/models"
)

var tradesColumns = []string{
	"ts_event", "ts_recv", "publisher_id", "instrument_id", "symbol",
	"price", "size", "action", "side", "flags", "depth", "sequence", "ts_in_delta",
}

// TradesLoader loads TradeRow batches into trades_data. sequence is
// optional per the vendor feed, so it cannot sit in a PRIMARY KEY
// (Postgres would force it NOT NULL and a batch with even one
// sequence-less trade would abort entirely). Dedup instead goes through
// a unique index over the business key with sequence folded through
// COALESCE, and ON CONFLICT DO NOTHING against that same expression
// keeps re-running a chunk idempotent without mutating any existing
// row.
type TradesLoader struct {
	pool *pgxpool.Pool
}

func NewTradesLoader(pool *pgxpool.Pool) *TradesLoader {
	return &TradesLoader{pool: pool}
}

func (l *TradesLoader) EnsureSchema(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS trades_data (
	ts_event      BIGINT NOT NULL,
	ts_recv       BIGINT NOT NULL,
	publisher_id  INT    NOT NULL,
	instrument_id INT    NOT NULL,
	symbol        TEXT   NOT NULL,
	price         BIGINT NOT NULL,
	size          INT    NOT NULL,
	action        CHAR(1) NOT NULL,
	side          CHAR(1) NOT NULL,
	flags         SMALLINT NOT NULL,
	depth         SMALLINT NOT NULL,
	sequence      BIGINT,
	ts_in_delta   BIGINT
)`)
	if err != nil {
		return fmt.Errorf("storage: create trades_data: %w", err)
	}
	if _, err := l.pool.Exec(ctx, createHypertableSQL("trades_data", "ts_event")); err != nil {
		return fmt.Errorf("storage: create_hypertable trades_data: %w", err)
	}
	if _, err := l.pool.Exec(ctx, `
CREATE UNIQUE INDEX IF NOT EXISTS trades_data_dedupe_idx
	ON trades_data (instrument_id, ts_event, price, size, side, COALESCE(sequence, -1))`); err != nil {
		return fmt.Errorf("storage: create trades_data dedupe index: %w", err)
	}
	return nil
}

func (l *TradesLoader) LoadBatch(ctx context.Context, records []models.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `CREATE TEMP TABLE trades_stage (LIKE trades_data) ON COMMIT DROP`); err != nil {
		return 0, fmt.Errorf("storage: create staging table: %w", err)
	}

	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		row, ok := rec.(*models.TradeRow)
		if !ok {
			return 0, fmt.Errorf("storage: TradesLoader received non-trade record %T", rec)
		}
		var sequence, tsInDelta any
		if v, ok := row.Sequence.Get(); ok {
			sequence = v
		}
		if v, ok := row.TsInDelta.Get(); ok {
			tsInDelta = v
		}
		rows = append(rows, []any{
			row.TsEvent, row.TsRecv, row.PublisherID, row.InstrumentID, row.Symbol,
			row.Price, row.Size, string(row.Action), string(row.Side), row.Flags, row.Depth,
			sequence, tsInDelta,
		})
	}

	if _, err := copyInto(ctx, tx, "trades_stage", tradesColumns, rows); err != nil {
		return 0, fmt.Errorf("storage: copy into staging: %w", err)
	}

	tag, err := tx.Exec(ctx, `
INSERT INTO trades_data (ts_event, ts_recv, publisher_id, instrument_id, symbol, price, size, action, side, flags, depth, sequence, ts_in_delta)
SELECT ts_event, ts_recv, publisher_id, instrument_id, symbol, price, size, action, side, flags, depth, sequence, ts_in_delta FROM trades_stage
ON CONFLICT (instrument_id, ts_event, price, size, side, COALESCE(sequence, -1)) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("storage: insert from staging: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("storage: commit: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

var _ Loader = (*TradesLoader)(nil)
