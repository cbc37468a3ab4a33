// Copyright (c) 2024 Neomantra Corp

package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marketdata-eng/histfeed/models"
)

var tbboColumns = []string{
	"ts_event", "ts_recv", "publisher_id", "instrument_id", "symbol",
	"bid_px", "ask_px", "bid_sz", "ask_sz", "bid_ct", "ask_ct", "sequence", "flags", "crossed",
}

// TbboLoader loads TbboRow batches into tbbo_data with the same
// COALESCE-sentinel dedupe rationale as TradesLoader: sequence is
// optional, so it lives in a unique index rather than the primary key.
type TbboLoader struct {
	pool *pgxpool.Pool
}

func NewTbboLoader(pool *pgxpool.Pool) *TbboLoader {
	return &TbboLoader{pool: pool}
}

func (l *TbboLoader) EnsureSchema(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tbbo_data (
	ts_event      BIGINT NOT NULL,
	ts_recv       BIGINT NOT NULL,
	publisher_id  INT    NOT NULL,
	instrument_id INT    NOT NULL,
	symbol        TEXT   NOT NULL,
	bid_px        BIGINT,
	ask_px        BIGINT,
	bid_sz        BIGINT,
	ask_sz        BIGINT,
	bid_ct        BIGINT,
	ask_ct        BIGINT,
	sequence      BIGINT,
	flags         BIGINT,
	crossed       BOOLEAN NOT NULL DEFAULT FALSE
)`)
	if err != nil {
		return fmt.Errorf("storage: create tbbo_data: %w", err)
	}
	if _, err := l.pool.Exec(ctx, createHypertableSQL("tbbo_data", "ts_event")); err != nil {
		return fmt.Errorf("storage: create_hypertable tbbo_data: %w", err)
	}
	if _, err := l.pool.Exec(ctx, `
CREATE UNIQUE INDEX IF NOT EXISTS tbbo_data_dedupe_idx
	ON tbbo_data (instrument_id, ts_event, COALESCE(sequence, -1))`); err != nil {
		return fmt.Errorf("storage: create tbbo_data dedupe index: %w", err)
	}
	return nil
}

func (l *TbboLoader) LoadBatch(ctx context.Context, records []models.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `CREATE TEMP TABLE tbbo_stage (LIKE tbbo_data) ON COMMIT DROP`); err != nil {
		return 0, fmt.Errorf("storage: create staging table: %w", err)
	}

	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		row, ok := rec.(*models.TbboRow)
		if !ok {
			return 0, fmt.Errorf("storage: TbboLoader received non-tbbo record %T", rec)
		}
		rows = append(rows, []any{
			row.TsEvent, row.TsRecv, row.PublisherID, row.InstrumentID, row.Symbol,
			nullInt(row.BidPx), nullInt(row.AskPx), nullInt(row.BidSz), nullInt(row.AskSz),
			nullInt(row.BidCt), nullInt(row.AskCt), nullInt(row.Sequence), nullInt(row.Flags), row.Crossed,
		})
	}

	if _, err := copyInto(ctx, tx, "tbbo_stage", tbboColumns, rows); err != nil {
		return 0, fmt.Errorf("storage: copy into staging: %w", err)
	}

	tag, err := tx.Exec(ctx, `
INSERT INTO tbbo_data (ts_event, ts_recv, publisher_id, instrument_id, symbol, bid_px, ask_px, bid_sz, ask_sz, bid_ct, ask_ct, sequence, flags, crossed)
SELECT ts_event, ts_recv, publisher_id, instrument_id, symbol, bid_px, ask_px, bid_sz, ask_sz, bid_ct, ask_ct, sequence, flags, crossed FROM tbbo_stage
ON CONFLICT (instrument_id, ts_event, COALESCE(sequence, -1)) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("storage: insert from staging: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("storage: commit: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func nullInt(n models.NullInt64) any {
	if v, ok := n.Get(); ok {
		return v
	}
	return nil
}

var _ Loader = (*TbboLoader)(nil)
