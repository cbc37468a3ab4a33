// Copyright (c) 2024 Neomantra Corp

package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marketdata-eng/histfeed/models"
)

var statisticsColumns = []string{
	"ts_event", "ts_recv", "ts_ref", "publisher_id", "instrument_id", "symbol",
	"stat_type", "stat_value", "quantity", "sequence", "ts_in_delta",
	"channel_id", "update_action", "stat_flags",
}

// StatisticsLoader loads StatisticsRow batches into statistics_data,
// keyed by (instrument_id, stat_type, ts_event); a conflicting row has
// its value and flags updated.
type StatisticsLoader struct {
	pool *pgxpool.Pool
}

func NewStatisticsLoader(pool *pgxpool.Pool) *StatisticsLoader {
	return &StatisticsLoader{pool: pool}
}

func (l *StatisticsLoader) EnsureSchema(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS statistics_data (
	ts_event      BIGINT NOT NULL,
	ts_recv       BIGINT NOT NULL,
	ts_ref        BIGINT NOT NULL,
	publisher_id  INT    NOT NULL,
	instrument_id INT    NOT NULL,
	symbol        TEXT   NOT NULL,
	stat_type     SMALLINT NOT NULL,
	stat_value    BIGINT,
	quantity      BIGINT,
	sequence      INT    NOT NULL,
	ts_in_delta   INT    NOT NULL,
	channel_id    INT    NOT NULL,
	update_action SMALLINT NOT NULL,
	stat_flags    SMALLINT NOT NULL,
	PRIMARY KEY (instrument_id, stat_type, ts_event)
)`)
	if err != nil {
		return fmt.Errorf("storage: create statistics_data: %w", err)
	}
	if _, err := l.pool.Exec(ctx, createHypertableSQL("statistics_data", "ts_event")); err != nil {
		return fmt.Errorf("storage: create_hypertable statistics_data: %w", err)
	}
	return nil
}

func (l *StatisticsLoader) LoadBatch(ctx context.Context, records []models.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `CREATE TEMP TABLE statistics_stage (LIKE statistics_data) ON COMMIT DROP`); err != nil {
		return 0, fmt.Errorf("storage: create staging table: %w", err)
	}

	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		row, ok := rec.(*models.StatisticsRow)
		if !ok {
			return 0, fmt.Errorf("storage: StatisticsLoader received non-statistics record %T", rec)
		}
		rows = append(rows, []any{
			row.TsEvent, row.TsRecv, row.TsRef, row.PublisherID, row.InstrumentID, row.Symbol,
			row.StatType, nullInt(row.StatValue), nullInt(row.Quantity), row.Sequence, row.TsInDelta,
			row.ChannelID, row.UpdateAction, row.StatFlags,
		})
	}

	if _, err := copyInto(ctx, tx, "statistics_stage", statisticsColumns, rows); err != nil {
		return 0, fmt.Errorf("storage: copy into staging: %w", err)
	}

	tag, err := tx.Exec(ctx, `
INSERT INTO statistics_data (ts_event, ts_recv, ts_ref, publisher_id, instrument_id, symbol, stat_type, stat_value, quantity, sequence, ts_in_delta, channel_id, update_action, stat_flags)
SELECT ts_event, ts_recv, ts_ref, publisher_id, instrument_id, symbol, stat_type, stat_value, quantity, sequence, ts_in_delta, channel_id, update_action, stat_flags FROM statistics_stage
ON CONFLICT (instrument_id, stat_type, ts_event) DO UPDATE SET
	stat_value = EXCLUDED.stat_value,
	quantity = EXCLUDED.quantity,
	stat_flags = EXCLUDED.stat_flags,
	update_action = EXCLUDED.update_action`)
	if err != nil {
		return 0, fmt.Errorf("storage: upsert from staging: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("storage: commit: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

var _ Loader = (*StatisticsLoader)(nil)
