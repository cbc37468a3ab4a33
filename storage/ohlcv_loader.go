// Copyright (c) 2024 Neomantra Corp

package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marketdata-eng/histfeed/models"
)

// ohlcvColumns is the column list shared by daily_ohlcv_data and its
// staging table, in COPY order.
var ohlcvColumns = []string{
	"ts_event", "instrument_id", "symbol", "open_price", "high_price",
	"low_price", "close_price", "volume", "trade_count", "vwap",
	"granularity", "data_source",
}

// OhlcvLoader loads OhlcvRow batches into daily_ohlcv_data, keyed by
// (ts_event, instrument_id, granularity, data_source); a conflicting row
// has its OHLC/volume/symbol fields updated in place.
type OhlcvLoader struct {
	pool *pgxpool.Pool
}

func NewOhlcvLoader(pool *pgxpool.Pool) *OhlcvLoader {
	return &OhlcvLoader{pool: pool}
}

func (l *OhlcvLoader) EnsureSchema(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS daily_ohlcv_data (
	ts_event      BIGINT      NOT NULL,
	instrument_id INT         NOT NULL,
	symbol        TEXT        NOT NULL,
	open_price    BIGINT      NOT NULL,
	high_price    BIGINT      NOT NULL,
	low_price     BIGINT      NOT NULL,
	close_price   BIGINT      NOT NULL,
	volume        BIGINT      NOT NULL,
	trade_count   BIGINT,
	vwap          DOUBLE PRECISION,
	granularity   TEXT        NOT NULL,
	data_source   TEXT        NOT NULL,
	PRIMARY KEY (ts_event, instrument_id, granularity, data_source)
)`)
	if err != nil {
		return fmt.Errorf("storage: create daily_ohlcv_data: %w", err)
	}
	if _, err := l.pool.Exec(ctx, createHypertableSQL("daily_ohlcv_data", "ts_event")); err != nil {
		return fmt.Errorf("storage: create_hypertable daily_ohlcv_data: %w", err)
	}
	return nil
}

func (l *OhlcvLoader) LoadBatch(ctx context.Context, records []models.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `CREATE TEMP TABLE daily_ohlcv_stage (LIKE daily_ohlcv_data) ON COMMIT DROP`); err != nil {
		return 0, fmt.Errorf("storage: create staging table: %w", err)
	}

	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		row, ok := rec.(*models.OhlcvRow)
		if !ok {
			return 0, fmt.Errorf("storage: OhlcvLoader received non-OHLCV record %T", rec)
		}
		var tradeCount any
		if v, ok := row.TradeCount.Get(); ok {
			tradeCount = v
		}
		var vwap any
		if v, ok := row.Vwap.Get(); ok {
			vwap = v
		}
		rows = append(rows, []any{
			row.TsEvent, row.InstrumentID, row.Symbol, row.OpenPrice, row.HighPrice,
			row.LowPrice, row.ClosePrice, row.Volume, tradeCount, vwap,
			row.Granularity, row.DataSource,
		})
	}

	if _, err := copyInto(ctx, tx, "daily_ohlcv_stage", ohlcvColumns, rows); err != nil {
		return 0, fmt.Errorf("storage: copy into staging: %w", err)
	}

	tag, err := tx.Exec(ctx, `
INSERT INTO daily_ohlcv_data (ts_event, instrument_id, symbol, open_price, high_price, low_price, close_price, volume, trade_count, vwap, granularity, data_source)
SELECT ts_event, instrument_id, symbol, open_price, high_price, low_price, close_price, volume, trade_count, vwap, granularity, data_source FROM daily_ohlcv_stage
ON CONFLICT (ts_event, instrument_id, granularity, data_source) DO UPDATE SET
	symbol = EXCLUDED.symbol,
	open_price = EXCLUDED.open_price,
	high_price = EXCLUDED.high_price,
	low_price = EXCLUDED.low_price,
	close_price = EXCLUDED.close_price,
	volume = EXCLUDED.volume,
	trade_count = EXCLUDED.trade_count,
	vwap = EXCLUDED.vwap`)
	if err != nil {
		return 0, fmt.Errorf("storage: upsert from staging: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("storage: commit: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

var _ Loader = (*OhlcvLoader)(nil)
