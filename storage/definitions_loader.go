// Copyright (c) 2024 Neomantra Corp

package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marketdata-eng/histfeed/models"
)

var definitionsColumns = []string{
	"ts_event", "instrument_id", "symbol", "raw_symbol", "instrument_class",
	"asset", "exchange", "currency", "settl_currency", "security_type", "inst_group", "cfi",
	"activation", "expiration", "min_price_increment", "display_factor", "high_limit_price",
	"low_limit_price", "max_price_variation", "unit_of_measure_qty", "min_lot_size_round",
	"min_lot_size_block", "contract_multiplier", "strike_price", "put_or_call", "underlying",
	"leg_count", "leg_index", "user_defined_instrument",
}

// DefinitionsLoader loads DefinitionRow batches into definitions_data,
// keyed by (instrument_id, ts_event); a conflicting row is fully updated
// since a new definition supersedes the old point-in-time snapshot.
type DefinitionsLoader struct {
	pool *pgxpool.Pool
}

func NewDefinitionsLoader(pool *pgxpool.Pool) *DefinitionsLoader {
	return &DefinitionsLoader{pool: pool}
}

func (l *DefinitionsLoader) EnsureSchema(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS definitions_data (
	ts_event                BIGINT  NOT NULL,
	instrument_id           INT     NOT NULL,
	symbol                  TEXT    NOT NULL,
	raw_symbol              TEXT    NOT NULL,
	instrument_class        CHAR(1) NOT NULL,
	asset                   TEXT    NOT NULL,
	exchange                TEXT    NOT NULL,
	currency                TEXT    NOT NULL,
	settl_currency          TEXT    NOT NULL,
	security_type           TEXT    NOT NULL,
	inst_group              TEXT    NOT NULL,
	cfi                     TEXT    NOT NULL,
	activation              BIGINT  NOT NULL,
	expiration              BIGINT  NOT NULL,
	min_price_increment     BIGINT  NOT NULL,
	display_factor          BIGINT  NOT NULL,
	high_limit_price        BIGINT  NOT NULL,
	low_limit_price         BIGINT  NOT NULL,
	max_price_variation     BIGINT  NOT NULL,
	unit_of_measure_qty     BIGINT  NOT NULL,
	min_lot_size_round      INT     NOT NULL,
	min_lot_size_block      INT     NOT NULL,
	contract_multiplier     INT     NOT NULL,
	strike_price            BIGINT,
	put_or_call             TEXT,
	underlying              TEXT,
	leg_count               INT     NOT NULL,
	leg_index               INT,
	user_defined_instrument BOOLEAN NOT NULL,
	PRIMARY KEY (instrument_id, ts_event)
)`)
	if err != nil {
		return fmt.Errorf("storage: create definitions_data: %w", err)
	}
	if _, err := l.pool.Exec(ctx, createHypertableSQL("definitions_data", "ts_event")); err != nil {
		return fmt.Errorf("storage: create_hypertable definitions_data: %w", err)
	}
	return nil
}

func (l *DefinitionsLoader) LoadBatch(ctx context.Context, records []models.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `CREATE TEMP TABLE definitions_stage (LIKE definitions_data) ON COMMIT DROP`); err != nil {
		return 0, fmt.Errorf("storage: create staging table: %w", err)
	}

	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		row, ok := rec.(*models.DefinitionRow)
		if !ok {
			return 0, fmt.Errorf("storage: DefinitionsLoader received non-definition record %T", rec)
		}
		rows = append(rows, []any{
			row.TsEvent, row.InstrumentID, row.Symbol, row.RawSymbol, string(row.InstrumentClass),
			row.Asset, row.Exchange, row.Currency, row.SettlCurrency, row.SecurityType, row.Group, row.Cfi,
			row.Activation, row.Expiration, row.MinPriceIncrement, row.DisplayFactor, row.HighLimitPrice,
			row.LowLimitPrice, row.MaxPriceVariation, row.UnitOfMeasureQty, row.MinLotSizeRound,
			row.MinLotSizeBlock, row.ContractMultiplier, nullInt(row.StrikePrice), nullString(row.PutOrCall),
			nullString(row.Underlying), row.LegCount, nullInt(row.LegIndex), row.UserDefinedInstrument,
		})
	}

	if _, err := copyInto(ctx, tx, "definitions_stage", definitionsColumns, rows); err != nil {
		return 0, fmt.Errorf("storage: copy into staging: %w", err)
	}

	tag, err := tx.Exec(ctx, fmt.Sprintf(`
INSERT INTO definitions_data (%s)
SELECT %s FROM definitions_stage
ON CONFLICT (instrument_id, ts_event) DO UPDATE SET %s`,
		columnList(definitionsColumns),
		columnList(definitionsColumns),
		updateAssignments(definitionsColumns, []string{"instrument_id", "ts_event"}),
	))
	if err != nil {
		return 0, fmt.Errorf("storage: upsert from staging: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("storage: commit: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func columnList(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

func updateAssignments(cols []string, pkCols []string) string {
	isPK := make(map[string]bool, len(pkCols))
	for _, c := range pkCols {
		isPK[c] = true
	}
	out := ""
	first := true
	for _, c := range cols {
		if isPK[c] {
			continue
		}
		if !first {
			out += ", "
		}
		out += fmt.Sprintf("%s = EXCLUDED.%s", c, c)
		first = false
	}
	return out
}

var _ Loader = (*DefinitionsLoader)(nil)
