// Copyright (c) 2024 Neomantra Corp

// Package validate implements per-schema tabular validation: required
// field presence and symbol format, on top of the business-rule checks
// each models.*Row already carries as CheckInvariants.
package validate

import (
	"fmt"
	"regexp"

	"github.com/marketdata-eng/histfeed/models"
)

// symbolPattern is the uppercase financial-instrument symbol format.
var symbolPattern = regexp.MustCompile(`^[A-Z0-9._-]+$`)

// ValidateSymbol checks a row's symbol against the accepted format.
func ValidateSymbol(symbol string) *models.Diagnostic {
	if symbol == "" {
		d := models.NewError("symbol", "symbol is required")
		return &d
	}
	if !symbolPattern.MatchString(symbol) {
		d := models.NewError("symbol", "symbol %q does not match [A-Z0-9._-]+", symbol)
		return &d
	}
	return nil
}

// requiredFields lists, per schema, the dict keys that must be present
// (non-nil) before the Rule Engine attempts to decode the row into its
// typed model. Optional/nullable fields are deliberately absent here;
// their presence is governed by nullableIntFields in the rule engine.
var requiredFields = map[models.Schema][]string{
	models.SchemaOhlcv1S:    {"ts_event", "instrument_id", "open_price", "high_price", "low_price", "close_price", "volume"},
	models.SchemaOhlcv1M:    {"ts_event", "instrument_id", "open_price", "high_price", "low_price", "close_price", "volume"},
	models.SchemaOhlcv5M:    {"ts_event", "instrument_id", "open_price", "high_price", "low_price", "close_price", "volume"},
	models.SchemaOhlcv15M:   {"ts_event", "instrument_id", "open_price", "high_price", "low_price", "close_price", "volume"},
	models.SchemaOhlcv1H:    {"ts_event", "instrument_id", "open_price", "high_price", "low_price", "close_price", "volume"},
	models.SchemaOhlcv1D:    {"ts_event", "instrument_id", "open_price", "high_price", "low_price", "close_price", "volume"},
	models.SchemaTrades:     {"ts_event", "ts_recv", "instrument_id", "price", "size", "action", "side"},
	models.SchemaTbbo:       {"ts_event", "ts_recv", "instrument_id"},
	models.SchemaStatistics: {"ts_event", "ts_recv", "instrument_id", "stat_type", "sequence"},
	models.SchemaDefinition: {"ts_event", "instrument_id", "raw_symbol", "asset", "exchange"},
}

// RequiredFields returns the dict keys a row for schema must carry.
func RequiredFields(schema models.Schema) []string {
	return requiredFields[schema]
}

// CheckRequiredFields reports an ERROR diagnostic for every required
// field absent or nil in row.
func CheckRequiredFields(schema models.Schema, row map[string]any) []models.Diagnostic {
	var diags []models.Diagnostic
	for _, field := range requiredFields[schema] {
		if v, ok := row[field]; !ok || v == nil {
			diags = append(diags, models.NewError(field, "required field missing"))
		}
	}
	return diags
}

// CheckWideSpread flags a TBBO row whose bid/ask spread exceeds
// maxSpreadBps basis points of the mid price with a WARNING, per the
// validator's "unusually wide spread" example check.
func CheckWideSpread(row *models.TbboRow, maxSpreadBps float64) *models.Diagnostic {
	bid, hasBid := row.BidPx.Get()
	ask, hasAsk := row.AskPx.Get()
	if !hasBid || !hasAsk || bid <= 0 {
		return nil
	}
	mid := float64(bid+ask) / 2
	spreadBps := float64(ask-bid) / mid * 10000
	if spreadBps > maxSpreadBps {
		d := models.NewWarning("bid_px/ask_px", "spread %.1fbps exceeds %.1fbps", spreadBps, maxSpreadBps)
		return &d
	}
	return nil
}

// CoerceError is returned when a dict value cannot be coerced to the
// type its target model field requires.
type CoerceError struct {
	Field string
	Value any
}

func (e CoerceError) Error() string {
	return fmt.Sprintf("field %q: value %v (%T) not coercible", e.Field, e.Value, e.Value)
}
