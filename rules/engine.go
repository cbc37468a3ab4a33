// Copyright (c) 2024 Neomantra Corp

package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/marketdata-eng/histfeed/models"
	"github.com/marketdata-eng/histfeed/validate"
)

// RejectedRow is one row the validator rejected at ERROR severity,
// alongside the diagnostics that explain why.
type RejectedRow struct {
	Raw         map[string]any
	Diagnostics []models.Diagnostic
}

// Result is the Rule Engine's output for one batch: the rows that
// passed (WARNING/INFO rows included, their diagnostics carried
// separately in Diagnostics) and the rows rejected at ERROR severity.
type Result struct {
	Validated []models.Record
	Rejected  []RejectedRow
	// Diagnostics indexes non-error diagnostics by the row's position in
	// Validated, for callers that want to surface warnings without
	// rejecting the row.
	Diagnostics map[int][]models.Diagnostic
}

// Apply runs one batch of raw dicts through renames, transforms,
// defaults, nullable-integer normalization, and the per-schema
// validator, returning the validated records and the rejected rows.
func Apply(cfg *Config, schema models.Schema, batch []map[string]any) (Result, error) {
	schemaRules := cfg.ForSchema(schema)
	result := Result{Diagnostics: make(map[int][]models.Diagnostic)}

rows:
	for _, raw := range batch {
		row := cloneDict(raw)

		applyFieldMappings(row, schemaRules.FieldMappings)
		if err := applyTransformations(row, schemaRules.Transformations); err != nil {
			result.Rejected = append(result.Rejected, RejectedRow{
				Raw:         raw,
				Diagnostics: []models.Diagnostic{models.NewError("_transform", "%s", err.Error())},
			})
			continue
		}
		for _, cond := range schemaRules.ConditionalTransformations {
			if EvalPredicate(cond.When, row) {
				if err := applyTransformations(row, cond.Transformations); err != nil {
					result.Rejected = append(result.Rejected, RejectedRow{
						Raw:         raw,
						Diagnostics: []models.Diagnostic{models.NewError("_transform", "%s", err.Error())},
					})
					continue rows
				}
			}
		}
		applyDefaults(row, schemaRules.Defaults)

		if reqDiags := validate.CheckRequiredFields(schema, row); len(reqDiags) > 0 {
			result.Rejected = append(result.Rejected, RejectedRow{Raw: raw, Diagnostics: reqDiags})
			continue
		}
		if symbol, ok := row["symbol"].(string); ok {
			if diag := validate.ValidateSymbol(strings.ToUpper(symbol)); diag != nil {
				result.Rejected = append(result.Rejected, RejectedRow{Raw: raw, Diagnostics: []models.Diagnostic{*diag}})
				continue
			}
			row["symbol"] = strings.ToUpper(symbol)
		}

		record, err := decodeRecord(schema, row)
		if err != nil {
			result.Rejected = append(result.Rejected, RejectedRow{
				Raw:         raw,
				Diagnostics: []models.Diagnostic{models.NewError("_decode", "%s", err.Error())},
			})
			continue
		}

		diags := CheckInvariants(record)
		if models.HasError(diags) {
			result.Rejected = append(result.Rejected, RejectedRow{Raw: raw, Diagnostics: diags})
			continue
		}

		result.Diagnostics[len(result.Validated)] = diags
		result.Validated = append(result.Validated, record)
	}
	return result, nil
}

func cloneDict(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func applyFieldMappings(row map[string]any, mappings map[string]string) {
	for from, to := range mappings {
		if v, ok := row[from]; ok {
			row[to] = v
			delete(row, from)
		}
	}
}

func applyDefaults(row map[string]any, defaults map[string]any) {
	for field, value := range defaults {
		if _, ok := row[field]; !ok {
			row[field] = value
		}
	}
}

// applyTransformations runs each declared transform in order against row.
func applyTransformations(row map[string]any, transforms []Transformation) error {
	for _, t := range transforms {
		switch t.Kind {
		case "decimal_conversion":
			if err := transformDecimal(row, t); err != nil {
				return err
			}
		case "datetime_conversion":
			// Timestamps already arrive as vendor nanosecond integers from
			// the adapter; nothing to convert by default. A config entry
			// is accepted (and is a no-op) so schema configs can declare
			// the intent without the engine erroring on an unknown field.
		case "symbol_normalization":
			transformSymbolNormalization(row, t)
		case "calculated_field":
			if err := transformCalculatedField(row, t); err != nil {
				return err
			}
		case "rule":
			if err := transformRule(row, t); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown transformation kind %q", t.Kind)
		}
	}
	return nil
}

// transformDecimal rescales a float field into the fixed-point int64
// representation used by models, multiplying by params scaling_factor
// (defaults to models.PriceScale). No other param is read; a precision
// param is ignored.
func transformDecimal(row map[string]any, t Transformation) error {
	v, ok := row[t.Field]
	if !ok {
		return nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return fmt.Errorf("decimal_conversion %s: %w", t.Field, err)
	}
	scale := models.PriceScale
	if s, ok := t.Params["scaling_factor"]; ok {
		if sf, err := toFloat64(s); err == nil {
			scale = sf
		}
	}
	row[t.Field] = int64(f * scale)
	return nil
}

func transformSymbolNormalization(row map[string]any, t Transformation) {
	v, ok := row[t.Field].(string)
	if !ok {
		return
	}
	from, _ := t.Params["from"].(string)
	to, _ := t.Params["to"].(string)
	if from != "" {
		v = strings.ReplaceAll(v, from, to)
	}
	row[t.Field] = strings.ToUpper(v)
}

// transformCalculatedField derives row[t.Field] by summing the fields
// listed in params["inputs"], or averaging them when params["op"] is
// "average" (e.g. mid = (bid_px + ask_px) / 2).
func transformCalculatedField(row map[string]any, t Transformation) error {
	inputsAny, ok := t.Params["inputs"].([]any)
	if !ok || len(inputsAny) == 0 {
		return fmt.Errorf("calculated_field %s: missing inputs", t.Field)
	}
	var sum float64
	for _, in := range inputsAny {
		name, ok := in.(string)
		if !ok {
			continue
		}
		v, ok := row[name]
		if !ok {
			return nil // missing input: leave the calculated field unset
		}
		f, err := toFloat64(v)
		if err != nil {
			return fmt.Errorf("calculated_field %s: input %s: %w", t.Field, name, err)
		}
		sum += f
	}
	if op, _ := t.Params["op"].(string); op == "average" {
		sum /= float64(len(inputsAny))
	}
	row[t.Field] = sum
	return nil
}

// transformRule enforces a predicate like "value > 0" or
// "high_price >= low_price", rejecting the row with an error when it
// fails.
func transformRule(row map[string]any, t Transformation) error {
	expr, _ := t.Params["expr"].(string)
	if expr == "" {
		return nil
	}
	if !EvalPredicate(expr, row) {
		return fmt.Errorf("rule failed: %s", expr)
	}
	return nil
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", v)
	}
}

// decodeRecord maps a normalized dict into the row type for schema using
// mapstructure, with nullable-integer normalization applied first.
func decodeRecord(schema models.Schema, row map[string]any) (models.Record, error) {
	normalizeNullableInts(schema, row)

	decoderConfig := func(result any) (*mapstructure.Decoder, error) {
		return mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:          "db",
			WeaklyTypedInput: true,
			Result:           result,
		})
	}

	switch {
	case schema.IsOhlcv():
		var out models.OhlcvRow
		dec, err := decoderConfig(&out)
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(row); err != nil {
			return nil, err
		}
		return &out, nil
	case schema == models.SchemaTrades:
		var out models.TradeRow
		dec, err := decoderConfig(&out)
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(row); err != nil {
			return nil, err
		}
		return &out, nil
	case schema == models.SchemaTbbo:
		var out models.TbboRow
		dec, err := decoderConfig(&out)
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(row); err != nil {
			return nil, err
		}
		return &out, nil
	case schema == models.SchemaStatistics:
		var out models.StatisticsRow
		dec, err := decoderConfig(&out)
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(row); err != nil {
			return nil, err
		}
		return &out, nil
	case schema == models.SchemaDefinition:
		var out models.DefinitionRow
		dec, err := decoderConfig(&out)
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(row); err != nil {
			return nil, err
		}
		return &out, nil
	default:
		return nil, fmt.Errorf("unrecognized schema %q", schema)
	}
}

// nullableIntFields lists, per schema, the fields that must decode to
// models.NullInt64 even when the source dict carries a bare nil or is
// missing the key entirely — mapstructure only calls a custom decode
// hook when a source value is present, so absent keys are seeded here.
var nullableIntFields = map[models.Schema][]string{
	models.SchemaTrades:     {"sequence", "ts_in_delta"},
	models.SchemaTbbo:       {"bid_px", "ask_px", "bid_sz", "ask_sz", "bid_ct", "ask_ct", "sequence", "flags"},
	models.SchemaStatistics: {"stat_value", "quantity"},
	models.SchemaDefinition: {"strike_price", "leg_index"},
}

func normalizeNullableInts(schema models.Schema, row map[string]any) {
	for _, field := range nullableIntFields[schema] {
		v, present := row[field]
		if !present || v == nil {
			row[field] = models.NullInt64{}
			continue
		}
		if f, err := toFloat64(v); err == nil {
			row[field] = models.NewNullInt64(int64(f))
		}
	}
	if schema.IsOhlcv() {
		for _, field := range []string{"trade_count"} {
			v, present := row[field]
			if !present || v == nil {
				row[field] = models.NullInt64{}
			} else if f, err := toFloat64(v); err == nil {
				row[field] = models.NewNullInt64(int64(f))
			}
		}
		if v, present := row["vwap"]; present && v != nil {
			if f, err := toFloat64(v); err == nil {
				row["vwap"] = models.NewNullFloat64(f)
			}
		} else {
			row["vwap"] = models.NullFloat64{}
		}
	}
}

// defaultMaxSpreadBps is the wide-spread WARNING threshold CheckInvariants
// applies to every TBBO row.
const defaultMaxSpreadBps = 500.0

// CheckInvariants dispatches to the row type's own invariant checker.
func CheckInvariants(record models.Record) []models.Diagnostic {
	switch r := record.(type) {
	case *models.OhlcvRow:
		return r.CheckInvariants()
	case *models.TradeRow:
		return r.CheckInvariants(false)
	case *models.TbboRow:
		diags := r.CheckInvariants()
		if diag := validate.CheckWideSpread(r, defaultMaxSpreadBps); diag != nil {
			diags = append(diags, *diag)
		}
		return diags
	case *models.StatisticsRow:
		return r.CheckInvariants()
	case *models.DefinitionRow:
		return r.CheckInvariants()
	default:
		return nil
	}
}
