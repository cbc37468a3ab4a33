// Copyright (c) 2024 Neomantra Corp

package adapter

import (
	"fmt"
	"strings"

	"github.com/marketdata-eng/histfeed/models"
)

// RepairStats accumulates the symbol-field repair outcome for one chunk.
type RepairStats struct {
	Repaired     int
	FailedRepair int
}

// RepairSymbol fills in a record's missing `symbol` field, following the
// fixed resolution order: the job's sole symbol, the record's own
// raw_symbol, a best-effort guess among multiple job symbols, a
// synthesized INSTRUMENT_{id} placeholder, or finally UNKNOWN_SYMBOL.
// It returns any diagnostic produced by a best-effort or failed
// resolution; a nil diagnostic means the symbol was already present or
// was repaired without incident.
func RepairSymbol(d Dict, jobSymbols []string) *models.Diagnostic {
	if s, ok := d["symbol"].(string); ok && s != "" {
		return nil
	}

	// 1. Sole job symbol.
	if len(jobSymbols) == 1 {
		d["symbol"] = jobSymbols[0]
		return nil
	}

	// 2. Vendor raw_symbol.
	if raw, ok := d["raw_symbol"].(string); ok && raw != "" {
		d["symbol"] = raw
		return nil
	}

	// 3. Multiple job symbols + known instrument_id: best-effort guess.
	if len(jobSymbols) > 1 {
		if _, hasID := instrumentID(d); hasID {
			d["symbol"] = jobSymbols[0]
			diag := models.NewWarning("symbol", "best-effort symbol %q assigned from job symbol list", jobSymbols[0])
			return &diag
		}
	}

	// 4. Synthesize from instrument_id.
	if id, ok := instrumentID(d); ok {
		d["symbol"] = fmt.Sprintf("INSTRUMENT_%d", id)
		diag := models.NewWarning("symbol", "synthesized symbol from instrument_id %d", id)
		return &diag
	}

	// 5. No identifying information at all.
	d["symbol"] = "UNKNOWN_SYMBOL"
	diag := models.NewError("symbol", "no symbol, raw_symbol, or instrument_id available")
	return &diag
}

func instrumentID(d Dict) (uint32, bool) {
	switch v := d["instrument_id"].(type) {
	case uint32:
		return v, v != 0
	case uint64:
		return uint32(v), v != 0
	case int64:
		return uint32(v), v != 0
	case float64:
		return uint32(v), v != 0
	default:
		return 0, false
	}
}

// SanitizeStrings strips embedded NUL bytes from every string value in
// the dict; Postgres cannot store \x00 in a text column.
func SanitizeStrings(d Dict) {
	for k, v := range d {
		if s, ok := v.(string); ok {
			d[k] = strings.ReplaceAll(s, "\x00", "")
		}
	}
}
