// Copyright (c) 2024 Neomantra Corp

package adapter

import (
	"bufio"
	"bytes"
	"context"
	"fmt"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/valyala/fastjson"

	dbn "github.com/marketdata-eng/histfeed"
	hist "github.com/marketdata-eng/histfeed/hist"
	"github.com/marketdata-eng/histfeed/models"
)

// fieldRenames maps a Databento wire field name to the internal Dict key
// expected downstream, for the top-of-book "00" level suffixes. The
// statistics-only price -> stat_value rename is applied in FetchChunk.
var fieldRenames = map[string]string{
	"bid_px_00":  "bid_px",
	"ask_px_00":  "ask_px",
	"bid_sz_00":  "bid_sz",
	"ask_sz_00":  "ask_sz",
	"bid_ct_00":  "bid_ct",
	"ask_ct_00":  "ask_ct",
}

// DatabentoAdapter is the reference Adapter implementation against the
// Databento historical API, built on the kept hist client.
type DatabentoAdapter struct {
	apiKey     string
	httpClient *retryablehttp.Client
}

// NewDatabentoAdapter constructs a DatabentoAdapter for the given API key.
// The adapter's vendor calls go through hist.ListPublishers and
// hist.GetRange, which send each request once on their own http.Client;
// the retryable client held here is not used for those calls, so they
// are not retried, backed off, or paced by Retry-After. Close releases
// this client's idle connections.
func NewDatabentoAdapter(apiKey string) *DatabentoAdapter {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil
	return &DatabentoAdapter{
		apiKey:     apiKey,
		httpClient: client,
	}
}

// Configure validates the adapter has credentials and can reach the
// vendor's publisher metadata endpoint.
func (a *DatabentoAdapter) Configure(ctx context.Context) error {
	if a.apiKey == "" {
		return fmt.Errorf("databento adapter: missing API key")
	}
	if _, err := hist.ListPublishers(a.apiKey); err != nil {
		return fmt.Errorf("databento adapter: configure check failed: %w", err)
	}
	return nil
}

// IterateChunks splits the job's date range using the schema's default
// chunk width, or the job's override when set.
func (a *DatabentoAdapter) IterateChunks(job ChunkRequest) ([]Chunk, error) {
	if _, err := dbn.DatasetFromString(job.Dataset); err != nil {
		return nil, fmt.Errorf("databento adapter: unrecognized dataset %q: %w", job.Dataset, err)
	}
	if job.EndDate.Before(job.StartDate) || job.EndDate.Equal(job.StartDate) {
		return nil, fmt.Errorf("databento adapter: end_date must be after start_date")
	}
	interval := job.DateChunkIntervalDays
	if interval <= 0 {
		interval = defaultChunkIntervalDays(job.Schema)
	}
	ranges := SplitDateRange(job.StartDate, job.EndDate, interval)
	chunks := make([]Chunk, 0, len(ranges))
	for i, r := range ranges {
		chunks = append(chunks, Chunk{
			ID:      fmt.Sprintf("%s-%s-%d", job.Dataset, job.Schema, i),
			Dataset: job.Dataset,
			Start:   r.Start,
			End:     r.End,
			Symbols: job.Symbols,
			Schema:  job.Schema,
			StypeIn: job.StypeIn,
		})
	}
	return chunks, nil
}

// FetchChunk retrieves one chunk's records as JSON-encoded DBN, decoding
// each newline-delimited record into a Dict of vendor field name to
// value, with the top-of-book and stat field renames applied.
func (a *DatabentoAdapter) FetchChunk(ctx context.Context, chunk Chunk) ([]Dict, error) {
	schema, err := dbn.SchemaFromString(string(chunk.Schema))
	if err != nil {
		// Fall back to dbn.Schema_Mixed for schema strings that don't
		// round-trip through the vendor's enum, so the request still
		// carries a value.
		schema = dbn.Schema_Mixed
	}

	stypeIn, err := stypeToDbn(chunk.StypeIn)
	if err != nil {
		return nil, fmt.Errorf("databento adapter: %w", err)
	}

	jobParams := hist.SubmitJobParams{
		Dataset: chunk.Dataset,
		Symbols: joinSymbols(chunk.Symbols),
		Schema:  schema,
		DateRange: hist.DateRange{
			Start: chunk.Start,
			End:   chunk.End,
		},
		Encoding:   dbn.Json,
		StypeIn:    stypeIn,
		StypeOut:   dbn.SType_InstrumentId,
		MapSymbols: true,
		PrettyPx:   false,
		PrettyTs:   false,
	}

	body, err := hist.GetRange(a.apiKey, jobParams)
	if err != nil {
		return nil, fmt.Errorf("databento adapter: fetch chunk %s: %w", chunk.ID, err)
	}

	dicts, err := decodeJsonRecords(body)
	if err != nil {
		return nil, err
	}
	if chunk.Schema == models.SchemaStatistics {
		for _, d := range dicts {
			if v, ok := d["price"]; ok {
				d["stat_value"] = v
				delete(d, "price")
			}
		}
	}
	return dicts, nil
}

// Close releases the adapter's pooled HTTP resources.
func (a *DatabentoAdapter) Close() error {
	if a.httpClient != nil {
		a.httpClient.HTTPClient.CloseIdleConnections()
	}
	return nil
}

func decodeJsonRecords(body []byte) ([]Dict, error) {
	var dicts []Dict
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var parser fastjson.Parser
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		val, err := parser.ParseBytes(line)
		if err != nil {
			return nil, fmt.Errorf("databento adapter: decode record: %w", err)
		}
		d := fastjsonObjectToDict(val)
		SanitizeStrings(d)
		dicts = append(dicts, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("databento adapter: scan response: %w", err)
	}
	return dicts, nil
}

// fastjsonObjectToDict flattens a parsed JSON record into a Dict,
// hoisting the "hd" header object's fields alongside the record body's
// and applying the vendor field renames.
func fastjsonObjectToDict(val *fastjson.Value) Dict {
	d := make(Dict)
	obj, err := val.Object()
	if err != nil {
		return d
	}
	obj.Visit(func(key []byte, v *fastjson.Value) {
		k := string(key)
		if k == "hd" {
			if hdObj, err := v.Object(); err == nil {
				hdObj.Visit(func(hk []byte, hv *fastjson.Value) {
					setDictValue(d, string(hk), hv)
				})
			}
			return
		}
		setDictValue(d, k, v)
	})
	return d
}

func setDictValue(d Dict, key string, v *fastjson.Value) {
	if renamed, ok := fieldRenames[key]; ok {
		key = renamed
	}
	switch v.Type() {
	case fastjson.TypeString:
		sb, _ := v.StringBytes()
		d[key] = string(sb)
	case fastjson.TypeNumber:
		d[key] = v.GetFloat64()
	case fastjson.TypeTrue, fastjson.TypeFalse:
		d[key] = v.GetBool()
	case fastjson.TypeNull:
		d[key] = nil
	default:
		d[key] = v.String()
	}
}

func joinSymbols(symbols []string) string {
	out := ""
	for i, s := range symbols {
		if i > 0 {
			out += ","
		}
		out += s
	}
	if out == "" {
		return "ALL_SYMBOLS"
	}
	return out
}

func stypeToDbn(s models.StypeIn) (dbn.SType, error) {
	switch s {
	case models.StypeNative:
		return dbn.SType_RawSymbol, nil
	case models.StypeContinuous:
		return dbn.SType_Continuous, nil
	case models.StypeParent:
		return dbn.SType_Parent, nil
	default:
		return dbn.SType_RawSymbol, fmt.Errorf("unknown stype_in %q", s)
	}
}
