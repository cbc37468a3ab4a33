// Copyright (c) 2024 Neomantra Corp

// Package adapter defines the vendor API Adapter contract and ships a
// Databento reference implementation built on the kept hist client.
package adapter

import (
	"context"
	"time"

	"github.com/marketdata-eng/histfeed/models"
)

// Chunk describes one sub-range of a job's date span, produced by
// splitting [start, end] into pieces no wider than the schema's
// configured date_chunk_interval_days.
type Chunk struct {
	ID      string
	Dataset string
	Start   time.Time
	End     time.Time
	Symbols []string
	Schema  models.Schema
	StypeIn models.StypeIn
}

// Dict is the internal flat representation an Adapter produces for one
// vendor record, before the Rule Engine maps and transforms it into a
// typed models.Record. Keys are the vendor's own field names; renames
// happen later in the Rule Engine, except for the small set of
// adapter-level renames called out in the Databento reference adapter.
type Dict map[string]any

// Adapter is the capability set any vendor integration must provide.
type Adapter interface {
	// Configure validates credentials and connectivity. It is called
	// once before any chunk is processed.
	Configure(ctx context.Context) error

	// IterateChunks splits a job's date range into chunks no wider than
	// the schema's date_chunk_interval_days.
	IterateChunks(job ChunkRequest) ([]Chunk, error)

	// FetchChunk retrieves the records for one chunk, retrying
	// transient failures per the adapter's retry policy.
	FetchChunk(ctx context.Context, chunk Chunk) ([]Dict, error)

	// Close releases any pooled resources (HTTP clients, etc).
	Close() error
}

// ChunkRequest is the subset of a job's fields IterateChunks needs to
// compute chunk boundaries.
type ChunkRequest struct {
	Dataset                string
	Schema                 models.Schema
	Symbols                []string
	StypeIn                models.StypeIn
	StartDate              time.Time
	EndDate                time.Time
	DateChunkIntervalDays   int // 0 means "use the schema default"
}

// defaultChunkIntervalDays returns the Databento reference adapter's
// default chunk width for a schema when the job does not override it.
func defaultChunkIntervalDays(schema models.Schema) int {
	switch schema {
	case models.SchemaTrades, models.SchemaTbbo:
		return 1
	case models.SchemaOhlcv1S:
		return 7
	case models.SchemaOhlcv1M, models.SchemaOhlcv5M, models.SchemaOhlcv15M:
		return 30
	case models.SchemaOhlcv1H, models.SchemaOhlcv1D:
		return 90
	case models.SchemaStatistics, models.SchemaDefinition:
		return 90
	default:
		return 30
	}
}

// SplitDateRange splits [start, end) into half-open chunks no wider than
// intervalDays. end is exclusive, matching the job's end_date semantics
// (must differ from start_date).
func SplitDateRange(start, end time.Time, intervalDays int) []struct{ Start, End time.Time } {
	if intervalDays <= 0 {
		intervalDays = 1
	}
	var chunks []struct{ Start, End time.Time }
	for cur := start; cur.Before(end); {
		next := cur.AddDate(0, 0, intervalDays)
		if next.After(end) {
			next = end
		}
		chunks = append(chunks, struct{ Start, End time.Time }{cur, next})
		cur = next
	}
	return chunks
}
