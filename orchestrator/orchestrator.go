// Copyright (c) 2024 Neomantra Corp

// Package orchestrator drives one ingestion Job end to end: adapter
// fetch, schema-specific dict repair, Rule Engine validation, and
// storage loading, with chunk-level retry, quarantine, and a bounded
// fetch/transform/load pipeline.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/marketdata-eng/histfeed/adapter"
	"github.com/marketdata-eng/histfeed/models"
	"github.com/marketdata-eng/histfeed/quarantine"
	"github.com/marketdata-eng/histfeed/rules"
	"github.com/marketdata-eng/histfeed/storage"
)

// maxChunksInFlight bounds the fetch/transform/load pipeline's queue
// depth, per the resource model's memory ceiling.
const maxChunksInFlight = 4

// Job is the tuple describing one ingestion run.
type Job struct {
	ApiName               string
	Dataset               string
	Schema                string // user-supplied; normalized via models.NormalizeSchema
	Symbols               []string
	StypeIn               models.StypeIn
	StartDate             time.Time
	EndDate               time.Time
	DateChunkIntervalDays int
	JobName               string
}

// normalize resolves the job's schema alias and synthesizes a
// job name if absent.
func (j *Job) normalize() (models.Schema, string, error) {
	schema, err := models.NormalizeSchema(j.Schema)
	if err != nil {
		return "", "", fmt.Errorf("orchestrator: %w", err)
	}
	name := j.JobName
	if name == "" {
		name = fmt.Sprintf("cli_%s_%s", schema, joinSymbols(j.Symbols))
	}
	return schema, name, nil
}

func joinSymbols(symbols []string) string {
	out := ""
	for i, s := range symbols {
		if i > 0 {
			out += "_"
		}
		out += s
	}
	if out == "" {
		return "all"
	}
	return out
}

// RepairStats accumulates the symbol repair outcome across a job.
type RepairStats struct {
	Repaired     int
	FailedRepair int
}

// Stats is the final accounting for one job run.
type Stats struct {
	ChunksTotal         int
	ChunksOK            int
	ChunksRetried       int
	ChunksFailed        int
	RecordsFetched      int
	RecordsTransformed  int
	RecordsStored       int
	RecordsQuarantined  int
	ErrorsEncountered   int
	RepairStats         RepairStats
	StartedAt           time.Time
	EndedAt             time.Time
	Cancelled           bool
}

// ProgressStage names one phase of per-chunk processing, reported to a
// job's ProgressCallback.
type ProgressStage string

const (
	StageFetching     ProgressStage = "fetching"
	StageTransforming ProgressStage = "transforming"
	StageValidating   ProgressStage = "validating"
	StageStoring      ProgressStage = "storing"
	StageDone         ProgressStage = "done"
)

// ProgressCallback receives stage transitions as a job runs.
type ProgressCallback func(stage ProgressStage, count int, message string)

// RetryPolicy bounds chunk-level and loader-transaction retry.
type RetryPolicy struct {
	MaxChunkRetries    int
	MaxLoaderRetries   int
}

// DefaultRetryPolicy gives a failed chunk fetch one immediate retry
// and a failed loader transaction one retry.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxChunkRetries: 1, MaxLoaderRetries: 1}
}

// Orchestrator ties one Adapter, the Rule Engine, a quarantine Sink, and
// a schema-to-Loader table together to run Jobs.
type Orchestrator struct {
	Adapter  adapter.Adapter
	Rules    *rules.Config
	Sink     *quarantine.Sink
	Loaders  map[models.Schema]storage.Loader
	Retry    RetryPolicy
	Progress ProgressCallback
}

// New constructs an Orchestrator. progress may be nil.
func New(a adapter.Adapter, ruleCfg *rules.Config, sink *quarantine.Sink, loaders map[models.Schema]storage.Loader, progress ProgressCallback) *Orchestrator {
	if ruleCfg == nil {
		ruleCfg = rules.DefaultConfig()
	}
	return &Orchestrator{
		Adapter:  a,
		Rules:    ruleCfg,
		Sink:     sink,
		Loaders:  loaders,
		Retry:    DefaultRetryPolicy(),
		Progress: progress,
	}
}

func (o *Orchestrator) report(stage ProgressStage, count int, msg string) {
	if o.Progress != nil {
		o.Progress(stage, count, msg)
	}
}

// chunkResult carries one fetched+repaired chunk through the pipeline.
type chunkResult struct {
	chunk   adapter.Chunk
	records []adapter.Dict
	repair  RepairStats
	err     error
}

// transformResult carries one chunk's Rule Engine output to the load
// stage.
type transformResult struct {
	chunk  adapter.Chunk
	result rules.Result
	repair RepairStats
	err    error
}

// Run drives job end to end: configure the adapter, split it into
// chunks, and pump each chunk through fetch -> repair -> rule engine ->
// load with a bounded in-flight queue at each stage.
func (o *Orchestrator) Run(ctx context.Context, job Job) (Stats, error) {
	stats := Stats{StartedAt: time.Now().UTC()}

	schema, _, err := job.normalize()
	if err != nil {
		stats.EndedAt = time.Now().UTC()
		return stats, err
	}

	if err := o.Adapter.Configure(ctx); err != nil {
		stats.EndedAt = time.Now().UTC()
		return stats, fmt.Errorf("orchestrator: configure: %w", err)
	}
	defer o.Adapter.Close()

	loader, ok := o.Loaders[schema]
	if !ok {
		stats.EndedAt = time.Now().UTC()
		return stats, fmt.Errorf("orchestrator: no loader registered for schema %q", schema)
	}
	if err := loader.EnsureSchema(ctx); err != nil {
		stats.EndedAt = time.Now().UTC()
		return stats, fmt.Errorf("orchestrator: ensure schema: %w", err)
	}

	chunks, err := o.Adapter.IterateChunks(adapter.ChunkRequest{
		Dataset:               job.Dataset,
		Schema:                schema,
		Symbols:                job.Symbols,
		StypeIn:               job.StypeIn,
		StartDate:             job.StartDate,
		EndDate:               job.EndDate,
		DateChunkIntervalDays: job.DateChunkIntervalDays,
	})
	if err != nil {
		stats.EndedAt = time.Now().UTC()
		return stats, fmt.Errorf("orchestrator: iterate chunks: %w", err)
	}
	stats.ChunksTotal = len(chunks)

	fetched := make(chan chunkResult, maxChunksInFlight)
	transformed := make(chan transformResult, maxChunksInFlight)

	go o.fetchStage(ctx, job, chunks, fetched)
	go o.transformStage(ctx, schema, fetched, transformed)
	o.loadStage(ctx, schema, loader, transformed, &stats)

	stats.EndedAt = time.Now().UTC()
	if ctx.Err() != nil {
		stats.Cancelled = true
	}
	return stats, nil
}

func (o *Orchestrator) fetchStage(ctx context.Context, job Job, chunks []adapter.Chunk, out chan<- chunkResult) {
	defer close(out)
	for _, chunk := range chunks {
		if ctx.Err() != nil {
			return
		}
		o.report(StageFetching, 0, chunk.ID)

		var records []adapter.Dict
		var err error
		for attempt := 0; attempt <= o.Retry.MaxChunkRetries; attempt++ {
			records, err = o.Adapter.FetchChunk(ctx, chunk)
			if err == nil {
				break
			}
		}

		var repair RepairStats
		for _, rec := range records {
			if s, ok := rec["symbol"].(string); ok && s != "" {
				continue
			}
			if diag := adapter.RepairSymbol(rec, job.Symbols); diag != nil && diag.Severity == models.SeverityError {
				repair.FailedRepair++
			} else {
				repair.Repaired++
			}
		}

		select {
		case out <- chunkResult{chunk: chunk, records: records, repair: repair, err: err}:
		case <-ctx.Done():
			return
		}
	}
}

func (o *Orchestrator) transformStage(ctx context.Context, schema models.Schema, in <-chan chunkResult, out chan<- transformResult) {
	defer close(out)
	for cr := range in {
		if ctx.Err() != nil {
			return
		}
		if cr.err != nil {
			select {
			case out <- transformResult{chunk: cr.chunk, repair: cr.repair, err: cr.err}:
			case <-ctx.Done():
			}
			continue
		}

		o.report(StageTransforming, len(cr.records), cr.chunk.ID)

		batch := make([]map[string]any, len(cr.records))
		for i, d := range cr.records {
			batch[i] = d
		}

		o.report(StageValidating, len(batch), cr.chunk.ID)
		result, err := rules.Apply(o.Rules, schema, batch)

		select {
		case out <- transformResult{chunk: cr.chunk, result: result, repair: cr.repair, err: err}:
		case <-ctx.Done():
			return
		}
	}
}

func (o *Orchestrator) loadStage(ctx context.Context, schema models.Schema, loader storage.Loader, in <-chan transformResult, stats *Stats) {
	for tr := range in {
		stats.RepairStats.Repaired += tr.repair.Repaired
		stats.RepairStats.FailedRepair += tr.repair.FailedRepair

		if tr.err != nil {
			stats.ChunksFailed++
			stats.ErrorsEncountered++
			continue
		}

		stats.RecordsFetched += len(tr.result.Validated) + len(tr.result.Rejected)
		stats.RecordsTransformed += len(tr.result.Validated)

		for _, rejected := range tr.result.Rejected {
			stats.RecordsQuarantined++
			if o.Sink != nil {
				_ = o.Sink.Write(quarantine.Entry{
					ChunkID:   tr.chunk.ID,
					Schema:    schema,
					Reason:    "validation rejected",
					Errors:    rejected.Diagnostics,
					RawRecord: rejected.Raw,
				})
			}
		}

		o.report(StageStoring, len(tr.result.Validated), tr.chunk.ID)

		var stored int
		var err error
		for attempt := 0; attempt <= o.Retry.MaxLoaderRetries; attempt++ {
			stored, err = loader.LoadBatch(ctx, tr.result.Validated)
			if err == nil {
				break
			}
		}
		if err != nil {
			stats.ChunksFailed++
			stats.ErrorsEncountered++
			if o.Sink != nil {
				for _, rec := range tr.result.Validated {
					_ = o.Sink.Write(quarantine.Entry{
						ChunkID: tr.chunk.ID,
						Schema:  schema,
						Reason:  "loader transaction failed: " + err.Error(),
					})
					_ = rec
				}
			}
			continue
		}

		stats.RecordsStored += stored
		stats.ChunksOK++
		o.report(StageDone, stored, tr.chunk.ID)
	}
}
