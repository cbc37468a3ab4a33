// Copyright (c) 2024 Neomantra Corp

package adapter

import "context"

// FakeAdapter is an in-memory Adapter test double. Chunks and their
// records are preloaded by the caller; Configure/Close are no-ops
// unless ConfigureErr/CloseErr are set.
type FakeAdapter struct {
	Chunks       []Chunk
	ChunkRecords map[string][]Dict
	ConfigureErr error
	CloseErr     error
	FetchErr     map[string]error

	ConfigureCalls int
	FetchedChunks  []string
	Closed         bool
}

func NewFakeAdapter() *FakeAdapter {
	return &FakeAdapter{
		ChunkRecords: make(map[string][]Dict),
		FetchErr:     make(map[string]error),
	}
}

func (f *FakeAdapter) Configure(ctx context.Context) error {
	f.ConfigureCalls++
	return f.ConfigureErr
}

func (f *FakeAdapter) IterateChunks(job ChunkRequest) ([]Chunk, error) {
	if f.Chunks != nil {
		return f.Chunks, nil
	}
	interval := job.DateChunkIntervalDays
	if interval <= 0 {
		interval = defaultChunkIntervalDays(job.Schema)
	}
	ranges := SplitDateRange(job.StartDate, job.EndDate, interval)
	chunks := make([]Chunk, 0, len(ranges))
	for i, r := range ranges {
		chunks = append(chunks, Chunk{
			ID:      job.Dataset + "-fake-" + string(rune('a'+i)),
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

func (f *FakeAdapter) FetchChunk(ctx context.Context, chunk Chunk) ([]Dict, error) {
	f.FetchedChunks = append(f.FetchedChunks, chunk.ID)
	if err, ok := f.FetchErr[chunk.ID]; ok {
		return nil, err
	}
	return f.ChunkRecords[chunk.ID], nil
}

func (f *FakeAdapter) Close() error {
	f.Closed = true
	return f.CloseErr
}

var _ Adapter = (*FakeAdapter)(nil)
