// Copyright (c) 2024 Neomantra Corp

package orchestrator_test

import (
	"context"
	"time"

	"github.com/marketdata-eng/histfeed/adapter"
	"github.com/marketdata-eng/histfeed/models"
	"github.com/marketdata-eng/histfeed/orchestrator"
	"github.com/marketdata-eng/histfeed/storage"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeLoader struct {
	ensured bool
	stored  []models.Record
}

func (f *fakeLoader) EnsureSchema(ctx context.Context) error {
	f.ensured = true
	return nil
}

func (f *fakeLoader) LoadBatch(ctx context.Context, rows []models.Record) (int, error) {
	f.stored = append(f.stored, rows...)
	return len(rows), nil
}

var _ = Describe("Orchestrator.Run", func() {
	It("fetches, transforms, and stores a valid chunk", func() {
		fake := adapter.NewFakeAdapter()
		chunk := adapter.Chunk{ID: "c1", Dataset: "XNAS.ITCH", Schema: models.SchemaOhlcv1D}
		fake.Chunks = []adapter.Chunk{chunk}
		fake.ChunkRecords["c1"] = []adapter.Dict{
			{
				"ts_event":      float64(1700000000000000000),
				"instrument_id": float64(1234),
				"symbol":        "AAPL",
				"open_price":    float64(100_000_000_000),
				"high_price":    float64(105_000_000_000),
				"low_price":     float64(99_000_000_000),
				"close_price":   float64(102_000_000_000),
				"volume":        float64(5000),
			},
		}

		loader := &fakeLoader{}
		var stages []orchestrator.ProgressStage
		orc := orchestrator.New(fake, nil, nil, map[models.Schema]storage.Loader{
			models.SchemaOhlcv1D: loader,
		}, func(stage orchestrator.ProgressStage, count int, msg string) {
			stages = append(stages, stage)
		})

		job := orchestrator.Job{
			Dataset:   "XNAS.ITCH",
			Schema:    "ohlcv",
			Symbols:   []string{"AAPL"},
			StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		}

		stats, err := orc.Run(context.Background(), job)
		Expect(err).To(BeNil())
		Expect(stats.ChunksOK).To(Equal(1))
		Expect(stats.RecordsStored).To(Equal(1))
		Expect(loader.ensured).To(BeTrue())
		Expect(loader.stored).To(HaveLen(1))
		Expect(stages).To(ContainElement(orchestrator.StageDone))
		Expect(fake.Closed).To(BeTrue())
	})

	It("errors when the job's schema is unrecognized", func() {
		fake := adapter.NewFakeAdapter()
		orc := orchestrator.New(fake, nil, nil, nil, nil)
		_, err := orc.Run(context.Background(), orchestrator.Job{Schema: "not-a-schema"})
		Expect(err).ToNot(BeNil())
	})
})
