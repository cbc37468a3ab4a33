// Copyright (c) 2024 Neomantra Corp

package adapter_test

import (
	"context"
	"time"

	"github.com/marketdata-eng/histfeed/adapter"
	"github.com/marketdata-eng/histfeed/models"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("SplitDateRange", func() {
	It("splits an even range into equal chunks", func() {
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)
		chunks := adapter.SplitDateRange(start, end, 2)
		Expect(chunks).To(HaveLen(3))
		Expect(chunks[0].Start).To(Equal(start))
		Expect(chunks[2].End).To(Equal(end))
	})

	It("clamps the final chunk to end", func() {
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
		chunks := adapter.SplitDateRange(start, end, 3)
		Expect(chunks).To(HaveLen(2))
		Expect(chunks[1].End).To(Equal(end))
	})

	It("treats a non-positive interval as one day", func() {
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
		chunks := adapter.SplitDateRange(start, end, 0)
		Expect(chunks).To(HaveLen(2))
	})
})

var _ = Describe("FakeAdapter", func() {
	It("derives chunks from the schema's default interval when not overridden", func() {
		fake := adapter.NewFakeAdapter()
		req := adapter.ChunkRequest{
			Dataset:   "XNAS.ITCH",
			Schema:    models.SchemaTrades,
			Symbols:   []string{"AAPL"},
			StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		}
		chunks, err := fake.IterateChunks(req)
		Expect(err).To(BeNil())
		Expect(chunks).To(HaveLen(2)) // trades default to 1-day chunks
	})

	It("returns preloaded records for a chunk and tracks fetches", func() {
		fake := adapter.NewFakeAdapter()
		chunk := adapter.Chunk{ID: "c1", Dataset: "XNAS.ITCH", Schema: models.SchemaTrades}
		fake.Chunks = []adapter.Chunk{chunk}
		fake.ChunkRecords["c1"] = []adapter.Dict{{"symbol": "AAPL"}}

		chunks, err := fake.IterateChunks(adapter.ChunkRequest{})
		Expect(err).To(BeNil())
		Expect(chunks).To(Equal(fake.Chunks))

		records, err := fake.FetchChunk(context.Background(), chunk)
		Expect(err).To(BeNil())
		Expect(records).To(HaveLen(1))
		Expect(fake.FetchedChunks).To(ConsistOf("c1"))
	})

	It("propagates a configured fetch error", func() {
		fake := adapter.NewFakeAdapter()
		chunk := adapter.Chunk{ID: "bad"}
		fake.FetchErr["bad"] = context.DeadlineExceeded
		_, err := fake.FetchChunk(context.Background(), chunk)
		Expect(err).To(Equal(context.DeadlineExceeded))
	})
})
