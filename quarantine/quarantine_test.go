// Copyright (c) 2024 Neomantra Corp

package quarantine_test

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/marketdata-eng/histfeed/models"
	"github.com/marketdata-eng/histfeed/quarantine"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Sink", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "quarantine-test-*")
		Expect(err).To(BeNil())
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	It("appends one JSON line per entry, rotated by schema and date", func() {
		sink, err := quarantine.NewSink(dir)
		Expect(err).To(BeNil())

		at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		entry := quarantine.Entry{
			JobID:         "job-1",
			ChunkID:       "chunk-1",
			Schema:        models.SchemaTrades,
			Reason:        "validation failed",
			Errors:        []models.Diagnostic{models.NewError("price", "must be > 0")},
			RawRecord:     map[string]any{"price": -1},
			QuarantinedAt: at,
		}
		Expect(sink.Write(entry)).To(Succeed())
		Expect(sink.Write(entry)).To(Succeed())
		Expect(sink.Close()).To(Succeed())

		path := filepath.Join(dir, "trades-2024-06-01.jsonl")
		f, err := os.Open(path)
		Expect(err).To(BeNil())
		defer f.Close()

		scanner := bufio.NewScanner(f)
		var lines int
		for scanner.Scan() {
			var decoded quarantine.Entry
			Expect(json.Unmarshal(scanner.Bytes(), &decoded)).To(Succeed())
			Expect(decoded.JobID).To(Equal("job-1"))
			lines++
		}
		Expect(lines).To(Equal(2))
	})
})
