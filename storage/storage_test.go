// Copyright (c) 2024 Neomantra Corp

package storage_test

import (
	"github.com/marketdata-eng/histfeed/models"
	"github.com/marketdata-eng/histfeed/storage"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BatchSize", func() {
	It("returns the sizing table's target batch rows per schema class", func() {
		Expect(storage.BatchSize(models.SchemaOhlcv1D)).To(Equal(5000))
		Expect(storage.BatchSize(models.SchemaTrades)).To(Equal(10000))
		Expect(storage.BatchSize(models.SchemaTbbo)).To(Equal(15000))
		Expect(storage.BatchSize(models.SchemaStatistics)).To(Equal(1000))
		Expect(storage.BatchSize(models.SchemaDefinition)).To(Equal(100))
	})
})

var _ = Describe("DefaultPoolConfig", func() {
	It("applies the resource model's pool sizing", func() {
		cfg := storage.DefaultPoolConfig("postgres://localhost/test")
		Expect(cfg.MinConns).To(Equal(int32(10)))
		Expect(cfg.MaxConns).To(Equal(int32(20)))
	})
})
