// Copyright (c) 2024 Neomantra Corp

package models_test

import (
	"github.com/marketdata-eng/histfeed/models"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Schema", func() {
	Context("NormalizeSchema", func() {
		It("resolves shorthand aliases", func() {
			s, err := models.NormalizeSchema("ohlcv")
			Expect(err).NotTo(HaveOccurred())
			Expect(s).To(Equal(models.SchemaOhlcv1D))

			s, err = models.NormalizeSchema("definitions")
			Expect(err).NotTo(HaveOccurred())
			Expect(s).To(Equal(models.SchemaDefinition))
		})
		It("rejects unknown schemas", func() {
			_, err := models.NormalizeSchema("bogus")
			Expect(err).To(HaveOccurred())
		})
	})
	Context("Granularity", func() {
		It("returns the bar width for OHLCV schemas", func() {
			Expect(models.SchemaOhlcv1H.Granularity()).To(Equal("1h"))
			Expect(models.SchemaTrades.Granularity()).To(Equal(""))
		})
	})
	Context("IsOhlcv", func() {
		It("classifies OHLCV schemas", func() {
			Expect(models.SchemaOhlcv5M.IsOhlcv()).To(BeTrue())
			Expect(models.SchemaTbbo.IsOhlcv()).To(BeFalse())
		})
	})
})
