// Copyright (c) 2024 Neomantra Corp

package validate_test

import (
	"github.com/marketdata-eng/histfeed/models"
	"github.com/marketdata-eng/histfeed/validate"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ValidateSymbol", func() {
	It("accepts an uppercase symbol", func() {
		Expect(validate.ValidateSymbol("AAPL")).To(BeNil())
		Expect(validate.ValidateSymbol("ES.c.0")).ToNot(BeNil()) // lowercase 'c' rejected
	})

	It("rejects an empty symbol", func() {
		diag := validate.ValidateSymbol("")
		Expect(diag).ToNot(BeNil())
		Expect(diag.Severity).To(Equal(models.SeverityError))
	})
})

var _ = Describe("CheckRequiredFields", func() {
	It("flags every missing required field for the schema", func() {
		diags := validate.CheckRequiredFields(models.SchemaTrades, map[string]any{"ts_event": uint64(1)})
		Expect(len(diags)).To(Equal(len(validate.RequiredFields(models.SchemaTrades)) - 1))
	})

	It("passes when all required fields are present", func() {
		row := map[string]any{}
		for _, f := range validate.RequiredFields(models.SchemaTbbo) {
			row[f] = 1
		}
		Expect(validate.CheckRequiredFields(models.SchemaTbbo, row)).To(BeEmpty())
	})
})

var _ = Describe("CheckWideSpread", func() {
	It("warns when the spread exceeds the threshold", func() {
		row := &models.TbboRow{
			BidPx: models.NewNullInt64(100_000_000_000),
			AskPx: models.NewNullInt64(110_000_000_000),
		}
		diag := validate.CheckWideSpread(row, 100)
		Expect(diag).ToNot(BeNil())
		Expect(diag.Severity).To(Equal(models.SeverityWarning))
	})

	It("does not warn for a tight spread", func() {
		row := &models.TbboRow{
			BidPx: models.NewNullInt64(100_000_000_000),
			AskPx: models.NewNullInt64(100_010_000_000),
		}
		Expect(validate.CheckWideSpread(row, 500)).To(BeNil())
	})
})
