// Copyright (c) 2024 Neomantra Corp

package adapter_test

import (
	"github.com/marketdata-eng/histfeed/adapter"
	"github.com/marketdata-eng/histfeed/models"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("RepairSymbol", func() {
	It("leaves an existing symbol alone", func() {
		d := adapter.Dict{"symbol": "AAPL"}
		diag := adapter.RepairSymbol(d, []string{"MSFT"})
		Expect(diag).To(BeNil())
		Expect(d["symbol"]).To(Equal("AAPL"))
	})

	It("fills from the job's sole symbol", func() {
		d := adapter.Dict{}
		diag := adapter.RepairSymbol(d, []string{"AAPL"})
		Expect(diag).To(BeNil())
		Expect(d["symbol"]).To(Equal("AAPL"))
	})

	It("falls back to raw_symbol", func() {
		d := adapter.Dict{"raw_symbol": "ESH1"}
		diag := adapter.RepairSymbol(d, []string{"AAPL", "MSFT"})
		Expect(diag).To(BeNil())
		Expect(d["symbol"]).To(Equal("ESH1"))
	})

	It("best-effort-assigns and warns with multiple job symbols and an instrument_id", func() {
		d := adapter.Dict{"instrument_id": uint32(1234)}
		diag := adapter.RepairSymbol(d, []string{"AAPL", "MSFT"})
		Expect(diag).ToNot(BeNil())
		Expect(diag.Severity).To(Equal(models.SeverityWarning))
		Expect(d["symbol"]).To(Equal("AAPL"))
	})

	It("synthesizes INSTRUMENT_{id} when only an instrument_id is known", func() {
		d := adapter.Dict{"instrument_id": uint32(5482)}
		diag := adapter.RepairSymbol(d, nil)
		Expect(diag).ToNot(BeNil())
		Expect(diag.Severity).To(Equal(models.SeverityWarning))
		Expect(d["symbol"]).To(Equal("INSTRUMENT_5482"))
	})

	It("falls back to UNKNOWN_SYMBOL with an error diagnostic", func() {
		d := adapter.Dict{}
		diag := adapter.RepairSymbol(d, nil)
		Expect(diag).ToNot(BeNil())
		Expect(diag.Severity).To(Equal(models.SeverityError))
		Expect(d["symbol"]).To(Equal("UNKNOWN_SYMBOL"))
	})
})

var _ = Describe("SanitizeStrings", func() {
	It("strips embedded NUL bytes from string values", func() {
		d := adapter.Dict{"symbol": "AA\x00PL", "count": 3}
		adapter.SanitizeStrings(d)
		Expect(d["symbol"]).To(Equal("AAPL"))
		Expect(d["count"]).To(Equal(3))
	})
})
