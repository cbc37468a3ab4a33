// Copyright (c) 2024 Neomantra Corp

package rules_test

import (
	"github.com/marketdata-eng/histfeed/models"
	"github.com/marketdata-eng/histfeed/rules"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Apply", func() {
	It("applies defaults and decodes a valid OHLCV row", func() {
		cfg := rules.DefaultConfig()
		batch := []map[string]any{
			{
				"ts_event":      uint64(1700000000000000000),
				"instrument_id": uint32(1234),
				"symbol":        "AAPL",
				"open_price":    int64(100_000_000_000),
				"high_price":    int64(105_000_000_000),
				"low_price":     int64(99_000_000_000),
				"close_price":   int64(102_000_000_000),
				"volume":        uint64(5000),
			},
		}
		result, err := rules.Apply(cfg, models.SchemaOhlcv1D, batch)
		Expect(err).To(BeNil())
		Expect(result.Rejected).To(BeEmpty())
		Expect(result.Validated).To(HaveLen(1))

		row := result.Validated[0].(*models.OhlcvRow)
		Expect(row.Granularity).To(Equal("1d"))
		Expect(row.DataSource).To(Equal("databento"))
		Expect(row.Symbol).To(Equal("AAPL"))
	})

	It("rejects a row that fails its invariant check", func() {
		cfg := rules.DefaultConfig()
		batch := []map[string]any{
			{
				"ts_event":      uint64(1),
				"instrument_id": uint32(1),
				"symbol":        "AAPL",
				"open_price":    int64(100),
				"high_price":    int64(50), // below open -- invalid
				"low_price":     int64(10),
				"close_price":   int64(90),
				"volume":        uint64(1),
			},
		}
		result, err := rules.Apply(cfg, models.SchemaOhlcv1D, batch)
		Expect(err).To(BeNil())
		Expect(result.Validated).To(BeEmpty())
		Expect(result.Rejected).To(HaveLen(1))
		Expect(models.HasError(result.Rejected[0].Diagnostics)).To(BeTrue())
	})

	It("normalizes trade_count and vwap to nullable types when absent", func() {
		cfg := rules.DefaultConfig()
		batch := []map[string]any{
			{
				"ts_event":      uint64(1),
				"instrument_id": uint32(1),
				"symbol":        "AAPL",
				"open_price":    int64(100),
				"high_price":    int64(100),
				"low_price":     int64(100),
				"close_price":   int64(100),
				"volume":        uint64(1),
			},
		}
		result, err := rules.Apply(cfg, models.SchemaOhlcv1D, batch)
		Expect(err).To(BeNil())
		Expect(result.Validated).To(HaveLen(1))
		row := result.Validated[0].(*models.OhlcvRow)
		_, present := row.TradeCount.Get()
		Expect(present).To(BeFalse())
		_, vwapPresent := row.Vwap.Get()
		Expect(vwapPresent).To(BeFalse())
	})

	It("applies a field mapping rename before decode", func() {
		cfg := &rules.Config{
			Schemas: map[models.Schema]rules.SchemaRules{
				models.SchemaTrades: {
					FieldMappings: map[string]string{"vendor_price": "price"},
				},
			},
		}
		batch := []map[string]any{
			{
				"ts_event":      uint64(1),
				"ts_recv":       uint64(1),
				"instrument_id": uint32(1),
				"symbol":        "AAPL",
				"vendor_price":  int64(100),
				"size":          uint32(10),
				"action":        byte('T'),
				"side":          byte('B'),
			},
		}
		result, err := rules.Apply(cfg, models.SchemaTrades, batch)
		Expect(err).To(BeNil())
		Expect(result.Rejected).To(BeEmpty())
		Expect(result.Validated).To(HaveLen(1))
		trade := result.Validated[0].(*models.TradeRow)
		Expect(trade.Price).To(Equal(int64(100)))
	})
})

var _ = Describe("EvalPredicate", func() {
	It("evaluates a field-to-literal comparison", func() {
		row := map[string]any{"value": float64(5)}
		Expect(rules.EvalPredicate("value > 0", row)).To(BeTrue())
		Expect(rules.EvalPredicate("value > 10", row)).To(BeFalse())
	})

	It("evaluates a field-to-field comparison", func() {
		row := map[string]any{"high_price": float64(10), "low_price": float64(5)}
		Expect(rules.EvalPredicate("high_price >= low_price", row)).To(BeTrue())
	})

	It("returns false when an operand is missing", func() {
		row := map[string]any{"value": float64(5)}
		Expect(rules.EvalPredicate("missing > 0", row)).To(BeFalse())
	})
})
