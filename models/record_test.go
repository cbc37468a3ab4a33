// Copyright (c) 2024 Neomantra Corp

package models_test

import (
	"github.com/marketdata-eng/histfeed/models"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("OhlcvRow", func() {
	It("accepts a consistent bar", func() {
		r := &models.OhlcvRow{OpenPrice: 100, HighPrice: 110, LowPrice: 95, ClosePrice: 105, Volume: 10}
		Expect(r.CheckInvariants()).To(BeEmpty())
	})
	It("rejects a high below the other prices", func() {
		r := &models.OhlcvRow{OpenPrice: 100, HighPrice: 90, LowPrice: 95, ClosePrice: 105, Volume: 10}
		diags := r.CheckInvariants()
		Expect(diags).NotTo(BeEmpty())
		Expect(models.HasError(diags)).To(BeTrue())
	})
	It("rejects a vwap outside the bar's range", func() {
		r := &models.OhlcvRow{
			OpenPrice: 100, HighPrice: 110, LowPrice: 95, ClosePrice: 105, Volume: 10,
			Vwap: models.NewNullFloat64(200),
		}
		Expect(models.HasError(r.CheckInvariants())).To(BeTrue())
	})
})

var _ = Describe("TradeRow", func() {
	It("accepts a normal trade", func() {
		r := &models.TradeRow{Price: 100, Size: 1, Side: models.SideBid}
		Expect(r.CheckInvariants(false)).To(BeEmpty())
	})
	It("rejects a non-positive price unless spreads are allowed", func() {
		r := &models.TradeRow{Price: -5, Size: 1, Side: models.SideBid}
		Expect(models.HasError(r.CheckInvariants(false))).To(BeTrue())
		Expect(models.HasError(r.CheckInvariants(true))).To(BeFalse())
	})
	It("rejects a zero size", func() {
		r := &models.TradeRow{Price: 100, Size: 0, Side: models.SideAsk}
		Expect(models.HasError(r.CheckInvariants(false))).To(BeTrue())
	})
})

var _ = Describe("TbboRow", func() {
	It("requires at least one side", func() {
		r := &models.TbboRow{}
		Expect(models.HasError(r.CheckInvariants())).To(BeTrue())
	})
	It("rejects an uncrossed inverted book", func() {
		r := &models.TbboRow{BidPx: models.NewNullInt64(110), AskPx: models.NewNullInt64(100)}
		Expect(models.HasError(r.CheckInvariants())).To(BeTrue())
	})
	It("allows an inverted book marked crossed", func() {
		r := &models.TbboRow{BidPx: models.NewNullInt64(110), AskPx: models.NewNullInt64(100), Crossed: true}
		Expect(r.CheckInvariants()).To(BeEmpty())
	})
})

var _ = Describe("DefinitionRow", func() {
	It("accepts a consistent outright definition", func() {
		r := &models.DefinitionRow{
			Activation: 1, Expiration: 2,
			HighLimitPrice: 100, LowLimitPrice: 50,
			MinPriceIncrement: 1,
		}
		Expect(r.CheckInvariants()).To(BeEmpty())
	})
	It("rejects activation after expiration", func() {
		r := &models.DefinitionRow{Activation: 5, Expiration: 2, MinPriceIncrement: 1}
		Expect(models.HasError(r.CheckInvariants())).To(BeTrue())
	})
	It("requires leg_index when leg_count is set", func() {
		r := &models.DefinitionRow{Expiration: 1, MinPriceIncrement: 1, LegCount: 2}
		Expect(models.HasError(r.CheckInvariants())).To(BeTrue())

		r.LegIndex = models.NewNullInt64(0)
		Expect(models.HasError(r.CheckInvariants())).To(BeFalse())
	})
})

var _ = Describe("StatisticsRow", func() {
	It("rejects a negative stat_value", func() {
		r := &models.StatisticsRow{StatValue: models.NewNullInt64(-1)}
		Expect(models.HasError(r.CheckInvariants())).To(BeTrue())
	})
	It("allows an absent stat_value", func() {
		r := &models.StatisticsRow{}
		Expect(r.CheckInvariants()).To(BeEmpty())
	})
})
