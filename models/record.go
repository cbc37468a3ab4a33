// Copyright (c) 2024 Neomantra Corp

package models

// Record is implemented by every one of the closed set of row kinds the
// pipeline understands. It exists so the rule engine and orchestrator
// can handle a mixed batch without per-schema switch statements at every
// call site.
type Record interface {
	Schema() Schema
}

///////////////////////////////////////////////////////////////////////////////

// OhlcvRow is one open/high/low/close/volume bar for an instrument over
// one of the recognized granularities.
type OhlcvRow struct {
	TsEvent      uint64      `db:"ts_event" json:"ts_event"`
	InstrumentID uint32      `db:"instrument_id" json:"instrument_id"`
	Symbol       string      `db:"symbol" json:"symbol"`
	OpenPrice    int64       `db:"open_price" json:"open_price"`
	HighPrice    int64       `db:"high_price" json:"high_price"`
	LowPrice     int64       `db:"low_price" json:"low_price"`
	ClosePrice   int64       `db:"close_price" json:"close_price"`
	Volume       uint64      `db:"volume" json:"volume"`
	TradeCount   NullInt64   `db:"trade_count" json:"trade_count,omitempty"`
	Vwap         NullFloat64 `db:"vwap" json:"vwap,omitempty"`
	Granularity  string      `db:"granularity" json:"granularity"`
	DataSource   string      `db:"data_source" json:"data_source"`
}

func (r *OhlcvRow) Schema() Schema { return SchemaOhlcv1D }

// CheckInvariants validates the OHLC/volume/vwap relationships that must
// hold at the end of the Rule Engine and that loaders may assume hold.
func (r *OhlcvRow) CheckInvariants() []Diagnostic {
	var diags []Diagnostic
	hi := maxInt64(r.OpenPrice, r.ClosePrice, r.LowPrice)
	lo := minInt64(r.OpenPrice, r.ClosePrice, r.HighPrice)
	if r.HighPrice < hi {
		diags = append(diags, NewError("high_price", "high_price %d below max(open,close,low) %d", r.HighPrice, hi))
	}
	if r.LowPrice > lo {
		diags = append(diags, NewError("low_price", "low_price %d above min(open,close,high) %d", r.LowPrice, lo))
	}
	if vwap, ok := r.Vwap.Get(); ok {
		vwapFixed := Float64ToFixed9(vwap)
		if vwapFixed < r.LowPrice || vwapFixed > r.HighPrice {
			diags = append(diags, NewError("vwap", "vwap %f outside [low,high]", vwap))
		}
	}
	return diags
}

func maxInt64(vs ...int64) int64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minInt64(vs ...int64) int64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

///////////////////////////////////////////////////////////////////////////////

// Side mirrors the vendor's single-character trade side code.
type Side byte

const (
	SideAsk  Side = 'A'
	SideBid  Side = 'B'
	SideNone Side = 'N'
)

// TradeRow is a single matched trade event.
type TradeRow struct {
	TsEvent      uint64    `db:"ts_event" json:"ts_event"`
	TsRecv       uint64    `db:"ts_recv" json:"ts_recv"`
	PublisherID  uint16    `db:"publisher_id" json:"publisher_id"`
	InstrumentID uint32    `db:"instrument_id" json:"instrument_id"`
	Symbol       string    `db:"symbol" json:"symbol"`
	Price        int64     `db:"price" json:"price"`
	Size         uint32    `db:"size" json:"size"`
	Action       byte      `db:"action" json:"action"` // always 'T'
	Side         Side      `db:"side" json:"side"`
	Flags        uint8     `db:"flags" json:"flags"`
	Depth        uint8     `db:"depth" json:"depth"`
	Sequence     NullInt64 `db:"sequence" json:"sequence,omitempty"`
	TsInDelta    NullInt64 `db:"ts_in_delta" json:"ts_in_delta,omitempty"`
}

func (r *TradeRow) Schema() Schema { return SchemaTrades }

// CheckInvariants validates the per-row business rules for trades.
// A price <= 0 is an ERROR unless allowNegativePrice is set, in which
// case the price is not checked.
func (r *TradeRow) CheckInvariants(allowNegativePrice bool) []Diagnostic {
	var diags []Diagnostic
	if r.Price <= 0 && !allowNegativePrice {
		diags = append(diags, NewError("price", "price %d must be > 0", r.Price))
	}
	if r.Size == 0 {
		diags = append(diags, NewError("size", "size must be > 0"))
	}
	switch r.Side {
	case SideAsk, SideBid, SideNone:
	default:
		diags = append(diags, NewError("side", "side %q not in {A,B,N}", r.Side))
	}
	return diags
}

///////////////////////////////////////////////////////////////////////////////

// TbboRow is a top-of-book snapshot taken immediately before a trade.
type TbboRow struct {
	TsEvent      uint64      `db:"ts_event" json:"ts_event"`
	TsRecv       uint64      `db:"ts_recv" json:"ts_recv"`
	PublisherID  uint16      `db:"publisher_id" json:"publisher_id"`
	InstrumentID uint32      `db:"instrument_id" json:"instrument_id"`
	Symbol       string      `db:"symbol" json:"symbol"`
	BidPx        NullInt64   `db:"bid_px" json:"bid_px,omitempty"`
	AskPx        NullInt64   `db:"ask_px" json:"ask_px,omitempty"`
	BidSz        NullInt64   `db:"bid_sz" json:"bid_sz,omitempty"`
	AskSz        NullInt64   `db:"ask_sz" json:"ask_sz,omitempty"`
	BidCt        NullInt64   `db:"bid_ct" json:"bid_ct,omitempty"`
	AskCt        NullInt64   `db:"ask_ct" json:"ask_ct,omitempty"`
	Sequence     NullInt64   `db:"sequence" json:"sequence,omitempty"`
	Flags        NullInt64   `db:"flags" json:"flags,omitempty"`
	Crossed      bool        `db:"crossed" json:"crossed,omitempty"`
}

func (r *TbboRow) Schema() Schema { return SchemaTbbo }

// CheckInvariants validates the presence and bid/ask ordering rules.
func (r *TbboRow) CheckInvariants() []Diagnostic {
	var diags []Diagnostic
	bid, hasBid := r.BidPx.Get()
	ask, hasAsk := r.AskPx.Get()
	if !hasBid && !hasAsk {
		diags = append(diags, NewError("bid_px/ask_px", "at least one side must be present"))
	}
	if hasBid && hasAsk && bid > ask && !r.Crossed {
		diags = append(diags, NewError("bid_px", "bid_px %d > ask_px %d without crossed flag", bid, ask))
	}
	return diags
}

///////////////////////////////////////////////////////////////////////////////

// StatType mirrors the vendor's statistic-kind enumeration.
type StatType uint8

const (
	StatTypeOpeningPrice            StatType = 1
	StatTypeIndicativeOpeningPrice  StatType = 2
	StatTypeSettlementPrice         StatType = 3
	StatTypeTradingSessionLowPrice  StatType = 4
	StatTypeTradingSessionHighPrice StatType = 5
	StatTypeClearedVolume           StatType = 6
	StatTypeLowestOffer             StatType = 7
	StatTypeHighestBid              StatType = 8
)

// StatisticsRow is a single vendor-disseminated statistic for an
// instrument, e.g. a settlement price or session high.
type StatisticsRow struct {
	TsEvent      uint64    `db:"ts_event" json:"ts_event"`
	TsRecv       uint64    `db:"ts_recv" json:"ts_recv"`
	TsRef        uint64    `db:"ts_ref" json:"ts_ref"`
	PublisherID  uint16    `db:"publisher_id" json:"publisher_id"`
	InstrumentID uint32    `db:"instrument_id" json:"instrument_id"`
	Symbol       string    `db:"symbol" json:"symbol"`
	StatType     StatType  `db:"stat_type" json:"stat_type"`
	StatValue    NullInt64 `db:"stat_value" json:"stat_value,omitempty"`
	Quantity     NullInt64 `db:"quantity" json:"quantity,omitempty"`
	Sequence     uint32    `db:"sequence" json:"sequence"`
	TsInDelta    int32     `db:"ts_in_delta" json:"ts_in_delta"`
	ChannelID    uint16    `db:"channel_id" json:"channel_id"`
	UpdateAction uint8     `db:"update_action" json:"update_action"`
	StatFlags    uint8     `db:"stat_flags" json:"stat_flags"`
}

func (r *StatisticsRow) Schema() Schema { return SchemaStatistics }

// CheckInvariants validates the non-negativity rule for stat_value. The
// (instrument_id, stat_type, ts_event) uniqueness invariant is enforced
// by the loader's conflict key, not here.
func (r *StatisticsRow) CheckInvariants() []Diagnostic {
	var diags []Diagnostic
	if v, ok := r.StatValue.Get(); ok && v < 0 {
		diags = append(diags, NewError("stat_value", "stat_value %d must be >= 0 when present", v))
	}
	return diags
}

///////////////////////////////////////////////////////////////////////////////

// InstrumentClass mirrors the vendor's one-character instrument
// classification code (e.g. 'F' future, 'C' call, 'P' put, 'K' stock).
type InstrumentClass byte

// DefinitionRow is an instrument's point-in-time definition: identifiers,
// classification, contract specs, price limits, lot sizes, and optional
// option/leg fields describing a spread.
type DefinitionRow struct {
	TsEvent      uint64 `db:"ts_event" json:"ts_event"`
	InstrumentID uint32 `db:"instrument_id" json:"instrument_id"`
	Symbol       string `db:"symbol" json:"symbol"`
	RawSymbol    string `db:"raw_symbol" json:"raw_symbol"`

	InstrumentClass InstrumentClass `db:"instrument_class" json:"instrument_class"`
	Asset           string          `db:"asset" json:"asset"`
	Exchange        string          `db:"exchange" json:"exchange"`
	Currency        string          `db:"currency" json:"currency"`
	SettlCurrency   string          `db:"settl_currency" json:"settl_currency"`
	SecurityType    string          `db:"security_type" json:"security_type"`
	Group           string          `db:"group" json:"group"`
	Cfi             string          `db:"cfi" json:"cfi"`

	Activation  uint64 `db:"activation" json:"activation"`
	Expiration  uint64 `db:"expiration" json:"expiration"`

	MinPriceIncrement  int64 `db:"min_price_increment" json:"min_price_increment"`
	DisplayFactor      int64 `db:"display_factor" json:"display_factor"`
	HighLimitPrice     int64 `db:"high_limit_price" json:"high_limit_price"`
	LowLimitPrice      int64 `db:"low_limit_price" json:"low_limit_price"`
	MaxPriceVariation  int64 `db:"max_price_variation" json:"max_price_variation"`
	UnitOfMeasureQty   int64 `db:"unit_of_measure_qty" json:"unit_of_measure_qty"`

	MinLotSizeRound     int32 `db:"min_lot_size_round" json:"min_lot_size_round"`
	MinLotSizeBlock     int32 `db:"min_lot_size_block" json:"min_lot_size_block"`
	ContractMultiplier  int32 `db:"contract_multiplier" json:"contract_multiplier"`

	// Option-specific fields, zero-valued for non-options.
	StrikePrice  NullInt64 `db:"strike_price" json:"strike_price,omitempty"`
	PutOrCall    string    `db:"put_or_call" json:"put_or_call,omitempty"`
	Underlying   string    `db:"underlying" json:"underlying,omitempty"`

	// Spread-leg fields. leg_count=0 implies leg_index is absent; a
	// non-zero leg_count requires every constituent row to carry a
	// leg_index identifying its position in the spread.
	LegCount int32     `db:"leg_count" json:"leg_count"`
	LegIndex NullInt64 `db:"leg_index" json:"leg_index,omitempty"`

	UserDefinedInstrument bool `db:"user_defined_instrument" json:"user_defined_instrument"`
}

func (r *DefinitionRow) Schema() Schema { return SchemaDefinition }

// CheckInvariants validates the definition's internal consistency rules.
func (r *DefinitionRow) CheckInvariants() []Diagnostic {
	var diags []Diagnostic
	if r.Activation > r.Expiration {
		diags = append(diags, NewError("activation", "activation %d after expiration %d", r.Activation, r.Expiration))
	}
	if r.HighLimitPrice < r.LowLimitPrice {
		diags = append(diags, NewError("high_limit_price", "high_limit_price %d below low_limit_price %d", r.HighLimitPrice, r.LowLimitPrice))
	}
	if r.MinPriceIncrement <= 0 {
		diags = append(diags, NewError("min_price_increment", "min_price_increment must be > 0"))
	}
	_, hasLeg := r.LegIndex.Get()
	if r.LegCount == 0 && hasLeg {
		diags = append(diags, NewError("leg_index", "leg_index set but leg_count is 0"))
	}
	if r.LegCount > 0 && !hasLeg {
		diags = append(diags, NewError("leg_index", "leg_count %d requires leg_index", r.LegCount))
	}
	return diags
}
