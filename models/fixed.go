// Copyright (c) 2024 Neomantra Corp

package models

// PriceScale is the denominator of the fixed-point prices used
// throughout the pipeline: one unit is 1e-9, matching the vendor's own
// fixed-point convention so no precision is lost converting in or out.
const PriceScale float64 = 1000000000.0

// Fixed9ToFloat64 converts a 1e-9-scaled fixed-point price to a float64
// for display or arithmetic that does not need to round-trip losslessly.
func Fixed9ToFloat64(fixed int64) float64 {
	return float64(fixed) / PriceScale
}

// Float64ToFixed9 converts a float64 price into the 1e-9-scaled
// fixed-point representation stored on disk.
func Float64ToFixed9(f float64) int64 {
	return int64(f * PriceScale)
}

// NullInt64 is an explicit optional int64: present distinguishes a real
// zero from an absent value, so batch loaders can bind a SQL NULL
// instead of silently coercing missing data to 0.
type NullInt64 struct {
	Value   int64
	Present bool
}

// NewNullInt64 returns a present NullInt64 wrapping v.
func NewNullInt64(v int64) NullInt64 {
	return NullInt64{Value: v, Present: true}
}

// Get returns the underlying value and whether it was present.
func (n NullInt64) Get() (int64, bool) {
	return n.Value, n.Present
}

// NullFloat64 is an explicit optional float64, following the same
// present/absent convention as NullInt64.
type NullFloat64 struct {
	Value   float64
	Present bool
}

// NewNullFloat64 returns a present NullFloat64 wrapping v.
func NewNullFloat64(v float64) NullFloat64 {
	return NullFloat64{Value: v, Present: true}
}

// Get returns the underlying value and whether it was present.
func (n NullFloat64) Get() (float64, bool) {
	return n.Value, n.Present
}
