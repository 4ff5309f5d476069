package domain

import (
	"fmt"
	"math"
)

// PriceFromFloat converts a JSON number to integer currency units.
// Fractional units are rejected rather than truncated so that a client
// never trades at a price it did not send.
func PriceFromFloat(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("price must be a finite number")
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("price must be a whole number of currency units")
	}
	if f > math.MaxInt64/2 || f < math.MinInt64/2 {
		return 0, fmt.Errorf("price out of range")
	}
	return int64(f), nil
}

// ScaleBps returns v × bps / 10000, truncated toward zero.
func ScaleBps(v, bps int64) int64 {
	return v * bps / 10000
}

// Upper bounds on order fields. They keep price × quantity and the
// basis-point scaling of prices well inside int64.
const (
	MaxPrice    int64 = 1_000_000_000
	MaxQuantity int64 = 1_000_000_000
)
