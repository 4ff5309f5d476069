package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Date is a simulated calendar day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateIn returns the calendar day of t in loc.
func DateIn(t time.Time, loc *time.Location) Date {
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string. The empty string yields the zero Date.
func ParseDate(s string) (Date, error) {
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}, nil
}

// IsZero reports whether d is unset.
func (d Date) IsZero() bool {
	return d == Date{}
}

// After reports whether d is a strictly later day than o.
func (d Date) After(o Date) bool {
	if d.Year != o.Year {
		return d.Year > o.Year
	}
	if d.Month != o.Month {
		return d.Month > o.Month
	}
	return d.Day > o.Day
}

// String formats d as YYYY-MM-DD, or "" when unset.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Instrument is a tradable ticker with its price bookkeeping.
type Instrument struct {
	Ticker         string
	Name           string
	Sector         string
	CurrentPrice   int64
	PrevClosePrice int64   // 0 until the first day boundary is crossed
	ChangeRate     float64 // percent, 2 decimals
	LastTradeDate  Date    // zero until the first trade
}

// ApplyTrade records an execution at price on the given simulated day.
//
// When day is strictly later than the last traded day, the pre-trade
// price becomes the previous close before the new price is applied; this
// holds across gaps of several days. The change rate is measured against
// the previous close, or against the new price itself while no close has
// been established.
func (i *Instrument) ApplyTrade(price int64, day Date) {
	switch {
	case i.LastTradeDate.IsZero():
		i.LastTradeDate = day
	case day.After(i.LastTradeDate):
		i.PrevClosePrice = i.CurrentPrice
		i.LastTradeDate = day
	}

	i.CurrentPrice = price

	ref := i.PrevClosePrice
	if ref <= 0 {
		ref = i.CurrentPrice
	}
	i.ChangeRate = ChangeRate(i.CurrentPrice, ref)
}

// ChangeRate returns (price − ref) / ref × 100 rounded to 2 decimals,
// or 0 when ref is not positive.
func ChangeRate(price, ref int64) float64 {
	if ref <= 0 {
		return 0
	}
	rate := decimal.NewFromInt(price - ref).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(ref)).
		Round(2)
	f, _ := rate.Float64()
	return f
}
