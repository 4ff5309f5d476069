package domain

import "time"

// OrderSide indicates whether an order buys or sells.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Valid reports whether s is BUY or SELL.
func (s OrderSide) Valid() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

// Opposite returns the other side.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// Order is a priced instruction resting on (or about to enter) a book.
// Every order is a limit order; callers wanting immediacy set an
// aggressive price.
type Order struct {
	OrderID           string
	Seq               uint64 // arrival counter, breaks timestamp ties
	AccountID         string
	Ticker            string
	Side              OrderSide
	Price             int64
	Quantity          int64
	RemainingQuantity int64
	CreatedAt         time.Time // simulated time

	// Injected marks an order the liquidity injector has already answered
	// with a synthetic counter-order.
	Injected bool
	// Synthetic marks an order created by the liquidity injector.
	Synthetic bool
}

// FilledQuantity returns the number of shares executed so far.
func (o *Order) FilledQuantity() int64 {
	return o.Quantity - o.RemainingQuantity
}
