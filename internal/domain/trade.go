package domain

import "time"

// Trade is an executed pairing of a buy and a sell order. Append-only.
type Trade struct {
	TradeID    string
	Ticker     string
	Price      int64
	Quantity   int64
	BuyerID    string
	SellerID   string
	ExecutedAt time.Time // simulated

	// Synthetic is set when either leg was a liquidity-injected order.
	Synthetic bool
}

// Notional returns price × quantity.
func (t *Trade) Notional() int64 {
	return t.Price * t.Quantity
}

// Settlement is the full set of effects of one executed trade. The
// persistence collaborator commits it as a single transaction.
type Settlement struct {
	Trade      Trade
	Buyer      AccountState
	Seller     AccountState
	Instrument Instrument
}
