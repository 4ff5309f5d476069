package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/simexchange/internal/domain"
)

// inject answers near-market human orders with a synthetic market-maker
// counter-order at the same price and remaining quantity, so they can
// fill in the matching pass that follows. Each resting order is answered
// at most once. The caller holds the book lock.
func (e *Engine) inject(book *OrderBook, current int64, at time.Time) {
	if e.cfg.MarketMakerID == "" || !e.accounts.Exists(e.cfg.MarketMakerID) {
		return
	}

	var targets []*domain.Order
	for _, o := range book.Orders() {
		if o.Injected || o.Synthetic || !e.isHuman(o.AccountID) {
			continue
		}
		if e.nearMarket(o, current) {
			targets = append(targets, o)
		}
	}

	for _, o := range targets {
		o.Injected = true
		e.orders.Put(*o)

		counter := &domain.Order{
			OrderID:           uuid.New().String(),
			Seq:               e.seq.Add(1),
			AccountID:         e.cfg.MarketMakerID,
			Ticker:            o.Ticker,
			Side:              o.Side.Opposite(),
			Price:             o.Price,
			Quantity:          o.RemainingQuantity,
			RemainingQuantity: o.RemainingQuantity,
			CreatedAt:         at,
			Injected:          true,
			Synthetic:         true,
		}
		e.rest(book, counter)
		e.metrics.OrderInjected(o.Ticker)
		e.logger.Debug("liquidity injected",
			"ticker", o.Ticker,
			"order_id", o.OrderID,
			"counter_order_id", counter.OrderID,
			"side", counter.Side,
			"price", counter.Price,
			"quantity", counter.Quantity,
		)
	}
}

// nearMarket reports whether a human order is priced close enough to the
// current price to be guaranteed a counterparty.
func (e *Engine) nearMarket(o *domain.Order, current int64) bool {
	if current <= 0 {
		return false
	}
	switch o.Side {
	case domain.OrderSideBuy:
		return o.Price*10000 >= current*e.cfg.InjectBidBps
	case domain.OrderSideSell:
		return o.Price*10000 <= current*e.cfg.InjectAskBps
	}
	return false
}

func (e *Engine) isHuman(accountID string) bool {
	a, err := e.accounts.Get(accountID)
	if err != nil {
		return false
	}
	return a.Class == domain.AccountClassHuman
}
