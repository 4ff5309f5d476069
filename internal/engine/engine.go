package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/simexchange/internal/clock"
	"github.com/efreitasn/simexchange/internal/domain"
	"github.com/efreitasn/simexchange/internal/store"
)

// OrderStatus is the outcome of a PlaceOrder call.
type OrderStatus string

const (
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusPending  OrderStatus = "PENDING"
	OrderStatusRejected OrderStatus = "REJECTED"
)

// Persister commits the effects of one settlement atomically. The engine
// applies a settlement in memory only after CommitSettlement succeeds.
type Persister interface {
	CommitSettlement(ctx context.Context, s *domain.Settlement) error
}

// TradeListener is notified of every settled trade, after the book lock
// has been released.
type TradeListener interface {
	TradeExecuted(t domain.Trade)
}

// Metrics receives engine counters. Implementations must be safe for
// concurrent use.
type Metrics interface {
	OrderPlaced(ticker string, status OrderStatus)
	TradeSettled(t domain.Trade)
	SettlementSkipped(ticker string, reason error)
	SettlementFailed(ticker string)
	OrderInjected(ticker string)
}

type nopMetrics struct{}

func (nopMetrics) OrderPlaced(string, OrderStatus) {}
func (nopMetrics) TradeSettled(domain.Trade)       {}
func (nopMetrics) SettlementSkipped(string, error) {}
func (nopMetrics) SettlementFailed(string)         {}
func (nopMetrics) OrderInjected(string)            {}

// Config holds the engine's policy parameters.
type Config struct {
	MarketMakerID string
	InjectBidBps  int64 // human BUY at or above current × bps/10000 gets a synthetic SELL
	InjectAskBps  int64 // human SELL at or below current × bps/10000 gets a synthetic BUY
}

// PlaceOrderRequest is the input to PlaceOrder. At is the simulated time
// of the submission; nil lets the clock decide.
type PlaceOrderRequest struct {
	AccountID string
	Ticker    string
	Side      domain.OrderSide
	Quantity  int64
	Price     int64
	At        *time.Time
}

// PlaceOrderResult describes what happened to a submitted order. Order
// is a copy of the order's state after the matching cycle. Trades lists
// every trade settled during the call, in execution order.
type PlaceOrderResult struct {
	Status  OrderStatus
	Message string
	Order   domain.Order
	Trades  []domain.Trade
}

// Snapshot is a point-in-time view of an instrument and its book.
type Snapshot struct {
	Ticker         string
	CurrentPrice   int64
	PrevClosePrice int64
	ChangeRate     float64
	BestBid        *int64
	BestAsk        *int64
	BidDepth       int
	AskDepth       int
}

// BookView is the aggregated depth of an order book.
type BookView struct {
	Ticker string
	Bids   []PriceLevel
	Asks   []PriceLevel
}

// Engine matches orders per instrument and settles the resulting trades.
// Each instrument's book lock is held for the whole inject, match and
// settle sequence; different instruments proceed in parallel.
type Engine struct {
	cfg         Config
	books       *BookManager
	accounts    *store.AccountStore
	instruments *store.InstrumentStore
	trades      *store.TradeStore
	orders      *store.OrderStore
	clock       *clock.Clock
	persister   Persister
	metrics     Metrics
	listeners   []TradeListener
	seq         atomic.Uint64
	logger      *slog.Logger
}

// NewEngine creates an Engine. persister may be nil, in which case
// settlements are applied in memory only.
func NewEngine(
	cfg Config,
	accounts *store.AccountStore,
	instruments *store.InstrumentStore,
	trades *store.TradeStore,
	orders *store.OrderStore,
	clk *clock.Clock,
	persister Persister,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		cfg:         cfg,
		books:       NewBookManager(),
		accounts:    accounts,
		instruments: instruments,
		trades:      trades,
		orders:      orders,
		clock:       clk,
		persister:   persister,
		metrics:     nopMetrics{},
		logger:      logger,
	}
}

// SetMetrics installs a metrics sink. Call before the engine is used.
func (e *Engine) SetMetrics(m Metrics) {
	if m == nil {
		m = nopMetrics{}
	}
	e.metrics = m
}

// AddTradeListener registers l for trade notifications. Call before the
// engine is used.
func (e *Engine) AddTradeListener(l TradeListener) {
	e.listeners = append(e.listeners, l)
}

// PlaceOrder validates an order, inserts it into its instrument's book and
// runs a matching cycle. A rejected order never touches the book; the
// returned error is then one of domain.ErrInvalidOrder,
// domain.ErrUnknownInstrument or domain.ErrUnknownAccount. If persisting a
// settlement fails the cycle stops, the order keeps resting and the error
// wraps domain.ErrEngineInternal.
func (e *Engine) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if err := e.validate(req); err != nil {
		e.metrics.OrderPlaced(req.Ticker, OrderStatusRejected)
		return &PlaceOrderResult{Status: OrderStatusRejected, Message: err.Error()}, err
	}

	book := e.books.GetOrCreate(req.Ticker)
	book.Lock()

	at := e.clock.Stamp(req.At)
	order := &domain.Order{
		OrderID:           uuid.New().String(),
		Seq:               e.seq.Add(1),
		AccountID:         req.AccountID,
		Ticker:            req.Ticker,
		Side:              req.Side,
		Price:             req.Price,
		Quantity:          req.Quantity,
		RemainingQuantity: req.Quantity,
		CreatedAt:         at,
	}
	e.rest(book, order)

	trades, cycleErr := e.runCycle(ctx, book, at)
	result := &PlaceOrderResult{
		Status: OrderStatusPending,
		Order:  *order,
		Trades: trades,
	}
	book.Unlock()

	if len(trades) > 0 {
		result.Status = OrderStatusFilled
	}
	e.metrics.OrderPlaced(req.Ticker, result.Status)
	e.notify(trades)

	if cycleErr != nil {
		result.Message = cycleErr.Error()
		return result, cycleErr
	}
	return result, nil
}

func (e *Engine) validate(req PlaceOrderRequest) error {
	if !req.Side.Valid() {
		return fmt.Errorf("%w: side must be BUY or SELL", domain.ErrInvalidOrder)
	}
	if req.Quantity <= 0 || req.Quantity > domain.MaxQuantity {
		return fmt.Errorf("%w: quantity must be between 1 and %d", domain.ErrInvalidOrder, domain.MaxQuantity)
	}
	if req.Price <= 0 || req.Price > domain.MaxPrice {
		return fmt.Errorf("%w: price must be between 1 and %d", domain.ErrInvalidOrder, domain.MaxPrice)
	}
	if !e.instruments.Exists(req.Ticker) {
		return fmt.Errorf("%w: %s", domain.ErrUnknownInstrument, req.Ticker)
	}
	if !e.accounts.Exists(req.AccountID) {
		return fmt.Errorf("%w: %s", domain.ErrUnknownAccount, req.AccountID)
	}
	return nil
}

// runCycle injects liquidity and then matches the book until it is
// uncrossed. Orders whose settlement is skipped, and market-maker orders
// that would cross another market-maker order, are set aside for the rest
// of the cycle and put back with their original priority before it
// returns. The caller holds the book lock.
func (e *Engine) runCycle(ctx context.Context, book *OrderBook, at time.Time) ([]domain.Trade, error) {
	inst, err := e.instruments.Get(book.Ticker())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEngineInternal, err)
	}
	e.inject(book, inst.CurrentPrice, at)

	var excluded []*domain.Order
	defer func() {
		for _, o := range excluded {
			book.Insert(o)
		}
	}()

	trades := make([]domain.Trade, 0)
	for {
		bid, okBid := book.BestBid()
		ask, okAsk := book.BestAsk()
		if !okBid || !okAsk || bid.Price < ask.Price {
			return trades, nil
		}

		buy, sell := bid.Order, ask.Order
		if e.marketMakerPair(buy, sell) {
			// The market maker never trades with itself; its quote steps
			// aside so synthetic liquidity reaches the human order.
			aside := sell
			if sell.Synthetic && !buy.Synthetic {
				aside = buy
			}
			book.Remove(aside.OrderID)
			excluded = append(excluded, aside)
			continue
		}
		price := ClearingPrice(bid.Price, ask.Price)
		qty := min(buy.RemainingQuantity, sell.RemainingQuantity)

		out := e.settle(ctx, buy, sell, price, qty, at)
		switch out.Kind {
		case OutcomeSettled:
			trades = append(trades, out.Trade)
			e.fill(book, buy, qty)
			e.fill(book, sell, qty)
		case OutcomeSkipped:
			e.logger.Debug("settlement skipped",
				"ticker", book.Ticker(),
				"order_id", out.Offender.OrderID,
				"account_id", out.Offender.AccountID,
				"reason", out.Err,
			)
			e.metrics.SettlementSkipped(book.Ticker(), out.Err)
			book.Remove(out.Offender.OrderID)
			excluded = append(excluded, out.Offender)
		case OutcomeFailed:
			return trades, out.Err
		}
	}
}

func (e *Engine) marketMakerPair(buy, sell *domain.Order) bool {
	mm := e.cfg.MarketMakerID
	return mm != "" && buy.AccountID == mm && sell.AccountID == mm
}

// ClearingPrice is the midpoint of the crossing bid and ask, rounded half
// up to a whole currency unit.
func ClearingPrice(bid, ask int64) int64 {
	return (bid + ask + 1) / 2
}

// rest puts an order on the book and indexes it. The caller holds the
// book lock.
func (e *Engine) rest(book *OrderBook, o *domain.Order) {
	book.Insert(o)
	e.orders.Put(*o)
}

// fill reduces an order by qty, removing it once nothing remains.
func (e *Engine) fill(book *OrderBook, o *domain.Order, qty int64) {
	o.RemainingQuantity -= qty
	if o.RemainingQuantity == 0 {
		book.Remove(o.OrderID)
		e.orders.Remove(o.OrderID)
		return
	}
	e.orders.Put(*o)
}

func (e *Engine) notify(trades []domain.Trade) {
	for _, t := range trades {
		for _, l := range e.listeners {
			l.TradeExecuted(t)
		}
	}
}

// CancelOrder removes a resting order from its instrument's book and
// returns its final state. It returns domain.ErrOrderNotFound if the order
// is not resting on that book or belongs to another account.
func (e *Engine) CancelOrder(ctx context.Context, ticker, accountID, orderID string) (domain.Order, error) {
	if !e.instruments.Exists(ticker) {
		return domain.Order{}, domain.ErrUnknownInstrument
	}
	book := e.books.GetOrCreate(ticker)
	book.Lock()
	defer book.Unlock()

	// Another account's order is reported as missing.
	if o, ok := book.Get(orderID); !ok || o.AccountID != accountID {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	o, _ := book.Remove(orderID)
	e.orders.Remove(orderID)
	return *o, nil
}

// Snapshot returns the instrument's prices and top of book. It has no
// side effects.
func (e *Engine) Snapshot(ticker string) (*Snapshot, error) {
	inst, err := e.instruments.Get(ticker)
	if err != nil {
		return nil, err
	}
	book := e.books.GetOrCreate(ticker)
	book.RLock()
	defer book.RUnlock()

	// Re-read under the book lock so price and book agree.
	if inst, err = e.instruments.Get(ticker); err != nil {
		return nil, err
	}
	snap := &Snapshot{
		Ticker:         inst.Ticker,
		CurrentPrice:   inst.CurrentPrice,
		PrevClosePrice: inst.PrevClosePrice,
		ChangeRate:     inst.ChangeRate,
		BidDepth:       book.BidCount(),
		AskDepth:       book.AskCount(),
	}
	if bid, ok := book.BestBid(); ok {
		p := bid.Price
		snap.BestBid = &p
	}
	if ask, ok := book.BestAsk(); ok {
		p := ask.Price
		snap.BestAsk = &p
	}
	return snap, nil
}

// Book returns up to depth aggregated price levels per side.
func (e *Engine) Book(ticker string, depth int) (*BookView, error) {
	if !e.instruments.Exists(ticker) {
		return nil, domain.ErrUnknownInstrument
	}
	book := e.books.GetOrCreate(ticker)
	book.RLock()
	defer book.RUnlock()

	return &BookView{
		Ticker: ticker,
		Bids:   book.TopBids(depth),
		Asks:   book.TopAsks(depth),
	}, nil
}
