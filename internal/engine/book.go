package engine

import (
	"sync"
	"time"

	"github.com/google/btree"

	"github.com/efreitasn/simexchange/internal/domain"
)

// OrderBookEntry represents a single order resting on the book.
type OrderBookEntry struct {
	Price     int64
	CreatedAt time.Time
	Seq       uint64
	Order     *domain.Order
}

// PriceLevel represents an aggregated price level in the order book.
type PriceLevel struct {
	Price         int64
	TotalQuantity int64
	OrderCount    int
}

// bidLess defines ordering for the bid side: price descending, then
// created_at ascending, then arrival sequence ascending. Min() returns
// the best bid (highest price, earliest time).
func bidLess(a, b OrderBookEntry) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Seq < b.Seq
}

// askLess defines ordering for the ask side: price ascending, then
// created_at ascending, then arrival sequence ascending. Min() returns
// the best ask (lowest price, earliest time).
func askLess(a, b OrderBookEntry) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Seq < b.Seq
}

// OrderBook maintains the bid and ask sides for a single ticker using
// B-trees with a secondary index for O(log n) removal by order ID.
// Callers hold the book lock around every method.
type OrderBook struct {
	ticker string
	mu     sync.RWMutex
	bids   *btree.BTreeG[OrderBookEntry]
	asks   *btree.BTreeG[OrderBookEntry]
	index  map[string]OrderBookEntry // order_id → entry
}

// NewOrderBook creates an order book for the given ticker.
func NewOrderBook(ticker string) *OrderBook {
	const degree = 32
	return &OrderBook{
		ticker: ticker,
		bids:   btree.NewG[OrderBookEntry](degree, bidLess),
		asks:   btree.NewG[OrderBookEntry](degree, askLess),
		index:  make(map[string]OrderBookEntry),
	}
}

// Ticker returns the instrument this book belongs to.
func (ob *OrderBook) Ticker() string {
	return ob.ticker
}

// Lock acquires the write lock on the order book.
func (ob *OrderBook) Lock() { ob.mu.Lock() }

// Unlock releases the write lock on the order book.
func (ob *OrderBook) Unlock() { ob.mu.Unlock() }

// RLock acquires the read lock on the order book.
func (ob *OrderBook) RLock() { ob.mu.RLock() }

// RUnlock releases the read lock on the order book.
func (ob *OrderBook) RUnlock() { ob.mu.RUnlock() }

// Insert adds an order to the side given by its Side field.
func (ob *OrderBook) Insert(o *domain.Order) {
	entry := OrderBookEntry{
		Price:     o.Price,
		CreatedAt: o.CreatedAt,
		Seq:       o.Seq,
		Order:     o,
	}
	if o.Side == domain.OrderSideBuy {
		ob.bids.ReplaceOrInsert(entry)
	} else {
		ob.asks.ReplaceOrInsert(entry)
	}
	ob.index[o.OrderID] = entry
}

// Remove deletes an order from the book by order ID using the
// secondary index and returns it.
func (ob *OrderBook) Remove(orderID string) (*domain.Order, bool) {
	entry, ok := ob.index[orderID]
	if !ok {
		return nil, false
	}
	delete(ob.index, orderID)
	if entry.Order.Side == domain.OrderSideBuy {
		ob.bids.Delete(entry)
	} else {
		ob.asks.Delete(entry)
	}
	return entry.Order, true
}

// Get returns a resting order by ID.
func (ob *OrderBook) Get(orderID string) (*domain.Order, bool) {
	entry, ok := ob.index[orderID]
	if !ok {
		return nil, false
	}
	return entry.Order, true
}

// BestBid returns the highest-priority bid (highest price, earliest time).
func (ob *OrderBook) BestBid() (OrderBookEntry, bool) {
	return ob.bids.Min()
}

// BestAsk returns the highest-priority ask (lowest price, earliest time).
func (ob *OrderBook) BestAsk() (OrderBookEntry, bool) {
	return ob.asks.Min()
}

// TopBids returns up to n aggregated price levels from the bid side,
// ordered by price descending.
func (ob *OrderBook) TopBids(n int) []PriceLevel {
	return topLevels(ob.bids, n)
}

// TopAsks returns up to n aggregated price levels from the ask side,
// ordered by price ascending.
func (ob *OrderBook) TopAsks(n int) []PriceLevel {
	return topLevels(ob.asks, n)
}

// topLevels iterates the B-tree in order and aggregates entries into
// at most n price levels.
func topLevels(tree *btree.BTreeG[OrderBookEntry], n int) []PriceLevel {
	if n <= 0 {
		return []PriceLevel{}
	}
	levels := make([]PriceLevel, 0, n)
	tree.Ascend(func(entry OrderBookEntry) bool {
		if len(levels) > 0 && levels[len(levels)-1].Price == entry.Price {
			levels[len(levels)-1].TotalQuantity += entry.Order.RemainingQuantity
			levels[len(levels)-1].OrderCount++
			return true
		}
		if len(levels) >= n {
			return false
		}
		levels = append(levels, PriceLevel{
			Price:         entry.Price,
			TotalQuantity: entry.Order.RemainingQuantity,
			OrderCount:    1,
		})
		return true
	})
	return levels
}

// Orders returns every resting order, bids first, each side in
// priority order.
func (ob *OrderBook) Orders() []*domain.Order {
	out := make([]*domain.Order, 0, len(ob.index))
	collect := func(entry OrderBookEntry) bool {
		out = append(out, entry.Order)
		return true
	}
	ob.bids.Ascend(collect)
	ob.asks.Ascend(collect)
	return out
}

// BidCount returns the number of individual bid orders on the book.
func (ob *OrderBook) BidCount() int {
	return ob.bids.Len()
}

// AskCount returns the number of individual ask orders on the book.
func (ob *OrderBook) AskCount() int {
	return ob.asks.Len()
}

// BookManager is a thread-safe map of ticker → OrderBook.
type BookManager struct {
	mu    sync.RWMutex
	books map[string]*OrderBook
}

// NewBookManager creates a new BookManager.
func NewBookManager() *BookManager {
	return &BookManager{
		books: make(map[string]*OrderBook),
	}
}

// GetOrCreate returns the order book for the given ticker, creating
// one if it doesn't already exist.
func (bm *BookManager) GetOrCreate(ticker string) *OrderBook {
	bm.mu.RLock()
	book, ok := bm.books[ticker]
	bm.mu.RUnlock()
	if ok {
		return book
	}

	bm.mu.Lock()
	defer bm.mu.Unlock()
	// Double-check after acquiring write lock.
	if book, ok = bm.books[ticker]; ok {
		return book
	}
	book = NewOrderBook(ticker)
	bm.books[ticker] = book
	return book
}
