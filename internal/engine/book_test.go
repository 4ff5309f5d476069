package engine

import (
	"testing"
	"time"

	"github.com/efreitasn/simexchange/internal/domain"
)

// helper to create a minimal resting order.
func makeOrder(id string, side domain.OrderSide, price int64, createdAt time.Time, seq uint64, remaining int64) *domain.Order {
	return &domain.Order{
		OrderID:           id,
		Seq:               seq,
		Side:              side,
		Price:             price,
		Quantity:          remaining,
		RemainingQuantity: remaining,
		CreatedAt:         createdAt,
	}
}

func entryOf(o *domain.Order) OrderBookEntry {
	return OrderBookEntry{Price: o.Price, CreatedAt: o.CreatedAt, Seq: o.Seq, Order: o}
}

var baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestBidLess_PriceDescending(t *testing.T) {
	a := entryOf(makeOrder("a", domain.OrderSideBuy, 200, baseTime, 1, 1))
	b := entryOf(makeOrder("b", domain.OrderSideBuy, 100, baseTime, 2, 1))
	// Higher price should come first (be "less" in bid ordering).
	if !bidLess(a, b) {
		t.Error("expected higher price to be less on bid side")
	}
	if bidLess(b, a) {
		t.Error("expected lower price to not be less on bid side")
	}
}

func TestBidLess_TimeAscending(t *testing.T) {
	a := entryOf(makeOrder("a", domain.OrderSideBuy, 100, baseTime, 2, 1))
	b := entryOf(makeOrder("b", domain.OrderSideBuy, 100, baseTime.Add(time.Second), 1, 1))
	if !bidLess(a, b) {
		t.Error("expected earlier time to be less on bid side at same price")
	}
	if bidLess(b, a) {
		t.Error("expected later time to not be less on bid side at same price")
	}
}

func TestBidLess_SeqAscending(t *testing.T) {
	a := entryOf(makeOrder("z", domain.OrderSideBuy, 100, baseTime, 1, 1))
	b := entryOf(makeOrder("a", domain.OrderSideBuy, 100, baseTime, 2, 1))
	if !bidLess(a, b) {
		t.Error("expected lower seq to be less on bid side at same price and time")
	}
	if bidLess(b, a) {
		t.Error("expected higher seq to not be less on bid side at same price and time")
	}
}

func TestAskLess_PriceAscending(t *testing.T) {
	a := entryOf(makeOrder("a", domain.OrderSideSell, 100, baseTime, 1, 1))
	b := entryOf(makeOrder("b", domain.OrderSideSell, 200, baseTime, 2, 1))
	if !askLess(a, b) {
		t.Error("expected lower price to be less on ask side")
	}
	if askLess(b, a) {
		t.Error("expected higher price to not be less on ask side")
	}
}

func TestAskLess_TimeAscending(t *testing.T) {
	a := entryOf(makeOrder("a", domain.OrderSideSell, 100, baseTime, 2, 1))
	b := entryOf(makeOrder("b", domain.OrderSideSell, 100, baseTime.Add(time.Second), 1, 1))
	if !askLess(a, b) {
		t.Error("expected earlier time to be less on ask side at same price")
	}
}

func TestAskLess_SeqAscending(t *testing.T) {
	a := entryOf(makeOrder("z", domain.OrderSideSell, 100, baseTime, 1, 1))
	b := entryOf(makeOrder("a", domain.OrderSideSell, 100, baseTime, 2, 1))
	if !askLess(a, b) {
		t.Error("expected lower seq to be less on ask side at same price and time")
	}
}

func TestOrderBook_InsertAndBestBid(t *testing.T) {
	ob := NewOrderBook("IT008")
	ob.Insert(makeOrder("o1", domain.OrderSideBuy, 100, baseTime, 1, 10))
	ob.Insert(makeOrder("o2", domain.OrderSideBuy, 200, baseTime, 2, 5))

	best, ok := ob.BestBid()
	if !ok {
		t.Fatal("expected best bid to exist")
	}
	if best.Order.OrderID != "o2" {
		t.Errorf("expected best bid o2 (price 200), got %s (price %d)", best.Order.OrderID, best.Price)
	}
}

func TestOrderBook_InsertAndBestAsk(t *testing.T) {
	ob := NewOrderBook("IT008")
	ob.Insert(makeOrder("o1", domain.OrderSideSell, 200, baseTime, 1, 10))
	ob.Insert(makeOrder("o2", domain.OrderSideSell, 100, baseTime, 2, 5))

	best, ok := ob.BestAsk()
	if !ok {
		t.Fatal("expected best ask to exist")
	}
	if best.Order.OrderID != "o2" {
		t.Errorf("expected best ask o2 (price 100), got %s (price %d)", best.Order.OrderID, best.Price)
	}
}

func TestOrderBook_EmptyBest(t *testing.T) {
	ob := NewOrderBook("IT008")
	if _, ok := ob.BestBid(); ok {
		t.Error("expected no best bid on empty book")
	}
	if _, ok := ob.BestAsk(); ok {
		t.Error("expected no best ask on empty book")
	}
}

func TestOrderBook_Remove(t *testing.T) {
	ob := NewOrderBook("IT008")
	ob.Insert(makeOrder("o1", domain.OrderSideBuy, 100, baseTime, 1, 10))
	ob.Insert(makeOrder("o2", domain.OrderSideBuy, 200, baseTime, 2, 5))

	removed, ok := ob.Remove("o2")
	if !ok || removed.OrderID != "o2" {
		t.Fatalf("Remove(o2) = %v, %v", removed, ok)
	}
	best, ok := ob.BestBid()
	if !ok {
		t.Fatal("expected best bid after removing o2")
	}
	if best.Order.OrderID != "o1" {
		t.Errorf("expected best bid o1 after removing o2, got %s", best.Order.OrderID)
	}
	if ob.BidCount() != 1 {
		t.Errorf("expected bid count 1, got %d", ob.BidCount())
	}
	if _, ok := ob.Get("o2"); ok {
		t.Error("expected o2 to be gone from the index")
	}
}

func TestOrderBook_RemoveNonExistent(t *testing.T) {
	ob := NewOrderBook("IT008")
	if _, ok := ob.Remove("nonexistent"); ok {
		t.Error("expected Remove of unknown id to report false")
	}
}

func TestOrderBook_RemoveFromAskSide(t *testing.T) {
	ob := NewOrderBook("IT008")
	ob.Insert(makeOrder("o1", domain.OrderSideSell, 100, baseTime, 1, 10))
	ob.Remove("o1")
	if ob.AskCount() != 0 {
		t.Errorf("expected ask count 0 after removal, got %d", ob.AskCount())
	}
}

func TestOrderBook_ReinsertKeepsPriority(t *testing.T) {
	ob := NewOrderBook("IT008")
	first := makeOrder("first", domain.OrderSideBuy, 100, baseTime, 1, 10)
	ob.Insert(first)
	ob.Insert(makeOrder("second", domain.OrderSideBuy, 100, baseTime, 2, 10))

	ob.Remove("first")
	ob.Insert(first)

	best, _ := ob.BestBid()
	if best.Order.OrderID != "first" {
		t.Errorf("expected reinserted order to keep its priority, got %s", best.Order.OrderID)
	}
}

func TestOrderBook_BidCount_AskCount(t *testing.T) {
	ob := NewOrderBook("IT008")
	if ob.BidCount() != 0 || ob.AskCount() != 0 {
		t.Error("expected empty book to have 0 counts")
	}
	ob.Insert(makeOrder("b1", domain.OrderSideBuy, 100, baseTime, 1, 1))
	ob.Insert(makeOrder("b2", domain.OrderSideBuy, 200, baseTime, 2, 1))
	ob.Insert(makeOrder("a1", domain.OrderSideSell, 300, baseTime, 3, 1))
	if ob.BidCount() != 2 {
		t.Errorf("expected bid count 2, got %d", ob.BidCount())
	}
	if ob.AskCount() != 1 {
		t.Errorf("expected ask count 1, got %d", ob.AskCount())
	}
}

func TestOrderBook_TopBids(t *testing.T) {
	ob := NewOrderBook("IT008")
	// Insert 3 bids at 2 price levels: 200 (2 orders) and 100 (1 order).
	ob.Insert(makeOrder("b1", domain.OrderSideBuy, 200, baseTime, 1, 10))
	ob.Insert(makeOrder("b2", domain.OrderSideBuy, 200, baseTime.Add(time.Second), 2, 5))
	ob.Insert(makeOrder("b3", domain.OrderSideBuy, 100, baseTime, 3, 20))

	levels := ob.TopBids(5)
	if len(levels) != 2 {
		t.Fatalf("expected 2 price levels, got %d", len(levels))
	}
	if levels[0].Price != 200 || levels[0].TotalQuantity != 15 || levels[0].OrderCount != 2 {
		t.Errorf("level 0: got price=%d qty=%d count=%d", levels[0].Price, levels[0].TotalQuantity, levels[0].OrderCount)
	}
	if levels[1].Price != 100 || levels[1].TotalQuantity != 20 || levels[1].OrderCount != 1 {
		t.Errorf("level 1: got price=%d qty=%d count=%d", levels[1].Price, levels[1].TotalQuantity, levels[1].OrderCount)
	}
}

func TestOrderBook_TopBids_LimitN(t *testing.T) {
	ob := NewOrderBook("IT008")
	ob.Insert(makeOrder("b1", domain.OrderSideBuy, 300, baseTime, 1, 1))
	ob.Insert(makeOrder("b2", domain.OrderSideBuy, 200, baseTime, 2, 1))
	ob.Insert(makeOrder("b3", domain.OrderSideBuy, 100, baseTime, 3, 1))

	levels := ob.TopBids(2)
	if len(levels) != 2 {
		t.Fatalf("expected 2 levels, got %d", len(levels))
	}
	if levels[0].Price != 300 || levels[1].Price != 200 {
		t.Errorf("expected prices [300, 200], got [%d, %d]", levels[0].Price, levels[1].Price)
	}
}

func TestOrderBook_TopAsks(t *testing.T) {
	ob := NewOrderBook("IT008")
	ob.Insert(makeOrder("a1", domain.OrderSideSell, 100, baseTime, 1, 10))
	ob.Insert(makeOrder("a2", domain.OrderSideSell, 100, baseTime.Add(time.Second), 2, 5))
	ob.Insert(makeOrder("a3", domain.OrderSideSell, 200, baseTime, 3, 20))

	levels := ob.TopAsks(5)
	if len(levels) != 2 {
		t.Fatalf("expected 2 price levels, got %d", len(levels))
	}
	if levels[0].Price != 100 || levels[0].TotalQuantity != 15 || levels[0].OrderCount != 2 {
		t.Errorf("level 0: got price=%d qty=%d count=%d", levels[0].Price, levels[0].TotalQuantity, levels[0].OrderCount)
	}
	if levels[1].Price != 200 || levels[1].TotalQuantity != 20 || levels[1].OrderCount != 1 {
		t.Errorf("level 1: got price=%d qty=%d count=%d", levels[1].Price, levels[1].TotalQuantity, levels[1].OrderCount)
	}
}

func TestOrderBook_TopLevels_EmptyAndZeroN(t *testing.T) {
	ob := NewOrderBook("IT008")
	if levels := ob.TopBids(10); len(levels) != 0 {
		t.Errorf("expected 0 levels on empty book, got %d", len(levels))
	}
	ob.Insert(makeOrder("a1", domain.OrderSideSell, 100, baseTime, 1, 10))
	if levels := ob.TopAsks(0); len(levels) != 0 {
		t.Errorf("expected no levels for n=0, got %v", levels)
	}
}

func TestOrderBook_Orders(t *testing.T) {
	ob := NewOrderBook("IT008")
	ob.Insert(makeOrder("a2", domain.OrderSideSell, 300, baseTime, 1, 1))
	ob.Insert(makeOrder("b1", domain.OrderSideBuy, 100, baseTime, 2, 1))
	ob.Insert(makeOrder("a1", domain.OrderSideSell, 200, baseTime, 3, 1))
	ob.Insert(makeOrder("b2", domain.OrderSideBuy, 150, baseTime, 4, 1))

	var got []string
	for _, o := range ob.Orders() {
		got = append(got, o.OrderID)
	}
	want := []string{"b2", "b1", "a1", "a2"}
	if len(got) != len(want) {
		t.Fatalf("Orders() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Orders()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

// BookManager tests

func TestBookManager_GetOrCreate(t *testing.T) {
	bm := NewBookManager()
	book1 := bm.GetOrCreate("IT008")
	if book1 == nil {
		t.Fatal("expected non-nil book")
	}
	if book1.Ticker() != "IT008" {
		t.Errorf("expected ticker IT008, got %s", book1.Ticker())
	}

	// Same ticker returns same book.
	if book2 := bm.GetOrCreate("IT008"); book1 != book2 {
		t.Error("expected same book instance for same ticker")
	}

	// Different ticker returns different book.
	if book3 := bm.GetOrCreate("EN002"); book1 == book3 {
		t.Error("expected different book for different ticker")
	}
}

func TestBookManager_GetOrCreate_Concurrent(t *testing.T) {
	bm := NewBookManager()
	const goroutines = 50
	results := make(chan *OrderBook, goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			results <- bm.GetOrCreate("IT008")
		}()
	}

	var first *OrderBook
	for i := 0; i < goroutines; i++ {
		book := <-results
		if first == nil {
			first = book
		} else if book != first {
			t.Error("expected all goroutines to get the same book instance")
		}
	}
}
