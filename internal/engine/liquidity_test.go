package engine

import (
	"context"
	"testing"

	"github.com/efreitasn/simexchange/internal/domain"
)

func withMarketMaker(te *testEngine) *domain.Account {
	return te.addAccount(mmID, domain.AccountClassMarketMaker, 1_000_000_000, domain.Holdings{"IT008": 1_000_000})
}

func countOrdersBy(te *testEngine, accountID string) int {
	_, total := te.orders.ListByAccount(accountID, "", 1, 1000)
	return total
}

func TestInject_NearMarketThresholds(t *testing.T) {
	tests := []struct {
		name       string
		side       domain.OrderSide
		price      int64
		wantFilled bool
	}{
		{"buy at threshold", domain.OrderSideBuy, 95, true},
		{"buy above market", domain.OrderSideBuy, 120, true},
		{"buy just below threshold", domain.OrderSideBuy, 94, false},
		{"sell at threshold", domain.OrderSideSell, 105, true},
		{"sell below market", domain.OrderSideSell, 80, true},
		{"sell just above threshold", domain.OrderSideSell, 106, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEngine(nil)
			withMarketMaker(te)
			te.addAccount("USER_kim", domain.AccountClassHuman, 5_000_000, domain.Holdings{"IT008": 100})

			res := te.place(t, "USER_kim", tt.side, tt.price, 10)

			if got := res.Status == OrderStatusFilled; got != tt.wantFilled {
				t.Fatalf("filled = %v, want %v (status %s)", got, tt.wantFilled, res.Status)
			}
			if !tt.wantFilled {
				if countOrdersBy(te, mmID) != 0 {
					t.Error("unexpected synthetic counter-order")
				}
				return
			}
			tr := res.Trades[0]
			if !tr.Synthetic || tr.Price != tt.price || tr.Quantity != 10 {
				t.Errorf("trade = %+v, want synthetic 10@%d", tr, tt.price)
			}
			if te.orders.Len() != 0 {
				t.Errorf("expected both legs fully filled, %d orders resting", te.orders.Len())
			}
		})
	}
}

func TestInject_MovesMarketMakerInventory(t *testing.T) {
	te := newTestEngine(nil)
	mm := withMarketMaker(te)
	human := te.addAccount("USER_kim", domain.AccountClassHuman, 5_000_000, nil)

	te.place(t, "USER_kim", domain.OrderSideBuy, 100, 10)

	if human.Holdings.Quantity("IT008") != 10 || human.CashBalance != 5_000_000-1_000 {
		t.Errorf("human = %d cash, %d shares", human.CashBalance, human.Holdings.Quantity("IT008"))
	}
	if mm.Holdings.Quantity("IT008") != 1_000_000-10 || mm.CashBalance != 1_000_000_000+1_000 {
		t.Errorf("mm = %d cash, %d shares", mm.CashBalance, mm.Holdings.Quantity("IT008"))
	}
}

func TestInject_IgnoresNonHumanOrders(t *testing.T) {
	te := newTestEngine(nil)
	withMarketMaker(te)
	te.addAccount("agent", domain.AccountClassAgent, 5_000_000, nil)

	res := te.place(t, "agent", domain.OrderSideBuy, 100, 10)

	if res.Status != OrderStatusPending {
		t.Fatalf("expected PENDING, got %s", res.Status)
	}
	if countOrdersBy(te, mmID) != 0 {
		t.Error("agent order received a synthetic counter-order")
	}
}

func TestInject_WithoutMarketMakerIsNoop(t *testing.T) {
	te := newTestEngine(nil)
	te.addAccount("USER_kim", domain.AccountClassHuman, 5_000_000, nil)

	res := te.place(t, "USER_kim", domain.OrderSideBuy, 100, 10)

	if res.Status != OrderStatusPending || te.orders.Len() != 1 {
		t.Fatalf("expected a lone resting order, got %s with %d orders", res.Status, te.orders.Len())
	}
}

func TestInject_AtMostOncePerOrder(t *testing.T) {
	te := newTestEngine(nil)
	withMarketMaker(te)
	// Cannot afford the trade, so the synthetic counter-order stays unfilled.
	te.addAccount("USER_kim", domain.AccountClassHuman, 10, nil)
	te.addAccount("agent", domain.AccountClassAgent, 5_000_000, nil)

	res := te.place(t, "USER_kim", domain.OrderSideBuy, 100, 10)
	if res.Status != OrderStatusPending {
		t.Fatalf("expected PENDING, got %s", res.Status)
	}
	if n := countOrdersBy(te, mmID); n != 1 {
		t.Fatalf("expected 1 synthetic order, got %d", n)
	}

	// Further cycles on the same book must not answer the order again.
	for i := 0; i < 3; i++ {
		te.place(t, "agent", domain.OrderSideBuy, 50, 1)
	}
	if n := countOrdersBy(te, mmID); n != 1 {
		t.Errorf("expected 1 synthetic order after more cycles, got %d", n)
	}

	o, err := te.orders.Get(res.Order.OrderID)
	if err != nil {
		t.Fatalf("human order no longer indexed: %v", err)
	}
	if !o.Injected || o.Synthetic {
		t.Errorf("human order flags = injected %v synthetic %v", o.Injected, o.Synthetic)
	}
}

func TestInject_PartialRemainderIsNotAnsweredAgain(t *testing.T) {
	te := newTestEngine(nil)
	withMarketMaker(te)
	te.addAccount("USER_kim", domain.AccountClassHuman, 5_000_000, nil)
	te.addAccount("seller", domain.AccountClassAgent, 0, domain.Holdings{"IT008": 4})

	// The cheaper agent ask fills first; the synthetic sell covers the rest.
	te.place(t, "seller", domain.OrderSideSell, 90, 4)
	res := te.place(t, "USER_kim", domain.OrderSideBuy, 100, 10)

	var synthetic int64
	for _, tr := range res.Trades {
		if tr.Synthetic {
			synthetic += tr.Quantity
		}
	}
	if res.Order.RemainingQuantity != 0 {
		t.Fatalf("remaining = %d, want 0", res.Order.RemainingQuantity)
	}
	if synthetic == 0 {
		t.Error("expected the synthetic counter-order to trade")
	}
	if countOrdersBy(te, mmID) > 1 {
		t.Errorf("more than one synthetic order resting")
	}
}

func TestInject_ReachesHumanOrderPastMarketMakerQuotes(t *testing.T) {
	tests := []struct {
		name       string
		side       domain.OrderSide
		price      int64
		aside      int64
		asideOnBid bool
	}{
		{"sell above the quoted ask", domain.OrderSideSell, 104, 101, false},
		{"buy below the quoted bid", domain.OrderSideBuy, 97, 99, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEngine(nil)
			withMarketMaker(te)
			te.addAccount("USER_kim", domain.AccountClassHuman, 5_000_000, domain.Holdings{"IT008": 100})
			if err := newTestQuoter(te, 5, 5).Requote(context.Background(), "IT008"); err != nil {
				t.Fatalf("Requote: %v", err)
			}

			res := te.place(t, "USER_kim", tt.side, tt.price, 10)

			if res.Status != OrderStatusFilled || res.Order.RemainingQuantity != 0 {
				t.Fatalf("human order not filled: status %s, remaining %d", res.Status, res.Order.RemainingQuantity)
			}
			for _, tr := range res.Trades {
				if tr.BuyerID == tr.SellerID {
					t.Errorf("market maker traded with itself: %+v", tr)
				}
			}
			if len(res.Trades) != 1 || res.Trades[0].Price != tt.price || res.Trades[0].Quantity != 10 {
				t.Errorf("trades = %+v, want one 10@%d", res.Trades, tt.price)
			}
			if got := te.snapshot(t).CurrentPrice; got != tt.price {
				t.Errorf("current price = %d, want %d", got, tt.price)
			}

			bids, asks := mmQuotes(te)
			quotes := asks
			if tt.asideOnBid {
				quotes = bids
			}
			if len(quotes) != 1 || quotes[0].Price != tt.aside || quotes[0].RemainingQuantity != 5 {
				t.Errorf("market maker quote at %d not back on the book: %+v", tt.aside, quotes)
			}
		})
	}
}
