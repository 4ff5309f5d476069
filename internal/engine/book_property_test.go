package engine

import (
	"fmt"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/efreitasn/simexchange/internal/domain"
)

// Feature: simulated-exchange, Property 1: Order book sorting invariant

// genOrder generates a random resting order with constrained values.
func genOrder(seq int, side domain.OrderSide) *rapid.Generator[*domain.Order] {
	return rapid.Custom(func(t *rapid.T) *domain.Order {
		price := rapid.Int64Range(1, 10000).Draw(t, "price")
		// Use a small range of seconds to encourage timestamp collisions and test tiebreaking.
		secOffset := rapid.IntRange(0, 20).Draw(t, "secOffset")
		createdAt := time.Date(2026, 1, 1, 9, 0, secOffset, 0, time.UTC)
		return makeOrder(fmt.Sprintf("order-%d", seq), side, price, createdAt, uint64(seq), 1)
	})
}

func TestProperty_BidSideSortingInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 50).Draw(t, "numEntries")
		book := NewOrderBook("TEST")

		for i := 0; i < n; i++ {
			book.Insert(genOrder(i, domain.OrderSideBuy).Draw(t, fmt.Sprintf("bid-%d", i)))
		}

		// Walk bids and verify ordering: price descending, then created_at ascending, then seq ascending.
		var prev *domain.Order
		for _, o := range book.Orders() {
			if prev != nil {
				if o.Price > prev.Price {
					t.Fatalf("bid side: price should be descending, got %d after %d", o.Price, prev.Price)
				}
				if o.Price == prev.Price {
					if o.CreatedAt.Before(prev.CreatedAt) {
						t.Fatalf("bid side: same price %d, created_at should be ascending", o.Price)
					}
					if o.CreatedAt.Equal(prev.CreatedAt) && o.Seq < prev.Seq {
						t.Fatalf("bid side: same price %d and time, seq should be ascending, got %d after %d",
							o.Price, o.Seq, prev.Seq)
					}
				}
			}
			prev = o
		}
	})
}

func TestProperty_AskSideSortingInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 50).Draw(t, "numEntries")
		book := NewOrderBook("TEST")

		for i := 0; i < n; i++ {
			book.Insert(genOrder(i, domain.OrderSideSell).Draw(t, fmt.Sprintf("ask-%d", i)))
		}

		// Walk asks and verify ordering: price ascending, then created_at ascending, then seq ascending.
		var prev *domain.Order
		for _, o := range book.Orders() {
			if prev != nil {
				if o.Price < prev.Price {
					t.Fatalf("ask side: price should be ascending, got %d after %d", o.Price, prev.Price)
				}
				if o.Price == prev.Price {
					if o.CreatedAt.Before(prev.CreatedAt) {
						t.Fatalf("ask side: same price %d, created_at should be ascending", o.Price)
					}
					if o.CreatedAt.Equal(prev.CreatedAt) && o.Seq < prev.Seq {
						t.Fatalf("ask side: same price %d and time, seq should be ascending, got %d after %d",
							o.Price, o.Seq, prev.Seq)
					}
				}
			}
			prev = o
		}
	})
}
