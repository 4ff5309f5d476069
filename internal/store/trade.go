package store

import (
	"sync"
	"time"

	"github.com/efreitasn/simexchange/internal/domain"
)

// TradeStore is a thread-safe in-memory store for trades,
// keyed by ticker. Trades are append-only and chronological.
type TradeStore struct {
	mu     sync.RWMutex
	trades map[string][]*domain.Trade // ticker → trades (chronological)
}

// NewTradeStore creates an empty TradeStore.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		trades: make(map[string][]*domain.Trade),
	}
}

// Append adds a trade to its ticker's chronological list.
func (s *TradeStore) Append(t *domain.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades[t.Ticker] = append(s.trades[t.Ticker], t)
}

// Last returns up to n of the most recent trades for a ticker, oldest
// first. Synthetic trades are skipped when excludeSynthetic is set.
func (s *TradeStore) Last(ticker string, n int, excludeSynthetic bool) []*domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := s.trades[ticker]
	result := make([]*domain.Trade, 0, min(n, len(trades)))
	for i := len(trades) - 1; i >= 0 && len(result) < n; i-- {
		if excludeSynthetic && trades[i].Synthetic {
			continue
		}
		result = append(result, trades[i])
	}
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result
}

// VolumeSince sums the quantity traded in a ticker at or after since.
func (s *TradeStore) VolumeSince(ticker string, since time.Time, excludeSynthetic bool) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var vol int64
	trades := s.trades[ticker]
	for i := len(trades) - 1; i >= 0; i-- {
		t := trades[i]
		if t.ExecutedAt.Before(since) {
			break
		}
		if excludeSynthetic && t.Synthetic {
			continue
		}
		vol += t.Quantity
	}
	return vol
}
