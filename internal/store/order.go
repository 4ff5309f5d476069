package store

import (
	"sort"
	"sync"

	"github.com/efreitasn/simexchange/internal/domain"
)

// OrderStore is a thread-safe index of resting orders, with a primary
// index by order_id and a secondary index by account_id. It keeps value
// copies that the engine refreshes after every change, so readers never
// touch an order the engine is mutating. Orders leave the store when
// they fill or are cancelled.
type OrderStore struct {
	mu            sync.RWMutex
	orders        map[string]domain.Order
	accountOrders map[string]map[string]struct{} // account_id → set of order_id
}

// NewOrderStore creates an empty OrderStore.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:        make(map[string]domain.Order),
		accountOrders: make(map[string]map[string]struct{}),
	}
}

// Put records or refreshes a resting order.
func (s *OrderStore) Put(o domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[o.OrderID] = o
	ids := s.accountOrders[o.AccountID]
	if ids == nil {
		ids = make(map[string]struct{})
		s.accountOrders[o.AccountID] = ids
	}
	ids[o.OrderID] = struct{}{}
}

// Remove forgets an order. Removing an unknown order is a no-op.
func (s *OrderStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return
	}
	delete(s.orders, id)
	if ids := s.accountOrders[o.AccountID]; ids != nil {
		delete(ids, id)
		if len(ids) == 0 {
			delete(s.accountOrders, o.AccountID)
		}
	}
}

// Get retrieves a resting order by ID. It returns
// domain.ErrOrderNotFound if the order is not resting.
func (s *OrderStore) Get(id string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

// ListByAccount returns an account's resting orders, newest first. If
// ticker is non-empty only that instrument is included. Pagination is
// 1-based. Returns the requested page and the total count of matching
// orders (before pagination).
func (s *OrderStore) ListByAccount(accountID, ticker string, page, limit int) ([]domain.Order, int) {
	s.mu.RLock()
	filtered := make([]domain.Order, 0)
	for id := range s.accountOrders[accountID] {
		o := s.orders[id]
		if ticker != "" && o.Ticker != ticker {
			continue
		}
		filtered = append(filtered, o)
	}
	s.mu.RUnlock()

	sort.Slice(filtered, func(i, j int) bool {
		if !filtered[i].CreatedAt.Equal(filtered[j].CreatedAt) {
			return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
		}
		return filtered[i].Seq > filtered[j].Seq
	})

	total := len(filtered)

	// Apply pagination.
	start := (page - 1) * limit
	if start >= total {
		return []domain.Order{}, total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return filtered[start:end], total
}

// Len returns the number of resting orders.
func (s *OrderStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}
