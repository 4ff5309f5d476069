package domain

import (
	"sort"
	"sync"
	"time"
)

// AccountClass distinguishes the kinds of market participants.
type AccountClass string

const (
	AccountClassAgent       AccountClass = "agent"
	AccountClassHuman       AccountClass = "human"
	AccountClassMarketMaker AccountClass = "market_maker"
)

// Valid reports whether c is a known account class.
func (c AccountClass) Valid() bool {
	switch c {
	case AccountClassAgent, AccountClassHuman, AccountClassMarketMaker:
		return true
	}
	return false
}

// Holdings maps ticker → share count. Entries are always positive: a
// mutation that brings a position to zero removes the key, so "holds
// nothing" and "not present" read the same everywhere.
type Holdings map[string]int64

// Quantity returns the number of shares held for ticker, or 0.
func (h Holdings) Quantity(ticker string) int64 {
	return h[ticker]
}

// Add applies delta to the position in ticker. It returns
// ErrInsufficientShares and leaves the holdings untouched if the
// position would become negative.
func (h Holdings) Add(ticker string, delta int64) error {
	n := h[ticker] + delta
	switch {
	case n < 0:
		return ErrInsufficientShares
	case n == 0:
		delete(h, ticker)
	default:
		h[ticker] = n
	}
	return nil
}

// Clone returns an independent copy of the holdings.
func (h Holdings) Clone() Holdings {
	c := make(Holdings, len(h))
	for k, v := range h {
		if v > 0 {
			c[k] = v
		}
	}
	return c
}

// Tickers returns the held tickers in lexicographic order.
func (h Holdings) Tickers() []string {
	tickers := make([]string, 0, len(h))
	for k := range h {
		tickers = append(tickers, k)
	}
	sort.Strings(tickers)
	return tickers
}

// Account is a participant's cash balance and share holdings.
// Mutated only by settlement, under Mu.
type Account struct {
	AccountID   string
	Class       AccountClass
	CashBalance int64
	Holdings    Holdings
	CreatedAt   time.Time
	Mu          sync.Mutex // per-account lock for balance mutations
}

// AccountState is an immutable copy of an account's balances, used for
// persistence and read responses.
type AccountState struct {
	AccountID   string
	Class       AccountClass
	CashBalance int64
	Holdings    Holdings
	CreatedAt   time.Time
}

// ExemptFromCashFloor reports whether the account may settle purchases
// regardless of its cash balance.
func (a *Account) ExemptFromCashFloor() bool {
	return a.Class == AccountClassMarketMaker
}

// State returns a copy of the account's balances. The caller must hold Mu.
func (a *Account) State() AccountState {
	return AccountState{
		AccountID:   a.AccountID,
		Class:       a.Class,
		CashBalance: a.CashBalance,
		Holdings:    a.Holdings.Clone(),
		CreatedAt:   a.CreatedAt,
	}
}

// Restore overwrites the account's balances from s. The caller must hold Mu.
func (a *Account) Restore(s AccountState) {
	a.CashBalance = s.CashBalance
	a.Holdings = s.Holdings.Clone()
}
