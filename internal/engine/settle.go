package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/simexchange/internal/domain"
)

// OutcomeKind classifies the result of settling one pairing.
type OutcomeKind int

const (
	// OutcomeSettled: the trade was persisted and applied.
	OutcomeSettled OutcomeKind = iota
	// OutcomeSkipped: a party could not cover the trade at commit time.
	// Nothing changed; Offender names the order that could not be honoured.
	OutcomeSkipped
	// OutcomeFailed: persistence failed. Nothing changed.
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSettled:
		return "settled"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

// Outcome is the result of settling one pairing.
type Outcome struct {
	Kind     OutcomeKind
	Trade    domain.Trade
	Offender *domain.Order
	Err      error
}

// settle executes qty shares between buy and sell at price. Balances are
// re-validated under the account locks, the full effect set is persisted,
// and only then applied in memory. The caller holds the book lock and
// updates the orders' remaining quantities.
func (e *Engine) settle(ctx context.Context, buy, sell *domain.Order, price, qty int64, at time.Time) Outcome {
	ticker := buy.Ticker

	buyer, err := e.accounts.Get(buy.AccountID)
	if err != nil {
		return e.failed(ticker, fmt.Errorf("buyer %s: %w", buy.AccountID, err))
	}
	seller, err := e.accounts.Get(sell.AccountID)
	if err != nil {
		return e.failed(ticker, fmt.Errorf("seller %s: %w", sell.AccountID, err))
	}

	unlock := lockAccounts(buyer, seller)
	defer unlock()

	notional := price * qty
	if !buyer.ExemptFromCashFloor() && buyer.CashBalance < notional {
		return Outcome{Kind: OutcomeSkipped, Offender: buy, Err: domain.ErrInsufficientFunds}
	}
	if seller.Holdings.Quantity(ticker) < qty {
		return Outcome{Kind: OutcomeSkipped, Offender: sell, Err: domain.ErrInsufficientShares}
	}

	buyerState := buyer.State()
	buyerState.CashBalance -= notional
	if err := buyerState.Holdings.Add(ticker, qty); err != nil {
		return e.failed(ticker, err)
	}

	sellerState := buyerState
	if seller != buyer {
		sellerState = seller.State()
	}
	sellerState.CashBalance += notional
	if err := sellerState.Holdings.Add(ticker, -qty); err != nil {
		return Outcome{Kind: OutcomeSkipped, Offender: sell, Err: domain.ErrInsufficientShares}
	}
	if seller == buyer {
		buyerState = sellerState
	}

	inst, err := e.instruments.Get(ticker)
	if err != nil {
		return e.failed(ticker, err)
	}
	inst.ApplyTrade(price, domain.DateIn(at, e.clock.Location()))

	trade := domain.Trade{
		TradeID:    uuid.New().String(),
		Ticker:     ticker,
		Price:      price,
		Quantity:   qty,
		BuyerID:    buyer.AccountID,
		SellerID:   seller.AccountID,
		ExecutedAt: at,
		Synthetic:  buy.Synthetic || sell.Synthetic,
	}

	if e.persister != nil {
		st := &domain.Settlement{
			Trade:      trade,
			Buyer:      buyerState,
			Seller:     sellerState,
			Instrument: inst,
		}
		if err := e.persister.CommitSettlement(ctx, st); err != nil {
			return e.failed(ticker, fmt.Errorf("commit settlement: %w", err))
		}
	}

	// Publish the price before balances so no reader sees cash moved at a
	// price the instrument does not show yet.
	if err := e.instruments.Put(inst); err != nil {
		e.logger.Error("instrument vanished after commit", "ticker", ticker, "error", err)
	}
	buyer.Restore(buyerState)
	if seller != buyer {
		seller.Restore(sellerState)
	}
	e.trades.Append(&trade)
	e.clock.ObserveTrade(at)
	e.metrics.TradeSettled(trade)

	return Outcome{Kind: OutcomeSettled, Trade: trade}
}

func (e *Engine) failed(ticker string, err error) Outcome {
	e.logger.Error("settlement failed", "ticker", ticker, "error", err)
	e.metrics.SettlementFailed(ticker)
	return Outcome{Kind: OutcomeFailed, Err: fmt.Errorf("%w: %v", domain.ErrEngineInternal, err)}
}

// lockAccounts acquires the account mutexes in account_id order and
// returns a function releasing them. A self-trade locks once.
func lockAccounts(a, b *domain.Account) func() {
	if a == b {
		a.Mu.Lock()
		return a.Mu.Unlock
	}
	first, second := a, b
	if second.AccountID < first.AccountID {
		first, second = second, first
	}
	first.Mu.Lock()
	second.Mu.Lock()
	return func() {
		second.Mu.Unlock()
		first.Mu.Unlock()
	}
}
