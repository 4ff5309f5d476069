package service

import (
	"context"
	"fmt"
	"time"

	"github.com/efreitasn/simexchange/internal/domain"
	"github.com/efreitasn/simexchange/internal/engine"
	"github.com/efreitasn/simexchange/internal/store"
)

// OrderType selects how the limit price of a submission is determined.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// Market submissions are priced this far through the current price, in
// basis points, so that they cross the spread.
const (
	marketBuyBps  = 10200
	marketSellBps = 9800
)

// SubmitOrderRequest represents the input for order submission.
type SubmitOrderRequest struct {
	Type      OrderType
	AccountID string
	Ticker    string
	Side      domain.OrderSide
	Price     *float64 // required for limit, must be nil for market
	Quantity  int64
	At        *time.Time
}

// OrderService handles order submission, cancellation and listing on
// behalf of external clients.
type OrderService struct {
	engine      *engine.Engine
	accounts    *AccountService
	accountRepo *store.AccountStore
	instruments *store.InstrumentStore
	orders      *store.OrderStore
}

// NewOrderService creates a new OrderService with the given dependencies.
func NewOrderService(
	e *engine.Engine,
	accounts *AccountService,
	accountRepo *store.AccountStore,
	instruments *store.InstrumentStore,
	orders *store.OrderStore,
) *OrderService {
	return &OrderService{
		engine:      e,
		accounts:    accounts,
		accountRepo: accountRepo,
		instruments: instruments,
		orders:      orders,
	}
}

// Submit validates the request, resolves its limit price, checks that the
// account can cover it and hands it to the engine. Human accounts are
// created on first use.
func (s *OrderService) Submit(ctx context.Context, req SubmitOrderRequest) (*engine.PlaceOrderResult, error) {
	if req.Type == "" {
		req.Type = OrderTypeLimit
	}
	if req.Type != OrderTypeLimit && req.Type != OrderTypeMarket {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("Unknown order type: %s. Must be one of: limit, market", req.Type),
		}
	}
	if !domain.ValidAccountID(req.AccountID) {
		return nil, &domain.ValidationError{
			Message: "account_id must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}
	if !req.Side.Valid() {
		return nil, &domain.ValidationError{
			Message: "side must be 'BUY' or 'SELL'",
		}
	}
	if !domain.ValidTicker(req.Ticker) {
		return nil, &domain.ValidationError{
			Message: "ticker must match ^[A-Z0-9]{1,10}$",
		}
	}
	if req.Quantity <= 0 || req.Quantity > domain.MaxQuantity {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("quantity must be between 1 and %d", domain.MaxQuantity),
		}
	}

	if !s.instruments.Exists(req.Ticker) {
		return nil, domain.ErrUnknownInstrument
	}

	price, err := s.resolvePrice(req)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.EnsureHuman(ctx, req.AccountID); err != nil {
		return nil, err
	}
	if err := s.checkCoverage(req.AccountID, req.Ticker, req.Side, price, req.Quantity); err != nil {
		return nil, err
	}

	return s.engine.PlaceOrder(ctx, engine.PlaceOrderRequest{
		AccountID: req.AccountID,
		Ticker:    req.Ticker,
		Side:      req.Side,
		Quantity:  req.Quantity,
		Price:     price,
		At:        req.At,
	})
}

func (s *OrderService) resolvePrice(req SubmitOrderRequest) (int64, error) {
	if req.Type == OrderTypeMarket {
		if req.Price != nil {
			return 0, &domain.ValidationError{
				Message: "market orders must not include price",
			}
		}
		inst, err := s.instruments.Get(req.Ticker)
		if err != nil {
			return 0, err
		}
		bps := int64(marketBuyBps)
		if req.Side == domain.OrderSideSell {
			bps = marketSellBps
		}
		return min(domain.MaxPrice, max(1, domain.ScaleBps(inst.CurrentPrice, bps))), nil
	}

	if req.Price == nil {
		return 0, &domain.ValidationError{
			Message: "price is required for limit orders",
		}
	}
	if *req.Price <= 0 {
		return 0, &domain.ValidationError{
			Message: "price must be greater than 0",
		}
	}
	price, err := domain.PriceFromFloat(*req.Price)
	if err != nil {
		return 0, &domain.ValidationError{Message: err.Error()}
	}
	if price > domain.MaxPrice {
		return 0, &domain.ValidationError{
			Message: fmt.Sprintf("price must be at most %d", domain.MaxPrice),
		}
	}
	return price, nil
}

// checkCoverage rejects a submission the account could not settle at its
// own limit price right now. Settlement re-checks balances regardless.
func (s *OrderService) checkCoverage(accountID, ticker string, side domain.OrderSide, price, qty int64) error {
	a, err := s.accountRepo.Get(accountID)
	if err != nil {
		return err
	}
	a.Mu.Lock()
	defer a.Mu.Unlock()

	switch side {
	case domain.OrderSideBuy:
		if !a.ExemptFromCashFloor() && a.CashBalance < price*qty {
			return fmt.Errorf("%w: need %d, have %d", domain.ErrInsufficientFunds, price*qty, a.CashBalance)
		}
	case domain.OrderSideSell:
		if have := a.Holdings.Quantity(ticker); have < qty {
			return fmt.Errorf("%w: need %d %s, have %d", domain.ErrInsufficientShares, qty, ticker, have)
		}
	}
	return nil
}

// Cancel withdraws a resting order owned by accountID.
func (s *OrderService) Cancel(ctx context.Context, accountID, ticker, orderID string) (*domain.Order, error) {
	cancelled, err := s.engine.CancelOrder(ctx, ticker, accountID, orderID)
	if err != nil {
		return nil, err
	}
	return &cancelled, nil
}

// ListOpenOrders returns a paginated list of an account's resting orders,
// newest first, optionally restricted to one ticker.
func (s *OrderService) ListOpenOrders(accountID, ticker string, page, limit int) ([]domain.Order, int, error) {
	if !s.accountRepo.Exists(accountID) {
		return nil, 0, domain.ErrUnknownAccount
	}
	if ticker != "" && !s.instruments.Exists(ticker) {
		return nil, 0, domain.ErrUnknownInstrument
	}
	if page < 1 {
		return nil, 0, &domain.ValidationError{
			Message: "page must be >= 1",
		}
	}
	if limit < 1 || limit > 100 {
		return nil, 0, &domain.ValidationError{
			Message: "limit must be between 1 and 100",
		}
	}

	orders, total := s.orders.ListByAccount(accountID, ticker, page, limit)
	return orders, total, nil
}
