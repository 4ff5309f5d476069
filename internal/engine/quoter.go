package engine

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/efreitasn/simexchange/internal/domain"
)

// QuoterConfig holds the market maker's quoting policy.
type QuoterConfig struct {
	Interval  time.Duration
	SpreadBps int64 // half-spread around the current price, in basis points
	MinQty    int64
	MaxQty    int64
}

// Quoter keeps a two-sided market around every instrument's current price
// on behalf of the market-maker account. Each round it cancels its
// previous quotes that are still resting and posts a fresh bid and ask.
type Quoter struct {
	cfg    QuoterConfig
	engine *Engine
	logger *slog.Logger

	mu     sync.Mutex
	rng    *rand.Rand
	quotes map[string][]string // ticker → resting quote order IDs
}

// NewQuoter creates a Quoter for the engine's market-maker account. A nil
// rng uses a randomly seeded source.
func NewQuoter(cfg QuoterConfig, e *Engine, rng *rand.Rand, logger *slog.Logger) *Quoter {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Quoter{
		cfg:    cfg,
		engine: e,
		logger: logger,
		rng:    rng,
		quotes: make(map[string][]string),
	}
}

// Start launches a background goroutine that requotes every instrument at
// the configured interval. It stops when ctx is cancelled.
func (q *Quoter) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(q.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				q.tick(ctx)
			}
		}
	}()
}

// tick requotes every registered instrument.
func (q *Quoter) tick(ctx context.Context) {
	for _, ticker := range q.engine.instruments.Tickers() {
		if ctx.Err() != nil {
			return
		}
		if err := q.Requote(ctx, ticker); err != nil {
			q.logger.Warn("requote failed", "ticker", ticker, "error", err)
		}
	}
}

// Requote replaces the market maker's quotes for one instrument.
func (q *Quoter) Requote(ctx context.Context, ticker string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, id := range q.quotes[ticker] {
		if _, err := q.engine.CancelOrder(ctx, ticker, q.engine.cfg.MarketMakerID, id); err != nil && !errors.Is(err, domain.ErrOrderNotFound) {
			return err
		}
	}
	delete(q.quotes, ticker)

	inst, err := q.engine.instruments.Get(ticker)
	if err != nil {
		return err
	}
	current := inst.CurrentPrice
	spread := max(1, domain.ScaleBps(current, q.cfg.SpreadBps))
	bid := max(1, current-spread)
	ask := current + spread

	now := q.engine.clock.Now()
	var resting []string
	for _, leg := range []struct {
		side  domain.OrderSide
		price int64
	}{
		{domain.OrderSideBuy, bid},
		{domain.OrderSideSell, ask},
	} {
		res, err := q.engine.PlaceOrder(ctx, PlaceOrderRequest{
			AccountID: q.engine.cfg.MarketMakerID,
			Ticker:    ticker,
			Side:      leg.side,
			Quantity:  q.quantity(),
			Price:     leg.price,
			At:        &now,
		})
		if err != nil {
			return err
		}
		if res.Order.RemainingQuantity > 0 {
			resting = append(resting, res.Order.OrderID)
		}
	}
	q.quotes[ticker] = resting

	q.logger.Debug("requoted", "ticker", ticker, "bid", bid, "ask", ask)
	return nil
}

// quantity draws a quote size uniformly from [MinQty, MaxQty].
func (q *Quoter) quantity() int64 {
	if q.cfg.MaxQty <= q.cfg.MinQty {
		return max(1, q.cfg.MinQty)
	}
	return q.cfg.MinQty + q.rng.Int64N(q.cfg.MaxQty-q.cfg.MinQty+1)
}
