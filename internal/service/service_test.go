package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/efreitasn/simexchange/internal/clock"
	"github.com/efreitasn/simexchange/internal/domain"
	"github.com/efreitasn/simexchange/internal/engine"
	"github.com/efreitasn/simexchange/internal/store"
)

const mmID = "MARKET_MAKER"

var day1 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// testEnv bundles all dependencies needed for service tests.
type testEnv struct {
	accountStore *store.AccountStore
	instruments  *store.InstrumentStore
	trades       *store.TradeStore
	orders       *store.OrderStore
	clock        *clock.Clock
	engine       *engine.Engine
	saver        *memSaver
	accounts     *AccountService
	orderSvc     *OrderService
	market       *MarketService
}

type memSaver struct {
	mu    sync.Mutex
	saved map[string]domain.AccountState
	err   error
}

func (m *memSaver) SaveAccount(_ context.Context, a domain.AccountState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved[a.AccountID] = a
	return nil
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testEnv{
		accountStore: store.NewAccountStore(),
		instruments:  store.NewInstrumentStore(),
		trades:       store.NewTradeStore(),
		orders:       store.NewOrderStore(),
		clock:        clock.New(day1, time.UTC),
		saver:        &memSaver{saved: make(map[string]domain.AccountState)},
	}
	for _, inst := range []domain.Instrument{
		{Ticker: "EN002", Name: "Energy Corp.", Sector: "Energy", CurrentPrice: 30},
		{Ticker: "IT008", Name: "InfoTech Systems", Sector: "Technology", CurrentPrice: 90},
	} {
		if err := env.instruments.Create(inst); err != nil {
			t.Fatal(err)
		}
	}

	env.engine = engine.NewEngine(
		engine.Config{MarketMakerID: mmID, InjectBidBps: 9500, InjectAskBps: 10500},
		env.accountStore, env.instruments, env.trades, env.orders, env.clock, nil, logger,
	)
	env.accounts = NewAccountService(
		AccountConfig{HumanPrefix: "USER_", HumanInitialCash: 5_000_000, MarketMakerID: mmID},
		env.accountStore, env.instruments, env.saver, env.clock, logger,
	)
	env.orderSvc = NewOrderService(env.engine, env.accounts, env.accountStore, env.instruments, env.orders)
	env.market = NewMarketService(MarketConfig{OpenHour: 9}, env.engine, env.instruments, env.trades, env.clock)
	return env
}

func (env *testEnv) openAgent(t *testing.T, id string, cash float64, holdings ...HoldingInput) {
	t.Helper()
	if _, err := env.accounts.Open(context.Background(), OpenAccountRequest{
		AccountID:       id,
		InitialCash:     cash,
		InitialHoldings: holdings,
	}); err != nil {
		t.Fatalf("open %s: %v", id, err)
	}
}

func (env *testEnv) submit(t *testing.T, id, ticker string, side domain.OrderSide, price float64, qty int64) *engine.PlaceOrderResult {
	t.Helper()
	res, err := env.orderSvc.Submit(context.Background(), SubmitOrderRequest{
		AccountID: id,
		Ticker:    ticker,
		Side:      side,
		Price:     &price,
		Quantity:  qty,
	})
	if err != nil {
		t.Fatalf("submit %s %s %d@%v: %v", id, side, qty, price, err)
	}
	return res
}

func isValidation(err error) bool {
	var ve *domain.ValidationError
	return errors.As(err, &ve)
}
