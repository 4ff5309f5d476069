package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/efreitasn/simexchange/internal/config"
	"github.com/efreitasn/simexchange/internal/domain"
	"github.com/efreitasn/simexchange/internal/store"
)

type stores struct {
	accounts    *store.AccountStore
	instruments *store.InstrumentStore
	trades      *store.TradeStore
	orders      *store.OrderStore
}

// bootstrap fills the in-memory stores. With a database, persisted
// instruments, accounts and trades are restored and a first run seeds the
// instrument listing into it. Without one the listing is seeded in memory.
// It returns the execution time of the latest persisted trade, or the zero
// time if there is none.
func (s *stores) bootstrap(ctx context.Context, cfg *config.Config, db *store.SQLiteStore, logger *slog.Logger) (time.Time, error) {
	var instruments []domain.Instrument
	if db != nil {
		var err error
		if instruments, err = db.LoadInstruments(ctx); err != nil {
			return time.Time{}, fmt.Errorf("load instruments: %w", err)
		}
	}

	if len(instruments) == 0 {
		seeded, err := config.LoadInstruments(cfg.InstrumentsFile)
		if err != nil {
			return time.Time{}, err
		}
		for _, inst := range seeded {
			if db != nil {
				if err := db.SaveInstrument(ctx, inst); err != nil {
					return time.Time{}, fmt.Errorf("seed instrument %s: %w", inst.Ticker, err)
				}
			}
		}
		instruments = seeded
		logger.Info("instruments seeded", slog.Int("count", len(seeded)))
	}
	for _, inst := range instruments {
		if err := s.instruments.Create(inst); err != nil {
			return time.Time{}, fmt.Errorf("register instrument %s: %w", inst.Ticker, err)
		}
	}

	if db == nil {
		return time.Time{}, nil
	}

	accounts, err := db.LoadAccounts(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("load accounts: %w", err)
	}
	for _, a := range accounts {
		if err := s.accounts.Create(&domain.Account{
			AccountID:   a.AccountID,
			Class:       a.Class,
			CashBalance: a.CashBalance,
			Holdings:    a.Holdings.Clone(),
			CreatedAt:   a.CreatedAt,
		}); err != nil {
			return time.Time{}, fmt.Errorf("restore account %s: %w", a.AccountID, err)
		}
	}

	trades, err := db.LoadTrades(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("load trades: %w", err)
	}
	for _, t := range trades {
		s.trades.Append(t)
	}

	latest, err := db.LatestTradeTime(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("latest trade: %w", err)
	}

	logger.Info("state restored",
		slog.Int("instruments", len(instruments)),
		slog.Int("accounts", len(accounts)),
		slog.Int("trades", len(trades)),
		slog.Time("last_trade", latest),
	)
	return latest, nil
}
