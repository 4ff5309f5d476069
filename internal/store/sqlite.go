package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/efreitasn/simexchange/internal/domain"
)

// SQLiteStore persists instruments, accounts and trades in SQLite. It is
// the engine's persistence collaborator: every settlement is committed in
// a single transaction before the engine applies it in memory.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path with WAL mode
// enabled and ensures the schema exists.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serialises writers; SQLite allows only one anyway.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS instruments (
			ticker TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			sector TEXT NOT NULL,
			current_price INTEGER NOT NULL,
			prev_close_price INTEGER NOT NULL DEFAULT 0,
			change_rate REAL NOT NULL DEFAULT 0,
			last_trade_date TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS accounts (
			account_id TEXT PRIMARY KEY,
			class TEXT NOT NULL,
			cash_balance INTEGER NOT NULL,
			holdings TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS trades (
			trade_id TEXT PRIMARY KEY,
			ticker TEXT NOT NULL,
			price INTEGER NOT NULL,
			quantity INTEGER NOT NULL,
			buyer_id TEXT NOT NULL,
			seller_id TEXT NOT NULL,
			executed_at INTEGER NOT NULL,
			synthetic INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS trades_ticker_executed_at ON trades (ticker, executed_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SaveInstrument inserts or replaces an instrument row.
func (s *SQLiteStore) SaveInstrument(ctx context.Context, inst domain.Instrument) error {
	return saveInstrument(ctx, s.db, inst)
}

func saveInstrument(ctx context.Context, ex execer, inst domain.Instrument) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO instruments (ticker, name, sector, current_price, prev_close_price, change_rate, last_trade_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(ticker) DO UPDATE SET
			name=excluded.name, sector=excluded.sector,
			current_price=excluded.current_price, prev_close_price=excluded.prev_close_price,
			change_rate=excluded.change_rate, last_trade_date=excluded.last_trade_date`,
		inst.Ticker, inst.Name, inst.Sector, inst.CurrentPrice, inst.PrevClosePrice,
		inst.ChangeRate, inst.LastTradeDate.String(),
	)
	if err != nil {
		return fmt.Errorf("save instrument %s: %w", inst.Ticker, err)
	}
	return nil
}

// SaveAccount inserts or replaces an account row.
func (s *SQLiteStore) SaveAccount(ctx context.Context, a domain.AccountState) error {
	return saveAccount(ctx, s.db, a)
}

func saveAccount(ctx context.Context, ex execer, a domain.AccountState) error {
	holdings, err := json.Marshal(a.Holdings)
	if err != nil {
		return fmt.Errorf("marshal holdings of %s: %w", a.AccountID, err)
	}
	_, err = ex.ExecContext(ctx,
		`INSERT INTO accounts (account_id, class, cash_balance, holdings, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(account_id) DO UPDATE SET
			class=excluded.class, cash_balance=excluded.cash_balance, holdings=excluded.holdings`,
		a.AccountID, string(a.Class), a.CashBalance, string(holdings), a.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save account %s: %w", a.AccountID, err)
	}
	return nil
}

// CommitSettlement writes the trade together with the post-trade buyer,
// seller and instrument state in one transaction.
func (s *SQLiteStore) CommitSettlement(ctx context.Context, st *domain.Settlement) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settlement: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	t := st.Trade
	_, err = tx.ExecContext(ctx,
		`INSERT INTO trades (trade_id, ticker, price, quantity, buyer_id, seller_id, executed_at, synthetic)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.Ticker, t.Price, t.Quantity, t.BuyerID, t.SellerID, t.ExecutedAt.UnixNano(), t.Synthetic,
	)
	if err != nil {
		return fmt.Errorf("insert trade %s: %w", t.TradeID, err)
	}

	if err = saveAccount(ctx, tx, st.Buyer); err != nil {
		return err
	}
	if st.Seller.AccountID != st.Buyer.AccountID {
		if err = saveAccount(ctx, tx, st.Seller); err != nil {
			return err
		}
	}
	if err = saveInstrument(ctx, tx, st.Instrument); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit settlement: %w", err)
	}
	return nil
}

// LoadInstruments returns every persisted instrument.
func (s *SQLiteStore) LoadInstruments(ctx context.Context) ([]domain.Instrument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ticker, name, sector, current_price, prev_close_price, change_rate, last_trade_date
		 FROM instruments ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("query instruments: %w", err)
	}
	defer rows.Close()

	var out []domain.Instrument
	for rows.Next() {
		var inst domain.Instrument
		var lastDate string
		if err := rows.Scan(&inst.Ticker, &inst.Name, &inst.Sector, &inst.CurrentPrice,
			&inst.PrevClosePrice, &inst.ChangeRate, &lastDate); err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		if inst.LastTradeDate, err = domain.ParseDate(lastDate); err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instruments: %w", err)
	}
	return out, nil
}

// LoadAccounts returns every persisted account.
func (s *SQLiteStore) LoadAccounts(ctx context.Context) ([]domain.AccountState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT account_id, class, cash_balance, holdings, created_at FROM accounts ORDER BY account_id`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var out []domain.AccountState
	for rows.Next() {
		var a domain.AccountState
		var class, holdings string
		var createdAt int64
		if err := rows.Scan(&a.AccountID, &class, &a.CashBalance, &holdings, &createdAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.Class = domain.AccountClass(class)
		a.CreatedAt = time.Unix(0, createdAt).UTC()
		if err := json.Unmarshal([]byte(holdings), &a.Holdings); err != nil {
			return nil, fmt.Errorf("unmarshal holdings of %s: %w", a.AccountID, err)
		}
		if a.Holdings == nil {
			a.Holdings = domain.Holdings{}
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}

// LoadTrades returns every persisted trade in execution order.
func (s *SQLiteStore) LoadTrades(ctx context.Context) ([]*domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT trade_id, ticker, price, quantity, buyer_id, seller_id, executed_at, synthetic
		 FROM trades ORDER BY executed_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []*domain.Trade
	for rows.Next() {
		var t domain.Trade
		var executedAt int64
		if err := rows.Scan(&t.TradeID, &t.Ticker, &t.Price, &t.Quantity,
			&t.BuyerID, &t.SellerID, &executedAt, &t.Synthetic); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.ExecutedAt = time.Unix(0, executedAt).UTC()
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}
	return out, nil
}

// LatestTradeTime returns the execution time of the most recent persisted
// trade, or the zero time when none exist.
func (s *SQLiteStore) LatestTradeTime(ctx context.Context) (time.Time, error) {
	var latest sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT MAX(executed_at) FROM trades").Scan(&latest)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !latest.Valid) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("latest trade time: %w", err)
	}
	return time.Unix(0, latest.Int64).UTC(), nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
