package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"

	"github.com/efreitasn/simexchange/internal/clock"
	"github.com/efreitasn/simexchange/internal/domain"
	"github.com/efreitasn/simexchange/internal/store"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,32}$`)

// AccountSaver persists an account's balances outside a settlement.
type AccountSaver interface {
	SaveAccount(ctx context.Context, a domain.AccountState) error
}

// AccountConfig holds account provisioning policy.
type AccountConfig struct {
	HumanPrefix      string
	HumanInitialCash int64
	MarketMakerID    string
}

// OpenAccountRequest represents the input for account creation.
type OpenAccountRequest struct {
	AccountID       string
	Class           domain.AccountClass
	InitialCash     float64
	InitialHoldings []HoldingInput
}

// HoldingInput represents a single holding in a creation request.
type HoldingInput struct {
	Ticker   string
	Quantity int64
}

// BalanceResponse represents an account's cash, positions and their value
// at current prices.
type BalanceResponse struct {
	AccountID   string
	Class       domain.AccountClass
	CashBalance int64
	Holdings    []HoldingBalance
	StockValue  int64
	TotalValue  int64
}

// HoldingBalance is one position in a balance response.
type HoldingBalance struct {
	Ticker       string
	Quantity     int64
	CurrentPrice int64
	Value        int64
}

// RankingEntry is one row of the cash leaderboard.
type RankingEntry struct {
	Rank        int
	AccountID   string
	Class       domain.AccountClass
	CashBalance int64
}

// AccountService handles account creation, human sign-up, balances and
// rankings.
type AccountService struct {
	cfg         AccountConfig
	accounts    *store.AccountStore
	instruments *store.InstrumentStore
	saver       AccountSaver
	clock       *clock.Clock
	logger      *slog.Logger
}

// NewAccountService creates an AccountService. saver may be nil, in which
// case accounts live in memory only.
func NewAccountService(
	cfg AccountConfig,
	accounts *store.AccountStore,
	instruments *store.InstrumentStore,
	saver AccountSaver,
	clk *clock.Clock,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		cfg:         cfg,
		accounts:    accounts,
		instruments: instruments,
		saver:       saver,
		clock:       clk,
		logger:      logger,
	}
}

// Open validates the request and creates an account.
func (s *AccountService) Open(ctx context.Context, req OpenAccountRequest) (*domain.AccountState, error) {
	if !domain.ValidAccountID(req.AccountID) {
		return nil, &domain.ValidationError{
			Message: "account_id must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}
	if req.AccountID == s.cfg.MarketMakerID {
		return nil, &domain.ValidationError{
			Message: "account_id is reserved",
		}
	}
	if req.Class == "" {
		req.Class = domain.AccountClassAgent
	}
	if req.Class != domain.AccountClassAgent && req.Class != domain.AccountClassHuman {
		return nil, &domain.ValidationError{
			Message: "class must be 'agent' or 'human'",
		}
	}
	if req.InitialCash < 0 {
		return nil, &domain.ValidationError{
			Message: "initial_cash must be >= 0",
		}
	}
	cash, err := domain.PriceFromFloat(req.InitialCash)
	if err != nil {
		return nil, &domain.ValidationError{Message: "initial_cash: " + err.Error()}
	}

	holdings := domain.Holdings{}
	for _, h := range req.InitialHoldings {
		if !s.instruments.Exists(h.Ticker) {
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("unknown ticker in initial_holdings: %q", h.Ticker),
			}
		}
		if h.Quantity <= 0 {
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("holding quantity must be > 0 for ticker %s", h.Ticker),
			}
		}
		if _, dup := holdings[h.Ticker]; dup {
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("duplicate ticker in initial_holdings: %s", h.Ticker),
			}
		}
		holdings[h.Ticker] = h.Quantity
	}

	return s.create(ctx, &domain.Account{
		AccountID:   req.AccountID,
		Class:       req.Class,
		CashBalance: cash,
		Holdings:    holdings,
		CreatedAt:   s.clock.Now(),
	})
}

// RegisterHuman creates the human account for username with the default
// starting cash. Registering an existing user returns the existing
// account with created set to false.
func (s *AccountService) RegisterHuman(ctx context.Context, username string) (st *domain.AccountState, created bool, err error) {
	if !usernameRegex.MatchString(username) {
		return nil, false, &domain.ValidationError{
			Message: "username must match ^[a-zA-Z0-9_-]{1,32}$",
		}
	}
	return s.ensureHuman(ctx, s.cfg.HumanPrefix+username)
}

// EnsureHuman creates accountID as a human account if it carries the
// human prefix and does not exist yet. It returns domain.ErrUnknownAccount
// for missing accounts without the prefix.
func (s *AccountService) EnsureHuman(ctx context.Context, accountID string) error {
	if s.accounts.Exists(accountID) {
		return nil
	}
	if !s.IsHumanID(accountID) || !domain.ValidAccountID(accountID) {
		return domain.ErrUnknownAccount
	}
	_, _, err := s.ensureHuman(ctx, accountID)
	return err
}

// IsHumanID reports whether accountID is in the human namespace.
func (s *AccountService) IsHumanID(accountID string) bool {
	p := s.cfg.HumanPrefix
	return p != "" && len(accountID) > len(p) && accountID[:len(p)] == p
}

func (s *AccountService) ensureHuman(ctx context.Context, accountID string) (*domain.AccountState, bool, error) {
	st, err := s.create(ctx, &domain.Account{
		AccountID:   accountID,
		Class:       domain.AccountClassHuman,
		CashBalance: s.cfg.HumanInitialCash,
		Holdings:    domain.Holdings{},
		CreatedAt:   s.clock.Now(),
	})
	if errors.Is(err, domain.ErrAccountExists) {
		a, getErr := s.accounts.Get(accountID)
		if getErr != nil {
			return nil, false, getErr
		}
		a.Mu.Lock()
		existing := a.State()
		a.Mu.Unlock()
		return &existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return st, true, nil
}

func (s *AccountService) create(ctx context.Context, a *domain.Account) (*domain.AccountState, error) {
	if err := s.accounts.Create(a); err != nil {
		return nil, err
	}
	a.Mu.Lock()
	st := a.State()
	a.Mu.Unlock()

	if s.saver != nil {
		if err := s.saver.SaveAccount(ctx, st); err != nil {
			s.logger.Error("failed to persist account", "account_id", st.AccountID, "error", err)
			return nil, fmt.Errorf("%w: %v", domain.ErrEngineInternal, err)
		}
	}
	s.logger.Info("account opened", "account_id", st.AccountID, "class", st.Class)
	return &st, nil
}

// ProvisionMarketMaker creates the market-maker account, or tops up an
// existing one, so that it holds at least cash and at least shares of
// every listed instrument.
func (s *AccountService) ProvisionMarketMaker(ctx context.Context, cash, shares int64) error {
	id := s.cfg.MarketMakerID
	if id == "" {
		return nil
	}
	if !s.accounts.Exists(id) {
		err := s.accounts.Create(&domain.Account{
			AccountID: id,
			Class:     domain.AccountClassMarketMaker,
			Holdings:  domain.Holdings{},
			CreatedAt: s.clock.Now(),
		})
		if err != nil && !errors.Is(err, domain.ErrAccountExists) {
			return err
		}
	}

	a, err := s.accounts.Get(id)
	if err != nil {
		return err
	}
	a.Mu.Lock()
	a.Class = domain.AccountClassMarketMaker
	if a.CashBalance < cash {
		a.CashBalance = cash
	}
	for _, ticker := range s.instruments.Tickers() {
		if have := a.Holdings.Quantity(ticker); have < shares {
			if err := a.Holdings.Add(ticker, shares-have); err != nil {
				a.Mu.Unlock()
				return err
			}
		}
	}
	st := a.State()
	a.Mu.Unlock()

	if s.saver != nil {
		if err := s.saver.SaveAccount(ctx, st); err != nil {
			return fmt.Errorf("persist market maker: %w", err)
		}
	}
	s.logger.Info("market maker provisioned", "account_id", id, "cash", st.CashBalance, "tickers", len(st.Holdings))
	return nil
}

// Balance returns an account's cash and positions valued at current
// prices.
func (s *AccountService) Balance(accountID string) (*BalanceResponse, error) {
	a, err := s.accounts.Get(accountID)
	if err != nil {
		return nil, err
	}
	a.Mu.Lock()
	st := a.State()
	a.Mu.Unlock()

	resp := &BalanceResponse{
		AccountID:   st.AccountID,
		Class:       st.Class,
		CashBalance: st.CashBalance,
		Holdings:    make([]HoldingBalance, 0, len(st.Holdings)),
	}
	for _, ticker := range st.Holdings.Tickers() {
		hb := HoldingBalance{Ticker: ticker, Quantity: st.Holdings[ticker]}
		if inst, err := s.instruments.Get(ticker); err == nil {
			hb.CurrentPrice = inst.CurrentPrice
			hb.Value = inst.CurrentPrice * hb.Quantity
		}
		resp.StockValue += hb.Value
		resp.Holdings = append(resp.Holdings, hb)
	}
	resp.TotalValue = resp.CashBalance + resp.StockValue
	return resp, nil
}

// Rankings returns up to limit accounts ordered by cash balance,
// excluding the market maker. Ties are broken by account_id.
func (s *AccountService) Rankings(limit int) ([]RankingEntry, error) {
	if limit < 1 || limit > 100 {
		return nil, &domain.ValidationError{
			Message: "limit must be between 1 and 100",
		}
	}

	states := s.accounts.States()
	ranked := make([]domain.AccountState, 0, len(states))
	for _, st := range states {
		if st.Class == domain.AccountClassMarketMaker || st.AccountID == s.cfg.MarketMakerID {
			continue
		}
		ranked = append(ranked, st)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CashBalance > ranked[j].CashBalance
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := make([]RankingEntry, len(ranked))
	for i, st := range ranked {
		out[i] = RankingEntry{
			Rank:        i + 1,
			AccountID:   st.AccountID,
			Class:       st.Class,
			CashBalance: st.CashBalance,
		}
	}
	return out, nil
}
