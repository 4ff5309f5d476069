package service

import (
	"time"

	"github.com/efreitasn/simexchange/internal/clock"
	"github.com/efreitasn/simexchange/internal/domain"
	"github.com/efreitasn/simexchange/internal/engine"
	"github.com/efreitasn/simexchange/internal/store"
)

// MarketConfig holds the read-side policy.
type MarketConfig struct {
	OpenHour               int
	ExcludeSyntheticVolume bool
}

// InstrumentSummary is one row of the instrument listing.
type InstrumentSummary struct {
	Ticker         string
	Name           string
	Sector         string
	CurrentPrice   int64
	PrevClosePrice int64
	ChangeRate     float64
	Volume         int64 // shares traded since today's open
}

// InstrumentDetail is an instrument with its top of book.
type InstrumentDetail struct {
	InstrumentSummary
	BestBid  *int64
	BestAsk  *int64
	BidDepth int
	AskDepth int
}

// BookPriceLevel represents an aggregated price level in the book response.
type BookPriceLevel struct {
	Price         int64
	TotalQuantity int64
	OrderCount    int
}

// BookResponse represents the response for GET /instruments/{ticker}/book.
type BookResponse struct {
	Ticker     string
	Bids       []BookPriceLevel
	Asks       []BookPriceLevel
	Spread     *int64 // nil if either side empty
	SnapshotAt time.Time
}

// ChartPoint is one trade in a chart series.
type ChartPoint struct {
	Price      int64
	Quantity   int64
	ExecutedAt time.Time
}

// ChartResponse is the recent trade series of an instrument with its
// summary statistics. The statistics are nil when the series is empty.
type ChartResponse struct {
	Ticker string
	Points []ChartPoint
	Open   *int64
	High   *int64
	Low    *int64
	Close  *int64
	VWAP   *int64
}

// MarketService answers read-only market data queries.
type MarketService struct {
	cfg         MarketConfig
	engine      *engine.Engine
	instruments *store.InstrumentStore
	trades      *store.TradeStore
	clock       *clock.Clock
}

// NewMarketService creates a new MarketService with the given dependencies.
func NewMarketService(
	cfg MarketConfig,
	e *engine.Engine,
	instruments *store.InstrumentStore,
	trades *store.TradeStore,
	clk *clock.Clock,
) *MarketService {
	return &MarketService{
		cfg:         cfg,
		engine:      e,
		instruments: instruments,
		trades:      trades,
		clock:       clk,
	}
}

// ListInstruments returns every instrument ordered by ticker, with the
// volume traded in the current simulated session.
func (s *MarketService) ListInstruments() []InstrumentSummary {
	since := s.clock.SessionOpen(s.cfg.OpenHour)
	insts := s.instruments.List()
	out := make([]InstrumentSummary, len(insts))
	for i, inst := range insts {
		out[i] = s.summary(inst, since)
	}
	return out
}

// Instrument returns one instrument's prices, session volume and top of
// book.
func (s *MarketService) Instrument(ticker string) (*InstrumentDetail, error) {
	inst, err := s.instruments.Get(ticker)
	if err != nil {
		return nil, err
	}
	snap, err := s.engine.Snapshot(ticker)
	if err != nil {
		return nil, err
	}

	summary := s.summary(inst, s.clock.SessionOpen(s.cfg.OpenHour))
	summary.CurrentPrice = snap.CurrentPrice
	summary.PrevClosePrice = snap.PrevClosePrice
	summary.ChangeRate = snap.ChangeRate

	return &InstrumentDetail{
		InstrumentSummary: summary,
		BestBid:           snap.BestBid,
		BestAsk:           snap.BestAsk,
		BidDepth:          snap.BidDepth,
		AskDepth:          snap.AskDepth,
	}, nil
}

func (s *MarketService) summary(inst domain.Instrument, since time.Time) InstrumentSummary {
	return InstrumentSummary{
		Ticker:         inst.Ticker,
		Name:           inst.Name,
		Sector:         inst.Sector,
		CurrentPrice:   inst.CurrentPrice,
		PrevClosePrice: inst.PrevClosePrice,
		ChangeRate:     inst.ChangeRate,
		Volume:         s.trades.VolumeSince(inst.Ticker, since, s.cfg.ExcludeSyntheticVolume),
	}
}

// Book returns the top depth price levels of an instrument's order book.
func (s *MarketService) Book(ticker string, depth int) (*BookResponse, error) {
	if !s.instruments.Exists(ticker) {
		return nil, domain.ErrUnknownInstrument
	}
	if depth < 1 || depth > 50 {
		return nil, &domain.ValidationError{
			Message: "depth must be between 1 and 50",
		}
	}

	view, err := s.engine.Book(ticker, depth)
	if err != nil {
		return nil, err
	}

	resp := &BookResponse{
		Ticker:     ticker,
		Bids:       toBookLevels(view.Bids),
		Asks:       toBookLevels(view.Asks),
		SnapshotAt: s.clock.Now(),
	}

	// Compute spread = best_ask - best_bid (null if either side empty).
	if len(view.Bids) > 0 && len(view.Asks) > 0 {
		spread := view.Asks[0].Price - view.Bids[0].Price
		resp.Spread = &spread
	}
	return resp, nil
}

func toBookLevels(levels []engine.PriceLevel) []BookPriceLevel {
	out := make([]BookPriceLevel, len(levels))
	for i, pl := range levels {
		out[i] = BookPriceLevel{
			Price:         pl.Price,
			TotalQuantity: pl.TotalQuantity,
			OrderCount:    pl.OrderCount,
		}
	}
	return out
}

// Chart returns the last n trades of an instrument, oldest first.
func (s *MarketService) Chart(ticker string, n int) (*ChartResponse, error) {
	if !s.instruments.Exists(ticker) {
		return nil, domain.ErrUnknownInstrument
	}
	if n < 1 || n > 500 {
		return nil, &domain.ValidationError{
			Message: "points must be between 1 and 500",
		}
	}

	trades := s.trades.Last(ticker, n, s.cfg.ExcludeSyntheticVolume)
	resp := &ChartResponse{
		Ticker: ticker,
		Points: make([]ChartPoint, len(trades)),
	}
	if len(trades) == 0 {
		return resp, nil
	}

	open, closing := trades[0].Price, trades[len(trades)-1].Price
	high, low := open, open
	var notional, volume int64
	for i, t := range trades {
		resp.Points[i] = ChartPoint{Price: t.Price, Quantity: t.Quantity, ExecutedAt: t.ExecutedAt}
		high = max(high, t.Price)
		low = min(low, t.Price)
		notional += t.Notional()
		volume += t.Quantity
	}
	vwap := notional / volume

	resp.Open, resp.Close = &open, &closing
	resp.High, resp.Low = &high, &low
	resp.VWAP = &vwap
	return resp, nil
}
