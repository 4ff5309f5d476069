package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/simexchange/internal/domain"
	"github.com/efreitasn/simexchange/internal/service"
)

// MarketHandler handles HTTP requests for market data endpoints.
type MarketHandler struct {
	marketSvc *service.MarketService
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(marketSvc *service.MarketService) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc}
}

type instrumentResponse struct {
	Ticker         string  `json:"ticker"`
	Name           string  `json:"name"`
	Sector         string  `json:"sector"`
	CurrentPrice   int64   `json:"current_price"`
	PrevClosePrice int64   `json:"prev_close_price"`
	ChangeRate     float64 `json:"change_rate"`
	Volume         int64   `json:"volume"`
}

type instrumentDetailResponse struct {
	instrumentResponse
	BestBid  *int64 `json:"best_bid"`
	BestAsk  *int64 `json:"best_ask"`
	BidDepth int    `json:"bid_depth"`
	AskDepth int    `json:"ask_depth"`
}

type bookLevelResponse struct {
	Price         int64 `json:"price"`
	TotalQuantity int64 `json:"total_quantity"`
	OrderCount    int   `json:"order_count"`
}

// bookResponse is the JSON response for GET /instruments/{ticker}/book.
type bookResponse struct {
	Ticker     string              `json:"ticker"`
	Bids       []bookLevelResponse `json:"bids"`
	Asks       []bookLevelResponse `json:"asks"`
	Spread     *int64              `json:"spread"`
	SnapshotAt string              `json:"snapshot_at"`
}

type chartPointResponse struct {
	Price      int64  `json:"price"`
	Quantity   int64  `json:"quantity"`
	ExecutedAt string `json:"executed_at"`
}

// chartResponse is the JSON response for GET /instruments/{ticker}/chart.
type chartResponse struct {
	Ticker string               `json:"ticker"`
	Points []chartPointResponse `json:"points"`
	Open   *int64               `json:"open"`
	High   *int64               `json:"high"`
	Low    *int64               `json:"low"`
	Close  *int64               `json:"close"`
	VWAP   *int64               `json:"vwap"`
}

// ListInstruments handles GET /instruments.
func (h *MarketHandler) ListInstruments(w http.ResponseWriter, r *http.Request) {
	list := h.marketSvc.ListInstruments()
	resp := make([]instrumentResponse, len(list))
	for i, s := range list {
		resp[i] = buildInstrumentResponse(s)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// GetInstrument handles GET /instruments/{ticker}.
func (h *MarketHandler) GetInstrument(w http.ResponseWriter, r *http.Request) {
	d, err := h.marketSvc.Instrument(chi.URLParam(r, "ticker"))
	if err != nil {
		mapMarketError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, instrumentDetailResponse{
		instrumentResponse: buildInstrumentResponse(d.InstrumentSummary),
		BestBid:            d.BestBid,
		BestAsk:            d.BestAsk,
		BidDepth:           d.BidDepth,
		AskDepth:           d.AskDepth,
	})
}

// GetBook handles GET /instruments/{ticker}/book.
func (h *MarketHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	depth, err := queryInt(r, "depth", 10)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	book, err := h.marketSvc.Book(chi.URLParam(r, "ticker"), depth)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, bookResponse{
		Ticker:     book.Ticker,
		Bids:       buildBookLevels(book.Bids),
		Asks:       buildBookLevels(book.Asks),
		Spread:     book.Spread,
		SnapshotAt: formatTime(book.SnapshotAt),
	})
}

// GetChart handles GET /instruments/{ticker}/chart.
func (h *MarketHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	points, err := queryInt(r, "points", 100)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	c, err := h.marketSvc.Chart(chi.URLParam(r, "ticker"), points)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	resp := chartResponse{
		Ticker: c.Ticker,
		Points: make([]chartPointResponse, len(c.Points)),
		Open:   c.Open,
		High:   c.High,
		Low:    c.Low,
		Close:  c.Close,
		VWAP:   c.VWAP,
	}
	for i, p := range c.Points {
		resp.Points[i] = chartPointResponse{
			Price:      p.Price,
			Quantity:   p.Quantity,
			ExecutedAt: formatTime(p.ExecutedAt),
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

func buildInstrumentResponse(s service.InstrumentSummary) instrumentResponse {
	return instrumentResponse{
		Ticker:         s.Ticker,
		Name:           s.Name,
		Sector:         s.Sector,
		CurrentPrice:   s.CurrentPrice,
		PrevClosePrice: s.PrevClosePrice,
		ChangeRate:     s.ChangeRate,
		Volume:         s.Volume,
	}
}

func buildBookLevels(levels []service.BookPriceLevel) []bookLevelResponse {
	out := make([]bookLevelResponse, len(levels))
	for i, l := range levels {
		out[i] = bookLevelResponse{
			Price:         l.Price,
			TotalQuantity: l.TotalQuantity,
			OrderCount:    l.OrderCount,
		}
	}
	return out
}

// mapMarketError maps domain errors to HTTP responses for market data
// endpoints.
func mapMarketError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrUnknownInstrument):
		WriteError(w, http.StatusNotFound, "instrument_not_found", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
