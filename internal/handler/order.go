package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/simexchange/internal/domain"
	"github.com/efreitasn/simexchange/internal/engine"
	"github.com/efreitasn/simexchange/internal/service"
)

// accountHeader identifies the caller on order cancellation.
const accountHeader = "X-Account-ID"

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// submitOrderRequest is the JSON request body for POST /orders.
type submitOrderRequest struct {
	Type      string   `json:"type"`
	AccountID string   `json:"account_id"`
	Ticker    string   `json:"ticker"`
	Side      string   `json:"side"`
	Price     *float64 `json:"price"`
	Quantity  int64    `json:"quantity"`
	At        *string  `json:"at"`
}

// orderResponse is a single order as stored in the book.
type orderResponse struct {
	OrderID           string `json:"order_id"`
	AccountID         string `json:"account_id"`
	Ticker            string `json:"ticker"`
	Side              string `json:"side"`
	Price             int64  `json:"price"`
	Quantity          int64  `json:"quantity"`
	FilledQuantity    int64  `json:"filled_quantity"`
	RemainingQuantity int64  `json:"remaining_quantity"`
	Synthetic         bool   `json:"synthetic"`
	CreatedAt         string `json:"created_at"`
}

// tradeResponse is a single trade settled while placing an order.
type tradeResponse struct {
	TradeID    string `json:"trade_id"`
	Price      int64  `json:"price"`
	Quantity   int64  `json:"quantity"`
	BuyerID    string `json:"buyer_id"`
	SellerID   string `json:"seller_id"`
	Synthetic  bool   `json:"synthetic"`
	ExecutedAt string `json:"executed_at"`
}

// placeOrderResponse is the JSON response for POST /orders.
type placeOrderResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Order   orderResponse   `json:"order"`
	Trades  []tradeResponse `json:"trades"`
}

// SubmitOrder handles POST /orders.
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var at *time.Time
	if req.At != nil {
		t, err := time.Parse(time.RFC3339, *req.At)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "at must be a valid ISO 8601 timestamp")
			return
		}
		at = &t
	}

	result, err := h.orderSvc.Submit(r.Context(), service.SubmitOrderRequest{
		Type:      service.OrderType(req.Type),
		AccountID: req.AccountID,
		Ticker:    req.Ticker,
		Side:      domain.OrderSide(req.Side),
		Price:     req.Price,
		Quantity:  req.Quantity,
		At:        at,
	})
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildPlaceOrderResponse(result))
}

// CancelOrder handles DELETE /instruments/{ticker}/orders/{order_id}. The
// caller names itself in the X-Account-ID header and may only cancel its
// own resting orders.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	accountID := r.Header.Get(accountHeader)
	if accountID == "" {
		WriteError(w, http.StatusBadRequest, "validation_error", accountHeader+" header is required")
		return
	}

	o, err := h.orderSvc.Cancel(r.Context(), accountID, chi.URLParam(r, "ticker"), chi.URLParam(r, "order_id"))
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(*o))
}

func buildPlaceOrderResponse(res *engine.PlaceOrderResult) placeOrderResponse {
	trades := make([]tradeResponse, len(res.Trades))
	for i, t := range res.Trades {
		trades[i] = tradeResponse{
			TradeID:    t.TradeID,
			Price:      t.Price,
			Quantity:   t.Quantity,
			BuyerID:    t.BuyerID,
			SellerID:   t.SellerID,
			Synthetic:  t.Synthetic,
			ExecutedAt: formatTime(t.ExecutedAt),
		}
	}
	return placeOrderResponse{
		Status:  string(res.Status),
		Message: res.Message,
		Order:   buildOrderResponse(res.Order),
		Trades:  trades,
	}
}

func buildOrderResponse(o domain.Order) orderResponse {
	return orderResponse{
		OrderID:           o.OrderID,
		AccountID:         o.AccountID,
		Ticker:            o.Ticker,
		Side:              string(o.Side),
		Price:             o.Price,
		Quantity:          o.Quantity,
		FilledQuantity:    o.FilledQuantity(),
		RemainingQuantity: o.RemainingQuantity,
		Synthetic:         o.Synthetic,
		CreatedAt:         formatTime(o.CreatedAt),
	}
}

// mapOrderError maps domain errors to HTTP responses for order endpoints.
func mapOrderError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidOrder):
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, domain.ErrUnknownAccount):
		WriteError(w, http.StatusNotFound, "account_not_found", err.Error())
	case errors.Is(err, domain.ErrUnknownInstrument):
		WriteError(w, http.StatusNotFound, "instrument_not_found", err.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		WriteError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		WriteError(w, http.StatusConflict, "insufficient_funds", err.Error())
	case errors.Is(err, domain.ErrInsufficientShares):
		WriteError(w, http.StatusConflict, "insufficient_shares", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
