package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/simexchange/internal/domain"
	"github.com/efreitasn/simexchange/internal/service"
)

// AccountHandler handles HTTP requests for account endpoints.
type AccountHandler struct {
	accountSvc *service.AccountService
	orderSvc   *service.OrderService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountSvc *service.AccountService, orderSvc *service.OrderService) *AccountHandler {
	return &AccountHandler{
		accountSvc: accountSvc,
		orderSvc:   orderSvc,
	}
}

// openAccountRequest is the JSON request body for POST /accounts.
type openAccountRequest struct {
	AccountID       string         `json:"account_id"`
	Class           string         `json:"class"`
	InitialCash     float64        `json:"initial_cash"`
	InitialHoldings []holdingInput `json:"initial_holdings"`
}

// holdingInput is a single holding in the creation request.
type holdingInput struct {
	Ticker   string `json:"ticker"`
	Quantity int64  `json:"quantity"`
}

// registerUserRequest is the JSON request body for POST /users.
type registerUserRequest struct {
	Username string `json:"username"`
}

// accountResponse is the JSON response for account creation.
type accountResponse struct {
	AccountID   string            `json:"account_id"`
	Class       string            `json:"class"`
	CashBalance int64             `json:"cash_balance"`
	Holdings    []holdingResponse `json:"holdings"`
	CreatedAt   string            `json:"created_at"`
}

// holdingResponse is a single holding in the account response.
type holdingResponse struct {
	Ticker   string `json:"ticker"`
	Quantity int64  `json:"quantity"`
}

// balanceResponse is the JSON response for GET /accounts/{account_id}.
type balanceResponse struct {
	AccountID   string                   `json:"account_id"`
	Class       string                   `json:"class"`
	CashBalance int64                    `json:"cash_balance"`
	Holdings    []holdingBalanceResponse `json:"holdings"`
	StockValue  int64                    `json:"stock_value"`
	TotalValue  int64                    `json:"total_value"`
}

type holdingBalanceResponse struct {
	Ticker       string `json:"ticker"`
	Quantity     int64  `json:"quantity"`
	CurrentPrice int64  `json:"current_price"`
	Value        int64  `json:"value"`
}

// orderListResponse is the JSON response for GET /accounts/{account_id}/orders.
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Total  int             `json:"total"`
	Page   int             `json:"page"`
	Limit  int             `json:"limit"`
}

type rankingResponse struct {
	Rank        int    `json:"rank"`
	AccountID   string `json:"account_id"`
	Class       string `json:"class"`
	CashBalance int64  `json:"cash_balance"`
}

// Open handles POST /accounts.
func (h *AccountHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openAccountRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	holdings := make([]service.HoldingInput, len(req.InitialHoldings))
	for i, h := range req.InitialHoldings {
		holdings[i] = service.HoldingInput{
			Ticker:   h.Ticker,
			Quantity: h.Quantity,
		}
	}

	st, err := h.accountSvc.Open(r.Context(), service.OpenAccountRequest{
		AccountID:       req.AccountID,
		Class:           domain.AccountClass(req.Class),
		InitialCash:     req.InitialCash,
		InitialHoldings: holdings,
	})
	if err != nil {
		mapAccountError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildAccountResponse(st))
}

// RegisterUser handles POST /users. A new user gets 201; registering an
// existing username returns the existing account with 200.
func (h *AccountHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	st, created, err := h.accountSvc.RegisterHuman(r.Context(), req.Username)
	if err != nil {
		mapAccountError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	WriteJSON(w, status, buildAccountResponse(st))
}

// GetBalance handles GET /accounts/{account_id}.
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	balance, err := h.accountSvc.Balance(accountID)
	if err != nil {
		mapAccountError(w, err)
		return
	}

	holdings := make([]holdingBalanceResponse, len(balance.Holdings))
	for i, hb := range balance.Holdings {
		holdings[i] = holdingBalanceResponse{
			Ticker:       hb.Ticker,
			Quantity:     hb.Quantity,
			CurrentPrice: hb.CurrentPrice,
			Value:        hb.Value,
		}
	}

	WriteJSON(w, http.StatusOK, balanceResponse{
		AccountID:   balance.AccountID,
		Class:       string(balance.Class),
		CashBalance: balance.CashBalance,
		Holdings:    holdings,
		StockValue:  balance.StockValue,
		TotalValue:  balance.TotalValue,
	})
}

// ListOrders handles GET /accounts/{account_id}/orders.
func (h *AccountHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	page, err := queryInt(r, "page", 1)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	orders, total, err := h.orderSvc.ListOpenOrders(accountID, r.URL.Query().Get("ticker"), page, limit)
	if err != nil {
		mapAccountError(w, err)
		return
	}

	resp := orderListResponse{
		Orders: make([]orderResponse, len(orders)),
		Total:  total,
		Page:   page,
		Limit:  limit,
	}
	for i, o := range orders {
		resp.Orders[i] = buildOrderResponse(o)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Rankings handles GET /rankings.
func (h *AccountHandler) Rankings(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	entries, err := h.accountSvc.Rankings(limit)
	if err != nil {
		mapAccountError(w, err)
		return
	}

	resp := make([]rankingResponse, len(entries))
	for i, e := range entries {
		resp[i] = rankingResponse{
			Rank:        e.Rank,
			AccountID:   e.AccountID,
			Class:       string(e.Class),
			CashBalance: e.CashBalance,
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

func buildAccountResponse(st *domain.AccountState) accountResponse {
	holdings := make([]holdingResponse, 0, len(st.Holdings))
	for _, ticker := range st.Holdings.Tickers() {
		holdings = append(holdings, holdingResponse{
			Ticker:   ticker,
			Quantity: st.Holdings.Quantity(ticker),
		})
	}
	return accountResponse{
		AccountID:   st.AccountID,
		Class:       string(st.Class),
		CashBalance: st.CashBalance,
		Holdings:    holdings,
		CreatedAt:   formatTime(st.CreatedAt),
	}
}

// mapAccountError maps domain errors to HTTP responses for account endpoints.
func mapAccountError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrAccountExists):
		WriteError(w, http.StatusConflict, "account_already_exists", err.Error())
	case errors.Is(err, domain.ErrUnknownAccount):
		WriteError(w, http.StatusNotFound, "account_not_found", err.Error())
	case errors.Is(err, domain.ErrUnknownInstrument):
		WriteError(w, http.StatusNotFound, "instrument_not_found", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
