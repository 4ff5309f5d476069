package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/efreitasn/simexchange/internal/domain"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusCreated, orderResponse{OrderID: "o1", Side: "BUY", Price: 100, RemainingQuantity: 10})

	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want %q", got, "application/json")
	}
	if w.Code != http.StatusCreated {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusCreated)
	}

	var raw map[string]any
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if raw["order_id"] != "o1" || raw["price"] != float64(100) || raw["remaining_quantity"] != float64(10) {
		t.Errorf("unexpected body: %v", raw)
	}
}

func TestMapErrors(t *testing.T) {
	tests := []struct {
		name       string
		mapper     func(http.ResponseWriter, error)
		err        error
		wantStatus int
		wantCode   string
	}{
		{"account exists", mapAccountError, fmt.Errorf("%w: USER_kim", domain.ErrAccountExists), http.StatusConflict, "account_already_exists"},
		{"account missing", mapAccountError, domain.ErrUnknownAccount, http.StatusNotFound, "account_not_found"},
		{"account validation", mapAccountError, &domain.ValidationError{Message: "cash must be positive"}, http.StatusBadRequest, "validation_error"},
		{"invalid order", mapOrderError, fmt.Errorf("%w: bad side", domain.ErrInvalidOrder), http.StatusBadRequest, "validation_error"},
		{"order missing", mapOrderError, domain.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
		{"insufficient funds", mapOrderError, fmt.Errorf("%w: need 100", domain.ErrInsufficientFunds), http.StatusConflict, "insufficient_funds"},
		{"insufficient shares", mapOrderError, domain.ErrInsufficientShares, http.StatusConflict, "insufficient_shares"},
		{"order on unknown instrument", mapOrderError, domain.ErrUnknownInstrument, http.StatusNotFound, "instrument_not_found"},
		{"market unknown instrument", mapMarketError, domain.ErrUnknownInstrument, http.StatusNotFound, "instrument_not_found"},
		{"unexpected", mapMarketError, errors.New("sqlite: database is locked"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.mapper(w, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp errorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if resp.Error != tt.wantCode {
				t.Errorf("error = %q, want %q", resp.Error, tt.wantCode)
			}
			if tt.wantStatus == http.StatusInternalServerError && strings.Contains(resp.Message, "sqlite") {
				t.Errorf("internal error leaked: %q", resp.Message)
			}
		})
	}
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantErr     bool
	}{
		{"valid order", "application/json", `{"type":"LIMIT","account_id":"USER_kim","ticker":"IT008","side":"BUY","price":100,"quantity":10}`, false},
		{"charset suffix", "application/json; charset=utf-8", `{"ticker":"IT008"}`, false},
		{"missing content type", "", `{"ticker":"IT008"}`, true},
		{"wrong content type", "text/plain", `{"ticker":"IT008"}`, true},
		{"malformed", "application/json", `{invalid json}`, true},
		{"unknown field", "application/json", `{"ticker":"IT008","nickname":"kim"}`, true},
		{"empty body", "application/json", ``, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(tt.body))
			if tt.contentType != "" {
				r.Header.Set("Content-Type", tt.contentType)
			}

			var req submitOrderRequest
			err := ParseJSON(r, &req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && req.Ticker != "IT008" {
				t.Errorf("ticker = %q, want IT008", req.Ticker)
			}
		})
	}

	t.Run("decodes order fields", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"account_id":"USER_kim","side":"SELL","price":101.5,"quantity":7}`))
		r.Header.Set("Content-Type", "application/json")

		var req submitOrderRequest
		if err := ParseJSON(r, &req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.AccountID != "USER_kim" || req.Side != "SELL" || req.Quantity != 7 || req.Price == nil || *req.Price != 101.5 {
			t.Errorf("decoded %+v", req)
		}
	})
}

func TestQueryInt(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    int
		wantErr bool
	}{
		{"absent uses default", "/?other=1", 7, false},
		{"present", "/?n=42", 42, false},
		{"negative", "/?n=-3", -3, false},
		{"not a number", "/?n=abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.url, nil)
			got, err := queryInt(r, "n", 7)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFormatTime(t *testing.T) {
	loc := time.FixedZone("KST", 9*60*60)
	got := formatTime(time.Date(2026, 3, 2, 18, 30, 0, 0, loc))
	if got != "2026-03-02T09:30:00Z" {
		t.Errorf("formatTime = %q", got)
	}
}
