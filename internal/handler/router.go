package handler

import (
	"bufio"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/simexchange/internal/metrics"
	"github.com/efreitasn/simexchange/internal/service"
)

// NewRouter creates a chi router with all routes registered, request logging,
// request metrics and Content-Type validation middleware. feed serves the
// live trade stream; rec may be nil.
func NewRouter(
	accountSvc *service.AccountService,
	orderSvc *service.OrderService,
	marketSvc *service.MarketService,
	feed http.Handler,
	rec *metrics.Recorder,
	logger *slog.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestLogging(logger, rec))
	r.Use(contentTypeJSON)

	accountH := NewAccountHandler(accountSvc, orderSvc)
	orderH := NewOrderHandler(orderSvc)
	marketH := NewMarketHandler(marketSvc)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", rec.Handler())

	// Account routes.
	r.Post("/accounts", accountH.Open)
	r.Post("/users", accountH.RegisterUser)
	r.Get("/accounts/{account_id}", accountH.GetBalance)
	r.Get("/accounts/{account_id}/orders", accountH.ListOrders)
	r.Get("/rankings", accountH.Rankings)

	// Order routes.
	r.Post("/orders", orderH.SubmitOrder)
	r.Delete("/instruments/{ticker}/orders/{order_id}", orderH.CancelOrder)

	// Market data routes.
	r.Get("/instruments", marketH.ListInstruments)
	r.Get("/instruments/{ticker}", marketH.GetInstrument)
	r.Get("/instruments/{ticker}/book", marketH.GetBook)
	r.Get("/instruments/{ticker}/chart", marketH.GetChart)

	if feed != nil {
		r.Method(http.MethodGet, "/ws/trades", feed)
	}

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog, and counts it in rec.
func requestLogging(logger *slog.Logger, rec *metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			rec.HTTPRequest(r.Method, ww.status)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets the trade feed upgrade connections through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, rw, err := http.NewResponseController(w.ResponseWriter).Hijack()
	if err == nil && !w.wroteHeader {
		w.status = http.StatusSwitchingProtocols
		w.wroteHeader = true
	}
	return conn, rw, err
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT, and
// PATCH requests. If the Content-Type header doesn't start with
// "application/json", it returns 400 Bad Request before the handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
